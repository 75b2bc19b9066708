// internal/game/types.go
//
// Core type definitions for a brokered two-player tile game.
// Defines:
//   - Slot: one of the two fixed player positions in a game.
//   - State: the authoritative shared game state (pouch, racks, board,
//     scores, turn, pass count).
//   - Game: one live game record, with its own mutex so mutations are
//     serialized per game.
//
// The board and score payloads are supplied by the acting client and
// stored opaquely; the broker does not interpret or validate them.

package game

import (
	"encoding/json"
	"sync"
)

// RawPayload is an opaque client-supplied JSON blob (board layout,
// score object). Stored and re-broadcast verbatim.
type RawPayload = json.RawMessage

// Slot is one player position. An empty PlayerID means the slot is unfilled.
// Wire field names match the realtime protocol.
type Slot struct {
	PlayerID string `json:"playerId"`
	JoinedAt string `json:"joinedAt,omitempty"`
}

// State is the shared mutable game state owned by the broker once a
// game starts. BoardState and Scores pass through untouched.
type State struct {
	Pouch             []string   `json:"pouch"`
	Player1Tiles      []string   `json:"player1Tiles"`
	Player2Tiles      []string   `json:"player2Tiles"`
	BoardState        RawPayload `json:"boardState"`
	Scores            RawPayload `json:"scores"`
	Turn              int        `json:"turn"` // 0 or 1, whose move is next
	ConsecutivePasses int        `json:"consecutivePasses"`
	IsOver            bool       `json:"isOver"`
}

// Game holds one live game keyed by ID. The mutex linearizes every
// state mutation for this game; unrelated games proceed independently.
type Game struct {
	mu sync.Mutex

	ID      string `json:"gameId"`
	Player1 Slot   `json:"player1"`
	Player2 Slot   `json:"player2"`
	State   State  `json:"gameState"`
}

// Snapshot deep-copies the game under its lock so callers can broadcast
// it without racing in-flight mutations.
func (g *Game) Snapshot() *Game {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

// snapshotLocked copies the game; callers must hold g.mu.
func (g *Game) snapshotLocked() *Game {
	cp := &Game{
		ID:      g.ID,
		Player1: g.Player1,
		Player2: g.Player2,
		State: State{
			Pouch:             append([]string(nil), g.State.Pouch...),
			Player1Tiles:      append([]string(nil), g.State.Player1Tiles...),
			Player2Tiles:      append([]string(nil), g.State.Player2Tiles...),
			BoardState:        append(RawPayload(nil), g.State.BoardState...),
			Scores:            append(RawPayload(nil), g.State.Scores...),
			Turn:              g.State.Turn,
			ConsecutivePasses: g.State.ConsecutivePasses,
			IsOver:            g.State.IsOver,
		},
	}
	return cp
}
