// internal/game/registry.go
//
// Game registry: the single owner of all live games.
// Responsibilities:
//   - Allocate fresh game ids, guaranteed unique among live games
//     (retry-on-collision against the map; the id stays a short numeric
//     string for wire compatibility).
//   - Fill and vacate the two player slots with the slot invariants
//     enforced here, not just by callers.
//   - Apply per-turn mutations (tile draws, state updates) serialized
//     per game via the game's own mutex.
//   - Remove games on cancellation or game-over, and automatically when
//     a disconnect leaves both slots empty.
//
// Lock order is always registry map before game mutex, never the
// reverse.

package game

import (
	"errors"
	"math/rand"
	"strconv"
	"sync"
)

var (
	// ErrNotFound is returned when a game id has no live game.
	ErrNotFound = errors.New("game: not found")
	// ErrSlotTaken is returned when assigning into an occupied slot.
	ErrSlotTaken = errors.New("game: slot already filled")
	// ErrNoHost is returned when slot 2 is assigned before slot 1.
	ErrNoHost = errors.New("game: host slot is empty")
)

// Registry maps game ids to live games.
type Registry struct {
	mu    sync.RWMutex
	games map[string]*Game
	rng   *rand.Rand // guarded by mu; used for ids and pouch shuffles
}

// NewRegistry constructs an empty game registry. The rng seeds id
// generation and pouch shuffling; pass a fixed source in tests.
func NewRegistry(rng *rand.Rand) *Registry {
	return &Registry{games: make(map[string]*Game), rng: rng}
}

// Create allocates a fresh id and an empty game with a full shuffled
// pouch. The id is retried until it misses every live game.
func (r *Registry) Create() *Game {
	r.mu.Lock()
	defer r.mu.Unlock()
	var id string
	for {
		id = strconv.Itoa(r.rng.Intn(10000))
		if _, exists := r.games[id]; !exists {
			break
		}
	}
	g := &Game{
		ID: id,
		State: State{
			Pouch:        newPouch(r.rng),
			Player1Tiles: []string{},
			Player2Tiles: []string{},
		},
	}
	r.games[id] = g
	return g
}

// Find returns a live game by id.
func (r *Registry) Find(id string) (*Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[id]
	return g, ok
}

// Remove deletes a game and returns it, if present.
func (r *Registry) Remove(id string) (*Game, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[id]
	if !ok {
		return nil, false
	}
	delete(r.games, id)
	return g, true
}

// SetPlayer1 fills the host slot. A filled slot is never overwritten;
// it must be vacated first.
func (r *Registry) SetPlayer1(gameID, playerID, joinedAt string) (*Game, error) {
	g, ok := r.Find(gameID)
	if !ok {
		return nil, ErrNotFound
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Player1.PlayerID != "" {
		return nil, ErrSlotTaken
	}
	g.Player1 = Slot{PlayerID: playerID, JoinedAt: joinedAt}
	return g.snapshotLocked(), nil
}

// SetPlayer2 fills the guest slot. Fails if the host slot is empty
// (the host has left) or the slot is already occupied.
func (r *Registry) SetPlayer2(gameID, playerID string) (*Game, error) {
	g, ok := r.Find(gameID)
	if !ok {
		return nil, ErrNotFound
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Player1.PlayerID == "" {
		return nil, ErrNoHost
	}
	if g.Player2.PlayerID != "" {
		return nil, ErrSlotTaken
	}
	g.Player2 = Slot{PlayerID: playerID}
	return g.snapshotLocked(), nil
}

// IsPlayerInAnyGame scans live games for the player in either slot.
func (r *Registry) IsPlayerInAnyGame(playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.games {
		g.mu.Lock()
		in := g.Player1.PlayerID == playerID || g.Player2.PlayerID == playerID
		g.mu.Unlock()
		if in {
			return true
		}
	}
	return false
}

// PlayerNumber reports which slot (0 or 1) a player occupies in a game.
func (r *Registry) PlayerNumber(gameID, playerID string) (int, bool) {
	g, ok := r.Find(gameID)
	if !ok {
		return 0, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	switch playerID {
	case g.Player1.PlayerID:
		return 0, true
	case g.Player2.PlayerID:
		return 1, true
	}
	return 0, false
}

// DisconnectPlayer vacates the slot held by playerID in whichever game
// contains it and returns a snapshot of that game so the caller can
// notify the remaining opponent. When the vacancy empties both slots
// the game is removed outright instead of leaking.
func (r *Registry) DisconnectPlayer(playerID string) (*Game, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, g := range r.games {
		g.mu.Lock()
		switch playerID {
		case g.Player1.PlayerID:
			g.Player1 = Slot{}
		case g.Player2.PlayerID:
			g.Player2 = Slot{}
		default:
			g.mu.Unlock()
			continue
		}
		if g.Player1.PlayerID == "" && g.Player2.PlayerID == "" {
			delete(r.games, id)
		}
		snap := g.snapshotLocked()
		g.mu.Unlock()
		return snap, true
	}
	return nil, false
}

// DrawTiles atomically moves up to count tiles from the front of the
// pouch to the named player's rack and returns them in draw order.
// Drawing from a short pouch returns whatever remains; an emptied
// pouch is a normal end-of-game condition, not a fault.
func (r *Registry) DrawTiles(gameID string, count, forPlayer int) ([]string, error) {
	g, ok := r.Find(gameID)
	if !ok {
		return nil, ErrNotFound
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if count < 0 {
		count = 0
	}
	if count > len(g.State.Pouch) {
		count = len(g.State.Pouch)
	}
	drawn := append([]string(nil), g.State.Pouch[:count]...)
	g.State.Pouch = g.State.Pouch[count:]
	if forPlayer == 0 {
		g.State.Player1Tiles = append(g.State.Player1Tiles, drawn...)
	} else {
		g.State.Player2Tiles = append(g.State.Player2Tiles, drawn...)
	}
	return drawn, nil
}

// ApplyStateUpdate overwrites board, scores and pass count, replaces
// the acting player's rack, and hands the turn to the other player.
// Serialized per game: a concurrent update always sees the previous
// update's committed result.
func (r *Registry) ApplyStateUpdate(gameID string, board RawPayload, rack []string, actingPlayer int, scores RawPayload, passes int) (*Game, error) {
	g, ok := r.Find(gameID)
	if !ok {
		return nil, ErrNotFound
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.State.BoardState = board
	g.State.Scores = scores
	g.State.ConsecutivePasses = passes
	if actingPlayer == 0 {
		g.State.Player1Tiles = append([]string(nil), rack...)
		g.State.Turn = 1
	} else {
		g.State.Player2Tiles = append([]string(nil), rack...)
		g.State.Turn = 0
	}
	return g.snapshotLocked(), nil
}

// MarkOver flags the terminal state and removes the game, returning the
// final snapshot for the game-over broadcast.
func (r *Registry) MarkOver(gameID string) (*Game, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[gameID]
	if !ok {
		return nil, false
	}
	delete(r.games, gameID)
	g.mu.Lock()
	g.State.IsOver = true
	snap := g.snapshotLocked()
	g.mu.Unlock()
	return snap, true
}
