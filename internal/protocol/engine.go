// internal/protocol/engine.go
//
// Session protocol engine: the single place that mutates the presence
// and game registries in response to inbound events and republishes
// results over the transport.
//
// Responsibilities:
//   - Handshake state machine: create -> join -> invite -> accept.
//   - In-game exchange: tile draws, state updates, chat, game over.
//   - Disconnect cleanup: lobby departure and slot vacancy, attempted
//     independently so one failing never suppresses the other.
//
// Rules the handlers follow:
//   - Validate user/game existence before mutating anything.
//   - Exactly one failure event per unmet precondition, sent to the
//     originating connection only; no partial mutation on failure.
//   - Snapshots, never live game pointers, go out over the transport.
//
// The engine assumes the transport removes a closing connection from
// its groups before Disconnect is invoked, so group broadcasts during
// cleanup naturally exclude the leaver.

package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wordgrid/server/internal/game"
	"github.com/wordgrid/server/internal/presence"
)

// Transport is the publish/subscribe capability the engine drives.
// Broadcast groups ("rooms") are named channels; a message emitted to a
// group reaches every currently subscribed connection.
type Transport interface {
	JoinGroup(connID, group string)
	LeaveGroup(connID, group string)
	EmitTo(connID, event string, payload any)
	EmitToGroup(group, event string, payload any)
}

// Engine owns no state of its own; both registries are injected at
// construction so tests can run isolated instances.
type Engine struct {
	users *presence.Registry
	games *game.Registry
	tr    Transport
	log   zerolog.Logger
	now   func() time.Time
}

// NewEngine wires the engine to its registries and transport.
func NewEngine(users *presence.Registry, games *game.Registry, tr Transport, log zerolog.Logger) *Engine {
	return &Engine{users: users, games: games, tr: tr, log: log, now: time.Now}
}

// Dispatch routes one inbound event to its handler. A payload that does
// not decode emits that event's failure event to the sender only and
// changes nothing.
func (e *Engine) Dispatch(connID, event string, data json.RawMessage) {
	switch event {
	case EvUsername:
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			e.tr.EmitTo(connID, EvUsernameError, "please enter a valid username")
			return
		}
		e.handleUsername(connID, name)
	case EvCreateGame:
		var userID string
		if err := json.Unmarshal(data, &userID); err != nil {
			e.tr.EmitTo(connID, EvCreateGameError, "please register before creating a game")
			return
		}
		e.handleCreateGame(connID, userID)
	case EvPlayerInGame:
		var p playerInGamePayload
		if err := json.Unmarshal(data, &p); err != nil {
			e.log.Debug().Str("conn", connID).Err(err).Msg("bad playerInGame payload")
			return
		}
		e.handlePlayerInGame(connID, p)
	case EvRemoveGame:
		var gameID string
		if err := json.Unmarshal(data, &gameID); err != nil {
			e.tr.EmitTo(connID, EvRemovedGame, "Sorry we couldnt find the game to delete")
			return
		}
		e.handleRemoveGame(connID, gameID)
	case EvJoinGame:
		var p joinGamePayload
		if err := json.Unmarshal(data, &p); err != nil {
			e.tr.EmitTo(connID, EvJoinGameError, "please register before joining a game")
			return
		}
		e.handleJoinGame(connID, p)
	case EvGameRequest:
		var p gameRequestPayload
		if err := json.Unmarshal(data, &p); err != nil {
			e.tr.EmitTo(connID, EvInvalidGame, "Sorry, the game does not exists")
			return
		}
		e.handleGameRequest(connID, p)
	case EvInviteAccepted:
		var p inviteAcceptedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			e.tr.EmitTo(connID, EvJoinGameError, "please register before joining the game")
			return
		}
		e.handleInviteAccepted(connID, p)
	case EvRequestTiles:
		var p requestTilesPayload
		if err := json.Unmarshal(data, &p); err != nil {
			e.tr.EmitTo(connID, EvGameEnded, "The game has ended")
			return
		}
		e.handleRequestTiles(connID, p)
	case EvUpdateGameState:
		var p updateGameStatePayload
		if err := json.Unmarshal(data, &p); err != nil {
			e.tr.EmitTo(connID, EvGameEnded, "The game has ended")
			return
		}
		e.handleUpdateGameState(connID, p)
	case EvSendMsg:
		var p sendMsgPayload
		if err := json.Unmarshal(data, &p); err != nil {
			e.tr.EmitTo(connID, EvGameEnded, "The game has ended")
			return
		}
		e.handleSendMsg(connID, p)
	case EvGameOver:
		var gameID string
		if err := json.Unmarshal(data, &gameID); err != nil {
			e.tr.EmitTo(connID, EvGameEnded, "The game has ended")
			return
		}
		e.handleGameOver(connID, gameID)
	default:
		e.log.Debug().Str("conn", connID).Str("event", event).Msg("unknown event")
	}
}

// handleUsername registers the connection and announces it to the
// lobby. The welcome broadcast goes out before the sender joins the
// group so newcomers never greet themselves.
func (e *Engine) handleUsername(connID, name string) {
	u, err := e.users.Register(connID, name)
	if err != nil {
		e.tr.EmitTo(connID, EvUsernameError, "please enter a valid username")
		return
	}
	e.tr.EmitToGroup(presence.LobbyGroup, EvWelcomeNewUser, map[string]any{"user": u})
	e.tr.JoinGroup(connID, presence.LobbyGroup)
	e.tr.EmitTo(connID, EvUsernameRegistered, map[string]any{
		"msg":            "you are a registered player now",
		"user":           u,
		"allOnlineUsers": e.users.ListGroup(presence.LobbyGroup),
	})
	e.log.Info().Str("conn", connID).Str("name", u.Name).Msg("user joined the lobby")
}

func (e *Engine) handleCreateGame(connID, userID string) {
	if _, ok := e.users.Lookup(userID); !ok {
		e.tr.EmitTo(connID, EvCreateGameError, "please register before creating a game")
		return
	}
	g := e.games.Create()
	e.tr.EmitTo(connID, EvGameCreateResponse, g.ID)
	e.log.Info().Str("game", g.ID).Str("creator", userID).Msg("game created")
}

func (e *Engine) handlePlayerInGame(connID string, p playerInGamePayload) {
	e.tr.EmitTo(connID, EvPlayerUnavailable, e.games.IsPlayerInAnyGame(p.ID))
}

// handleRemoveGame cancels a game before it starts. The reply goes to
// the caller only, success or not.
func (e *Engine) handleRemoveGame(connID, gameID string) {
	if _, ok := e.games.Remove(gameID); ok {
		e.tr.EmitTo(connID, EvRemovedGame, "The game was removed. please create another one")
		return
	}
	e.tr.EmitTo(connID, EvRemovedGame, "Sorry we couldnt find the game to delete")
}

// handleJoinGame fills the host slot and attaches the connection to the
// game's broadcast group.
func (e *Engine) handleJoinGame(connID string, p joinGamePayload) {
	if _, ok := e.users.Lookup(p.UserID); !ok {
		e.tr.EmitTo(connID, EvJoinGameError, "please register before joining a game")
		return
	}
	_, err := e.games.SetPlayer1(p.GameID, p.UserID, p.Time)
	switch err {
	case nil:
	case game.ErrNotFound:
		e.tr.EmitTo(connID, EvInvalidGame, "Sorry, the game does not exist")
		return
	case game.ErrSlotTaken:
		e.tr.EmitTo(connID, EvPlayer1Present, "You are already in game")
		return
	default:
		e.tr.EmitTo(connID, EvUser1Error, "Sorry, could not set you up for the game")
		return
	}
	e.tr.JoinGroup(connID, p.GameID)
	e.tr.EmitTo(connID, EvGameJoined, "You have joined the game. Waiting for other player")
	e.log.Info().Str("game", p.GameID).Str("player1", p.UserID).Msg("host joined game")
}

// handleGameRequest sends a direct invitation to the invited connection
// only; nothing changes until the invite is accepted.
func (e *Engine) handleGameRequest(connID string, p gameRequestPayload) {
	g, ok := e.games.Find(p.GameID)
	if !ok {
		e.tr.EmitTo(connID, EvInvalidGame, "Sorry, the game does not exists")
		return
	}
	snap := g.Snapshot()
	if snap.Player2.PlayerID != "" {
		e.tr.EmitTo(connID, EvPlayer2Present, "Player has already joined your game")
		return
	}
	host, _ := e.users.Lookup(p.UserID)
	e.tr.EmitTo(p.InvitedPlayer.ID, EvInvite, map[string]any{"host": host, "game": snap})
}

// handleInviteAccepted fills the guest slot and broadcasts the full
// game to both players; the game is now in progress.
func (e *Engine) handleInviteAccepted(connID string, p inviteAcceptedPayload) {
	if _, ok := e.users.Lookup(p.UserID); !ok {
		e.tr.EmitTo(connID, EvJoinGameError, "please register before joining the game")
		return
	}
	snap, err := e.games.SetPlayer2(p.GameID, p.UserID)
	switch err {
	case nil:
	case game.ErrNotFound:
		e.tr.EmitTo(connID, EvInvalidGame, "Sorry, the game does not exist anymore")
		return
	case game.ErrNoHost:
		e.tr.EmitTo(connID, EvPlayer1Left, "The host has left")
		return
	default:
		e.tr.EmitTo(connID, EvUser2Error, "Sorry, could not set you up for the game")
		return
	}
	e.tr.JoinGroup(connID, p.GameID)
	e.tr.EmitToGroup(p.GameID, EvGameJoined2, map[string]any{"game": snap})
	e.log.Info().Str("game", p.GameID).Str("player2", p.UserID).Msg("invite accepted, game in progress")
}

// handleRequestTiles draws from the pouch and replies to the requesting
// connection only. A short pouch is not an error.
func (e *Engine) handleRequestTiles(connID string, p requestTilesPayload) {
	tiles, err := e.games.DrawTiles(p.GameID, p.NumTilesNeeded, p.Player)
	if err != nil {
		e.tr.EmitTo(connID, EvGameEnded, "The game has ended")
		return
	}
	e.tr.EmitTo(connID, EvSendingTiles, tiles)
}

// handleUpdateGameState applies a turn's result and broadcasts the
// updated game to the group. Updates for one game never interleave.
func (e *Engine) handleUpdateGameState(connID string, p updateGameStatePayload) {
	snap, err := e.games.ApplyStateUpdate(p.GameID, p.BoardState, p.PlayerRackTiles, p.Player, p.Scores, p.ConsecutivePasses)
	if err != nil {
		e.tr.EmitTo(connID, EvGameEnded, "The game has ended")
		return
	}
	e.tr.EmitToGroup(p.GameID, EvGameUpdated, snap)
}

// handleSendMsg relays chat to the game group, independent of turn
// order. The timestamp is taken at send time.
func (e *Engine) handleSendMsg(connID string, p sendMsgPayload) {
	if _, ok := e.games.Find(p.GameID); !ok {
		e.tr.EmitTo(connID, EvGameEnded, "The game has ended")
		return
	}
	u, ok := e.users.Lookup(connID)
	if !ok {
		e.tr.EmitTo(connID, EvOpponentLeft, "The opponent has left the game")
		return
	}
	e.tr.EmitToGroup(p.GameID, EvRecieveMsg, chatMessage{
		PlayerFromBackend: p.CurrentPlayer,
		PlayerName:        u.Name,
		Msg:               p.NewMessage,
		Date:              e.now().Format("3:04:05 pm"),
	})
}

// handleGameOver marks the terminal state, removes the game, and
// broadcasts the final snapshot.
func (e *Engine) handleGameOver(connID, gameID string) {
	snap, ok := e.games.MarkOver(gameID)
	if !ok {
		e.tr.EmitTo(connID, EvGameEnded, "The game has ended")
		return
	}
	e.tr.EmitToGroup(gameID, EvGameEnd, snap)
	e.log.Info().Str("game", gameID).Msg("game over")
}

// Disconnect runs both registry cleanups for a closing connection.
// Each is attempted regardless of the other's outcome.
func (e *Engine) Disconnect(connID string) {
	u, hadUser := e.users.Remove(connID)
	if hadUser {
		e.tr.EmitToGroup(presence.LobbyGroup, EvUserLeft, map[string]any{"user": u})
	}
	if g, ok := e.games.DisconnectPlayer(connID); ok {
		who := "Your opponent"
		if hadUser {
			who = u.Name
		}
		e.tr.EmitToGroup(g.ID, EvPlayerLeft, fmt.Sprintf("%s has left the game", who))
	}
	e.log.Info().Str("conn", connID).Bool("registered", hadUser).Msg("connection left")
}
