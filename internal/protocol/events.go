// internal/protocol/events.go
//
// Wire-level event names and payload shapes for the realtime session
// protocol. Inbound names are what clients emit; outbound names are
// what the server emits back to one connection or a broadcast group.
// The names are the protocol's public surface and are preserved
// exactly, historical spelling of "recieveMsg" included.

package protocol

import "github.com/wordgrid/server/internal/game"

// Inbound event names (client -> server).
const (
	EvUsername        = "username"
	EvCreateGame      = "createGame"
	EvPlayerInGame    = "playerInGame"
	EvRemoveGame      = "removeGame"
	EvJoinGame        = "joinGame"
	EvGameRequest     = "gameRequest"
	EvInviteAccepted  = "inviteAccepted"
	EvRequestTiles    = "requestTiles"
	EvUpdateGameState = "updateGameState"
	EvSendMsg         = "sendMsg"
	EvGameOver        = "gameOver"
)

// Outbound event names (server -> connection or group).
const (
	EvUsernameError      = "usernameError"
	EvUsernameRegistered = "usernameRegistered"
	EvWelcomeNewUser     = "welcomeNewUser"
	EvGameCreateResponse = "gameCreateResponse"
	EvCreateGameError    = "createGameError"
	EvPlayerUnavailable  = "playerUnavailable"
	EvRemovedGame        = "removedGame"
	EvJoinGameError      = "joinGameError"
	EvInvalidGame        = "invalidGame"
	EvPlayer1Present     = "player1present"
	EvGameJoined         = "gameJoined"
	EvUser1Error         = "user1Error"
	EvPlayer2Present     = "player2present"
	EvInvite             = "invite"
	EvPlayer1Left        = "player1left"
	EvGameJoined2        = "gameJoined2"
	EvUser2Error         = "user2Error"
	EvGameEnded          = "gameEnded"
	EvSendingTiles       = "sendingTiles"
	EvGameUpdated        = "gameUpdated"
	EvRecieveMsg         = "recieveMsg"
	EvGameEnd            = "gameEnd"
	EvUserLeft           = "userLeft"
	EvPlayerLeft         = "playerLeft"
	EvOpponentLeft       = "opponentLeft"
)

// joinGamePayload is the handshake step that fills the host slot.
type joinGamePayload struct {
	UserID string `json:"userId"`
	GameID string `json:"gameId"`
	Time   string `json:"time"`
}

// gameRequestPayload invites another connection into an open game.
type gameRequestPayload struct {
	UserID        string `json:"userId"`
	GameID        string `json:"gameId"`
	InvitedPlayer struct {
		ID string `json:"id"`
	} `json:"invitedPlayer"`
}

type inviteAcceptedPayload struct {
	UserID string `json:"userId"`
	GameID string `json:"gameId"`
}

type playerInGamePayload struct {
	ID string `json:"id"`
}

type requestTilesPayload struct {
	GameID         string `json:"gameId"`
	NumTilesNeeded int    `json:"numTilesNeeded"`
	Player         int    `json:"player"`
}

type updateGameStatePayload struct {
	GameID            string          `json:"gameId"`
	BoardState        game.RawPayload `json:"boardState"`
	PlayerRackTiles   []string        `json:"playerRackTiles"`
	Player            int             `json:"player"`
	Scores            game.RawPayload `json:"scores"`
	ConsecutivePasses int             `json:"consecutivePasses"`
}

type sendMsgPayload struct {
	GameID        string `json:"gameId"`
	CurrentPlayer int    `json:"currentPlayer"`
	NewMessage    string `json:"newMessage"`
}

// chatMessage is the broadcast chat event. Field names are wire names.
type chatMessage struct {
	PlayerFromBackend int    `json:"playerFromBackend"`
	PlayerName        string `json:"playerName"`
	Msg               string `json:"msg"`
	Date              string `json:"date"`
}
