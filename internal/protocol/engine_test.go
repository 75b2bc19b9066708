package protocol

import (
	"encoding/json"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wordgrid/server/internal/game"
	"github.com/wordgrid/server/internal/presence"
)

// fakeTransport records every emission and group change so handlers can
// be exercised without any real network transport.
type emission struct {
	target  string // connection id or group name
	group   bool
	event   string
	payload any
}

type fakeTransport struct {
	mu     sync.Mutex
	emits  []emission
	groups map[string]map[string]bool // group -> conn ids
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{groups: make(map[string]map[string]bool)}
}

func (f *fakeTransport) JoinGroup(connID, group string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groups[group] == nil {
		f.groups[group] = make(map[string]bool)
	}
	f.groups[group][connID] = true
}

func (f *fakeTransport) LeaveGroup(connID, group string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups[group], connID)
}

func (f *fakeTransport) EmitTo(connID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emits = append(f.emits, emission{target: connID, event: event, payload: payload})
}

func (f *fakeTransport) EmitToGroup(group, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emits = append(f.emits, emission{target: group, group: true, event: event, payload: payload})
}

func (f *fakeTransport) byEvent(event string) []emission {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emission
	for _, e := range f.emits {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeTransport) last() emission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.emits[len(f.emits)-1]
}

func newTestEngine() (*Engine, *fakeTransport, *game.Registry, *presence.Registry) {
	users := presence.NewRegistry()
	games := game.NewRegistry(rand.New(rand.NewSource(7)))
	tr := newFakeTransport()
	e := NewEngine(users, games, tr, zerolog.Nop())
	return e, tr, games, users
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestUsernameEmptyIsRejected(t *testing.T) {
	e, tr, _, users := newTestEngine()
	e.Dispatch("c1", EvUsername, raw(`""`))

	last := tr.last()
	if last.event != EvUsernameError || last.target != "c1" || last.group {
		t.Fatalf("last emit = %+v, want usernameError to c1", last)
	}
	if _, ok := users.Lookup("c1"); ok {
		t.Fatalf("registry mutated by failed registration")
	}
}

func TestUsernameRegistersAndAnnounces(t *testing.T) {
	e, tr, _, _ := newTestEngine()
	e.Dispatch("c1", EvUsername, raw(`"alice"`))

	if !tr.groups[presence.LobbyGroup]["c1"] {
		t.Fatalf("c1 not joined to lobby group")
	}
	regs := tr.byEvent(EvUsernameRegistered)
	if len(regs) != 1 || regs[0].target != "c1" {
		t.Fatalf("usernameRegistered = %+v, want one to c1", regs)
	}
	welcomes := tr.byEvent(EvWelcomeNewUser)
	if len(welcomes) != 1 || welcomes[0].target != presence.LobbyGroup {
		t.Fatalf("welcomeNewUser = %+v, want one to lobby group", welcomes)
	}

	payload := regs[0].payload.(map[string]any)
	online := payload["allOnlineUsers"].([]*presence.User)
	if len(online) != 1 || online[0].Name != "alice" {
		t.Fatalf("allOnlineUsers = %+v, want [alice]", online)
	}
}

func TestCreateGameRequiresRegistration(t *testing.T) {
	e, tr, _, _ := newTestEngine()
	e.Dispatch("c1", EvCreateGame, raw(`"c1"`))
	if last := tr.last(); last.event != EvCreateGameError {
		t.Fatalf("last emit = %+v, want createGameError", last)
	}

	e.Dispatch("c1", EvUsername, raw(`"alice"`))
	e.Dispatch("c1", EvCreateGame, raw(`"c1"`))
	if last := tr.last(); last.event != EvGameCreateResponse || last.target != "c1" {
		t.Fatalf("last emit = %+v, want gameCreateResponse to c1", last)
	}
}

func TestJoinGameRejectsFilledSlot(t *testing.T) {
	e, tr, games, _ := newTestEngine()
	e.Dispatch("c1", EvUsername, raw(`"alice"`))
	e.Dispatch("c2", EvUsername, raw(`"bob"`))
	g := games.Create()

	e.Dispatch("c1", EvJoinGame, raw(`{"userId":"c1","gameId":"`+g.ID+`","time":"t0"}`))
	if last := tr.last(); last.event != EvGameJoined {
		t.Fatalf("last emit = %+v, want gameJoined", last)
	}

	// Second join for the same game, from any connection, is a conflict.
	e.Dispatch("c2", EvJoinGame, raw(`{"userId":"c2","gameId":"`+g.ID+`","time":"t1"}`))
	if last := tr.last(); last.event != EvPlayer1Present || last.target != "c2" {
		t.Fatalf("last emit = %+v, want player1present to c2", last)
	}
	got, _ := games.Find(g.ID)
	if got.Player1.PlayerID != "c1" {
		t.Fatalf("slot 1 = %q, want c1 untouched", got.Player1.PlayerID)
	}
}

func TestInviteGoesDirectToInvitedConnection(t *testing.T) {
	e, tr, games, _ := newTestEngine()
	e.Dispatch("c1", EvUsername, raw(`"alice"`))
	e.Dispatch("c2", EvUsername, raw(`"bob"`))
	g := games.Create()
	e.Dispatch("c1", EvJoinGame, raw(`{"userId":"c1","gameId":"`+g.ID+`","time":"t0"}`))

	e.Dispatch("c1", EvGameRequest, raw(`{"userId":"c1","gameId":"`+g.ID+`","invitedPlayer":{"id":"c2"}}`))
	invites := tr.byEvent(EvInvite)
	if len(invites) != 1 || invites[0].target != "c2" || invites[0].group {
		t.Fatalf("invite = %+v, want direct to c2 only", invites)
	}
	// No state change until acceptance.
	got, _ := games.Find(g.ID)
	if got.Player2.PlayerID != "" {
		t.Fatalf("slot 2 = %q, want empty before acceptance", got.Player2.PlayerID)
	}
}

func TestInviteAcceptedAfterHostLeft(t *testing.T) {
	e, tr, games, _ := newTestEngine()
	e.Dispatch("c1", EvUsername, raw(`"alice"`))
	e.Dispatch("c2", EvUsername, raw(`"bob"`))
	e.Dispatch("c3", EvUsername, raw(`"carol"`))
	g := games.Create()
	e.Dispatch("c1", EvJoinGame, raw(`{"userId":"c1","gameId":"`+g.ID+`","time":"t0"}`))
	e.Dispatch("c2", EvInviteAccepted, raw(`{"userId":"c2","gameId":"`+g.ID+`"}`))

	// Host disconnects mid-game; slot 1 is vacated in place.
	e.Disconnect("c1")

	e.Dispatch("c3", EvInviteAccepted, raw(`{"userId":"c3","gameId":"`+g.ID+`"}`))
	if last := tr.last(); last.event != EvPlayer1Left || last.target != "c3" {
		t.Fatalf("last emit = %+v, want player1left to c3", last)
	}
	got, _ := games.Find(g.ID)
	if got.Player2.PlayerID != "c2" {
		t.Fatalf("slot 2 = %q, want c2 unchanged", got.Player2.PlayerID)
	}
}

// Full handshake and turn scenario: create -> join -> invite -> accept
// -> draw 7 of 100 -> update -> game over.
func TestFullGameScenario(t *testing.T) {
	e, tr, games, _ := newTestEngine()
	e.Dispatch("c1", EvUsername, raw(`"alice"`))
	e.Dispatch("c2", EvUsername, raw(`"bob"`))

	e.Dispatch("c1", EvCreateGame, raw(`"c1"`))
	gameID := tr.last().payload.(string)

	e.Dispatch("c1", EvJoinGame, raw(`{"userId":"c1","gameId":"`+gameID+`","time":"t0"}`))
	e.Dispatch("c1", EvGameRequest, raw(`{"userId":"c1","gameId":"`+gameID+`","invitedPlayer":{"id":"c2"}}`))
	e.Dispatch("c2", EvInviteAccepted, raw(`{"userId":"c2","gameId":"`+gameID+`"}`))

	joined := tr.byEvent(EvGameJoined2)
	if len(joined) != 1 || joined[0].target != gameID || !joined[0].group {
		t.Fatalf("gameJoined2 = %+v, want one broadcast to game group", joined)
	}
	if !tr.groups[gameID]["c1"] || !tr.groups[gameID]["c2"] {
		t.Fatalf("both players should be in the game group, got %v", tr.groups[gameID])
	}

	e.Dispatch("c1", EvRequestTiles, raw(`{"gameId":"`+gameID+`","numTilesNeeded":7,"player":0}`))
	sending := tr.byEvent(EvSendingTiles)
	if len(sending) != 1 || sending[0].target != "c1" || sending[0].group {
		t.Fatalf("sendingTiles = %+v, want direct to c1 only", sending)
	}
	if tiles := sending[0].payload.([]string); len(tiles) != 7 {
		t.Fatalf("tiles = %d, want 7", len(tiles))
	}
	got, _ := games.Find(gameID)
	if len(got.State.Pouch) != 93 {
		t.Fatalf("pouch = %d, want 93", len(got.State.Pouch))
	}
	if len(got.State.Player1Tiles) != 7 {
		t.Fatalf("rack = %d, want 7", len(got.State.Player1Tiles))
	}

	e.Dispatch("c1", EvUpdateGameState, raw(`{"gameId":"`+gameID+`","boardState":{"b":1},"playerRackTiles":["A","B"],"player":0,"scores":[12,0],"consecutivePasses":0}`))
	updates := tr.byEvent(EvGameUpdated)
	if len(updates) != 1 || updates[0].target != gameID || !updates[0].group {
		t.Fatalf("gameUpdated = %+v, want one broadcast to game group", updates)
	}
	snap := updates[0].payload.(*game.Game)
	if snap.State.Turn != 1 {
		t.Fatalf("turn = %d, want 1", snap.State.Turn)
	}

	e.Dispatch("c1", EvGameOver, raw(`"`+gameID+`"`))
	ends := tr.byEvent(EvGameEnd)
	if len(ends) != 1 || !ends[0].group {
		t.Fatalf("gameEnd = %+v, want one broadcast", ends)
	}
	final := ends[0].payload.(*game.Game)
	if !final.State.IsOver {
		t.Fatalf("final snapshot isOver = false, want true")
	}
	if _, ok := games.Find(gameID); ok {
		t.Fatalf("game still live after gameOver")
	}
}

func TestSendMsgUsesLiveClock(t *testing.T) {
	e, tr, games, _ := newTestEngine()
	e.now = func() time.Time {
		return time.Date(2024, 5, 1, 15, 4, 5, 0, time.UTC)
	}
	e.Dispatch("c1", EvUsername, raw(`"alice"`))
	g := games.Create()

	e.Dispatch("c1", EvSendMsg, raw(`{"gameId":"`+g.ID+`","currentPlayer":0,"newMessage":"hi"}`))
	msgs := tr.byEvent(EvRecieveMsg)
	if len(msgs) != 1 || msgs[0].target != g.ID || !msgs[0].group {
		t.Fatalf("recieveMsg = %+v, want one broadcast to game group", msgs)
	}
	chat := msgs[0].payload.(chatMessage)
	if chat.PlayerName != "alice" || chat.Msg != "hi" {
		t.Fatalf("chat = %+v", chat)
	}
	if chat.Date != "3:04:05 pm" {
		t.Fatalf("date = %q, want %q", chat.Date, "3:04:05 pm")
	}

	// Unregistered sender.
	e.Dispatch("ghost", EvSendMsg, raw(`{"gameId":"`+g.ID+`","currentPlayer":1,"newMessage":"boo"}`))
	if last := tr.last(); last.event != EvOpponentLeft || last.target != "ghost" {
		t.Fatalf("last emit = %+v, want opponentLeft to ghost", last)
	}
}

func TestRemoveGameRepliesEitherWay(t *testing.T) {
	e, tr, games, _ := newTestEngine()
	g := games.Create()

	e.Dispatch("c1", EvRemoveGame, raw(`"`+g.ID+`"`))
	last := tr.last()
	if last.event != EvRemovedGame || !strings.Contains(last.payload.(string), "was removed") {
		t.Fatalf("last emit = %+v, want success removedGame", last)
	}
	e.Dispatch("c1", EvRemoveGame, raw(`"`+g.ID+`"`))
	last = tr.last()
	if last.event != EvRemovedGame || !strings.Contains(last.payload.(string), "couldnt find") {
		t.Fatalf("last emit = %+v, want failure removedGame", last)
	}
}

func TestDisconnectRunsBothCleanups(t *testing.T) {
	e, tr, games, users := newTestEngine()
	e.Dispatch("c1", EvUsername, raw(`"alice"`))
	e.Dispatch("c2", EvUsername, raw(`"bob"`))
	g := games.Create()
	e.Dispatch("c1", EvJoinGame, raw(`{"userId":"c1","gameId":"`+g.ID+`","time":"t0"}`))
	e.Dispatch("c2", EvInviteAccepted, raw(`{"userId":"c2","gameId":"`+g.ID+`"}`))

	e.Disconnect("c1")

	if _, ok := users.Lookup("c1"); ok {
		t.Fatalf("user still registered after disconnect")
	}
	left := tr.byEvent(EvUserLeft)
	if len(left) != 1 || left[0].target != presence.LobbyGroup {
		t.Fatalf("userLeft = %+v, want one to lobby", left)
	}
	pl := tr.byEvent(EvPlayerLeft)
	if len(pl) != 1 || pl[0].target != g.ID || !pl[0].group {
		t.Fatalf("playerLeft = %+v, want one to game group", pl)
	}
	if !strings.Contains(pl[0].payload.(string), "alice") {
		t.Fatalf("playerLeft text = %v, want to name alice", pl[0].payload)
	}
	got, ok := games.Find(g.ID)
	if !ok || got.Player1.PlayerID != "" {
		t.Fatalf("slot 1 should be vacated in place, got %+v ok=%v", got, ok)
	}

	// Second player leaves too; the orphaned game is cleaned up.
	e.Disconnect("c2")
	if _, ok := games.Find(g.ID); ok {
		t.Fatalf("game should be removed once both players are gone")
	}
}

func TestMalformedPayloadEmitsFailureOnly(t *testing.T) {
	e, tr, _, users := newTestEngine()
	e.Dispatch("c1", EvJoinGame, raw(`42`))
	if last := tr.last(); last.event != EvJoinGameError {
		t.Fatalf("last emit = %+v, want joinGameError", last)
	}
	if _, ok := users.Lookup("c1"); ok {
		t.Fatalf("presence mutated by malformed payload")
	}
	e.Dispatch("c1", EvUpdateGameState, raw(`"nope"`))
	if last := tr.last(); last.event != EvGameEnded {
		t.Fatalf("last emit = %+v, want gameEnded", last)
	}
}
