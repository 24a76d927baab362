package session

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laughprop/dispatcher"
	"laughprop/engine"
	"laughprop/obj"
)

type fakeConn struct {
	sent [][]byte
}

func (c *fakeConn) SendBytes(data []byte) { c.sent = append(c.sent, append([]byte(nil), data...)) }

func (c *fakeConn) kinds() []string {
	var out []string
	for _, d := range c.sent {
		var env struct {
			Kind string `json:"kind"`
		}
		_ = json.Unmarshal(d, &env)
		out = append(out, env.Kind)
	}
	return out
}

func (c *fakeConn) last() map[string]interface{} {
	var m map[string]interface{}
	_ = json.Unmarshal(c.sent[len(c.sent)-1], &m)
	return m
}

type fakeDispatcher struct{}

func (fakeDispatcher) SubmitTxt2Img(obj.Txt2ImgParams, func() bool, dispatcher.Callback)     {}
func (fakeDispatcher) SubmitDepth2Img(obj.Depth2ImgParams, func() bool, dispatcher.Callback) {}
func (fakeDispatcher) SubmitSketch2Img(obj.Sketch2ImgParams, func() bool, dispatcher.Callback) {
}

var _ engine.ImageDispatcher = fakeDispatcher{}

func trivialGame() obj.Script {
	return obj.Script{
		{Kind: obj.OpUI, UI: &obj.UICommand{Command: "start", SendToAll: true}},
	}
}

func TestStartNewGameAssignsCodeAndIsIdempotentWhileSolo(t *testing.T) {
	r := NewRouter(map[string]obj.Script{"icebreaker": trivialGame()}, fakeDispatcher{})
	p1 := uuid.New()
	conn := &fakeConn{}
	r.Connect(p1, conn)

	r.HandleMessage(p1, envelope(t, obj.MsgStartNewGame, obj.StartNewGameMsg{PlayerID: p1.String()}))
	require.Len(t, conn.sent, 1)
	first := conn.last()
	code := first["sessionCode"].(string)
	require.Len(t, code, 4)

	r.HandleMessage(p1, envelope(t, obj.MsgStartNewGame, obj.StartNewGameMsg{PlayerID: p1.String()}))
	second := conn.last()
	assert.Equal(t, code, second["sessionCode"])
}

func TestJoinGameBroadcastsSelectGame(t *testing.T) {
	r := NewRouter(map[string]obj.Script{"icebreaker": trivialGame()}, fakeDispatcher{})
	host, guest := uuid.New(), uuid.New()
	hostConn, guestConn := &fakeConn{}, &fakeConn{}
	r.Connect(host, hostConn)
	r.Connect(guest, guestConn)

	r.HandleMessage(host, envelope(t, obj.MsgStartNewGame, obj.StartNewGameMsg{PlayerID: host.String()}))
	code := hostConn.last()["sessionCode"].(string)

	r.HandleMessage(guest, envelope(t, obj.MsgJoinGame, obj.JoinGameMsg{SessionCode: code, PlayerID: guest.String()}))

	assert.Contains(t, hostConn.kinds(), obj.MsgSelectGame)
	assert.Contains(t, guestConn.kinds(), obj.MsgSelectGame)
}

func TestJoinUnknownCodeFailsToJoin(t *testing.T) {
	r := NewRouter(map[string]obj.Script{}, fakeDispatcher{})
	p := uuid.New()
	conn := &fakeConn{}
	r.Connect(p, conn)

	r.HandleMessage(p, envelope(t, obj.MsgJoinGame, obj.JoinGameMsg{SessionCode: "ZZZZ", PlayerID: p.String()}))
	assert.Contains(t, conn.kinds(), obj.MsgFailedToJoin)
}

func TestVoteStartsGameOnceEveryoneHasVoted(t *testing.T) {
	r := NewRouter(map[string]obj.Script{"icebreaker": trivialGame()}, fakeDispatcher{})
	host, guest := uuid.New(), uuid.New()
	hostConn, guestConn := &fakeConn{}, &fakeConn{}
	r.Connect(host, hostConn)
	r.Connect(guest, guestConn)

	r.HandleMessage(host, envelope(t, obj.MsgStartNewGame, obj.StartNewGameMsg{PlayerID: host.String()}))
	code := hostConn.last()["sessionCode"].(string)
	r.HandleMessage(guest, envelope(t, obj.MsgJoinGame, obj.JoinGameMsg{SessionCode: code, PlayerID: guest.String()}))

	r.HandleMessage(host, envelope(t, obj.MsgChooseGame, obj.ChooseGameMsg{Name: "icebreaker"}))
	assert.NotContains(t, hostConn.kinds(), obj.MsgClientUi, "should not start until guest also votes")

	r.HandleMessage(guest, envelope(t, obj.MsgChooseGame, obj.ChooseGameMsg{Name: "icebreaker"}))
	assert.Contains(t, hostConn.kinds(), obj.MsgClientUi)
	assert.Contains(t, guestConn.kinds(), obj.MsgClientUi)
}

func TestVoteDoesNotStartBelowTwoMembers(t *testing.T) {
	r := NewRouter(map[string]obj.Script{"icebreaker": trivialGame()}, fakeDispatcher{})
	host := uuid.New()
	hostConn := &fakeConn{}
	r.Connect(host, hostConn)
	r.HandleMessage(host, envelope(t, obj.MsgStartNewGame, obj.StartNewGameMsg{PlayerID: host.String()}))

	r.HandleMessage(host, envelope(t, obj.MsgChooseGame, obj.ChooseGameMsg{Name: "icebreaker"}))
	assert.NotContains(t, hostConn.kinds(), obj.MsgClientUi)
}

func TestLeaveEmptiesAndDestroysSession(t *testing.T) {
	r := NewRouter(map[string]obj.Script{}, fakeDispatcher{})
	p := uuid.New()
	conn := &fakeConn{}
	r.Connect(p, conn)
	r.HandleMessage(p, envelope(t, obj.MsgStartNewGame, obj.StartNewGameMsg{PlayerID: p.String()}))
	code := conn.last()["sessionCode"].(string)

	r.HandleMessage(p, envelope(t, obj.MsgLeaveGame, obj.LeaveGameMsg{}))

	r.mu.Lock()
	_, exists := r.sessions[code]
	r.mu.Unlock()
	assert.False(t, exists)
}

func TestDisconnectDuringGameLetsBarrierConverge(t *testing.T) {
	script := obj.Script{
		{Kind: obj.OpPerPlayer, Ops: obj.Script{
			{Kind: obj.OpWaitVar, Args: map[string]obj.Value{"var": obj.NewString("@@done")}},
		}},
		{Kind: obj.OpWaitVarAll, Args: map[string]obj.Value{"var": obj.NewString("@@done")}},
		{Kind: obj.OpUI, UI: &obj.UICommand{Command: "done", SendToAll: true}},
	}
	r := NewRouter(map[string]obj.Script{"g": script}, fakeDispatcher{})
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	ca, cb, cc := &fakeConn{}, &fakeConn{}, &fakeConn{}
	r.Connect(a, ca)
	r.Connect(b, cb)
	r.Connect(c, cc)

	r.HandleMessage(a, envelope(t, obj.MsgStartNewGame, obj.StartNewGameMsg{PlayerID: a.String()}))
	code := ca.last()["sessionCode"].(string)
	r.HandleMessage(b, envelope(t, obj.MsgJoinGame, obj.JoinGameMsg{SessionCode: code, PlayerID: b.String()}))
	r.HandleMessage(c, envelope(t, obj.MsgJoinGame, obj.JoinGameMsg{SessionCode: code, PlayerID: c.String()}))

	r.HandleMessage(a, envelope(t, obj.MsgChooseGame, obj.ChooseGameMsg{Name: "g"}))
	r.HandleMessage(b, envelope(t, obj.MsgChooseGame, obj.ChooseGameMsg{Name: "g"}))
	r.HandleMessage(c, envelope(t, obj.MsgChooseGame, obj.ChooseGameMsg{Name: "g"}))

	r.Disconnect(c)
	r.HandleMessage(a, envelope(t, obj.MsgClientInput, obj.ClientInputMsg{Inputs: map[string]obj.Value{"@@done": obj.NewBool(true)}}))
	assert.NotContains(t, ca.kinds(), obj.MsgReturnToLobby, "still waiting on b")

	r.HandleMessage(b, envelope(t, obj.MsgClientInput, obj.ClientInputMsg{Inputs: map[string]obj.Value{"@@done": obj.NewBool(true)}}))
	assert.Contains(t, ca.kinds(), obj.MsgReturnToLobby)
	assert.Contains(t, cb.kinds(), obj.MsgReturnToLobby)
}

func TestPluralityWinnerPicksMajority(t *testing.T) {
	winner := pluralityWinner(map[string]int{"a": 3, "b": 1})
	assert.Equal(t, "a", winner)
}

func TestPluralityWinnerBreaksTies(t *testing.T) {
	winner := pluralityWinner(map[string]int{"a": 1, "b": 1})
	assert.Contains(t, []string{"a", "b"}, winner)
}

func envelope(t *testing.T, kind string, payload interface{}) []byte {
	t.Helper()
	data, err := obj.Encode(kind, payload)
	require.NoError(t, err)
	return data
}
