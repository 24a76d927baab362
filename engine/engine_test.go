package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laughprop/obj"
)

func strArg(s string) obj.Value { return obj.NewString(s) }

func membersOf(ids ...uuid.UUID) func() []uuid.UUID {
	return func() []uuid.UUID { return ids }
}

func alwaysAlive() bool { return true }

// TestBarrierConvergesOnDisconnect covers three players entering a
// per_player block ending in @@done; one disconnects before writing,
// and wait_var_all must unblock once the remaining two have.
func TestBarrierConvergesOnDisconnect(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	members := []uuid.UUID{a, b, c}
	memberFn := func() []uuid.UUID { return members }

	script := obj.Script{
		{Kind: obj.OpPerPlayer, Ops: obj.Script{
			{Kind: obj.OpWaitVar, Args: map[string]obj.Value{"var": strArg("@@done")}},
		}},
		{Kind: obj.OpWaitVarAll, Args: map[string]obj.Value{"var": strArg("@@done")}},
		{Kind: obj.OpUI, UI: &obj.UICommand{Command: "all_done", SendToAll: true}},
	}

	sink := &RecordingSink{}
	g := NewGame(script, sink, &fakeDispatcher{}, memberFn, alwaysAlive)
	g.Tick()

	require.Equal(t, StateBlocked, g.globalCursor.State)

	// B disconnects before ever writing @@done.
	members = []uuid.UUID{a, c}
	g.RemovePlayer(b)

	g.HandlePlayerInput(a, map[string]obj.Value{"@@done": obj.NewBool(true)})
	assert.Equal(t, StateBlocked, g.globalCursor.State, "should still wait on C")

	g.HandlePlayerInput(c, map[string]obj.Value{"@@done": obj.NewBool(true)})
	assert.True(t, g.Finished)
	assert.Len(t, sink.Sent, 2) // one all_done each for a and c
}

// TestPerPlayerCursorIsolation checks that each player's per_player cursor
// writes to its own isolated local scope.
func TestPerPlayerCursorIsolation(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	members := []uuid.UUID{p1, p2}

	script := obj.Script{
		{Kind: obj.OpPerPlayer, Ops: obj.Script{
			{Kind: obj.OpCopy, Args: map[string]obj.Value{"from": obj.NewNumber(1), "out": strArg("@@n")}},
			{Kind: obj.OpCopy, Args: map[string]obj.Value{"from": obj.NewNumber(2), "out": strArg("@@n")}},
			{Kind: obj.OpWaitVar, Args: map[string]obj.Value{"var": strArg("@@x")}},
		}},
		{Kind: obj.OpWaitVarAll, Args: map[string]obj.Value{"var": strArg("@@x")}},
		{Kind: obj.OpGatherList, Args: map[string]obj.Value{"each_var": strArg("@@n"), "out": strArg("@out")}},
	}

	sink := &RecordingSink{}
	g := NewGame(script, sink, &fakeDispatcher{}, membersOf(p1, p2), alwaysAlive)
	g.Tick()
	g.HandlePlayerInput(p1, map[string]obj.Value{"@@x": obj.NewBool(true)})
	g.HandlePlayerInput(p2, map[string]obj.Value{"@@x": obj.NewBool(true)})

	require.True(t, g.Finished)
	v, ok := g.global.Get("out")
	require.True(t, ok)
	require.Len(t, v.List, 2)
	assert.Equal(t, float64(2), v.List[0].Num)
	assert.Equal(t, float64(2), v.List[1].Num)
}

func TestTallyReturnsTiedArgmax(t *testing.T) {
	votes := []obj.Value{obj.NewString("kermit"), obj.NewString("sasquatch")}
	result := tally(votes)
	assert.Len(t, result.List, 2)
}

func TestInvertMapInvolution(t *testing.T) {
	m := obj.NewOrderedMap()
	m.Set("a", obj.NewString("1"))
	m.Set("b", obj.NewString("2"))

	script := obj.Script{
		{Kind: obj.OpInvertMap, Args: map[string]obj.Value{"map_var": obj.NewString("@m"), "out": strArg("@inv")}},
		{Kind: obj.OpInvertMap, Args: map[string]obj.Value{"map_var": obj.NewString("@inv"), "out": strArg("@back")}},
	}
	sink := &RecordingSink{}
	g := NewGame(script, sink, &fakeDispatcher{}, membersOf(), alwaysAlive)
	g.global.Set("m", obj.NewMap(m))
	g.Tick()

	back, ok := g.global.Get("back")
	require.True(t, ok)
	a, _ := back.Map.Get("a")
	b, _ := back.Map.Get("b")
	assert.Equal(t, "1", a.Str)
	assert.Equal(t, "2", b.Str)
}

func TestKeysToListThenMakeMapRoundTrips(t *testing.T) {
	src := obj.NewOrderedMap()
	src.Set("x", obj.NewNumber(1))
	src.Set("y", obj.NewNumber(2))

	script := obj.Script{
		{Kind: obj.OpKeysToList, Args: map[string]obj.Value{"map_var": obj.NewString("@m"), "out": strArg("@keys")}},
		{Kind: obj.OpCopy, Args: map[string]obj.Value{"from": obj.NewString("@m"), "out": strArg("@vcopy")}},
		{Kind: obj.OpMakeMap, Args: map[string]obj.Value{"keys": obj.NewString("@keys"), "values": obj.NewString("@vals"), "out": strArg("@back")}},
	}
	sink := &RecordingSink{}
	g := NewGame(script, sink, &fakeDispatcher{}, membersOf(), alwaysAlive)
	g.global.Set("m", obj.NewMap(src))
	g.global.Set("vals", obj.NewList([]obj.Value{obj.NewNumber(1), obj.NewNumber(2)}))
	g.Tick()

	keys, ok := g.global.Get("keys")
	require.True(t, ok)
	assert.Equal(t, []obj.Value{obj.NewString("x"), obj.NewString("y")}, keys.List)

	back, ok := g.global.Get("back")
	require.True(t, ok)
	require.Equal(t, obj.KindMap, back.Kind)
	assert.Equal(t, []string{"x", "y"}, back.Map.Keys())
	x, _ := back.Map.Get("x")
	y, _ := back.Map.Get("y")
	assert.Equal(t, float64(1), x.Num)
	assert.Equal(t, float64(2), y.Num)
}

func TestUIBroadcastReachesCurrentMembersNotCreationTimeSet(t *testing.T) {
	p1, p2, p3 := uuid.New(), uuid.New(), uuid.New()
	members := []uuid.UUID{p1, p2}
	memberFn := func() []uuid.UUID { return members }

	script := obj.Script{
		{Kind: obj.OpPerPlayer, Ops: obj.Script{
			{Kind: obj.OpWaitVar, Args: map[string]obj.Value{"var": strArg("@@go")}},
			{Kind: obj.OpUI, UI: &obj.UICommand{Command: "ping", SendToAll: true}},
		}},
	}
	sink := &RecordingSink{}
	g := NewGame(script, sink, &fakeDispatcher{}, memberFn, alwaysAlive)
	g.Tick()

	members = []uuid.UUID{p1, p2, p3} // p3 joins after per_player spawned
	g.HandlePlayerInput(p1, map[string]obj.Value{"@@go": obj.NewBool(true)})

	var recipients []uuid.UUID
	for _, s := range sink.Sent {
		recipients = append(recipients, *s.PlayerID)
	}
	assert.Contains(t, recipients, p3)
}

func TestGenerationResultWritesMapAndCache(t *testing.T) {
	fd := &fakeDispatcher{}
	script := obj.Script{
		{Kind: obj.OpTxt2Img, Args: map[string]obj.Value{
			"params": obj.NewMap(func() *obj.OrderedMap {
				m := obj.NewOrderedMap()
				m.Set("prompt", obj.NewString("kermit"))
				m.Set("batch_size", obj.NewNumber(1))
				m.Set("iterations", obj.NewNumber(1))
				return m
			}()),
			"out": strArg("@img"),
		}},
		{Kind: obj.OpWaitVar, Args: map[string]obj.Value{"var": strArg("@img")}},
	}
	sink := &RecordingSink{}
	g := NewGame(script, sink, fd, membersOf(), alwaysAlive)
	g.Tick()
	require.Len(t, fd.txt2imgCalls, 1)
	fd.txt2imgCalls[0]()

	v, ok := g.global.Get("img")
	require.True(t, ok)
	require.Equal(t, obj.KindMap, v.Kind)
	require.Equal(t, 1, v.Map.Len())
	key := v.Map.Keys()[0]
	payload, _ := v.Map.Get(key)
	assert.Equal(t, "x", payload.Str)

	id, err := uuid.Parse(key)
	require.NoError(t, err)
	cached, ok := g.Image(id)
	require.True(t, ok)
	assert.Equal(t, "x", cached.Payload)
	assert.True(t, g.Finished)
}
