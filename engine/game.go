package engine

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"laughprop/dispatcher"
	"laughprop/log"
	"laughprop/obj"
	"laughprop/variable"
)

// ImageDispatcher is the subset of *dispatcher.Dispatcher the engine calls.
// Declaring it here (rather than depending on the concrete type directly in
// every signature) keeps the engine testable with a recording fake.
type ImageDispatcher interface {
	SubmitTxt2Img(p obj.Txt2ImgParams, alive func() bool, cb dispatcher.Callback)
	SubmitDepth2Img(p obj.Depth2ImgParams, alive func() bool, cb dispatcher.Callback)
	SubmitSketch2Img(p obj.Sketch2ImgParams, alive func() bool, cb dispatcher.Callback)
}

// Game interprets one script against the variable store, coordinating the
// global cursor and zero-or-N per-player cursors.
type Game struct {
	mu sync.Mutex

	global       *obj.OrderedMap
	globalCursor *Cursor
	perPlayer    map[uuid.UUID]*Cursor
	memberOrder  []uuid.UUID // insertion order, for stable gather_list/pair_players

	images   map[uuid.UUID]obj.Image
	imagesMu sync.Mutex

	sink       UISink
	dispatcher ImageDispatcher
	members    func() []uuid.UUID // current session membership, queried live
	alive      func() bool        // false once the owning session is torn down

	Finished bool
}

// NewGame constructs a Game ready to run script. members returns the
// current live session roster (queried fresh on every need, so a
// mid-game join/leave is observed immediately by per_player/gather_*/
// wait_var_all); alive reports whether the owning session still exists,
// consulted by the dispatcher before delivering late results.
func NewGame(script Script, sink UISink, disp ImageDispatcher, members func() []uuid.UUID, alive func() bool) *Game {
	g := &Game{
		global:      variable.NewGlobal(),
		perPlayer:   make(map[uuid.UUID]*Cursor),
		images:      make(map[uuid.UUID]obj.Image),
		sink:        sink,
		dispatcher:  disp,
		members:     members,
		alive:       alive,
	}
	g.globalCursor = newCursor(script, nil)
	return g
}

// HandlePlayerInput writes each entry to the appropriate tier using the
// originating player's local context (creating none if the player has no
// active per-player cursor — the write then targets global or is an error
// if @@-prefixed), then runs a work-until-blocked pass.
func (g *Game) HandlePlayerInput(playerID uuid.UUID, inputs map[string]obj.Value) {
	g.mu.Lock()
	defer g.mu.Unlock()

	local := g.localMapFor(playerID)
	ctx := variable.Context{Global: g.global, Local: local}
	for key, v := range inputs {
		if err := variable.Write(ctx, key, v); err != nil {
			log.Warn("dropping malformed client input", "player", playerID, "key", key, "error", err)
		}
	}
	g.runPass()
}

// HandleGenerationResult is the dispatcher completion callback's shape: it
// writes the id→payload map (keys sorted by id) to destVar in playerID's
// context (or global if playerID is nil), folds each image into the cache,
// then runs a pass.
func (g *Game) HandleGenerationResult(playerID *uuid.UUID, destVar string, images map[uuid.UUID]obj.Image) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.imagesMu.Lock()
	ids := make([]uuid.UUID, 0, len(images))
	for id, img := range images {
		g.images[id] = img
		ids = append(ids, id)
	}
	g.imagesMu.Unlock()

	// Map iteration order is random; sort so the written map has a
	// deterministic (if arbitrary) key order across runs.
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	byID := obj.NewOrderedMap()
	for _, id := range ids {
		byID.Set(id.String(), obj.NewString(images[id].Payload))
	}

	var local *obj.OrderedMap
	if playerID != nil {
		local = g.localMapFor(*playerID)
	}
	ctx := variable.Context{Global: g.global, Local: local}
	if err := variable.Write(ctx, destVar, obj.NewMap(byID)); err != nil {
		log.Warn("failed to write generation result", "var", destVar, "error", err)
	}
	g.runPass()
}

// RemovePlayer drops that player's local cursor and context. Barrier ops
// evaluated afterward observe the reduced membership.
func (g *Game) RemovePlayer(playerID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.perPlayer, playerID)
	g.runPass()
}

func (g *Game) localMapFor(playerID uuid.UUID) *obj.OrderedMap {
	c, ok := g.perPlayer[playerID]
	if !ok {
		return nil
	}
	return c.Local
}

// Tick runs a work-until-blocked pass with no new input, used when a script
// stage can make progress purely from process-internal state (e.g. right
// after a session is created, to run init_state and the first ui ops).
func (g *Game) Tick() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runPass()
}

// runPass is the scheduler: step every per-player cursor to its next
// blocking op, then step the global cursor. Idempotent when nothing has
// changed. Caller holds g.mu.
func (g *Game) runPass() {
	for {
		progressed := false
		for pid, c := range g.perPlayer {
			if g.stepCursor(c, &pid) {
				progressed = true
			}
		}
		if g.stepCursor(g.globalCursor, nil) {
			progressed = true
		}
		if g.globalCursor.State == StateFinished {
			g.Finished = true
		}
		if !progressed {
			return
		}
	}
}

// stepCursor advances c as far as it can without blocking, executing ops
// until a blocking predicate fails or the script ends. A per_player spawn
// does not stop it; the new cursors are stepped on runPass's next loop
// iteration. It returns whether any op ran.
func (g *Game) stepCursor(c *Cursor, ownerID *uuid.UUID) bool {
	ran := false
	for {
		switch c.State {
		case StateFinished:
			return ran
		case StateBlocked:
			// Re-evaluate the op the cursor blocked on: wait_var checks the
			// cursor's own context, wait_var_all every per-player context.
			if stillBlocked, _ := g.execute(c, ownerID, c.Script[c.PC]); stillBlocked {
				return ran
			}
			c.State = StateReady
		case StateReady:
			if c.atEnd() {
				c.State = StateFinished
				return ran
			}
			op := c.Script[c.PC]
			blocked, blockedVar := g.execute(c, ownerID, op)
			ran = true
			if blocked {
				c.State = StateBlocked
				c.BlockedVar = blockedVar
				return ran
			}
			c.PC++
		}
	}
}

func (g *Game) contextFor(c *Cursor) variable.Context {
	return variable.Context{Global: g.global, Local: c.Local}
}

// currentMembers returns the live session roster, refreshing memberOrder to
// preserve first-seen ordering among the still-present members.
func (g *Game) currentMembers() []uuid.UUID {
	live := g.members()
	liveSet := make(map[uuid.UUID]bool, len(live))
	for _, id := range live {
		liveSet[id] = true
	}
	ordered := g.memberOrder[:0:0]
	for _, id := range g.memberOrder {
		if liveSet[id] {
			ordered = append(ordered, id)
		}
	}
	for _, id := range live {
		found := false
		for _, o := range ordered {
			if o == id {
				found = true
				break
			}
		}
		if !found {
			ordered = append(ordered, id)
		}
	}
	g.memberOrder = ordered
	return ordered
}

// Image looks up a cached image by id.
func (g *Game) Image(id uuid.UUID) (obj.Image, bool) {
	g.imagesMu.Lock()
	defer g.imagesMu.Unlock()
	img, ok := g.images[id]
	return img, ok
}

// PlayerCursor exposes a per-player cursor for session-layer diagnostics;
// returns nil if the player has no active per-player scope.
func (g *Game) PlayerCursor(playerID uuid.UUID) *Cursor {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.perPlayer[playerID]
}
