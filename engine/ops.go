package engine

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"laughprop/log"
	"laughprop/obj"
	"laughprop/variable"
)

// execute runs one op for cursor c (ownerID nil for the global cursor).
// It returns (blocked, blockedVar). Non-blocking ops always return
// (false, ""); a missing parameter, bad type, or unknown kind is logged
// and treated as non-blocking so a buggy script cannot deadlock the
// session.
func (g *Game) execute(c *Cursor, ownerID *uuid.UUID, op obj.Op) (bool, string) {
	ctx := g.contextFor(c)

	switch op.Kind {
	case obj.OpInitState:
		g.global = variable.NewGlobal()
		for _, pc := range g.perPlayer {
			pc.Local = obj.NewOrderedMap()
		}
		return false, ""

	case obj.OpUI:
		g.execUI(c, ownerID, op, ctx)
		return false, ""

	case obj.OpRandomChoice:
		choices := g.requireExpand(op, "choices", ctx)
		items := asItems(choices)
		if len(items) == 0 {
			g.scriptError(op, "random_choice: empty or missing choices")
			return false, ""
		}
		pick := items[rand.IntN(len(items))]
		g.writeOut(op, ctx, pick)
		return false, ""

	case obj.OpPerPlayer:
		for _, pid := range g.currentMembers() {
			id := pid
			g.perPlayer[pid] = newCursor(op.Ops, &id)
		}
		return false, ""

	case obj.OpWaitVar:
		varName := g.requireStringArg(op, "var")
		if varName == "" {
			return false, ""
		}
		ok, err := variable.Exists(ctx, varName)
		if err != nil {
			g.scriptError(op, "wait_var: %v", err)
			return false, ""
		}
		if ok {
			return false, ""
		}
		return true, varName

	case obj.OpWaitVarAll:
		varName := g.requireStringArg(op, "var")
		if varName == "" {
			return false, ""
		}
		if ownerID != nil {
			g.scriptError(op, "wait_var_all: only valid in the global cursor")
			return false, ""
		}
		for _, pid := range g.currentMembers() {
			pc, ok := g.perPlayer[pid]
			if !ok {
				continue
			}
			present, err := variable.Exists(variable.Context{Global: g.global, Local: pc.Local}, varName)
			if err != nil || !present {
				return true, varName
			}
		}
		return false, ""

	case obj.OpTxt2Img:
		g.execTxt2Img(c, ownerID, op, ctx)
		return false, ""

	case obj.OpDepth2Img:
		g.execDepth2Img(c, ownerID, op, ctx)
		return false, ""

	case obj.OpSketch2Img:
		g.execSketch2Img(c, ownerID, op, ctx)
		return false, ""

	case obj.OpKeysToList:
		m := g.requireExpand(op, "map_var", ctx)
		if m.Kind != obj.KindMap || m.Map == nil {
			g.scriptError(op, "keys_to_list: map_var is not a map")
			return false, ""
		}
		keys := m.Map.Keys()
		out := make([]obj.Value, len(keys))
		for i, k := range keys {
			out[i] = obj.NewString(k)
		}
		g.writeOut(op, ctx, obj.NewList(out))
		return false, ""

	case obj.OpGatherSet:
		vals := g.gatherFromPlayers(op, "each_var")
		g.writeOutGlobal(op, obj.NewSet(vals))
		return false, ""

	case obj.OpGatherList:
		vals := g.gatherFromPlayers(op, "each_var")
		g.writeOutGlobal(op, obj.NewList(vals))
		return false, ""

	case obj.OpGatherMapByPlayer:
		varName := g.requireStringArg(op, "each_var")
		if varName == "" {
			return false, ""
		}
		result := obj.NewOrderedMap()
		for _, pid := range g.currentMembers() {
			pc, ok := g.perPlayer[pid]
			if !ok {
				continue
			}
			v, present, _ := variable.Read(variable.Context{Global: g.global, Local: pc.Local}, varName)
			if present {
				result.Set(pid.String(), v)
			}
		}
		g.writeOutGlobal(op, obj.NewMap(result))
		return false, ""

	case obj.OpGatherImages:
		g.execGatherImages(op, ctx)
		return false, ""

	case obj.OpTally:
		votes := g.requireExpand(op, "votes_var", ctx)
		g.writeOut(op, ctx, tally(asItems(votes)))
		return false, ""

	case obj.OpSelect:
		g.execSelect(op, ctx)
		return false, ""

	case obj.OpCopy:
		from := g.requireExpand(op, "from", ctx)
		g.writeOut(op, ctx, from)
		return false, ""

	case obj.OpDelete:
		varName := g.requireStringArg(op, "var")
		if varName != "" {
			if err := variable.Delete(ctx, varName); err != nil {
				g.scriptError(op, "delete: %v", err)
			}
		}
		return false, ""

	case obj.OpMakeMap:
		g.execMakeMap(op, ctx)
		return false, ""

	case obj.OpPairPlayers:
		g.execPairPlayers(op)
		return false, ""

	case obj.OpRemapKeys:
		g.execRemapKeys(op, ctx)
		return false, ""

	case obj.OpInvertMap:
		g.execInvertMap(op, ctx)
		return false, ""

	case obj.OpComposeMaps:
		g.execComposeMaps(op, ctx)
		return false, ""

	case obj.OpOurPlayerID:
		if ownerID == nil {
			g.scriptError(op, "our_player_id: nonsense in the global cursor")
			return false, ""
		}
		g.writeOut(op, ctx, obj.NewString(ownerID.String()))
		return false, ""

	case obj.OpLogMessage:
		g.execLogMessage(op, ctx)
		return false, ""

	default:
		g.scriptError(op, "unknown op kind %q", op.Kind)
		return false, ""
	}
}

func (g *Game) scriptError(op obj.Op, format string, args ...interface{}) {
	log.Warn("script error", "op", op.Kind, "detail", fmt.Sprintf(format, args...))
}

// requireExpand expands args[name], logging and returning Null if absent.
func (g *Game) requireExpand(op obj.Op, name string, ctx variable.Context) obj.Value {
	v, ok := op.Args[name]
	if !ok {
		g.scriptError(op, "missing required argument %q", name)
		return obj.Null()
	}
	return variable.Expand(v, ctx)
}

// requireStringArg returns the literal (unexpanded) string arg, used for
// variable-name arguments such as "var" and "out" which name a key rather
// than hold a value to expand.
func (g *Game) requireStringArg(op obj.Op, name string) string {
	v, ok := op.Args[name]
	if !ok || v.Kind != obj.KindString || v.Str == "" {
		g.scriptError(op, "missing or malformed required argument %q", name)
		return ""
	}
	return v.Str
}

func (g *Game) writeOut(op obj.Op, ctx variable.Context, v obj.Value) {
	out := g.requireStringArg(op, "out")
	if out == "" {
		return
	}
	if err := variable.Write(ctx, out, v); err != nil {
		g.scriptError(op, "writing out: %v", err)
	}
}

func (g *Game) writeOutGlobal(op obj.Op, v obj.Value) {
	g.writeOut(op, variable.Context{Global: g.global}, v)
}

// asItems flattens a list/set Value into its elements; any other kind is
// treated as a single-element sequence.
func asItems(v obj.Value) []obj.Value {
	switch v.Kind {
	case obj.KindList:
		return v.List
	case obj.KindSet:
		return v.Set
	case obj.KindNull:
		return nil
	default:
		return []obj.Value{v}
	}
}

// gatherFromPlayers collects each_var's value from every current
// per-player context, in stable member-iteration order.
func (g *Game) gatherFromPlayers(op obj.Op, argName string) []obj.Value {
	varName := g.requireStringArg(op, argName)
	if varName == "" {
		return nil
	}
	var out []obj.Value
	for _, pid := range g.currentMembers() {
		pc, ok := g.perPlayer[pid]
		if !ok {
			continue
		}
		v, present, _ := variable.Read(variable.Context{Global: g.global, Local: pc.Local}, varName)
		if present {
			out = append(out, v)
		}
	}
	return out
}

func (g *Game) execUI(c *Cursor, ownerID *uuid.UUID, op obj.Op, ctx variable.Context) {
	if op.UI == nil {
		g.scriptError(op, "ui: missing command sub-object")
		return
	}
	param := variable.Expand(op.UI.Param, ctx)
	if ownerID != nil && !op.UI.SendToAll {
		g.sink.Send(ownerID, op.UI.Command, param)
		return
	}
	for _, pid := range g.currentMembers() {
		id := pid
		g.sink.Send(&id, op.UI.Command, param)
	}
}

// tally counts occurrences (by printable form) and returns the list of
// values tied for maximum multiplicity, in first-seen order.
func tally(votes []obj.Value) obj.Value {
	counts := make(map[string]int)
	first := make(map[string]obj.Value)
	var order []string
	for _, v := range votes {
		key := v.Printable()
		if _, seen := first[key]; !seen {
			first[key] = v
			order = append(order, key)
		}
		counts[key]++
	}
	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	var winners []obj.Value
	for _, key := range order {
		if counts[key] == max {
			winners = append(winners, first[key])
		}
	}
	return obj.NewList(winners)
}

func (g *Game) execSelect(op obj.Op, ctx variable.Context) {
	keyVal := g.requireExpand(op, "key_var", ctx)
	tableArg, ok := op.Args["table"]
	if ok && tableArg.Kind == obj.KindString {
		// A variable reference such as "@pairs" names the table.
		tableArg = variable.Expand(tableArg, ctx)
	}
	if !ok || tableArg.Kind != obj.KindMap || tableArg.Map == nil {
		g.scriptError(op, "select: table is missing or not a map")
		return
	}
	chosen, found := tableArg.Map.Get(keyVal.Printable())
	if !found {
		g.writeOut(op, ctx, obj.Null())
		return
	}
	g.writeOut(op, ctx, variable.Expand(chosen, ctx))
}

func (g *Game) execMakeMap(op obj.Op, ctx variable.Context) {
	keys := asItems(g.requireExpand(op, "keys", ctx))
	values := asItems(g.requireExpand(op, "values", ctx))
	if len(keys) != len(values) {
		g.scriptError(op, "make_map: keys and values differ in length (%d vs %d)", len(keys), len(values))
		return
	}
	result := obj.NewOrderedMap()
	for i, k := range keys {
		result.Set(k.Printable(), values[i])
	}
	g.writeOut(op, ctx, obj.NewMap(result))
}

func (g *Game) execPairPlayers(op obj.Op) {
	members := g.currentMembers()
	result := obj.NewOrderedMap()
	n := len(members)
	for i, pid := range members {
		if n == 0 {
			break
		}
		next := members[(i+1)%n]
		result.Set(pid.String(), obj.NewString(next.String()))
	}
	g.writeOutGlobal(op, obj.NewMap(result))
}

func (g *Game) execRemapKeys(op obj.Op, ctx variable.Context) {
	src := g.requireExpand(op, "map_var", ctx)
	keyMap := g.requireExpand(op, "key_map", ctx)
	if src.Kind != obj.KindMap || src.Map == nil || keyMap.Kind != obj.KindMap || keyMap.Map == nil {
		g.scriptError(op, "remap_keys: map_var/key_map must be maps")
		return
	}
	result := obj.NewOrderedMap()
	for _, k := range src.Map.Keys() {
		v, _ := src.Map.Get(k)
		newKey, ok := keyMap.Map.Get(k)
		if !ok {
			continue
		}
		result.Set(newKey.Printable(), v)
	}
	g.writeOut(op, ctx, obj.NewMap(result))
}

func (g *Game) execInvertMap(op obj.Op, ctx variable.Context) {
	src := g.requireExpand(op, "map_var", ctx)
	if src.Kind != obj.KindMap || src.Map == nil {
		g.scriptError(op, "invert_map: map_var is not a map")
		return
	}
	result := obj.NewOrderedMap()
	keys := src.Map.Keys()
	seen := make(map[string]bool)
	for _, k := range keys {
		v, _ := src.Map.Get(k)
		vk := v.Printable()
		if seen[vk] {
			log.Warn("invert_map: duplicate value collapses entries", "value", vk)
		}
		seen[vk] = true
		result.Set(vk, obj.NewString(k))
	}
	g.writeOut(op, ctx, obj.NewMap(result))
}

func (g *Game) execComposeMaps(op obj.Op, ctx variable.Context) {
	m1 := g.requireExpand(op, "m1", ctx)
	m2 := g.requireExpand(op, "m2", ctx)
	if m1.Kind != obj.KindMap || m1.Map == nil || m2.Kind != obj.KindMap || m2.Map == nil {
		g.scriptError(op, "compose_maps: m1/m2 must be maps")
		return
	}
	result := obj.NewOrderedMap()
	for _, k := range m1.Map.Keys() {
		mid, _ := m1.Map.Get(k)
		final, ok := m2.Map.Get(mid.Printable())
		if !ok {
			log.Warn("compose_maps: missing second-stage key", "key", mid.Printable())
			continue
		}
		result.Set(k, final)
	}
	g.writeOut(op, ctx, obj.NewMap(result))
}

func (g *Game) execLogMessage(op obj.Op, ctx variable.Context) {
	level := g.requireStringArg(op, "level")
	msg := g.requireExpand(op, "message", ctx).Printable()
	switch level {
	case "debug":
		log.Debug(msg)
	case "warn":
		log.Warn(msg)
	case "error":
		log.Error(msg)
	default:
		log.Info(msg)
	}
}

func (g *Game) execGatherImages(op obj.Op, ctx variable.Context) {
	idsVal := g.requireExpand(op, "ids_var", ctx)
	result := obj.NewOrderedMap()
	for _, item := range asItems(idsVal) {
		id, err := uuid.Parse(item.Printable())
		if err != nil {
			g.scriptError(op, "gather_images: %v", err)
			continue
		}
		img, ok := g.Image(id)
		if !ok {
			g.scriptError(op, "gather_images: unknown image id %s", id)
			continue
		}
		result.Set(id.String(), obj.NewString(img.Payload))
	}
	g.writeOut(op, ctx, obj.NewMap(result))
}
