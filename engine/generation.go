package engine

import (
	"math/rand/v2"

	"github.com/google/uuid"

	"laughprop/dispatcher"
	"laughprop/obj"
	"laughprop/variable"
)

// field helpers pull a typed value out of an expanded params map, applying
// the documented default when absent.

func fieldString(m *obj.OrderedMap, key, def string) string {
	if m == nil {
		return def
	}
	if v, ok := m.Get(key); ok && v.Kind == obj.KindString {
		return v.Str
	}
	return def
}

func fieldNumber(m *obj.OrderedMap, key string, def float64) float64 {
	if m == nil {
		return def
	}
	if v, ok := m.Get(key); ok && v.Kind == obj.KindNumber {
		return v.Num
	}
	return def
}

func fieldInt(m *obj.OrderedMap, key string, def int) int {
	return int(fieldNumber(m, key, float64(def)))
}

func seedFor(m *obj.OrderedMap) int64 {
	if m != nil {
		if v, ok := m.Get("seed"); ok && v.Kind == obj.KindNumber {
			return int64(v.Num)
		}
	}
	return rand.Int64()
}

// onResult closes over the cursor's owner so the eventual callback (which
// runs on a dispatcher goroutine, not under g.mu) writes back into the
// correct context and re-enters the scheduler.
func (g *Game) onResult(ownerID *uuid.UUID, destVar string) dispatcher.Callback {
	return func(images map[uuid.UUID]obj.Image) {
		g.HandleGenerationResult(ownerID, destVar, images)
	}
}

func (g *Game) execTxt2Img(c *Cursor, ownerID *uuid.UUID, op obj.Op, ctx variable.Context) {
	params := g.requireExpand(op, "params", ctx)
	out := g.requireStringArg(op, "out")
	if out == "" {
		return
	}
	p := obj.Txt2ImgParams{
		Prompt:         fieldString(params.Map, "prompt", ""),
		NegativePrompt: fieldString(params.Map, "negative_prompt", ""),
		BatchSize:      fieldInt(params.Map, "batch_size", 1),
		Iterations:     fieldInt(params.Map, "iterations", 1),
		Seed:           seedFor(params.Map),
	}
	g.dispatcher.SubmitTxt2Img(p, g.alive, g.onResult(ownerID, out))
}

func (g *Game) execDepth2Img(c *Cursor, ownerID *uuid.UUID, op obj.Op, ctx variable.Context) {
	params := g.requireExpand(op, "params", ctx)
	out := g.requireStringArg(op, "out")
	if out == "" {
		return
	}
	p := obj.Depth2ImgParams{
		InitImagePath:     fieldString(params.Map, "init_image", ""),
		Prompt:            fieldString(params.Map, "prompt", ""),
		NegativePrompt:    fieldString(params.Map, "negative_prompt", ""),
		DenoisingStrength: fieldNumber(params.Map, "denoising_strength", 0.6),
		Sampler:           fieldString(params.Map, "sampler", "DDIM"),
		BatchSize:         fieldInt(params.Map, "batch_size", 1),
		Iterations:        fieldInt(params.Map, "iterations", 1),
		Seed:              seedFor(params.Map),
	}
	g.dispatcher.SubmitDepth2Img(p, g.alive, g.onResult(ownerID, out))
}

func (g *Game) execSketch2Img(c *Cursor, ownerID *uuid.UUID, op obj.Op, ctx variable.Context) {
	prompt := g.requireExpand(op, "prompt", ctx).Printable()
	image := g.requireExpand(op, "image", ctx).Printable()
	out := g.requireStringArg(op, "out")
	if out == "" {
		return
	}
	p := obj.Sketch2ImgParams{
		Prompt:     prompt,
		ImageB64:   image,
		BatchSize:  1,
		Iterations: 1,
		Seed:       rand.Int64(),
	}
	g.dispatcher.SubmitSketch2Img(p, g.alive, g.onResult(ownerID, out))
}
