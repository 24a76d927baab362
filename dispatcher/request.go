package dispatcher

import (
	"github.com/google/uuid"

	"laughprop/obj"
)

// Callback is invoked at most once per request, always with exactly
// batch×iterations entries; it is skipped when the request's alive check
// reports the destination session gone.
type Callback func(images map[uuid.UUID]obj.Image)

// request is the dispatcher-internal mutable tracking object for one
// in-flight generation. It has no external id; it is tracked by pointer
// identity.
type request struct {
	kind       obj.ImageRequestKind
	txt2img    *obj.Txt2ImgParams
	depth2img  *obj.Depth2ImgParams
	sketch2img *obj.Sketch2ImgParams

	callback Callback
	// alive is consulted right before the callback is invoked; it returns
	// false once the destination session has been torn down, in which case
	// the result is discarded instead of delivered.
	alive func() bool

	attempted map[int]bool // upstream indices already tried
}

func (r *request) total() int {
	switch r.kind {
	case obj.RequestTxt2Img:
		return r.txt2img.BatchSize * r.txt2img.Iterations
	case obj.RequestDepth2Img:
		return r.depth2img.BatchSize * r.depth2img.Iterations
	case obj.RequestSketch2Img:
		return r.sketch2img.BatchSize * r.sketch2img.Iterations
	default:
		return 0
	}
}

func (r *request) requiredModel(d *Dispatcher) string {
	switch r.kind {
	case obj.RequestDepth2Img:
		return d.depthModel
	default:
		// txt2img and sketch2img intentionally share the text-to-image
		// model.
		return d.textModel
	}
}

func newTxt2ImgRequest(p obj.Txt2ImgParams, cb Callback, alive func() bool) *request {
	return &request{kind: obj.RequestTxt2Img, txt2img: &p, callback: cb, alive: alive, attempted: map[int]bool{}}
}

func newDepth2ImgRequest(p obj.Depth2ImgParams, cb Callback, alive func() bool) *request {
	return &request{kind: obj.RequestDepth2Img, depth2img: &p, callback: cb, alive: alive, attempted: map[int]bool{}}
}

func newSketch2ImgRequest(p obj.Sketch2ImgParams, cb Callback, alive func() bool) *request {
	return &request{kind: obj.RequestSketch2Img, sketch2img: &p, callback: cb, alive: alive, attempted: map[int]bool{}}
}
