package obj

import "github.com/google/uuid"

// Image is a single generated or placeholder picture, base64-encoded,
// cached per-Game for the duration of the Game.
type Image struct {
	ID      uuid.UUID
	Payload string // base64
}

// ImageRequestKind distinguishes the three generation flavors the dispatcher
// supports; each has its own parameter shape below.
type ImageRequestKind int

const (
	RequestTxt2Img ImageRequestKind = iota
	RequestDepth2Img
	RequestSketch2Img
)

// Txt2ImgParams are the parameters for a text-to-image request.
type Txt2ImgParams struct {
	Prompt         string
	NegativePrompt string
	BatchSize      int
	Iterations     int
	Seed           int64
}

// Depth2ImgParams are the parameters for a depth-conditioned request.
type Depth2ImgParams struct {
	InitImagePath     string // asset path, resolved and cached by the dispatcher
	Prompt            string
	NegativePrompt    string
	DenoisingStrength float64
	Sampler           string
	BatchSize         int
	Iterations        int
	Seed              int64
}

// Sketch2ImgParams are the parameters for a scribble-conditioned request.
type Sketch2ImgParams struct {
	Prompt     string
	ImageB64   string // the submitted drawing
	BatchSize  int
	Iterations int
	Seed       int64
}
