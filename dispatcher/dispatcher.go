// Package dispatcher multiplexes scripted image-generation requests across
// a pool of upstream HTTP image servers, with per-upstream FIFO ordering,
// at-most-one-in-flight-per-upstream, cross-server retry, and a placeholder
// fallback once every upstream has been tried.
package dispatcher

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"laughprop/log"
	"laughprop/obj"
)

// Dispatcher owns the upstream pool and the dispatch loop. A Dispatcher is
// process-global and read-mostly after construction.
type Dispatcher struct {
	mu        sync.Mutex
	upstreams []*upstream

	textModel  string
	depthModel string
	sampler    string

	client      UpstreamClient
	assets      *assetCache
	placeholders []string

	ctx    context.Context
	cancel context.CancelFunc
}

// Config carries the process-start configuration for the dispatcher; it is
// never mutated afterward.
type Config struct {
	Addresses    []Address
	TextModel    string
	DepthModel   string
	Sampler      string
	PlaceholderDir string
	Client       UpstreamClient // nil uses the real HTTP client
	RequestTimeout time.Duration
}

func New(cfg Config) (*Dispatcher, error) {
	client := cfg.Client
	if client == nil {
		timeout := cfg.RequestTimeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = NewHTTPClient(timeout)
	}

	var pool []string
	if cfg.PlaceholderDir != "" {
		loaded, err := loadPlaceholderPool(cfg.PlaceholderDir)
		if err != nil {
			return nil, fmt.Errorf("loading placeholder pool: %w", err)
		}
		pool = loaded
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		textModel:    cfg.TextModel,
		depthModel:   cfg.DepthModel,
		sampler:      cfg.Sampler,
		client:       client,
		assets:       newAssetCache(),
		placeholders: pool,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, a := range cfg.Addresses {
		d.upstreams = append(d.upstreams, &upstream{addr: a})
	}
	return d, nil
}

// Close cancels the context every upstream call is made with. In-flight
// calls are aborted and later ones fail at once, so outstanding requests
// go through the retry path and end in placeholder delivery; polling and
// callbacks are not stopped.
func (d *Dispatcher) Close() {
	d.cancel()
}

// SubmitTxt2Img enqueues a text-to-image request. alive is consulted before
// the callback fires; it should report whether the destination session is
// still live.
func (d *Dispatcher) SubmitTxt2Img(p obj.Txt2ImgParams, alive func() bool, cb Callback) {
	d.submit(newTxt2ImgRequest(p, cb, alive))
}

func (d *Dispatcher) SubmitDepth2Img(p obj.Depth2ImgParams, alive func() bool, cb Callback) {
	d.submit(newDepth2ImgRequest(p, cb, alive))
}

func (d *Dispatcher) SubmitSketch2Img(p obj.Sketch2ImgParams, alive func() bool, cb Callback) {
	d.submit(newSketch2ImgRequest(p, cb, alive))
}

func (d *Dispatcher) submit(r *request) {
	d.mu.Lock()
	idx, ok := d.pickUpstreamLocked(r)
	if !ok {
		d.mu.Unlock()
		d.exhaust(r)
		return
	}
	d.upstreams[idx].enqueue(r)
	d.mu.Unlock()
	d.poll()
}

// pickUpstreamLocked implements "sort upstreams ascending by pending-queue
// length; for the first one the request has not yet attempted, mark it
// attempted" without an actual sort, by scanning for the minimum among
// untried upstreams. Caller holds d.mu.
func (d *Dispatcher) pickUpstreamLocked(r *request) (int, bool) {
	best := -1
	for i, u := range d.upstreams {
		if r.attempted[i] {
			continue
		}
		if best == -1 || u.pendingLen() < d.upstreams[best].pendingLen() {
			best = i
		}
	}
	if best == -1 {
		return 0, false
	}
	r.attempted[best] = true
	return best, true
}

// poll scans every upstream for idle-with-pending-work and kicks off the
// model-check→submit protocol for each such pair outside the lock, so HTTP
// I/O never runs while d.mu is held.
func (d *Dispatcher) poll() {
	type job struct {
		idx int
		r   *request
	}
	var jobs []job

	d.mu.Lock()
	for i, u := range d.upstreams {
		if u.inFlight || len(u.queue) == 0 {
			continue
		}
		r := u.popHead()
		u.inFlight = true
		jobs = append(jobs, job{idx: i, r: r})
	}
	d.mu.Unlock()

	for _, j := range jobs {
		go d.process(j.idx, j.r)
	}
}

// process runs the model-switch-then-submit protocol for one request
// against one upstream, with no dispatcher lock held.
func (d *Dispatcher) process(idx int, r *request) {
	addr := d.upstreams[idx].addr
	required := r.requiredModel(d)

	if err := d.ensureModel(idx, addr, required); err != nil {
		log.Warn("upstream model switch failed", "upstream", addr.String(), "error", err)
		d.retry(idx, r)
		return
	}

	images, err := d.submitPayload(addr, r)
	if err != nil {
		log.Warn("upstream generation failed", "upstream", addr.String(), "error", err)
		d.retry(idx, r)
		return
	}

	result := padAndMintIDs(images, r.total())
	d.finishUpstream(idx)
	d.deliver(r, result)
}

func (d *Dispatcher) ensureModel(idx int, addr Address, required string) error {
	d.mu.Lock()
	u := d.upstreams[idx]
	known := u.haveModel && u.knownModel == required
	d.mu.Unlock()
	if known || required == "" {
		return nil
	}

	current, err := d.client.GetModel(d.ctx, addr)
	if err != nil {
		return err
	}
	if current != required {
		if err := d.client.SetModel(d.ctx, addr, required); err != nil {
			return err
		}
	}

	d.mu.Lock()
	u.knownModel = required
	u.haveModel = true
	d.mu.Unlock()
	return nil
}

func (d *Dispatcher) submitPayload(addr Address, r *request) ([]string, error) {
	switch r.kind {
	case obj.RequestTxt2Img:
		p := r.txt2img
		return d.client.Txt2Img(d.ctx, addr, Txt2ImgPayload{
			Prompt:         p.Prompt,
			NegativePrompt: p.NegativePrompt,
			BatchSize:      p.BatchSize,
			NIter:          p.Iterations,
			Seed:           p.Seed,
		})
	case obj.RequestSketch2Img:
		p := r.sketch2img
		return d.client.Txt2Img(d.ctx, addr, Txt2ImgPayload{
			Prompt:    p.Prompt,
			BatchSize: p.BatchSize,
			NIter:     p.Iterations,
			Seed:      p.Seed,
			AlwaysOnScripts: map[string]interface{}{
				"controlnet": map[string]interface{}{
					"args": []ControlNetArg{{
						InputImage:  p.ImageB64,
						Module:      "scribble",
						Model:       d.textModel,
						InvertInput: true,
					}},
				},
			},
		})
	case obj.RequestDepth2Img:
		p := r.depth2img
		initB64, err := d.assets.load(p.InitImagePath)
		if err != nil {
			return nil, fmt.Errorf("loading init image %q: %w", p.InitImagePath, err)
		}
		return d.client.Img2Img(d.ctx, addr, Img2ImgPayload{
			InitImages:        []string{initB64},
			Prompt:            p.Prompt,
			NegativePrompt:    p.NegativePrompt,
			DenoisingStrength: p.DenoisingStrength,
			SamplerName:       p.Sampler,
			BatchSize:         p.BatchSize,
			NIter:             p.Iterations,
			Seed:              p.Seed,
		})
	default:
		return nil, fmt.Errorf("unknown request kind %v", r.kind)
	}
}

func (d *Dispatcher) finishUpstream(idx int) {
	d.mu.Lock()
	d.upstreams[idx].inFlight = false
	d.mu.Unlock()
	d.poll()
}

// retry clears the in-flight token and re-dispatches the request via the
// selection algorithm; once every upstream has been attempted it falls
// back to placeholders instead.
func (d *Dispatcher) retry(idx int, r *request) {
	d.mu.Lock()
	d.upstreams[idx].inFlight = false
	next, ok := d.pickUpstreamLocked(r)
	if ok {
		d.upstreams[next].enqueue(r)
	}
	d.mu.Unlock()

	if !ok {
		d.exhaust(r)
		return
	}
	d.poll()
}

func (d *Dispatcher) exhaust(r *request) {
	total := r.total()
	result := make(map[uuid.UUID]obj.Image, total)
	for i := 0; i < total; i++ {
		id := uuid.New()
		payload := ""
		if len(d.placeholders) > 0 {
			payload = d.placeholders[rand.IntN(len(d.placeholders))]
		} else {
			log.Error("placeholder pool empty, delivering blank image", "request_kind", r.kind)
		}
		result[id] = obj.Image{ID: id, Payload: payload}
	}
	d.deliver(r, result)
}

func (d *Dispatcher) deliver(r *request, images map[uuid.UUID]obj.Image) {
	if r.alive != nil && !r.alive() {
		log.Debug("discarding generation result for torn-down session")
		return
	}
	r.callback(images)
}

// padAndMintIDs mints a fresh id per returned image, padding by duplicating
// the first image if the upstream returned fewer than requested.
func padAndMintIDs(images []string, want int) map[uuid.UUID]obj.Image {
	result := make(map[uuid.UUID]obj.Image, want)
	if len(images) == 0 {
		for i := 0; i < want; i++ {
			id := uuid.New()
			result[id] = obj.Image{ID: id, Payload: ""}
		}
		return result
	}
	for i := 0; i < want; i++ {
		src := images[0]
		if i < len(images) {
			src = images[i]
		}
		id := uuid.New()
		result[id] = obj.Image{ID: id, Payload: src}
	}
	return result
}
