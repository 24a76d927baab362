package engine

import (
	"github.com/google/uuid"

	"laughprop/dispatcher"
	"laughprop/obj"
)

// fakeDispatcher records submissions instead of making HTTP calls; tests
// invoke the captured callback themselves to simulate completion.
type fakeDispatcher struct {
	txt2imgCalls []func()
}

func (f *fakeDispatcher) SubmitTxt2Img(p obj.Txt2ImgParams, alive func() bool, cb dispatcher.Callback) {
	f.txt2imgCalls = append(f.txt2imgCalls, func() {
		cb(map[uuid.UUID]obj.Image{uuid.New(): {Payload: "x"}})
	})
}

func (f *fakeDispatcher) SubmitDepth2Img(p obj.Depth2ImgParams, alive func() bool, cb dispatcher.Callback) {
}

func (f *fakeDispatcher) SubmitSketch2Img(p obj.Sketch2ImgParams, alive func() bool, cb dispatcher.Callback) {
}
