package transport

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"laughprop/dispatcher"
	"laughprop/obj"
	"laughprop/session"
)

type noopDispatcher struct{}

func (noopDispatcher) SubmitTxt2Img(obj.Txt2ImgParams, func() bool, dispatcher.Callback)     {}
func (noopDispatcher) SubmitDepth2Img(obj.Depth2ImgParams, func() bool, dispatcher.Callback) {}
func (noopDispatcher) SubmitSketch2Img(obj.Sketch2ImgParams, func() bool, dispatcher.Callback) {
}

// TestHelloRoundTrips dials a real WebSocket connection against the
// handler and confirms a Hello frame is echoed back through the full
// transport → router → codec path.
func TestHelloRoundTrips(t *testing.T) {
	router := session.NewRouter(map[string]obj.Script{}, noopDispatcher{})
	srv := httptest.NewServer(NewHandler(router))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	out, err := obj.Encode(obj.MsgHello, obj.HelloMsg{Text: "hi"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, out))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env struct {
		Kind string `json:"kind"`
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, obj.MsgHello, env.Kind)
	require.Equal(t, "hi", env.Text)
}
