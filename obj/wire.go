package obj

import (
	"encoding/json"
	"fmt"
)

// Message kinds for the tagged-union wire protocol.
const (
	MsgHello         = "Hello"
	MsgStartNewGame  = "StartNewGame"
	MsgGameStarting  = "GameStarting"
	MsgJoinGame      = "JoinGame"
	MsgSelectGame    = "SelectGame"
	MsgFailedToJoin  = "FailedToJoin"
	MsgLeaveGame     = "LeaveGame"
	MsgChooseGame    = "ChooseGame"
	MsgClientUi      = "ClientUi"
	MsgClientInput   = "ClientInput"
	MsgReturnToLobby = "ReturnToLobby"
)

// Envelope is the on-wire shape: a "kind" discriminator plus kind-specific
// fields flattened alongside it. Encode/Decode below are the codec's only
// entry points so the discriminator and payload always travel together.
type Envelope struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"-"`
}

type HelloMsg struct {
	Text string `json:"text"`
}

type StartNewGameMsg struct {
	PlayerID string `json:"playerId"`
}

type GameStartingMsg struct {
	SessionCode string `json:"sessionCode"`
}

type JoinGameMsg struct {
	SessionCode string `json:"sessionCode"`
	PlayerID    string `json:"playerId"`
}

type SelectGameMsg struct {
	SessionCode string `json:"sessionCode"`
}

type FailedToJoinMsg struct {
	Reason string `json:"reason"`
}

type LeaveGameMsg struct{}

type ChooseGameMsg struct {
	Name string `json:"name"`
}

type ClientUICommand struct {
	Command string `json:"command"`
	Param   Value  `json:"param"`
}

type ClientUIMsg struct {
	Command ClientUICommand `json:"command"`
}

type ClientInputMsg struct {
	Inputs map[string]Value `json:"inputs"`
}

type ReturnToLobbyMsg struct {
	InterruptedReason *string `json:"interruptedReason,omitempty"`
}

// Encode wraps a typed payload with its kind discriminator into the wire
// byte form. Unknown payload types are a programmer error.
func Encode(kind string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	merged := map[string]json.RawMessage{"kind": mustMarshal(kind)}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: payload is not an object: %w", kind, err)
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func mustMarshal(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// Decode reads the kind discriminator and returns the raw body so the
// caller can unmarshal into the matching typed struct.
func Decode(data []byte) (kind string, body []byte, err error) {
	var env struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Kind == "" {
		return "", nil, fmt.Errorf("decode envelope: missing kind")
	}
	return env.Kind, data, nil
}
