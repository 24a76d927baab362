package engine

import (
	"github.com/google/uuid"

	"laughprop/obj"
)

// UISink is the engine's only outward side effect besides generation
// requests. Send with a nil playerID means "deliver to every current
// session member" (a broadcast); implementations must resolve membership
// at send time, not at some earlier snapshot.
type UISink interface {
	Send(playerID *uuid.UUID, command string, param obj.Value)
}

// RecordingSink is a UISink test double: it records every send instead of
// delivering anywhere.
type RecordingSink struct {
	Sent []SentMessage
}

type SentMessage struct {
	PlayerID *uuid.UUID
	Command  string
	Param    obj.Value
}

func (s *RecordingSink) Send(playerID *uuid.UUID, command string, param obj.Value) {
	s.Sent = append(s.Sent, SentMessage{PlayerID: playerID, Command: command, Param: param})
}
