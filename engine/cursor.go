package engine

import (
	"github.com/google/uuid"

	"laughprop/obj"
)

// CursorState tracks whether a cursor is runnable, blocked waiting on a
// variable, or has reached the end of its script.
type CursorState int

const (
	StateReady CursorState = iota
	StateBlocked
	StateFinished
)

// Cursor is a reference to a script plus a zero-based instruction index and
// a private variable map (nil for the global cursor). PlayerID is nil for
// the global cursor and set for a per-player cursor.
type Cursor struct {
	Script Script
	PC     int
	Local  *obj.OrderedMap

	PlayerID *uuid.UUID

	State      CursorState
	BlockedVar string // the variable this cursor is waiting on, when Blocked
}

// Script is an alias kept local to the engine so op execution can reference
// obj.Script without a stutter at call sites.
type Script = obj.Script

func newCursor(script Script, playerID *uuid.UUID) *Cursor {
	c := &Cursor{Script: script, State: StateReady}
	if playerID != nil {
		id := *playerID
		c.PlayerID = &id
		c.Local = obj.NewOrderedMap()
	}
	return c
}

func (c *Cursor) atEnd() bool {
	return c.PC >= len(c.Script)
}
