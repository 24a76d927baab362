// Package session implements the session router and message codec: it
// holds players, runs the pre-game mini-game vote, owns at most one
// active engine.Game, and encodes/decodes the wire protocol.
package session

import (
	"sync"

	"github.com/google/uuid"

	"laughprop/engine"
	"laughprop/log"
	"laughprop/obj"
)

// Conn is the outbound capability a transport connection offers a Session.
// Router and Session depend only on this interface, never on the
// transport package directly.
type Conn interface {
	SendBytes(data []byte)
}

// Session holds a set of players, a pre-game vote, and at most one active
// Game.
type Session struct {
	mu sync.Mutex

	ID   uuid.UUID
	Code string

	order []uuid.UUID
	conns map[uuid.UUID]Conn
	votes map[uuid.UUID]string

	game     *engine.Game
	notified bool

	games      map[string]obj.Script
	dispatcher engine.ImageDispatcher

	destroyed bool
	onEmpty   func(code string)
}

func newSession(code string, games map[string]obj.Script, disp engine.ImageDispatcher, onEmpty func(string)) *Session {
	return &Session{
		ID:         uuid.New(),
		Code:       code,
		conns:      make(map[uuid.UUID]Conn),
		votes:      make(map[uuid.UUID]string),
		games:      games,
		dispatcher: disp,
		onEmpty:    onEmpty,
	}
}

// Join admits playerID while no game is running. Returns false if a game
// is already in progress.
func (s *Session) Join(playerID uuid.UUID, conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.game != nil {
		return false
	}
	if _, ok := s.conns[playerID]; !ok {
		s.order = append(s.order, playerID)
	}
	s.conns[playerID] = conn
	return true
}

// Leave removes playerID. A running game observes the reduced membership
// on its next pass; an empty session is torn down.
func (s *Session) Leave(playerID uuid.UUID) {
	s.mu.Lock()
	g := s.game
	delete(s.conns, playerID)
	delete(s.votes, playerID)
	for i, id := range s.order {
		if id == playerID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	empty := len(s.conns) == 0
	s.mu.Unlock()

	if g != nil {
		g.RemovePlayer(playerID)
		s.afterEngineStep()
	}
	if empty {
		s.destroy()
	}
}

func (s *Session) destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	code := s.Code
	s.mu.Unlock()
	if s.onEmpty != nil {
		s.onEmpty(code)
	}
}

// Alive reports whether the session still exists. The dispatcher consults
// this before delivering a late generation result.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.destroyed
}

func (s *Session) members() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Session) memberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Vote records playerID's pre-game mini-game choice. Once every connected
// member has voted and membership is at least 2, the plurality choice
// starts.
func (s *Session) Vote(playerID uuid.UUID, name string) {
	s.mu.Lock()
	if s.game != nil {
		s.mu.Unlock()
		return
	}
	if _, ok := s.conns[playerID]; !ok {
		s.mu.Unlock()
		return
	}
	s.votes[playerID] = name
	ready := len(s.votes) == len(s.conns) && len(s.conns) >= 2
	var counts map[string]int
	if ready {
		counts = make(map[string]int, len(s.votes))
		for _, v := range s.votes {
			counts[v]++
		}
	}
	s.mu.Unlock()

	if !ready {
		return
	}
	s.startGame(pluralityWinner(counts))
}

func (s *Session) startGame(name string) {
	s.mu.Lock()
	script, ok := s.games[name]
	if !ok {
		s.mu.Unlock()
		log.Warn("session: vote selected unregistered game", "name", name, "session", s.Code)
		return
	}
	s.votes = make(map[uuid.UUID]string)
	s.notified = false
	sink := &sessionSink{session: s}
	s.game = engine.NewGame(script, sink, s.dispatcher, s.members, s.Alive)
	game := s.game
	s.mu.Unlock()

	game.Tick()
	s.afterEngineStep()
}

// HandleInput feeds a player's client-supplied variables into the running
// game, if any.
func (s *Session) HandleInput(playerID uuid.UUID, inputs map[string]obj.Value) {
	s.mu.Lock()
	g := s.game
	s.mu.Unlock()
	if g == nil {
		return
	}
	g.HandlePlayerInput(playerID, inputs)
	s.afterEngineStep()
}

// afterEngineStep returns every member to the lobby exactly once, the
// first time it observes the active game has finished.
func (s *Session) afterEngineStep() {
	s.mu.Lock()
	g := s.game
	if g == nil || !g.Finished || s.notified {
		s.mu.Unlock()
		return
	}
	s.notified = true
	s.game = nil
	conns := make([]Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		sendEnvelope(c, obj.MsgReturnToLobby, obj.ReturnToLobbyMsg{})
	}
}

func (s *Session) send(playerID uuid.UUID, kind string, payload interface{}) {
	s.mu.Lock()
	conn, ok := s.conns[playerID]
	s.mu.Unlock()
	if !ok {
		return
	}
	sendEnvelope(conn, kind, payload)
}

func (s *Session) broadcast(kind string, payload interface{}) {
	s.mu.Lock()
	conns := make([]Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		sendEnvelope(c, kind, payload)
	}
}

// sessionSink adapts the session's membership and connections to the
// engine's UISink.
type sessionSink struct {
	session *Session
}

func (sk *sessionSink) Send(playerID *uuid.UUID, command string, param obj.Value) {
	msg := obj.ClientUIMsg{Command: obj.ClientUICommand{Command: command, Param: param}}
	if playerID == nil {
		sk.session.broadcast(obj.MsgClientUi, msg)
		return
	}
	sk.session.send(*playerID, obj.MsgClientUi, msg)
}

func sendEnvelope(conn Conn, kind string, payload interface{}) {
	data, err := obj.Encode(kind, payload)
	if err != nil {
		log.Warn("session: dropping message that failed to encode", "kind", kind, "error", err)
		return
	}
	conn.SendBytes(data)
}
