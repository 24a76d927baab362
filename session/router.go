package session

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"laughprop/engine"
	"laughprop/log"
	"laughprop/obj"
)

// Router admits connections, assigns or looks up sessions by code, and
// delivers each decoded message to the right session. It holds
// only the routing indices; all game state lives in Session.
type Router struct {
	mu            sync.Mutex
	sessions      map[string]*Session
	playerSession map[uuid.UUID]*Session
	playerConn    map[uuid.UUID]Conn

	games      map[string]obj.Script
	dispatcher engine.ImageDispatcher
}

// NewRouter constructs a Router. games is the registry of mini-game
// scripts addressable by ChooseGame's name field.
func NewRouter(games map[string]obj.Script, disp engine.ImageDispatcher) *Router {
	return &Router{
		sessions:      make(map[string]*Session),
		playerSession: make(map[uuid.UUID]*Session),
		playerConn:    make(map[uuid.UUID]Conn),
		games:         games,
		dispatcher:    disp,
	}
}

// Connect registers a newly established connection for playerID.
func (r *Router) Connect(playerID uuid.UUID, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playerConn[playerID] = conn
}

// Disconnect removes playerID's connection entirely and, if it belongs to
// a session, leaves that session too.
func (r *Router) Disconnect(playerID uuid.UUID) {
	r.mu.Lock()
	delete(r.playerConn, playerID)
	r.mu.Unlock()
	r.leaveSession(playerID)
}

func (r *Router) leaveSession(playerID uuid.UUID) {
	r.mu.Lock()
	s := r.playerSession[playerID]
	delete(r.playerSession, playerID)
	r.mu.Unlock()
	if s != nil {
		s.Leave(playerID)
	}
}

// HandleMessage decodes one inbound frame and dispatches it. Decode or
// unmarshal failures are logged and do not disconnect the player (spec
// §7).
func (r *Router) HandleMessage(playerID uuid.UUID, data []byte) {
	kind, body, err := obj.Decode(data)
	if err != nil {
		log.Warn("router: dropping malformed client message", "player", playerID, "error", err)
		return
	}

	switch kind {
	case obj.MsgHello:
		var m obj.HelloMsg
		if !unmarshalOrWarn(kind, body, &m) {
			return
		}
		r.replyTo(playerID, obj.MsgHello, obj.HelloMsg{Text: m.Text})

	case obj.MsgStartNewGame:
		r.handleStartNewGame(playerID)

	case obj.MsgJoinGame:
		var m obj.JoinGameMsg
		if !unmarshalOrWarn(kind, body, &m) {
			return
		}
		r.handleJoinGame(playerID, m.SessionCode)

	case obj.MsgLeaveGame:
		r.leaveSession(playerID)

	case obj.MsgChooseGame:
		var m obj.ChooseGameMsg
		if !unmarshalOrWarn(kind, body, &m) {
			return
		}
		if s := r.sessionFor(playerID); s != nil {
			s.Vote(playerID, m.Name)
		}

	case obj.MsgClientInput:
		var m obj.ClientInputMsg
		if !unmarshalOrWarn(kind, body, &m) {
			return
		}
		if s := r.sessionFor(playerID); s != nil {
			s.HandleInput(playerID, m.Inputs)
		}

	default:
		log.Warn("router: unknown message kind", "kind", kind)
	}
}

func (r *Router) sessionFor(playerID uuid.UUID) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playerSession[playerID]
}

func (r *Router) handleStartNewGame(playerID uuid.UUID) {
	r.mu.Lock()
	conn, ok := r.playerConn[playerID]
	if !ok {
		r.mu.Unlock()
		return
	}
	// Resending StartNewGame while already hosting alone is idempotent:
	// reuse the existing code instead of minting a new session.
	if s, already := r.playerSession[playerID]; already && s.memberCount() == 1 {
		code := s.Code
		r.mu.Unlock()
		sendEnvelope(conn, obj.MsgGameStarting, obj.GameStartingMsg{SessionCode: code})
		return
	}
	code, err := GenerateCode(func(c string) bool {
		_, exists := r.sessions[c]
		return exists
	})
	if err != nil {
		r.mu.Unlock()
		log.Error("router: failed to generate session code", "error", err)
		return
	}
	s := newSession(code, r.games, r.dispatcher, r.onSessionEmpty)
	r.sessions[code] = s
	r.playerSession[playerID] = s
	r.mu.Unlock()

	s.Join(playerID, conn)
	sendEnvelope(conn, obj.MsgGameStarting, obj.GameStartingMsg{SessionCode: code})
}

func (r *Router) handleJoinGame(playerID uuid.UUID, code string) {
	r.mu.Lock()
	conn, connOK := r.playerConn[playerID]
	s, found := r.sessions[code]
	r.mu.Unlock()
	if !connOK {
		return
	}
	if !found {
		sendEnvelope(conn, obj.MsgFailedToJoin, obj.FailedToJoinMsg{Reason: "no session with that code"})
		return
	}
	if !s.Join(playerID, conn) {
		sendEnvelope(conn, obj.MsgFailedToJoin, obj.FailedToJoinMsg{Reason: "game already in progress"})
		return
	}
	r.mu.Lock()
	r.playerSession[playerID] = s
	r.mu.Unlock()
	s.broadcast(obj.MsgSelectGame, obj.SelectGameMsg{SessionCode: code})
}

func (r *Router) onSessionEmpty(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, code)
}

func (r *Router) replyTo(playerID uuid.UUID, kind string, payload interface{}) {
	r.mu.Lock()
	conn, ok := r.playerConn[playerID]
	r.mu.Unlock()
	if ok {
		sendEnvelope(conn, kind, payload)
	}
}

func unmarshalOrWarn(kind string, body []byte, out interface{}) bool {
	if err := json.Unmarshal(body, out); err != nil {
		log.Warn("router: malformed message body", "kind", kind, "error", err)
		return false
	}
	return true
}
