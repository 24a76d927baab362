package obj

import "github.com/google/uuid"

// Player identifies one connected client. The id is minted by the server
// for each WebSocket connection (transport.NewHandler); the playerId field
// that StartNewGame and JoinGame carry is not read. Nothing about the id is
// cryptographically verified (spec Non-goal: authenticated identity).
type Player struct {
	ID        uuid.UUID
	SessionID string // four-character session code, "" when not in a session
}
