package core

import "github.com/dkeye/VideoChat/internal/domain"

// SessionID is issued by the transport, one per connection.
type SessionID string

// Session is the server side state of one live connection.
type Session struct {
	ID          SessionID
	Room        domain.RoomID
	DisplayName string
	Features    domain.FeatureSet
}

func (s Session) InRoom() bool { return s.Room != "" }
