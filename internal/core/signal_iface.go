package core

// Frame is a raw outbound payload, already encoded for the wire.
type Frame []byte

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds a participant to its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	Signal() SignalConnection
}

type memberSession struct {
	conn SignalConnection
}

func NewMemberSession(conn SignalConnection) MemberSession {
	return memberSession{conn: conn}
}

func (m memberSession) Signal() SignalConnection { return m.conn }
