package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/openmic/karaoke/internal/core"
	"github.com/openmic/karaoke/internal/domain"
)

type sessionEntry struct {
	RoomID  domain.RoomID
	Session core.MemberSession
	Cancel  context.CancelFunc
}

// Registry maps a session id to its current sendable handle and room
// binding. It is the only place that knows which transport connection a
// session id currently points at; the core never sees transport types.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*sessionEntry),
	}
}

// BindSignal attaches a live connection to sid, replacing any previous one.
// The previous connection is cancelled and closed so its pumps wind down,
// and the room binding carries over so the session keeps its membership
// until it rejoins on the new connection.
func (r *Registry) BindSignal(sid domain.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	prev := r.sessions[sid]
	entry := &sessionEntry{Session: sess, Cancel: cancel}
	if prev != nil {
		entry.RoomID = prev.RoomID
	}
	r.sessions[sid] = entry
	r.mu.Unlock()

	if prev != nil {
		if prev.Cancel != nil {
			prev.Cancel()
		}
		if s := prev.Session.Signal(); s != nil {
			s.Close()
		}
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

func (r *Registry) GetSession(sid domain.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

// Unbind removes sid's entry, but only while it still points at sess. A
// stale connection tearing down after a rebind must not evict the live one.
func (r *Registry) Unbind(sid domain.SessionID, sess core.MemberSession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok || e.Session != sess {
		return false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return true
}

func (r *Registry) RoomOf(sid domain.SessionID) (domain.RoomID, core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok || entry.RoomID == "" {
		return "", nil, false
	}
	return entry.RoomID, entry.Session, true
}

func (r *Registry) UpdateRoom(sid domain.SessionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	entry.RoomID = room
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("updated room")
	return true
}

func (r *Registry) RemoveRoom(sid domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[sid]; ok {
		entry.RoomID = ""
	}
}

type RegSnap struct {
	SID     domain.SessionID
	Session core.MemberSession
}

func (r *Registry) MembersOfRoom(room domain.RoomID) []RegSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegSnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if e.RoomID == room {
			out = append(out, RegSnap{SID: sid, Session: e.Session})
		}
	}
	return out
}

// RoomMates returns every other member of sid's room.
func (r *Registry) RoomMates(sid domain.SessionID) []RegSnap {
	room, _, ok := r.RoomOf(sid)
	if !ok {
		return nil
	}
	mates := r.MembersOfRoom(room)
	out := mates[:0]
	for _, m := range mates {
		if m.SID != sid {
			out = append(out, m)
		}
	}
	return out
}

func (r *Registry) Cancel(sid domain.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	return true
}
