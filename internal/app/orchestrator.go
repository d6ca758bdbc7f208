package app

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/openmic/karaoke/internal/core"
	"github.com/openmic/karaoke/internal/domain"
	"github.com/openmic/karaoke/internal/protocol"
)

var ErrMissingDeps = errors.New("orchestrator requires registry, rooms and relay")

// Orchestrator routes transport events to the room state machine and the
// signaling relay. It owns no state of its own; it resolves the session's
// room and dispatches.
type Orchestrator struct {
	Registry *Registry
	Rooms    *core.RoomRegistry
	Relay    *Relay
	Limiter  *SubmitLimiter
}

func NewOrchestrator(registry *Registry, rooms *core.RoomRegistry, relay *Relay, limiter *SubmitLimiter) (*Orchestrator, error) {
	if registry == nil || rooms == nil || relay == nil {
		return nil, ErrMissingDeps
	}
	return &Orchestrator{Registry: registry, Rooms: rooms, Relay: relay, Limiter: limiter}, nil
}

// Join puts sid into roomID, leaving any previous room first so a session
// is never a member of two rooms. New members get a snapshot from the room
// and mesh introductions from the relay.
func (o *Orchestrator) Join(sid domain.SessionID, roomID domain.RoomID) error {
	if prev, _, ok := o.Registry.RoomOf(sid); ok {
		o.leaveRoom(sid, prev)
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("from_room", string(prev)).Msg("left previous room")
	}
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return nil
	}
	room, err := o.Rooms.GetOrCreate(roomID)
	if err != nil {
		return err
	}
	o.Registry.UpdateRoom(sid, roomID)
	room.AddUser(sid, sess)
	o.Relay.Introduce(sid, roomID)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("joined room")
	return nil
}

// SubmitSong queues a song for the submitter's current room.
func (o *Orchestrator) SubmitSong(sid domain.SessionID, video domain.VideoData) {
	room, ok := o.roomOf(sid)
	if !ok {
		return
	}
	if o.Limiter != nil && !o.Limiter.Allow(sid) {
		log.Warn().Str("module", "app.orch").Str("sid", string(sid)).Msg("submission rate limited")
		if sess, ok := o.Registry.GetSession(sid); ok {
			o.Relay.send(sess, protocol.NewError("you are submitting songs too fast, hold on"))
		}
		return
	}
	room.EnqueueSong(video, sid)
}

// ClientReady reports that sid finished loading the current song.
func (o *Orchestrator) ClientReady(sid domain.SessionID) {
	if room, ok := o.roomOf(sid); ok {
		room.ClientReady(sid)
	}
}

// Signal forwards an opaque payload from sid to the named peer.
func (o *Orchestrator) Signal(sid, peer domain.SessionID, payload json.RawMessage) {
	o.Relay.Forward(sid, peer, payload)
}

// DisconnectVideo advises sid's room mates to tear down its media.
func (o *Orchestrator) DisconnectVideo(sid domain.SessionID) {
	o.Relay.Destroy(sid)
}

// Leave removes sid from its room while keeping the connection open.
func (o *Orchestrator) Leave(sid domain.SessionID) {
	if roomID, _, ok := o.Registry.RoomOf(sid); ok {
		o.leaveRoom(sid, roomID)
	}
}

// OnDisconnect handles a dropped transport: media teardown notices, room
// removal (which advances the queue if the singer vanished) and unbinding.
// Safe to call more than once for the same session. A no-op when sess is no
// longer the connection bound to sid: a reconnect replaces the binding, and
// the stale socket's teardown must not evict the live one.
func (o *Orchestrator) OnDisconnect(sid domain.SessionID, sess core.MemberSession) {
	if cur, ok := o.Registry.GetSession(sid); !ok || cur != sess {
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Msg("stale disconnect ignored")
		return
	}
	if roomID, _, ok := o.Registry.RoomOf(sid); ok {
		o.leaveRoom(sid, roomID)
	}
	o.Registry.Unbind(sid, sess)
	if o.Limiter != nil {
		o.Limiter.Forget(sid)
	}
}

// EvictRoom tears a room down even while occupied. Members lose their room
// binding and their connections are cancelled and closed, so clients
// reconnect and rejoin instead of submitting into a dead room.
func (o *Orchestrator) EvictRoom(roomID domain.RoomID) {
	members := o.Registry.MembersOfRoom(roomID)
	o.Rooms.Evict(roomID)
	for _, m := range members {
		o.Registry.RemoveRoom(m.SID)
		o.Registry.Cancel(m.SID)
		if s := m.Session.Signal(); s != nil {
			s.Close()
		}
	}
	log.Info().Str("module", "app.orch").Str("room", string(roomID)).Int("members", len(members)).Msg("room evicted")
}

func (o *Orchestrator) leaveRoom(sid domain.SessionID, roomID domain.RoomID) {
	// Destroy first: the relay resolves room mates through the registry
	// binding that is cleared right after.
	o.Relay.Destroy(sid)
	if room, ok := o.Rooms.Get(roomID); ok {
		room.RemoveUser(sid)
	}
	o.Registry.RemoveRoom(sid)
}

func (o *Orchestrator) roomOf(sid domain.SessionID) (*core.Room, bool) {
	roomID, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return nil, false
	}
	return o.Rooms.Get(roomID)
}
