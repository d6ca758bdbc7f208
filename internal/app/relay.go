package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/openmic/karaoke/internal/core"
	"github.com/openmic/karaoke/internal/domain"
	"github.com/openmic/karaoke/internal/protocol"
)

// Relay gives every pair of sessions in a room mutual awareness and then
// store-and-forwards their connection-negotiation payloads. It never parses
// a payload; whatever the peers exchange goes through verbatim.
type Relay struct {
	Registry *Registry
}

func NewRelay(registry *Registry) *Relay {
	return &Relay{Registry: registry}
}

// Introduce wires sid into the mesh of room: each existing member is
// announced to the joiner with initiator=true (the joiner opens the offer)
// and the joiner is announced to each of them with initiator=false. For k
// existing members that is 2k introductions and no central negotiator.
func (r *Relay) Introduce(sid domain.SessionID, room domain.RoomID) {
	joiner, ok := r.Registry.GetSession(sid)
	if !ok {
		return
	}
	for _, member := range r.Registry.MembersOfRoom(room) {
		if member.SID == sid {
			continue
		}
		r.send(joiner, protocol.NewPeer(member.SID, true))
		r.send(member.Session, protocol.NewPeer(sid, false))
	}
}

// Forward relays an opaque payload to the target peer. A missing target is
// a silent no-op: churn is normal and the origin's peer connection times
// out on its own.
func (r *Relay) Forward(from, to domain.SessionID, payload json.RawMessage) {
	target, ok := r.Registry.GetSession(to)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("from", string(from)).Str("to", string(to)).Msg("signal target gone, dropping")
		return
	}
	r.send(target, protocol.NewSignal(from, payload))
}

// Destroy advises every other member of sid's room to tear down its media
// for that peer. Advisory and idempotent on the receiving side.
func (r *Relay) Destroy(sid domain.SessionID) {
	for _, mate := range r.Registry.RoomMates(sid) {
		r.send(mate.Session, protocol.NewDestroy(sid))
	}
}

func (r *Relay) send(sess core.MemberSession, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("encode event")
		return
	}
	if err := sess.Signal().TrySend(core.Frame(b)); err != nil {
		log.Debug().Str("module", "app.relay").Err(err).Msg("dropped frame")
	}
}
