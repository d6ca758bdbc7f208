package core

import (
	"time"

	"github.com/openmic/karaoke/internal/domain"
	"github.com/openmic/karaoke/internal/protocol"
)

// PlayerState is a read-only view of the playback machine, mainly for the
// REST surface and tests. Awaiting lists sessions still loading the song.
type PlayerState struct {
	Status     domain.PlayerStatus
	NowPlaying *domain.Song
	Awaiting   []domain.SessionID
	QueueLen   int
}

// query runs fn on the command loop and waits for its reply. Because the
// loop is FIFO, a query observes every operation posted before it, which is
// what makes the tests deterministic. A stopped room reports zero values.
func query[T any](r *Room, fn func() T) (T, bool) {
	ch := make(chan T, 1)
	if !r.do(func() { ch <- fn() }) {
		var zero T
		return zero, false
	}
	select {
	case v := <-ch:
		return v, true
	case <-r.done:
		var zero T
		return zero, false
	}
}

func (r *Room) Snapshot() protocol.RoomSnapshot {
	snap, _ := query(r, r.snapshot)
	return snap
}

func (r *Room) MemberCount() int {
	n, _ := query(r, func() int { return len(r.users) })
	return n
}

func (r *Room) Has(sid domain.SessionID) bool {
	ok, _ := query(r, func() bool {
		_, in := r.users[sid]
		return in
	})
	return ok
}

func (r *Room) PlayerState() PlayerState {
	st, _ := query(r, func() PlayerState {
		out := PlayerState{Status: r.status, QueueLen: len(r.queue)}
		if r.nowPlaying != nil {
			song := *r.nowPlaying
			out.NowPlaying = &song
		}
		for sid := range r.awaiting {
			out.Awaiting = append(out.Awaiting, sid)
		}
		return out
	})
	return st
}

// IdleSince reports when the room last became empty; ok is false while any
// session is still connected. The registry's janitor uses this to evict.
func (r *Room) IdleSince() (time.Time, bool) {
	type idle struct {
		at time.Time
		ok bool
	}
	v, _ := query(r, func() idle {
		if len(r.users) > 0 {
			return idle{}
		}
		return idle{at: r.emptySince, ok: true}
	})
	return v.at, v.ok
}
