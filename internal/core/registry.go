package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openmic/karaoke/internal/domain"
)

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

// RoomRegistry is the process-wide room table. Rooms are created lazily on
// first reference and each gets its own command loop; creation never fails
// for a non-empty id, so an unknown room id just means a new empty room.
type RoomRegistry struct {
	ctx    context.Context
	cancel context.CancelFunc

	noticeTTL time.Duration
	idleTTL   time.Duration

	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomEntry
}

type roomEntry struct {
	room   *Room
	cancel context.CancelFunc
}

// NewRoomRegistry starts the registry. idleTTL > 0 enables the janitor that
// evicts rooms left empty longer than the TTL; zero keeps rooms forever.
func NewRoomRegistry(parent context.Context, noticeTTL, idleTTL time.Duration) *RoomRegistry {
	ctx, cancel := context.WithCancel(parent)
	r := &RoomRegistry{
		ctx:       ctx,
		cancel:    cancel,
		noticeTTL: noticeTTL,
		idleTTL:   idleTTL,
		rooms:     make(map[domain.RoomID]*roomEntry),
	}
	if idleTTL > 0 {
		go r.janitor()
	}
	return r
}

// GetOrCreate returns the room for id, constructing and starting it on
// first reference. Idempotent; errors only on an empty id.
func (r *RoomRegistry) GetOrCreate(id domain.RoomID) (*Room, error) {
	r.mu.RLock()
	e, ok := r.rooms[id]
	r.mu.RUnlock()
	if ok {
		return e.room, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.rooms[id]; ok {
		return e.room, nil
	}
	room, err := NewRoom(id, r.noticeTTL)
	if err != nil {
		return nil, err
	}
	roomCtx, roomCancel := context.WithCancel(r.ctx)
	r.rooms[id] = &roomEntry{room: room, cancel: roomCancel}
	go room.run(roomCtx.Done())
	log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("room created")
	return room, nil
}

func (r *RoomRegistry) Get(id domain.RoomID) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[id]
	if !ok {
		return nil, false
	}
	return e.room, true
}

func (r *RoomRegistry) List() []RoomInfo {
	r.mu.RLock()
	entries := make([]*roomEntry, 0, len(r.rooms))
	for _, e := range r.rooms {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	// MemberCount goes through each room's command loop, so collect outside
	// the registry lock.
	out := make([]RoomInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, RoomInfo{ID: e.room.ID(), MemberCount: e.room.MemberCount()})
	}
	return out
}

// Evict stops a room's command loop and forgets it. Safe for unknown ids.
func (r *RoomRegistry) Evict(id domain.RoomID) {
	r.mu.Lock()
	e, ok := r.rooms[id]
	if ok {
		delete(r.rooms, id)
	}
	r.mu.Unlock()
	if ok {
		e.cancel()
		log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("room evicted")
	}
}

// Close stops the janitor and every room loop.
func (r *RoomRegistry) Close() {
	r.cancel()
}

func (r *RoomRegistry) janitor() {
	interval := r.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

func (r *RoomRegistry) sweep(now time.Time) {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, e := range r.rooms {
		rooms = append(rooms, e.room)
	}
	r.mu.RUnlock()

	for _, room := range rooms {
		if since, idle := room.IdleSince(); idle && now.Sub(since) > r.idleTTL {
			r.Evict(room.ID())
		}
	}
}
