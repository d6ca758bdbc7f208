package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openmic/karaoke/internal/domain"
	"github.com/openmic/karaoke/internal/protocol"
)

var ErrEmptyRoomID = errors.New("room id must not be empty")

const commandBuffer = 64

// Room coordinates one karaoke room: a FIFO song queue, the current song,
// and the readiness barrier that keeps every client's player synchronized
// to the same song start.
//
// All state below the command channel is owned by the run loop. Every
// operation is posted onto cmds and executed in arrival order, so there is
// never concurrent mutation within one room; distinct rooms run independently.
type Room struct {
	id   domain.RoomID
	done chan struct{}
	cmds chan func()

	noticeTTL time.Duration

	users      map[domain.SessionID]MemberSession
	queue      []domain.Song
	nowPlaying *domain.Song
	position   float64
	status     domain.PlayerStatus
	awaiting   map[domain.SessionID]struct{}

	noticeSeq  uint64
	emptySince time.Time
}

// NewRoom constructs a stopped room. The registry starts its command loop.
// noticeTTL controls how long a room notification stays up before the server
// broadcasts a matching clear; zero disables auto-clearing.
func NewRoom(id domain.RoomID, noticeTTL time.Duration) (*Room, error) {
	if id == "" {
		return nil, ErrEmptyRoomID
	}
	return &Room{
		id:         id,
		done:       make(chan struct{}),
		cmds:       make(chan func(), commandBuffer),
		noticeTTL:  noticeTTL,
		users:      make(map[domain.SessionID]MemberSession),
		awaiting:   make(map[domain.SessionID]struct{}),
		emptySince: time.Now(),
	}, nil
}

func (r *Room) ID() domain.RoomID { return r.id }

// run is the room's single dispatch point. Stop it by cancelling the
// registry-provided cancel func.
func (r *Room) run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			close(r.done)
			return
		case fn := <-r.cmds:
			fn()
		}
	}
}

// do posts fn to the room's command loop. Returns false once the room is
// stopped; callers treat that the same as a send to a departed session.
func (r *Room) do(fn func()) bool {
	select {
	case <-r.done:
		return false
	case r.cmds <- fn:
		return true
	}
}

// AddUser registers a session. A joiner is pulled into the readiness
// barrier only when the barrier is already active; a join during an
// unstarted song with an empty barrier is deliberately left out of it.
func (r *Room) AddUser(sid domain.SessionID, sess MemberSession) {
	r.do(func() {
		r.users[sid] = sess
		if len(r.awaiting) > 0 {
			r.awaiting[sid] = struct{}{}
		}
		r.sendTo(sess, protocol.NewRoomData(r.id, r.snapshot()))
		log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(sid)).Int("users", len(r.users)).Msg("user joined")
	})
}

// RemoveUser drops a session from the barrier and the member set.
// Idempotent: removing an unknown session is a no-op, so duplicate
// disconnect notifications from the transport are harmless.
func (r *Room) RemoveUser(sid domain.SessionID) {
	r.do(func() {
		singerLeft := r.nowPlaying != nil && r.nowPlaying.SingerID == sid
		r.dropFromBarrier(sid)
		delete(r.users, sid)
		if len(r.users) == 0 {
			r.emptySince = time.Now()
		}
		if singerLeft {
			log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(sid)).Msg("singer left, advancing queue")
			r.stopVideo()
			r.cycleSongs()
		}
	})
}

// ClientReady records that sid finished loading the current song.
// Once the last awaited session reports in, playback starts everywhere.
func (r *Room) ClientReady(sid domain.SessionID) {
	r.do(func() {
		r.dropFromBarrier(sid)
	})
}

// EnqueueSong appends a song for singer and confirms its place in line.
// An idle room starts playing the submission immediately.
func (r *Room) EnqueueSong(video domain.VideoData, singer domain.SessionID) {
	r.do(func() {
		r.queue = append(r.queue, domain.Song{SingerID: singer, Video: video})
		r.notifyAll(fmt.Sprintf("%s was added to the queue", video.Title))
		if sess, ok := r.users[singer]; ok {
			r.sendTo(sess, protocol.NewSongAdded(fmt.Sprintf("Your song is %s in line", protocol.Ordinal(len(r.queue)))))
		}
		if r.nowPlaying == nil {
			r.cycleSongs()
		} else if sess, ok := r.users[singer]; ok {
			r.sendTo(sess, protocol.NewRoomData(r.id, r.snapshot()))
		}
	})
}

// CycleSongs force-advances the queue, skipping the current song if any.
func (r *Room) CycleSongs() {
	r.do(r.cycleSongs)
}

// PlayVideo starts playback for the whole room.
func (r *Room) PlayVideo() {
	r.do(r.playVideo)
}

// StopVideo tells every client to tear down the current playback.
func (r *Room) StopVideo() {
	r.do(r.stopVideo)
}

// Notify broadcasts a status line to every session in the room.
func (r *Room) Notify(message string) {
	r.do(func() {
		r.notifyAll(message)
	})
}

// --- state transitions, all run on the command loop ---

// dropFromBarrier is shared by readiness reports and disconnects: any
// caller controlling a session may decrement the barrier for it.
func (r *Room) dropFromBarrier(sid domain.SessionID) {
	if _, ok := r.awaiting[sid]; !ok {
		return
	}
	delete(r.awaiting, sid)
	if len(r.awaiting) == 0 && r.nowPlaying != nil {
		r.playVideo()
	}
}

func (r *Room) cycleSongs() {
	r.position = 0
	if len(r.queue) == 0 {
		r.nowPlaying = nil
		r.status = domain.StatusNone
		clear(r.awaiting)
		r.notifyAll("The song queue is empty")
		r.broadcastSnapshot()
		return
	}
	song := r.queue[0]
	r.queue = r.queue[1:]
	r.nowPlaying = &song
	r.status = domain.StatusUnstarted
	// Every connected session must re-acknowledge readiness for the new song.
	r.awaiting = make(map[domain.SessionID]struct{}, len(r.users))
	for sid := range r.users {
		r.awaiting[sid] = struct{}{}
	}
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("title", song.Video.Title).Int("awaiting", len(r.awaiting)).Msg("queueing up")
	r.notifyAll(fmt.Sprintf("Queueing up %s", song.Video.Title))
	r.broadcastSnapshot()
}

func (r *Room) playVideo() {
	r.status = domain.StatusPlaying
	r.broadcast(protocol.NewVideoControl(protocol.CodePlaying))
	if r.nowPlaying != nil {
		r.notifyAll(fmt.Sprintf("Now playing: %s", r.nowPlaying.Video.Title))
	}
}

func (r *Room) stopVideo() {
	r.broadcast(protocol.NewVideoControl(protocol.CodeEnded))
}

// notifyAll tags each notification with a per-room sequence number and
// schedules a clear that fires only if no later notification replaced it.
func (r *Room) notifyAll(message string) {
	r.noticeSeq++
	seq := r.noticeSeq
	r.broadcast(protocol.NewNotification(seq, message))
	if r.noticeTTL <= 0 {
		return
	}
	time.AfterFunc(r.noticeTTL, func() {
		r.do(func() {
			if r.noticeSeq == seq {
				r.broadcast(protocol.NewNotificationClear(seq))
			}
		})
	})
}

func (r *Room) snapshot() protocol.RoomSnapshot {
	snap := protocol.RoomSnapshot{Position: r.position}
	if r.nowPlaying != nil {
		song := *r.nowPlaying
		singer := string(song.SingerID)
		snap.CurrentSong = &song
		snap.CurrentSinger = &singer
	}
	if len(r.queue) > 0 {
		next := r.queue[0]
		snap.UpNext = &next
	}
	return snap
}

func (r *Room) broadcastSnapshot() {
	r.broadcast(protocol.NewRoomData(r.id, r.snapshot()))
}

// broadcast fans out to every session. Sends are fire-and-forget: a full or
// closed connection is logged and skipped, never halting delivery to others.
func (r *Room) broadcast(v any) {
	frame, ok := encode(v)
	if !ok {
		return
	}
	for sid, sess := range r.users {
		if err := sess.Signal().TrySend(frame); err != nil {
			log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(sid)).Err(err).Msg("dropped frame")
		}
	}
}

func (r *Room) sendTo(sess MemberSession, v any) {
	frame, ok := encode(v)
	if !ok {
		return
	}
	if err := sess.Signal().TrySend(frame); err != nil {
		log.Debug().Str("module", "core.room").Str("room", string(r.id)).Err(err).Msg("dropped frame")
	}
}

func encode(v any) (Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "core.room").Msg("encode event")
		return nil, false
	}
	return Frame(b), true
}
