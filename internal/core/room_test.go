package core

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmic/karaoke/internal/domain"
	"github.com/openmic/karaoke/internal/protocol"
)

type mockConn struct {
	mu     sync.Mutex
	frames []Frame
	err    error
}

func (m *mockConn) TrySend(f Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	buf := make(Frame, len(f))
	copy(buf, f)
	m.frames = append(m.frames, buf)
	return nil
}

func (m *mockConn) Close() {}

// events decodes every captured frame with the given type.
func (m *mockConn) events(t *testing.T, typ string) []map[string]any {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []map[string]any
	for _, f := range m.frames {
		var v map[string]any
		require.NoError(t, json.Unmarshal(f, &v))
		if v["type"] == typ {
			out = append(out, v)
		}
	}
	return out
}

func (m *mockConn) messages(t *testing.T, typ string) []string {
	t.Helper()
	var out []string
	for _, ev := range m.events(t, typ) {
		out = append(out, ev["message"].(string))
	}
	return out
}

func newTestRoom(t *testing.T, noticeTTL time.Duration) *Room {
	t.Helper()
	room, err := NewRoom("test-room", noticeTTL)
	require.NoError(t, err)
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go room.run(stop)
	return room
}

func joinUser(room *Room, sid domain.SessionID) *mockConn {
	conn := &mockConn{}
	room.AddUser(sid, NewMemberSession(conn))
	return conn
}

func song(title string) domain.VideoData {
	return domain.VideoData{Title: title, URL: "https://videos.invalid/" + title}
}

func TestNewRoom_EmptyID(t *testing.T) {
	_, err := NewRoom("", 0)
	assert.ErrorIs(t, err, ErrEmptyRoomID)
}

func TestEnqueue_IdleRoomStartsImmediately(t *testing.T) {
	room := newTestRoom(t, 0)
	conn := joinUser(room, "a")

	room.EnqueueSong(song("first"), "a")

	st := room.PlayerState()
	assert.Equal(t, domain.StatusUnstarted, st.Status)
	require.NotNil(t, st.NowPlaying)
	assert.Equal(t, "first", st.NowPlaying.Video.Title)
	assert.Equal(t, domain.SessionID("a"), st.NowPlaying.SingerID)
	assert.Equal(t, 0, st.QueueLen)

	assert.Contains(t, conn.messages(t, protocol.TypeNotification), "Queueing up first")
}

func TestEnqueue_OrdinalConfirmations(t *testing.T) {
	room := newTestRoom(t, 0)
	conn := joinUser(room, "a")

	// First submission starts playing, so the next two wait in line.
	room.EnqueueSong(song("zero"), "a")
	room.EnqueueSong(song("one"), "a")
	room.EnqueueSong(song("two"), "a")
	room.PlayerState() // flush the command loop before reading frames

	got := conn.messages(t, protocol.TypeSongAdded)
	require.Len(t, got, 3)
	assert.Equal(t, "Your song is 1st in line", got[0])
	assert.Equal(t, "Your song is 1st in line", got[1])
	assert.Equal(t, "Your song is 2nd in line", got[2])
}

func TestEnqueue_WhilePlayingSendsSnapshotToSubmitter(t *testing.T) {
	room := newTestRoom(t, 0)
	joinUser(room, "a")
	connB := joinUser(room, "b")

	room.EnqueueSong(song("current"), "a")
	room.ClientReady("a")
	room.ClientReady("b")
	require.Equal(t, domain.StatusPlaying, room.PlayerState().Status)

	before := len(connB.events(t, protocol.TypeRoomData))
	room.EnqueueSong(song("next"), "b")

	st := room.PlayerState()
	assert.Equal(t, domain.StatusPlaying, st.Status)
	assert.Equal(t, "current", st.NowPlaying.Video.Title)
	assert.Equal(t, 1, st.QueueLen)
	assert.Greater(t, len(connB.events(t, protocol.TypeRoomData)), before)
}

func TestCycle_ResetsBarrierToAllUsers(t *testing.T) {
	room := newTestRoom(t, 0)
	joinUser(room, "a")
	joinUser(room, "b")
	joinUser(room, "c")

	room.EnqueueSong(song("tune"), "a")

	st := room.PlayerState()
	assert.Equal(t, domain.StatusUnstarted, st.Status)
	assert.ElementsMatch(t, []domain.SessionID{"a", "b", "c"}, st.Awaiting)
}

func TestBarrier_DrainStartsPlaybackOnce(t *testing.T) {
	room := newTestRoom(t, 0)
	conns := map[domain.SessionID]*mockConn{
		"a": joinUser(room, "a"),
		"b": joinUser(room, "b"),
		"c": joinUser(room, "c"),
	}

	room.EnqueueSong(song("tune"), "a")
	room.ClientReady("a")
	room.ClientReady("b")
	assert.Equal(t, domain.StatusUnstarted, room.PlayerState().Status)

	room.ClientReady("c")

	st := room.PlayerState()
	assert.Equal(t, domain.StatusPlaying, st.Status)
	assert.Empty(t, st.Awaiting)

	for sid, conn := range conns {
		playing := 0
		for _, ev := range conn.events(t, protocol.TypeVideoControl) {
			if ev["code"] == string(protocol.CodePlaying) {
				playing++
			}
		}
		assert.Equal(t, 1, playing, "session %s", sid)

		nowPlaying := 0
		for _, msg := range conn.messages(t, protocol.TypeNotification) {
			if msg == "Now playing: tune" {
				nowPlaying++
			}
		}
		assert.Equal(t, 1, nowPlaying, "session %s", sid)
	}
}

func TestBarrier_ReadyIsIdempotent(t *testing.T) {
	room := newTestRoom(t, 0)
	joinUser(room, "a")
	joinUser(room, "b")

	room.EnqueueSong(song("tune"), "a")
	room.ClientReady("a")
	room.ClientReady("a")
	room.ClientReady("ghost")

	st := room.PlayerState()
	assert.Equal(t, domain.StatusUnstarted, st.Status)
	assert.ElementsMatch(t, []domain.SessionID{"b"}, st.Awaiting)
}

func TestSingerDisconnect_MidPlaybackAdvances(t *testing.T) {
	room := newTestRoom(t, 0)
	joinUser(room, "a")
	connB := joinUser(room, "b")

	room.EnqueueSong(song("first"), "a")
	room.EnqueueSong(song("second"), "b")
	room.ClientReady("a")
	room.ClientReady("b")
	require.Equal(t, domain.StatusPlaying, room.PlayerState().Status)

	room.RemoveUser("a")

	st := room.PlayerState()
	assert.Equal(t, domain.StatusUnstarted, st.Status)
	require.NotNil(t, st.NowPlaying)
	assert.Equal(t, "second", st.NowPlaying.Video.Title)
	assert.ElementsMatch(t, []domain.SessionID{"b"}, st.Awaiting)

	ended := false
	for _, ev := range connB.events(t, protocol.TypeVideoControl) {
		if ev["code"] == string(protocol.CodeEnded) {
			ended = true
		}
	}
	assert.True(t, ended, "remaining session should get an ENDED directive")
}

func TestSingerDisconnect_MidBarrierAdvances(t *testing.T) {
	room := newTestRoom(t, 0)
	joinUser(room, "a")
	joinUser(room, "b")
	joinUser(room, "c")

	room.EnqueueSong(song("only"), "a")
	require.Equal(t, domain.StatusUnstarted, room.PlayerState().Status)

	// B and C never reported ready; the singer leaving still advances.
	room.RemoveUser("a")

	st := room.PlayerState()
	assert.Equal(t, domain.StatusNone, st.Status)
	assert.Nil(t, st.NowPlaying)
	assert.Empty(t, st.Awaiting)
}

func TestNonSingerDisconnect_DrainsBarrier(t *testing.T) {
	room := newTestRoom(t, 0)
	joinUser(room, "a")
	joinUser(room, "b")

	room.EnqueueSong(song("tune"), "a")
	room.ClientReady("a")
	require.Equal(t, domain.StatusUnstarted, room.PlayerState().Status)

	room.RemoveUser("b")

	st := room.PlayerState()
	assert.Equal(t, domain.StatusPlaying, st.Status)
	assert.Equal(t, "tune", st.NowPlaying.Video.Title)
}

func TestJoin_DuringActiveBarrierJoinsIt(t *testing.T) {
	room := newTestRoom(t, 0)
	joinUser(room, "a")

	room.EnqueueSong(song("tune"), "a")
	joinUser(room, "b")

	st := room.PlayerState()
	assert.ElementsMatch(t, []domain.SessionID{"a", "b"}, st.Awaiting)
}

func TestJoin_WithEmptyBarrierStaysOut(t *testing.T) {
	room := newTestRoom(t, 0)

	// No users yet, so cycling leaves an unstarted song with an empty
	// barrier. A later joiner is not asked to confirm readiness for it.
	room.EnqueueSong(song("tune"), "ghost")
	require.Equal(t, domain.StatusUnstarted, room.PlayerState().Status)

	joinUser(room, "b")

	st := room.PlayerState()
	assert.Equal(t, domain.StatusUnstarted, st.Status)
	assert.Empty(t, st.Awaiting)
}

func TestJoin_ReceivesSnapshot(t *testing.T) {
	room := newTestRoom(t, 0)
	joinUser(room, "a")
	room.EnqueueSong(song("tune"), "a")

	conn := joinUser(room, "b")
	room.PlayerState() // flush the command loop before reading frames

	events := conn.events(t, protocol.TypeRoomData)
	require.NotEmpty(t, events)
	snap := events[0]
	currentSong := snap["currentSong"].(map[string]any)
	video := currentSong["videoData"].(map[string]any)
	assert.Equal(t, "tune", video["title"])
	assert.Equal(t, "a", snap["currentSinger"])
	assert.Nil(t, snap["upNext"])
	assert.Equal(t, float64(0), snap["position"])
}

func TestRemoveUser_UnknownIsNoop(t *testing.T) {
	room := newTestRoom(t, 0)
	joinUser(room, "a")
	room.EnqueueSong(song("tune"), "a")

	room.RemoveUser("nobody")

	st := room.PlayerState()
	assert.Equal(t, domain.StatusUnstarted, st.Status)
	assert.Equal(t, 1, room.MemberCount())
}

func TestBroadcast_SurvivesDeadConnections(t *testing.T) {
	room := newTestRoom(t, 0)
	dead := &mockConn{err: errors.New("send failed")}
	room.AddUser("dead", NewMemberSession(dead))
	live := joinUser(room, "live")

	room.Notify("hello")
	room.PlayerState() // flush the command loop before reading frames

	assert.Contains(t, live.messages(t, protocol.TypeNotification), "hello")
}

func TestNotify_SequencedClear(t *testing.T) {
	room := newTestRoom(t, 40*time.Millisecond)
	conn := joinUser(room, "a")

	room.Notify("first")
	room.Notify("second")

	assert.Eventually(t, func() bool {
		return len(conn.events(t, protocol.TypeNotificationClear)) > 0
	}, time.Second, 10*time.Millisecond)

	// Only the latest notification may be cleared; the stale timer for
	// "first" must not fire a clear for its superseded sequence.
	time.Sleep(100 * time.Millisecond)
	clears := conn.events(t, protocol.TypeNotificationClear)
	require.Len(t, clears, 1)

	notes := conn.events(t, protocol.TypeNotification)
	require.Len(t, notes, 2)
	assert.Equal(t, notes[1]["seq"], clears[0]["seq"])
}

func TestRoom_HasTracksMembership(t *testing.T) {
	room := newTestRoom(t, 0)

	assert.False(t, room.Has("a"))
	joinUser(room, "a")
	assert.True(t, room.Has("a"))
	assert.False(t, room.Has("ghost"))

	room.RemoveUser("a")
	assert.False(t, room.Has("a"))
}
