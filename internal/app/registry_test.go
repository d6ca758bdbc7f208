package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmic/karaoke/internal/core"
	"github.com/openmic/karaoke/internal/domain"
)

func TestRegistry_RebindReplacesConnection(t *testing.T) {
	reg := NewRegistry()
	conn1 := &mockConn{}
	cancelled := false
	reg.BindSignal("a", core.NewMemberSession(conn1), func() { cancelled = true })
	reg.UpdateRoom("a", "r")

	sess2 := core.NewMemberSession(&mockConn{})
	reg.BindSignal("a", sess2, nil)

	assert.True(t, cancelled, "previous connection context cancelled")
	assert.True(t, conn1.isClosed(), "previous connection closed")

	room, cur, ok := reg.RoomOf("a")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("r"), room, "room binding survives the swap")
	assert.Equal(t, sess2, cur)
}

func TestRegistry_UnbindRequiresMatchingSession(t *testing.T) {
	reg := NewRegistry()
	sess1 := core.NewMemberSession(&mockConn{})
	reg.BindSignal("a", sess1, nil)
	sess2 := core.NewMemberSession(&mockConn{})
	reg.BindSignal("a", sess2, nil)

	assert.False(t, reg.Unbind("a", sess1), "stale connection cannot unbind")
	_, ok := reg.GetSession("a")
	require.True(t, ok)

	assert.True(t, reg.Unbind("a", sess2))
	_, ok = reg.GetSession("a")
	assert.False(t, ok)
}
