package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubmitLimiter_Window(t *testing.T) {
	rl := NewSubmitLimiter(2, 50*time.Millisecond)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	// Other sessions have their own window.
	assert.True(t, rl.Allow("b"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("a"))
}

func TestSubmitLimiter_Forget(t *testing.T) {
	rl := NewSubmitLimiter(1, time.Minute)

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	rl.Forget("a")
	assert.True(t, rl.Allow("a"))
}

func TestSubmitLimiter_Disabled(t *testing.T) {
	rl := NewSubmitLimiter(0, time.Minute)
	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("a"))
	}
}
