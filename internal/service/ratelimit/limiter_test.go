package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowPerKey(t *testing.T) {
	l := New(time.Hour, 1)

	assert.True(t, l.Allow("yahoo"))
	assert.False(t, l.Allow("yahoo"))
	assert.True(t, l.Allow("tradingview"))
}

func TestLimiter_ZeroIntervalIsUnlimited(t *testing.T) {
	l := New(0, 1)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("k"))
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := New(time.Hour, 1)
	assert.NoError(t, l.Wait(context.Background(), "k"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "k"))
}
