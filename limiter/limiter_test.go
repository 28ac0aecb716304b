package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewMessagePacer(t *testing.T) {
	p := NewMessagePacer()
	assert.NotNil(t, p)
	assert.True(t, p.Allow())
}

func TestBurstExhaustion(t *testing.T) {
	p := NewMessagePacer(WithRate(1), WithBurst(2))
	assert.True(t, p.Allow())
	assert.True(t, p.Allow())
	assert.False(t, p.Allow())
}

func TestWait(t *testing.T) {
	p := NewMessagePacer(WithRate(1000), WithBurst(1))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Nil(t, p.Wait(ctx))
	assert.Nil(t, p.Wait(ctx))
}

func TestWaitHonorsContext(t *testing.T) {
	p := NewMessagePacer(WithRate(0.001), WithBurst(1))
	assert.True(t, p.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.NotNil(t, p.Wait(ctx))
}
