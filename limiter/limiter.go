package limiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// TWS disconnects clients that exceed 50 outbound messages per second; the
// default stays under that with room for bursts from concurrent callers.
const (
	defaultRate  = 45
	defaultBurst = 10
)

type Option func(*options)

type options struct {
	rate  rate.Limit // 每秒最大消息数
	burst int
}

func WithRate(perSecond float64) Option {
	return func(o *options) {
		o.rate = rate.Limit(perSecond)
	}
}

func WithBurst(burst int) Option {
	return func(o *options) {
		o.burst = burst
	}
}

// Pacer throttles outbound protocol messages.
//
//go:generate mockgen -destination=./mocks/limiter.go -package=mock_limiter . Pacer
type Pacer interface {
	// Allow reports whether a message may be sent immediately.
	Allow() bool
	// Wait suspends the caller until a message may be sent.
	Wait(ctx context.Context) error
}

var _ Pacer = (*MessagePacer)(nil)

type MessagePacer struct {
	lim *rate.Limiter
}

func NewMessagePacer(opts ...Option) *MessagePacer {
	o := &options{
		rate:  defaultRate,
		burst: defaultBurst,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &MessagePacer{
		lim: rate.NewLimiter(o.rate, o.burst),
	}
}

func (p *MessagePacer) Allow() bool {
	return p.lim.Allow()
}

func (p *MessagePacer) Wait(ctx context.Context) error {
	return p.lim.Wait(ctx)
}

// Reserve exposes the underlying reservation for callers that need the delay.
func (p *MessagePacer) Reserve() time.Duration {
	return p.lim.Reserve().Delay()
}
