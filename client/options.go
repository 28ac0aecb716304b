package client

import (
	"github.com/go-kratos/kratos/v2/log"

	"github.com/l0gr1thm1k/ib-async/broker"
	"github.com/l0gr1thm1k/ib-async/limiter"
	"github.com/l0gr1thm1k/ib-async/statestore"
)

type Option func(*options)

type options struct {
	logger    *log.Helper
	pacer     limiter.Pacer
	publisher broker.Publisher
	store     *statestore.Store
	account   string
}

func WithLogger(logger *log.Helper) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPacer replaces the default outbound message pacer.
func WithPacer(pacer limiter.Pacer) Option {
	return func(o *options) {
		o.pacer = pacer
	}
}

// WithPublisher mirrors order updates and ticks to an event bus.
func WithPublisher(publisher broker.Publisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

// WithStateStore persists subscription declarations and the order id floor
// so a restarted client can resubscribe.
func WithStateStore(store *statestore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithAccount sets the account id used to key persisted state.
func WithAccount(account string) Option {
	return func(o *options) {
		o.account = account
	}
}
