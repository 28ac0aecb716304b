package kafka

import (
	"context"
	"fmt"

	"github.com/bitly/go-simplejson"

	"github.com/l0gr1thm1k/ib-async/broker"
)

// Handlers routes consumed events by envelope type.
type Handlers struct {
	OrderUpdate func(ctx context.Context, evt *broker.OrderUpdateEvent) error
	Tick        func(ctx context.Context, evt *broker.TickEvent) error
}

// Route inspects the envelope type of a consumed message and dispatches the
// payload to the matching handler. Events without a handler are ignored.
func Route(ctx context.Context, message []byte, h Handlers) error {
	j, err := simplejson.NewJson(message)
	if err != nil {
		return fmt.Errorf("parse event envelope: %w", err)
	}
	data, err := j.Get("data").MarshalJSON()
	if err != nil {
		return fmt.Errorf("extract event payload: %w", err)
	}
	switch j.Get("type").MustString() {
	case broker.OrderUpdateTopicType:
		if h.OrderUpdate == nil {
			return nil
		}
		evt := &broker.OrderUpdateEvent{}
		if err := Json.Unmarshal(data, evt); err != nil {
			return err
		}
		return h.OrderUpdate(ctx, evt)
	case broker.TickTopicType:
		if h.Tick == nil {
			return nil
		}
		evt := &broker.TickEvent{}
		if err := Json.Unmarshal(data, evt); err != nil {
			return err
		}
		return h.Tick(ctx, evt)
	}
	return nil
}
