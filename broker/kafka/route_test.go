package kafka

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/l0gr1thm1k/ib-async/broker"
)

func TestRouteOrderUpdate(t *testing.T) {
	env := &envelope{
		Type: broker.OrderUpdateTopicType,
		Time: 1700000000000,
		Data: &broker.OrderUpdateEvent{
			OrderID: 7,
			Symbol:  "AAPL",
			Status:  "Filled",
			Filled:  decimal.NewFromInt(100),
		},
	}
	data, err := Json.Marshal(env)
	assert.Nil(t, err)

	var got *broker.OrderUpdateEvent
	err = Route(context.Background(), data, Handlers{
		OrderUpdate: func(ctx context.Context, evt *broker.OrderUpdateEvent) error {
			got = evt
			return nil
		},
	})
	assert.Nil(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, int64(7), got.OrderID)
	assert.Equal(t, "Filled", got.Status)
	assert.True(t, got.Filled.Equal(decimal.NewFromInt(100)))
}

func TestRouteTick(t *testing.T) {
	env := &envelope{
		Type: broker.TickTopicType,
		Time: 1700000000000,
		Data: &broker.TickEvent{
			RequestID: 43,
			Symbol:    "AAPL",
			TickType:  1,
			Value:     decimal.RequireFromString("25.5"),
		},
	}
	data, err := Json.Marshal(env)
	assert.Nil(t, err)

	var got *broker.TickEvent
	err = Route(context.Background(), data, Handlers{
		Tick: func(ctx context.Context, evt *broker.TickEvent) error {
			got = evt
			return nil
		},
	})
	assert.Nil(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, int64(43), got.RequestID)
	assert.True(t, got.Value.Equal(decimal.RequireFromString("25.5")))
}

func TestRouteWithoutHandlerIsNoop(t *testing.T) {
	env := &envelope{Type: broker.TickTopicType, Data: &broker.TickEvent{}}
	data, err := Json.Marshal(env)
	assert.Nil(t, err)
	assert.Nil(t, Route(context.Background(), data, Handlers{}))
}

func TestRouteRejectsGarbage(t *testing.T) {
	assert.NotNil(t, Route(context.Background(), []byte("not json"), Handlers{}))
}
