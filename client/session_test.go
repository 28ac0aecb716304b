package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/l0gr1thm1k/ib-async/order"
	"github.com/l0gr1thm1k/ib-async/protocol"
	mock_transport "github.com/l0gr1thm1k/ib-async/transport/mocks"
)

func TestConnectPropagatesDialError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dialErr := errors.New("connection refused")
	conn := mock_transport.NewMockFrameConn(ctrl)
	conn.EXPECT().Connect(gomock.Any()).Return(0, dialErr)

	s := NewSession(conn)
	assert.Equal(t, dialErr, s.Connect(context.Background()))
}

func TestConnectRejectsOutdatedServer(t *testing.T) {
	conn := newFakeConn()
	conn.version = int(protocol.MinClient) - 1
	s := NewSession(conn)

	err := s.Connect(context.Background())
	assert.True(t, errors.Is(err, protocol.ErrOutdatedServer))
}

func TestLimitOrderEndToEnd(t *testing.T) {
	conn := newFakeConn()
	s := NewSession(conn)
	assert.Nil(t, s.Connect(context.Background()))
	defer s.Close()

	// connect solicits the id floor right away
	assert.Equal(t, []string{"8", "1", "1"}, conn.sentAt(0))
	conn.push("9", "1", "10") // next valid id

	assert.Eventually(t, func() bool {
		s.mux.Lock()
		defer s.mux.Unlock()
		return s.nextOrderID == 10
	}, time.Second, time.Millisecond)

	inst := newTestInstrument(s)
	fut, err := s.CreateLimitOrder(context.Background(), inst, decimal.NewFromInt(100), decimal.RequireFromString("25.5"))
	assert.Nil(t, err)
	assert.Equal(t, "10", conn.sentAt(1)[2])

	conn.push("3", "8", "10", order.StatusSubmitted, "0", "100", "0", "123456", "0", "0", "1", "", "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	o, err := fut.Await(ctx)
	assert.Nil(t, err)
	assert.Equal(t, int64(10), o.OrderID)
	assert.Equal(t, order.StatusSubmitted, o.Status)
}

func TestDecodeErrorTearsSessionDown(t *testing.T) {
	conn := newFakeConn()
	s := NewSession(conn)
	assert.Nil(t, s.Connect(context.Background()))

	inst := newTestInstrument(s)
	fut, err := s.CreateLimitOrder(context.Background(), inst, decimal.NewFromInt(1), decimal.RequireFromString("1"))
	assert.Nil(t, err)

	// a malformed numeric field means the cursor cannot be trusted anymore
	conn.push("3", "8", "not-a-number")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = fut.Await(ctx)
	assert.True(t, errors.Is(err, protocol.ErrConnectionClosed))

	assert.Eventually(t, func() bool {
		s.mux.Lock()
		defer s.mux.Unlock()
		return s.closed
	}, time.Second, time.Millisecond)
}

func TestUnknownMessageIsIgnored(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn)

	fatal := s.dispatch(msgOf(t, s, "17", "1", "whatever"))
	assert.False(t, fatal)
}

func TestConnectionLossFailsEverything(t *testing.T) {
	conn := newFakeConn()
	s := NewSession(conn)
	assert.Nil(t, s.Connect(context.Background()))

	inst := newTestInstrument(s)
	placeFut, err := s.CreateLimitOrder(context.Background(), inst, decimal.NewFromInt(1), decimal.RequireFromString("1"))
	assert.Nil(t, err)
	snapFut, err := s.FetchMarketData(context.Background(), inst)
	assert.Nil(t, err)

	conn.Close() // the read loop sees EOF

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = placeFut.Await(ctx)
	assert.True(t, errors.Is(err, protocol.ErrConnectionClosed))
	_, err = snapFut.Await(ctx)
	assert.True(t, errors.Is(err, protocol.ErrConnectionClosed))
}
