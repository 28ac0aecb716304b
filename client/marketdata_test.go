package client

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/l0gr1thm1k/ib-async/instrument"
	"github.com/l0gr1thm1k/ib-async/protocol"
)

func newTestInstrument(s *Session) *instrument.Instrument {
	inst := s.NewInstrument()
	inst.ContractID = 265598
	inst.Symbol = "AAPL"
	inst.SecurityType = "STK"
	inst.Exchange = "SMART"
	inst.Currency = "USD"
	return inst
}

func TestInterestWithoutObserversSendsNothing(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn)
	inst := newTestInstrument(s)

	assert.Nil(t, inst.SetTickTypes(instrument.TickBid, instrument.TickAsk))
	assert.Equal(t, 0, conn.sentCount())
}

func TestSubscribeResubscribeCancel(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn)
	inst := newTestInstrument(s)

	assert.Nil(t, inst.SetTickTypes(instrument.TickBid, instrument.TickAsk))
	cancel, err := inst.OnMarketData(func(instrument.TickType) {})
	assert.Nil(t, err)

	assert.Equal(t, 1, conn.sentCount())
	fields := conn.sentAt(0)
	assert.Equal(t, "1", fields[0])    // req mkt data
	assert.Equal(t, "11", fields[1])   // message version
	assert.Equal(t, "1", fields[2])    // request id
	assert.Equal(t, "AAPL", fields[4]) // contract follows
	assert.Equal(t, "1,2", fields[16]) // tick interest
	assert.Equal(t, "0", fields[17])   // not a snapshot

	// growing the interest resubscribes on the same request id
	assert.Nil(t, inst.SetTickTypes(instrument.TickBid, instrument.TickAsk, instrument.TickLast))
	assert.Equal(t, 2, conn.sentCount())
	fields = conn.sentAt(1)
	assert.Equal(t, "1", fields[0])
	assert.Equal(t, "1", fields[2])
	assert.Equal(t, "1,2,4", fields[16])

	// declaring the same interest again is a no-op
	assert.Nil(t, inst.SetTickTypes(instrument.TickBid, instrument.TickAsk, instrument.TickLast))
	assert.Equal(t, 2, conn.sentCount())

	// dropping the last observer cancels
	cancel()
	assert.Equal(t, 3, conn.sentCount())
	assert.Equal(t, []string{"2", "2", "1"}, conn.sentAt(2))
}

func TestEmptyInterestCancelsSubscription(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn)
	inst := newTestInstrument(s)

	assert.Nil(t, inst.SetTickTypes(instrument.TickBid))
	_, err := inst.OnMarketData(func(instrument.TickType) {})
	assert.Nil(t, err)
	assert.Equal(t, 1, conn.sentCount())

	assert.Nil(t, inst.SetTickTypes())
	assert.Equal(t, 2, conn.sentCount())
	assert.Equal(t, "2", conn.sentAt(1)[0])

	// no subscription left to cancel
	assert.Nil(t, inst.SetTickTypes())
	assert.Equal(t, 2, conn.sentCount())
}

func TestTickPriceRecordsPairedSize(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn)
	inst := newTestInstrument(s)

	var got []instrument.TickType
	assert.Nil(t, inst.SetTickTypes(instrument.TickBid))
	_, err := inst.OnMarketData(func(tt instrument.TickType) {
		got = append(got, tt)
	})
	assert.Nil(t, err)

	err = s.handleTickPrice(msgOf(t, s, "1", "3", "1", "1", "25.5", "300", "0"))
	assert.Nil(t, err)

	bid, ok := inst.TickValue(instrument.TickBid)
	assert.True(t, ok)
	assert.True(t, bid.Equal(decimal.RequireFromString("25.5")))
	bidSize, ok := inst.TickValue(instrument.TickBidSize)
	assert.True(t, ok)
	assert.True(t, bidSize.Equal(decimal.NewFromInt(300)))

	// price tick first, implied size tick second
	assert.Equal(t, []instrument.TickType{instrument.TickBid, instrument.TickBidSize}, got)
}

func TestTickForRetiredRequestIsDropped(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn)

	err := s.handleTickPrice(msgOf(t, s, "1", "3", "99", "1", "25.5", "300", "0"))
	assert.Nil(t, err)
	err = s.handleTickSize(msgOf(t, s, "2", "1", "99", "0", "300"))
	assert.Nil(t, err)
	err = s.handleTickString(msgOf(t, s, "46", "1", "99", "45", "text"))
	assert.Nil(t, err)
}

func TestTickGenericAndString(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn)
	inst := newTestInstrument(s)

	assert.Nil(t, inst.SetTickTypes(instrument.TickShortable))
	_, err := inst.OnMarketData(func(instrument.TickType) {})
	assert.Nil(t, err)

	err = s.handleTickGeneric(msgOf(t, s, "45", "1", "1", "46", "3.0"))
	assert.Nil(t, err)
	v, ok := inst.TickValue(instrument.TickShortable)
	assert.True(t, ok)
	assert.True(t, v.Equal(decimal.RequireFromString("3.0")))

	err = s.handleTickString(msgOf(t, s, "46", "1", "1", "46", "shortable"))
	assert.Nil(t, err)
	txt, ok := inst.TickText(instrument.TickShortable)
	assert.True(t, ok)
	assert.Equal(t, "shortable", txt)
}

func TestSnapshotLifecycle(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn)
	inst := newTestInstrument(s)

	fut, err := s.FetchMarketData(context.Background(), inst)
	assert.Nil(t, err)
	fields := conn.sentAt(0)
	assert.Equal(t, "1", fields[0])
	reqID := fields[2]
	assert.Equal(t, "1", fields[17]) // snapshot flag

	err = s.handleTickPrice(msgOf(t, s, "1", "3", reqID, "4", "101.5", "10", "0"))
	assert.Nil(t, err)
	err = s.handleTickSnapshotEnd(msgOf(t, s, "57", "1", reqID))
	assert.Nil(t, err)

	got, err := fut.Await(context.Background())
	assert.Nil(t, err)
	assert.Same(t, inst, got)
	last, ok := got.TickValue(instrument.TickLast)
	assert.True(t, ok)
	assert.True(t, last.Equal(decimal.RequireFromString("101.5")))

	// a repeated end push for the retired id is ignored
	err = s.handleTickSnapshotEnd(msgOf(t, s, "57", "1", reqID))
	assert.Nil(t, err)
}

func TestRegulatorySnapshotGuard(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn)
	s.serverVersion = protocol.SmartComponents - 1
	inst := newTestInstrument(s)

	_, err := s.FetchRegulatorySnapshot(context.Background(), inst)
	assert.True(t, errors.Is(err, protocol.ErrOutdatedServer))
	assert.Equal(t, 0, conn.sentCount())
}

func TestTickReqParamsHasNoVersionField(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn)
	inst := newTestInstrument(s)

	assert.Nil(t, inst.SetTickTypes(instrument.TickBid))
	_, err := inst.OnMarketData(func(instrument.TickType) {})
	assert.Nil(t, err)

	// first field after the id is already the request id
	err = s.handleTickReqParams(msgOf(t, s, "81", "1", "0.001", "LSE", "4"))
	assert.Nil(t, err)

	assert.True(t, inst.MinimumTick().Equal(decimal.RequireFromString("0.001")))
	assert.Equal(t, "LSE", inst.BBOExchange())
	assert.Equal(t, 4, inst.SnapshotPermissions())
}

func TestMarketDataTypePush(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn)
	inst := newTestInstrument(s)

	assert.Nil(t, inst.SetTickTypes(instrument.TickBid))
	_, err := inst.OnMarketData(func(instrument.TickType) {})
	assert.Nil(t, err)

	err = s.handleMarketDataType(msgOf(t, s, "58", "1", "1", "3"))
	assert.Nil(t, err)
	assert.Equal(t, instrument.Delayed, inst.Timeliness())
}

func TestChangeMarketDataTimelinessEncoding(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(conn)

	assert.Nil(t, s.ChangeMarketDataTimeliness(context.Background(), instrument.Delayed))
	assert.Equal(t, []string{"59", "1", "3"}, conn.sentAt(0))
}
