package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/l0gr1thm1k/ib-async/broker"
	"github.com/l0gr1thm1k/ib-async/future"
	"github.com/l0gr1thm1k/ib-async/instrument"
	"github.com/l0gr1thm1k/ib-async/protocol"
)

// ReconcileMarketData aligns the wire subscription of one instrument with its
// declared interest. Interest is effective only while at least one observer is
// registered; dropping the last observer or clearing the tick set cancels the
// subscription. Redundant calls send nothing.
func (s *Session) ReconcileMarketData(inst *instrument.Instrument) error {
	var desired []instrument.TickType
	if inst.HasObservers() {
		desired = inst.TickTypes()
	}

	s.mux.Lock()
	sub := s.subs[inst]
	switch {
	case len(desired) == 0 && sub == nil:
		s.mux.Unlock()
		return nil
	case len(desired) == 0:
		delete(s.subs, inst)
		delete(s.instByReq, sub.requestID)
		s.mux.Unlock()
		s.forgetSubscription(inst)
		return s.sendCancelMktData(sub.requestID)
	case sub != nil && tickTypesEqual(sub.lastSent, desired):
		s.mux.Unlock()
		return nil
	case sub != nil:
		// Interest changed: resubscribe on the same request id. The server
		// replaces the old subscription in place.
		sub.lastSent = append([]instrument.TickType(nil), desired...)
		reqID := sub.requestID
		s.mux.Unlock()
		s.rememberSubscription(inst, desired)
		return s.sendReqMktData(context.Background(), reqID, inst, desired, false)
	default:
		reqID := s.nextRequestID
		s.nextRequestID++
		s.subs[inst] = &subscription{
			requestID: reqID,
			lastSent:  append([]instrument.TickType(nil), desired...),
		}
		s.instByReq[reqID] = inst
		s.mux.Unlock()
		s.rememberSubscription(inst, desired)
		return s.sendReqMktData(context.Background(), reqID, inst, desired, false)
	}
}

// FetchMarketData issues a one-shot snapshot request. The future is registered
// before the request leaves so an immediate snapshot-end always finds it.
func (s *Session) FetchMarketData(ctx context.Context, inst *instrument.Instrument) (*future.Future[*instrument.Instrument], error) {
	reqID := s.allocRequestID()
	fut := future.New[*instrument.Instrument]()

	s.mux.Lock()
	s.snapshots[reqID] = fut
	s.instByReq[reqID] = inst
	s.mux.Unlock()

	if err := s.sendReqMktData(ctx, reqID, inst, nil, true); err != nil {
		s.mux.Lock()
		delete(s.snapshots, reqID)
		delete(s.instByReq, reqID)
		s.mux.Unlock()
		return nil, err
	}
	return fut, nil
}

// FetchRegulatorySnapshot requests a regulatory (NBBO) snapshot. The server
// only supports it from the smart-components version on, so the capability is
// checked before any wire traffic.
func (s *Session) FetchRegulatorySnapshot(ctx context.Context, inst *instrument.Instrument) (*future.Future[*instrument.Instrument], error) {
	if s.serverVersion < protocol.SmartComponents {
		return nil, fmt.Errorf("regulatory snapshot needs server version %d, have %d: %w",
			protocol.SmartComponents, s.serverVersion, protocol.ErrOutdatedServer)
	}
	reqID := s.allocRequestID()
	fut := future.New[*instrument.Instrument]()

	s.mux.Lock()
	s.snapshots[reqID] = fut
	s.instByReq[reqID] = inst
	s.mux.Unlock()

	b := buildReqMktData(reqID, inst, nil, true)
	b.WriteBool(true) // regulatory
	b.WriteString("") // mktDataOptions
	if err := s.send(ctx, b); err != nil {
		s.mux.Lock()
		delete(s.snapshots, reqID)
		delete(s.instByReq, reqID)
		s.mux.Unlock()
		return nil, err
	}
	return fut, nil
}

// ChangeMarketDataTimeliness selects the feed class (real-time, frozen,
// delayed) for subsequent ticks. The server confirms per request id with a
// market-data-type push.
func (s *Session) ChangeMarketDataTimeliness(ctx context.Context, t instrument.MarketDataTimeliness) error {
	b := protocol.NewBuilder(protocol.ReqMarketDataType)
	b.WriteInt(protocol.ReqMarketDataTypeVersion)
	b.WriteInt(int(t))
	return s.send(ctx, b)
}

// RestoreSubscriptions replays the tick interest persisted for this account
// onto freshly built instruments, typically right after a reconnect. The
// returned instruments still need observers before any traffic flows.
func (s *Session) RestoreSubscriptions(ctx context.Context) ([]*instrument.Instrument, error) {
	if s.opts.store == nil || s.opts.account == "" {
		return nil, nil
	}
	saved, err := s.opts.store.LoadSubscriptions(ctx, s.opts.account)
	if err != nil {
		return nil, err
	}
	insts := make([]*instrument.Instrument, 0, len(saved))
	for contractID, tickTypes := range saved {
		inst := instrument.New(s)
		inst.ContractID = contractID
		if err := inst.SetTickTypes(tickTypes...); err != nil {
			s.opts.logger.Errorf("restore subscription %d: %v", contractID, err)
			continue
		}
		insts = append(insts, inst)
	}
	return insts, nil
}

func (s *Session) sendReqMktData(ctx context.Context, reqID int64, inst *instrument.Instrument, ticks []instrument.TickType, snapshot bool) error {
	b := buildReqMktData(reqID, inst, ticks, snapshot)
	if s.serverVersion >= protocol.SmartComponents {
		b.WriteBool(false) // regulatory
	}
	b.WriteString("") // mktDataOptions
	return s.send(ctx, b)
}

func buildReqMktData(reqID int64, inst *instrument.Instrument, ticks []instrument.TickType, snapshot bool) *protocol.Builder {
	b := protocol.NewBuilder(protocol.ReqMktData)
	b.WriteInt(protocol.ReqMktDataVersion)
	b.WriteInt64(reqID)
	writeInstrumentFields(b, inst)
	b.WriteBool(false) // no delta-neutral contract
	b.WriteString(genericTickList(ticks))
	b.WriteBool(snapshot)
	return b
}

func (s *Session) sendCancelMktData(reqID int64) error {
	b := protocol.NewBuilder(protocol.CancelMktData)
	b.WriteInt(protocol.CancelMktDataVersion)
	b.WriteInt64(reqID)
	return s.send(context.Background(), b)
}

// writeInstrumentFields appends the contract identity in the order shared by
// market data requests and order placement.
func writeInstrumentFields(b *protocol.Builder, inst *instrument.Instrument) {
	b.WriteInt64(inst.ContractID)
	b.WriteString(inst.Symbol)
	b.WriteString(inst.SecurityType)
	b.WriteString(inst.Expiry)
	b.WriteDecimal(inst.Strike)
	b.WriteString(inst.Right)
	b.WriteString(inst.Multiplier)
	b.WriteString(inst.Exchange)
	b.WriteString(inst.PrimaryExchange)
	b.WriteString(inst.Currency)
	b.WriteString(inst.LocalSymbol)
	b.WriteString(inst.TradingClass)
}

func genericTickList(ticks []instrument.TickType) string {
	if len(ticks) == 0 {
		return ""
	}
	parts := make([]string, len(ticks))
	for n, t := range ticks {
		parts[n] = strconv.Itoa(int(t))
	}
	return strings.Join(parts, ",")
}

func tickTypesEqual(a, b []instrument.TickType) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if a[n] != b[n] {
			return false
		}
	}
	return true
}

func (s *Session) rememberSubscription(inst *instrument.Instrument, ticks []instrument.TickType) {
	if s.opts.store == nil || s.opts.account == "" {
		return
	}
	if err := s.opts.store.SaveSubscription(context.Background(), s.opts.account, inst.ContractID, ticks); err != nil {
		s.opts.logger.Errorf("persist subscription %d: %v", inst.ContractID, err)
	}
}

func (s *Session) forgetSubscription(inst *instrument.Instrument) {
	if s.opts.store == nil || s.opts.account == "" {
		return
	}
	if err := s.opts.store.DeleteSubscription(context.Background(), s.opts.account, inst.ContractID); err != nil {
		s.opts.logger.Errorf("drop subscription %d: %v", inst.ContractID, err)
	}
}

// instrumentFor resolves the target of a tick push. Ticks for retired or
// unknown request ids are dropped without effect.
func (s *Session) instrumentFor(reqID int64) *instrument.Instrument {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.instByReq[reqID]
}

func (s *Session) handleTickPrice(msg *protocol.Message) error {
	if err := msg.ReadVersion(); err != nil {
		return err
	}
	reqID, err := msg.ReadInt64()
	if err != nil {
		return err
	}
	tickType, err := msg.ReadInt()
	if err != nil {
		return err
	}
	price, err := msg.ReadDecimal()
	if err != nil {
		return err
	}
	size, err := msg.ReadDecimal(protocol.MinMessageVersion(2))
	if err != nil {
		return err
	}
	if _, err := msg.ReadInt(protocol.MinMessageVersion(3)); err != nil { // attrib mask
		return err
	}

	inst := s.instrumentFor(reqID)
	if inst == nil {
		s.opts.logger.Debugf("drop tick price for retired request %d", reqID)
		return nil
	}
	t := instrument.TickType(tickType)
	inst.RecordTick(t, price)
	s.publishTick(reqID, inst, t, price, "")
	if sizeTick, ok := instrument.SizeTickFor(t); ok {
		inst.RecordTick(sizeTick, size)
		s.publishTick(reqID, inst, sizeTick, size, "")
	}
	return nil
}

func (s *Session) handleTickSize(msg *protocol.Message) error {
	if err := msg.ReadVersion(); err != nil {
		return err
	}
	reqID, err := msg.ReadInt64()
	if err != nil {
		return err
	}
	tickType, err := msg.ReadInt()
	if err != nil {
		return err
	}
	size, err := msg.ReadDecimal()
	if err != nil {
		return err
	}

	inst := s.instrumentFor(reqID)
	if inst == nil {
		return nil
	}
	t := instrument.TickType(tickType)
	inst.RecordTick(t, size)
	s.publishTick(reqID, inst, t, size, "")
	return nil
}

func (s *Session) handleTickGeneric(msg *protocol.Message) error {
	if err := msg.ReadVersion(); err != nil {
		return err
	}
	reqID, err := msg.ReadInt64()
	if err != nil {
		return err
	}
	tickType, err := msg.ReadInt()
	if err != nil {
		return err
	}
	value, err := msg.ReadDecimal()
	if err != nil {
		return err
	}

	inst := s.instrumentFor(reqID)
	if inst == nil {
		return nil
	}
	t := instrument.TickType(tickType)
	inst.RecordTick(t, value)
	s.publishTick(reqID, inst, t, value, "")
	return nil
}

func (s *Session) handleTickString(msg *protocol.Message) error {
	if err := msg.ReadVersion(); err != nil {
		return err
	}
	reqID, err := msg.ReadInt64()
	if err != nil {
		return err
	}
	tickType, err := msg.ReadInt()
	if err != nil {
		return err
	}
	value, err := msg.ReadString()
	if err != nil {
		return err
	}

	inst := s.instrumentFor(reqID)
	if inst == nil {
		return nil
	}
	t := instrument.TickType(tickType)
	inst.RecordTickText(t, value)
	s.publishTick(reqID, inst, t, decimal.Zero, value)
	return nil
}

// handleTickSnapshotEnd resolves the snapshot future and retires the request
// id. Popping before resolving keeps resolution at-most-once even when the
// server repeats the push.
func (s *Session) handleTickSnapshotEnd(msg *protocol.Message) error {
	if err := msg.ReadVersion(); err != nil {
		return err
	}
	reqID, err := msg.ReadInt64()
	if err != nil {
		return err
	}

	s.mux.Lock()
	fut := s.snapshots[reqID]
	delete(s.snapshots, reqID)
	inst := s.instByReq[reqID]
	delete(s.instByReq, reqID)
	s.mux.Unlock()

	if fut != nil && inst != nil {
		fut.Resolve(inst)
	}
	return nil
}

// handleTickReqParams carries no message version field: the first field after
// the id is already the request id.
func (s *Session) handleTickReqParams(msg *protocol.Message) error {
	reqID, err := msg.ReadInt64()
	if err != nil {
		return err
	}
	minTick, err := msg.ReadDecimal()
	if err != nil {
		return err
	}
	bboExchange, err := msg.ReadString()
	if err != nil {
		return err
	}
	snapshotPermissions, err := msg.ReadInt()
	if err != nil {
		return err
	}

	inst := s.instrumentFor(reqID)
	if inst == nil {
		return nil
	}
	inst.SetMarketDataParams(minTick, bboExchange, snapshotPermissions)
	return nil
}

func (s *Session) handleMarketDataType(msg *protocol.Message) error {
	if err := msg.ReadVersion(); err != nil {
		return err
	}
	reqID, err := msg.ReadInt64()
	if err != nil {
		return err
	}
	dataType, err := msg.ReadInt()
	if err != nil {
		return err
	}

	inst := s.instrumentFor(reqID)
	if inst == nil {
		return nil
	}
	inst.SetTimeliness(instrument.MarketDataTimeliness(dataType))
	return nil
}

func (s *Session) publishTick(reqID int64, inst *instrument.Instrument, t instrument.TickType, value decimal.Decimal, text string) {
	if s.opts.publisher == nil {
		return
	}
	evt := &broker.TickEvent{
		RequestID:  reqID,
		ContractID: inst.ContractID,
		Symbol:     inst.Symbol,
		TickType:   int(t),
		Value:      value,
		Text:       text,
		Timestamp:  time.Now().UnixMilli(),
	}
	if err := s.opts.publisher.Publish(context.Background(), broker.TickTopicType, evt); err != nil {
		s.opts.logger.Errorf("publish tick: %v", err)
	}
}
