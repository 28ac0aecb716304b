package client

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/l0gr1thm1k/ib-async/broker"
	"github.com/l0gr1thm1k/ib-async/future"
	"github.com/l0gr1thm1k/ib-async/instrument"
	"github.com/l0gr1thm1k/ib-async/order"
	"github.com/l0gr1thm1k/ib-async/protocol"
)

// GetOrder returns the order, if it is known. Note that the client doesn't
// know about all orders of the account.
func (s *Session) GetOrder(orderID int64) *order.Order {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.orders[orderID]
}

// GetOpenOrders asks the server for every open order of this account. The
// future resolves with the known orders once the open-order-end push arrives.
func (s *Session) GetOpenOrders(ctx context.Context) (*future.Future[[]*order.Order], error) {
	s.mux.Lock()
	if s.openOrdersFut == nil {
		s.openOrdersFut = future.New[[]*order.Order]()
	}
	fut := s.openOrdersFut
	s.mux.Unlock()

	b := protocol.NewBuilder(protocol.ReqAllOpenOrders)
	b.WriteInt(protocol.ReqAllOpenOrdersVersion)
	if err := s.send(ctx, b); err != nil {
		return nil, err
	}
	return fut, nil
}

// CreateMarketOrder composes and places a market order. A negative quantity
// sells.
func (s *Session) CreateMarketOrder(ctx context.Context, inst *instrument.Instrument, quantity decimal.Decimal) (*future.Future[*order.Order], error) {
	o := order.New(s)
	o.Instrument = inst
	o.OrderType = order.TypeMarket
	o.TimeInForce = order.TimeInForceGTC
	o.Action, o.TotalQuantity = actionFor(quantity)
	return s.PlaceOrder(ctx, o)
}

// CreateLimitOrder composes and places a limit order. A negative quantity
// sells.
func (s *Session) CreateLimitOrder(ctx context.Context, inst *instrument.Instrument, quantity decimal.Decimal, limit decimal.Decimal) (*future.Future[*order.Order], error) {
	o := order.New(s)
	o.Instrument = inst
	o.OrderType = order.TypeLimit
	o.LimitPrice = limit
	o.TimeInForce = order.TimeInForceGTC
	o.Action, o.TotalQuantity = actionFor(quantity)
	return s.PlaceOrder(ctx, o)
}

func actionFor(quantity decimal.Decimal) (order.Action, decimal.Decimal) {
	if quantity.IsNegative() {
		return order.ActionSell, quantity.Neg()
	}
	return order.ActionBuy, quantity
}

// PlaceOrder transmits the order and returns a future that resolves with the
// first acknowledgment push (order-status or open-order, whichever arrives
// first) or fails with the server's error. The pending future is registered
// before transmission so an immediate reply always finds it.
func (s *Session) PlaceOrder(ctx context.Context, o *order.Order) (*future.Future[*order.Order], error) {
	if o.Instrument == nil {
		return nil, errors.New("order has no instrument")
	}
	if o.OrderID == 0 {
		o.OrderID = s.NextOrderID()
	}

	fut := future.New[*order.Order]()
	s.mux.Lock()
	s.orders[o.OrderID] = o
	s.pendingPlace[o.OrderID] = fut
	s.mux.Unlock()

	if err := s.send(ctx, encodePlaceOrder(o)); err != nil {
		s.mux.Lock()
		delete(s.pendingPlace, o.OrderID)
		s.mux.Unlock()
		return nil, err
	}
	return fut, nil
}

// CancelOrder asks the server to cancel the order. The resulting status push
// updates the order record like any other.
func (s *Session) CancelOrder(ctx context.Context, o *order.Order) error {
	b := protocol.NewBuilder(protocol.CancelOrder)
	b.WriteInt(protocol.CancelOrderVersion)
	b.WriteInt64(o.OrderID)
	return s.send(ctx, b)
}

func encodePlaceOrder(o *order.Order) *protocol.Builder {
	b := protocol.NewBuilder(protocol.PlaceOrder)
	b.WriteInt(protocol.PlaceOrderVersion)
	b.WriteInt64(o.OrderID)

	writeInstrumentFields(b, o.Instrument)
	b.WriteString("") // secIdType
	b.WriteString("") // secId

	b.WriteString(string(o.Action))
	b.WriteDecimal(o.TotalQuantity)
	b.WriteString(string(o.OrderType))
	b.WriteDecimal(o.LimitPrice)
	b.WriteDecimal(o.AuxPrice)
	b.WriteString(string(o.TimeInForce))
	b.WriteString(o.OCAGroup)
	b.WriteString(o.Account)
	b.WriteString(o.OpenClose)
	b.WriteInt(int(o.Origin))
	b.WriteString(o.OrderRef)
	b.WriteBool(true) // transmit
	b.WriteInt64(o.ParentID)
	b.WriteBool(o.BlockOrder)
	b.WriteBool(o.SweepToFill)
	b.WriteDecimal(o.DisplaySize)
	b.WriteInt(o.TriggerMethod)
	b.WriteBool(o.OutsideRTH)
	b.WriteBool(o.Hidden)
	b.WriteString("") // deprecated sharesAllocation
	b.WriteDecimal(o.DiscretionaryAmount)
	b.WriteString(o.GoodAfterTime)
	b.WriteString(o.GoodTillDate)
	b.WriteString(o.FAGroup)
	b.WriteString(o.FAMethod)
	b.WriteString(o.FAPercentage)
	b.WriteString(o.FAProfile)
	b.WriteString(o.ModelCode)
	b.WriteInt(o.ShortSaleSlot)
	b.WriteString(o.DesignatedLocation)
	b.WriteInt(o.ExemptCode)
	b.WriteInt(o.OCAType)
	b.WriteString(o.Rule80A)
	b.WriteString(o.SettlingFirm)
	b.WriteBool(o.AllOrNone)
	b.WriteDecimal(o.MinQuantity)
	b.WriteDecimal(o.PercentOffset)
	b.WriteBool(o.ETradeOnly)
	b.WriteBool(o.FirmQuoteOnly)
	b.WriteDecimal(o.NBBOPriceCap)
	b.WriteString(o.AuctionStrategy)
	b.WriteDecimal(o.StartingPrice)
	b.WriteDecimal(o.StockRefPrice)
	b.WriteDecimal(o.Delta)
	b.WriteDecimal(o.StockRangeLower)
	b.WriteDecimal(o.StockRangeUpper)
	b.WriteBool(o.OverridePercentageConstraints)
	b.WriteDecimal(o.Volatility)
	b.WriteInt(o.VolatilityType)
	b.WriteString(o.DeltaNeutralOrderType)
	b.WriteDecimal(o.DeltaNeutralAuxPrice)
	b.WriteBool(o.ContinuousUpdate)
	b.WriteInt(o.ReferencePriceType)
	b.WriteDecimal(o.TrailStopPrice)
	b.WriteDecimal(o.TrailingPercent)
	b.WriteInt(o.ScaleInitLevelSize)
	b.WriteInt(o.ScaleSubsLevelSize)
	b.WriteDecimal(o.ScalePriceIncrement)
	b.WriteString(o.HedgeType)
	if o.HedgeType != "" {
		b.WriteString(o.HedgeParam)
	}
	b.WriteBool(o.OptOutSmartRouting)
	b.WriteString(o.ClearingAccount)
	b.WriteString(o.ClearingIntent)
	b.WriteBool(o.NotHeld)
	b.WriteBool(false) // no delta-neutral contract
	b.WriteString(o.AlgoStrategy)
	if o.AlgoStrategy != "" {
		b.WriteInt(len(o.AlgoParams))
		for tag, value := range o.AlgoParams {
			b.WriteString(tag)
			b.WriteString(value)
		}
	}
	b.WriteBool(o.WhatIf)
	b.WriteString("") // misc options
	b.WriteBool(o.Solicited)
	b.WriteBool(o.RandomizeSize)
	b.WriteBool(o.RandomizePrice)
	return b
}

// handleOrderStatus applies an execution-progress push. A push for an id the
// ledger has never seen materializes a new record: another client of the same
// account may have placed the order.
func (s *Session) handleOrderStatus(msg *protocol.Message) error {
	var err error
	readStr := func(opts ...protocol.ReadOption) string {
		if err != nil {
			return ""
		}
		var v string
		v, err = msg.ReadString(opts...)
		return v
	}
	readInt := func(opts ...protocol.ReadOption) int {
		if err != nil {
			return 0
		}
		var v int
		v, err = msg.ReadInt(opts...)
		return v
	}
	readInt64 := func(opts ...protocol.ReadOption) int64 {
		if err != nil {
			return 0
		}
		var v int64
		v, err = msg.ReadInt64(opts...)
		return v
	}
	readDec := func(opts ...protocol.ReadOption) decimal.Decimal {
		if err != nil {
			return decimal.Zero
		}
		var v decimal.Decimal
		v, err = msg.ReadDecimal(opts...)
		return v
	}

	if err = msg.ReadVersion(); err != nil {
		return err
	}
	orderID := readInt64()
	status := readStr()
	filled := readDec()
	remaining := readDec()
	averageFillPrice := readDec()
	permID := readInt64()
	parentID := readInt64()
	lastFillPrice := readDec()
	clientID := readInt()
	whyHeld := readStr()
	marketCapPrice := readDec(protocol.MinVersion(protocol.MarketCapPrice))
	if err != nil {
		return err
	}

	o, fut := s.ledgerEntry(orderID)
	o.Status = status
	o.Filled = filled
	o.Remaining = remaining
	o.AverageFillPrice = averageFillPrice
	o.PermID = permID
	o.ParentID = parentID
	o.LastFillPrice = lastFillPrice
	o.ClientID = clientID
	o.WhyHeld = whyHeld
	o.MarketCapPrice = marketCapPrice

	o.Updated()
	if fut != nil {
		fut.Resolve(o)
	}
	s.publishOrderUpdate(o)
	return nil
}

// ledgerEntry returns the order record for an id, creating it when a push
// references an unknown id, and pops the pending placement future if one is
// still outstanding. Popping before resolving keeps resolution at-most-once:
// ids are reused by the server, so a stale future must never be matched by a
// later, unrelated message.
func (s *Session) ledgerEntry(orderID int64) (*order.Order, *future.Future[*order.Order]) {
	s.mux.Lock()
	defer s.mux.Unlock()
	o := s.orders[orderID]
	if o == nil {
		o = order.New(s)
		o.OrderID = orderID
		s.orders[orderID] = o
	}
	fut := s.pendingPlace[orderID]
	if fut != nil {
		delete(s.pendingPlace, orderID)
	}
	return o, fut
}

// handleOpenOrder applies the full order-definition dump. The field layout is
// strictly sequential; every read below is in exact wire order and gated on
// the version rules of the negotiated protocol and the message format.
func (s *Session) handleOpenOrder(msg *protocol.Message) error {
	var err error
	readStr := func(opts ...protocol.ReadOption) string {
		if err != nil {
			return ""
		}
		var v string
		v, err = msg.ReadString(opts...)
		return v
	}
	readInt := func(opts ...protocol.ReadOption) int {
		if err != nil {
			return 0
		}
		var v int
		v, err = msg.ReadInt(opts...)
		return v
	}
	readInt64 := func(opts ...protocol.ReadOption) int64 {
		if err != nil {
			return 0
		}
		var v int64
		v, err = msg.ReadInt64(opts...)
		return v
	}
	readDec := func(opts ...protocol.ReadOption) decimal.Decimal {
		if err != nil {
			return decimal.Zero
		}
		var v decimal.Decimal
		v, err = msg.ReadDecimal(opts...)
		return v
	}
	readBool := func(opts ...protocol.ReadOption) bool {
		if err != nil {
			return false
		}
		var v bool
		v, err = msg.ReadBool(opts...)
		return v
	}
	readTags := func(opts ...protocol.ReadOption) map[string]string {
		if err != nil {
			return nil
		}
		var v map[string]string
		v, err = msg.ReadTagValues(opts...)
		return v
	}

	if err = msg.ReadVersion(); err != nil {
		return err
	}
	orderID := readInt64()
	if err != nil {
		return err
	}

	o, fut := s.ledgerEntry(orderID)
	if o.Instrument == nil {
		o.Instrument = instrument.New(s)
	}
	inst := o.Instrument

	inst.ContractID = readInt64()
	inst.Symbol = readStr()
	inst.SecurityType = readStr()
	inst.Expiry = readStr()
	inst.Strike = readDec()
	inst.Right = readStr()
	inst.Multiplier = readStr()
	inst.Exchange = readStr()
	inst.Currency = readStr()
	inst.LocalSymbol = readStr()
	inst.TradingClass = readStr()

	o.Action = order.Action(readStr())
	o.TotalQuantity = readDec()
	o.OrderType = order.Type(readStr())
	o.LimitPrice = readDec()
	o.AuxPrice = readDec()
	o.TimeInForce = order.TimeInForce(readStr())
	o.OCAGroup = readStr()
	o.Account = readStr()
	o.OpenClose = readStr()
	o.Origin = order.Origin(readInt())
	o.OrderRef = readStr()
	o.ClientID = readInt()
	o.PermID = readInt64()
	o.OutsideRTH = readBool()
	o.Hidden = readBool()
	o.DiscretionaryAmount = readDec()
	o.GoodAfterTime = readStr()
	readStr() // deprecated sharesAllocation
	o.FAGroup = readStr()
	o.FAMethod = readStr()
	o.FAPercentage = readStr()
	o.FAProfile = readStr()

	o.ModelCode = readStr(protocol.MinVersion(protocol.ModelsSupport))
	o.GoodTillDate = readStr()
	o.Rule80A = readStr()
	o.PercentOffset = readDec()
	o.SettlingFirm = readStr()
	o.ShortSaleSlot = readInt()
	o.DesignatedLocation = readStr()
	o.ExemptCode = readInt()
	o.AuctionStrategy = readStr()
	o.StartingPrice = readDec()
	o.StockRefPrice = readDec()
	o.Delta = readDec()
	o.StockRangeLower = readDec()
	o.StockRangeUpper = readDec()
	o.DisplaySize = readDec()

	o.BlockOrder = readBool()
	o.SweepToFill = readBool()
	o.AllOrNone = readBool()
	o.MinQuantity = readDec()
	o.OCAType = readInt()
	o.ETradeOnly = readBool()
	o.FirmQuoteOnly = readBool()
	o.NBBOPriceCap = readDec()
	o.ParentID = readInt64()
	o.TriggerMethod = readInt()
	o.Volatility = readDec()
	o.VolatilityType = readInt()
	o.DeltaNeutralOrderType = readStr()
	o.DeltaNeutralAuxPrice = readDec()

	if o.DeltaNeutralOrderType != "" {
		o.DeltaNeutralContractID = readInt64()
		o.DeltaNeutralSettlingFirm = readStr()
		o.DeltaNeutralClearingAccount = readStr()
		o.DeltaNeutralClearingIntent = readStr()
		o.DeltaNeutralOpenClose = readStr()
		o.DeltaNeutralShortSale = readBool()
		o.DeltaNeutralShortSaleSlot = readInt()
		o.DeltaNeutralDesignatedLocation = readStr()
	}

	o.ContinuousUpdate = readBool()
	o.ReferencePriceType = readInt()
	o.TrailStopPrice = readDec()
	o.TrailingPercent = readDec()
	o.BasisPoints = readDec()
	o.BasisPointsType = readInt()
	o.ComboLegsDescription = readStr()

	if n := readInt(); err == nil && n > 0 {
		return &protocol.UnsupportedFeatureError{Feature: "combo legs"}
	}
	if n := readInt(); err == nil && n > 0 {
		return &protocol.UnsupportedFeatureError{Feature: "order combo legs"}
	}

	o.SmartComboRoutingParams = readTags()
	o.ScaleInitLevelSize = readInt()
	o.ScaleSubsLevelSize = readInt()
	o.ScalePriceIncrement = readDec()

	if err == nil && o.ScalePriceIncrement.IsPositive() {
		o.ScalePriceAdjustValue = readDec(protocol.MinMessageVersion(28))
		o.ScalePriceAdjustInterval = readInt(protocol.MinMessageVersion(28))
		o.ScaleProfitOffset = readDec(protocol.MinMessageVersion(28))
		o.ScaleAutoReset = readBool(protocol.MinMessageVersion(28))
		o.ScaleInitPosition = readInt(protocol.MinMessageVersion(28))
		o.ScaleInitFillQuantity = readInt(protocol.MinMessageVersion(28))
		o.ScaleRandomPercent = readBool(protocol.MinMessageVersion(28))
	}

	o.HedgeType = readStr(protocol.MinMessageVersion(24))
	if o.HedgeType != "" {
		o.HedgeParam = readStr()
	}

	o.OptOutSmartRouting = readBool(protocol.MinMessageVersion(25))

	o.ClearingAccount = readStr()
	o.ClearingIntent = readStr()

	o.NotHeld = readBool(protocol.MinMessageVersion(22))

	if readBool(protocol.MinMessageVersion(20)) {
		uc := &instrument.UnderlyingComponent{}
		uc.ContractID = readInt64()
		uc.Delta = readDec()
		uc.Price = readDec()
		inst.Underlying = uc
	}

	o.AlgoStrategy = readStr(protocol.MinMessageVersion(21))
	if o.AlgoStrategy != "" {
		o.AlgoParams = readTags()
	}

	o.Solicited = readBool(protocol.MinMessageVersion(33))

	o.WhatIf = readBool()

	o.Status = readStr()
	o.InitialMargin = readStr()
	o.MaintenanceMargin = readStr()
	o.EquityWithLoan = readStr()
	o.Commission = readDec()
	o.MinCommission = readDec()
	o.MaxCommission = readDec()
	o.CommissionCurrency = readStr()
	o.WarningText = readStr()

	o.RandomizeSize = readBool(protocol.MinMessageVersion(34))
	o.RandomizePrice = readBool(protocol.MinMessageVersion(34))

	if o.OrderType == order.TypePegBench {
		o.ReferenceContractID = readInt64(protocol.MinVersion(protocol.PeggedToBenchmark))
		o.IsPeggedChangeAmountDecrease = readBool(protocol.MinVersion(protocol.PeggedToBenchmark))
		o.PeggedChangeAmount = readDec(protocol.MinVersion(protocol.PeggedToBenchmark))
		o.ReferenceChangeAmount = readDec(protocol.MinVersion(protocol.PeggedToBenchmark))
		o.ReferenceExchangeID = readStr(protocol.MinVersion(protocol.PeggedToBenchmark))
	}

	if n := readInt(protocol.MinVersion(protocol.PeggedToBenchmark)); err == nil && n > 0 {
		return &protocol.UnsupportedFeatureError{Feature: "order conditions"}
	}

	o.AdjustedOrderType = readStr(protocol.MinVersion(protocol.PeggedToBenchmark))
	o.TriggerPrice = readDec(protocol.MinVersion(protocol.PeggedToBenchmark))
	o.TrailStopPrice = readDec(protocol.MinVersion(protocol.PeggedToBenchmark))
	o.LimitPriceOffset = readDec(protocol.MinVersion(protocol.PeggedToBenchmark))
	o.AdjustedStopPrice = readDec(protocol.MinVersion(protocol.PeggedToBenchmark))
	o.AdjustedStopLimitPrice = readDec(protocol.MinVersion(protocol.PeggedToBenchmark))
	o.AdjustedTrailingAmount = readDec(protocol.MinVersion(protocol.PeggedToBenchmark))
	o.AdjustableTrailingUnit = readInt(protocol.MinVersion(protocol.PeggedToBenchmark))

	o.SoftDollarTierName = readStr(protocol.MinVersion(protocol.SoftDollarTier))
	o.SoftDollarTierValue = readStr(protocol.MinVersion(protocol.SoftDollarTier))
	o.SoftDollarTierDisplayName = readStr(protocol.MinVersion(protocol.SoftDollarTier))

	o.CashQuantity = readDec(protocol.MinVersion(protocol.CashQty))

	if err != nil {
		return err
	}

	if fut != nil {
		fut.Resolve(o)
	}
	o.Updated()
	s.publishOrderUpdate(o)
	return nil
}

func (s *Session) handleOpenOrderEnd(msg *protocol.Message) error {
	if err := msg.ReadVersion(); err != nil {
		return err
	}
	s.mux.Lock()
	fut := s.openOrdersFut
	s.openOrdersFut = nil
	all := make([]*order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		all = append(all, o)
	}
	s.mux.Unlock()

	if fut != nil {
		fut.Resolve(all)
	}
	return nil
}

func (s *Session) publishOrderUpdate(o *order.Order) {
	if s.opts.publisher == nil {
		return
	}
	evt := &broker.OrderUpdateEvent{
		OrderID:          o.OrderID,
		PermID:           o.PermID,
		ClientID:         o.ClientID,
		Status:           o.Status,
		Filled:           o.Filled,
		Remaining:        o.Remaining,
		AverageFillPrice: o.AverageFillPrice,
		WhyHeld:          o.WhyHeld,
		Timestamp:        time.Now().UnixMilli(),
	}
	if o.Instrument != nil {
		evt.Symbol = o.Instrument.Symbol
	}
	if err := s.opts.publisher.Publish(context.Background(), broker.OrderUpdateTopicType, evt); err != nil {
		s.opts.logger.Errorf("publish order update: %v", err)
	}
}
