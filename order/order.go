package order

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/l0gr1thm1k/ib-async/instrument"
)

// Action BUY, SELL
type Action string

// Type MKT, LMT, ...
type Type string

// TimeInForce GTC, DAY, IOC, GTD
type TimeInForce string

// Origin of an order as reported by the server.
type Origin int

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"

	TypeMarket      Type = "MKT"
	TypeLimit       Type = "LMT"
	TypeStop        Type = "STP"
	TypeStopLimit   Type = "STP LMT"
	TypePegBench    Type = "PEG BENCH"
	TypeTrail       Type = "TRAIL"
	TypeMarketClose Type = "MOC"

	// Good Till Cancel, valid until explicitly cancelled
	TimeInForceGTC TimeInForce = "GTC"
	// Valid for the trading day only
	TimeInForceDay TimeInForce = "DAY"
	// Immediate or Cancel
	TimeInForceIOC TimeInForce = "IOC"
	// Good Till Date
	TimeInForceGTD TimeInForce = "GTD"

	OriginCustomer Origin = 0
	OriginFirm     Origin = 1
)

// Terminal statuses as reported by the server. Terminality is a property of
// the status value; the ledger never blocks transitions itself.
const (
	StatusSubmitted    = "Submitted"
	StatusPreSubmitted = "PreSubmitted"
	StatusFilled       = "Filled"
	StatusCancelled    = "Cancelled"
	StatusInactive     = "Inactive"
)

// CancelFunc removes a previously registered update handler.
type CancelFunc func()

// Session is the owning client session; the order keeps a non-owning handle
// so later mutation calls (cancel) can reach the wire.
type Session interface {
	CancelOrder(ctx context.Context, o *Order) error
}

// Order is a mutable record keyed by OrderID. It is created either locally
// before placement or materialized from the first push that references an
// unknown id, and is updated in place by both push families for the life of
// the session.
type Order struct {
	// Identity. OrderID never changes once set.
	OrderID  int64
	PermID   int64
	ParentID int64
	ClientID int

	// Instruction.
	Instrument    *instrument.Instrument
	Action        Action
	OrderType     Type
	TotalQuantity decimal.Decimal
	LimitPrice    decimal.Decimal
	AuxPrice      decimal.Decimal
	TimeInForce   TimeInForce

	// Routing and account metadata.
	OCAGroup            string
	Account             string
	OpenClose           string
	Origin              Origin
	OrderRef            string
	OutsideRTH          bool
	Hidden              bool
	DiscretionaryAmount decimal.Decimal
	GoodAfterTime       string
	GoodTillDate        string
	FAGroup             string
	FAMethod            string
	FAPercentage        string
	FAProfile           string
	ModelCode           string

	Rule80A            string
	PercentOffset      decimal.Decimal
	SettlingFirm       string
	ShortSaleSlot      int
	DesignatedLocation string
	ExemptCode         int
	AuctionStrategy    string
	StartingPrice      decimal.Decimal
	StockRefPrice      decimal.Decimal
	Delta              decimal.Decimal
	StockRangeLower    decimal.Decimal
	StockRangeUpper    decimal.Decimal
	DisplaySize        decimal.Decimal

	BlockOrder    bool
	SweepToFill   bool
	AllOrNone     bool
	MinQuantity   decimal.Decimal
	OCAType       int
	ETradeOnly    bool
	FirmQuoteOnly bool
	NBBOPriceCap  decimal.Decimal

	TriggerMethod                 int
	OverridePercentageConstraints bool
	Volatility                    decimal.Decimal
	VolatilityType                int

	DeltaNeutralOrderType          string
	DeltaNeutralAuxPrice           decimal.Decimal
	DeltaNeutralContractID         int64
	DeltaNeutralSettlingFirm       string
	DeltaNeutralClearingAccount    string
	DeltaNeutralClearingIntent     string
	DeltaNeutralOpenClose          string
	DeltaNeutralShortSale          bool
	DeltaNeutralShortSaleSlot      int
	DeltaNeutralDesignatedLocation string

	ContinuousUpdate        bool
	ReferencePriceType      int
	TrailStopPrice          decimal.Decimal
	TrailingPercent         decimal.Decimal
	BasisPoints             decimal.Decimal
	BasisPointsType         int
	ComboLegsDescription    string
	SmartComboRoutingParams map[string]string

	ScaleInitLevelSize       int
	ScaleSubsLevelSize       int
	ScalePriceIncrement      decimal.Decimal
	ScalePriceAdjustValue    decimal.Decimal
	ScalePriceAdjustInterval int
	ScaleProfitOffset        decimal.Decimal
	ScaleAutoReset           bool
	ScaleInitPosition        int
	ScaleInitFillQuantity    int
	ScaleRandomPercent       bool

	HedgeType          string
	HedgeParam         string
	OptOutSmartRouting bool
	ClearingAccount    string
	ClearingIntent     string
	NotHeld            bool

	AlgoStrategy string
	AlgoParams   map[string]string
	Solicited    bool
	WhatIf       bool

	RandomizeSize  bool
	RandomizePrice bool

	// Pegged-to-benchmark parameters.
	ReferenceContractID          int64
	IsPeggedChangeAmountDecrease bool
	PeggedChangeAmount           decimal.Decimal
	ReferenceChangeAmount        decimal.Decimal
	ReferenceExchangeID          string
	AdjustedOrderType            string
	TriggerPrice                 decimal.Decimal
	LimitPriceOffset             decimal.Decimal
	AdjustedStopPrice            decimal.Decimal
	AdjustedStopLimitPrice       decimal.Decimal
	AdjustedTrailingAmount       decimal.Decimal
	AdjustableTrailingUnit       int

	SoftDollarTierName        string
	SoftDollarTierValue       string
	SoftDollarTierDisplayName string

	CashQuantity decimal.Decimal

	// Live status reported by the server.
	Status             string
	Filled             decimal.Decimal
	Remaining          decimal.Decimal
	AverageFillPrice   decimal.Decimal
	LastFillPrice      decimal.Decimal
	WhyHeld            string
	MarketCapPrice     decimal.Decimal
	InitialMargin      string
	MaintenanceMargin  string
	EquityWithLoan     string
	Commission         decimal.Decimal
	MinCommission      decimal.Decimal
	MaxCommission      decimal.Decimal
	CommissionCurrency string
	WarningText        string

	session Session

	mux           sync.Mutex
	handlers      []updateHandler
	nextHandlerID int
}

type updateHandler struct {
	id int
	fn func(*Order)
}

func New(session Session) *Order {
	return &Order{session: session}
}

// Cancel asks the server to cancel this order.
func (o *Order) Cancel(ctx context.Context) error {
	return o.session.CancelOrder(ctx, o)
}

// OnUpdate registers a handler invoked after every push that touches this
// order, synchronously and in registration order.
func (o *Order) OnUpdate(fn func(*Order)) CancelFunc {
	o.mux.Lock()
	id := o.nextHandlerID
	o.nextHandlerID++
	o.handlers = append(o.handlers, updateHandler{id: id, fn: fn})
	o.mux.Unlock()
	return func() {
		o.mux.Lock()
		defer o.mux.Unlock()
		for n, h := range o.handlers {
			if h.id == id {
				o.handlers = append(o.handlers[:n], o.handlers[n+1:]...)
				return
			}
		}
	}
}

// Updated fires the registered update handlers.
func (o *Order) Updated() {
	o.mux.Lock()
	handlers := append([]updateHandler(nil), o.handlers...)
	o.mux.Unlock()
	for _, h := range handlers {
		h.fn(o)
	}
}
