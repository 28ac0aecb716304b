package instrument

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/l0gr1thm1k/ib-async/future"
)

// CancelFunc removes a previously registered market data handler.
type CancelFunc func()

// MarketDataHandler is invoked once per tick type delivered, synchronously
// and in registration order.
type MarketDataHandler func(t TickType)

// Session is the owning client session. The instrument holds a non-owning
// back-reference so that declarative interest mutations can be turned into
// wire traffic; the session outlives its instruments.
type Session interface {
	// ReconcileMarketData compares the instrument's declared interest with
	// the subscription on the wire and sends the minimal traffic to align
	// them. Redundant calls send nothing.
	ReconcileMarketData(inst *Instrument) error

	// FetchMarketData issues a one-shot snapshot request. The future
	// resolves on the snapshot-end push.
	FetchMarketData(ctx context.Context, inst *Instrument) (*future.Future[*Instrument], error)
}

type handlerEntry struct {
	id int
	fn MarketDataHandler
}

// Instrument is a tradable contract plus its market data aspect.
type Instrument struct {
	ContractID      int64
	Symbol          string
	SecurityType    string
	Expiry          string
	Strike          decimal.Decimal
	Right           string
	Multiplier      string
	Exchange        string
	PrimaryExchange string
	Currency        string
	LocalSymbol     string
	TradingClass    string

	// Underlying is the delta-neutral underlying component, when the
	// server reports one on an open-order push.
	Underlying *UnderlyingComponent

	session Session

	mux                 sync.Mutex
	tickTypes           []TickType
	tickData            map[TickType]decimal.Decimal
	tickText            map[TickType]string
	timeliness          MarketDataTimeliness
	minimumTick         decimal.Decimal
	bboExchange         string
	snapshotPermissions int
	handlers            []handlerEntry
	nextHandlerID       int
}

// UnderlyingComponent is the delta-neutral sub-record decoded inline from an
// open-order push.
type UnderlyingComponent struct {
	ContractID int64
	Delta      decimal.Decimal
	Price      decimal.Decimal
}

func New(session Session) *Instrument {
	return &Instrument{
		session:  session,
		tickData: make(map[TickType]decimal.Decimal),
		tickText: make(map[TickType]string),
	}
}

// SetTickTypes declares which generic ticks this instrument is interested in.
// The session reconciles the wire subscription against the new set; declaring
// the same set twice sends nothing.
func (i *Instrument) SetTickTypes(types ...TickType) error {
	i.mux.Lock()
	i.tickTypes = append([]TickType(nil), types...)
	i.mux.Unlock()
	return i.session.ReconcileMarketData(i)
}

// TickTypes returns the declared tick interest, in declaration order.
func (i *Instrument) TickTypes() []TickType {
	i.mux.Lock()
	defer i.mux.Unlock()
	return append([]TickType(nil), i.tickTypes...)
}

// OnMarketData registers a handler for tick updates. Registering the first
// handler activates the wire subscription; removing the last one cancels it.
func (i *Instrument) OnMarketData(fn MarketDataHandler) (CancelFunc, error) {
	i.mux.Lock()
	id := i.nextHandlerID
	i.nextHandlerID++
	i.handlers = append(i.handlers, handlerEntry{id: id, fn: fn})
	i.mux.Unlock()

	if err := i.session.ReconcileMarketData(i); err != nil {
		return nil, err
	}

	cancel := func() {
		i.mux.Lock()
		for n, h := range i.handlers {
			if h.id == id {
				i.handlers = append(i.handlers[:n], i.handlers[n+1:]...)
				break
			}
		}
		i.mux.Unlock()
		i.session.ReconcileMarketData(i)
	}
	return cancel, nil
}

// HasObservers reports whether any market data handler is registered.
func (i *Instrument) HasObservers() bool {
	i.mux.Lock()
	defer i.mux.Unlock()
	return len(i.handlers) > 0
}

// FetchMarketData requests a one-shot snapshot of this instrument.
func (i *Instrument) FetchMarketData(ctx context.Context) (*future.Future[*Instrument], error) {
	return i.session.FetchMarketData(ctx, i)
}

// RecordTick stores a numeric tick value and notifies observers.
func (i *Instrument) RecordTick(t TickType, v decimal.Decimal) {
	i.mux.Lock()
	i.tickData[t] = v
	handlers := append([]handlerEntry(nil), i.handlers...)
	i.mux.Unlock()
	for _, h := range handlers {
		h.fn(t)
	}
}

// RecordTickText stores a textual tick value and notifies observers.
func (i *Instrument) RecordTickText(t TickType, v string) {
	i.mux.Lock()
	i.tickText[t] = v
	handlers := append([]handlerEntry(nil), i.handlers...)
	i.mux.Unlock()
	for _, h := range handlers {
		h.fn(t)
	}
}

// TickValue returns the last known numeric value for a tick type.
func (i *Instrument) TickValue(t TickType) (decimal.Decimal, bool) {
	i.mux.Lock()
	defer i.mux.Unlock()
	v, ok := i.tickData[t]
	return v, ok
}

// TickText returns the last known textual value for a tick type.
func (i *Instrument) TickText(t TickType) (string, bool) {
	i.mux.Lock()
	defer i.mux.Unlock()
	v, ok := i.tickText[t]
	return v, ok
}

// SetTimeliness records the feed classification. No tick notification fires.
func (i *Instrument) SetTimeliness(t MarketDataTimeliness) {
	i.mux.Lock()
	defer i.mux.Unlock()
	i.timeliness = t
}

func (i *Instrument) Timeliness() MarketDataTimeliness {
	i.mux.Lock()
	defer i.mux.Unlock()
	return i.timeliness
}

// SetMarketDataParams records the request-parameter push fields. No tick
// notification fires.
func (i *Instrument) SetMarketDataParams(minTick decimal.Decimal, bboExchange string, snapshotPermissions int) {
	i.mux.Lock()
	defer i.mux.Unlock()
	i.minimumTick = minTick
	i.bboExchange = bboExchange
	i.snapshotPermissions = snapshotPermissions
}

func (i *Instrument) MinimumTick() decimal.Decimal {
	i.mux.Lock()
	defer i.mux.Unlock()
	return i.minimumTick
}

func (i *Instrument) BBOExchange() string {
	i.mux.Lock()
	defer i.mux.Unlock()
	return i.bboExchange
}

func (i *Instrument) SnapshotPermissions() int {
	i.mux.Lock()
	defer i.mux.Unlock()
	return i.snapshotPermissions
}
