package instrument

// TickType identifies one market data field delivered by tick pushes.
type TickType int

const (
	TickBidSize         TickType = 0
	TickBid             TickType = 1
	TickAsk             TickType = 2
	TickAskSize         TickType = 3
	TickLast            TickType = 4
	TickLastSize        TickType = 5
	TickHigh            TickType = 6
	TickLow             TickType = 7
	TickVolume          TickType = 8
	TickClose           TickType = 9
	TickMarkPrice       TickType = 37
	TickShortable       TickType = 46
	TickDelayedBid      TickType = 66
	TickDelayedAsk      TickType = 67
	TickDelayedLast     TickType = 68
	TickDelayedBidSize  TickType = 69
	TickDelayedAskSize  TickType = 70
	TickDelayedLastSize TickType = 71
	TickDelayedHigh     TickType = 72
	TickDelayedLow      TickType = 73
	TickDelayedClose    TickType = 75
)

// sizeTickFor pairs a price tick with the size slot the same push carries.
var sizeTickFor = map[TickType]TickType{
	TickBid:         TickBidSize,
	TickAsk:         TickAskSize,
	TickLast:        TickLastSize,
	TickDelayedBid:  TickDelayedBidSize,
	TickDelayedAsk:  TickDelayedAskSize,
	TickDelayedLast: TickDelayedLastSize,
}

// SizeTickFor returns the size tick type implied by a price tick type, if the
// protocol defines one.
func SizeTickFor(t TickType) (TickType, bool) {
	s, ok := sizeTickFor[t]
	return s, ok
}

// MarketDataTimeliness classifies the quality of a market data feed.
type MarketDataTimeliness int

const (
	RealTime      MarketDataTimeliness = 1
	Frozen        MarketDataTimeliness = 2
	Delayed       MarketDataTimeliness = 3
	DelayedFrozen MarketDataTimeliness = 4
)

func (t MarketDataTimeliness) String() string {
	switch t {
	case RealTime:
		return "REAL_TIME"
	case Frozen:
		return "FROZEN"
	case Delayed:
		return "DELAYED"
	case DelayedFrozen:
		return "DELAYED_FROZEN"
	default:
		return "UNKNOWN"
	}
}
