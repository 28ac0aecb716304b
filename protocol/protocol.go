package protocol

// Incoming server message ids.
type Incoming int

const (
	TickPrice       Incoming = 1
	TickSize        Incoming = 2
	OrderStatus     Incoming = 3
	ErrMsg          Incoming = 4
	OpenOrder       Incoming = 5
	NextValidID     Incoming = 9
	TickGeneric     Incoming = 45
	TickString      Incoming = 46
	OpenOrderEnd    Incoming = 53
	TickSnapshotEnd Incoming = 57
	MarketDataType  Incoming = 58
	TickReqParams   Incoming = 81
)

// Outgoing client message ids.
type Outgoing int

const (
	ReqMktData        Outgoing = 1
	CancelMktData     Outgoing = 2
	PlaceOrder        Outgoing = 3
	CancelOrder       Outgoing = 4
	ReqOpenOrders     Outgoing = 5
	ReqIDs            Outgoing = 8
	ReqAllOpenOrders  Outgoing = 16
	ReqMarketDataType Outgoing = 59
	StartAPI          Outgoing = 71
)

// Version is a negotiated server protocol version. Feature constants below are
// the minimum server version at which the corresponding wire fields exist.
type Version int

const (
	MinClient         Version = 100
	PeggedToBenchmark Version = 102
	ModelsSupport     Version = 103
	SoftDollarTier    Version = 106
	CashQty           Version = 111
	SmartComponents   Version = 114
	MarketRules       Version = 126
	MarketCapPrice    Version = 141
	MaxClient         Version = 151
)

// Versions of the outgoing messages this client emits.
const (
	PlaceOrderVersion        = 45
	ReqMktDataVersion        = 11
	CancelMktDataVersion     = 2
	ReqAllOpenOrdersVersion  = 1
	ReqMarketDataTypeVersion = 1
	ReqIDsVersion            = 1
	CancelOrderVersion       = 1
)
