package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/l0gr1thm1k/ib-async/future"
	"github.com/l0gr1thm1k/ib-async/instrument"
	"github.com/l0gr1thm1k/ib-async/limiter"
	"github.com/l0gr1thm1k/ib-async/order"
	"github.com/l0gr1thm1k/ib-async/protocol"
	"github.com/l0gr1thm1k/ib-async/transport"
)

var _ instrument.Session = (*Session)(nil)
var _ order.Session = (*Session)(nil)

// ErrorHandler receives server errors that are not addressed to any pending
// request. requestID is -1 for connection-level notices.
type ErrorHandler func(requestID int64, err error)

// subscription is the wire state for one instrument: a non-zero requestID
// means the wire has an outstanding subscription for exactly lastSent.
type subscription struct {
	requestID int64
	lastSent  []instrument.TickType
}

// Session is one logical connection to a TWS/Gateway endpoint. All incoming
// messages are handled on a single delivery goroutine in arrival order;
// callers interact through entry points that return one-shot futures.
type Session struct {
	id     string
	opts   *options
	conn   transport.FrameConn
	tracer trace.Tracer

	serverVersion protocol.Version

	mux           sync.Mutex
	closed        bool
	orders        map[int64]*order.Order
	pendingPlace  map[int64]*future.Future[*order.Order]
	openOrdersFut *future.Future[[]*order.Order]
	snapshots     map[int64]*future.Future[*instrument.Instrument]
	subs          map[*instrument.Instrument]*subscription
	instByReq     map[int64]*instrument.Instrument
	nextOrderID   int64
	nextRequestID int64
	errHandlers   []ErrorHandler
}

func NewSession(conn transport.FrameConn, opts ...Option) *Session {
	o := &options{
		logger: log.NewHelper(log.DefaultLogger),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.pacer == nil {
		o.pacer = limiter.NewMessagePacer()
	}
	return &Session{
		id:            uuid.New().String(),
		opts:          o,
		conn:          conn,
		tracer:        otel.Tracer("ib-async/client"),
		orders:        make(map[int64]*order.Order),
		pendingPlace:  make(map[int64]*future.Future[*order.Order]),
		snapshots:     make(map[int64]*future.Future[*instrument.Instrument]),
		subs:          make(map[*instrument.Instrument]*subscription),
		instByReq:     make(map[int64]*instrument.Instrument),
		nextOrderID:   1,
		nextRequestID: 1,
	}
}

// ID is the unique instance id of this session.
func (s *Session) ID() string { return s.id }

// ServerVersion is the protocol version negotiated at connect time.
func (s *Session) ServerVersion() protocol.Version { return s.serverVersion }

// Connect dials the gateway, negotiates the protocol version and starts the
// delivery loop.
func (s *Session) Connect(ctx context.Context) error {
	sv, err := s.conn.Connect(ctx)
	if err != nil {
		return err
	}
	if protocol.Version(sv) < protocol.MinClient {
		return fmt.Errorf("server version %d: %w", sv, protocol.ErrOutdatedServer)
	}
	s.serverVersion = protocol.Version(sv)

	if s.opts.store != nil && s.opts.account != "" {
		floor, err := s.opts.store.LoadOrderIDFloor(ctx, s.opts.account)
		if err != nil {
			s.opts.logger.Errorf("load order id floor: %v", err)
		} else if floor > 0 {
			s.mux.Lock()
			if floor > s.nextOrderID {
				s.nextOrderID = floor
			}
			s.mux.Unlock()
		}
	}

	// solicit the authoritative order id floor
	b := protocol.NewBuilder(protocol.ReqIDs)
	b.WriteInt(protocol.ReqIDsVersion)
	b.WriteInt(1)
	if err := s.send(ctx, b); err != nil {
		return err
	}

	go s.run()
	return nil
}

// NewInstrument returns an instrument owned by this session.
func (s *Session) NewInstrument() *instrument.Instrument {
	return instrument.New(s)
}

// NewOrder returns an empty order owned by this session.
func (s *Session) NewOrder() *order.Order {
	return order.New(s)
}

// OnError registers a handler for session-level server errors. Handlers run
// on the delivery goroutine, in registration order.
func (s *Session) OnError(fn ErrorHandler) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.errHandlers = append(s.errHandlers, fn)
}

// run is the single ordered delivery path. Per-message failures are isolated
// so one bad handler cannot stall the session; decode misalignment terminates
// the session since the field stream cannot be trusted afterwards.
func (s *Session) run() {
	for {
		frame, err := s.conn.Receive()
		if err != nil {
			s.teardown()
			return
		}
		msg, err := protocol.NewMessage(frame, s.serverVersion)
		if err != nil {
			s.opts.logger.Errorf("drop malformed frame: %v", err)
			continue
		}
		if fatal := s.dispatch(msg); fatal {
			s.teardown()
			return
		}
	}
}

func (s *Session) dispatch(msg *protocol.Message) (fatal bool) {
	defer func() {
		if r := recover(); r != nil {
			s.opts.logger.Errorf("panic handling message %d: %v", msg.ID(), r)
		}
	}()

	_, span := s.tracer.Start(context.Background(), "ib.dispatch",
		trace.WithAttributes(attribute.Int("ib.message", int(msg.ID()))))
	defer span.End()

	err := s.handle(msg)
	if err == nil {
		return false
	}

	var unsupported *protocol.UnsupportedFeatureError
	var decodeErr *protocol.DecodeError
	switch {
	case errors.As(err, &unsupported):
		// The rest of this frame cannot be parsed, but framing keeps the
		// stream aligned. Surface and continue.
		s.opts.logger.Errorf("message %d: %v", msg.ID(), err)
		s.fireSessionError(-1, err)
		return false
	case errors.As(err, &decodeErr):
		s.opts.logger.Errorf("fatal decode error, closing session: %v", err)
		s.fireSessionError(-1, err)
		return true
	default:
		s.opts.logger.Errorf("message %d: %v", msg.ID(), err)
		return false
	}
}

func (s *Session) handle(msg *protocol.Message) error {
	switch msg.ID() {
	case protocol.OrderStatus:
		return s.handleOrderStatus(msg)
	case protocol.OpenOrder:
		return s.handleOpenOrder(msg)
	case protocol.OpenOrderEnd:
		return s.handleOpenOrderEnd(msg)
	case protocol.NextValidID:
		return s.handleNextValidID(msg)
	case protocol.ErrMsg:
		return s.handleErrMsg(msg)
	case protocol.TickPrice:
		return s.handleTickPrice(msg)
	case protocol.TickSize:
		return s.handleTickSize(msg)
	case protocol.TickGeneric:
		return s.handleTickGeneric(msg)
	case protocol.TickString:
		return s.handleTickString(msg)
	case protocol.TickSnapshotEnd:
		return s.handleTickSnapshotEnd(msg)
	case protocol.TickReqParams:
		return s.handleTickReqParams(msg)
	case protocol.MarketDataType:
		return s.handleMarketDataType(msg)
	default:
		s.opts.logger.Debugf("ignore message %d (%d fields)", msg.ID(), msg.Remaining())
		return nil
	}
}

// send paces and transmits one outgoing message.
func (s *Session) send(ctx context.Context, b *protocol.Builder) error {
	if err := s.opts.pacer.Wait(ctx); err != nil {
		return err
	}
	_, span := s.tracer.Start(ctx, "ib.send",
		trace.WithAttributes(attribute.String("ib.message", b.Fields()[0])))
	defer span.End()
	return s.conn.Send(b.Frame())
}

// fireSessionError delivers an error to the general session channel.
func (s *Session) fireSessionError(requestID int64, err error) {
	s.mux.Lock()
	handlers := append([]ErrorHandler(nil), s.errHandlers...)
	s.mux.Unlock()
	if len(handlers) == 0 {
		s.opts.logger.Warnf("session error (request %d): %v", requestID, err)
		return
	}
	for _, fn := range handlers {
		fn(requestID, err)
	}
}

// allocRequestID hands out ids for market data requests.
func (s *Session) allocRequestID() int64 {
	s.mux.Lock()
	defer s.mux.Unlock()
	id := s.nextRequestID
	s.nextRequestID++
	return id
}

// NextOrderID allocates a client-side order id. The counter never goes below
// the floor announced by the server, which is authoritative after reconnect.
func (s *Session) NextOrderID() int64 {
	s.mux.Lock()
	defer s.mux.Unlock()
	id := s.nextOrderID
	s.nextOrderID++
	return id
}

func (s *Session) handleNextValidID(msg *protocol.Message) error {
	if err := msg.ReadVersion(); err != nil {
		return err
	}
	floor, err := msg.ReadInt64()
	if err != nil {
		return err
	}
	s.mux.Lock()
	if floor > s.nextOrderID {
		s.nextOrderID = floor
	}
	s.mux.Unlock()

	if s.opts.store != nil && s.opts.account != "" {
		if err := s.opts.store.SaveOrderIDFloor(context.Background(), s.opts.account, floor); err != nil {
			s.opts.logger.Errorf("persist order id floor: %v", err)
		}
	}
	return nil
}

// handleErrMsg demultiplexes the error stream: an error addressed to an order
// id with a pending placement future fails that future; anything else goes to
// the general session channel. Order ids are reused by the server, so the
// pending entry is popped before acting.
func (s *Session) handleErrMsg(msg *protocol.Message) error {
	if err := msg.ReadVersion(); err != nil {
		return err
	}
	requestID, err := msg.ReadInt64()
	if err != nil {
		return err
	}
	code, err := msg.ReadInt()
	if err != nil {
		return err
	}
	text, err := msg.ReadString()
	if err != nil {
		return err
	}
	apiErr := &protocol.APIError{Code: code, Message: text}

	s.mux.Lock()
	fut, ok := s.pendingPlace[requestID]
	if ok {
		delete(s.pendingPlace, requestID)
	}
	s.mux.Unlock()

	if ok {
		fut.Fail(apiErr)
		return nil
	}
	s.fireSessionError(requestID, apiErr)
	return nil
}

// Close tears the session down: every pending future fails with a
// connection-closed error and all subscription state is cleared without
// sending wire traffic.
func (s *Session) Close() error {
	s.teardown()
	return s.conn.Close()
}

func (s *Session) teardown() {
	s.mux.Lock()
	if s.closed {
		s.mux.Unlock()
		return
	}
	s.closed = true
	pending := s.pendingPlace
	snapshots := s.snapshots
	openOrdersFut := s.openOrdersFut
	s.pendingPlace = make(map[int64]*future.Future[*order.Order])
	s.snapshots = make(map[int64]*future.Future[*instrument.Instrument])
	s.openOrdersFut = nil
	s.subs = make(map[*instrument.Instrument]*subscription)
	s.instByReq = make(map[int64]*instrument.Instrument)
	s.mux.Unlock()

	for _, fut := range pending {
		fut.Fail(protocol.ErrConnectionClosed)
	}
	for _, fut := range snapshots {
		fut.Fail(protocol.ErrConnectionClosed)
	}
	if openOrdersFut != nil {
		openOrdersFut.Fail(protocol.ErrConnectionClosed)
	}
	s.opts.logger.Infof("session %s closed", s.id)
}
