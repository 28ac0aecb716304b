package tcp

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/l0gr1thm1k/ib-async/protocol"
	"github.com/l0gr1thm1k/ib-async/transport"
)

var _ transport.FrameConn = (*Conn)(nil)

var (
	ErrNotConnected  = errors.New("not connected")
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	ErrBadHandshake  = errors.New("malformed handshake response")
)

const startAPIVersion = 2

// Conn is a framed TCP connection to a TWS/Gateway endpoint.
type Conn struct {
	addr string
	opts *options

	mux       sync.Mutex // guards writes and connection state
	conn      net.Conn
	reader    io.Reader
	connected bool
}

func NewConn(addr string, opts ...Option) *Conn {
	o := &options{
		logger:      log.NewHelper(log.DefaultLogger),
		dialTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Conn{
		addr: addr,
		opts: o,
	}
}

func (c *Conn) Connect(ctx context.Context) (int, error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	d := net.Dialer{Timeout: c.opts.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", c.addr, err)
	}

	if _, err := conn.Write(protocol.Handshake()); err != nil {
		conn.Close()
		return 0, err
	}

	c.conn = conn
	c.reader = conn

	// 服务端返回 serverVersion 和连接时间
	payload, err := c.readFrame()
	if err != nil {
		conn.Close()
		return 0, err
	}
	fields := bytes.Split(bytes.TrimSuffix(payload, []byte{0}), []byte{0})
	if len(fields) < 2 {
		conn.Close()
		return 0, ErrBadHandshake
	}
	serverVersion, err := strconv.Atoi(string(fields[0]))
	if err != nil {
		conn.Close()
		return 0, fmt.Errorf("%w: server version %q", ErrBadHandshake, fields[0])
	}
	c.opts.logger.Infof("connected to %s, server version %d, time %s",
		c.addr, serverVersion, fields[1])

	start := protocol.NewBuilder(protocol.StartAPI)
	start.WriteInt(startAPIVersion)
	start.WriteInt(c.opts.clientID)
	start.WriteString("") // optional capabilities
	if _, err := conn.Write(start.Frame()); err != nil {
		conn.Close()
		return 0, err
	}

	c.connected = true
	return serverVersion, nil
}

func (c *Conn) Send(frame []byte) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	_, err := c.conn.Write(frame)
	return err
}

// Receive is driven by a single reader goroutine; it is not safe for
// concurrent use, matching the ordered delivery model of the protocol.
func (c *Conn) Receive() ([]byte, error) {
	if c.reader == nil {
		return nil, ErrNotConnected
	}
	return c.readFrame()
}

func (c *Conn) readFrame() ([]byte, error) {
	var size uint32
	if err := binary.Read(c.reader, binary.BigEndian, &size); err != nil {
		return nil, err
	}
	if size == 0 || size > protocol.MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(c.reader, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Conn) Close() error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false
	return c.conn.Close()
}
