package client

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/l0gr1thm1k/ib-async/protocol"
)

// fakeConn is a scripted transport: tests push incoming frames and inspect
// the decoded fields of everything the session sent.
type fakeConn struct {
	mu     sync.Mutex
	sent   [][]string
	frames chan []byte
	closed bool

	version int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames:  make(chan []byte, 32),
		version: int(protocol.MaxClient),
	}
}

func (c *fakeConn) Connect(ctx context.Context) (int, error) {
	return c.version, nil
}

func (c *fakeConn) Send(frame []byte) error {
	payload := bytes.TrimSuffix(frame[4:], []byte{0})
	fields := make([]string, 0, 8)
	for _, f := range bytes.Split(payload, []byte{0}) {
		fields = append(fields, string(f))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, fields)
	return nil
}

func (c *fakeConn) Receive() ([]byte, error) {
	f, ok := <-c.frames
	if !ok {
		return nil, io.EOF
	}
	return f, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.frames)
	}
	return nil
}

// push queues one incoming frame for the delivery loop.
func (c *fakeConn) push(fields ...string) {
	var payload []byte
	for _, f := range fields {
		payload = append(payload, f...)
		payload = append(payload, 0)
	}
	c.frames <- payload
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeConn) sentAt(n int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[n]
}

func (c *fakeConn) lastSent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[len(c.sent)-1]
}

// newTestSession builds a session wired to the fake transport without
// starting the delivery loop, so handlers can be driven synchronously.
func newTestSession(conn *fakeConn, opts ...Option) *Session {
	s := NewSession(conn, opts...)
	s.serverVersion = protocol.MaxClient
	return s
}

// msgOf builds an incoming message exactly as the delivery loop would.
func msgOf(t *testing.T, s *Session, fields ...string) *protocol.Message {
	t.Helper()
	var payload []byte
	for _, f := range fields {
		payload = append(payload, f...)
		payload = append(payload, 0)
	}
	msg, err := protocol.NewMessage(payload, s.serverVersion)
	assert.Nil(t, err)
	return msg
}

// openOrderPush assembles a complete open-order frame for a plain limit order
// at message format version 34. comboLegs above zero truncates the frame at
// the combo-leg count, which is as far as the decoder gets.
func openOrderPush(orderID, status string, comboLegs int) []string {
	fields := []string{"5", "34", orderID}

	// contract
	fields = append(fields, "265598", "AAPL", "STK", "", "", "", "", "SMART", "USD", "AAPL", "NMS")
	// core order
	fields = append(fields, "BUY", "100", "LMT", "25.5", "", "GTC",
		"", "DU123", "O", "0", "", "1", "123456", "0", "0", "", "", "",
		"", "", "", "")
	// modelCode
	fields = append(fields, "")
	fields = append(fields, "", "", "", "", "0", "", "-1", "0",
		"", "", "", "", "", "")
	fields = append(fields, "0", "0", "0", "", "0", "0", "0", "",
		"0", "0", "", "0")
	// delta-neutral order type empty, aux price
	fields = append(fields, "", "")
	fields = append(fields, "0", "0", "", "", "", "0", "")

	comboIdx := len(fields)
	fields = append(fields, "0", "0") // combo legs, order combo legs
	if comboLegs > 0 {
		return append(fields[:comboIdx:comboIdx], strconv.Itoa(comboLegs))
	}

	fields = append(fields, "0")          // smart combo routing params
	fields = append(fields, "0", "0", "") // scale block, increment unset
	fields = append(fields, "")           // hedge type
	fields = append(fields, "0")          // opt out smart routing
	fields = append(fields, "", "")       // clearing
	fields = append(fields, "0")          // not held
	fields = append(fields, "0")          // no underlying component
	fields = append(fields, "")           // algo strategy
	fields = append(fields, "0")          // solicited
	fields = append(fields, "0")          // what if
	fields = append(fields, status, "", "", "", "", "", "", "", "")
	fields = append(fields, "0", "0") // randomize size, price
	fields = append(fields, "0")      // conditions
	fields = append(fields, "", "", "", "", "", "", "", "0")
	fields = append(fields, "", "", "") // soft dollar tier
	fields = append(fields, "")         // cash quantity
	return fields
}
