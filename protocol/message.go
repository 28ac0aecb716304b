package protocol

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ReadOption gates a single field read on one of the two version axes: the
// negotiated server version, or the format version carried by the message
// itself. A field whose floor is not met is absent from the wire; reading it
// yields the type default and consumes nothing.
type ReadOption func(*gate)

type gate struct {
	minVersion        Version
	minMessageVersion int
}

func MinVersion(v Version) ReadOption {
	return func(g *gate) {
		g.minVersion = v
	}
}

func MinMessageVersion(v int) ReadOption {
	return func(g *gate) {
		g.minMessageVersion = v
	}
}

// Message is a sequential cursor over the fields of one decoded frame.
// Fields carry no tags or lengths; they must be read in exact wire order.
type Message struct {
	id            Incoming
	fields        []string
	cursor        int
	serverVersion Version
	version       int // message format version, 0 until ReadVersion
}

// NewMessage splits a raw frame payload into its NUL-delimited fields. The
// first field is the message id; the rest are left for the caller to consume.
func NewMessage(frame []byte, serverVersion Version) (*Message, error) {
	frame = bytes.TrimSuffix(frame, []byte{0})
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}
	fields := bytes.Split(frame, []byte{0})
	id, err := strconv.Atoi(string(fields[0]))
	if err != nil {
		return nil, &DecodeError{Field: 0, Err: fmt.Errorf("message id %q: %w", fields[0], err)}
	}
	m := &Message{
		id:            Incoming(id),
		fields:        make([]string, 0, len(fields)-1),
		serverVersion: serverVersion,
	}
	for _, f := range fields[1:] {
		m.fields = append(m.fields, string(f))
	}
	return m, nil
}

func (m *Message) ID() Incoming { return m.id }

// ServerVersion is the negotiated session protocol version in effect.
func (m *Message) ServerVersion() Version { return m.serverVersion }

// MessageVersion is the format version read from the head of the message.
func (m *Message) MessageVersion() int { return m.version }

// ReadVersion consumes the leading format-version field. Most message kinds
// carry one; the gates of later fields depend on it.
func (m *Message) ReadVersion() error {
	v, err := m.ReadInt()
	if err != nil {
		return err
	}
	m.version = v
	return nil
}

func (m *Message) present(opts []ReadOption) bool {
	g := &gate{}
	for _, opt := range opts {
		opt(g)
	}
	if g.minVersion > 0 && m.serverVersion < g.minVersion {
		return false
	}
	if g.minMessageVersion > 0 && m.version < g.minMessageVersion {
		return false
	}
	return true
}

func (m *Message) next() (string, error) {
	if m.cursor >= len(m.fields) {
		return "", &DecodeError{Msg: m.id, Field: m.cursor, Err: ErrEndOfMessage}
	}
	f := m.fields[m.cursor]
	m.cursor++
	return f, nil
}

func (m *Message) fail(err error) error {
	return &DecodeError{Msg: m.id, Field: m.cursor - 1, Err: err}
}

func (m *Message) ReadString(opts ...ReadOption) (string, error) {
	if !m.present(opts) {
		return "", nil
	}
	return m.next()
}

func (m *Message) ReadInt(opts ...ReadOption) (int, error) {
	if !m.present(opts) {
		return 0, nil
	}
	f, err := m.next()
	if err != nil || f == "" {
		return 0, err
	}
	v, err := strconv.Atoi(f)
	if err != nil {
		return 0, m.fail(err)
	}
	return v, nil
}

func (m *Message) ReadInt64(opts ...ReadOption) (int64, error) {
	if !m.present(opts) {
		return 0, nil
	}
	f, err := m.next()
	if err != nil || f == "" {
		return 0, err
	}
	v, err := strconv.ParseInt(f, 10, 64)
	if err != nil {
		return 0, m.fail(err)
	}
	return v, nil
}

func (m *Message) ReadFloat(opts ...ReadOption) (float64, error) {
	if !m.present(opts) {
		return 0, nil
	}
	f, err := m.next()
	if err != nil || f == "" {
		return 0, err
	}
	v, err := strconv.ParseFloat(f, 64)
	if err != nil {
		return 0, m.fail(err)
	}
	return v, nil
}

func (m *Message) ReadDecimal(opts ...ReadOption) (decimal.Decimal, error) {
	if !m.present(opts) {
		return decimal.Zero, nil
	}
	f, err := m.next()
	if err != nil || f == "" {
		return decimal.Zero, err
	}
	v, err := decimal.NewFromString(f)
	if err != nil {
		return decimal.Zero, m.fail(err)
	}
	return v, nil
}

func (m *Message) ReadBool(opts ...ReadOption) (bool, error) {
	if !m.present(opts) {
		return false, nil
	}
	f, err := m.next()
	if err != nil || f == "" || f == "0" {
		return false, err
	}
	v, err := strconv.Atoi(f)
	if err != nil {
		return false, m.fail(err)
	}
	return v != 0, nil
}

// ReadTime parses a field with the given layout. An empty field yields the
// zero time.
func (m *Message) ReadTime(layout string, opts ...ReadOption) (time.Time, error) {
	if !m.present(opts) {
		return time.Time{}, nil
	}
	f, err := m.next()
	if err != nil || f == "" {
		return time.Time{}, err
	}
	v, err := time.Parse(layout, f)
	if err != nil {
		return time.Time{}, m.fail(err)
	}
	return v, nil
}

// ReadTagValues consumes a count field followed by that many tag/value pairs.
func (m *Message) ReadTagValues(opts ...ReadOption) (map[string]string, error) {
	if !m.present(opts) {
		return nil, nil
	}
	n, err := m.ReadInt()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	tags := make(map[string]string, n)
	for i := 0; i < n; i++ {
		tag, err := m.next()
		if err != nil {
			return nil, err
		}
		value, err := m.next()
		if err != nil {
			return nil, err
		}
		tags[tag] = value
	}
	return tags, nil
}

// Remaining reports how many fields have not been consumed yet.
func (m *Message) Remaining() int { return len(m.fields) - m.cursor }
