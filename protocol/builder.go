package protocol

import (
	"bytes"
	"encoding/binary"
	"strconv"

	"github.com/shopspring/decimal"
)

const (
	fieldSep  = "\x00"
	apiPrefix = "API\x00"

	// MaxFrameSize TWS 拒绝超过 1MB 的消息帧
	MaxFrameSize = 1 << 20
)

// Builder assembles one outgoing message as NUL-terminated ASCII fields.
type Builder struct {
	fields []string
}

func NewBuilder(id Outgoing) *Builder {
	b := &Builder{fields: make([]string, 0, 16)}
	b.WriteInt(int(id))
	return b
}

func (b *Builder) WriteString(v string) *Builder {
	b.fields = append(b.fields, v)
	return b
}

func (b *Builder) WriteInt(v int) *Builder {
	return b.WriteString(strconv.Itoa(v))
}

func (b *Builder) WriteInt64(v int64) *Builder {
	return b.WriteString(strconv.FormatInt(v, 10))
}

func (b *Builder) WriteFloat(v float64) *Builder {
	return b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
}

// WriteDecimal writes the value, or the empty field when the value is zero.
// TWS treats an empty numeric field as "unset".
func (b *Builder) WriteDecimal(v decimal.Decimal) *Builder {
	if v.IsZero() {
		return b.WriteString("")
	}
	return b.WriteString(v.String())
}

func (b *Builder) WriteBool(v bool) *Builder {
	if v {
		return b.WriteString("1")
	}
	return b.WriteString("0")
}

// Fields returns the assembled fields, message id first.
func (b *Builder) Fields() []string {
	return b.fields
}

// Frame encodes the message with the 4-byte big-endian length prefix used by
// the v100+ protocol.
func (b *Builder) Frame() []byte {
	var payload bytes.Buffer
	for _, f := range b.fields {
		payload.WriteString(f)
		payload.WriteString(fieldSep)
	}
	return Frame(payload.Bytes())
}

// Frame wraps a raw payload with the length prefix.
func Frame(payload []byte) []byte {
	buf := make([]byte, 4, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	return append(buf, payload...)
}

// Handshake builds the connection preamble: the API prefix followed by the
// framed client version range.
func Handshake() []byte {
	versions := []byte("v" + strconv.Itoa(int(MinClient)) + ".." + strconv.Itoa(int(MaxClient)))
	return append([]byte(apiPrefix), Frame(versions)...)
}
