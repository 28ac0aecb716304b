package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBuilderFields(t *testing.T) {
	b := NewBuilder(PlaceOrder)
	b.WriteInt64(42)
	b.WriteString("BUY")
	b.WriteDecimal(decimal.RequireFromString("1.5"))
	b.WriteDecimal(decimal.Zero)
	b.WriteBool(true)
	b.WriteBool(false)

	assert.Equal(t, []string{"3", "42", "BUY", "1.5", "", "1", "0"}, b.Fields())
}

func TestBuilderFrame(t *testing.T) {
	b := NewBuilder(ReqIDs)
	b.WriteInt(1)

	frame := b.Frame()
	size := binary.BigEndian.Uint32(frame[:4])
	assert.Equal(t, int(size), len(frame)-4)
	assert.Equal(t, []byte("8\x001\x00"), frame[4:])
}

func TestHandshake(t *testing.T) {
	hs := Handshake()
	assert.Equal(t, []byte("API\x00"), hs[:4])

	size := binary.BigEndian.Uint32(hs[4:8])
	assert.Equal(t, "v100..151", string(hs[8:8+size]))
}

func TestFrameRoundTrip(t *testing.T) {
	b := NewBuilder(CancelMktData)
	b.WriteInt(CancelMktDataVersion)
	b.WriteInt64(7)

	msg, err := NewMessage(b.Frame()[4:], MaxClient)
	assert.Nil(t, err)
	assert.Equal(t, Incoming(CancelMktData), msg.ID())
	assert.Nil(t, msg.ReadVersion())
	id, err := msg.ReadInt64()
	assert.Nil(t, err)
	assert.Equal(t, int64(7), id)
}
