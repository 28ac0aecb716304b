package transport

import (
	"context"
)

// FrameConn 定义了与网关的基本连接操作
//
// A FrameConn carries whole protocol frames in both directions. Framing,
// handshake and heartbeats live here; the session above it only sees ordered,
// length-delimited payloads.
//
//go:generate mockgen -destination=./mocks/transport.go -package=mock_transport . FrameConn
type FrameConn interface {
	// Connect dials the gateway and performs the version handshake.
	// It returns the server version the session negotiated.
	Connect(ctx context.Context) (serverVersion int, err error)

	// Send writes one framed message. Safe for concurrent use.
	Send(frame []byte) error

	// Receive blocks until the next frame payload arrives, in wire order.
	Receive() ([]byte, error)

	// Close tears the connection down. Receive returns an error afterwards.
	Close() error
}
