package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrEndOfMessage 消息字段已读完，仍有字段等待读取
	ErrEndOfMessage = errors.New("read past end of message")
	// ErrEmptyFrame 空消息帧
	ErrEmptyFrame = errors.New("empty message frame")
	// ErrOutdatedServer 服务端协议版本过低，不支持该操作
	ErrOutdatedServer = errors.New("operation requires a newer server version")
	// ErrConnectionClosed 会话已关闭
	ErrConnectionClosed = errors.New("connection closed")
)

// DecodeError marks a message whose field stream is malformed or misaligned.
// Once raised, the remaining fields of that message cannot be trusted.
type DecodeError struct {
	Msg   Incoming
	Field int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message %d field %d: %v", e.Msg, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnsupportedFeatureError is raised when a recognized but unimplemented
// sub-record is present on the wire. Skipping it would desynchronize every
// following field, so decoding fails instead.
type UnsupportedFeatureError struct {
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("unsupported protocol feature: %s", e.Feature)
}

// APIError is an error reported by the server, addressed to a request id.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("<APIError> code=%d, msg=%s", e.Code, e.Message)
}

// IsAPIError check if e is an API error
func IsAPIError(e error) bool {
	var apiErr *APIError
	return errors.As(e, &apiErr)
}
