package tcp

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

type Option func(*options)

type options struct {
	logger      *log.Helper
	dialTimeout time.Duration // 建立连接超时时间
	clientID    int
}

func WithLogger(logger *log.Helper) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithDialTimeout(dialTimeout time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = dialTimeout
	}
}

func WithClientID(clientID int) Option {
	return func(o *options) {
		o.clientID = clientID
	}
}
