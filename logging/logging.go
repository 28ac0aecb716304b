// Package logging builds the session logger: stdout in every environment,
// plus a Redis sink in production so log lines can be searched next to the
// persisted session state.
package logging

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var Json = jsoniter.ConfigCompatibleWithStandardLibrary

const logKeyPrefix = "ib_log:"

// Entry 日志检索格式
type Entry struct {
	Service   string `json:"service"`
	Level     string `json:"level"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

// MultiLogger fans every log line out to all configured sinks.
type MultiLogger struct {
	loggers []log.Logger
}

func newMultiLogger(loggers ...log.Logger) *MultiLogger {
	return &MultiLogger{
		loggers: loggers,
	}
}

func (m *MultiLogger) Log(level log.Level, keyvals ...interface{}) error {
	for _, logger := range m.loggers {
		if err := logger.Log(level, keyvals...); err != nil {
			return err
		}
	}
	return nil
}

// RedisHandler is a log.Logger that stores entries in Redis with a TTL.
type RedisHandler struct {
	client      *redis.Client
	serviceName string
	expire      time.Duration
}

func newRedisHandler(client *redis.Client, name string) *RedisHandler {
	return &RedisHandler{
		client:      client,
		serviceName: name,
		expire:      10 * 24 * time.Hour,
	}
}

func (h *RedisHandler) Log(level log.Level, keyvals ...interface{}) error {
	msg := fmt.Sprintf("level=%s ", levelToString(level))
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 < len(keyvals) {
			msg += fmt.Sprintf("%s=%v ", keyvals[i], keyvals[i+1])
		} else {
			msg += fmt.Sprintf("%s=MISSING_VALUE ", keyvals[i])
		}
	}
	nano := time.Now().UnixNano()
	entry := &Entry{
		Service:   h.serviceName,
		Level:     levelToString(level),
		Timestamp: nano,
		Message:   msg,
	}
	data, err := Json.Marshal(entry)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%s%d", logKeyPrefix, nano)
	ctx := context.Background()
	if err := h.client.Set(ctx, key, data, h.expire).Err(); err != nil {
		log.Error(err)
	}
	return nil
}

func newStdoutHandler() log.Logger {
	return log.NewStdLogger(os.Stdout)
}

// NewLogger wires the sinks for the given environment. PRD adds the Redis
// sink; everything else logs to stdout only.
func NewLogger(env, svcName, addr, passwd string, db int32) *MultiLogger {
	stdout := newStdoutHandler()
	if env != "PRD" {
		return newMultiLogger(stdout)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: passwd,
		DB:       int(db),
	})
	return newMultiLogger(stdout, newRedisHandler(rdb, svcName))
}

func levelToString(level log.Level) string {
	switch level {
	case log.LevelDebug:
		return "DEBUG"
	case log.LevelInfo:
		return "INFO"
	case log.LevelWarn:
		return "WARN"
	case log.LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
