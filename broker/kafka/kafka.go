package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	jsoniter "github.com/json-iterator/go"
	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/l0gr1thm1k/ib-async/broker"
)

var _ broker.Publisher = (*Publisher)(nil)

// Redefining the standard package
var Json = jsoniter.ConfigCompatibleWithStandardLibrary

// envelope wraps every published event with its type so consumers can route
// without knowing the payload schema up front.
type envelope struct {
	Type string `json:"type"`
	Time int64  `json:"time"`
	Data any    `json:"data"`
}

type Publisher struct {
	opts   *options
	writer *kafkaGo.Writer
}

func NewPublisher(brokers []string, topic string, opts ...Option) *Publisher {
	o := &options{
		logger:       log.NewHelper(log.DefaultLogger),
		batchTimeout: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(o)
	}
	w := &kafkaGo.Writer{
		Addr:         kafkaGo.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkaGo.Hash{},
		BatchTimeout: o.batchTimeout,
		Logger:       &Logger{logger: o.logger},
		ErrorLogger:  &ErrorLogger{logger: o.logger},
	}
	return &Publisher{
		opts:   o,
		writer: w,
	}
}

func (p *Publisher) Publish(ctx context.Context, topic string, evt any) error {
	data, err := Json.Marshal(&envelope{
		Type: topic,
		Time: time.Now().UnixMilli(),
		Data: evt,
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	return p.writer.WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte(topic),
		Value: data,
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
