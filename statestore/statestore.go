// Package statestore persists the session state a client needs to pick up
// where it left off after a reconnect: the declared tick interest per
// contract, and the last next-valid-id floor the server announced.
package statestore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/l0gr1thm1k/ib-async/instrument"
)

const redisKeyPrefix = "ib_session:"

var Json = jsoniter.ConfigCompatibleWithStandardLibrary

type Option func(*options)

type options struct {
	logger *log.Helper
	expire time.Duration // 订阅状态过期时间
}

func WithLogger(logger *log.Helper) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithExpire(expire time.Duration) Option {
	return func(o *options) {
		o.expire = expire
	}
}

type subscriptionRecord struct {
	ContractID int64                 `json:"contract_id"`
	TickTypes  []instrument.TickType `json:"tick_types"`
	UpdatedAt  int64                 `json:"updated_at"`
}

type Store struct {
	opts *options
	rdb  *redis.Client
}

func NewStore(rdb *redis.Client, opts ...Option) *Store {
	o := &options{
		logger: log.NewHelper(log.DefaultLogger),
		expire: 7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Store{
		opts: o,
		rdb:  rdb,
	}
}

func subKey(account string, contractID int64) string {
	return fmt.Sprintf("%ssub:%s:%d", redisKeyPrefix, account, contractID)
}

func floorKey(account string) string {
	return fmt.Sprintf("%sfloor:%s", redisKeyPrefix, account)
}

// SaveSubscription records the declared tick interest for one contract.
func (s *Store) SaveSubscription(ctx context.Context, account string, contractID int64, tickTypes []instrument.TickType) error {
	rec := &subscriptionRecord{
		ContractID: contractID,
		TickTypes:  tickTypes,
		UpdatedAt:  time.Now().UnixMilli(),
	}
	data, err := Json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, subKey(account, contractID), data, s.opts.expire).Err()
}

// DeleteSubscription drops the record for one contract.
func (s *Store) DeleteSubscription(ctx context.Context, account string, contractID int64) error {
	return s.rdb.Del(ctx, subKey(account, contractID)).Err()
}

// LoadSubscriptions returns the declared tick interest per contract id.
func (s *Store) LoadSubscriptions(ctx context.Context, account string) (map[int64][]instrument.TickType, error) {
	pattern := fmt.Sprintf("%ssub:%s:*", redisKeyPrefix, account)
	keys, err := s.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, err
	}
	subs := make(map[int64][]instrument.TickType, len(keys))
	for _, key := range keys {
		data, err := s.rdb.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			s.opts.logger.Errorf("load subscription %s: %v", key, err)
			continue
		}
		var rec subscriptionRecord
		if err := Json.Unmarshal([]byte(data), &rec); err != nil {
			s.opts.logger.Errorf("decode subscription %s: %v", key, err)
			continue
		}
		subs[rec.ContractID] = rec.TickTypes
	}
	return subs, nil
}

// SaveOrderIDFloor records the last next-valid-id the server announced.
func (s *Store) SaveOrderIDFloor(ctx context.Context, account string, floor int64) error {
	return s.rdb.Set(ctx, floorKey(account), strconv.FormatInt(floor, 10), s.opts.expire).Err()
}

// LoadOrderIDFloor returns the saved floor, or zero when none is recorded.
func (s *Store) LoadOrderIDFloor(ctx context.Context, account string) (int64, error) {
	data, err := s.rdb.Get(ctx, floorKey(account)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseInt(data, 10, 64)
}
