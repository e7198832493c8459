package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/quizspin-backend/internal/config"
	"github.com/stemsi/quizspin-backend/internal/model"
)

// ErrCacheMiss is returned when no bank snapshot is cached.
var ErrCacheMiss = errors.New("bank cache miss")

// cachedBank is the JSON document stored under the normalized bank key.
type cachedBank struct {
	Source   string     `json:"source"`
	LoadedAt time.Time  `json:"loaded_at"`
	Bank     model.Bank `json:"bank"`
}

// BankCache shares the normalized bank between instances through Redis.
type BankCache struct {
	rdb *redis.Client
}

// NewBankCache creates a new BankCache.
func NewBankCache(rdb *redis.Client) *BankCache {
	return &BankCache{rdb: rdb}
}

// Get returns the cached bank with its origin and load time.
func (c *BankCache) Get(ctx context.Context) (model.Bank, string, time.Time, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.NormalizedBankKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", time.Time{}, ErrCacheMiss
		}
		return nil, "", time.Time{}, fmt.Errorf("get cached bank: %w", err)
	}

	var doc cachedBank
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, "", time.Time{}, fmt.Errorf("decode cached bank: %w", err)
	}
	if doc.Bank.Empty() {
		return nil, "", time.Time{}, ErrCacheMiss
	}
	return doc.Bank, doc.Source, doc.LoadedAt, nil
}

// Set stores bank for ttl.
func (c *BankCache) Set(ctx context.Context, bank model.Bank, source string, loadedAt time.Time, ttl time.Duration) error {
	raw, err := json.Marshal(cachedBank{Source: source, LoadedAt: loadedAt, Bank: bank})
	if err != nil {
		return fmt.Errorf("encode bank: %w", err)
	}
	if err := c.rdb.Set(ctx, config.CacheKey.NormalizedBankKey(), raw, ttl).Err(); err != nil {
		return fmt.Errorf("store bank: %w", err)
	}
	return nil
}
