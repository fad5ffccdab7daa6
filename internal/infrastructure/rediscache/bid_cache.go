package rediscache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BidCache mirrors the current winning amount per listing in Redis for cheap
// reads. The store stays authoritative; a miss is not an error.
type BidCache struct {
	client *redis.Client
}

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, addr, password string, db int) (*BidCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &BidCache{client: client}, nil
}

func bidKey(listingID uuid.UUID) string {
	return "listing:" + listingID.String() + ":current_bid"
}

// SetCurrentBid records the accepted amount.
func (c *BidCache) SetCurrentBid(ctx context.Context, listingID uuid.UUID, amount int64) error {
	return c.client.Set(ctx, bidKey(listingID), amount, 0).Err()
}

// GetCurrentBid returns the cached amount and whether it was present.
func (c *BidCache) GetCurrentBid(ctx context.Context, listingID uuid.UUID) (int64, bool, error) {
	val, err := c.client.Get(ctx, bidKey(listingID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	amount, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed cached bid %q: %w", val, err)
	}
	return amount, true, nil
}

// Drop removes the cached amount, e.g. when a listing is deleted or reset.
func (c *BidCache) Drop(ctx context.Context, listingID uuid.UUID) error {
	return c.client.Del(ctx, bidKey(listingID)).Err()
}

func (c *BidCache) Close() error {
	return c.client.Close()
}
