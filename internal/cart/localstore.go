package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelcommerce/storefront-backend/pkg/logger"
	"github.com/kestrelcommerce/storefront-backend/pkg/redis"
)

// redisStore is the slice of pkg/redis used by the guest cart slot.
type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	GuestCartKey(sessionID string) string
	MergeFlagKey(userID, sessionID, loginID string) string
}

// RedisLocalStore keeps the anonymous session's cart in a single serialized
// redis slot.
type RedisLocalStore struct {
	client       redisStore
	logg         *logger.Logger
	guestTTL     time.Duration
	mergeFlagTTL time.Duration
}

// NewRedisLocalStore builds the guest cart store.
func NewRedisLocalStore(client redisStore, logg *logger.Logger, guestTTL, mergeFlagTTL time.Duration) (*RedisLocalStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisLocalStore{
		client:       client,
		logg:         logg,
		guestTTL:     guestTTL,
		mergeFlagTTL: mergeFlagTTL,
	}, nil
}

type storedLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Load reads the guest slot. A missing key or a corrupt payload yields an
// empty cart; corruption is logged at warn and never returned.
func (s *RedisLocalStore) Load(ctx context.Context, sessionID string) ([]Line, error) {
	if sessionID == "" {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, s.client.GuestCartKey(sessionID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load guest cart: %w", err)
	}

	var stored []storedLine
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithSessionID(ctx, sessionID), "guest cart slot corrupt, resetting")
		}
		return nil, nil
	}

	lines := make([]Line, 0, len(stored))
	for _, entry := range stored {
		line, ok := fromStored(entry)
		if !ok {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Save serializes the full line list into the guest slot.
func (s *RedisLocalStore) Save(ctx context.Context, sessionID string, lines []Line) error {
	if sessionID == "" {
		return fmt.Errorf("session id required")
	}

	stored := make([]storedLine, 0, len(lines))
	for _, line := range lines {
		stored = append(stored, storedLine{ProductID: line.ProductID.String(), Quantity: line.Quantity})
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode guest cart: %w", err)
	}
	return s.client.Set(ctx, s.client.GuestCartKey(sessionID), payload, s.guestTTL)
}

// Clear removes the guest slot.
func (s *RedisLocalStore) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.client.Del(ctx, s.client.GuestCartKey(sessionID))
}

// MarkMerged sets the per-login merge flag via SETNX so the guest merge
// runs at most once per login session, across engine instances. The login
// id is part of the key: a fresh login gets a fresh flag.
func (s *RedisLocalStore) MarkMerged(ctx context.Context, userID, sessionID, loginID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("user id required")
	}
	return s.client.SetNX(ctx, s.client.MergeFlagKey(userID, sessionID, loginID), "1", s.mergeFlagTTL)
}

func fromStored(entry storedLine) (Line, bool) {
	if entry.Quantity < 1 {
		return Line{}, false
	}
	id, err := uuid.Parse(entry.ProductID)
	if err != nil {
		return Line{}, false
	}
	return Line{ProductID: id, Quantity: entry.Quantity, Owner: OwnerGuest}, true
}
