package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "idempotency:"

// releaseScript deletes the key only while it still holds the caller's pending reservation.
var releaseScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if not current then return 0 end
local record = cjson.decode(current)
if record["fingerprint"] == ARGV[1] and record["status"] == "pending" then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// redisClient is the subset of redis.Cmdable the store needs.
type redisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	redis.Scripter
}

// RedisStore shares idempotency records across API instances. Redis key expiry replaces cleanup jobs.
type RedisStore struct {
	client redisClient
}

// NewRedisStore wraps a go-redis client.
func NewRedisStore(client redisClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	id := redisKeyPrefix + hashKey(key)
	pending := Record{Fingerprint: fingerprint, Status: StatusPending, CreatedAt: now.UTC()}
	payload, err := json.Marshal(pending)
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: encode reservation: %w", err)
	}

	created, err := s.client.SetNX(ctx, id, payload, ttlOrDefault(ttl)).Result()
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: reserve: %w", err)
	}
	if created {
		return Reservation{State: ReservationStateNew, Record: pending}, nil
	}

	existing, err := s.load(ctx, id)
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; the next attempt will reserve it.
		return Reservation{State: ReservationStatePending, Record: pending}, nil
	}
	if err != nil {
		return Reservation{}, err
	}
	return reservationFor(existing, fingerprint)
}

func (s *RedisStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	id := redisKeyPrefix + hashKey(key)
	existing, err := s.load(ctx, id)
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if err == nil && existing.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}

	payload, err := json.Marshal(completedRecord(fingerprint, resp, now))
	if err != nil {
		return fmt.Errorf("idempotency: encode response: %w", err)
	}
	if err := s.client.Set(ctx, id, payload, ttlOrDefault(ttl)).Err(); err != nil {
		return fmt.Errorf("idempotency: save response: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key, fingerprint string) error {
	id := redisKeyPrefix + hashKey(key)
	if err := releaseScript.Run(ctx, s.client, []string{id}, fingerprint).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, id string) (Record, error) {
	raw, err := s.client.Get(ctx, id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("idempotency: load: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, fmt.Errorf("idempotency: decode record: %w", err)
	}
	return record, nil
}
