package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

const (
	idempotencyKeyPrefix = "idem:"

	// DefaultIdempotencyTTL is how long a completed response can be replayed.
	DefaultIdempotencyTTL = 24 * time.Hour

	// DefaultPendingTTL bounds how long an unfinished reservation blocks
	// its key after the owning process died.
	DefaultPendingTTL = 30 * time.Second

	// maxReserveAttempts bounds retries when a key is released between
	// the failed SET NX and the follow-up GET.
	maxReserveAttempts = 3
)

// Idempotency record states.
const (
	IdempotencyPending   = "pending"
	IdempotencyCompleted = "completed"
)

// Idempotency errors.
var (
	ErrIdempotencyInProgress = errors.New("request with this idempotency key is still in progress")
	ErrIdempotencyKeyReused  = errors.New("idempotency key was used with a different request")
)

// IdempotencyRecord is the value stored under an idempotency key.
type IdempotencyRecord struct {
	State       string          `json:"state"`
	Fingerprint string          `json:"fingerprint"`
	Status      int             `json:"status,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// IdempotencyStore records responses of mutating requests keyed by a
// caller-supplied idempotency key.
type IdempotencyStore struct {
	cache      *Cache
	scope      string
	pendingTTL time.Duration
	ttl        time.Duration
}

// NewIdempotencyStore creates a store for one operation scope (e.g. "provision").
// pendingTTL applies to reservations, ttl to completed responses.
// Non-positive values use DefaultPendingTTL and DefaultIdempotencyTTL.
func NewIdempotencyStore(c *Cache, scope string, pendingTTL, ttl time.Duration) *IdempotencyStore {
	if pendingTTL <= 0 {
		pendingTTL = DefaultPendingTTL
	}
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyStore{cache: c, scope: scope, pendingTTL: pendingTTL, ttl: ttl}
}

// Fingerprint returns the blake2b-256 digest of a normalized request payload.
func Fingerprint(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (s *IdempotencyStore) redisKey(key string) string {
	return idempotencyKeyPrefix + s.scope + ":" + hashKey(key)
}

// Reserve claims key for a request with the given fingerprint. The claim
// expires after the pending TTL unless Complete or Release runs first.
//
// It returns (nil, nil) when the caller now owns the key and must run the
// request, and the completed record when a response can be replayed.
// ErrIdempotencyInProgress and ErrIdempotencyKeyReused report conflicts.
func (s *IdempotencyStore) Reserve(ctx context.Context, key, fingerprint string) (*IdempotencyRecord, error) {
	redisKey := s.redisKey(key)
	pending, err := json.Marshal(IdempotencyRecord{State: IdempotencyPending, Fingerprint: fingerprint})
	if err != nil {
		return nil, fmt.Errorf("failed to encode idempotency record: %w", err)
	}

	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		ok, err := s.cache.client.SetNX(ctx, redisKey, pending, s.pendingTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to reserve idempotency key: %w", err)
		}
		if ok {
			return nil, nil
		}

		raw, err := s.cache.client.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read idempotency key: %w", err)
		}

		record, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		return record, checkRecord(record, fingerprint)
	}

	return nil, ErrIdempotencyInProgress
}

// Complete stores the final response for key, replacing the pending record.
func (s *IdempotencyStore) Complete(ctx context.Context, key, fingerprint string, status int, body []byte) error {
	record := IdempotencyRecord{
		State:       IdempotencyCompleted,
		Fingerprint: fingerprint,
		Status:      status,
		Body:        json.RawMessage(body),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode idempotency record: %w", err)
	}

	if err := s.cache.client.Set(ctx, s.redisKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}
	return nil
}

// Release deletes key so the request can be retried with it.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.cache.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

func decodeRecord(raw []byte) (*IdempotencyRecord, error) {
	var record IdempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode idempotency record: %w", err)
	}
	return &record, nil
}

// checkRecord validates an existing record against the incoming request.
func checkRecord(record *IdempotencyRecord, fingerprint string) error {
	if record.Fingerprint != fingerprint {
		return ErrIdempotencyKeyReused
	}
	if record.State != IdempotencyCompleted {
		return ErrIdempotencyInProgress
	}
	return nil
}
