package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no live record matches the presented token.
var ErrNotFound = errors.New("refresh record not found")

// ErrExpired is returned when the record existed but its expiry had lapsed;
// the record is deleted as a side effect of the lookup.
var ErrExpired = errors.New("refresh record expired")

// ErrCorrupt is returned when the stored record blob cannot be decoded.
var ErrCorrupt = errors.New("refresh record corrupt")

// Record is one live refresh credential. It is stored as a JSON blob so the
// consume script can read the expiry without a second round trip.
type Record struct {
	PrincipalID string `json:"principal_id"`
	IssuedAt    int64  `json:"issued_at"`
	ExpiresAt   int64  `json:"expires_at"`
}

const (
	consumeStatusNotFound int64 = 0
	consumeStatusExpired  int64 = 1
	consumeStatusConsumed int64 = 2
	consumeStatusCorrupt  int64 = 3
)

// consumeScript implements at-most-once consumption: the record is deleted
// whether it turns out live or expired, and the per-principal index is kept
// in step, all inside one atomic EVAL.
const consumeScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end
local ok, rec = pcall(cjson.decode, data)
if not ok or type(rec) ~= "table" or not rec.principal_id then
  redis.call("DEL", KEYS[1])
  return {3}
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[1] .. rec.principal_id, ARGV[2])
if tonumber(rec.expires_at) <= tonumber(ARGV[3]) then
  return {1}
end
return {2, data}
`

var consumeLua = redis.NewScript(consumeScript)

const deleteScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
redis.call("DEL", KEYS[1])
local ok, rec = pcall(cjson.decode, data)
if ok and type(rec) == "table" and rec.principal_id then
  redis.call("SREM", ARGV[1] .. rec.principal_id, ARGV[2])
end
return 1
`

var deleteLua = redis.NewScript(deleteScript)

const deleteAllScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, m in ipairs(members) do
  removed = removed + redis.call("DEL", ARGV[1] .. m)
end
redis.call("DEL", KEYS[1])
return removed
`

var deleteAllLua = redis.NewScript(deleteAllScript)

// Store is a Redis-backed refresh record store. Point lookup is by token
// hash; a per-principal set indexes live hashes for bulk revocation.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a Store. prefix namespaces all keys, e.g. "ac".
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "ac"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) recordKey(tokenHash string) string {
	return s.prefix + ":rt:" + tokenHash
}

func (s *Store) principalPrefix() string {
	return s.prefix + ":rtp:"
}

func (s *Store) principalKey(principalID string) string {
	return s.principalPrefix() + principalID
}

// Save persists a record for token with the given TTL. The Redis key TTL is
// a backstop; Consume re-checks the embedded expiry so a record outliving
// its expiry (clock drift, TTL-less restore) still reads as expired.
func (s *Store) Save(ctx context.Context, token string, rec Record, ttl time.Duration) error {
	if token == "" {
		return errors.New("refresh: empty token")
	}
	if rec.PrincipalID == "" {
		return errors.New("refresh: record missing principal id")
	}
	if ttl <= 0 {
		return errors.New("refresh: non-positive ttl")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	hash := HashToken(token)
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.recordKey(hash), data, ttl)
	pipe.SAdd(ctx, s.principalKey(rec.PrincipalID), hash)
	pipe.Expire(ctx, s.principalKey(rec.PrincipalID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("refresh: save: %w", err)
	}
	return nil
}

// Consume atomically removes the record for token and returns it. A missing
// record yields ErrNotFound; a present-but-expired record is removed and
// yields ErrExpired. At most one concurrent caller can succeed per token.
func (s *Store) Consume(ctx context.Context, token string, now time.Time) (*Record, error) {
	hash := HashToken(token)
	res, err := consumeLua.Run(ctx, s.redis,
		[]string{s.recordKey(hash)},
		s.principalPrefix(), hash, now.Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("refresh: consume: %w", err)
	}

	parts, ok := res.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, ErrCorrupt
	}
	status, _ := parts[0].(int64)
	switch status {
	case consumeStatusNotFound:
		return nil, ErrNotFound
	case consumeStatusExpired:
		return nil, ErrExpired
	case consumeStatusCorrupt:
		return nil, ErrCorrupt
	case consumeStatusConsumed:
		if len(parts) < 2 {
			return nil, ErrCorrupt
		}
		blob, _ := parts[1].(string)
		var rec Record
		if err := json.Unmarshal([]byte(blob), &rec); err != nil {
			return nil, ErrCorrupt
		}
		return &rec, nil
	default:
		return nil, ErrCorrupt
	}
}

// Delete removes the record for token if present and reports whether one was
// removed. Deleting an absent record is not an error.
func (s *Store) Delete(ctx context.Context, token string) (bool, error) {
	hash := HashToken(token)
	removed, err := deleteLua.Run(ctx, s.redis,
		[]string{s.recordKey(hash)},
		s.principalPrefix(), hash,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("refresh: delete: %w", err)
	}
	return removed == 1, nil
}

// DeleteAllForPrincipal removes every live record owned by principalID and
// returns how many were removed.
func (s *Store) DeleteAllForPrincipal(ctx context.Context, principalID string) (int, error) {
	removed, err := deleteAllLua.Run(ctx, s.redis,
		[]string{s.principalKey(principalID)},
		s.recordKey(""),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("refresh: delete all: %w", err)
	}
	return int(removed), nil
}

// ActiveCount returns the number of live records owned by principalID.
// Hashes whose record key already lapsed via Redis TTL are pruned from the
// index on the way through.
func (s *Store) ActiveCount(ctx context.Context, principalID string) (int, error) {
	members, err := s.redis.SMembers(ctx, s.principalKey(principalID)).Result()
	if err != nil {
		return 0, fmt.Errorf("refresh: active count: %w", err)
	}

	count := 0
	for _, hash := range members {
		exists, err := s.redis.Exists(ctx, s.recordKey(hash)).Result()
		if err != nil {
			return 0, fmt.Errorf("refresh: active count: %w", err)
		}
		if exists == 1 {
			count++
			continue
		}
		_ = s.redis.SRem(ctx, s.principalKey(principalID), hash).Err()
	}
	return count, nil
}
