package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

// Every script touches exactly one key. The family hash and the user's family
// set live in different cluster slots, so set bookkeeping runs as separate
// commands around the scripts. A stale set member only points at a deleted
// hash and is dropped by the next RevokeAllForUser or when the set expires.

// KEYS[1] family hash. ARGV: jti, user id, ttl ms.
const registerScript = `
redis.call("HSET", KEYS[1], "jti", ARGV[1], "uid", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`

var registerLua = redis.NewScript(registerScript)

// KEYS[1] user family set. ARGV: family id, ttl ms. The set lives as long as
// its longest-lived family.
const trackScript = `
redis.call("SADD", KEYS[1], ARGV[1])
if redis.call("PTTL", KEYS[1]) < tonumber(ARGV[2]) then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 1
`

var trackLua = redis.NewScript(trackScript)

// KEYS[1] family hash. ARGV: presented jti, next jti, ttl ms.
// Returns {status, owner}; owner is set only on a mismatch.
const rotateScript = `
local current = redis.call("HGET", KEYS[1], "jti")
if not current then
  return {0, ""}
end

if current ~= ARGV[1] then
  local uid = redis.call("HGET", KEYS[1], "uid") or ""
  redis.call("DEL", KEYS[1])
  return {2, uid}
end

if ARGV[2] ~= ARGV[1] then
  redis.call("HSET", KEYS[1], "jti", ARGV[2])
  redis.call("PEXPIRE", KEYS[1], ARGV[3])
end
return {3, ""}
`

var rotateLua = redis.NewScript(rotateScript)

// KEYS[1] family hash. Deletes it and returns its owner, or "" when absent.
const revokeScript = `
local uid = redis.call("HGET", KEYS[1], "uid") or ""
redis.call("DEL", KEYS[1])
return uid
`

var revokeLua = redis.NewScript(revokeScript)

// RedisStore keeps refresh families in Redis. Each family is a hash holding the
// current token id and its owner; each user has a set of family ids.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a RedisStore namespacing its keys under prefix.
// An empty prefix selects "arf".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "arf"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) familyKey(family string) string {
	return s.prefix + ":fam:" + family
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":user:" + userID
}

// unlink drops family from its owner's set.
func (s *RedisStore) unlink(ctx context.Context, userID, family string) error {
	if userID == "" {
		return nil
	}
	return s.redis.SRem(ctx, s.userKey(userID), family).Err()
}

// Register opens family with jti as its current token id.
//
//	Performance: 2 Lua EVALSHA (user set first, then the family hash).
func (s *RedisStore) Register(ctx context.Context, family, jti, userID string, ttl time.Duration) error {
	if err := validateRegister(family, jti, userID, ttl); err != nil {
		return err
	}
	ms := ttl.Milliseconds()
	if err := trackLua.Run(ctx, s.redis, []string{s.userKey(userID)}, family, ms).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if err := registerLua.Run(ctx, s.redis, []string{s.familyKey(family)}, jti, userID, ms).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Rotate atomically compares and swaps the current token id of family.
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-swap), plus an SREM on reuse.
//	Security: a mismatch deletes the family in the same script, so a replayed
//	token and the legitimate holder both lose access.
func (s *RedisStore) Rotate(ctx context.Context, family, presented, next string, ttl time.Duration) error {
	if err := validateRotate(family, presented, next, ttl); err != nil {
		return err
	}
	reply, err := rotateLua.Run(ctx, s.redis, []string{s.familyKey(family)}, presented, next, ttl.Milliseconds()).Slice()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(reply) != 2 {
		return fmt.Errorf("%w: unexpected rotate script reply %v", ErrRedisUnavailable, reply)
	}
	code, _ := reply[0].(int64)
	owner, _ := reply[1].(string)

	switch code {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound:
		return ErrFamilyNotFound
	case rotateStatusMismatch:
		// The family is already gone; a failed unlink leaves a stale member.
		_ = s.unlink(ctx, owner, family)
		return ErrReuseDetected
	default:
		return fmt.Errorf("%w: unknown rotate script status %d", ErrRedisUnavailable, code)
	}
}

// Revoke deletes family and unlinks it from its owner.
func (s *RedisStore) Revoke(ctx context.Context, family string) error {
	if family == "" {
		return ErrInvalidArgument
	}
	owner, err := revokeLua.Run(ctx, s.redis, []string{s.familyKey(family)}).Text()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if err := s.unlink(ctx, owner, family); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeAllForUser deletes every family of userID.
//
// The member read and the deletes are separate round trips, and the deletes are
// pipelined per key rather than wrapped in MULTI so cluster clients can route
// them. A family registered in between survives this call and expires with its
// token.
func (s *RedisStore) RevokeAllForUser(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidArgument
	}
	userKey := s.userKey(userID)

	families, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(families) == 0 {
		return nil
	}

	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, family := range families {
			pipe.Del(ctx, s.familyKey(family))
		}
		pipe.SRem(ctx, userKey, toAny(families)...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ActiveFamilies returns the number of families tracked for userID.
func (s *RedisStore) ActiveFamilies(ctx context.Context, userID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
