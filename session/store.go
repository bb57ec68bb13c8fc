package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrSessionNotFound is returned when a session is absent or past its expiry.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRedisUnavailable wraps transport-level Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const (
	extendStatusCorrupt  int64 = -1
	extendStatusNotFound int64 = 0
	extendStatusExtended int64 = 1
)

// luaBlobHelpers reads the fields the scripts need straight out of the blob.
const luaBlobHelpers = `
local function read_be64(s, i)
  local v = 0
  for k = 0, 7 do
    local b = string.byte(s, i + k)
    if not b then
      return nil
    end
    v = v * 256 + b
  end
  return v
end

local function blob_user_id(data)
  if string.byte(data, 1) ~= 1 then
    return nil
  end
  local hi = string.byte(data, 2)
  local lo = string.byte(data, 3)
  if not lo then
    return nil
  end
  local n = hi * 256 + lo
  if n == 0 or #data < 3 + n + 18 then
    return nil
  end
  return string.sub(data, 4, 3 + n)
end
`

// KEYS[1] session key. ARGV: now ms, new expiry bytes, ttl ms, user key prefix, session id.
const extendSessionScript = luaBlobHelpers + `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
local uid = blob_user_id(data)
local expires_at = read_be64(data, #data - 7)
if not uid or not expires_at then
  return -1
end
if expires_at <= tonumber(ARGV[1]) then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", ARGV[4] .. uid, ARGV[5])
  return 0
end
local updated = string.sub(data, 1, #data - 8) .. ARGV[2]
redis.call("SET", KEYS[1], updated, "PX", ARGV[3])
local user_key = ARGV[4] .. uid
redis.call("SADD", user_key, ARGV[5])
if redis.call("PTTL", user_key) < tonumber(ARGV[3]) then
  redis.call("PEXPIRE", user_key, ARGV[3])
end
return 1
`

// KEYS[1] session key. ARGV: user key prefix, session id.
const deleteSessionScript = luaBlobHelpers + `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
redis.call("DEL", KEYS[1])
local uid = blob_user_id(data)
if uid then
  redis.call("SREM", ARGV[1] .. uid, ARGV[2])
end
return 1
`

// KEYS[1] user index key. ARGV: session key prefix.
const deleteAllForUserScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
local deleted = 0
for _, id in ipairs(ids) do
  deleted = deleted + redis.call("DEL", ARGV[1] .. id)
end
redis.call("DEL", KEYS[1])
return deleted
`

var (
	extendSessionLua    = redis.NewScript(extendSessionScript)
	deleteSessionLua    = redis.NewScript(deleteSessionScript)
	deleteAllForUserLua = redis.NewScript(deleteAllForUserScript)
)

// Config controls key namespacing and lifetime.
type Config struct {
	Prefix string
	TTL    time.Duration

	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// Store is a Redis-backed session store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewStore creates a session Store backed by rdb.
func NewStore(rdb redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "ca"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		redis:  rdb,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		now:    cfg.Now,
	}
}

// TTL is the lifetime given to new sessions.
func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) sessionPrefix() string { return s.prefix + ":s:" }
func (s *Store) userPrefix() string    { return s.prefix + ":u:" }

func (s *Store) key(sessionID string) string { return s.sessionPrefix() + sessionID }
func (s *Store) userKey(userID string) string { return s.userPrefix() + userID }

// Create persists a new session for userID expiring one TTL from now.
func (s *Store) Create(ctx context.Context, userID, clientDescriptor string) (*Session, error) {
	now := s.now()
	sess := &Session{
		SessionID:        uuid.NewString(),
		UserID:           userID,
		ClientDescriptor: clientDescriptor,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.ttl),
	}
	data, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	userKey := s.userKey(userID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, s.ttl)
		pipe.SAdd(ctx, userKey, sess.SessionID)
		pipe.PExpire(ctx, userKey, s.ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return sess, nil
}

// Get loads a live session. Absent and expired sessions both yield ErrSessionNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID
	if sess.Expired(s.now()) {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Extend moves the expiry of a live session to newExpiry. A deleted or expired
// session is never recreated; both yield ErrSessionNotFound.
func (s *Store) Extend(ctx context.Context, sessionID string, newExpiry time.Time) error {
	now := s.now()
	ttl := newExpiry.Sub(now)
	if ttl <= 0 {
		return errors.New("new expiry must be in the future")
	}

	status, err := extendSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		strconv.FormatInt(now.UnixMilli(), 10),
		encodeExpiry(newExpiry),
		strconv.FormatInt(ttl.Milliseconds(), 10),
		s.userPrefix(),
		sessionID,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch status {
	case extendStatusExtended:
		return nil
	case extendStatusNotFound:
		return ErrSessionNotFound
	case extendStatusCorrupt:
		return ErrCorrupt
	default:
		return fmt.Errorf("unexpected extend status %d", status)
	}
}

// Delete removes a session and its index entry. Deleting an absent session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(sessionID)}, s.userPrefix(), sessionID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForUser removes every session of userID in one script and reports
// how many rows were deleted.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	deleted, err := deleteAllForUserLua.Run(ctx, s.redis, []string{s.userKey(userID)}, s.sessionPrefix()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(deleted), nil
}

// ListActive returns the live sessions of userID, newest first. Index entries
// pointing at missing or expired rows are pruned along the way.
func (s *Store) ListActive(ctx context.Context, userID string) ([]*Session, error) {
	userKey := s.userKey(userID)
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := s.now()
	out := make([]*Session, 0, len(ids))
	stale := make([]interface{}, 0)
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				stale = append(stale, ids[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		sess, err := Decode(data)
		if err != nil || sess.UserID != userID || sess.Expired(now) {
			stale = append(stale, ids[i])
			continue
		}
		sess.SessionID = ids[i]
		out = append(out, sess)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SessionID > out[j].SessionID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
