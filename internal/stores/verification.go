package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/MrEthical07/cookieauth/internal"
	"github.com/redis/go-redis/v9"
)

// Purpose tags what a verification code authorizes.
type Purpose uint8

const (
	// PurposeEmailVerification codes flip a user's verified flag.
	PurposeEmailVerification Purpose = 1
	// PurposePasswordReset codes authorize replacing a user's password.
	PurposePasswordReset Purpose = 2
)

func (p Purpose) String() string {
	switch p {
	case PurposeEmailVerification:
		return "EmailVerification"
	case PurposePasswordReset:
		return "PasswordReset"
	default:
		return "Unknown"
	}
}

func (p Purpose) valid() bool {
	return p == PurposeEmailVerification || p == PurposePasswordReset
}

const verificationRecordVersion = 1

var (
	// ErrCodeNotFound covers absent, already consumed and wrong-purpose codes.
	ErrCodeNotFound = errors.New("verification code not found")
	// ErrCodeExpired is returned once for an expired code; the record is deleted.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrRedisUnavailable wraps transport-level Redis failures.
	ErrRedisUnavailable = errors.New("verification redis unavailable")
)

// consumeCodeLua atomically performs GET, purpose and expiry checks, and DEL.
// KEYS[1] = record key
// ARGV[1] = expected purpose (byte)
// ARGV[2] = current unix milliseconds
//
// Returns the record bytes on success, otherwise an error reply:
// "not_found", "purpose_mismatch" (record left untouched) or "expired" (record deleted).
var consumeCodeLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

if string.byte(data, 1) ~= 1 or #data < 20 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

if string.byte(data, 2) ~= tonumber(ARGV[1]) then
  return {err='purpose_mismatch'}
end

local expiresAt = 0
for i = 11, 18 do
  expiresAt = expiresAt * 256 + string.byte(data, i)
end

redis.call('DEL', KEYS[1])
if expiresAt <= tonumber(ARGV[2]) then
  return {err='expired'}
end
return data
`)

// deleteIndexedCodesLua removes every code listed in a user/purpose index.
// KEYS[1] = index key
// ARGV[1] = record key prefix
var deleteIndexedCodesLua = redis.NewScript(`
local ids = redis.call('ZRANGE', KEYS[1], 0, -1)
local deleted = 0
for _, id in ipairs(ids) do
  deleted = deleted + redis.call('DEL', ARGV[1] .. id)
end
redis.call('DEL', KEYS[1])
return deleted
`)

// VerificationCode is an issued one-time code. Code is only populated by Issue;
// consumed codes carry the value the caller presented.
type VerificationCode struct {
	Code      string
	UserID    string
	Purpose   Purpose
	CreatedAt time.Time
	ExpiresAt time.Time
}

// VerificationConfig controls key namespacing.
type VerificationConfig struct {
	Prefix string

	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// VerificationStore is a Redis-backed store of single-use codes.
type VerificationStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewVerificationStore creates a VerificationStore backed by rdb.
func NewVerificationStore(rdb redis.UniversalClient, cfg VerificationConfig) *VerificationStore {
	if cfg.Prefix == "" {
		cfg.Prefix = "ca"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &VerificationStore{redis: rdb, prefix: cfg.Prefix, now: cfg.Now}
}

func (s *VerificationStore) recordPrefix() string { return s.prefix + ":vc:" }

func (s *VerificationStore) key(codeHash string) string { return s.recordPrefix() + codeHash }

func (s *VerificationStore) indexKey(userID string, purpose Purpose) string {
	return s.prefix + ":vi:" + strconv.Itoa(int(purpose)) + ":" + userID
}

// Issue creates a code for userID valid for ttl.
func (s *VerificationStore) Issue(ctx context.Context, userID string, purpose Purpose, ttl time.Duration) (*VerificationCode, error) {
	if userID == "" || !purpose.valid() || ttl <= 0 {
		return nil, errors.New("invalid verification code request")
	}
	code, err := internal.NewCode()
	if err != nil {
		return nil, err
	}
	codeHash, err := internal.HashCode(code)
	if err != nil {
		return nil, err
	}

	now := s.now()
	vc := &VerificationCode{
		Code:      code,
		UserID:    userID,
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	data, err := encodeVerificationRecord(vc)
	if err != nil {
		return nil, err
	}

	indexKey := s.indexKey(userID, purpose)
	var setCmd *redis.BoolCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setCmd = pipe.SetNX(ctx, s.key(codeHash), data, ttl)
		// Entries older than one TTL point at codes that are already gone.
		pipe.ZRemRangeByScore(ctx, indexKey, "-inf", strconv.FormatInt(now.Add(-ttl).UnixMilli(), 10))
		pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(now.UnixMilli()), Member: codeHash})
		pipe.PExpire(ctx, indexKey, ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !setCmd.Val() {
		return nil, errors.New("verification code collision")
	}
	return vc, nil
}

// Consume redeems code for purpose exactly once.
func (s *VerificationStore) Consume(ctx context.Context, code string, purpose Purpose) (*VerificationCode, error) {
	codeHash, err := internal.HashCode(code)
	if err != nil {
		return nil, ErrCodeNotFound
	}

	result, err := consumeCodeLua.Run(ctx, s.redis,
		[]string{s.key(codeHash)},
		int(purpose),
		s.now().UnixMilli(),
	).Result()
	if err != nil {
		switch err.Error() {
		case "not_found", "purpose_mismatch":
			return nil, ErrCodeNotFound
		case "expired":
			return nil, ErrCodeExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrRedisUnavailable)
	}
	vc, err := decodeVerificationRecord([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	vc.Code = code
	return vc, nil
}

// CountRecentByPurpose counts codes issued to userID for purpose strictly after since.
func (s *VerificationStore) CountRecentByPurpose(ctx context.Context, userID string, purpose Purpose, since time.Time) (int, error) {
	n, err := s.redis.ZCount(ctx, s.indexKey(userID, purpose), "("+strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

// DeleteForUser drops every outstanding code of userID for purpose, including
// the rate-limit index.
func (s *VerificationStore) DeleteForUser(ctx context.Context, userID string, purpose Purpose) (int, error) {
	n, err := deleteIndexedCodesLua.Run(ctx, s.redis, []string{s.indexKey(userID, purpose)}, s.recordPrefix()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

// Record layout:
//
//	[version:1][purpose:1][createdAtMs:8][expiresAtMs:8][uidLen:2][uid]
func encodeVerificationRecord(vc *VerificationCode) ([]byte, error) {
	if len(vc.UserID) == 0 || len(vc.UserID) > math.MaxUint16 {
		return nil, errors.New("invalid userID length")
	}
	var buf bytes.Buffer
	buf.Grow(20 + len(vc.UserID))
	buf.WriteByte(verificationRecordVersion)
	buf.WriteByte(byte(vc.Purpose))
	if err := binary.Write(&buf, binary.BigEndian, vc.CreatedAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, vc.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(vc.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(vc.UserID)
	return buf.Bytes(), nil
}

func decodeVerificationRecord(data []byte) (*VerificationCode, error) {
	if len(data) < 20 || data[0] != verificationRecordVersion {
		return nil, errors.New("invalid verification record")
	}
	uidLen := int(binary.BigEndian.Uint16(data[18:20]))
	if uidLen == 0 || len(data) != 20+uidLen {
		return nil, errors.New("invalid verification record length")
	}
	return &VerificationCode{
		UserID:    string(data[20:]),
		Purpose:   Purpose(data[1]),
		CreatedAt: time.UnixMilli(int64(binary.BigEndian.Uint64(data[2:10]))),
		ExpiresAt: time.UnixMilli(int64(binary.BigEndian.Uint64(data[10:18]))),
	}, nil
}
