package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const rememberRecordVersionV1 = 1

var (
	ErrRememberNotFound         = errors.New("remember token not found")
	ErrRememberExpired          = errors.New("remember token expired")
	ErrRememberSecretMismatch   = errors.New("remember token secret mismatch")
	ErrRememberRedisUnavailable = errors.New("remember redis unavailable")
)

const (
	rememberStatusNotFound int64 = 0
	rememberStatusExpired  int64 = 1
	rememberStatusMismatch int64 = 2
	rememberStatusRotated  int64 = 3
	rememberStatusMatched  int64 = 4
)

// checkRotateScript atomically validates a presented secret hash against the
// stored series record and, when rotation is requested, swaps in the next
// hash under the record's remaining TTL.
//
// KEYS[1] = series record key
// KEYS[2] = user index set key
// ARGV[1] = provided hash (32 bytes)
// ARGV[2] = next hash (32 bytes, ignored unless rotating)
// ARGV[3] = current unix timestamp
// ARGV[4] = series ID (for index maintenance)
// ARGV[5] = rotate flag (0/1)
//
// A mismatch deletes the whole series: a valid series ID with a stale secret
// is the token-theft signature, so the chain must die immediately.
const checkRotateScript = `
local data = redis.call('GET', KEYS[1])
if not data then
  redis.call('SREM', KEYS[2], ARGV[4])
  return {0}
end

local providedHash = ARGV[1]
local nextHash = ARGV[2]
local nowUnix = tonumber(ARGV[3])
local seriesID = ARGV[4]
local rotate = tonumber(ARGV[5])

local version = string.byte(data, 1)
if version ~= 1 then
  redis.call('DEL', KEYS[1])
  redis.call('SREM', KEYS[2], seriesID)
  return {0}
end

local e0,e1,e2,e3,e4,e5,e6,e7 = string.byte(data, 2, 9)
local expiresAt = e0
for _, b in ipairs({e1,e2,e3,e4,e5,e6,e7}) do
  expiresAt = expiresAt * 256 + b
end

if nowUnix > expiresAt then
  redis.call('DEL', KEYS[1])
  redis.call('SREM', KEYS[2], seriesID)
  return {1}
end

local userIDLen = string.byte(data, 10) * 256 + string.byte(data, 11)
local hashOffset = 12 + userIDLen
local storedHash = string.sub(data, hashOffset, hashOffset + 31)

if storedHash ~= providedHash then
  redis.call('DEL', KEYS[1])
  redis.call('SREM', KEYS[2], seriesID)
  return {2}
end

if rotate == 0 then
  return {4, data}
end

local ttlMs = redis.call('PTTL', KEYS[1])
if ttlMs <= 0 then
  redis.call('DEL', KEYS[1])
  redis.call('SREM', KEYS[2], seriesID)
  return {1}
end

local updated = string.sub(data, 1, hashOffset - 1) .. nextHash .. string.sub(data, hashOffset + 32)
redis.call('SET', KEYS[1], updated, 'PX', ttlMs)
return {3, updated}
`

var checkRotateLua = redis.NewScript(checkRotateScript)

// RememberRecord is the server-side state of one remember-me token series.
type RememberRecord struct {
	UserID     string
	SecretHash [32]byte
	ExpiresAt  int64
}

// RememberTokenStore persists remember-me token series in Redis, indexed
// per user so a logout can revoke every series at once.
type RememberTokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRememberTokenStore(redisClient redis.UniversalClient, prefix string) *RememberTokenStore {
	if prefix == "" {
		prefix = "wtm"
	}
	return &RememberTokenStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RememberTokenStore) key(seriesID string) string {
	return s.prefix + ":s:" + seriesID
}

func (s *RememberTokenStore) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Save writes a new series record and adds it to the user's index.
func (s *RememberTokenStore) Save(
	ctx context.Context,
	seriesID string,
	record *RememberRecord,
	ttl time.Duration,
) error {
	encoded, err := encodeRememberRecord(record)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(seriesID), encoded, ttl)
		pipe.SAdd(ctx, s.userKey(record.UserID), seriesID)
		pipe.Expire(ctx, s.userKey(record.UserID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRememberRedisUnavailable, err)
	}

	return nil
}

// CheckAndRotate validates the presented secret hash for a series and,
// when rotate is true, atomically replaces it with nextHash. The returned
// record reflects post-rotation state.
func (s *RememberTokenStore) CheckAndRotate(
	ctx context.Context,
	seriesID, userID string,
	providedHash, nextHash [32]byte,
	rotate bool,
) (*RememberRecord, error) {
	rotateFlag := 0
	if rotate {
		rotateFlag = 1
	}

	result, err := checkRotateLua.Run(ctx, s.redis,
		[]string{s.key(seriesID), s.userKey(userID)},
		string(providedHash[:]),
		string(nextHash[:]),
		time.Now().Unix(),
		seriesID,
		rotateFlag,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRememberRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrRememberRedisUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrRememberRedisUnavailable)
	}

	switch code {
	case rememberStatusNotFound:
		return nil, ErrRememberNotFound
	case rememberStatusExpired:
		return nil, ErrRememberExpired
	case rememberStatusMismatch:
		return nil, ErrRememberSecretMismatch
	case rememberStatusRotated, rememberStatusMatched:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing record payload", ErrRememberRedisUnavailable)
		}

		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid record payload", ErrRememberRedisUnavailable)
		}

		record, decErr := decodeRememberRecord(blob)
		if decErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrRememberRedisUnavailable, decErr)
		}

		// Re-check in Go: Lua string comparison is not constant-time.
		expect := providedHash
		if code == rememberStatusRotated {
			expect = nextHash
		}
		if subtle.ConstantTimeCompare(record.SecretHash[:], expect[:]) != 1 {
			return nil, ErrRememberSecretMismatch
		}

		return record, nil
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status", ErrRememberRedisUnavailable)
	}
}

// RevokeSeries deletes a single series and its index entry.
func (s *RememberTokenStore) RevokeSeries(ctx context.Context, seriesID, userID string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(seriesID))
		pipe.SRem(ctx, s.userKey(userID), seriesID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRememberRedisUnavailable, err)
	}
	return nil
}

// RevokeAllForUser deletes every series recorded for the user.
//
// Not fully atomic: a series saved between the SMembers read and the
// pipelined DEL survives this call and dies at its natural TTL.
func (s *RememberTokenStore) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)

	seriesIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRememberRedisUnavailable, err)
	}

	keys := make([]string, 0, len(seriesIDs)+1)
	for _, seriesID := range seriesIDs {
		keys = append(keys, s.key(seriesID))
	}
	keys = append(keys, userKey)

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRememberRedisUnavailable, err)
	}

	return len(seriesIDs), nil
}

// ActiveSeriesCount returns the number of indexed series for a user.
func (s *RememberTokenStore) ActiveSeriesCount(ctx context.Context, userID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRememberRedisUnavailable, err)
	}
	return int(count), nil
}

func encodeRememberRecord(record *RememberRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(rememberRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 {
		return nil, errors.New("remember record user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	buf.Write(record.SecretHash[:])

	return buf.Bytes(), nil
}

func decodeRememberRecord(data []byte) (*RememberRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != rememberRecordVersionV1 {
		return nil, errors.New("invalid remember record version")
	}

	record := &RememberRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var userIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userIDLen); err != nil {
		return nil, err
	}

	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	record.UserID = string(userID)

	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
