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

const (
	emailRecordVersionV1 = 1

	emailStateActive   = 0
	emailStateConsumed = 1
)

var (
	ErrEmailTokenNotFound         = errors.New("email token not found")
	ErrEmailTokenConsumed         = errors.New("email token already consumed")
	ErrEmailTokenExpired          = errors.New("email token expired")
	ErrEmailTokenSecretMismatch   = errors.New("email token secret mismatch")
	ErrEmailTokenRedisUnavailable = errors.New("email token redis unavailable")
)

// consumeEmailLua atomically performs GET→validate→tombstone on an email
// token record. A consumed record is not deleted; it is rewritten with the
// consumed state flag and kept under its original TTL so a second
// presentation is reportable as reuse rather than as an unknown token.
//
// KEYS[1] = record key
// ARGV[1] = provided hash (32 bytes)
// ARGV[2] = current unix timestamp
//
// Returns:
//
//	record bytes on success
//	error string: "not_found", "already_used", "expired", "secret_mismatch"
var consumeEmailLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

local providedHash = ARGV[1]
local nowUnix = tonumber(ARGV[2])

-- Binary layout: version(1) purpose(1) state(1) expiresAt(8 big-endian) userIDLen(2) userID(variable) secretHash(32)
local version = string.byte(data, 1)
if version ~= 1 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local state = string.byte(data, 3)
if state == 1 then
  return {err='already_used'}
end

local e0,e1,e2,e3,e4,e5,e6,e7 = string.byte(data, 4, 11)
local expiresAt = e0
for _, b in ipairs({e1,e2,e3,e4,e5,e6,e7}) do
  expiresAt = expiresAt * 256 + b
end

if nowUnix > expiresAt then
  redis.call('DEL', KEYS[1])
  return {err='expired'}
end

local userIDLen = string.byte(data, 12) * 256 + string.byte(data, 13)
local hashOffset = 14 + userIDLen
local storedHash = string.sub(data, hashOffset, hashOffset + 31)

if storedHash ~= providedHash then
  return {err='secret_mismatch'}
end

local ttlMs = redis.call('PTTL', KEYS[1])
if ttlMs <= 0 then
  redis.call('DEL', KEYS[1])
  return {err='expired'}
end

local updated = string.sub(data, 1, 2) .. string.char(1) .. string.sub(data, 4)
redis.call('SET', KEYS[1], updated, 'PX', ttlMs)
return data
`)

// EmailTokenRecord is the server-side state of one single-use email token.
type EmailTokenRecord struct {
	UserID     string
	SecretHash [32]byte
	ExpiresAt  int64
	Purpose    int
	Consumed   bool
}

// EmailTokenStore persists single-use email tokens in Redis.
type EmailTokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewEmailTokenStore(redisClient redis.UniversalClient, prefix string) *EmailTokenStore {
	if prefix == "" {
		prefix = "wte"
	}
	return &EmailTokenStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *EmailTokenStore) key(tokenID string) string {
	return s.prefix + ":" + tokenID
}

func (s *EmailTokenStore) Save(
	ctx context.Context,
	tokenID string,
	record *EmailTokenRecord,
	ttl time.Duration,
) error {
	encoded, err := encodeEmailTokenRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(tokenID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrEmailTokenRedisUnavailable, err)
	}

	return nil
}

// Consume validates and tombstones the token in one atomic step.
// Exactly one caller can ever receive the record for a given token.
func (s *EmailTokenStore) Consume(
	ctx context.Context,
	tokenID string,
	providedHash [32]byte,
) (*EmailTokenRecord, error) {
	result, err := consumeEmailLua.Run(ctx, s.redis,
		[]string{s.key(tokenID)},
		string(providedHash[:]),
		time.Now().Unix(),
	).Result()

	if err != nil {
		switch err.Error() {
		case "not_found":
			return nil, ErrEmailTokenNotFound
		case "already_used":
			return nil, ErrEmailTokenConsumed
		case "expired":
			return nil, ErrEmailTokenExpired
		case "secret_mismatch":
			return nil, ErrEmailTokenSecretMismatch
		default:
			return nil, fmt.Errorf("%w: %v", ErrEmailTokenRedisUnavailable, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrEmailTokenRedisUnavailable)
	}

	record, decErr := decodeEmailTokenRecord([]byte(data))
	if decErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmailTokenRedisUnavailable, decErr)
	}

	// Final constant-time comparison in Go as defense-in-depth
	// (Lua already checked, but Lua string comparison is not constant-time)
	if subtle.ConstantTimeCompare(record.SecretHash[:], providedHash[:]) != 1 {
		return nil, ErrEmailTokenSecretMismatch
	}

	return record, nil
}

// Invalidate removes a token outright, e.g. when a newer token supersedes it.
func (s *EmailTokenStore) Invalidate(ctx context.Context, tokenID string) error {
	if err := s.redis.Del(ctx, s.key(tokenID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrEmailTokenRedisUnavailable, err)
	}
	return nil
}

func encodeEmailTokenRecord(record *EmailTokenRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(emailRecordVersionV1)
	buf.WriteByte(byte(record.Purpose))
	if record.Consumed {
		buf.WriteByte(emailStateConsumed)
	} else {
		buf.WriteByte(emailStateActive)
	}

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 {
		return nil, errors.New("email token record user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	buf.Write(record.SecretHash[:])

	return buf.Bytes(), nil
}

func decodeEmailTokenRecord(data []byte) (*EmailTokenRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != emailRecordVersionV1 {
		return nil, errors.New("invalid email token record version")
	}

	purpose, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	state, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &EmailTokenRecord{
		Purpose:  int(purpose),
		Consumed: state == emailStateConsumed,
	}

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
