package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

// SeriesID identifies one remember-me token chain or one email token.
type SeriesID [16]byte

const (
	tokenRawSize    = 48
	TokenSecretSize = 32
)

func NewSeriesID() (SeriesID, error) {
	var sid SeriesID
	id, err := uuid.NewRandom()
	if err != nil {
		return sid, err
	}
	copy(sid[:], id[:])
	return sid, nil
}

func (s SeriesID) Bytes() []byte {
	return s[:]
}

func (s SeriesID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSeriesID(seriesID string) (SeriesID, error) {
	var sid SeriesID

	raw, err := base64.RawURLEncoding.DecodeString(seriesID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid series id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

func NewTokenSecret() ([TokenSecretSize]byte, error) {
	var secret [TokenSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashTokenSecret(secret [TokenSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

func HashTokenBytes(secret []byte) [32]byte {
	return sha256.Sum256(secret)
}

// EncodeToken packs a series ID and secret into one opaque base64url string.
func EncodeToken(seriesID string, secret [TokenSecretSize]byte) (string, error) {
	sid, err := ParseSeriesID(seriesID)
	if err != nil {
		return "", err
	}

	var raw [tokenRawSize]byte
	copy(raw[:len(sid)], sid[:])
	copy(raw[len(sid):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

func DecodeToken(token string) (string, [TokenSecretSize]byte, error) {
	var secret [TokenSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != tokenRawSize {
		return "", secret, errors.New("invalid token size")
	}

	var sid SeriesID
	copy(sid[:], raw[:len(sid)])
	copy(secret[:], raw[len(sid):])

	return sid.String(), secret, nil
}
