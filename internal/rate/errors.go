package rate

import "errors"

var (
	// ErrRedisUnavailable wraps transport failures talking to the attempt store.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
