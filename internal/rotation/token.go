package rotation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"attendly/internal/util"
)

const (
	MinIntervalSeconds = 2
	MaxIntervalSeconds = 60

	// DefaultGrace keeps a code scanned in the last instant of its display window valid
	// while the request is in flight.
	DefaultGrace = 6 * time.Second

	randomLen = 22
)

// ClampInterval bounds a rotation interval to [MinIntervalSeconds, MaxIntervalSeconds].
func ClampInterval(seconds int) int {
	return min(max(seconds, MinIntervalSeconds), MaxIntervalSeconds)
}

// NewToken returns "<issued-at unix millis, base36>.<random>".
// The random part carries ~131 bits, so tokens never repeat in practice.
func NewToken(now time.Time) (string, error) {
	random, err := util.RandomString(randomLen)
	if err != nil {
		return "", fmt.Errorf("token random: %w", err)
	}
	return strconv.FormatInt(now.UnixMilli(), 36) + "." + random, nil
}

// IssuedAt extracts the creation time embedded in a rotating token.
func IssuedAt(token string) (time.Time, bool) {
	stamp, random, ok := strings.Cut(token, ".")
	if !ok || stamp == "" || len(random) != randomLen {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(stamp, 36, 64)
	if err != nil || ms < 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// Stale reports whether token was minted more than maxAge before now, or is not a rotating
// token at all. It needs no store read.
func Stale(token string, now time.Time, maxAge time.Duration) bool {
	issued, ok := IssuedAt(token)
	if !ok {
		return true
	}
	return now.Sub(issued) > maxAge
}

// ExpiresAt is now + interval + grace.
func ExpiresAt(now time.Time, intervalSeconds int, grace time.Duration) time.Time {
	return now.Add(time.Duration(ClampInterval(intervalSeconds))*time.Second + grace)
}

// MaxAge is the oldest a still-valid token can be: one full interval plus grace.
func MaxAge(intervalSeconds int, grace time.Duration) time.Duration {
	return time.Duration(ClampInterval(intervalSeconds))*time.Second + grace
}
