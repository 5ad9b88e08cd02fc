package token

import (
	"math"
	"strconv"
	"strings"
	"time"
)

var expiryUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseExpiry parses a duration such as "900s", "15m", "12h", "7d" or "2w".
// Anything else, including non-positive amounts and amounts too large for a
// time.Duration, yields fallback.
func ParseExpiry(value string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(value)
	if len(v) < 2 {
		return fallback
	}

	unit, ok := expiryUnits[v[len(v)-1]]
	if !ok {
		return fallback
	}

	n, err := strconv.ParseInt(v[:len(v)-1], 10, 64)
	if err != nil || n <= 0 || n > math.MaxInt64/int64(unit) {
		return fallback
	}
	return time.Duration(n) * unit
}
