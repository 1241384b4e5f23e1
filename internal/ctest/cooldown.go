package ctest

import (
	"strconv"
	"time"
)

// Cooldown gates repeated hint requests. It is a token carrying the instant at
// which the next request is allowed; the zero value allows immediately.
type Cooldown struct {
	Until time.Time
}

// Allow reports whether a request at now may proceed.
func (c Cooldown) Allow(now time.Time) bool {
	return !now.Before(c.Until)
}

// NextCooldown returns the token to hand out after a request served at now.
func NextCooldown(now time.Time, interval time.Duration) Cooldown {
	return Cooldown{Until: now.Add(interval)}
}

// Encode renders the token for a hidden form field (unix milliseconds).
func (c Cooldown) Encode() string {
	if c.Until.IsZero() {
		return ""
	}
	return strconv.FormatInt(c.Until.UnixMilli(), 10)
}

// ParseCooldown decodes a token produced by Encode. Malformed input yields the
// zero token.
func ParseCooldown(s string) Cooldown {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return Cooldown{}
	}
	return Cooldown{Until: time.UnixMilli(ms)}
}
