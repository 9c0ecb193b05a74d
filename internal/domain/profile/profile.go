package profile

import (
	"strings"
	"time"
)

// Record is what the profile registry stores per address.
type Record struct {
	Address     string
	CID         string
	LastUpdated time.Time
}

// Cooldown describes when an address may next update its profile.
type Cooldown struct {
	Period      time.Duration `json:"period"`
	LastUpdated time.Time     `json:"last_updated"`
	NextAllowed time.Time     `json:"next_allowed"`
	Remaining   time.Duration `json:"remaining"`
}

func (c Cooldown) Active() bool { return c.Remaining > 0 }

// NewCooldown computes the remaining wait at now. A zero lastUpdated means
// the address never updated and no cooldown applies.
func NewCooldown(period time.Duration, lastUpdated, now time.Time) Cooldown {
	c := Cooldown{Period: period, LastUpdated: lastUpdated}
	if lastUpdated.IsZero() {
		c.NextAllowed = now
		return c
	}
	c.NextAllowed = lastUpdated.Add(period)
	if rem := c.NextAllowed.Sub(now); rem > 0 {
		c.Remaining = rem
	}
	return c
}

// FormatAddress shortens 0x1234567890abcdef... to 0x1234...cdef.
func FormatAddress(address string) string {
	if len(address) < 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// DisplayName falls back to the shortened address when no name is set.
func DisplayName(name, address string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return FormatAddress(address)
}
