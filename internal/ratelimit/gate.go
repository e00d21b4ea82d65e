// Package ratelimit inspects Nexus Mods rate-limit response headers and
// derives the pacing delay the caller must honor before its next request.
package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// DefaultPacing is the delay returned when the headers don't indicate the
// caller is close to exhausting its quota.
const DefaultPacing = 1 * time.Second

// resetLayout matches the upstream's "x-rl-hourly-reset" timestamp format,
// e.g. "2024-01-02 15:04:05 +0000".
const resetLayout = "2006-01-02 15:04:05 -0700"

// Gate derives a wait duration from the rate-limit headers on an upstream response.
type Gate struct {
	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// New returns a Gate using the real wall clock.
func New() *Gate {
	return &Gate{Now: time.Now}
}

// Wait inspects the response headers and returns how long the caller must
// sleep before issuing its next request. Missing or unparsable headers are
// not fatal: the gate falls back to DefaultPacing.
func (g *Gate) Wait(h http.Header) time.Duration {
	daily, dailyOK := parseInt(h.Get("x-rl-daily-remaining"))
	hourly, hourlyOK := parseInt(h.Get("x-rl-hourly-remaining"))

	if !dailyOK || !hourlyOK {
		return DefaultPacing
	}

	if daily > 1 || hourly > 1 {
		return DefaultPacing
	}

	reset, err := time.Parse(resetLayout, h.Get("x-rl-hourly-reset"))
	if err != nil {
		return DefaultPacing
	}

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	wait := reset.Add(5 * time.Second).Sub(now())
	if wait < 0 {
		return DefaultPacing
	}
	return wait
}

func parseInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}
