// Package ratelimit provides per-tool token bucket rate limiting for MCP tools.
package ratelimit

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Rate describes a token bucket: PerMinute requests refill over a minute,
// with at most Burst available at once.
type Rate struct {
	PerMinute float64
	Burst     int
}

// Limit converts the rate to tokens per second.
func (r Rate) Limit() rate.Limit {
	return rate.Limit(r.PerMinute / 60.0)
}

// DefaultRates are the per-tool limits of the MCP server. Simulation tools
// run a full forecast per call and are kept tighter than lookups.
var DefaultRates = map[string]Rate{
	"hornet_classify":  {PerMinute: 120, Burst: 20},
	"hornet_neighbors": {PerMinute: 120, Burst: 20},
	"hornet_runs":      {PerMinute: 60, Burst: 10},
	"hornet_graph":     {PerMinute: 60, Burst: 10},
	"hornet_spread":    {PerMinute: 10, Burst: 3},
	"hornet_bees":      {PerMinute: 10, Burst: 3},
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*rate.Limiter

// NewToolLimiters creates a limiter per entry of rates.
func NewToolLimiters(rates map[string]Rate) ToolLimiters {
	out := make(ToolLimiters, len(rates))
	for tool, r := range rates {
		out[tool] = rate.NewLimiter(r.Limit(), r.Burst)
	}
	return out
}

// Allow reports whether tool may run at now.
func (l ToolLimiters) Allow(tool string, now time.Time) bool {
	limiter, ok := l[tool]
	if !ok {
		return true
	}
	return limiter.AllowN(now, 1)
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an error if rate limited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	if !limiters.Allow(toolName, time.Now()) {
		return fmt.Errorf("rate limit exceeded for %s, please try again shortly", toolName)
	}
	return nil
}
