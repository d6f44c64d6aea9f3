package ratelimit

import (
	"strings"
	"testing"
	"time"
)

func TestRateLimit(t *testing.T) {
	r := Rate{PerMinute: 30, Burst: 5}
	if got := float64(r.Limit()); got != 0.5 {
		t.Errorf("Limit() = %v, want 0.5 tokens/sec", got)
	}
}

func TestAllow_WithinBurst(t *testing.T) {
	limiters := NewToolLimiters(map[string]Rate{"tool": {PerMinute: 60, Burst: 3}})
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !limiters.Allow("tool", now) {
			t.Errorf("request %d should be allowed (within burst)", i+1)
		}
	}
	if limiters.Allow("tool", now) {
		t.Error("request after burst exhaustion should be rejected")
	}
}

func TestAllow_Refill(t *testing.T) {
	limiters := NewToolLimiters(map[string]Rate{"tool": {PerMinute: 60, Burst: 1}})
	now := time.Now()

	if !limiters.Allow("tool", now) {
		t.Fatal("first request should be allowed")
	}
	if limiters.Allow("tool", now.Add(500*time.Millisecond)) {
		t.Error("half a token should not be enough")
	}
	if !limiters.Allow("tool", now.Add(1100*time.Millisecond)) {
		t.Error("expected allow after one token refilled")
	}
}

func TestAllow_IndependentTools(t *testing.T) {
	limiters := NewToolLimiters(map[string]Rate{
		"a": {PerMinute: 1, Burst: 1},
		"b": {PerMinute: 1, Burst: 1},
	})
	now := time.Now()

	limiters.Allow("a", now)
	if limiters.Allow("a", now) {
		t.Error("a should be exhausted")
	}
	if !limiters.Allow("b", now) {
		t.Error("b should be allowed (independent bucket)")
	}
}

func TestAllow_UnknownToolUnlimited(t *testing.T) {
	limiters := NewToolLimiters(nil)
	for i := 0; i < 100; i++ {
		if !limiters.Allow("anything", time.Now()) {
			t.Fatal("unconfigured tools should never be limited")
		}
	}
}

func TestDefaultRatesCoverTools(t *testing.T) {
	limiters := NewToolLimiters(DefaultRates)
	for _, tool := range []string{"hornet_classify", "hornet_spread", "hornet_bees", "hornet_neighbors", "hornet_runs", "hornet_graph"} {
		if _, ok := limiters[tool]; !ok {
			t.Errorf("missing limiter for %s", tool)
		}
	}
	if DefaultRates["hornet_spread"].PerMinute >= DefaultRates["hornet_classify"].PerMinute {
		t.Error("simulation tools should be limited more tightly than lookups")
	}
}

func TestCheckLimit(t *testing.T) {
	limiters := NewToolLimiters(map[string]Rate{"hornet_spread": {PerMinute: 1, Burst: 1}})

	if err := CheckLimit(limiters, "hornet_spread"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	err := CheckLimit(limiters, "hornet_spread")
	if err == nil {
		t.Fatal("second call should be rate limited")
	}
	if !strings.Contains(err.Error(), "hornet_spread") {
		t.Errorf("error should name the tool: %v", err)
	}
}
