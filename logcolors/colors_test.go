package logcolors

import (
	"strings"
	"testing"
)

func TestProvider_StableColor(t *testing.T) {
	first := Provider("ACRCloud")
	second := Provider("ACRCloud")
	if first != second {
		t.Errorf("Expected the same prefix for the same name, got %q and %q", first, second)
	}
	if !strings.Contains(first, "[Provider:ACRCloud]") {
		t.Errorf("Expected prefix to contain provider name, got %q", first)
	}
	if !strings.HasSuffix(first, Reset) {
		t.Errorf("Expected prefix to end with reset code, got %q", first)
	}
}

func TestCircuitBreakerPrefix(t *testing.T) {
	got := CircuitBreakerPrefix("AudD")
	want := Purple + "[CircuitBreaker:AudD]" + Reset
	if got != want {
		t.Errorf("CircuitBreakerPrefix() = %q, expected %q", got, want)
	}
}
