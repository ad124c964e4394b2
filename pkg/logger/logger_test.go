package logger

import (
	"errors"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{" warn ", WARN},
		{"warning", WARN},
		{"error", ERROR},
		{"", INFO},
		{"verbose", INFO},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestNewKeepsLevel(t *testing.T) {
	log := New("warn")
	if log.level != WARN {
		t.Fatalf("expected WARN, got %v", log.level)
	}

	// Must not panic on odd key/value lists or nil errors.
	log.Debug("dropped", "k")
	log.Error("failure", nil, "k", 1)
	log.With("device", 0).Error("failure", errors.New("boom"))
}

func TestNopLogger(t *testing.T) {
	log := NewNop()
	log.Info("nothing", "key", "value")
	if err := log.Sync(); err != nil {
		t.Fatalf("Sync on nop logger returned %v", err)
	}
}
