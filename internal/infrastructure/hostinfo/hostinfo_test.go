package hostinfo

import (
	"context"
	"regexp"
	"testing"
)

func TestRunName(t *testing.T) {
	tests := []struct {
		hostname string
		pattern  string
	}{
		{"node-01", `^node-01-[0-9a-f]{8}$`},
		{"gpu host/7", `^gpu-host-7-[0-9a-f]{8}$`},
		{"", `^run-[0-9a-f]{8}$`},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			got := Info{Hostname: tt.hostname}.RunName()
			if !regexp.MustCompile(tt.pattern).MatchString(got) {
				t.Errorf("RunName() = %s, want match %s", got, tt.pattern)
			}
		})
	}

	info := Info{Hostname: "node"}
	if info.RunName() == info.RunName() {
		t.Error("run names should be unique per call")
	}
}

func TestLookup(t *testing.T) {
	info, err := Lookup(context.Background())
	if err != nil {
		t.Skipf("host info unavailable: %v", err)
	}
	if info.Hostname == "" {
		t.Error("expected a hostname")
	}
}
