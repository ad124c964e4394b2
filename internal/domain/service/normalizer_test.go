package service

import (
	"math"
	"testing"
	"time"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
)

func TestSanitizeNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected float64
	}{
		{"percent suffix", "45%", 45},
		{"celsius suffix", "62C", 62},
		{"padded", "  7.5  ", 7.5},
		{"suffix with space", " 45 % ", 45},
		{"negative number", "-3", -3},
		{"int", 40, 40},
		{"int64", int64(131072), 131072},
		{"float", 214.25, 214.25},
		{"float32", float32(0.5), 0.5},
		{"not available", "N/A", -1},
		{"empty", "", -1},
		{"whitespace", "   ", -1},
		{"only suffix", "%", -1},
		{"nil", nil, -1},
		{"bool", true, -1},
		{"nan", math.NaN(), -1},
		{"inf", math.Inf(1), -1},
		{"nan text", "NaN", -1},
		{"inf text", "Inf", -1},
		{"slice", []int{1}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeNumber(tt.input); got != tt.expected {
				t.Errorf("SanitizeNumber(%#v) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "35:00.0", "35:00.0"},
		{"trimmed", "  AO22049929 ", "AO22049929"},
		{"empty", "", "unknown"},
		{"nil", nil, "unknown"},
		{"int", 7, "7"},
		{"float", 1.5, "1.5"},
		{"sentinel", -1.0, "-1"},
		{"time", ts, "Tue Jan 02 03:04:05 UTC 2024"},
		{"zero time", time.Time{}, "unknown"},
		{"unsupported", struct{}{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeText(tt.input); got != tt.expected {
				t.Errorf("SanitizeText(%#v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeIndex(t *testing.T) {
	tests := []struct {
		input    any
		expected int
	}{
		{2, 2},
		{int64(3), 3},
		{1.0, 1},
		{"4", 4},
		{" 5 ", 5},
		{1.5, -1},
		{"x", -1},
		{nil, -1},
		{-1.0, -1},
		{-3, -1},
		{int64(-3), -1},
		{int32(-3), -1},
		{"-3", -1},
		{int64(math.MaxInt32) + 1, -1},
		{uint(math.MaxInt32) + 1, -1},
		{uint32(7), 7},
		{float64(math.MaxInt32) + 1, -1},
	}

	for _, tt := range tests {
		if got := SanitizeIndex(tt.input); got != tt.expected {
			t.Errorf("SanitizeIndex(%#v) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeFullReading(t *testing.T) {
	raw := valueobject.RawReading{
		valueobject.KeyTimestamp:      "Mon Jan 01 00:00:00 UTC 2024",
		valueobject.KeyUUID:           "U-1",
		valueobject.KeyBus:            "35:00.0",
		valueobject.KeyTemperature:    "41C",
		valueobject.KeyUtilizationAIP: "12 %",
		valueobject.KeyUtilizationMem: 3,
		valueobject.KeyMemoryTotal:    131072,
		valueobject.KeyMemoryFree:     "130400",
		valueobject.KeyMemoryUsed:     672.0,
		valueobject.KeyPower:          "214.5",
		valueobject.KeySerial:         "AO22049929",
		valueobject.KeyIndex:          0,
	}

	expected := entity.Record{
		Timestamp: "Mon Jan 01 00:00:00 UTC 2024",
		UUID:      "U-1",
		Bus:       "35:00.0",
		Temp:      41,
		UtilAIP:   12,
		UtilMem:   3,
		MemTotal:  131072,
		MemFree:   130400,
		MemUsed:   672,
		Power:     214.5,
		Serial:    "AO22049929",
		Index:     0,
	}

	if got := Normalize(raw); got != expected {
		t.Errorf("Normalize() = %+v, want %+v", got, expected)
	}
}

func TestNormalizeIsTotal(t *testing.T) {
	inputs := []valueobject.RawReading{
		nil,
		{},
		{valueobject.KeyTemperature: nil, valueobject.KeyUUID: 12},
		{"unexpected": "value", valueobject.KeyIndex: "abc"},
	}

	for _, raw := range inputs {
		rec := Normalize(raw)
		for _, p := range rec.Numeric() {
			f := p.Value.(float64)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				t.Errorf("field %s is not finite for %v", p.Field, raw)
			}
		}
		for _, s := range []string{rec.Timestamp, rec.UUID, rec.Bus, rec.Serial} {
			if s == "" {
				t.Errorf("empty text field for %v", raw)
			}
		}
	}

	empty := Normalize(valueobject.RawReading{})
	if empty.Temp != -1 || empty.Power != -1 || empty.Index != -1 {
		t.Errorf("missing numeric fields should be -1, got %+v", empty)
	}
	if empty.UUID != "unknown" || empty.Timestamp != "unknown" {
		t.Errorf("missing text fields should be unknown, got %+v", empty)
	}
}

func TestNormalizeIsolatesBadField(t *testing.T) {
	raw := valueobject.RawReading{
		valueobject.KeyTemperature:    "55",
		valueobject.KeyUtilizationAIP: "N/A",
		valueobject.KeyPower:          "300",
	}

	rec := Normalize(raw)
	if rec.UtilAIP != -1 {
		t.Errorf("expected util_aip -1, got %v", rec.UtilAIP)
	}
	if rec.Temp != 55 || rec.Power != 300 {
		t.Errorf("other fields should be parsed, got temp=%v power=%v", rec.Temp, rec.Power)
	}
}

func TestNormalizeAllKeepsOrder(t *testing.T) {
	raws := []valueobject.RawReading{
		{valueobject.KeyIndex: 2},
		{valueobject.KeyIndex: 0},
		{valueobject.KeyIndex: 1},
	}

	records := NormalizeAll(raws)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []int{2, 0, 1} {
		if records[i].Index != want {
			t.Errorf("record %d: expected index %d, got %d", i, want, records[i].Index)
		}
	}

	if got := NormalizeAll(nil); len(got) != 0 {
		t.Errorf("expected empty batch, got %v", got)
	}
}
