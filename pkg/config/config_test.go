package config

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Collector.Source != valueobject.SourceSimulated {
		t.Errorf("expected simulated source, got %s", cfg.Collector.Source)
	}
	if len(cfg.Collector.Sinks) != 1 || cfg.Collector.Sinks[0] != valueobject.SinkCSV {
		t.Errorf("expected csv sink, got %v", cfg.Collector.Sinks)
	}
	if cfg.Collector.Interval != time.Second {
		t.Errorf("expected 1s interval, got %s", cfg.Collector.Interval)
	}
	if cfg.Output.CSVFile != "aip_metrics.csv" {
		t.Errorf("unexpected csv file %q", cfg.Output.CSVFile)
	}
	if cfg.SMI.Path != "hl-smi" || cfg.SMI.Timeout != 10*time.Second {
		t.Errorf("unexpected smi config %+v", cfg.SMI)
	}
	if cfg.Remote.Project != "aip_monitor" {
		t.Errorf("unexpected remote project %q", cfg.Remote.Project)
	}
	if cfg.Server.Addr != "" {
		t.Errorf("http surface should be disabled by default, got %q", cfg.Server.Addr)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("AIP_SOURCE", "CLI")
	t.Setenv("AIP_SINKS", "jsonl,prometheus")
	t.Setenv("AIP_OUTPUT_FILE", "out.jsonl")
	t.Setenv("AIP_POLL_INTERVAL", "250ms")
	t.Setenv("AIP_SMI_TIMEOUT", "3s")
	t.Setenv("SIM_SEED", "42")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Collector.Source != valueobject.SourceCLI {
		t.Errorf("expected cli source, got %s", cfg.Collector.Source)
	}
	if !cfg.HasSink(valueobject.SinkPrometheus) || cfg.HasSink(valueobject.SinkCSV) {
		t.Errorf("unexpected sinks %v", cfg.Collector.Sinks)
	}
	if cfg.Output.JSONLFile != "out.jsonl" {
		t.Errorf("jsonl sink alone should use the output file, got %q", cfg.Output.JSONLFile)
	}
	if cfg.Collector.Interval != 250*time.Millisecond {
		t.Errorf("unexpected interval %s", cfg.Collector.Interval)
	}
	if cfg.SMI.Timeout != 3*time.Second {
		t.Errorf("unexpected smi timeout %s", cfg.SMI.Timeout)
	}
	if cfg.Simulated.Seed != 42 {
		t.Errorf("unexpected seed %d", cfg.Simulated.Seed)
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("AIP_SOURCE", "sdk")
	t.Setenv("AIP_SINKS", "jsonl")

	cfg, err := Load([]string{"--source", "simulated", "--output", "csv,jsonl", "--filename", "run.csv", "--echo", "--cycles", "3"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Collector.Source != valueobject.SourceSimulated {
		t.Errorf("flag should win over env, got %s", cfg.Collector.Source)
	}
	if !cfg.Collector.Echo || cfg.Collector.Cycles != 3 {
		t.Errorf("unexpected collector config %+v", cfg.Collector)
	}
	if cfg.Output.CSVFile != "run.csv" || cfg.Output.JSONLFile != "run.jsonl" {
		t.Errorf("unexpected output files %+v", cfg.Output)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"unknown source", map[string]string{"AIP_SOURCE": "dummy"}, nil},
		{"unknown sink", map[string]string{"AIP_SINKS": "csv,kafka"}, nil},
		{"zero interval", nil, []string{"--interval", "0s"}},
		{"negative cycles", nil, []string{"--cycles", "-1"}},
		{"bad smi timeout", map[string]string{"AIP_SMI_TIMEOUT": "soon"}, nil},
		{"bad resolution", map[string]string{"CLOUDWATCH_STORAGE_RESOLUTION": "5"}, nil},
		{"s3 without bucket", map[string]string{"AIP_SINKS": "s3"}, nil},
		{"csv and jsonl share a file", nil, []string{"--output", "csv,jsonl", "--filename", "x.jsonl"}},
		{"jsonl file overrides onto csv file", map[string]string{"AIP_JSONL_FILE": "run.csv"}, []string{"--output", "csv,jsonl", "--filename", "run.csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(tt.args); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadHelp(t *testing.T) {
	_, err := Load([]string{"--help"})
	if !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("expected pflag.ErrHelp, got %v", err)
	}
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: "5433", User: "u", Password: "p", Database: "aip"}
	expected := "host=db port=5433 user=u password=p dbname=aip sslmode=disable"
	if got := db.DSN(); got != expected {
		t.Errorf("DSN() = %q, want %q", got, expected)
	}
}
