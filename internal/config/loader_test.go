package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  base_url: https://coach.example.com
  log_level: debug
capture:
  sample_rate: 48000
  channels: 2
stream:
  max_retries: 3
  base_delay_ms: 250
  max_delay_ms: 10000
  admission_probability: 0.5
record:
  codecs: [pcm16le]
  segment_interval_ms: 2000
`

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader() error: %v", err)
	}
	if cfg.Server.BaseURL != "https://coach.example.com" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Capture.SampleRate != 48000 || cfg.Capture.Channels != 2 {
		t.Errorf("capture = %d Hz / %d ch, want 48000/2", cfg.Capture.SampleRate, cfg.Capture.Channels)
	}
	if got := cfg.Stream.BaseDelay(); got != 250*time.Millisecond {
		t.Errorf("BaseDelay() = %v, want 250ms", got)
	}
	if cfg.Stream.AdmissionProbability != 0.5 {
		t.Errorf("AdmissionProbability = %v, want 0.5", cfg.Stream.AdmissionProbability)
	}
	if got := cfg.Record.SegmentInterval(); got != 2*time.Second {
		t.Errorf("SegmentInterval() = %v, want 2s", got)
	}
}

func TestLoadFromReader_DefaultsSurvivePartialFile(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("server:\n  base_url: http://localhost:8000\n"))
	if err != nil {
		t.Fatalf("LoadFromReader() error: %v", err)
	}
	def := Default()
	if cfg.Capture.SampleRate != def.Capture.SampleRate {
		t.Errorf("SampleRate = %d, want default %d", cfg.Capture.SampleRate, def.Capture.SampleRate)
	}
	if cfg.Capture.EchoCancellation == nil || !*cfg.Capture.EchoCancellation {
		t.Error("EchoCancellation should default to true")
	}
	if cfg.Stream.AdmissionProbability != def.Stream.AdmissionProbability {
		t.Errorf("AdmissionProbability = %v, want default %v",
			cfg.Stream.AdmissionProbability, def.Stream.AdmissionProbability)
	}
	if len(cfg.Record.Codecs) != 2 || cfg.Record.Codecs[0] != "opus" {
		t.Errorf("Codecs = %v, want default preference list", cfg.Record.Codecs)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("server:\n  base_url: http://x\n  bogus: 1\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"missing base url", func(c *Config) { c.Server.BaseURL = "" }, "base_url is required"},
		{"bad scheme", func(c *Config) { c.Server.BaseURL = "ftp://x" }, "unsupported scheme"},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "verbose" }, "unknown level"},
		{"zero sample rate", func(c *Config) { c.Capture.SampleRate = 0 }, "sample_rate"},
		{"too many channels", func(c *Config) { c.Capture.Channels = 6 }, "channels"},
		{"negative retries", func(c *Config) { c.Stream.MaxRetries = -1 }, "max_retries"},
		{"cap below base", func(c *Config) { c.Stream.MaxDelayMs = 100 }, "max_delay_ms"},
		{"probability above one", func(c *Config) { c.Stream.AdmissionProbability = 1.5 }, "admission_probability"},
		{"no codecs", func(c *Config) { c.Record.Codecs = nil }, "at least one codec"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Server.BaseURL = "https://coach.example.com"
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Server.BaseURL = ""
	cfg.Capture.SampleRate = -1
	cfg.Stream.AdmissionProbability = 2
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, sub := range []string{"base_url", "sample_rate", "admission_probability"} {
		if !strings.Contains(err.Error(), sub) {
			t.Errorf("joined error misses %q: %v", sub, err)
		}
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		t.Error("Validate() should return a joined error")
	}
}
