package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and validates the configuration file at path. Fields absent
// from the file keep their [Default] values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader decodes and validates a YAML configuration from r.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency. All problems are
// reported at once as a joined error.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.BaseURL == "" {
		errs = append(errs, errors.New("server.base_url is required"))
	} else if u, err := url.Parse(c.Server.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("server.base_url: %w", err))
	} else if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
		errs = append(errs, fmt.Errorf("server.base_url: unsupported scheme %q", u.Scheme))
	}
	if !c.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level: unknown level %q", c.Server.LogLevel))
	}

	if c.Capture.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate must be positive, got %d", c.Capture.SampleRate))
	}
	if c.Capture.Channels < 1 || c.Capture.Channels > 2 {
		errs = append(errs, fmt.Errorf("capture.channels must be 1 or 2, got %d", c.Capture.Channels))
	}
	if c.Capture.BlockFrames <= 0 {
		errs = append(errs, fmt.Errorf("capture.block_frames must be positive, got %d", c.Capture.BlockFrames))
	}
	if c.Capture.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("capture.block_size must be positive, got %d", c.Capture.BlockSize))
	}

	if c.Stream.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("stream.max_retries must not be negative, got %d", c.Stream.MaxRetries))
	}
	if c.Stream.BaseDelayMs <= 0 {
		errs = append(errs, fmt.Errorf("stream.base_delay_ms must be positive, got %d", c.Stream.BaseDelayMs))
	}
	if c.Stream.MaxDelayMs < c.Stream.BaseDelayMs {
		errs = append(errs, fmt.Errorf("stream.max_delay_ms (%d) must not be below stream.base_delay_ms (%d)",
			c.Stream.MaxDelayMs, c.Stream.BaseDelayMs))
	}
	if p := c.Stream.AdmissionProbability; p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("stream.admission_probability must be within [0, 1], got %v", p))
	}
	if c.Stream.KeepaliveIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("stream.keepalive_interval_ms must not be negative, got %d", c.Stream.KeepaliveIntervalMs))
	}

	if len(c.Record.Codecs) == 0 {
		errs = append(errs, errors.New("record.codecs must list at least one codec"))
	}
	if c.Record.SegmentIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("record.segment_interval_ms must be positive, got %d", c.Record.SegmentIntervalMs))
	}
	if c.Record.MinBytes < 0 {
		errs = append(errs, fmt.Errorf("record.min_bytes must not be negative, got %d", c.Record.MinBytes))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	if c.Server.MetricsAddr == "" {
		slog.Warn("metrics endpoint disabled, no metrics_addr configured")
	}
	if c.Stream.AdmissionProbability == 0 {
		slog.Warn("admission probability is 0, no live frames will be forwarded")
	}
	return nil
}
