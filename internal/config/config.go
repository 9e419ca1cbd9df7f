// Package config provides the configuration schema and loader for the
// vocalytic capture daemon.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Capture CaptureConfig `yaml:"capture"`
	Stream  StreamConfig  `yaml:"stream"`
	Record  RecordConfig  `yaml:"record"`
	Upload  UploadConfig  `yaml:"upload"`
}

// ServerConfig addresses the coaching backend and local observability.
type ServerConfig struct {
	// BaseURL is the backend root (e.g. "https://coach.example.com"). The
	// WebSocket targets and the upload endpoint are derived from it.
	BaseURL string `yaml:"base_url"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the local listen address for /metrics and /healthz.
	// Empty disables the observability endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// CaptureConfig holds the microphone acquisition constraints.
type CaptureConfig struct {
	SampleRate       int    `yaml:"sample_rate"`
	Channels         int    `yaml:"channels"`
	BlockFrames      int    `yaml:"block_frames"`
	BlockSize        int    `yaml:"block_size"`
	EchoCancellation *bool  `yaml:"echo_cancellation"`
	NoiseSuppression *bool  `yaml:"noise_suppression"`
	DeviceID         string `yaml:"device_id"`
}

// StreamConfig tunes the live connection and the frame sampler.
type StreamConfig struct {
	MaxRetries          int     `yaml:"max_retries"`
	BaseDelayMs         int     `yaml:"base_delay_ms"`
	MaxDelayMs          int     `yaml:"max_delay_ms"`
	KeepaliveIntervalMs int     `yaml:"keepalive_interval_ms"`

	// AdmissionProbability is the fraction of analysis frames forwarded to
	// the backend. Deliberately a tunable, not a constant.
	AdmissionProbability float64 `yaml:"admission_probability"`
}

// BaseDelay returns the backoff base as a duration.
func (s StreamConfig) BaseDelay() time.Duration {
	return time.Duration(s.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the backoff cap as a duration.
func (s StreamConfig) MaxDelay() time.Duration {
	return time.Duration(s.MaxDelayMs) * time.Millisecond
}

// KeepaliveInterval returns the keepalive cadence as a duration.
func (s StreamConfig) KeepaliveInterval() time.Duration {
	return time.Duration(s.KeepaliveIntervalMs) * time.Millisecond
}

// RecordConfig tunes the container recorder.
type RecordConfig struct {
	// Codecs is the ordered codec preference list.
	Codecs []string `yaml:"codecs"`

	SegmentIntervalMs int `yaml:"segment_interval_ms"`
	MinBytes          int `yaml:"min_bytes"`
}

// SegmentInterval returns the segment cadence as a duration.
func (r RecordConfig) SegmentInterval() time.Duration {
	return time.Duration(r.SegmentIntervalMs) * time.Millisecond
}

// UploadConfig holds the artifact submission flags.
type UploadConfig struct {
	ProcessImmediately bool `yaml:"process_immediately"`
	GenerateFeedback   bool `yaml:"generate_feedback"`
}

// Default returns the configuration used when a field is absent from the
// loaded file.
func Default() *Config {
	on := true
	return &Config{
		Server: ServerConfig{
			LogLevel:    LogInfo,
			MetricsAddr: "127.0.0.1:9464",
		},
		Capture: CaptureConfig{
			SampleRate:       16000,
			Channels:         1,
			BlockFrames:      480,
			BlockSize:        4096,
			EchoCancellation: &on,
			NoiseSuppression: &on,
		},
		Stream: StreamConfig{
			MaxRetries:           5,
			BaseDelayMs:          500,
			MaxDelayMs:           30000,
			KeepaliveIntervalMs:  15000,
			AdmissionProbability: 0.2,
		},
		Record: RecordConfig{
			Codecs:            []string{"opus", "pcm16le"},
			SegmentIntervalMs: 1000,
			MinBytes:          1024,
		},
		Upload: UploadConfig{
			ProcessImmediately: true,
			GenerateFeedback:   true,
		},
	}
}
