// Package app wires the capture, streaming, recording, and upload subsystems
// into a running coaching session.
//
// The CoachingSession struct owns the full lifecycle: New creates the
// subsystems, Start opens the microphone and the live connection, and Stop
// tears everything down in order, finishing with the artifact upload.
//
// For testing, inject test doubles via functional options (WithSource,
// WithDialer, WithUploader, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hfleisch/vocalytic/internal/capture"
	"github.com/hfleisch/vocalytic/internal/config"
	"github.com/hfleisch/vocalytic/internal/health"
	"github.com/hfleisch/vocalytic/internal/observe"
	"github.com/hfleisch/vocalytic/internal/record"
	"github.com/hfleisch/vocalytic/internal/stream"
	"github.com/hfleisch/vocalytic/internal/upload"
	"github.com/hfleisch/vocalytic/pkg/audio"
)

// levelPollInterval is the sampling cadence for sources that only expose a
// latest-samples tap.
const levelPollInterval = 50 * time.Millisecond

// Submitter uploads the finished artifact. Satisfied by [upload.Uploader].
type Submitter interface {
	Upload(ctx context.Context, sessionID string, art upload.Artifact, processImmediately, generateFeedback bool) error
}

// CoachingSession owns one end-to-end coaching session: microphone capture
// fanned out to the level meter, the frame sampler, and the recorder; the
// live WebSocket session; and the final transcode-and-upload.
type CoachingSession struct {
	cfg     *config.Config
	metrics *observe.Metrics

	source   capture.Source
	session  *stream.Session
	sampler  *stream.Sampler
	recorder *record.Recorder
	uploader Submitter
	meter    audio.LevelMeter

	dialer stream.Dialer
	rng    *rand.Rand

	id string

	mu       sync.Mutex
	terminal error
	sawOpen  bool

	cancel   context.CancelFunc
	pumps    *errgroup.Group
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*CoachingSession)

// WithSource injects a capture source instead of opening the default device.
func WithSource(s capture.Source) Option {
	return func(c *CoachingSession) { c.source = s }
}

// WithDialer injects a stream dialer instead of the WebSocket default.
func WithDialer(d stream.Dialer) Option {
	return func(c *CoachingSession) { c.dialer = d }
}

// WithUploader injects an artifact submitter instead of the HTTP uploader.
func WithUploader(u Submitter) Option {
	return func(c *CoachingSession) { c.uploader = u }
}

// WithRand injects the random source used for sampling and reconnect jitter.
func WithRand(rng *rand.Rand) Option {
	return func(c *CoachingSession) { c.rng = rng }
}

// WithMetrics injects a metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *CoachingSession) { c.metrics = m }
}

// New assembles a coaching session from cfg. Nothing is started yet; call
// [CoachingSession.Start].
func New(cfg *config.Config, opts ...Option) (*CoachingSession, error) {
	c := &CoachingSession{
		cfg: cfg,
		id:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.uploader == nil {
		c.uploader = upload.New(cfg.Server.BaseURL)
	}

	rec, err := record.NewRecorder(record.RecorderConfig{
		Codecs:          cfg.Record.Codecs,
		SegmentInterval: cfg.Record.SegmentInterval(),
		MinBytes:        cfg.Record.MinBytes,
		SampleRate:      cfg.Capture.SampleRate,
		Channels:        cfg.Capture.Channels,
	})
	if err != nil {
		return nil, fmt.Errorf("prepare recorder: %w", err)
	}
	c.recorder = rec

	c.session = stream.New(stream.Config{
		Dialer:     c.dialer,
		MaxRetries: cfg.Stream.MaxRetries,
		BaseDelay:  cfg.Stream.BaseDelay(),
		MaxDelay:   cfg.Stream.MaxDelay(),
		Rand:       c.rng,
		Handlers: stream.Handlers{
			OnMessage:  c.onMessage,
			OnState:    c.onState,
			OnTerminal: c.onTerminal,
		},
	})
	c.sampler = stream.NewSampler(c.session, cfg.Stream.AdmissionProbability, c.rng)
	return c, nil
}

// ID returns the session identifier used for the stream target and the
// upload path.
func (c *CoachingSession) ID() string { return c.id }

// Level returns the current microphone input level, 0 before Start.
func (c *CoachingSession) Level() float64 {
	if c.meter == nil {
		return 0
	}
	return c.meter.Level()
}

// Start opens the microphone, connects the live session, and launches the
// capture fan-out. It returns once the pipeline is running; ctx cancels the
// background pumps.
func (c *CoachingSession) Start(ctx context.Context) error {
	if c.source == nil {
		src, err := capture.Open(ctx, capture.Constraints{
			SampleRate:       c.cfg.Capture.SampleRate,
			Channels:         c.cfg.Capture.Channels,
			BlockFrames:      c.cfg.Capture.BlockFrames,
			EchoCancellation: derefBool(c.cfg.Capture.EchoCancellation, true),
			NoiseSuppression: derefBool(c.cfg.Capture.NoiseSuppression, true),
			DeviceID:         c.cfg.Capture.DeviceID,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", HumanizeCaptureError(err), err)
		}
		c.source = src
	}

	target, err := stream.SessionTarget(c.cfg.Server.BaseURL, c.id)
	if err != nil {
		return fmt.Errorf("build stream target: %w", err)
	}
	if err := c.session.Connect(ctx, target); err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	c.metrics.ActiveSessions.Add(ctx, 1)

	blocks := c.source.Subscribe(16)

	// Sources that deliver every block let us compute levels inline from
	// the subscription; otherwise poll the latest-samples tap.
	var procMeter *audio.ProcessorMeter
	if c.source.SupportsTap() {
		procMeter = audio.NewProcessorMeter()
		c.meter = procMeter
	} else {
		c.meter = audio.NewPollingMeter(levelPollInterval, c.source.Latest)
	}

	extractor := audio.NewBlockExtractor(c.cfg.Capture.BlockSize, c.source.SampleRate(), func(f audio.Frame) {
		c.metrics.FramesOffered.Add(ctx, 1)
		if c.sampler.Offer(f) {
			c.metrics.FramesAdmitted.Add(ctx, 1)
		}
	})

	pumpCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	g, gctx := errgroup.WithContext(pumpCtx)
	c.pumps = g

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case block, ok := <-blocks:
				if !ok {
					return nil
				}
				if procMeter != nil {
					procMeter.Process(block.Samples)
				}
				extractor.Push(block.Samples)
				if err := c.recorder.Push(block.Samples); err != nil {
					slog.Warn("recorder rejected block", "err", err)
				}
				c.metrics.InputLevel.Record(gctx, c.meter.Level())
			}
		}
	})

	if interval := c.cfg.Stream.KeepaliveInterval(); interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					c.session.SendJSON(stream.KeepaliveMessage())
				}
			}
		})
	}

	slog.Info("coaching session started",
		"session_id", c.id,
		"sample_rate", c.source.SampleRate(),
		"codec", c.recorder.CodecID(),
	)
	return nil
}

// Stop tears the session down: drains the pumps, finalises the recording,
// uploads the artifact, and disconnects. Safe to call more than once; only
// the first call does the work.
func (c *CoachingSession) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		err = c.stop(ctx)
	})
	return err
}

func (c *CoachingSession) stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
		_ = c.pumps.Wait()
	}
	if c.meter != nil {
		c.meter.Stop()
	}

	var errs []error

	rec, recErr := c.recorder.Stop()
	switch {
	case errors.Is(recErr, record.ErrEmptyRecording):
		slog.Warn("recording is empty, nothing to upload", "session_id", c.id)
	case recErr != nil:
		errs = append(errs, fmt.Errorf("finalise recording: %w", recErr))
	default:
		if upErr := c.submit(ctx, rec); upErr != nil {
			errs = append(errs, upErr)
		}
	}

	c.session.Disconnect()
	c.metrics.ActiveSessions.Add(ctx, -1)

	if c.source != nil {
		if closeErr := c.source.Close(); closeErr != nil {
			errs = append(errs, fmt.Errorf("close capture: %w", closeErr))
		}
	}

	slog.Info("coaching session stopped", "session_id", c.id)
	return errors.Join(errs...)
}

// submit transcodes the recording to canonical WAV and uploads it. A failed
// transcode falls back to uploading the raw compressed recording so the
// signal is never lost.
func (c *CoachingSession) submit(ctx context.Context, rec record.Recording) error {
	var art upload.Artifact

	start := time.Now()
	wav, err := record.Transcode(rec)
	c.metrics.TranscodeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		slog.Error("transcode failed, uploading raw recording", "err", err, "codec", rec.Codec)
		art = upload.Artifact{
			Filename:    fmt.Sprintf("session-%s.%s", c.id, rec.Codec),
			ContentType: "application/octet-stream",
			Data:        rec.Data,
		}
	} else {
		art = upload.Artifact{
			Filename:    fmt.Sprintf("session-%s.wav", c.id),
			ContentType: "audio/wav",
			Data:        wav,
		}
	}

	start = time.Now()
	upErr := c.uploader.Upload(ctx, c.id, art,
		c.cfg.Upload.ProcessImmediately, c.cfg.Upload.GenerateFeedback)
	c.metrics.RecordUpload(ctx, time.Since(start).Seconds(), upErr)
	if upErr != nil {
		return fmt.Errorf("upload artifact: %w", upErr)
	}
	return nil
}

// Snapshot reports the live pipeline state for the status endpoint.
func (c *CoachingSession) Snapshot() health.Snapshot {
	offered, admitted := c.sampler.Stats()
	return health.Snapshot{
		SessionID:      c.id,
		StreamState:    string(c.session.State()),
		InputLevel:     c.Level(),
		FramesOffered:  offered,
		FramesAdmitted: admitted,
		Segments:       c.recorder.SegmentCount(),
	}
}

// Checkers returns the readiness checks for this session.
func (c *CoachingSession) Checkers() []health.Checker {
	return []health.Checker{
		{
			Name: "microphone",
			Check: func(context.Context) error {
				if c.source == nil {
					return errors.New("no capture source")
				}
				return nil
			},
		},
		{
			Name: "stream",
			Check: func(context.Context) error {
				if st := c.session.State(); st != stream.StateOpen {
					return fmt.Errorf("stream is %s", st)
				}
				return nil
			},
		},
	}
}

// TerminalError returns the error that ended the live connection for good,
// or nil while the connection is healthy.
func (c *CoachingSession) TerminalError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminal
}

func (c *CoachingSession) onMessage(msg stream.Message) {
	c.metrics.RecordStreamMessage(context.Background(), string(msg.Kind))
	if msg.Kind != stream.KindJSON {
		return
	}
	ev, ok := stream.ParseEvent(msg.JSON)
	if !ok {
		slog.Debug("unparsable event", "payload", string(msg.JSON))
		return
	}
	switch ev.Type {
	case "coaching_feedback":
		slog.Info("feedback", "text", ev.Feedback)
	case "realtime_suggestion":
		for _, s := range ev.Suggestions {
			slog.Info("suggestion", "type", s.Type, "severity", s.Severity, "message", s.Message)
		}
	case "error":
		slog.Warn("backend error event", "detail", ev.Error)
	default:
		slog.Debug("event", "type", ev.Type)
	}
}

func (c *CoachingSession) onState(st stream.State) {
	slog.Debug("stream state", "state", st, "session_id", c.id)
	c.mu.Lock()
	reconnect := st == stream.StateConnecting && c.sawOpen
	if st == stream.StateOpen {
		c.sawOpen = true
	}
	c.mu.Unlock()
	if reconnect {
		c.metrics.Reconnects.Add(context.Background(), 1)
	}
}

func (c *CoachingSession) onTerminal(err error) {
	c.mu.Lock()
	c.terminal = err
	c.mu.Unlock()
	slog.Error("live connection lost for good", "err", err, "session_id", c.id)
}

// HumanizeCaptureError maps capture failures to the short messages shown to
// the person at the microphone.
func HumanizeCaptureError(err error) string {
	switch {
	case errors.Is(err, capture.ErrPermissionDenied):
		return "microphone permission denied"
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return "no microphone found"
	case errors.Is(err, capture.ErrDeviceBusy):
		return "microphone is in use by another application"
	case errors.Is(err, capture.ErrUnsupported):
		return "microphone does not support the requested format"
	default:
		return "could not open microphone"
	}
}

func derefBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
