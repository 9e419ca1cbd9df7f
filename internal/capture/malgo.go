package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// malgoSource implements [Source] on top of the miniaudio bindings.
type malgoSource struct {
	constraints Constraints

	device *malgo.Device
	mctx   *malgo.AllocatedContext

	mu     sync.Mutex
	subs   []chan Block
	latest []float32
	closed bool

	closeOnce sync.Once
	closeErr  error
}

// Open acquires the input device described by constraints. The returned
// Source delivers float sample blocks to every subscriber until Close is
// called. Failures are wrapped in one of the package sentinel errors.
//
// Device acquisition may block on an OS permission prompt; ctx bounds the
// wait.
func Open(ctx context.Context, constraints Constraints) (Source, error) {
	c := constraints.withDefaults()

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("capture: init context: %w", classify(err))
	}

	s := &malgoSource{constraints: c, mctx: mctx}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(c.Channels)
	cfg.SampleRate = uint32(c.SampleRate)
	cfg.PeriodSizeInFrames = uint32(c.BlockFrames)

	if c.DeviceID != "" {
		id, err := findDevice(mctx, c.DeviceID)
		if err != nil {
			_ = mctx.Uninit()
			return nil, err
		}
		cfg.Capture.DeviceID = id.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			s.onData(input)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		return nil, fmt.Errorf("capture: init device: %w", classify(err))
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		return nil, fmt.Errorf("capture: start device: %w", classify(err))
	}

	// miniaudio performs no echo cancellation or noise suppression itself;
	// the request is honoured by the OS capture stack where available.
	slog.Debug("capture device opened",
		"sample_rate", c.SampleRate,
		"channels", c.Channels,
		"block_frames", c.BlockFrames,
		"echo_cancellation", c.EchoCancellation,
		"noise_suppression", c.NoiseSuppression,
	)

	select {
	case <-ctx.Done():
		_ = s.Close()
		return nil, fmt.Errorf("capture: %w", ctx.Err())
	default:
	}

	return s, nil
}

// onData converts an int16 LE device buffer to floats and fans it out.
func (s *malgoSource) onData(input []byte) {
	n := len(input) / 2
	samples := make([]float32, n)
	for i := range samples {
		v := int16(input[i*2]) | int16(input[i*2+1])<<8
		samples[i] = float32(v) / 32768
	}

	block := Block{Samples: samples, Timestamp: time.Now()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.latest = samples
	for _, ch := range s.subs {
		select {
		case ch <- block:
		default:
			// Subscriber is lagging; drop rather than stall the callback.
		}
	}
}

// Subscribe implements [Source].
func (s *malgoSource) Subscribe(buffer int) <-chan Block {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Block, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

// Latest implements [Source].
func (s *malgoSource) Latest() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil
	}
	out := make([]float32, len(s.latest))
	copy(out, s.latest)
	return out
}

// SupportsTap implements [Source]. Real devices deliver every block.
func (s *malgoSource) SupportsTap() bool { return true }

// SampleRate implements [Source].
func (s *malgoSource) SampleRate() int { return s.constraints.SampleRate }

// Close implements [Source].
func (s *malgoSource) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		subs := s.subs
		s.subs = nil
		s.mu.Unlock()

		if s.device != nil {
			s.device.Uninit()
		}
		if s.mctx != nil {
			s.closeErr = s.mctx.Uninit()
		}
		for _, ch := range subs {
			close(ch)
		}
	})
	return s.closeErr
}

// findDevice matches name against the enumerated capture devices.
func findDevice(mctx *malgo.AllocatedContext, name string) (malgo.DeviceID, error) {
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceID{}, fmt.Errorf("capture: enumerate devices: %w", classify(err))
	}
	for _, info := range infos {
		if info.Name() == name {
			return info.ID, nil
		}
	}
	return malgo.DeviceID{}, fmt.Errorf("capture: device %q: %w", name, ErrDeviceUnavailable)
}

// classify maps a miniaudio error onto the package taxonomy. The bindings
// surface errors as strings, so this is a best-effort substring match; the
// original error text is preserved in the wrap.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "access denied") || strings.Contains(msg, "permission"):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case strings.Contains(msg, "busy") || strings.Contains(msg, "in use"):
		return fmt.Errorf("%w: %v", ErrDeviceBusy, err)
	case strings.Contains(msg, "no device") || strings.Contains(msg, "no backend") ||
		strings.Contains(msg, "does not exist"):
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	case strings.Contains(msg, "format") || strings.Contains(msg, "not supported") ||
		strings.Contains(msg, "invalid"):
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	default:
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
}
