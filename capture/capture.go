// Package capture records a bounded microphone clip for transcription.
// Recording ends on manual stop, on a hard time ceiling, or when trailing
// silence follows speech; whichever fires first finalizes the clip exactly
// once. The microphone is held exclusively for the duration of one capture.
package capture

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"mantra/audio"
)

var (
	// ErrDeviceUnavailable reports that no usable input device could be
	// acquired (missing device or denied permission).
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrCaptureInProgress reports a Begin while a capture is already active.
	ErrCaptureInProgress = errors.New("capture already in progress")
)

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultCeiling    = 10 * time.Second

	tickInterval = 100 * time.Millisecond
)

// Clip is a finalized audio payload with its container mime type.
type Clip struct {
	Data     []byte
	MimeType string
	Duration time.Duration
}

// Ext returns the upload filename extension for the clip's mime type.
func (c *Clip) Ext() string {
	switch c.MimeType {
	case "audio/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	case "audio/mp3", "audio/mpeg", "audio/x-mpeg-3":
		return "mp3"
	default:
		return "wav"
	}
}

type Config struct {
	SampleRate  uint32
	Channels    uint32
	Ceiling     time.Duration // hard auto-stop; DefaultCeiling when zero
	SilenceStop time.Duration // trailing-silence auto-stop; 0 disables
	Device      *audio.DeviceInfo

	// OnLevel, when set, receives the RMS level of each PCM chunk.
	OnLevel func(level float64)

	// ClipFS/ClipDir, when set, save every finalized clip for diagnostics.
	ClipFS  afero.Fs
	ClipDir string
}

// Recorder produces one Clip per Begin call. A Recorder is safe for
// concurrent use; only one capture may be active at a time.
type Recorder struct {
	ctx audio.Context
	cfg Config

	mu     sync.Mutex
	active bool
	stopCh chan struct{}
}

func NewRecorder(ctx audio.Context, cfg Config) *Recorder {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Channels == 0 {
		cfg.Channels = DefaultChannels
	}
	if cfg.Ceiling == 0 {
		cfg.Ceiling = DefaultCeiling
	}
	return &Recorder{ctx: ctx, cfg: cfg}
}

// Stop finalizes the active capture early. No-op when idle.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopCh != nil {
		select {
		case <-r.stopCh:
		default:
			close(r.stopCh)
		}
	}
}

// Begin records until the ceiling, a manual Stop, trailing silence, or ctx
// cancellation. On cancellation the partial clip is discarded and ctx.Err()
// returned. The device is released before Begin returns on every path.
func (r *Recorder) Begin(ctx context.Context) (*Clip, error) {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return nil, ErrCaptureInProgress
	}
	stop := make(chan struct{})
	r.active = true
	r.stopCh = stop
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.active = false
		r.stopCh = nil
		r.mu.Unlock()
	}()

	dev, err := r.ctx.NewCapture(r.cfg.Device, audio.CaptureConfig{
		SampleRate: r.cfg.SampleRate,
		Channels:   r.cfg.Channels,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	defer dev.Close()

	var bufMu sync.Mutex
	var pcm []byte
	var stopped bool

	det := newEnergyDetector()
	dev.SetCallback(func(data []byte, _ uint32) {
		bufMu.Lock()
		if stopped {
			bufMu.Unlock()
			return
		}
		pcm = append(pcm, data...)
		bufMu.Unlock()

		level := det.Process(data)
		if r.cfg.OnLevel != nil {
			r.cfg.OnLevel(level)
		}
	})

	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	cancelled := r.wait(ctx, stop, det)

	dev.Stop()
	dev.ClearCallback()

	bufMu.Lock()
	stopped = true
	data := pcm
	bufMu.Unlock()

	if cancelled {
		return nil, ctx.Err()
	}

	clip, err := EncodeWAV(data, r.cfg.SampleRate, r.cfg.Channels)
	if err != nil {
		return nil, err
	}
	r.saveClip(clip)
	return clip, nil
}

// wait blocks until one of the stop conditions fires. Returns true when the
// context was cancelled (clip to be discarded).
func (r *Recorder) wait(ctx context.Context, stop <-chan struct{}, det *energyDetector) bool {
	ceiling := time.NewTimer(r.cfg.Ceiling)
	defer ceiling.Stop()

	var silence *silenceMonitor
	var ticker *time.Ticker
	var tick <-chan time.Time
	if r.cfg.SilenceStop > 0 {
		silence = newSilenceMonitor(r.cfg.SilenceStop)
		ticker = time.NewTicker(tickInterval)
		tick = ticker.C
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return true
		case <-stop:
			return false
		case <-ceiling.C:
			return false
		case <-tick:
			if silence.Tick(det.HasSpeechTick()) {
				return false
			}
		}
	}
}

func (r *Recorder) saveClip(clip *Clip) {
	if r.cfg.ClipFS == nil || r.cfg.ClipDir == "" {
		return
	}
	// Diagnostics only; failures are ignored.
	if err := r.cfg.ClipFS.MkdirAll(r.cfg.ClipDir, 0o755); err != nil {
		return
	}
	name := fmt.Sprintf("clip_%s.%s", time.Now().Format("20060102_150405.000"), clip.Ext())
	afero.WriteFile(r.cfg.ClipFS, filepath.Join(r.cfg.ClipDir, name), clip.Data, 0o644)
}
