// Package recognition turns a live microphone into a stream of text
// results. The chunked implementation slices the PCM feed into fixed
// windows, skips windows without speech energy, and sends the rest to a
// transcriber one at a time.
package recognition

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"mantra/audio"
	"mantra/capture"
)

// Result is one recognized segment. Final marks a settled transcript;
// interim results may be revised by a later one.
type Result struct {
	Transcript string
	Final      bool
}

// Stream delivers results until the recognizer stops. Results closes on
// any end; Err reports why, nil for a clean end (context cancelled or
// Close called).
type Stream interface {
	Results() <-chan Result
	Err() error
	Close()
}

type Recognizer interface {
	Listen(ctx context.Context) (Stream, error)
}

// Transcriber is the slice of transcriber.Client this package needs.
type Transcriber interface {
	Transcribe(ctx context.Context, clip *capture.Clip) (string, error)
}

const (
	// DefaultWindow trades latency against request volume: each speech
	// window costs one upload.
	DefaultWindow = 3 * time.Second

	// Windows quieter than this RMS (of full-scale) are dropped without
	// an upload.
	speechRMSThreshold = 0.02
)

type Config struct {
	Window     time.Duration
	SampleRate uint32
	Channels   uint32
	Device     string
}

func (c *Config) fill() {
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.SampleRate == 0 {
		c.SampleRate = capture.DefaultSampleRate
	}
	if c.Channels == 0 {
		c.Channels = capture.DefaultChannels
	}
}

// ChunkedRecognizer implements Recognizer over a capture device and a
// remote transcriber.
type ChunkedRecognizer struct {
	audio audio.Context
	tr    Transcriber
	cfg   Config
}

func NewChunked(audioCtx audio.Context, tr Transcriber, cfg Config) *ChunkedRecognizer {
	cfg.fill()
	return &ChunkedRecognizer{audio: audioCtx, tr: tr, cfg: cfg}
}

func (r *ChunkedRecognizer) Listen(ctx context.Context) (Stream, error) {
	deviceInfo, err := audio.FindDevice(r.audio, r.cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("recognition: list devices: %w", err)
	}
	device, err := r.audio.NewCapture(deviceInfo, audio.CaptureConfig{
		SampleRate: r.cfg.SampleRate,
		Channels:   r.cfg.Channels,
	})
	if err != nil {
		return nil, fmt.Errorf("recognition: open device: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &chunkStream{
		results: make(chan Result, 4),
		cancel:  cancel,
	}

	pcmCh := make(chan []byte, 16)
	device.SetCallback(func(data []byte, _ uint32) {
		buf := make([]byte, len(data))
		copy(buf, data)
		select {
		case pcmCh <- buf:
		default: // behind; drop rather than stall the device thread
		}
	})

	if err := device.Start(); err != nil {
		device.ClearCallback()
		device.Close()
		cancel()
		return nil, fmt.Errorf("recognition: start device: %w", err)
	}

	go s.run(ctx, device, r.tr, r.cfg, pcmCh)
	return s, nil
}

type chunkStream struct {
	results chan Result
	cancel  context.CancelFunc

	mu  sync.Mutex
	err error
}

func (s *chunkStream) Results() <-chan Result { return s.results }

func (s *chunkStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *chunkStream) Close() { s.cancel() }

func (s *chunkStream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *chunkStream) run(ctx context.Context, device audio.CaptureDevice, tr Transcriber, cfg Config, pcmCh <-chan []byte) {
	defer func() {
		device.ClearCallback()
		device.Stop()
		device.Close()
		close(s.results)
	}()

	windowBytes := int(cfg.Window.Seconds() * float64(cfg.SampleRate) * float64(cfg.Channels) * 2)
	window := make([]byte, 0, windowBytes)

	for {
		select {
		case <-ctx.Done():
			return
		case chunk := <-pcmCh:
			window = append(window, chunk...)
			if len(window) < windowBytes {
				continue
			}
		}

		if rms(window) >= speechRMSThreshold {
			clip, err := capture.EncodeWAV(window, cfg.SampleRate, cfg.Channels)
			if err != nil {
				s.fail(fmt.Errorf("recognition: encode window: %w", err))
				return
			}
			text, err := tr.Transcribe(ctx, clip)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.fail(err)
				return
			}
			select {
			case s.results <- Result{Transcript: text, Final: true}:
			case <-ctx.Done():
				return
			}
		}
		window = window[:0]
	}
}

// rms computes root-mean-square of 16-bit little-endian PCM, normalized
// to [0,1].
func rms(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sum float64
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		sample := float64(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)) / 32768.0
		sum += sample * sample
	}
	return math.Sqrt(sum / float64(n))
}
