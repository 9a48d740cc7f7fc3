package transcriber

import (
	"context"
	"sync"
	"time"

	"mantra/capture"
)

// FakeTranscriber returns a canned transcript (or error) after an
// optional delay, honoring context cancellation.
type FakeTranscriber struct {
	text  string
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls int
	clips []*capture.Clip
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{text: text, err: err}
}

// SetDelay makes Transcribe block for d before answering, so tests can
// cancel mid-flight.
func (f *FakeTranscriber) SetDelay(d time.Duration) { f.delay = d }

func (f *FakeTranscriber) Transcribe(ctx context.Context, clip *capture.Clip) (string, error) {
	f.mu.Lock()
	f.calls++
	f.clips = append(f.clips, clip)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *FakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeTranscriber) LastClip() *capture.Clip {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clips) == 0 {
		return nil
	}
	return f.clips[len(f.clips)-1]
}
