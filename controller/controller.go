// Package controller sequences a voice session: wake phrase, bounded
// capture, transcription, intent extraction, submission. It owns the
// session state machine; the stage collaborators are injected.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mantra/capture"
	"mantra/entries"
	"mantra/intent"
	"mantra/wakeword"
)

type State int

const (
	StateIdle State = iota
	StateListening
	StateRecording
	StateTranscribing
	StateExtracting
	StateSubmitting
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	case StateExtracting:
		return "extracting"
	case StateSubmitting:
		return "submitting"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	}
	return "unknown"
}

// ErrExtractionFailed is the session-ending cause when the transcript
// gives the extractor nothing to submit.
var ErrExtractionFailed = errors.New("could not find a title and date in the transcript")

// Session is a snapshot of the current voice session. Zero value is an
// idle session.
type Session struct {
	State      State
	Transcript string
	Title      string
	Date       string
	Entry      *entries.Entry
	Err        error

	// Clip stats, set once capture finalizes.
	ClipDuration time.Duration
	ClipBytes    int
}

// ErrorMessage is the human-readable cause for StateError, empty
// otherwise.
func (s Session) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Collaborator interfaces, sized to what the controller calls.

type WakeListener interface {
	Start(ctx context.Context) (<-chan wakeword.Event, error)
	Stop()
}

type Recorder interface {
	Begin(ctx context.Context) (*capture.Clip, error)
	Stop()
}

type Transcriber interface {
	Transcribe(ctx context.Context, clip *capture.Clip) (string, error)
}

type Submitter interface {
	Submit(ctx context.Context, title, date string) (*entries.Entry, error)
}

// StatusSink receives a snapshot after every state change, including
// the reset to idle on cancellation.
type StatusSink interface {
	SessionChanged(s Session)
}

type nopSink struct{}

func (nopSink) SessionChanged(Session) {}

type Controller struct {
	wake      WakeListener
	recorder  Recorder
	tr        Transcriber
	submitter Submitter
	extractor *intent.Extractor
	sink      StatusSink

	mu      sync.Mutex
	session Session
	cancel  context.CancelFunc
	gen     int // bumped on cancel/reset; stale goroutines compare and drop out
}

func New(wake WakeListener, rec Recorder, tr Transcriber, sub Submitter, ex *intent.Extractor, sink StatusSink) *Controller {
	if sink == nil {
		sink = nopSink{}
	}
	return &Controller{
		wake:      wake,
		recorder:  rec,
		tr:        tr,
		submitter: sub,
		extractor: ex,
		sink:      sink,
	}
}

// Session returns the current snapshot.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// StartListening moves an idle (or finished) controller to Listening
// and arms the wake listener. Calling it mid-session is a no-op.
func (c *Controller) StartListening(ctx context.Context) error {
	c.mu.Lock()
	switch c.session.State {
	case StateIdle, StateDone, StateError:
	default:
		c.mu.Unlock()
		return nil
	}
	prevCancel := c.cancel
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.gen++
	gen := c.gen
	c.session = Session{State: StateListening}
	snap := c.session
	c.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}
	c.sink.SessionChanged(snap)
	go c.run(ctx, gen)
	return nil
}

// StopRecording finalizes an in-progress capture early. Harmless in any
// other state.
func (c *Controller) StopRecording() {
	c.recorder.Stop()
}

// Cancel aborts the session from any state and returns to idle without
// recording an error. In-flight network calls are abandoned and their
// results discarded on arrival.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.session.State == StateIdle {
		c.mu.Unlock()
		return
	}
	c.gen++
	cancel := c.cancel
	c.cancel = nil
	c.session = Session{}
	snap := c.session
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wake.Stop()
	c.recorder.Stop()
	c.sink.SessionChanged(snap)
}

// Reset clears a Done or Error session back to idle. No-op elsewhere.
func (c *Controller) Reset() {
	c.mu.Lock()
	switch c.session.State {
	case StateDone, StateError:
	default:
		c.mu.Unlock()
		return
	}
	c.gen++
	cancel := c.cancel
	c.cancel = nil
	c.session = Session{}
	snap := c.session
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.sink.SessionChanged(snap)
}

func (c *Controller) run(ctx context.Context, gen int) {
	events, err := c.wake.Start(ctx)
	if err != nil {
		c.fail(gen, fmt.Errorf("%w: %v", wakeword.ErrRecognition, err))
		return
	}

	select {
	case <-ctx.Done():
		return
	case ev, ok := <-events:
		if !ok {
			// listener stopped without a trigger
			return
		}
		if ev.Err != nil {
			c.fail(gen, ev.Err)
			return
		}
	}

	if !c.advance(gen, StateRecording, nil) {
		return
	}
	clip, err := c.recorder.Begin(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.fail(gen, err)
		return
	}

	if !c.advance(gen, StateTranscribing, func(s *Session) {
		s.ClipDuration = clip.Duration
		s.ClipBytes = len(clip.Data)
	}) {
		return
	}
	text, err, ok := await(ctx, func(callCtx context.Context) (string, error) {
		return c.tr.Transcribe(callCtx, clip)
	})
	if !ok {
		return // cancelled; result discarded on arrival
	}
	if err != nil {
		c.fail(gen, err)
		return
	}

	if !c.advance(gen, StateExtracting, func(s *Session) { s.Transcript = text }) {
		return
	}
	it := c.extractor.Extract(text)
	if strings.TrimSpace(text) == "" || it.Date == "" {
		c.fail(gen, ErrExtractionFailed)
		return
	}

	if !c.advance(gen, StateSubmitting, func(s *Session) {
		s.Title = it.Title
		s.Date = it.Date
	}) {
		return
	}
	entry, err, ok := await(ctx, func(callCtx context.Context) (*entries.Entry, error) {
		return c.submitter.Submit(callCtx, it.Title, it.Date)
	})
	if !ok {
		return
	}
	if err != nil {
		c.fail(gen, err)
		return
	}

	c.advance(gen, StateDone, func(s *Session) { s.Entry = entry })
}

// advance moves the session to next unless the session was cancelled or
// superseded. mutate, if set, edits the snapshot under the lock.
func (c *Controller) advance(gen int, next State, mutate func(*Session)) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	c.session.State = next
	if mutate != nil {
		mutate(&c.session)
	}
	snap := c.session
	c.mu.Unlock()
	c.sink.SessionChanged(snap)
	return true
}

func (c *Controller) fail(gen int, cause error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.session.State = StateError
	c.session.Err = cause
	snap := c.session
	c.mu.Unlock()
	c.sink.SessionChanged(snap)
}

// await runs a network stage and discards its result if the session is
// cancelled first. The call itself keeps the parent's values but not
// its cancellation, so it resolves on its own schedule.
func await[T any](ctx context.Context, f func(context.Context) (T, error)) (T, error, bool) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	callCtx := context.WithoutCancel(ctx)
	go func() {
		v, err := f(callCtx)
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, nil, false
	case r := <-ch:
		return r.v, r.err, true
	}
}
