// Package wakeword watches a recognition stream for a spoken phrase.
package wakeword

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"mantra/recognition"
)

// ErrRecognition marks a hard recognition failure. Streams that end
// without an error are restarted silently; this one stops the listener.
var ErrRecognition = errors.New("speech recognition error")

const DefaultPhrase = "har mahadev"

// Event is either a trigger (Err nil, Transcript holds the utterance
// that contained the phrase) or a terminal failure.
type Event struct {
	Transcript string
	Err        error
}

// Listener runs one recognition stream at a time and emits at most one
// trigger per Start. After a trigger or a hard error the event channel
// closes; call Start again to listen for the next trigger.
type Listener struct {
	rec    recognition.Recognizer
	phrase string

	mu      sync.Mutex
	running bool
	events  chan Event
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewListener(rec recognition.Recognizer, phrase string) *Listener {
	if phrase == "" {
		phrase = DefaultPhrase
	}
	return &Listener{rec: rec, phrase: strings.ToLower(phrase)}
}

// Start begins listening. Calling Start while already running is a
// no-op that returns the existing event channel.
func (l *Listener) Start(ctx context.Context) (<-chan Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return l.events, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	l.running = true
	l.cancel = cancel
	l.events = make(chan Event, 1)
	l.done = make(chan struct{})

	go l.loop(ctx, l.events, l.done)
	return l.events, nil
}

// Stop halts listening and waits for the loop to exit. Safe to call
// when not running.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	cancel()
	<-done
}

func (l *Listener) loop(ctx context.Context, events chan Event, done chan struct{}) {
	defer func() {
		l.mu.Lock()
		l.running = false
		cancel := l.cancel
		l.cancel = nil
		l.mu.Unlock()
		// Release the derived context even when the loop ends on its own.
		if cancel != nil {
			cancel()
		}
		close(events)
		close(done)
	}()

	for {
		stream, err := l.rec.Listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			events <- Event{Err: fmt.Errorf("%w: %v", ErrRecognition, err)}
			return
		}

		if transcript, triggered := l.consume(ctx, stream); triggered {
			events <- Event{Transcript: transcript}
			return
		}
		if err := stream.Err(); err != nil {
			events <- Event{Err: fmt.Errorf("%w: %v", ErrRecognition, err)}
			return
		}
		if ctx.Err() != nil {
			return
		}
		// benign end, start a fresh stream
	}
}

// consume reads the stream until it ends or the phrase appears.
func (l *Listener) consume(ctx context.Context, stream recognition.Stream) (string, bool) {
	defer stream.Close()
	for {
		select {
		case <-ctx.Done():
			return "", false
		case r, ok := <-stream.Results():
			if !ok {
				return "", false
			}
			if strings.Contains(strings.ToLower(r.Transcript), l.phrase) {
				return r.Transcript, true
			}
		}
	}
}
