package recognition

import (
	"context"
	"sync"
)

// FakeRecognizer replays scripted result sequences, one script per
// Listen call. When the scripts run out, streams stay open and silent
// until cancelled.
type FakeRecognizer struct {
	mu      sync.Mutex
	scripts []script
	listens int
	openErr error
}

type script struct {
	results []Result
	endErr  error
}

func NewFakeRecognizer() *FakeRecognizer {
	return &FakeRecognizer{}
}

// Script queues one Listen's worth of results. endErr, if non-nil,
// becomes the stream's Err after the results are delivered.
func (f *FakeRecognizer) Script(results []Result, endErr error) {
	f.mu.Lock()
	f.scripts = append(f.scripts, script{results: results, endErr: endErr})
	f.mu.Unlock()
}

// FailListen makes every subsequent Listen call return err.
func (f *FakeRecognizer) FailListen(err error) {
	f.mu.Lock()
	f.openErr = err
	f.mu.Unlock()
}

func (f *FakeRecognizer) Listens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listens
}

func (f *FakeRecognizer) Listen(ctx context.Context) (Stream, error) {
	f.mu.Lock()
	f.listens++
	if f.openErr != nil {
		err := f.openErr
		f.mu.Unlock()
		return nil, err
	}
	var sc script
	hasScript := len(f.scripts) > 0
	if hasScript {
		sc = f.scripts[0]
		f.scripts = f.scripts[1:]
	}
	f.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s := &fakeStream{results: make(chan Result), cancel: cancel}

	go func() {
		defer close(s.results)
		if !hasScript {
			<-ctx.Done()
			return
		}
		for _, r := range sc.results {
			select {
			case s.results <- r:
			case <-ctx.Done():
				return
			}
		}
		if sc.endErr != nil {
			s.mu.Lock()
			s.err = sc.endErr
			s.mu.Unlock()
		}
	}()
	return s, nil
}

type fakeStream struct {
	results chan Result
	cancel  context.CancelFunc

	mu  sync.Mutex
	err error
}

func (s *fakeStream) Results() <-chan Result { return s.results }

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStream) Close() { s.cancel() }
