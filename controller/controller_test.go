package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mantra/capture"
	"mantra/entries"
	"mantra/intent"
	"mantra/wakeword"
)

// --- fakes ---

type fakeWake struct {
	mu       sync.Mutex
	events   chan wakeword.Event
	startErr error
	starts   int
	stops    int
}

func newFakeWake() *fakeWake { return &fakeWake{} }

func (f *fakeWake) Start(ctx context.Context) (<-chan wakeword.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.events = make(chan wakeword.Event, 1)
	return f.events, nil
}

func (f *fakeWake) Stop() {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
}

// ch waits for Start to have armed the listener; the controller reports
// Listening before the run goroutine calls Start, so the channel may not
// exist yet when the test fires an event.
func (f *fakeWake) ch() chan wakeword.Event {
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		ev := f.events
		f.mu.Unlock()
		if ev != nil || time.Now().After(deadline) {
			return ev
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *fakeWake) send(ev wakeword.Event) {
	ch := f.ch()
	ch <- ev
	close(ch)
	f.mu.Lock()
	f.events = nil // a restarted session gets a fresh channel from Start
	f.mu.Unlock()
}

func (f *fakeWake) Trigger(transcript string) {
	f.send(wakeword.Event{Transcript: transcript})
}

func (f *fakeWake) Fail(err error) {
	f.send(wakeword.Event{Err: err})
}

func (f *fakeWake) Starts() int {
	// The run goroutine calls Start after the state flips to Listening,
	// so give the first start a moment to land before counting.
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		n := f.starts
		f.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			return n
		}
		time.Sleep(time.Millisecond)
	}
}

type fakeRecorder struct {
	clip *capture.Clip
	err  error

	once    sync.Once
	release chan struct{}

	mu    sync.Mutex
	stops int
}

func newFakeRecorder(clip *capture.Clip, err error) *fakeRecorder {
	return &fakeRecorder{clip: clip, err: err, release: make(chan struct{})}
}

func (f *fakeRecorder) Begin(ctx context.Context) (*capture.Clip, error) {
	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return f.clip, f.err
}

func (f *fakeRecorder) Stop() {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	f.once.Do(func() { close(f.release) })
}

func (f *fakeRecorder) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

type fakeStageTranscriber struct {
	text  string
	err   error
	delay time.Duration
}

func (f *fakeStageTranscriber) Transcribe(ctx context.Context, _ *capture.Clip) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

type fakeSubmitter struct {
	err error

	mu      sync.Mutex
	titles  []string
	dates   []string
	entries []*entries.Entry
}

func (f *fakeSubmitter) Submit(_ context.Context, title, date string) (*entries.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titles = append(f.titles, title)
	f.dates = append(f.dates, date)
	if f.err != nil {
		return nil, f.err
	}
	e := &entries.Entry{ID: "01TEST", Title: title, Date: date}
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeSubmitter) Submitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.titles)
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) SessionChanged(s Session) {
	l.mu.Lock()
	l.states = append(l.states, s.State)
	l.mu.Unlock()
}

func (l *stateLog) Seen() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func (l *stateLog) Saw(want State) bool {
	for _, s := range l.Seen() {
		if s == want {
			return true
		}
	}
	return false
}

// --- helpers ---

func waitState(t *testing.T, c *Controller, want State) Session {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := c.Session(); s.State == want {
			return s
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", c.Session().State, want)
	return Session{}
}

type rig struct {
	wake *fakeWake
	rec  *fakeRecorder
	tr   *fakeStageTranscriber
	sub  *fakeSubmitter
	log  *stateLog
	c    *Controller
}

func newRig(transcript string) *rig {
	r := &rig{
		wake: newFakeWake(),
		rec:  newFakeRecorder(&capture.Clip{Data: []byte{1}, MimeType: "audio/wav"}, nil),
		tr:   &fakeStageTranscriber{text: transcript},
		sub:  &fakeSubmitter{},
		log:  &stateLog{},
	}
	r.c = New(r.wake, r.rec, r.tr, r.sub, intent.NewExtractor("har mahadev"), r.log)
	return r
}

// --- tests ---

func TestHappyPath(t *testing.T) {
	r := newRig("har mahadev add entry Meeting date 2024-06-20")
	if err := r.c.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening: %v", err)
	}
	waitState(t, r.c, StateListening)
	r.wake.Trigger("har mahadev")
	waitState(t, r.c, StateRecording)
	r.c.StopRecording()

	s := waitState(t, r.c, StateDone)
	if s.Entry == nil || s.Entry.Title != "Meeting" || s.Entry.Date != "2024-06-20" {
		t.Errorf("entry = %+v", s.Entry)
	}
	if s.Transcript == "" || s.Title != "Meeting" || s.Date != "2024-06-20" {
		t.Errorf("session = %+v", s)
	}

	want := []State{StateListening, StateRecording, StateTranscribing, StateExtracting, StateSubmitting, StateDone}
	got := r.log.Seen()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("states[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWakeHardError(t *testing.T) {
	r := newRig("whatever")
	r.c.StartListening(context.Background())
	waitState(t, r.c, StateListening)
	r.wake.Fail(wakeword.ErrRecognition)

	s := waitState(t, r.c, StateError)
	if !errors.Is(s.Err, wakeword.ErrRecognition) {
		t.Errorf("Err = %v", s.Err)
	}
	if s.ErrorMessage() == "" {
		t.Error("error state must carry a message")
	}
}

func TestDeviceUnavailable(t *testing.T) {
	r := newRig("whatever")
	r.rec.err = capture.ErrDeviceUnavailable
	r.c.StartListening(context.Background())
	waitState(t, r.c, StateListening)
	r.wake.Trigger("har mahadev")
	r.rec.Stop()

	s := waitState(t, r.c, StateError)
	if !errors.Is(s.Err, capture.ErrDeviceUnavailable) {
		t.Errorf("Err = %v", s.Err)
	}
}

func TestTranscriptionFailure(t *testing.T) {
	wantErr := errors.New("transcription failed: api error 500")
	r := newRig("")
	r.tr.err = wantErr
	r.c.StartListening(context.Background())
	waitState(t, r.c, StateListening)
	r.wake.Trigger("har mahadev")
	r.c.StopRecording()

	s := waitState(t, r.c, StateError)
	if !errors.Is(s.Err, wantErr) {
		t.Errorf("Err = %v", s.Err)
	}
	if r.sub.Submitted() != 0 {
		t.Error("failed transcription must not submit")
	}
}

func TestExtractionFailureNoDate(t *testing.T) {
	r := newRig("har mahadev add entry dentist checkup")
	r.c.StartListening(context.Background())
	waitState(t, r.c, StateListening)
	r.wake.Trigger("har mahadev")
	r.c.StopRecording()

	s := waitState(t, r.c, StateError)
	if !errors.Is(s.Err, ErrExtractionFailed) {
		t.Errorf("Err = %v, want ErrExtractionFailed", s.Err)
	}
	if s.Transcript == "" {
		t.Error("transcript should be recorded before extraction fails")
	}
	if r.sub.Submitted() != 0 {
		t.Error("failed extraction must not submit")
	}
}

func TestExtractionFailureEmptyTranscript(t *testing.T) {
	r := newRig("   ")
	r.c.StartListening(context.Background())
	waitState(t, r.c, StateListening)
	r.wake.Trigger("har mahadev")
	r.c.StopRecording()

	s := waitState(t, r.c, StateError)
	if !errors.Is(s.Err, ErrExtractionFailed) {
		t.Errorf("Err = %v, want ErrExtractionFailed", s.Err)
	}
}

func TestFallbackTitleWithDateSubmits(t *testing.T) {
	r := newRig("har mahadev add entry 2024-06-20")
	r.c.StartListening(context.Background())
	waitState(t, r.c, StateListening)
	r.wake.Trigger("har mahadev")
	r.c.StopRecording()

	s := waitState(t, r.c, StateDone)
	if s.Entry.Title != intent.FallbackTitle {
		t.Errorf("title = %q, want fallback", s.Entry.Title)
	}
}

func TestValidationFailureSurfacesVerbatim(t *testing.T) {
	r := newRig("har mahadev add entry Meeting date 2024-06-20")
	r.sub.err = &entries.ValidationError{Messages: []string{"Title is required."}}
	r.c.StartListening(context.Background())
	waitState(t, r.c, StateListening)
	r.wake.Trigger("har mahadev")
	r.c.StopRecording()

	s := waitState(t, r.c, StateError)
	var verr *entries.ValidationError
	if !errors.As(s.Err, &verr) {
		t.Fatalf("Err = %v, want ValidationError", s.Err)
	}
	if s.ErrorMessage() != "Title is required." {
		t.Errorf("message = %q", s.ErrorMessage())
	}
}

func TestCancelDuringRecording(t *testing.T) {
	r := newRig("whatever")
	r.c.StartListening(context.Background())
	waitState(t, r.c, StateListening)
	r.wake.Trigger("har mahadev")
	waitState(t, r.c, StateRecording)

	r.c.Cancel()
	s := waitState(t, r.c, StateIdle)
	if s.Err != nil {
		t.Errorf("cancel must not record an error, got %v", s.Err)
	}
	if r.rec.Stops() == 0 {
		t.Error("cancel must release the recorder")
	}
}

func TestCancelDuringTranscribingDiscardsResult(t *testing.T) {
	r := newRig("har mahadev add entry Meeting date 2024-06-20")
	r.tr.delay = 50 * time.Millisecond
	r.c.StartListening(context.Background())
	waitState(t, r.c, StateListening)
	r.wake.Trigger("har mahadev")
	r.c.StopRecording()
	waitState(t, r.c, StateTranscribing)

	r.c.Cancel()
	waitState(t, r.c, StateIdle)

	// let the in-flight call resolve, then confirm it changed nothing
	time.Sleep(150 * time.Millisecond)
	if s := r.c.Session(); s.State != StateIdle {
		t.Errorf("state after late result = %v", s.State)
	}
	if r.log.Saw(StateExtracting) {
		t.Error("discarded result must not advance the session")
	}
	if r.sub.Submitted() != 0 {
		t.Error("discarded result must not submit")
	}
}

func TestStartWhileBusyIsNoop(t *testing.T) {
	r := newRig("whatever")
	r.c.StartListening(context.Background())
	waitState(t, r.c, StateListening)

	if err := r.c.StartListening(context.Background()); err != nil {
		t.Fatalf("second StartListening: %v", err)
	}
	if r.wake.Starts() != 1 {
		t.Errorf("wake starts = %d, want 1", r.wake.Starts())
	}
}

func TestRestartAfterDone(t *testing.T) {
	r := newRig("har mahadev add entry Meeting date 2024-06-20")
	r.c.StartListening(context.Background())
	waitState(t, r.c, StateListening)
	r.wake.Trigger("har mahadev")
	r.c.StopRecording()
	waitState(t, r.c, StateDone)

	// StartListening from a terminal state opens a fresh session
	r.rec = newFakeRecorder(&capture.Clip{Data: []byte{1}, MimeType: "audio/wav"}, nil)
	r.c.recorder = r.rec
	if err := r.c.StartListening(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	waitState(t, r.c, StateListening)
	r.wake.Trigger("har mahadev")
	r.c.StopRecording()
	waitState(t, r.c, StateDone)

	if r.sub.Submitted() != 2 {
		t.Errorf("submitted = %d, want 2", r.sub.Submitted())
	}
}

func TestResetClearsTerminalStates(t *testing.T) {
	r := newRig("no date in here")
	r.c.StartListening(context.Background())
	waitState(t, r.c, StateListening)
	r.wake.Trigger("har mahadev")
	r.c.StopRecording()
	waitState(t, r.c, StateError)

	r.c.Reset()
	s := waitState(t, r.c, StateIdle)
	if s.Err != nil || s.Transcript != "" {
		t.Errorf("reset session = %+v", s)
	}
}
