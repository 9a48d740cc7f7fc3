package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"mantra/controller"
	"mantra/entries"
	"mantra/log"
)

// TUI message types
type SessionMsg struct{ Session controller.Session }
type AudioLevelMsg struct{ Level float64 }
type EntryListMsg struct{ Entries []entries.Entry }
type CopiedMsg struct{}
type tickMsg time.Time

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Lister is the read side of the entry store the UI needs.
type Lister interface {
	List(ctx context.Context) ([]entries.Entry, error)
}

// statusSink fans controller state changes out to the TUI and the
// diagnostics log, and finishes successful sessions: clipboard copy and
// entry list refresh.
type statusSink struct {
	store Lister
	copy  bool

	mu   sync.Mutex
	prev controller.State
}

func (s *statusSink) SessionChanged(sess controller.Session) {
	s.mu.Lock()
	prev := s.prev
	s.prev = sess.State
	s.mu.Unlock()

	switch sess.State {
	case controller.StateRecording:
		log.WakeDetected(sess.Transcript)
	case controller.StateTranscribing:
		log.CaptureStop(sess.ClipDuration.Seconds(), float64(sess.ClipBytes)/1024)
	case controller.StateExtracting:
		log.TranscriptionText(sess.Transcript)
	case controller.StateSubmitting:
		log.Extraction(sess.Title, sess.Date)
	case controller.StateDone:
		if sess.Entry != nil {
			log.EntryCreated(sess.Entry.ID, sess.Entry.Title, sess.Entry.Date)
		}
		log.SessionEnd(sess.State.String())
	case controller.StateError:
		log.StageError(prev.String(), sess.Err)
		log.SessionEnd(sess.State.String())
	}

	tuiSend(SessionMsg{Session: sess})

	if sess.State == controller.StateDone && sess.Entry != nil {
		if s.copy {
			line := fmt.Sprintf("%s (%s)", sess.Entry.Title, sess.Entry.Date)
			if err := clipboard.WriteAll(line); err == nil {
				tuiSend(CopiedMsg{})
			} else {
				log.Warnf("clipboard copy failed: %v", err)
			}
		}
		s.refreshEntries()
	}
}

func (s *statusSink) refreshEntries() {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	list, err := s.store.List(ctx)
	if err != nil {
		log.Errorf("list entries: %v", err)
		return
	}
	tuiSend(EntryListMsg{Entries: list})
}
