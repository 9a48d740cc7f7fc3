package entries

import (
	"context"
	"strings"
)

// Creator is the slice of Store the submitter needs.
type Creator interface {
	Create(ctx context.Context, title, date string) (*Entry, error)
}

// Submitter validates extracted intents before they reach storage. The
// extractor already normalizes its output, but submission re-checks
// everything: the store never sees an invalid entry.
type Submitter struct {
	store Creator
}

func NewSubmitter(store Creator) *Submitter {
	return &Submitter{store: store}
}

func (s *Submitter) Submit(ctx context.Context, title, date string) (*Entry, error) {
	title = strings.TrimSpace(title)
	date = strings.TrimSpace(date)
	if verr := Validate(title, date); verr != nil {
		return nil, verr
	}
	return s.store.Create(ctx, title, date)
}
