// Package entries stores calendar entries and validates them on the way
// in.
package entries

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"mantra/intent"
)

type Entry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"` // YYYY-MM-DD
}

var ErrNotFound = errors.New("entry not found")

// ValidationError carries every message produced for a rejected entry,
// in field order.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, " ")
}

const maxTitleRunes = 255

var dateFormatRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Validate checks a title/date pair and returns nil when both are
// acceptable. Title and date are validated independently so one bad
// field does not mask the other.
func Validate(title, date string) *ValidationError {
	var messages []string

	if title == "" {
		messages = append(messages, "Title is required.")
	} else if utf8.RuneCountInString(title) > maxTitleRunes {
		messages = append(messages, "Title must be 255 characters or fewer.")
	}

	if date == "" {
		messages = append(messages, "Date is required.")
	} else if !dateFormatRe.MatchString(date) || !intent.ValidDate(date) {
		messages = append(messages, "Date must be a valid date in YYYY-MM-DD format.")
	}

	if messages != nil {
		return &ValidationError{Messages: messages}
	}
	return nil
}
