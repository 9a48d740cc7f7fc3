// Package intent turns a raw voice transcript into a calendar entry title
// and date using fixed, ordered pattern rules. No I/O, deterministic.
package intent

import (
	"fmt"
	"regexp"
	"strings"
)

// FallbackTitle is substituted when filler stripping consumes the whole text.
const FallbackTitle = "Untitled Entry"

// maxTitleRunes bounds the title by character count, not bytes, so
// multi-byte scripts are not cut short.
const maxTitleRunes = 255

// Intent is the extraction result. Date is canonical YYYY-MM-DD, or empty
// when no date pattern matched.
type Intent struct {
	Title string
	Date  string
}

// Date rules, tried in this order. First match wins; a match that fails
// calendar validation falls through to the next rule.
var (
	isoDateRe     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`)
	monthDateRe   = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{1,2}),?\s+(\d{4})\b`)
)

var monthOrdinals = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4,
	"may": 5, "june": 6, "july": 7, "august": 8,
	"september": 9, "october": 10, "november": 11, "december": 12,
}

// Extractor strips a wake phrase and filler tokens from transcripts. The
// filler rules are an ordered list applied in sequence so overlapping
// matches resolve the same way every time.
type Extractor struct {
	fillers []*regexp.Regexp
}

// NewExtractor builds an Extractor for the given wake phrase. The phrase is
// removed from titles the same way the fixed fillers are.
func NewExtractor(wakePhrase string) *Extractor {
	patterns := []string{
		`(?i)` + regexp.QuoteMeta(wakePhrase),
		`(?i)add entry`,
		`(?i)on`,
		`(?i)for`,
		`(?i)please`,
		`(?i)my`,
		`(?i)date`,
		`(?i)title`,
		`^,|,$`,
	}
	fillers := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		fillers[i] = regexp.MustCompile(p)
	}
	return &Extractor{fillers: fillers}
}

// Extract parses text into a title and an optional date. It never fails;
// callers decide whether a fallback-only result is usable.
func (e *Extractor) Extract(text string) Intent {
	date, matched := findDate(text)

	title := text
	if matched != "" {
		// Remove the substring as it appeared, not the canonical form.
		title = strings.ReplaceAll(title, matched, "")
	}
	for _, re := range e.fillers {
		title = re.ReplaceAllString(title, "")
	}
	title = strings.TrimSpace(title)

	if runes := []rune(title); len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes])
	}
	if title == "" {
		title = FallbackTitle
	}

	return Intent{Title: title, Date: date}
}

// findDate returns the canonical date and the substring that matched, or
// two empty strings. Each rule considers only its first occurrence in the
// text; an invalid calendar date falls through to the next rule.
func findDate(text string) (canonical, matched string) {
	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		y, mo, d := atoi(m[1]), atoi(m[2]), atoi(m[3])
		if checkDate(y, mo, d) {
			return m[0], m[0]
		}
	}

	// Day-month-year numeric form, e.g. 15/6/2024 or 15-06-2024.
	if m := numericDateRe.FindStringSubmatch(text); m != nil {
		d, mo, y := atoi(m[1]), atoi(m[2]), atoi(m[3])
		if checkDate(y, mo, d) {
			return fmt.Sprintf("%04d-%02d-%02d", y, mo, d), m[0]
		}
	}

	if m := monthDateRe.FindStringSubmatch(text); m != nil {
		mo := monthOrdinals[strings.ToLower(m[1])]
		d, y := atoi(m[2]), atoi(m[3])
		if checkDate(y, mo, d) {
			return fmt.Sprintf("%04d-%02d-%02d", y, mo, d), m[0]
		}
	}

	return "", ""
}

// ValidDate reports whether s is a calendar-valid YYYY-MM-DD date.
func ValidDate(s string) bool {
	m := isoDateRe.FindStringSubmatch(s)
	if m == nil || m[0] != s {
		return false
	}
	return checkDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
}

func checkDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	return day <= daysInMonth(year, month)
}

func daysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	default: // February
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 29
		}
		return 28
	}
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
