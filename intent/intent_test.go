package intent

import (
	"strings"
	"testing"
)

func testExtractor() *Extractor {
	return NewExtractor("har mahadev")
}

func TestExtractTable(t *testing.T) {
	e := testExtractor()

	for _, tt := range []struct {
		name      string
		input     string
		wantTitle string
		wantDate  string
	}{
		{
			name:      "wake phrase and fillers stripped",
			input:     "Har Mahadev add entry Meeting date 2024-06-20",
			wantTitle: "Meeting",
			wantDate:  "2024-06-20",
		},
		{
			name:      "iso date anywhere in text",
			input:     "dentist 2024-06-20 checkup",
			wantTitle: "dentist  checkup",
			wantDate:  "2024-06-20",
		},
		{
			name:      "numeric day month year reformatted",
			input:     "dentist 15/6/2024",
			wantTitle: "dentist",
			wantDate:  "2024-06-15",
		},
		{
			name:      "numeric with dashes",
			input:     "dentist 15-6-2024",
			wantTitle: "dentist",
			wantDate:  "2024-06-15",
		},
		{
			name:      "month name with comma",
			input:     "March 10, 2024",
			wantTitle: FallbackTitle,
			wantDate:  "2024-03-10",
		},
		{
			name:      "month name without comma",
			input:     "lunch March 10 2024",
			wantTitle: "lunch",
			wantDate:  "2024-03-10",
		},
		{
			name:      "empty input",
			input:     "",
			wantTitle: FallbackTitle,
			wantDate:  "",
		},
		{
			name:      "no date at all",
			input:     "Har Mahadev add entry grocery run",
			wantTitle: "grocery run",
			wantDate:  "",
		},
		{
			name:      "fillers removed as substrings",
			input:     "lunch on 2024-06-20",
			wantTitle: "lunch",
			wantDate:  "2024-06-20",
		},
		{
			name:      "invalid iso falls through to month rule",
			input:     "standup 2024-02-30 March 10 2024",
			wantTitle: "standup 2024-02-30",
			wantDate:  "2024-03-10",
		},
		{
			name:      "invalid numeric rejected",
			input:     "standup 31/2/2024",
			wantTitle: "standup 31/2/2024",
			wantDate:  "",
		},
		{
			name:      "leap day accepted",
			input:     "review 29/2/2024",
			wantTitle: "review",
			wantDate:  "2024-02-29",
		},
		{
			name:      "leap day rejected in common year",
			input:     "review 29/2/2023",
			wantTitle: "review 29/2/2023",
			wantDate:  "",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(tt.input)
			if got.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", got.Title, tt.wantTitle)
			}
			if got.Date != tt.wantDate {
				t.Errorf("Date = %q, want %q", got.Date, tt.wantDate)
			}
		})
	}
}

func TestExtractISOPrecedenceOverMonthName(t *testing.T) {
	e := testExtractor()
	got := e.Extract("Meeting March 10 2024 moved to 2024-06-20")
	if got.Date != "2024-06-20" {
		t.Errorf("Date = %q, want ISO match %q", got.Date, "2024-06-20")
	}
}

func TestExtractIdempotentOnOwnTitle(t *testing.T) {
	e := testExtractor()
	first := e.Extract("Har Mahadev add entry Team sync 2024-06-20")
	second := e.Extract(first.Title)
	if second.Title != first.Title {
		t.Errorf("re-extract changed title: %q -> %q", first.Title, second.Title)
	}
	if second.Date != "" {
		t.Errorf("re-extract found date %q in plain title", second.Date)
	}
}

func TestExtractTruncatesByRuneCount(t *testing.T) {
	e := testExtractor()
	input := strings.Repeat("नमस्ते ", 60) // well over 255 runes, multi-byte
	got := e.Extract(input)
	if n := len([]rune(got.Title)); n != maxTitleRunes {
		t.Errorf("title length = %d runes, want %d", n, maxTitleRunes)
	}
	if len(got.Title) == maxTitleRunes {
		t.Error("title appears truncated by bytes, not runes")
	}
}

func TestExtractMatchedSubstringRemovedNotCanonical(t *testing.T) {
	e := testExtractor()
	got := e.Extract("invoice 15/6/2024 payment")
	if got.Date != "2024-06-15" {
		t.Fatalf("Date = %q, want %q", got.Date, "2024-06-15")
	}
	if strings.Contains(got.Title, "15/6/2024") {
		t.Errorf("matched substring left in title %q", got.Title)
	}
}

func TestValidDate(t *testing.T) {
	for _, tt := range []struct {
		date string
		want bool
	}{
		{"2024-06-20", true},
		{"2024-02-29", true},
		{"2023-02-29", false},
		{"2024-02-30", false},
		{"2024-13-01", false},
		{"2024-00-10", false},
		{"2024-6-20", false},
		{"not a date", false},
		{"", false},
	} {
		if got := ValidDate(tt.date); got != tt.want {
			t.Errorf("ValidDate(%q) = %v, want %v", tt.date, got, tt.want)
		}
	}
}
