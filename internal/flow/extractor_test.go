package flow

import (
	"testing"
	"time"
)

// fixedNow anchors target-date validation so the tests do not depend on the
// wall clock.
var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestExtractor() *RegexExtractor {
	return &RegexExtractor{Now: func() time.Time { return fixedNow }}
}

func TestExtractName(t *testing.T) {
	e := newTestExtractor()
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"Julie", "Julie", true},
		{"my name is Omar", "Omar", true},
		{"Je m'appelle Claire", "Claire", true},
		{"me llamo Ana", "Ana", true},
		{"I'm Sam.", "Sam", true},
		{"x", "", false},
		{"42", "", false},
		{"   ", "", false},
	}
	for _, tc := range cases {
		got, ok := e.Extract(FieldName, tc.text)
		if ok != tc.ok {
			t.Errorf("Extract(name, %q) ok = %v, want %v", tc.text, ok, tc.ok)
			continue
		}
		if ok && got.Text != tc.want {
			t.Errorf("Extract(name, %q) = %q, want %q", tc.text, got.Text, tc.want)
		}
	}
}

func TestExtractAge(t *testing.T) {
	e := newTestExtractor()
	cases := []struct {
		text string
		want float64
		ok   bool
	}{
		{"34", 34, true},
		{"I'm 34 years old", 34, true},
		{"j'ai 27 ans", 27, true},
		{"11", 0, false},
		{"101", 0, false},
		{"thirty four", 0, false},
		{"34.5", 0, false},
	}
	for _, tc := range cases {
		got, ok := e.Extract(FieldAge, tc.text)
		if ok != tc.ok {
			t.Errorf("Extract(age, %q) ok = %v, want %v", tc.text, ok, tc.ok)
			continue
		}
		if ok && got.Number != tc.want {
			t.Errorf("Extract(age, %q) = %v, want %v", tc.text, got.Number, tc.want)
		}
	}
}

func TestExtractHeight(t *testing.T) {
	e := newTestExtractor()
	cases := []struct {
		text string
		want float64
		ok   bool
	}{
		{"175", 175, true},
		{"175 cm", 175, true},
		{"1m75", 175, true},
		{"1.75", 175, true},
		{"1,68", 168, true},
		{"99", 0, false},
		{"251", 0, false},
		{"tall", 0, false},
	}
	for _, tc := range cases {
		got, ok := e.Extract(FieldHeight, tc.text)
		if ok != tc.ok {
			t.Errorf("Extract(height, %q) ok = %v, want %v", tc.text, ok, tc.ok)
			continue
		}
		if ok && got.Number != tc.want {
			t.Errorf("Extract(height, %q) = %v, want %v", tc.text, got.Number, tc.want)
		}
	}
}

func TestExtractWeight(t *testing.T) {
	e := newTestExtractor()
	cases := []struct {
		text string
		want float64
		ok   bool
	}{
		{"72", 72, true},
		{"72.5 kg", 72.5, true},
		{"64,5", 64.5, true},
		{"29", 0, false},
		{"301", 0, false},
		{"a lot", 0, false},
	}
	for _, field := range []ProfileField{FieldCurrentWeight, FieldTargetWeight} {
		for _, tc := range cases {
			got, ok := e.Extract(field, tc.text)
			if ok != tc.ok {
				t.Errorf("Extract(%s, %q) ok = %v, want %v", field, tc.text, ok, tc.ok)
				continue
			}
			if ok && got.Number != tc.want {
				t.Errorf("Extract(%s, %q) = %v, want %v", field, tc.text, got.Number, tc.want)
			}
		}
	}
}

func TestExtractTargetDate(t *testing.T) {
	e := newTestExtractor()
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"2026-12-01", "2026-12-01", true},
		{"by 2027-03-15 I hope", "2027-03-15", true},
		{"01/12/2026", "2026-12-01", true},
		{"2026-06-01", "", false},         // today, not future
		{"2026-05-01", "", false},         // past
		{"2029-01-01", "", false},         // beyond two years
		{"2026-13-01", "", false},         // bad month
		{"2026-02-30", "", false},         // day overflow
		{"next summer", "", false},        // no date at all
	}
	for _, tc := range cases {
		got, ok := e.Extract(FieldTargetDate, tc.text)
		if ok != tc.ok {
			t.Errorf("Extract(target_date, %q) ok = %v, want %v", tc.text, ok, tc.ok)
			continue
		}
		if ok && got.Text != tc.want {
			t.Errorf("Extract(target_date, %q) = %q, want %q", tc.text, got.Text, tc.want)
		}
	}
}

func TestParsePlanQuestions(t *testing.T) {
	text := "- What motivates you?\n* How will you measure progress?\n• Who supports you?\n1. What obstacles do you see?\n\n2) When will you start?"
	got := parsePlanQuestions(text)
	want := []string{
		"What motivates you?",
		"How will you measure progress?",
		"Who supports you?",
		"What obstacles do you see?",
		"When will you start?",
	}
	if len(got) != len(want) {
		t.Fatalf("parsePlanQuestions returned %d questions, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("question %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseLanguageKeyword(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"English", "en"},
		{"français", "fr"},
		{"Francais!", "fr"},
		{"ESPAÑOL", "es"},
		{"fr", "fr"},
		{"hello there", ""},
		{"I speak a bit of english and french", ""},
	}
	for _, tc := range cases {
		if got := parseLanguageKeyword(tc.text); got != tc.want {
			t.Errorf("parseLanguageKeyword(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}
