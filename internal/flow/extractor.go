package flow

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ProfileField identifies one collectable profile field.
type ProfileField string

const (
	FieldName          ProfileField = "name"
	FieldAge           ProfileField = "age"
	FieldHeight        ProfileField = "height_cm"
	FieldCurrentWeight ProfileField = "current_weight"
	FieldTargetWeight  ProfileField = "target_weight"
	FieldTargetDate    ProfileField = "target_date"
)

// profileFieldOrder is the collection sequence during onboarding.
var profileFieldOrder = []ProfileField{
	FieldName,
	FieldAge,
	FieldHeight,
	FieldCurrentWeight,
	FieldTargetWeight,
	FieldTargetDate,
}

// FieldValue is a parsed profile field value. Text carries string fields
// (name, target date), Number carries numeric ones.
type FieldValue struct {
	Text   string
	Number float64
}

// FieldExtractor parses a profile field out of free text. It returns the
// parsed value and true, or the zero value and false when the text does not
// contain a usable answer. It never returns an error; unparsable input is a
// normal outcome that re-prompts the user.
type FieldExtractor interface {
	Extract(field ProfileField, text string) (FieldValue, bool)
}

// Validation bounds for profile fields.
const (
	MinAge        = 12
	MaxAge        = 100
	MinHeightCM   = 100
	MaxHeightCM   = 250
	MinWeightKG   = 30
	MaxWeightKG   = 300
	MaxTargetDays = 730
	MinNameLength = 2
)

var (
	namePrefixRe = regexp.MustCompile(`(?i)^(?:my name is|i am|i'm|call me|je m'appelle|moi c'est|je suis|me llamo|soy)\s+(.+)$`)
	numberRe     = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)
	meterRe      = regexp.MustCompile(`(?i)\b([12])\s*m\s*(\d{2})\b`)
	isoDateRe    = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	slashDateRe  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
)

// RegexExtractor is the default FieldExtractor. It uses light pattern
// matching over the raw text, with range validation per field.
type RegexExtractor struct {
	// Now is injectable for target-date validation in tests.
	// Defaults to time.Now.
	Now func() time.Time
}

func (e *RegexExtractor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Extract implements FieldExtractor.
func (e *RegexExtractor) Extract(field ProfileField, text string) (FieldValue, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return FieldValue{}, false
	}
	switch field {
	case FieldName:
		return extractName(text)
	case FieldAge:
		n, ok := firstNumber(text)
		if !ok || n != float64(int(n)) || n < MinAge || n > MaxAge {
			return FieldValue{}, false
		}
		return FieldValue{Number: n}, true
	case FieldHeight:
		return extractHeight(text)
	case FieldCurrentWeight, FieldTargetWeight:
		n, ok := firstNumber(text)
		if !ok || n < MinWeightKG || n > MaxWeightKG {
			return FieldValue{}, false
		}
		return FieldValue{Number: n}, true
	case FieldTargetDate:
		return e.extractTargetDate(text)
	}
	return FieldValue{}, false
}

func extractName(text string) (FieldValue, bool) {
	name := text
	if m := namePrefixRe.FindStringSubmatch(text); m != nil {
		name = m[1]
	}
	name = strings.TrimSpace(strings.Trim(name, ".!,"))
	if len([]rune(name)) < MinNameLength {
		return FieldValue{}, false
	}
	hasLetter := false
	for _, r := range name {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return FieldValue{}, false
	}
	return FieldValue{Text: name}, true
}

func extractHeight(text string) (FieldValue, bool) {
	// "1m75" style first, then a plain number in cm or meters.
	if m := meterRe.FindStringSubmatch(text); m != nil {
		meters, _ := strconv.Atoi(m[1])
		centis, _ := strconv.Atoi(m[2])
		cm := float64(meters*100 + centis)
		if cm >= MinHeightCM && cm <= MaxHeightCM {
			return FieldValue{Number: cm}, true
		}
		return FieldValue{}, false
	}
	n, ok := firstNumber(text)
	if !ok {
		return FieldValue{}, false
	}
	if n >= 1.0 && n <= 2.6 {
		n = n * 100
	}
	if n < MinHeightCM || n > MaxHeightCM {
		return FieldValue{}, false
	}
	return FieldValue{Number: n}, true
}

func (e *RegexExtractor) extractTargetDate(text string) (FieldValue, bool) {
	var year, month, day int
	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
	} else if m := slashDateRe.FindStringSubmatch(text); m != nil {
		day, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		year, _ = strconv.Atoi(m[3])
	} else {
		return FieldValue{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return FieldValue{}, false
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Day() != day || date.Month() != time.Month(month) {
		return FieldValue{}, false
	}
	now := e.now().UTC().Truncate(24 * time.Hour)
	if !date.After(now) || date.After(now.AddDate(0, 0, MaxTargetDays)) {
		return FieldValue{}, false
	}
	return FieldValue{Text: date.Format("2006-01-02")}, true
}

// firstNumber returns the first number in text, accepting a comma as the
// decimal separator.
func firstNumber(text string) (float64, bool) {
	m := numberRe.FindString(text)
	if m == "" {
		return 0, false
	}
	m = strings.ReplaceAll(m, ",", ".")
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
