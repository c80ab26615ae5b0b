package timesheet

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// Field validation is deliberately strict: a value either passes its
// authoritative check or it is treated as not provided. Nothing here
// defaults, clamps, or repairs a bad value.

const (
	// MinHours and MaxHours bound a single entry's hours.
	MinHours = 0.25
	MaxHours = 24.0

	// MinCommentLen is the meaningful-content threshold for work
	// descriptions. Anything shorter is treated as absent.
	MinCommentLen = 3

	// MaxCommentLen mirrors the column constraint on the backend tables.
	MaxCommentLen = 500

	// DateLayout is the only accepted calendar date form.
	DateLayout = "2006-01-02"
)

var (
	projectCodeRe = regexp.MustCompile(`^[A-Z]{2,4}-\d{3,4}$`)
	dateRe        = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ParseSystem accepts exactly the two backend names, case-insensitively.
func ParseSystem(raw string) (System, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "oracle":
		return SystemOracle, true
	case "mars":
		return SystemMars, true
	}
	return "", false
}

// ValidHours accepts a value in [MinHours, MaxHours], rounded to two
// decimal places.
func ValidHours(v float64) (float64, bool) {
	if v < MinHours || v > MaxHours {
		return 0, false
	}
	return math.Round(v*100) / 100, true
}

// ValidProjectCode accepts a code fully matching the XX(X(X))-NNN(N) shape
// after trimming and upper-casing.
func ValidProjectCode(raw string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !projectCodeRe.MatchString(code) {
		return "", false
	}
	return code, true
}

// ValidDate accepts a real calendar date in YYYY-MM-DD form.
func ValidDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if !dateRe.MatchString(s) {
		return "", false
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", false
	}
	return s, true
}

// ValidComments accepts a work description whose trimmed length meets the
// meaningful-content threshold, capped at the column limit.
func ValidComments(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if len(s) < MinCommentLen {
		return "", false
	}
	if len(s) > MaxCommentLen {
		s = s[:MaxCommentLen]
	}
	return s, true
}

// ValidTaskCode accepts any non-empty token verbatim, upper-cased.
func ValidTaskCode(raw string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}
	return s, true
}
