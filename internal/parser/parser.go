package parser

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chronoware/tally/internal/timesheet"
)

// Parser turns one chat utterance into the set of timesheet fields the
// user explicitly stated. Deterministic pattern rules run first; an
// optional bounded fallback extractor fills gaps only when the rules
// under-extract, and only for fields the rules did not find. Nothing is
// ever inferred: a field with no explicit mention stays absent.
type Parser struct {
	fallback Fallback
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a parser. fallback may be nil, in which case extraction is
// purely deterministic.
func New(fallback Fallback, logger *slog.Logger) *Parser {
	return &Parser{
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the reference time used to resolve relative date
// keywords. Intended for tests.
func (p *Parser) SetClock(now func() time.Time) {
	p.now = now
}

// Result holds the fields extracted from a single utterance. A nil field
// means the utterance did not mention it. Systems carries every backend
// named in the utterance; two elements means a multi-system entry.
type Result struct {
	Systems     []timesheet.System
	Date        *string
	Hours       *float64
	ProjectCode *string
	TaskCode    *string
	Comments    *string
}

// MultiSystem reports whether both backends were named.
func (r *Result) MultiSystem() bool {
	return len(r.Systems) > 1
}

// FieldCount counts the distinct fields present, with each named system
// counting once.
func (r *Result) FieldCount() int {
	n := len(r.Systems)
	for _, f := range []any{r.Date, r.Hours, r.ProjectCode, r.TaskCode, r.Comments} {
		switch v := f.(type) {
		case *string:
			if v != nil {
				n++
			}
		case *float64:
			if v != nil {
				n++
			}
		}
	}
	return n
}

// Empty reports whether nothing at all was extracted.
func (r *Result) Empty() bool {
	return r.FieldCount() == 0
}

// candidates is the pre-validation working set. Values are raw: they came
// straight from a pattern capture or the fallback extractor and have not
// yet passed the strict validation pass.
type candidates struct {
	systems     []timesheet.System
	date        *string
	hours       *float64
	projectCode *string
	taskCode    *string
	comments    *string
}

// Parse runs the full extraction pipeline: deterministic rules, the
// bounded fallback when rules found fewer than two fields, then a strict
// re-validation of every candidate. Fallback faults contribute nothing
// and never abort the turn.
func (p *Parser) Parse(ctx context.Context, utterance string) Result {
	cand := p.extract(utterance)

	if count := countCandidates(cand); count < 2 && p.fallback != nil {
		fields, err := p.fallback.ExtractFields(ctx, utterance)
		if err != nil {
			p.logger.Warn("fallback extraction failed", "error", err)
		} else if len(fields) > 0 {
			merged := p.mergeFallback(&cand, fields)
			if len(merged) > 0 {
				p.logger.Debug("fallback contributed fields", "fields", merged)
			}
		}
	}

	return p.validate(cand)
}

// rule is one named extraction pattern. Rules for a field are evaluated
// in order and the first acceptable match wins.
type rule struct {
	name string
	re   *regexp.Regexp
}

var (
	oracleRe = regexp.MustCompile(`\boracle\b`)
	marsRe   = regexp.MustCompile(`\bmars\b`)

	hoursRules = []rule{
		{"unit-suffix", regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:hours?|hrs?|h)\b`)},
		{"worked-n", regexp.MustCompile(`worked\s+(\d+(?:\.\d+)?)(?:\s*hours?)?`)},
		{"unit-prep", regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:hrs?|h)\s+(?:on|for)`)},
	}

	projectRules = []rule{
		{"bare", regexp.MustCompile(`\b([A-Z]{2,4}-\d{3,4})\b`)},
		{"labelled", regexp.MustCompile(`PROJECT\s*(?:CODE)?\s*:?\s*([A-Z]{2,4}-\d{3,4})\b`)},
		{"prep", regexp.MustCompile(`\bON\s+([A-Z]{2,4}-\d{3,4})\b`)},
	}

	dateLiteralRe = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

	taskRules = []rule{
		{"task-label", regexp.MustCompile(`(?i)task\b\s*(?:code)?\s*:?\s*([A-Za-z0-9-]+)`)},
		{"activity-label", regexp.MustCompile(`(?i)activity\b\s*:?\s*([A-Za-z0-9-]+)`)},
	}
)

// dateKeywords resolve against the parser clock, checked before an
// explicit date literal.
var dateKeywords = []struct {
	word   string
	re     *regexp.Regexp
	offset int
}{
	{"yesterday", regexp.MustCompile(`\byesterday\b`), -1},
	{"today", regexp.MustCompile(`\btoday\b`), 0},
	{"tomorrow", regexp.MustCompile(`\btomorrow\b`), 1},
}

func (p *Parser) extract(utterance string) candidates {
	var cand candidates
	lower := strings.ToLower(utterance)
	upper := strings.ToUpper(utterance)

	// Systems: each backend matched independently so a single utterance
	// naming both fans out to two entries downstream.
	if oracleRe.MatchString(lower) {
		cand.systems = append(cand.systems, timesheet.SystemOracle)
	}
	if marsRe.MatchString(lower) {
		cand.systems = append(cand.systems, timesheet.SystemMars)
	}

	// Hours: first pattern whose captured value is in range wins.
	for _, r := range hoursRules {
		m := r.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if v >= timesheet.MinHours && v <= timesheet.MaxHours {
			cand.hours = &v
			break
		}
	}

	for _, r := range projectRules {
		if m := r.re.FindStringSubmatch(upper); m != nil {
			code := m[1]
			cand.projectCode = &code
			break
		}
	}

	for _, kw := range dateKeywords {
		if kw.re.MatchString(lower) {
			d := p.now().AddDate(0, 0, kw.offset).Format(timesheet.DateLayout)
			cand.date = &d
			break
		}
	}
	if cand.date == nil {
		if m := dateLiteralRe.FindStringSubmatch(utterance); m != nil {
			d := m[1]
			cand.date = &d
		}
	}

	for _, r := range taskRules {
		if m := r.re.FindStringSubmatch(utterance); m != nil {
			t := strings.ToUpper(m[1])
			cand.taskCode = &t
			break
		}
	}

	if c := extractComment(utterance); c != "" {
		cand.comments = &c
	}

	return cand
}

// mergeFallback folds fallback output into the candidate set, only for
// keys the deterministic pass left empty. Deterministic extraction always
// wins on conflict. Returns the keys actually merged.
func (p *Parser) mergeFallback(cand *candidates, fields map[string]string) []string {
	var merged []string
	for key, val := range fields {
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		switch key {
		case timesheet.FieldSystem:
			if len(cand.systems) == 0 {
				if sys, ok := timesheet.ParseSystem(val); ok {
					cand.systems = append(cand.systems, sys)
					merged = append(merged, key)
				}
			}
		case timesheet.FieldDate:
			if cand.date == nil {
				v := val
				cand.date = &v
				merged = append(merged, key)
			}
		case timesheet.FieldHours:
			if cand.hours == nil {
				if h, err := strconv.ParseFloat(val, 64); err == nil {
					cand.hours = &h
					merged = append(merged, key)
				}
			}
		case timesheet.FieldProjectCode:
			if cand.projectCode == nil {
				v := val
				cand.projectCode = &v
				merged = append(merged, key)
			}
		case timesheet.FieldTaskCode:
			if cand.taskCode == nil {
				v := val
				cand.taskCode = &v
				merged = append(merged, key)
			}
		case timesheet.FieldComments:
			if cand.comments == nil {
				v := val
				cand.comments = &v
				merged = append(merged, key)
			}
		}
	}
	return merged
}

// validate is the strict second pass: every candidate, deterministic or
// fallback, is re-checked against its authoritative pattern or range.
// A candidate that fails is dropped, never defaulted.
func (p *Parser) validate(cand candidates) Result {
	var res Result
	res.Systems = cand.systems

	if cand.hours != nil {
		if h, ok := timesheet.ValidHours(*cand.hours); ok {
			res.Hours = &h
		}
	}
	if cand.projectCode != nil {
		if code, ok := timesheet.ValidProjectCode(*cand.projectCode); ok {
			res.ProjectCode = &code
		}
	}
	if cand.date != nil {
		if d, ok := timesheet.ValidDate(*cand.date); ok {
			res.Date = &d
		}
	}
	if cand.taskCode != nil {
		if t, ok := timesheet.ValidTaskCode(*cand.taskCode); ok {
			res.TaskCode = &t
		}
	}
	if cand.comments != nil {
		cleaned := cleanComment(*cand.comments)
		if meaningfulComment(cleaned) {
			if c, ok := timesheet.ValidComments(cleaned); ok {
				res.Comments = &c
			}
		}
	}
	return res
}

func countCandidates(cand candidates) int {
	n := len(cand.systems)
	if cand.date != nil {
		n++
	}
	if cand.hours != nil {
		n++
	}
	if cand.projectCode != nil {
		n++
	}
	if cand.taskCode != nil {
		n++
	}
	if cand.comments != nil {
		n++
	}
	return n
}
