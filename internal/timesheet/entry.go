package timesheet

import "fmt"

// System identifies which backend timesheet system an entry targets.
type System string

const (
	SystemOracle System = "Oracle"
	SystemMars   System = "Mars"
)

// Systems lists the two supported backends in detection order.
var Systems = []System{SystemOracle, SystemMars}

// Field names as they appear in missing-field lists and extraction maps.
const (
	FieldSystem      = "system"
	FieldDate        = "date"
	FieldHours       = "hours"
	FieldProjectCode = "project_code"
	FieldTaskCode    = "task_code"
	FieldComments    = "comments"
)

// RequiredFields is the set a draft entry must fill before submission,
// in the order they are reported back to the user. Task code is optional.
var RequiredFields = []string{FieldSystem, FieldDate, FieldHours, FieldProjectCode, FieldComments}

// Entry is one draft timesheet line item accumulated across conversation
// turns. Every field is optional until submission; nil means "not stated
// yet", never a default.
type Entry struct {
	System      *System  `json:"system,omitempty"`
	Date        *string  `json:"date,omitempty"`
	Hours       *float64 `json:"hours,omitempty"`
	ProjectCode *string  `json:"project_code,omitempty"`
	TaskCode    *string  `json:"task_code,omitempty"`
	Comments    *string  `json:"comments,omitempty"`
}

// MissingFields reports which required fields the entry still lacks.
// Comments shorter than the meaningful-content threshold count as missing.
func (e *Entry) MissingFields() []string {
	var missing []string
	if e.System == nil || *e.System == "" {
		missing = append(missing, FieldSystem)
	}
	if e.Date == nil || *e.Date == "" {
		missing = append(missing, FieldDate)
	}
	if e.Hours == nil {
		missing = append(missing, FieldHours)
	}
	if e.ProjectCode == nil || *e.ProjectCode == "" {
		missing = append(missing, FieldProjectCode)
	}
	if _, ok := ValidComments(stringOrEmpty(e.Comments)); !ok {
		missing = append(missing, FieldComments)
	}
	return missing
}

// Complete converts a draft into a submission-ready entry. It fails if any
// required field is still missing or no longer passes validation.
func (e *Entry) Complete() (CompleteEntry, error) {
	if missing := e.MissingFields(); len(missing) > 0 {
		return CompleteEntry{}, fmt.Errorf("entry incomplete: missing %v", missing)
	}
	comments, _ := ValidComments(*e.Comments)
	ce := CompleteEntry{
		System:      *e.System,
		Date:        *e.Date,
		Hours:       *e.Hours,
		ProjectCode: *e.ProjectCode,
		Comments:    comments,
	}
	if e.TaskCode != nil {
		ce.TaskCode = *e.TaskCode
	}
	return ce, nil
}

// CompleteEntry is a fully-validated entry ready for persistence. Unlike
// Entry, every required field is concrete.
type CompleteEntry struct {
	System      System  `json:"system"`
	Date        string  `json:"date"`
	Hours       float64 `json:"hours"`
	ProjectCode string  `json:"project_code"`
	TaskCode    string  `json:"task_code,omitempty"`
	Comments    string  `json:"comments"`
}

// SubmittedEntry is a persisted entry with its store-assigned identifier.
type SubmittedEntry struct {
	ID          int64   `json:"id"`
	System      System  `json:"system"`
	Date        string  `json:"date"`
	ProjectCode string  `json:"project_code"`
	Hours       float64 `json:"hours"`
	Comments    string  `json:"comments"`
}

// SubmitResult summarises a successful submission batch.
type SubmitResult struct {
	EntriesSubmitted int              `json:"entries_submitted"`
	TotalHours       float64          `json:"total_hours"`
	SystemsUsed      []System         `json:"systems_used"`
	Submitted        []SubmittedEntry `json:"submitted_entries"`
}

// ProjectCode is a catalog entry. System is "Oracle", "Mars", or "Both".
type ProjectCode struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	System string `json:"system"`
}

// StoredEntry is a timesheet row read back from one of the system tables.
type StoredEntry struct {
	ID          int64   `json:"id"`
	Date        string  `json:"date"`
	ProjectCode string  `json:"project_code"`
	TaskCode    string  `json:"task_code,omitempty"`
	Hours       float64 `json:"hours"`
	Comments    string  `json:"comments"`
	Status      string  `json:"status"`
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
