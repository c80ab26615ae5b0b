package session

import (
	"github.com/chronoware/tally/internal/parser"
	"github.com/chronoware/tally/internal/timesheet"
)

// Merge folds one extraction result into the session's draft entries.
//
// A multi-system result fans out to one candidate entry per named system,
// sharing every non-system field. A single-system result always targets
// the last entry; it never creates a second one.
func Merge(s *Session, res parser.Result) {
	if res.MultiSystem() {
		for _, sys := range res.Systems {
			mergeForSystem(s, sys, res)
			s.trackSystem(sys)
		}
		return
	}

	if len(s.Entries) == 0 {
		s.Entries = append(s.Entries, timesheet.Entry{})
	}
	applyFields(&s.Entries[len(s.Entries)-1], res)
	if len(res.Systems) == 1 {
		sys := res.Systems[0]
		s.Entries[len(s.Entries)-1].System = &sys
		s.trackSystem(sys)
	}
}

// mergeForSystem updates the session entry matching the identity key
// (system, date, project_code), or appends a new one. While date or
// project code are still unknown the lookup falls back to the most
// recently created entry for that system with no project code yet.
func mergeForSystem(s *Session, sys timesheet.System, res parser.Result) {
	if idx := findEntry(s, sys, res.Date, res.ProjectCode); idx >= 0 {
		applyFields(&s.Entries[idx], res)
		s.Entries[idx].System = &sys
		return
	}

	entry := timesheet.Entry{System: &sys}
	applyFields(&entry, res)
	s.Entries = append(s.Entries, entry)
}

func findEntry(s *Session, sys timesheet.System, date, projectCode *string) int {
	// Exact identity match first.
	for i, e := range s.Entries {
		if e.System == nil || *e.System != sys {
			continue
		}
		if ptrEq(e.Date, date) && ptrEq(e.ProjectCode, projectCode) {
			return i
		}
	}
	if date != nil && projectCode != nil {
		return -1
	}
	// Identity fields still unknown: latest open entry for this system.
	for i := len(s.Entries) - 1; i >= 0; i-- {
		e := s.Entries[i]
		if e.System != nil && *e.System == sys && e.ProjectCode == nil {
			return i
		}
	}
	return -1
}

// applyFields overwrites entry fields with any value present in the
// result; later values win field by field. The system field is handled by
// the callers.
func applyFields(entry *timesheet.Entry, res parser.Result) {
	if res.Date != nil {
		entry.Date = res.Date
	}
	if res.Hours != nil {
		entry.Hours = res.Hours
	}
	if res.ProjectCode != nil {
		entry.ProjectCode = res.ProjectCode
	}
	if res.TaskCode != nil {
		entry.TaskCode = res.TaskCode
	}
	if res.Comments != nil {
		entry.Comments = res.Comments
	}
}

func ptrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
