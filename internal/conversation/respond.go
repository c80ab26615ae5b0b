package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chronoware/tally/internal/session"
	"github.com/chronoware/tally/internal/timesheet"
)

// All user-facing text is templated. The engine never generates free-form
// language; the only variable parts are field values the user provided.

const helpText = `**TIMESHEET ASSISTANT - HELP**

Comments are MANDATORY for all timesheet entries, and only information
you explicitly provide is used. Nothing is guessed or inferred.

**Available commands:**
- show projects [Oracle/Mars] - view available project codes
- show timesheet [Oracle/Mars] - view your submitted entries
- start fresh / clear / reset - begin a new timesheet entry
- help - show this message

**Entry examples (with mandatory work descriptions):**
- "8 hours on Oracle project ORG-001 yesterday, database optimization"
- "I worked 6.5 hours on Mars MRS-002 today, task DEV-123, fixed authentication bugs"
- "Oracle: 4 hours ORG-003, Mars: 4 hours MRS-001, both yesterday, code review work"

**Required information:**
- System: Oracle or Mars (or both)
- Date: yesterday, today, or YYYY-MM-DD
- Hours: 0.25 to 24
- Project code: e.g. ORG-001, MRS-002
- Comments: description of the work performed (minimum 3 characters)
- Task code: optional`

var fieldQuestions = map[string]string{
	timesheet.FieldSystem:      "Which system is this for? (Oracle or Mars, or both for multiple entries)",
	timesheet.FieldDate:        "What date is this for? (e.g. 'yesterday', '2024-01-15', 'today')",
	timesheet.FieldHours:       "How many hours did you work? (e.g. '8 hours', '6.5 hrs')",
	timesheet.FieldProjectCode: "What project code did you work on? (e.g. 'ORG-001', 'MRS-002')",
	timesheet.FieldComments:    "**What work did you perform? (MANDATORY - describe your activities, minimum 3 characters)**",
}

func gatheringResponse(sess *session.Session, missing []string) string {
	var b strings.Builder

	if len(sess.Entries) > 0 {
		b.WriteString("I have the following information so far:\n")
		for i, entry := range sess.Entries {
			fmt.Fprintf(&b, "\n**Entry %d:**\n", i+1)
			writeEntryFields(&b, entry)
		}
		b.WriteString("\n")
	}

	if len(missing) > 0 {
		for _, f := range missing {
			if f == timesheet.FieldComments {
				b.WriteString("**MANDATORY FIELD MISSING:** comments are required - please describe the work you performed.\n\n")
				break
			}
		}
		b.WriteString("I still need the following information:\n")
		for _, f := range missing {
			if q, ok := fieldQuestions[f]; ok {
				fmt.Fprintf(&b, "- %s\n", q)
			}
		}
	}

	b.WriteString("\nYou can provide multiple fields at once. Type 'show projects' to see available project codes.")
	return b.String()
}

func writeEntryFields(b *strings.Builder, entry timesheet.Entry) {
	if entry.System != nil {
		fmt.Fprintf(b, "- System: **%s**\n", *entry.System)
	}
	if entry.Date != nil {
		fmt.Fprintf(b, "- Date: **%s**\n", *entry.Date)
	}
	if entry.Hours != nil {
		fmt.Fprintf(b, "- Hours: **%s**\n", formatHours(*entry.Hours))
	}
	if entry.ProjectCode != nil {
		fmt.Fprintf(b, "- Project: **%s**\n", *entry.ProjectCode)
	}
	if entry.TaskCode != nil {
		fmt.Fprintf(b, "- Task: **%s**\n", *entry.TaskCode)
	}
	if entry.Comments != nil {
		fmt.Fprintf(b, "- Work Description: **%s**\n", *entry.Comments)
	}
}

func confirmationResponse(sess *session.Session) string {
	var b strings.Builder
	b.WriteString("**READY TO SUBMIT** - please confirm your timesheet entries:\n")

	var total float64
	systems := make(map[timesheet.System]bool)
	for i, entry := range sess.Entries {
		fmt.Fprintf(&b, "\n**Entry %d:**\n", i+1)
		writeEntryFields(&b, entry)
		if entry.Hours != nil {
			total += *entry.Hours
		}
		if entry.System != nil {
			systems[*entry.System] = true
		}
	}

	fmt.Fprintf(&b, "\n**SUMMARY:** %d entries, %s total hours across %d system(s)\n",
		len(sess.Entries), formatHours(total), len(systems))
	b.WriteString("\n**Please respond with:**\n")
	b.WriteString("- **YES** or **CONFIRM** to submit these entries\n")
	b.WriteString("- **NO** or **CANCEL** to cancel and start over\n")
	b.WriteString("- Or describe any changes you'd like to make")
	return b.String()
}

func completionResponse(result *timesheet.SubmitResult) string {
	systems := make([]string, len(result.SystemsUsed))
	for i, s := range result.SystemsUsed {
		systems[i] = string(s)
	}
	var b strings.Builder
	b.WriteString("**TIMESHEET SUBMITTED SUCCESSFULLY**\n\n")
	fmt.Fprintf(&b, "Entries submitted: %d\n", result.EntriesSubmitted)
	fmt.Fprintf(&b, "Total hours: %s\n", formatHours(result.TotalHours))
	fmt.Fprintf(&b, "Systems used: %s\n", strings.Join(systems, ", "))
	b.WriteString("\nYou can add more entries, type 'show timesheet' to review, or 'start fresh' to begin again.")
	return b.String()
}

func cancelResponse() string {
	return "**Submission cancelled.** Let's start over.\n\nTell me about your timesheet entries, including a description of the work performed."
}

func resetResponse() string {
	return "**Fresh start.** I'm ready to help you with your timesheet entries.\n\nComments describing your work are mandatory, and only information you explicitly provide is used. Tell me what you worked on."
}

func submitValidationError(index int, projectCode string) string {
	if projectCode == "" {
		projectCode = "Unknown"
	}
	return fmt.Sprintf("Entry #%d for project %s is missing mandatory comments. All entries must include a description of the work performed (minimum %d characters).",
		index, projectCode, timesheet.MinCommentLen)
}

// tabularData renders the session's draft entries as a markdown table,
// styled by phase.
func tabularData(sess *session.Session) string {
	if len(sess.Entries) == 0 {
		return ""
	}

	if sess.Phase == session.PhaseConfirmation {
		var b strings.Builder
		b.WriteString("**TIMESHEET ENTRIES READY FOR SUBMISSION**\n\n")
		b.WriteString("| # | System | Date | Project | Hours | Work Description |\n")
		b.WriteString("|---|--------|------|---------|-------|------------------|\n")
		var total float64
		for i, entry := range sess.Entries {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
				i+1,
				orPlaceholder(systemStr(entry.System)),
				orPlaceholder(deref(entry.Date)),
				orPlaceholder(deref(entry.ProjectCode)),
				hoursStr(entry.Hours),
				truncate(deref(entry.Comments), 25),
			)
			if entry.Hours != nil {
				total += *entry.Hours
			}
		}
		fmt.Fprintf(&b, "\n**TOTAL HOURS: %s**", formatHours(total))
		return b.String()
	}

	// Gathering: per-field progress of the entry being filled in.
	entry := sess.Entries[len(sess.Entries)-1]
	var b strings.Builder
	b.WriteString("**CURRENT PROGRESS**\n\n")
	b.WriteString("| Field | Status | Value |\n")
	b.WriteString("|-------|--------|-------|\n")
	writeProgressRow(&b, "System", systemStr(entry.System), false)
	writeProgressRow(&b, "Date", deref(entry.Date), false)
	writeProgressRow(&b, "Hours", hoursValue(entry.Hours), false)
	writeProgressRow(&b, "Project Code", deref(entry.ProjectCode), false)
	writeProgressRow(&b, "Task Code", deref(entry.TaskCode), true)
	writeCommentsRow(&b, entry.Comments)
	return b.String()
}

func writeProgressRow(b *strings.Builder, label, value string, optional bool) {
	switch {
	case value != "":
		fmt.Fprintf(b, "| %s | provided | **%s** |\n", label, value)
	case optional:
		fmt.Fprintf(b, "| %s | optional | not specified |\n", label)
	default:
		fmt.Fprintf(b, "| %s | missing | required |\n", label)
	}
}

func writeCommentsRow(b *strings.Builder, comments *string) {
	if c, ok := timesheet.ValidComments(deref(comments)); ok {
		fmt.Fprintf(b, "| Comments | provided | **%s** |\n", truncate(c, 20))
		return
	}
	if comments != nil {
		b.WriteString("| Comments | too short | need more detail |\n")
		return
	}
	b.WriteString("| Comments | MANDATORY | describe the work performed |\n")
}

func submittedTable(result *timesheet.SubmitResult) string {
	var b strings.Builder
	b.WriteString("**Submitted entries:**\n\n")
	b.WriteString("| System | Date | Project | Hours | Work Description |\n")
	b.WriteString("|--------|------|---------|-------|------------------|\n")
	for _, e := range result.Submitted {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			e.System, e.Date, e.ProjectCode, formatHours(e.Hours), truncate(e.Comments, 30))
	}
	return b.String()
}

func projectTable(system string, codes []timesheet.ProjectCode) string {
	if len(codes) == 0 {
		return "No project codes found."
	}
	var b strings.Builder
	b.WriteString("**AVAILABLE PROJECT CODES**\n\n")
	if system != "" {
		fmt.Fprintf(&b, "System: **%s**\n\n", system)
	}
	b.WriteString("| Code | Project Name | System |\n")
	b.WriteString("|------|--------------|--------|\n")
	for _, c := range codes {
		fmt.Fprintf(&b, "| **%s** | %s | %s |\n", c.Code, c.Name, c.System)
	}
	fmt.Fprintf(&b, "\n**Total: %d projects available**\n", len(codes))
	b.WriteString("\nAll entries must include work description comments.")
	return b.String()
}

func timesheetTable(userEmail string, system timesheet.System, entries []timesheet.StoredEntry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("No timesheet entries found for the %s system.", system)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s TIMESHEET SUMMARY**\n", strings.ToUpper(string(system)))
	fmt.Fprintf(&b, "User: **%s**\n\n", userEmail)
	b.WriteString("| Date | Project | Task | Hours | Comments | Status |\n")
	b.WriteString("|------|---------|------|-------|----------|--------|\n")
	var total float64
	for _, e := range entries {
		task := e.TaskCode
		if task == "" {
			task = "-"
		}
		fmt.Fprintf(&b, "| %s | **%s** | %s | %s | %s | %s |\n",
			e.Date, e.ProjectCode, task, formatHours(e.Hours), truncate(e.Comments, 25), e.Status)
		total += e.Hours
	}
	fmt.Fprintf(&b, "\n**TOTAL HOURS: %s** | **ENTRIES: %d**", formatHours(total), len(entries))
	return b.String()
}

// suggestions offers the next most useful inputs for the current phase,
// prioritising the first missing field.
func suggestions(sess *session.Session, missing []string) []string {
	switch sess.Phase {
	case session.PhaseConfirmation:
		return []string{"YES - submit", "NO - cancel", "Describe changes"}
	case session.PhaseCompleted:
		return []string{"Add another entry", "show timesheet", "start fresh"}
	}

	for _, f := range missing {
		switch f {
		case timesheet.FieldSystem:
			return []string{"Oracle", "Mars", "Both Oracle and Mars"}
		case timesheet.FieldDate:
			return []string{"yesterday", "today", "2024-01-15"}
		case timesheet.FieldHours:
			return []string{"8 hours", "6.5 hours", "4 hours"}
		case timesheet.FieldProjectCode:
			return []string{"show projects Oracle", "show projects Mars", "ORG-001", "MRS-002"}
		case timesheet.FieldComments:
			return []string{"Database optimization work", "Fixed authentication bugs", "Code review and testing"}
		}
	}
	return []string{"Add a work description", "show projects", "help"}
}

func formatHours(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func systemStr(s *timesheet.System) string {
	if s == nil {
		return ""
	}
	return string(*s)
}

func hoursStr(h *float64) string {
	if h == nil {
		return "?"
	}
	return formatHours(*h)
}

func hoursValue(h *float64) string {
	if h == nil {
		return ""
	}
	return formatHours(*h)
}

func orPlaceholder(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

// truncate counts runes, not bytes, so a cut never lands inside a
// multi-byte character.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n+3 {
		return s
	}
	return string(r[:n]) + "..."
}
