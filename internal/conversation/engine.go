package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chronoware/tally/internal/parser"
	"github.com/chronoware/tally/internal/session"
	"github.com/chronoware/tally/internal/timesheet"
)

// TimesheetService is the persistence collaborator the engine submits to
// and reads from.
type TimesheetService interface {
	SubmitEntries(ctx context.Context, userEmail string, entries []timesheet.CompleteEntry) (*timesheet.SubmitResult, error)
	ListProjectCodes(ctx context.Context, system string) ([]timesheet.ProjectCode, error)
	ListEntries(ctx context.Context, userEmail string, system timesheet.System) ([]timesheet.StoredEntry, error)
}

// Publisher emits domain events. May be nil; the engine works without it.
type Publisher interface {
	Publish(subject string, data any) error
}

// Event subjects published by the engine.
const (
	SubjectSubmitted    = "tally.timesheet.submitted"
	SubjectSessionReset = "tally.session.reset"
)

// Reply is the engine's answer to one chat turn.
type Reply struct {
	Response      string            `json:"response"`
	TabularData   string            `json:"tabular_data,omitempty"`
	Phase         session.Phase     `json:"conversation_phase"`
	MissingFields []string          `json:"missing_fields"`
	Entries       []timesheet.Entry `json:"entries"`
	Suggestions   []string          `json:"suggestions"`
}

// Engine drives the gather / confirm / submit dialogue. Each turn is a
// synchronous pipeline: extract, aggregate, transition, respond; the
// session manager serializes turns per user.
type Engine struct {
	sessions *session.Manager
	parser   *parser.Parser
	service  TimesheetService
	events   Publisher
	logger   *slog.Logger
}

func New(sessions *session.Manager, p *parser.Parser, service TimesheetService, events Publisher, logger *slog.Logger) *Engine {
	return &Engine{
		sessions: sessions,
		parser:   p,
		service:  service,
		events:   events,
		logger:   logger,
	}
}

var (
	affirmTokens = []string{"yes", "confirm", "submit", "ok", "proceed", "y"}
	negateTokens = []string{"no", "cancel", "abort", "n"}
)

// HandleMessage processes one conversational turn for a user. All
// extraction and validation failures are turn-local: they reduce to
// "field still missing", never to an error for the caller.
func (e *Engine) HandleMessage(ctx context.Context, userEmail, utterance string) (*Reply, error) {
	sess, release := e.sessions.Acquire(ctx, userEmail)
	defer release()

	lower := strings.ToLower(strings.TrimSpace(utterance))

	if cmd := matchCommand(lower); cmd != "" {
		return e.handleCommand(ctx, sess, cmd, lower), nil
	}

	if sess.Phase == session.PhaseConfirmation {
		return e.handleConfirmation(ctx, sess, lower, utterance), nil
	}

	res := e.parser.Parse(ctx, utterance)
	if !res.Empty() {
		session.Merge(sess, res)
	}

	missing := e.transition(sess)

	reply := &Reply{
		Phase:         sess.Phase,
		MissingFields: missing,
		Entries:       copyEntries(sess.Entries),
		TabularData:   tabularData(sess),
		Suggestions:   suggestions(sess, missing),
	}
	if sess.Phase == session.PhaseConfirmation {
		reply.Response = confirmationResponse(sess)
	} else {
		reply.Response = gatheringResponse(sess, missing)
	}
	return reply, nil
}

// transition recomputes missing fields and applies the one phase rule of
// the gathering loop: confirmation exactly when at least one entry exists
// and nothing is missing.
func (e *Engine) transition(sess *session.Session) []string {
	missing := sess.MissingFields()
	if len(sess.Entries) > 0 && len(missing) == 0 {
		sess.Phase = session.PhaseConfirmation
	} else {
		sess.Phase = session.PhaseGathering
	}
	return missing
}

func (e *Engine) handleConfirmation(ctx context.Context, sess *session.Session, lower, utterance string) *Reply {
	switch {
	case containsToken(lower, affirmTokens):
		return e.submit(ctx, sess)

	case containsToken(lower, negateTokens):
		sess.ClearEntries()
		sess.Phase = session.PhaseGathering
		return &Reply{
			Response:      cancelResponse(),
			Phase:         sess.Phase,
			MissingFields: sess.MissingFields(),
			Suggestions:   suggestions(sess, sess.MissingFields()),
		}
	}

	// Anything else is a modification attempt: run it through the normal
	// extraction path. No extracted fields means the turn was not
	// understood; re-prompt without touching the entries.
	res := e.parser.Parse(ctx, utterance)
	if res.Empty() {
		return &Reply{
			Response:    "I didn't understand. Please respond with **YES** to submit or **NO** to cancel, or describe any changes needed.",
			Phase:       sess.Phase,
			Entries:     copyEntries(sess.Entries),
			TabularData: tabularData(sess),
			Suggestions: []string{"YES", "NO"},
		}
	}

	session.Merge(sess, res)
	missing := e.transition(sess)

	reply := &Reply{
		Phase:         sess.Phase,
		MissingFields: missing,
		Entries:       copyEntries(sess.Entries),
		TabularData:   tabularData(sess),
		Suggestions:   suggestions(sess, missing),
	}
	if sess.Phase == session.PhaseConfirmation {
		reply.Response = "**Updated your entries.** Please review and confirm:\n\n" + confirmationResponse(sess)
	} else {
		reply.Response = gatheringResponse(sess, missing)
	}
	return reply
}

// submit re-validates every entry's work description at the moment of
// submission, then hands the batch to the persistence collaborator. Any
// failure leaves the session exactly as it was.
func (e *Engine) submit(ctx context.Context, sess *session.Session) *Reply {
	if len(sess.Entries) == 0 {
		sess.Phase = session.PhaseGathering
		return &Reply{
			Response:      "There are no entries to submit. Tell me about your timesheet entry, including a description of the work performed.",
			Phase:         sess.Phase,
			MissingFields: sess.MissingFields(),
			Suggestions:   suggestions(sess, sess.MissingFields()),
		}
	}

	complete := make([]timesheet.CompleteEntry, 0, len(sess.Entries))
	for i := range sess.Entries {
		entry := &sess.Entries[i]
		if _, ok := timesheet.ValidComments(deref(entry.Comments)); !ok {
			return &Reply{
				Response:      submitValidationError(i+1, deref(entry.ProjectCode)),
				Phase:         sess.Phase,
				MissingFields: sess.MissingFields(),
				Entries:       copyEntries(sess.Entries),
				Suggestions:   []string{"Add a work description", "NO to cancel"},
			}
		}
		ce, err := entry.Complete()
		if err != nil {
			return &Reply{
				Response:      fmt.Sprintf("Entry #%d is not ready to submit: %v. Please fill in the missing details.", i+1, err),
				Phase:         sess.Phase,
				MissingFields: sess.MissingFields(),
				Entries:       copyEntries(sess.Entries),
				Suggestions:   suggestions(sess, sess.MissingFields()),
			}
		}
		complete = append(complete, ce)
	}

	result, err := e.service.SubmitEntries(ctx, sess.UserEmail, complete)
	if err != nil {
		e.logger.Error("timesheet submission failed", "user", sess.UserEmail, "entries", len(complete), "error", err)
		return &Reply{
			Response:      "**Error submitting timesheet:** the timesheet store is unavailable. Your entries are unchanged; reply **YES** to retry or **NO** to cancel.",
			Phase:         sess.Phase,
			Entries:       copyEntries(sess.Entries),
			TabularData:   tabularData(sess),
			Suggestions:   []string{"YES", "NO"},
		}
	}

	e.publish(SubjectSubmitted, map[string]any{
		"user_email":        sess.UserEmail,
		"entries_submitted": result.EntriesSubmitted,
		"total_hours":       result.TotalHours,
		"systems_used":      result.SystemsUsed,
	})

	sess.ClearEntries()
	sess.Phase = session.PhaseCompleted

	e.logger.Info("timesheet submitted",
		"user", sess.UserEmail,
		"entries", result.EntriesSubmitted,
		"total_hours", result.TotalHours,
	)

	return &Reply{
		Response:      completionResponse(result),
		TabularData:   submittedTable(result),
		Phase:         sess.Phase,
		MissingFields: []string{},
		Suggestions:   []string{"Add another timesheet entry", "show timesheet", "start fresh"},
	}
}

func (e *Engine) handleCommand(ctx context.Context, sess *session.Session, cmd, lower string) *Reply {
	switch cmd {
	case "show projects":
		system := commandSystem(lower)
		codes, err := e.service.ListProjectCodes(ctx, system)
		if err != nil {
			e.logger.Error("project code lookup failed", "error", err)
			return &Reply{
				Response: "Error retrieving project codes. Please try again.",
				Phase:    sess.Phase,
			}
		}
		table := projectTable(system, codes)
		return &Reply{
			Response:    table,
			TabularData: table,
			Phase:       sess.Phase,
			Suggestions: []string{"Use a project code with a work description", "Example: 8 hours ORG-001 today, database work"},
		}

	case "show timesheet":
		system := timesheet.SystemOracle
		if sys, ok := timesheet.ParseSystem(commandSystem(lower)); ok {
			system = sys
		}
		entries, err := e.service.ListEntries(ctx, sess.UserEmail, system)
		if err != nil {
			e.logger.Error("timesheet lookup failed", "user", sess.UserEmail, "system", system, "error", err)
			return &Reply{
				Response: "Error retrieving timesheet data. Please try again.",
				Phase:    sess.Phase,
			}
		}
		table := timesheetTable(sess.UserEmail, system, entries)
		return &Reply{
			Response:    table,
			TabularData: table,
			Phase:       sess.Phase,
			Suggestions: []string{"Add a new timesheet entry with a work description"},
		}

	case "help":
		return &Reply{
			Response:    helpText,
			Phase:       sess.Phase,
			Suggestions: []string{"Try: 8 hours Oracle ORG-001 yesterday, database work", "show projects"},
		}

	case "reset":
		sess.Reset()
		e.publish(SubjectSessionReset, map[string]any{"user_email": sess.UserEmail})
		return &Reply{
			Response:      resetResponse(),
			Phase:         sess.Phase,
			MissingFields: sess.MissingFields(),
			Suggestions:   []string{"Example: 8 hours Oracle ORG-001 yesterday, database optimization", "show projects", "help"},
		}
	}

	return &Reply{
		Response:    "Command not recognized. Type 'help' for available commands.",
		Phase:       sess.Phase,
		Suggestions: []string{"help", "start fresh"},
	}
}

func (e *Engine) publish(subject string, data any) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(subject, data); err != nil {
		e.logger.Warn("event publish failed", "subject", subject, "error", err)
	}
}

// matchCommand maps an utterance to a command name, or "" when it is a
// normal timesheet message. Reset phrasings collapse to one command.
func matchCommand(lower string) string {
	switch {
	case strings.Contains(lower, "show projects") || lower == "projects":
		return "show projects"
	case strings.Contains(lower, "show timesheet") || lower == "timesheet":
		return "show timesheet"
	case hasWord(lower, "help"):
		return "help"
	case strings.Contains(lower, "start fresh") || hasWord(lower, "clear") || hasWord(lower, "reset"):
		return "reset"
	}
	return ""
}

// commandSystem pulls an explicit system name out of a command utterance.
func commandSystem(lower string) string {
	if strings.Contains(lower, "mars") {
		return string(timesheet.SystemMars)
	}
	if strings.Contains(lower, "oracle") {
		return string(timesheet.SystemOracle)
	}
	return ""
}

// containsToken matches any of the tokens as a whole word.
func containsToken(lower string, tokens []string) bool {
	for _, tok := range tokens {
		if hasWord(lower, tok) {
			return true
		}
	}
	return false
}

func hasWord(s, word string) bool {
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if w == word {
			return true
		}
	}
	return false
}

// copyEntries snapshots the session entries for a reply. The reply is
// JSON-encoded after the session lock is released, so it must not share
// a backing array with the live session.
func copyEntries(entries []timesheet.Entry) []timesheet.Entry {
	if len(entries) == 0 {
		return nil
	}
	return append([]timesheet.Entry(nil), entries...)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
