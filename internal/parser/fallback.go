package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/chronoware/tally/internal/ollama"
)

// Fallback is the bounded secondary extractor consulted when the
// deterministic rules find fewer than two fields. Implementations must
// return only fields explicitly present in the utterance; the parser
// re-validates everything they return, so a noisy fallback degrades to an
// empty contribution rather than a wrong one.
type Fallback interface {
	ExtractFields(ctx context.Context, utterance string) (map[string]string, error)
}

const extractionPrompt = `Extract ONLY explicitly mentioned timesheet information from: %q

CRITICAL RULES:
- Return ONLY information that is explicitly stated
- Do NOT infer, assume, or guess anything
- If information is not clearly stated, do NOT include it
- Use exact text from the user input

Return JSON with ONLY fields that are explicitly mentioned:
- system: "Oracle" or "Mars" ONLY if explicitly mentioned
- date: YYYY-MM-DD format ONLY if a date is explicitly mentioned
- hours: number ONLY if hours are explicitly mentioned
- project_code: code ONLY if a project code is explicitly mentioned
- task_code: task ONLY if a task is explicitly mentioned
- comments: description ONLY if a work description is explicitly provided

Return empty JSON {} if nothing is explicitly mentioned.
JSON only, no explanation:`

// fallbackKeys restricts what the model may contribute. Anything else in
// its output is discarded.
var fallbackKeys = map[string]struct{}{
	"system": {}, "date": {}, "hours": {},
	"project_code": {}, "task_code": {}, "comments": {},
}

// LLMFallback extracts fields with a local model pinned to zero
// temperature. Every call is time-boxed; a timeout or malformed reply is
// an error the parser swallows.
type LLMFallback struct {
	llm     *ollama.Client
	timeout time.Duration
	logger  *slog.Logger
}

func NewLLMFallback(llm *ollama.Client, timeout time.Duration, logger *slog.Logger) *LLMFallback {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &LLMFallback{llm: llm, timeout: timeout, logger: logger}
}

func (f *LLMFallback) ExtractFields(ctx context.Context, utterance string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	raw, err := f.llm.Chat(ctx, []ollama.Message{
		{Role: "user", Content: fmt.Sprintf(extractionPrompt, utterance)},
	})
	if err != nil {
		return nil, fmt.Errorf("llm extraction: %w", err)
	}

	fields, err := parseFieldObject(raw)
	if err != nil {
		f.logger.Warn("fallback returned no parsable object", "error", err, "raw_len", len(raw))
		return nil, fmt.Errorf("parse extraction: %w", err)
	}
	return fields, nil
}

// parseFieldObject decodes the first well-formed JSON object in the model
// reply and keeps only the allowed keys with scalar values.
func parseFieldObject(raw string) (map[string]string, error) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return nil, fmt.Errorf("no object in response")
	}

	var obj map[string]any
	if err := json.NewDecoder(strings.NewReader(raw[start:])).Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}

	fields := make(map[string]string)
	for key, val := range obj {
		if _, ok := fallbackKeys[key]; !ok {
			continue
		}
		switch v := val.(type) {
		case string:
			if v != "" {
				fields[key] = v
			}
		case float64:
			fields[key] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return fields, nil
}
