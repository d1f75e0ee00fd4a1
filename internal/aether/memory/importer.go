package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bdobrica/aether/internal/aether/llm"
)

const (
	// importInputLimit caps the pasted text sent for extraction (characters).
	importInputLimit  = 8000
	importTemperature = 0.1

	fallbackDate    = "unknown"
	fallbackSummary = "no content"
	fallbackMood    = "record"
)

// ErrEmptyInput is returned when there is no text to import.
var ErrEmptyInput = errors.New("memory: import text is empty")

const importSystemPrompt = "You are a memory archivist. Output only a valid JSON array."

const importPromptTmpl = `Organise the following text into a standard JSON array of memory records.
Requirements:
1. Return the JSON array directly. No Markdown, no code fences, no explanations.
2. Each object has exactly three fields:
   - date: the date string (YYYY-MM-DD or YYYY年MM月)
   - summary: a short description of the memory, in the language of the text
   - mood: an emotion tag (e.g. happy, melancholy, calm)
3. Text:
%s`

// fragmentListSchema is the minimum shape accepted after unwrapping: an
// array of objects. Field values are coerced leniently afterwards.
var fragmentListSchema = jsonschema.MustCompileString("fragment-list.json", `{
	"type": "array",
	"items": {"type": "object"}
}`)

// extraction is one named way of finding the fragment array inside a parsed
// payload.
type extraction struct {
	name    string
	extract func(v any) ([]any, bool)
}

func unwrapKey(key string) func(v any) ([]any, bool) {
	return func(v any) ([]any, bool) {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		arr, ok := obj[key].([]any)
		return arr, ok
	}
}

// extractions are tried in order; the first match wins.
var extractions = []extraction{
	{name: "array", extract: func(v any) ([]any, bool) {
		arr, ok := v.([]any)
		return arr, ok
	}},
	{name: "memories", extract: unwrapKey("memories")},
	{name: "items", extract: unwrapKey("items")},
	{name: "data", extract: unwrapKey("data")},
}

// ImportFragments asks the summarizer to turn free-form text into memory
// fragments. Each returned fragment has a fresh id. Any failure to obtain a
// non-empty structured list is an error wrapping llm.ErrParse (or the
// summarizer's own error); an empty result is never returned silently.
func ImportFragments(ctx context.Context, s llm.Summarizer, rawText string) ([]Fragment, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return nil, ErrEmptyInput
	}

	prompt := fmt.Sprintf(importPromptTmpl, truncateRunes(text, importInputLimit))
	out, err := s.Complete(llm.WithPurpose(ctx, "import"), importSystemPrompt, prompt, importTemperature)
	if err != nil {
		return nil, fmt.Errorf("memory: import: %w", err)
	}

	fragments, err := ParseFragments(out)
	if err != nil {
		return nil, fmt.Errorf("memory: import: %w", err)
	}
	return fragments, nil
}

// ParseFragments interprets a model reply as a list of fragments. It strips
// code fences, falls back to the outermost [...] span when the whole reply
// does not parse, and unwraps {"memories"|"items"|"data": [...]} objects.
func ParseFragments(reply string) ([]Fragment, error) {
	payload := stripFences(reply)

	items, err := locateArray(payload)
	if err != nil {
		return nil, err
	}
	if err := fragmentListSchema.Validate(items); err != nil {
		return nil, fmt.Errorf("%w: fragment list: %v", llm.ErrParse, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no memory records in reply", llm.ErrParse)
	}

	fragments := make([]Fragment, 0, len(items))
	for _, item := range items {
		obj := item.(map[string]any)
		fragments = append(fragments, Fragment{
			ID:      uuid.New().String(),
			Date:    field(obj, "date", fallbackDate),
			Summary: field(obj, "summary", fallbackSummary),
			Mood:    field(obj, "mood", fallbackMood),
		})
	}
	return fragments, nil
}

func locateArray(payload string) ([]any, error) {
	candidates := []string{payload}
	if first, last := strings.Index(payload, "["), strings.LastIndex(payload, "]"); first >= 0 && last > first {
		candidates = append(candidates, payload[first:last+1])
	}

	var parseErr error
	for _, c := range candidates {
		var v any
		if err := json.Unmarshal([]byte(c), &v); err != nil {
			parseErr = err
			continue
		}
		for _, ex := range extractions {
			if arr, ok := ex.extract(v); ok {
				return arr, nil
			}
		}
	}
	if parseErr != nil {
		return nil, fmt.Errorf("%w: reply is not JSON: %v", llm.ErrParse, parseErr)
	}
	return nil, fmt.Errorf("%w: reply does not contain a record array", llm.ErrParse)
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func field(obj map[string]any, key, fallback string) string {
	switch v := obj[key].(type) {
	case string:
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	case float64, bool:
		return fmt.Sprint(v)
	}
	return fallback
}
