package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bdobrica/aether/internal/aether/llm"
)

const (
	// refineInputLimit caps the month log sent for refinement (characters).
	refineInputLimit  = 5000
	refineTemperature = 0.3

	// NoSignificantEvents is what the model is told to answer for a trivial log.
	NoSignificantEvents = "No significant events recorded."
)

// ErrEmptyMonth is returned when a refine is requested for a month that has
// no fragments.
var ErrEmptyMonth = errors.New("memory: no fragments in month")

const refineSystemPrompt = `You are a memory compressor for an AI roleplay system.
Summarize the log you are given into a concise "Core Memory" for the AI.
Rules:
1. Focus on key relationship milestones, major events, and the user's personal info and preferences.
2. Ignore trivial small talk (greetings, weather).
3. Output a concise paragraph or 3-5 bullet points. Max 200 words.
4. If the log is empty or trivial, output exactly "` + NoSignificantEvents + `"
5. Use the same language as the log.`

// MonthLog renders a month's fragments as the refinement input, one
// "{date}: {summary} ({mood})" line each, in the order given.
func MonthLog(fragments []Fragment) string {
	lines := make([]string, len(fragments))
	for i, f := range fragments {
		lines[i] = fmt.Sprintf("%s: %s (%s)", f.Date, f.Summary, moodOr(f.Mood, "none"))
	}
	return strings.Join(lines, "\n")
}

// RefineMonth compresses one month of fragments into a core-memory summary.
// Fragments should be in tree order (see Tree.Month). The returned summary
// is never empty: an empty reply is reported as llm.ErrParse so nothing
// partial gets stored.
func RefineMonth(ctx context.Context, s llm.Summarizer, year, month string, fragments []Fragment) (string, error) {
	if len(fragments) == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyMonth, MonthKey(year, month))
	}

	user := fmt.Sprintf("Log for %s:\n%s", MonthKey(year, month), truncateRunes(MonthLog(fragments), refineInputLimit))
	out, err := s.Complete(llm.WithPurpose(ctx, "refine"), refineSystemPrompt, user, refineTemperature)
	if err != nil {
		return "", fmt.Errorf("memory: refine %s: %w", MonthKey(year, month), err)
	}

	summary := strings.TrimSpace(out)
	if summary == "" {
		return "", fmt.Errorf("memory: refine %s: %w: empty summary", MonthKey(year, month), llm.ErrParse)
	}
	return summary, nil
}

func truncateRunes(s string, limit int) string {
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
