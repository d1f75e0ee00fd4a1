package chat

import (
	"strings"
	"time"
	"unicode/utf8"
)

func isTerminal(r rune) bool {
	switch r {
	case '.', '。', '!', '！', '?', '？', '\n':
		return true
	}
	return false
}

// SplitChunks cuts a reply into sentence-like chunks after each terminal
// punctuation mark or line break. Commas become spaces and trailing terminal
// punctuation is stripped from every chunk; chunks left empty are dropped.
// A reply that yields no chunk is delivered as Placeholder.
func SplitChunks(text string) []string {
	var (
		chunks []string
		start  int
	)
	for i, r := range text {
		if isTerminal(r) {
			end := i + utf8.RuneLen(r)
			if c := cleanChunk(text[start:end]); c != "" {
				chunks = append(chunks, c)
			}
			start = end
		}
	}
	if c := cleanChunk(text[start:]); c != "" {
		chunks = append(chunks, c)
	}

	if len(chunks) == 0 {
		chunks = []string{Placeholder}
	}
	return chunks
}

func cleanChunk(s string) string {
	s = strings.NewReplacer(",", " ", "，", " ").Replace(s)
	s = strings.TrimRightFunc(strings.TrimSpace(s), func(r rune) bool {
		return isTerminal(r) || r == ' '
	})
	return strings.TrimSpace(s)
}

// chunkDelay is the simulated typing time for a chunk: PerCharDelay per
// character, clamped to [MinChunkDelay, MaxChunkDelay].
func (c Config) chunkDelay(chunk string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(chunk)) * c.PerCharDelay
	if d < c.MinChunkDelay {
		d = c.MinChunkDelay
	}
	if d > c.MaxChunkDelay {
		d = c.MaxChunkDelay
	}
	return d
}
