package memory

import (
	"context"
	"strings"
)

// DefaultSummaryTurns is the number of trailing turns a summary digests.
// Independent of the context window size.
const DefaultSummaryTurns = 10

const (
	summarySeparator    = " • "
	truncationMarker    = " ..."
	userLinePrefix      = "U: "
	assistantLinePrefix = "A: "
)

// Summarizer produces a bounded-length digest of recent turn history.
// The default implementation is extractive and fully offline; the
// completion-backed variant degrades to it on failure, so Summarize
// never errors.
type Summarizer interface {
	Summarize(ctx context.Context, turns []Turn, maxLen int) Summary
}

// ExtractiveSummarizer renders the last Turns turns as role-tagged
// one-liners joined by a bullet separator and truncated to maxLen runes.
//
// This is a placeholder strategy, not semantic summarization: it is
// deterministic byte-for-byte given the same turns and maxLen, which is
// what makes the rolling summary testable and rebuildable offline.
type ExtractiveSummarizer struct {
	// Turns is the number of trailing turns to digest.
	// Zero means DefaultSummaryTurns.
	Turns int
}

// Compile-time interface check.
var _ Summarizer = ExtractiveSummarizer{}

// Summarize digests the most recent turns into a Summary of at most
// maxLen runes, appending a truncation marker when content was cut.
func (s ExtractiveSummarizer) Summarize(_ context.Context, turns []Turn, maxLen int) Summary {
	m := s.Turns
	if m <= 0 {
		m = DefaultSummaryTurns
	}

	recent := Window(turns, m)
	lines := make([]string, 0, len(recent))
	for _, t := range recent {
		prefix := userLinePrefix
		if t.Role == RoleAssistant {
			prefix = assistantLinePrefix
		}
		// Collapse internal whitespace so each turn stays on one line.
		lines = append(lines, prefix+strings.Join(strings.Fields(t.Text), " "))
	}

	return Summary{
		Text:   shorten(strings.Join(lines, summarySeparator), maxLen),
		MaxLen: maxLen,
	}
}

// shorten truncates text to at most maxLen runes, cutting on a word
// boundary and appending the truncation marker when anything was dropped.
func shorten(text string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	marker := []rune(truncationMarker)
	if maxLen <= len(marker) {
		return string(marker[len(marker)-maxLen:])
	}

	kept := runes[:maxLen-len(marker)]
	// Back up to the last word boundary so the cut never splits a word.
	if i := lastSpace(kept); i > 0 {
		kept = kept[:i]
	}
	return strings.TrimRight(string(kept), " ") + truncationMarker
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}
