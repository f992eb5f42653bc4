package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vjoshi/recall/internal/provider"
)

const summaryPrompt = `Summarize the following conversation in at most %d characters.
Keep concrete facts, names, and decisions. Return only the summary text.

%s`

// CompletionSummarizer delegates summarization to the external completion
// endpoint for an abstractive digest. On any endpoint failure it degrades
// to the deterministic extractive strategy — the rolling summary is a
// cache and must never fail an append.
type CompletionSummarizer struct {
	Provider provider.Provider
	Fallback ExtractiveSummarizer
	Logger   *slog.Logger
}

// Compile-time interface check.
var _ Summarizer = (*CompletionSummarizer)(nil)

// Summarize asks the endpoint for a digest of the recent turns,
// truncated to maxLen runes. Endpoint errors fall back to the
// extractive summarizer.
func (s *CompletionSummarizer) Summarize(ctx context.Context, turns []Turn, maxLen int) Summary {
	m := s.Fallback.Turns
	if m <= 0 {
		m = DefaultSummaryTurns
	}

	recent := Window(turns, m)
	if len(recent) == 0 || s.Provider == nil {
		return s.Fallback.Summarize(ctx, turns, maxLen)
	}

	var transcript strings.Builder
	for _, t := range recent {
		transcript.WriteString(string(t.Role))
		transcript.WriteString(": ")
		transcript.WriteString(t.Text)
		transcript.WriteString("\n")
	}

	resp, err := s.Provider.Complete(ctx, provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleUser, Content: renderSummaryPrompt(maxLen, transcript.String())},
		},
	})
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("abstractive summary failed, using extractive fallback", "error", err)
		}
		return s.Fallback.Summarize(ctx, turns, maxLen)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return s.Fallback.Summarize(ctx, turns, maxLen)
	}

	return Summary{
		Text:   shorten(text, maxLen),
		MaxLen: maxLen,
	}
}

func renderSummaryPrompt(maxLen int, transcript string) string {
	return fmt.Sprintf(summaryPrompt, maxLen, transcript)
}
