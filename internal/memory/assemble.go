package memory

import (
	"strings"

	"github.com/vjoshi/recall/internal/provider"
)

// Context is the ephemeral, read-only snapshot handed to the completion
// endpoint: the bounded window plus the derived summary and profile.
// Built per request, never persisted, never mutated.
type Context struct {
	SessionID    string  `json:"session_id"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Window       []Turn  `json:"window"`
	Summary      Summary `json:"summary"`
	Profile      Profile `json:"profile"`
}

// Messages renders the snapshot as a role-tagged message list for the
// completion call. The system message carries the system prompt, the
// persona card, and the rolling summary; the window turns follow in order.
func (c Context) Messages() []provider.LLMMessage {
	var parts []string
	if c.SystemPrompt != "" {
		parts = append(parts, c.SystemPrompt)
	}
	if !c.Profile.IsZero() {
		parts = append(parts, "Known user profile: "+c.Profile.Card())
	}
	if c.Summary.Text != "" {
		parts = append(parts, "Conversation summary: "+c.Summary.Text)
	}

	msgs := make([]provider.LLMMessage, 0, len(c.Window)+1)
	if len(parts) > 0 {
		msgs = append(msgs, provider.LLMMessage{
			Role:    provider.MessageRoleSystem,
			Content: strings.Join(parts, "\n\n"),
		})
	}

	for _, t := range c.Window {
		role := provider.MessageRoleUser
		if t.Role == RoleAssistant {
			role = provider.MessageRoleAssistant
		}
		msgs = append(msgs, provider.LLMMessage{Role: role, Content: t.Text})
	}

	return msgs
}
