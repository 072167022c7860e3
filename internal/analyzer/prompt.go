package analyzer

import (
	"fmt"
	"strings"

	"invoice-assistant/internal/models"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// buildMessages assembles the bounded prompt: a system description of the
// available intents, entity types and business context, the last few turns
// of history, and the current message.
func buildMessages(message string, sctx *models.ConversationContext, history []models.ConversationMessage, window int) []chatMessage {
	var sys strings.Builder
	sys.WriteString("You classify messages for a small-business invoicing assistant. ")
	sys.WriteString("Reply with a single JSON object {\"intent\", \"confidence\", \"entities\"} and nothing else.\n")

	sys.WriteString("Intents: ")
	for i, intent := range models.KnownIntents {
		if i > 0 {
			sys.WriteString(", ")
		}
		sys.WriteString(string(intent))
	}
	sys.WriteString("\nEntity types: ")
	for i, t := range models.KnownEntityTypes {
		if i > 0 {
			sys.WriteString(", ")
		}
		sys.WriteString(string(t))
	}
	sys.WriteString("\nOnly use intents and entity types from these lists.\n")

	if sctx != nil {
		if sctx.Business.Profile.Currency != "" {
			fmt.Fprintf(&sys, "Business currency: %s.\n", sctx.Business.Profile.Currency)
		}
		if len(sctx.Recent.Customers) > 0 {
			sys.WriteString("Recent customers: ")
			for i, c := range sctx.Recent.Customers {
				if i > 0 {
					sys.WriteString(", ")
				}
				sys.WriteString(c.Name)
			}
			sys.WriteString(".\n")
		}
	}

	messages := []chatMessage{{Role: "system", Content: sys.String()}}

	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	for _, m := range history {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: m.Content})
	}

	return append(messages, chatMessage{Role: "user", Content: message})
}
