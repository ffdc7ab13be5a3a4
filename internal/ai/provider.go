// Package ai abstracts the language-model backends the relay can stream
// from: a tunnelled llama-server, a spawned llama-cli process, or a hosted
// OpenAI model. Backends are selected by configuration, never by branching
// inside handlers.
package ai

import (
	"context"
	"strings"
)

// Message is one turn of upstream context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider generates a complete reply for a conversation.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// StreamProvider is optional. Backends that can stream implement it; both
// returned channels are closed when streaming ends.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}

// flattenPrompt renders a message list into the plain-text prompt format the
// llama.cpp backends expect: system preamble first, then alternating
// Usuario/Asistente lines, ending with an open assistant turn.
func flattenPrompt(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case "system":
			b.WriteString(m.Content)
			b.WriteString("\n")
		case "assistant":
			b.WriteString("Asistente: ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		default:
			b.WriteString("Usuario: ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}
	b.WriteString("Asistente:")
	return b.String()
}
