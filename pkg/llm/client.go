package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Generator returns the raw completion text for an ordered conversation.
type Generator interface {
	Generate(ctx context.Context, messages []Message, model string) (string, error)
}
