// Package chat defines the message and context types shared across the
// assistant: conversation roles, the prompt context sent to completion
// providers, and token-budget truncation.
package chat

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleFunction  Role = "function"
)

// Message is a single conversation turn. Instances are treated as
// immutable once created.
type Message struct {
	Role     Role              `json:"role"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewMessage builds a message without metadata.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// Context is the prompt state assembled for one completion call.
type Context struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
	Temperature  float64
}

// DefaultMaxTokens bounds a completion context when no explicit budget is
// configured.
const DefaultMaxTokens = 4096

// NewContext returns a context with the default generation parameters.
func NewContext(systemPrompt string) *Context {
	return &Context{
		SystemPrompt: systemPrompt,
		MaxTokens:    DefaultMaxTokens,
		Temperature:  0.7,
	}
}

// AddMessage appends a turn to the context.
func (c *Context) AddMessage(role Role, content string) {
	c.Messages = append(c.Messages, NewMessage(role, content))
}

// LastMessage returns the most recent message, or a zero Message when the
// context is empty.
func (c *Context) LastMessage() Message {
	if len(c.Messages) == 0 {
		return Message{}
	}
	return c.Messages[len(c.Messages)-1]
}

// FormattedMessages returns the wire-ready message list with the system
// prompt, when set, prepended as the first entry.
func (c *Context) FormattedMessages() []Message {
	out := make([]Message, 0, len(c.Messages)+1)
	if c.SystemPrompt != "" {
		out = append(out, NewMessage(RoleSystem, c.SystemPrompt))
	}
	return append(out, c.Messages...)
}
