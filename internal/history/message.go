// Package history persists finished conversations as a single JSON file and
// optionally mirrors that file to R2.
package history

import (
	"encoding/json"
	"time"

	"github.com/garyellow/tamly-chatbot-go/internal/textnorm"
)

// TimeLayout is the transcript timestamp format, e.g. "14:05:09 03-11-2024".
const TimeLayout = "15:04:05 02-01-2006"

// DefaultName names a conversation whose first message is empty.
const DefaultName = "New Chat"

// maxNameRunes is the length of a derived conversation name.
const maxNameRunes = 50

// Role is the author of a message.
type Role string

// Roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. Question and Options are set on
// assistant messages that asked a quiz.
type Message struct {
	Role     Role     `json:"role"`
	Content  string   `json:"content"`
	Time     string   `json:"time"`
	Question string   `json:"question,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// UnmarshalJSON accepts legacy entries that stored the text under "message".
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var aux struct {
		plain
		Legacy string `json:"message"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Message(aux.plain)
	if m.Content == "" {
		m.Content = aux.Legacy
	}
	return nil
}

// NewMessage stamps a message with t.
func NewMessage(role Role, content string, t time.Time) Message {
	return Message{Role: role, Content: content, Time: t.Format(TimeLayout)}
}

// Conversation is a named transcript.
type Conversation struct {
	Name     string    `json:"name"`
	Messages []Message `json:"messages"`
}

// NameFor derives a conversation name from its first message.
func NameFor(first string) string {
	if textnorm.IsBlank(first) {
		return DefaultName
	}
	return textnorm.TruncateRunes(first, maxNameRunes)
}
