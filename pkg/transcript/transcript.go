// Package transcript holds the ordered message log shared by every pipeline stage.
package transcript

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Message is a single transcript entry. Messages are values; once appended
// they are never modified.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is an append-only message log. The zero value is ready to use.
type Transcript struct {
	messages []Message
}

// New creates a transcript seeded with the given messages.
func New(seed ...Message) *Transcript {
	t := &Transcript{}
	for _, m := range seed {
		t.Append(m.Role, m.Content)
	}
	return t
}

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(role Role, content string) Message {
	if role == "" {
		role = RoleAssistant
	}
	m := Message{Role: role, Content: content}
	t.messages = append(t.messages, m)
	return m
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Messages returns a copy of the messages in insertion order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Last returns the most recent message.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}
