package adapter

import (
	"fmt"
	"strings"

	"github.com/zen-systems/codefactory/pkg/transcript"
)

// SplitSystem separates system messages from the conversation turns. System
// content is joined onto base, which is usually the worker's own instructions.
func SplitSystem(base string, messages []transcript.Message) (string, []transcript.Message) {
	parts := make([]string, 0, 1)
	if s := strings.TrimSpace(base); s != "" {
		parts = append(parts, s)
	}
	turns := make([]transcript.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == transcript.RoleSystem {
			if s := strings.TrimSpace(m.Content); s != "" {
				parts = append(parts, s)
			}
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(parts, "\n\n"), turns
}

// FlattenConversation renders turns as a single user prompt for providers that
// require strictly alternating roles starting with the user.
func FlattenConversation(turns []transcript.Message) string {
	if len(turns) == 0 {
		return "Begin."
	}
	var sb strings.Builder
	sb.WriteString("Conversation so far:\n\n")
	for i, m := range turns {
		sb.WriteString(fmt.Sprintf("[%d] %s:\n%s\n\n", i+1, m.Role, strings.TrimSpace(m.Content)))
	}
	sb.WriteString("Continue with your assigned task.")
	return sb.String()
}
