package conversation

import (
	"github.com/mrlokans/lectern/internal/entities"
)

// DefaultWindowSize is the number of history messages sent with a question.
const DefaultWindowSize = 20

const (
	personaPrompt = "You are a reading assistant. You help the user understand the book they are reading " +
		"and answer safely, helpfully and accurately. You refuse requests involving terrorism, " +
		"racism or graphic violence."
	formatPrompt = "Answer in Markdown. When asked for a diagram or structured data, reply with exactly " +
		"one fenced code block tagged with its language (for example mermaid or json)."
)

// SystemMessages returns the fixed messages every request starts with.
func SystemMessages() []entities.Message {
	return []entities.Message{
		{Role: entities.RoleSystem, Content: personaPrompt},
		{Role: entities.RoleSystem, Content: formatPrompt},
	}
}

// Build assembles the messages sent to a model: the fixed system messages,
// the trailing windowSize history messages oldest first, the grounding text
// as a system message when present, and the new user message.
//
// Older history is dropped, not summarised. windowSize <= 0 selects
// DefaultWindowSize.
func Build(history entities.ConversationHistory, groundingText, newUserMessage string, windowSize int) []entities.Message {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	tail := history
	if len(tail) > windowSize {
		tail = tail[len(tail)-windowSize:]
	}

	system := SystemMessages()
	messages := make([]entities.Message, 0, len(system)+len(tail)+2)
	messages = append(messages, system...)
	messages = append(messages, tail...)
	if groundingText != "" {
		messages = append(messages, entities.Message{Role: entities.RoleSystem, Content: groundingText})
	}
	messages = append(messages, entities.Message{Role: entities.RoleUser, Content: newUserMessage})
	return messages
}
