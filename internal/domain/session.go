package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// DefaultGreeting is the first message of every fresh session
	DefaultGreeting = "Hi, I'm your smart chat assistant. How can I help?"

	// TitleNewChat is the placeholder title of a freshly created session
	TitleNewChat = "New Chat"
	// TitleConversation is the placeholder title of a migrated history
	TitleConversation = "Conversation"

	// MaxTitleLength caps caller-assigned titles (in characters)
	MaxTitleLength = 60
	// AutoTitleLength caps titles derived from the first user message
	AutoTitleLength = 40
)

// Session is one independent conversation thread
type Session struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// NewSession creates a greeting-only session with a fresh id
func NewSession() Session {
	return Session{
		ID:       uuid.NewString(),
		Title:    TitleNewChat,
		Messages: DefaultMessages(),
	}
}

// DefaultMessages returns the message list of a fresh session
func DefaultMessages() []Message {
	return []Message{NewAssistantMessage(DefaultGreeting)}
}

// Clone returns a deep copy of the session
func (s Session) Clone() Session {
	msgs := make([]Message, len(s.Messages))
	copy(msgs, s.Messages)
	s.Messages = msgs
	return s
}

// LastMessage returns the last message and whether one exists
func (s Session) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// FirstUserMessage returns the content of the first user turn
func (s Session) FirstUserMessage() (string, bool) {
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			return m.Content, true
		}
	}
	return "", false
}

// HasPlaceholderTitle reports whether the title may still be auto-derived
func (s Session) HasPlaceholderTitle() bool {
	return IsPlaceholderTitle(s.Title)
}

// IsPlaceholderTitle reports whether title is one of the placeholder values
func IsPlaceholderTitle(title string) bool {
	return title == TitleNewChat || title == TitleConversation || title == ""
}

// DeriveTitle builds a title from a user message: whitespace collapsed,
// first AutoTitleLength characters. Returns "" if nothing is left.
func DeriveTitle(content string) string {
	return Truncate(strings.Join(strings.Fields(content), " "), AutoTitleLength)
}

// Truncate cuts s to at most n characters
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
