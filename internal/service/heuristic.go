package service

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	helpIntent     = regexp.MustCompile(`(?i)\b(help|commands)\b|what can you do`)
	greetingIntent = regexp.MustCompile(`(?i)\b(hello|hi|hey)\b`)
)

// HeuristicReply produces the local fallback answer used when no completion
// backend could deliver one.
func HeuristicReply(text string) string {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return "I'm here. How can I help today?"
	case helpIntent.MatchString(text):
		return `I can answer questions, outline plans, and help draft text. Try asking "Summarize X" or "Give me steps to Y".`
	case greetingIntent.MatchString(text):
		return "Hey there! What would you like to work on?"
	default:
		return fmt.Sprintf("You said: \"%s\". I don’t have a backend connected yet, but I can still help brainstorm or outline steps.", text)
	}
}
