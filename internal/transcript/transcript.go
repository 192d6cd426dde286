// Package transcript records the conversation as seen by this client, one
// JSON event per line, for study-export and debugging.
package transcript

import (
	"time"

	"course-copilot/internal/chat"
)

type Event struct {
	Timestamp time.Time   `json:"timestamp"`
	CourseID  string      `json:"course_id"`
	ChatID    string      `json:"chat_id"`
	MessageID string      `json:"message_id"`
	Sender    chat.Sender `json:"sender"`
	Content   string      `json:"content"`
	FromFAQ   bool        `json:"from_faq,omitempty"`
}

type Recorder interface {
	Append(event Event) error
}
