package chat

import "time"

type Sender string

const (
	SenderStudent   Sender = "student"
	SenderAssistant Sender = "assistant"
	SenderFeedback  Sender = "feedback"
)

type State string

const (
	// StatePending means the server has accepted the message but its
	// content is not computed yet.
	StatePending State = "PENDING"
	StateReady   State = "READY"
)

// Key identifies one conversation: a chat scoped to a course.
type Key struct {
	CourseID string
	ChatID   string
}

type FAQ struct {
	FAQID    string `json:"faq_id"`
	Question string `json:"question"`
}

// Conversation is immutable client-side for its lifetime; only the
// read-only flag may change server-side between fetches.
type Conversation struct {
	PublicID  string `json:"public_id"`
	CourseID  string `json:"-"`
	Language  string `json:"language"`
	ModelName string `json:"llm_model_name"`
	IndexType string `json:"index_type"`
	ReadOnly  bool   `json:"read_only"`
	FAQs      []FAQ  `json:"faqs"`
}

func (c Conversation) Key() Key {
	return Key{CourseID: c.CourseID, ChatID: c.PublicID}
}

type Message struct {
	MessageID  string    `json:"message_id"`
	Sender     Sender    `json:"sender"`
	State      State     `json:"state"`
	Content    *string   `json:"content"`
	Streaming  bool      `json:"streaming"`
	StreamURI  *string   `json:"websocket"`
	CreatedAt  time.Time `json:"created_at"`
	FromFAQ    bool      `json:"from_faq"`
	FeedbackID *string   `json:"feedback_id"`
}

func (m Message) Pending() bool {
	return m.State == StatePending
}

// Streamable reports whether the message's content arrives over a push
// channel rather than atomically.
func (m Message) Streamable() bool {
	return m.Streaming && m.StreamURI != nil
}

func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}
