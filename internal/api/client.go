// Package api is the transport adapter for the course chat service: typed
// REST calls plus the websocket dial used for streamed assistant replies.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"course-copilot/internal/chat"
	"course-copilot/internal/feedback"
)

type Session struct {
	PublicID string `json:"public_id"`
	Consent  bool   `json:"consent"`
}

type Client struct {
	baseURL string
	wsURL   string
	session string
	httpc   *http.Client
	dialer  *websocket.Dialer
}

// New builds a client bound to one session credential. Pass an empty
// session only for the bootstrap StartSession call.
func New(baseURL, wsURL, session string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		wsURL:   strings.TrimRight(wsURL, "/"),
		session: session,
		httpc: &http.Client{
			Transport: sessionTransport{rt: http.DefaultTransport, session: session},
		},
		dialer: websocket.DefaultDialer,
	}
}

// NewWithHTTPClient is New with the underlying transport swapped out, for
// tests and callers that need custom timeouts. The session header is still
// injected on top of rt.
func NewWithHTTPClient(baseURL, wsURL, session string, rt http.RoundTripper) *Client {
	c := New(baseURL, wsURL, session)
	c.httpc = &http.Client{Transport: sessionTransport{rt: rt, session: session}}
	return c
}

func (c *Client) StartSession(ctx context.Context) (Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/session", nil, &s)
	return s, err
}

func (c *Client) GetSession(ctx context.Context) (Session, error) {
	var s Session
	err := c.do(ctx, http.MethodGet, "/session/me", nil, &s)
	return s, err
}

func (c *Client) StartChat(ctx context.Context, courseID string) (chat.Conversation, error) {
	var conv chat.Conversation
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/course/%s/chat", courseID), nil, &conv)
	conv.CourseID = courseID
	return conv, err
}

// GetChat fetches one conversation. A 404 surfaces as *NotFoundError
// wrapping ErrChatNotFound, not as a generic *APIError.
func (c *Client) GetChat(ctx context.Context, courseID, chatID string) (chat.Conversation, error) {
	var conv chat.Conversation
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/course/%s/chat/%s", courseID, chatID), nil, &conv)
	if apiErr, ok := asAPIError(err); ok && apiErr.StatusCode == http.StatusNotFound {
		return conv, &NotFoundError{Detail: apiErr.Detail}
	}
	conv.CourseID = courseID
	return conv, err
}

func (c *Client) ListMessages(ctx context.Context, courseID, chatID string) ([]chat.Message, error) {
	var out struct {
		Messages []chat.Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/course/%s/chat/%s/messages", courseID, chatID), nil, &out)
	return out.Messages, err
}

func (c *Client) GetMessage(ctx context.Context, courseID, chatID, messageID string) (chat.Message, error) {
	var m chat.Message
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/course/%s/chat/%s/messages/%s", courseID, chatID, messageID), nil, &m)
	return m, err
}

func (c *Client) PostMessage(ctx context.Context, courseID, chatID, content string) (chat.Message, error) {
	var m chat.Message
	body := map[string]string{"content": content}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/course/%s/chat/%s/messages", courseID, chatID), body, &m)
	return m, err
}

// PostFAQMessage posts a message by FAQ identifier instead of free text.
func (c *Client) PostFAQMessage(ctx context.Context, courseID, chatID, faqID string) (chat.Message, error) {
	var m chat.Message
	body := map[string]string{"faq_id": faqID}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/course/%s/chat/%s/messages", courseID, chatID), body, &m)
	return m, err
}

func (c *Client) FeedbackQuestions(ctx context.Context, language string) ([]feedback.Question, error) {
	var out struct {
		Questions []feedback.Question `json:"questions"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/feedback/%s", language), nil, &out)
	return out.Questions, err
}

func (c *Client) GetFeedback(ctx context.Context, language, questionID, messageID string) (feedback.Answer, error) {
	var a feedback.Answer
	err := c.do(ctx, http.MethodGet, feedbackPath(language, questionID, messageID), nil, &a)
	return a, err
}

// FeedbackAnswered maps the service's 404-on-absent-answer convention to
// a boolean.
func (c *Client) FeedbackAnswered(ctx context.Context, language, questionID, messageID string) (bool, error) {
	err := c.do(ctx, http.MethodGet, feedbackPath(language, questionID, messageID), nil, nil)
	if apiErr, ok := asAPIError(err); ok && apiErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) SendFeedback(ctx context.Context, language, questionID, messageID, choice string) (feedback.Answer, error) {
	var a feedback.Answer
	body := map[string]string{"choice": choice}
	err := c.do(ctx, http.MethodPost, feedbackPath(language, questionID, messageID), body, &a)
	return a, err
}

// OpenStream dials the push channel behind a message's stream URI.
func (c *Client) OpenStream(ctx context.Context, streamURI string) (*websocket.Conn, error) {
	header := http.Header{}
	if c.session != "" {
		header.Set("X-Session-ID", c.session)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL+streamURI, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial stream %s: %s: %w", streamURI, resp.Status, err)
		}
		return nil, fmt.Errorf("dial stream %s: %w", streamURI, err)
	}
	return conn, nil
}

func feedbackPath(language, questionID, messageID string) string {
	return fmt.Sprintf("/feedback/%s/questions/%s/messages/%s", language, questionID, messageID)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
