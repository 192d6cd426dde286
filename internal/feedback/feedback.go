// Package feedback implements the survey flow attached to individual
// chat messages: fetching the questions for a language, checking whether
// a message's question was already answered, and submitting one choice.
package feedback

import (
	"context"
	"errors"
	"sync"
)

var ErrAlreadyAnswered = errors.New("feedback already answered")

type Question struct {
	QuestionID string `json:"feedback_question_id"`
	Question   string `json:"question"`
	ExtraData  struct {
		Choices []string `json:"choices"`
	} `json:"extra_data"`
}

type Answer struct {
	Language   string `json:"language"`
	QuestionID string `json:"feedback_question_id"`
	MessageID  string `json:"message_id"`
	Answer     string `json:"answer"`
}

type API interface {
	FeedbackQuestions(ctx context.Context, language string) ([]Question, error)
	FeedbackAnswered(ctx context.Context, language, questionID, messageID string) (bool, error)
	SendFeedback(ctx context.Context, language, questionID, messageID, choice string) (Answer, error)
}

// Service enforces the one-answer-per-message rule on top of the API.
type Service struct {
	api API

	mu       sync.Mutex
	answered map[string]bool // keyed by message id
}

func NewService(api API) *Service {
	return &Service{api: api, answered: make(map[string]bool)}
}

func (s *Service) Questions(ctx context.Context, language string) ([]Question, error) {
	return s.api.FeedbackQuestions(ctx, language)
}

// Answered reports whether the message's feedback question was already
// answered. Positive results are cached; negative ones are not, since
// another client may answer in between.
func (s *Service) Answered(ctx context.Context, language, questionID, messageID string) (bool, error) {
	s.mu.Lock()
	done := s.answered[messageID]
	s.mu.Unlock()
	if done {
		return true, nil
	}

	done, err := s.api.FeedbackAnswered(ctx, language, questionID, messageID)
	if err != nil {
		return false, err
	}
	if done {
		s.mark(messageID)
	}
	return done, nil
}

// Submit sends the chosen answer. A message accepts exactly one answer;
// further submissions return ErrAlreadyAnswered.
func (s *Service) Submit(ctx context.Context, language, questionID, messageID, choice string) (Answer, error) {
	s.mu.Lock()
	done := s.answered[messageID]
	s.mu.Unlock()
	if done {
		return Answer{}, ErrAlreadyAnswered
	}

	ans, err := s.api.SendFeedback(ctx, language, questionID, messageID, choice)
	if err != nil {
		return Answer{}, err
	}
	s.mark(messageID)
	return ans, nil
}

func (s *Service) mark(messageID string) {
	s.mu.Lock()
	s.answered[messageID] = true
	s.mu.Unlock()
}
