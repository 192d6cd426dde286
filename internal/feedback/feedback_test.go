package feedback

import (
	"context"
	"errors"
	"testing"
)

type fakeAPI struct {
	answered     map[string]bool
	answeredErr  error
	sendCalls    int
	answeredHits int
}

func (f *fakeAPI) FeedbackQuestions(_ context.Context, language string) ([]Question, error) {
	return []Question{{QuestionID: "q1", Question: "Was this helpful?"}}, nil
}

func (f *fakeAPI) FeedbackAnswered(_ context.Context, _, _, messageID string) (bool, error) {
	f.answeredHits++
	if f.answeredErr != nil {
		return false, f.answeredErr
	}
	return f.answered[messageID], nil
}

func (f *fakeAPI) SendFeedback(_ context.Context, language, questionID, messageID, choice string) (Answer, error) {
	f.sendCalls++
	f.answered[messageID] = true
	return Answer{Language: language, QuestionID: questionID, MessageID: messageID, Answer: choice}, nil
}

func TestSubmitOncePerMessage(t *testing.T) {
	api := &fakeAPI{answered: map[string]bool{}}
	svc := NewService(api)
	ctx := context.Background()

	ans, err := svc.Submit(ctx, "en", "q1", "m1", "yes")
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if ans.Answer != "yes" || ans.MessageID != "m1" {
		t.Fatalf("unexpected answer: %+v", ans)
	}

	if _, err := svc.Submit(ctx, "en", "q1", "m1", "no"); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("second submit: want ErrAlreadyAnswered, got %v", err)
	}
	if api.sendCalls != 1 {
		t.Fatalf("want 1 send call, got %d", api.sendCalls)
	}
}

func TestAnsweredCachesPositive(t *testing.T) {
	api := &fakeAPI{answered: map[string]bool{"m1": true}}
	svc := NewService(api)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		done, err := svc.Answered(ctx, "en", "q1", "m1")
		if err != nil || !done {
			t.Fatalf("answered check %d: done=%v err=%v", i, done, err)
		}
	}
	if api.answeredHits != 1 {
		t.Fatalf("positive result not cached: %d API hits", api.answeredHits)
	}

	// Negative results are re-checked every time.
	for i := 0; i < 2; i++ {
		if done, err := svc.Answered(ctx, "en", "q1", "m2"); err != nil || done {
			t.Fatalf("unanswered check %d: done=%v err=%v", i, done, err)
		}
	}
	if api.answeredHits != 3 {
		t.Fatalf("negative result should not cache: %d API hits", api.answeredHits)
	}
}
