// Package poller re-fetches a single pending message until the server
// finishes computing it or a fixed giveup deadline passes.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"course-copilot/internal/chat"
	"course-copilot/internal/logging"
)

const (
	// Interval is the fixed re-fetch cadence for a pending message.
	Interval = 100 * time.Millisecond
	// Timeout is the absolute giveup deadline, measured from the
	// message's creation time, not from poll start.
	Timeout = 10 * time.Minute
)

type Result int

const (
	// ResultReady carries the final message.
	ResultReady Result = iota
	// ResultTimeout is terminal and sticky: the message is never
	// polled again this session, even if it would later become ready.
	ResultTimeout
	ResultCanceled
)

type Update struct {
	MessageID string
	Result    Result
	Message   chat.Message
}

type Fetcher interface {
	GetMessage(ctx context.Context, courseID, chatID, messageID string) (chat.Message, error)
}

type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

func New(f Fetcher) *Poller {
	return NewWithPolicy(f, Interval, Timeout)
}

// NewWithPolicy overrides the poll cadence and giveup deadline, for tests.
func NewWithPolicy(f Fetcher, interval, timeout time.Duration) *Poller {
	return &Poller{fetcher: f, interval: interval, timeout: timeout, now: time.Now}
}

var errStillPending = errors.New("still pending")

// Run blocks until the message turns ready, the deadline passes, or ctx
// is canceled. Callers run it on its own goroutine, one per message.
// A message already past its deadline stops immediately with zero
// fetches. Transient fetch errors are retried on the next tick; only the
// deadline bounds them.
func (p *Poller) Run(ctx context.Context, key chat.Key, msg chat.Message) Update {
	deadline := msg.CreatedAt.Add(p.timeout)
	if !p.now().Before(deadline) {
		logging.Debugf("poller: message %s already past deadline, giving up", msg.MessageID)
		return Update{MessageID: msg.MessageID, Result: ResultTimeout}
	}

	pollCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var final chat.Message
	op := func() error {
		m, err := p.fetcher.GetMessage(pollCtx, key.CourseID, key.ChatID, msg.MessageID)
		if err != nil {
			return err
		}
		if m.Pending() {
			return errStillPending
		}
		final = m
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(p.interval), pollCtx)
	if err := backoff.Retry(op, b); err != nil {
		if ctx.Err() != nil {
			return Update{MessageID: msg.MessageID, Result: ResultCanceled}
		}
		logging.Infof("poller: message %s still pending at deadline, giving up", msg.MessageID)
		return Update{MessageID: msg.MessageID, Result: ResultTimeout}
	}
	return Update{MessageID: msg.MessageID, Result: ResultReady, Message: final}
}
