// Package feed reconciles the displayed transcript of one conversation:
// it decides per message whether to render statically, poll for pending
// content, or attach a streaming receiver, and folds their results back
// into a consistent view.
package feed

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"course-copilot/internal/chat"
	"course-copilot/internal/feedback"
	"course-copilot/internal/logging"
	"course-copilot/internal/poller"
	"course-copilot/internal/store"
	"course-copilot/internal/stream"
)

var ErrReadOnly = errors.New("conversation is read-only")

// Transport is the slice of the adapter the reconciler posts through;
// the store, poller and receiver each hold their own narrower view.
type Transport interface {
	PostMessage(ctx context.Context, courseID, chatID, content string) (chat.Message, error)
	PostFAQMessage(ctx context.Context, courseID, chatID, faqID string) (chat.Message, error)
}

type eventKind int

const (
	evFeed eventKind = iota
	evPoll
	evStreamUpdate
	evStreamScroll
	evStreamDone
	evAnswered
)

type event struct {
	kind      eventKind
	feed      []chat.Message
	poll      poller.Update
	messageID string
	display   string
}

type Options struct {
	// Rand seeds FAQ sampling; defaults to a time-seeded source.
	Rand *rand.Rand
	// OnChange fires after every state transition, on the loop goroutine.
	OnChange func()
	// OnScroll fires when a streaming message crosses a scroll boundary.
	OnScroll func(messageID string)
}

type Reconciler struct {
	transport Transport
	store     *store.Store
	poller    *poller.Poller
	receiver  *stream.Receiver
	feedback  *feedback.Service
	conv      chat.Conversation
	key       chat.Key
	rng       *rand.Rand
	onChange  func()
	onScroll  func(messageID string)

	events chan event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Owned by the loop goroutine; never touched elsewhere.
	working    []chat.Message
	faqs       []chat.FAQ
	polling    map[string]bool
	failed     map[string]bool // sticky pending timeouts
	drained    map[string]bool
	answered   map[string]bool
	checked    map[string]bool
	streamText map[string]string

	mu   sync.RWMutex
	snap Snapshot
}

func New(t Transport, st *store.Store, p *poller.Poller, rcv *stream.Receiver, fb *feedback.Service, conv chat.Conversation, opts Options) *Reconciler {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Reconciler{
		transport:  t,
		store:      st,
		poller:     p,
		receiver:   rcv,
		feedback:   fb,
		conv:       conv,
		key:        conv.Key(),
		rng:        rng,
		onChange:   opts.OnChange,
		onScroll:   opts.OnScroll,
		events:     make(chan event, 64),
		done:       make(chan struct{}),
		polling:    make(map[string]bool),
		failed:     make(map[string]bool),
		drained:    make(map[string]bool),
		answered:   make(map[string]bool),
		checked:    make(map[string]bool),
		streamText: make(map[string]string),
	}
}

// Start launches the loop goroutine that owns all feed state. Must be
// called before Refresh or any post operation.
func (r *Reconciler) Start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)
	go r.loop()
}

// Stop tears the loop down and releases every live stream channel.
func (r *Reconciler) Stop() {
	r.cancel()
	<-r.done
}

// Refresh loads the authoritative feed and hands it to the loop. Errors
// here are conversation-level and propagate to the caller for
// whole-screen display.
func (r *Reconciler) Refresh(ctx context.Context) error {
	feed, err := r.store.Load(ctx, r.key)
	if err != nil {
		return err
	}
	r.send(event{kind: evFeed, feed: feed})
	return nil
}

// Post sends a free-text student message and invalidates the cached feed
// so the next read reflects the server's authoritative state.
func (r *Reconciler) Post(ctx context.Context, content string) error {
	if r.conv.ReadOnly {
		return ErrReadOnly
	}
	if _, err := r.transport.PostMessage(ctx, r.key.CourseID, r.key.ChatID, content); err != nil {
		return err
	}
	r.store.Invalidate(r.key)
	return r.Refresh(ctx)
}

// SelectFAQ posts a message by FAQ identifier, as when the student picks
// one of the suggestions shown on an empty feed.
func (r *Reconciler) SelectFAQ(ctx context.Context, faqID string) error {
	if r.conv.ReadOnly {
		return ErrReadOnly
	}
	if _, err := r.transport.PostFAQMessage(ctx, r.key.CourseID, r.key.ChatID, faqID); err != nil {
		return err
	}
	r.store.Invalidate(r.key)
	return r.Refresh(ctx)
}

// SubmitFeedback records the single allowed choice for a feedback
// message, after which the message renders inert.
func (r *Reconciler) SubmitFeedback(ctx context.Context, messageID, questionID, choice string) error {
	if _, err := r.feedback.Submit(ctx, r.conv.Language, questionID, messageID, choice); err != nil {
		return err
	}
	r.store.Invalidate(r.key)
	r.send(event{kind: evAnswered, messageID: messageID})
	return nil
}

func (r *Reconciler) send(ev event) {
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
	}
}

func (r *Reconciler) loop() {
	defer close(r.done)
	defer r.receiver.CloseAll()
	for {
		select {
		case <-r.ctx.Done():
			return
		case ev := <-r.events:
			r.handle(ev)
		}
	}
}

func (r *Reconciler) handle(ev event) {
	switch ev.kind {
	case evFeed:
		r.working = ev.feed
		for _, m := range r.working {
			r.dispatch(m)
		}
		if len(r.working) == 0 {
			if r.faqs == nil {
				r.faqs = chat.SampleFAQs(r.conv.FAQs, chat.SuggestedFAQCount, r.rng)
			}
		} else {
			r.faqs = nil
		}
	case evPoll:
		delete(r.polling, ev.poll.MessageID)
		switch ev.poll.Result {
		case poller.ResultReady:
			r.replace(ev.poll.Message)
			r.dispatch(ev.poll.Message)
		case poller.ResultTimeout:
			r.failed[ev.poll.MessageID] = true
		case poller.ResultCanceled:
			return
		}
	case evStreamUpdate:
		r.streamText[ev.messageID] = ev.display
	case evStreamScroll:
		if r.onScroll != nil {
			r.onScroll(ev.messageID)
		}
		return
	case evStreamDone:
		r.drained[ev.messageID] = true
		r.store.Invalidate(r.key)
	case evAnswered:
		r.answered[ev.messageID] = true
	}
	r.rebuild()
}

// dispatch applies the per-message policy, in order: pending messages
// are polled, streaming ones get a receiver, feedback ones an answered
// check. A message observed as pending is never handed to a receiver.
func (r *Reconciler) dispatch(m chat.Message) {
	id := m.MessageID
	switch {
	case r.failed[id]:
		// Terminal; nothing drives this message anymore.
	case m.Pending():
		if r.polling[id] {
			return
		}
		r.polling[id] = true
		go func(m chat.Message) {
			u := r.poller.Run(r.ctx, r.key, m)
			r.send(event{kind: evPoll, poll: u})
		}(m)
	case m.Streamable() && !r.drained[id]:
		r.receiver.Attach(r.ctx, m, stream.Handler{
			OnUpdate: func(id, display string) {
				r.send(event{kind: evStreamUpdate, messageID: id, display: display})
			},
			OnScroll: func(id string) {
				r.send(event{kind: evStreamScroll, messageID: id})
			},
			OnDone: func(id string) {
				r.send(event{kind: evStreamDone, messageID: id})
			},
		})
	case m.FeedbackID != nil && !r.answered[id] && !r.checked[id]:
		r.checked[id] = true
		go r.checkAnswered(m)
	}
}

func (r *Reconciler) checkAnswered(m chat.Message) {
	done, err := r.feedback.Answered(r.ctx, r.conv.Language, *m.FeedbackID, m.MessageID)
	if err != nil {
		// Local to this message; the prompt stays available.
		logging.Warnf("feed: answered check for message %s: %v", m.MessageID, err)
		return
	}
	if done {
		r.send(event{kind: evAnswered, messageID: m.MessageID})
	}
}

func (r *Reconciler) replace(m chat.Message) {
	for i := range r.working {
		if r.working[i].MessageID == m.MessageID {
			r.working[i] = m
			return
		}
	}
}
