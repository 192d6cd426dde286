package feed

import (
	"course-copilot/internal/chat"
	"course-copilot/internal/render"
)

type RenderKind int

const (
	RenderStatic RenderKind = iota
	RenderPending
	RenderPendingFailed
	RenderStreaming
	RenderFeedback
	RenderFeedbackAnswered
)

// RenderState is what the presentation layer shows for one feed slot.
type RenderState struct {
	MessageID string
	Sender    chat.Sender
	Kind      RenderKind
	Content   string
	Loading   bool
}

// Snapshot is the full view of the conversation at one instant: the
// transcript, or FAQ suggestions when the feed is empty.
type Snapshot struct {
	Messages []RenderState
	FAQs     []chat.FAQ
}

// Snapshot returns the current view. Safe to call from any goroutine.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := Snapshot{
		Messages: append([]RenderState(nil), r.snap.Messages...),
		FAQs:     append([]chat.FAQ(nil), r.snap.FAQs...),
	}
	return snap
}

// rebuild recomputes the published snapshot from loop-owned state. Runs
// only on the loop goroutine, which is the single writer.
func (r *Reconciler) rebuild() {
	msgs := make([]RenderState, 0, len(r.working))
	for _, m := range r.working {
		msgs = append(msgs, r.renderOf(m))
	}
	snap := Snapshot{Messages: msgs, FAQs: append([]chat.FAQ(nil), r.faqs...)}

	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange()
	}
}

func (r *Reconciler) renderOf(m chat.Message) RenderState {
	rs := RenderState{MessageID: m.MessageID, Sender: m.Sender}
	id := m.MessageID
	switch {
	case r.failed[id]:
		rs.Kind = RenderPendingFailed
	case m.Pending():
		rs.Kind = RenderPending
		rs.Loading = true
	case m.Streamable() && !r.drained[id]:
		rs.Kind = RenderStreaming
		rs.Content = r.streamText[id]
		rs.Loading = true
	case m.FeedbackID != nil:
		if r.answered[id] {
			rs.Kind = RenderFeedbackAnswered
		} else {
			rs.Kind = RenderFeedback
		}
		rs.Content = m.Text()
	default:
		rs.Kind = RenderStatic
		rs.Content = render.Normalize(m.Text())
		// A drained stream keeps its accumulated text until the next
		// reload delivers the server's copy.
		if rs.Content == "" && r.drained[id] {
			rs.Content = r.streamText[id]
		}
	}
	return rs
}
