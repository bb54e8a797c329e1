package core

import (
	"context"

	"docai.id/document-assistant/internal/store"
)

// StreamEvent is one unit on the streaming handoff channel. Non-final
// events carry an incremental text fragment. The final event has Done
// set and carries either the persisted result or the persistence
// error; it is delivered exactly once on every path, then the channel
// closes.
type StreamEvent struct {
	Text   string
	Done   bool
	Result *store.ChatHistory
	Err    error
}

// streamBuffer decouples the provider reader from the SSE writer so a
// slow client flush does not stall chunk consumption.
const streamBuffer = 32

// ProcessQueryStream runs the same pipeline as ProcessQuery but
// delivers the answer incrementally. The provider invokes its delta
// callback with cumulative text; the service diffs consecutive values
// into fragments and forwards them. Title generation and persistence
// happen only after the full response is assembled, exactly as in the
// non-streaming mode.
//
// Cancelling ctx (client disconnect) cancels the outbound provider
// call; the terminal event is still produced, and fragment sends never
// block past cancellation.
func (s *ChatService) ProcessQueryStream(ctx context.Context, req QueryRequest) <-chan StreamEvent {
	events := make(chan StreamEvent, streamBuffer)

	go func() {
		defer close(events)

		var prev string
		onDelta := func(cumulative string) {
			// Cumulative values are prefix-extensions of each other,
			// so the new fragment is everything past the last length.
			if len(cumulative) <= len(prev) {
				return
			}
			fragment := cumulative[len(prev):]
			prev = cumulative

			select {
			case events <- StreamEvent{Text: fragment}:
			case <-ctx.Done():
			}
		}

		result, err := s.process(ctx, req, onDelta)

		// Terminal sentinel, always, even on error paths. If the
		// consumer is gone (ctx cancelled) fall back to a non-blocking
		// send; the close below still ends any remaining range loop.
		final := StreamEvent{Done: true, Result: result, Err: err}
		select {
		case events <- final:
		case <-ctx.Done():
			select {
			case events <- final:
			default:
			}
		}
	}()

	return events
}
