package gateway

import (
	"github.com/driftlock/gatewaykit/wire"
)

// Listener receives the chat events of one streaming run. It is invoked
// synchronously from the read loop, in wire-arrival order; implementations
// must not block.
type Listener func(*wire.ChatEvent)

// Subscribe registers a listener for a run identifier. Callers register
// before issuing the request that starts the run, so the first event cannot
// race the registration.
func (c *Client) Subscribe(runID string, fn Listener) {
	c.mu.Lock()
	c.listeners[runID] = fn
	c.mu.Unlock()
}

// Unsubscribe removes the listener for a run identifier.
func (c *Client) Unsubscribe(runID string) {
	c.mu.Lock()
	delete(c.listeners, runID)
	c.mu.Unlock()
}

// routeEvent demultiplexes one inbound event frame. Gaps in the sequence
// are detected and logged but never block or reorder delivery; events for
// unregistered runs are dropped.
func (c *Client) routeEvent(f *wire.Frame) {
	if f.Seq != nil {
		seq := *f.Seq
		c.mu.Lock()
		last := c.seqCursor
		c.seqCursor = seq // monotonic, last-write-wins on gaps
		c.mu.Unlock()

		if seq > last+1 {
			c.logger.Warn().
				Uint64("last", last).
				Uint64("seq", seq).
				Str("event", f.Event).
				Msg("sequence gap in event stream")
		}
	}

	switch f.Event {
	case wire.EventChat:
		ev, err := wire.ParseChatEvent(f.Payload)
		if err != nil {
			c.logger.Warn().Err(err).Msg("discarding malformed chat event")
			return
		}

		c.mu.Lock()
		fn, ok := c.listeners[ev.RunID]
		c.mu.Unlock()
		if !ok {
			c.logger.Debug().Str("runId", ev.RunID).Msg("dropping event for unregistered run")
			return
		}
		fn(ev)

	default:
		c.logger.Debug().Str("event", f.Event).Msg("ignoring event kind")
	}
}

// notifyListeners hands a synthetic terminal event to every registered
// listener, one per run. Used when the connection drops with streams open.
func (c *Client) notifyListeners(state wire.ChatState, message string) {
	c.mu.Lock()
	listeners := make(map[string]Listener, len(c.listeners))
	for runID, fn := range c.listeners {
		listeners[runID] = fn
	}
	c.mu.Unlock()

	for runID, fn := range listeners {
		fn(&wire.ChatEvent{
			RunID:        runID,
			State:        state,
			ErrorMessage: message,
		})
	}
}
