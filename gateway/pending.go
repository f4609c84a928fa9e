package gateway

import (
	"encoding/json"
	"time"

	"github.com/driftlock/gatewaykit/errors"
	"github.com/driftlock/gatewaykit/wire"
)

// pendingResult is the outcome delivered to a suspended request caller.
type pendingResult struct {
	payload json.RawMessage
	err     error
}

// pendingRequest is one outstanding correlated request. It lives in the
// pending table from send until the first of: a matching response, a
// timeout, connection loss, or client close.
type pendingRequest struct {
	method string
	ch     chan pendingResult // buffered, capacity 1
	timer  *time.Timer
}

// fail resolves the entry with an error. The channel has capacity one and
// each entry is removed from the table before being resolved, so this never
// blocks and never double-sends.
func (p *pendingRequest) fail(err error) {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.ch <- pendingResult{err: err}
}

// addPending registers a new entry under id. The timeout rejects and
// removes the entry if no response arrives in time.
func (c *Client) addPending(id, method string, timeout time.Duration) *pendingRequest {
	p := &pendingRequest{
		method: method,
		ch:     make(chan pendingResult, 1),
	}
	p.timer = time.AfterFunc(timeout, func() {
		c.failPending(id, errors.RequestTimeout(
			"no response to "+method+" within "+timeout.String(),
		))
	})

	c.mu.Lock()
	c.pending[id] = p
	c.mu.Unlock()
	return p
}

// removePending drops an entry without resolving it (caller gave up).
func (c *Client) removePending(id string) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if ok && p.timer != nil {
		p.timer.Stop()
	}
}

// failPending resolves a single entry with an error, if still outstanding.
func (c *Client) failPending(id string, err error) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if ok {
		p.fail(err)
	}
}

// takePendingLocked empties the pending table and returns the entries.
// Caller must hold c.mu.
func (c *Client) takePendingLocked() []*pendingRequest {
	if len(c.pending) == 0 {
		return nil
	}
	taken := make([]*pendingRequest, 0, len(c.pending))
	for id, p := range c.pending {
		delete(c.pending, id)
		taken = append(taken, p)
	}
	return taken
}

// resolvePending matches a response frame to its pending entry. Responses
// with no matching entry (already timed out, already rejected) are dropped.
func (c *Client) resolvePending(f *wire.Frame) {
	c.mu.Lock()
	p, ok := c.pending[f.ID]
	if ok {
		delete(c.pending, f.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug().Str("id", f.ID).Msg("dropping unmatched response")
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}

	if f.Succeeded() {
		p.ch <- pendingResult{payload: f.Payload}
		return
	}
	p.ch <- pendingResult{err: errors.Remote(f.ErrorMessage())}
}
