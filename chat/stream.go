package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/driftlock/gatewaykit/errors"
	"github.com/driftlock/gatewaykit/wire"
)

// Stream is one in-flight streaming chat exchange. Chunks yields the
// incremental suffixes of the transcript in order; once the channel closes,
// Err reports how the stream ended. Concatenating every chunk reproduces
// the accumulated transcript exactly once.
type Stream struct {
	runID      string
	sessionKey string

	chunks chan string

	mu       sync.Mutex
	err      error
	degraded bool
}

// RunID returns the run identifier scoping this stream's events.
func (s *Stream) RunID() string {
	return s.runID
}

// SessionKey returns the session this stream belongs to.
func (s *Stream) SessionKey() string {
	return s.sessionKey
}

// Chunks returns the channel of text increments. It is closed when the
// stream ends, normally or otherwise.
func (s *Stream) Chunks() <-chan string {
	return s.chunks
}

// Err returns the terminal error, if any. Only meaningful after Chunks has
// been closed. A stream that produced output before a disconnect ends with
// a nil error (graceful degradation); Degraded distinguishes that case.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Degraded reports whether the stream ended because the connection was
// interrupted after partial output had been produced.
func (s *Stream) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Stream) finish(err error, degraded bool) {
	s.mu.Lock()
	s.err = err
	s.degraded = degraded
	s.mu.Unlock()
}

// progressStore is the slice of the progress cache the accumulation
// state writes to.
type progressStore interface {
	Save(sessionKey, runID, text string, seq uint64) error
	Clear(sessionKey string)
}

// runState is the accumulation state shared between the event listener
// (invoked from the client's read loop) and the stream's consumer
// goroutine. The listener only mutates state and signals; it never blocks.
type runState struct {
	runID      string
	sessionKey string
	cache      progressStore
	logger     zerolog.Logger

	mu       sync.Mutex
	acc      string
	seq      uint64
	done     bool
	degraded bool
	failErr  error

	notify chan struct{} // capacity 1; coalesced "state changed" signal
}

func newRunState(runID, sessionKey string, cache progressStore, logger zerolog.Logger) *runState {
	return &runState{
		runID:      runID,
		sessionKey: sessionKey,
		cache:      cache,
		logger:     logger,
		notify:     make(chan struct{}, 1),
	}
}

// onEvent applies one chat event to the accumulation state. Content is the
// full transcript so far, not a true delta: only strictly longer content
// replaces the accumulated value, so duplicate or stale resends are
// harmless no-ops.
func (st *runState) onEvent(ev *wire.ChatEvent) {
	st.mu.Lock()
	switch ev.State {
	case wire.StateDelta, wire.StateFinal:
		if text := ev.Text(); len(text) > len(st.acc) {
			st.acc = text
			st.seq = ev.Seq
			if err := st.cache.Save(st.sessionKey, st.runID, text, ev.Seq); err != nil {
				// The stream keeps going; only the cached transcript is at risk.
				st.logger.Warn().Err(err).
					Str("session", st.sessionKey).
					Str("runId", st.runID).
					Msg("saving progress entry failed")
			}
		}
		if ev.State == wire.StateFinal {
			st.done = true
			st.cache.Clear(st.sessionKey)
		}

	case wire.StateAborted:
		st.done = true
		st.cache.Clear(st.sessionKey)

	case wire.StateError:
		st.done = true
		if len(st.acc) > 0 {
			// Partial output survives a lost connection: the stream
			// completes with what it has, and the progress entry is kept
			// for later inspection.
			st.degraded = true
		} else {
			st.failErr = errors.StreamFailed(st.runID, ev.ErrorMessage,
				errors.WithSessionKey(st.sessionKey))
		}
	}
	st.mu.Unlock()

	st.signal()
}

func (st *runState) signal() {
	select {
	case st.notify <- struct{}{}:
	default:
	}
}

// snapshot returns the current accumulation state.
func (st *runState) snapshot() (acc string, done, degraded bool, failErr error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.acc, st.done, st.degraded, st.failErr
}
