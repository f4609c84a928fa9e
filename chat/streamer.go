package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/driftlock/gatewaykit/errors"
	"github.com/driftlock/gatewaykit/gateway"
	"github.com/driftlock/gatewaykit/progress"
	"github.com/driftlock/gatewaykit/wire"
)

// DefaultRunTimeout is the timeout hint sent with chat requests, bounding
// the run on the gateway side. The client itself has no whole-stream
// timeout; only the initiating send is bounded locally.
const DefaultRunTimeout = 2 * time.Minute

// Streamer composes the gateway client and the progress cache into the
// "send and consume incremental output" operation.
type Streamer struct {
	client     *gateway.Client
	cache      *progress.Cache
	logger     zerolog.Logger
	runTimeout time.Duration
}

// NewStreamer creates a streamer over an existing client and cache.
func NewStreamer(client *gateway.Client, cache *progress.Cache, logger zerolog.Logger) *Streamer {
	return &Streamer{
		client:     client,
		cache:      cache,
		logger:     logger.With().Str("component", "chat").Logger(),
		runTimeout: DefaultRunTimeout,
	}
}

// Stream sends a message for the session and returns the resulting stream.
// The listener for the fresh run id is registered before the request goes
// out, so the first event can never race the registration. A failure to
// send is an immediate stream failure; after a successful send, the stream
// ends only through the event path (final, aborted, or error).
func (s *Streamer) Stream(ctx context.Context, sessionKey, message string) (*Stream, error) {
	runID := uuid.NewString()

	// A leftover entry from an earlier interrupted run is recorded here,
	// never merged into the new accumulation.
	if prev, ok := s.cache.Get(sessionKey); ok {
		s.logger.Info().
			Str("session", sessionKey).
			Str("previousRun", prev.RunID).
			Int("characters", len(prev.Text)).
			Msg("session has prior interrupted progress")
	}

	st := newRunState(runID, sessionKey, s.cache, s.logger)
	s.client.Subscribe(runID, st.onEvent)

	params := wire.ChatSendParams{
		SessionKey:     sessionKey,
		Message:        message,
		Deliver:        false,
		IdempotencyKey: runID,
		TimeoutMs:      int(s.runTimeout / time.Millisecond),
	}
	if _, err := s.client.Request(ctx, wire.MethodChatSend, params); err != nil {
		s.client.Unsubscribe(runID)
		return nil, errors.Wrap(err, "sending chat request",
			errors.WithSessionKey(sessionKey), errors.WithRunID(runID))
	}

	s.logger.Debug().Str("session", sessionKey).Str("runId", runID).Msg("chat stream started")

	stream := &Stream{
		runID:      runID,
		sessionKey: sessionKey,
		chunks:     make(chan string, 16),
	}
	go s.consume(ctx, st, stream)
	return stream, nil
}

// consume yields undelivered suffixes of the accumulated transcript until
// the run ends, then flushes whatever remains. The listener is always
// deregistered on the way out, on every path.
func (s *Streamer) consume(ctx context.Context, st *runState, stream *Stream) {
	defer close(stream.chunks)
	defer s.client.Unsubscribe(st.runID)

	delivered := 0
	for {
		select {
		case <-st.notify:
		case <-ctx.Done():
			stream.finish(errors.Wrap(ctx.Err(), "consuming chat stream",
				errors.WithRunID(st.runID)), false)
			return
		}

		acc, done, degraded, failErr := st.snapshot()

		if len(acc) > delivered {
			chunk := acc[delivered:]
			delivered = len(acc)
			select {
			case stream.chunks <- chunk:
			case <-ctx.Done():
				stream.finish(errors.Wrap(ctx.Err(), "consuming chat stream",
					errors.WithRunID(st.runID)), false)
				return
			}
		}

		if done {
			if degraded {
				s.logger.Warn().
					Str("session", st.sessionKey).
					Str("runId", st.runID).
					Int("characters", delivered).
					Msg("stream ended by connection interruption, partial output kept")
			}
			stream.finish(failErr, degraded)
			return
		}
	}
}

// Abort asks the gateway to stop a run. It is advisory: the local stream
// still terminates through the normal event path, so a final partial
// payload is never lost to an early local teardown.
func (s *Streamer) Abort(ctx context.Context, sessionKey, runID string) error {
	params := wire.ChatAbortParams{SessionKey: sessionKey, RunID: runID}
	if _, err := s.client.Request(ctx, wire.MethodChatAbort, params); err != nil {
		return errors.Wrap(err, "sending abort request",
			errors.WithSessionKey(sessionKey), errors.WithRunID(runID))
	}
	return nil
}

// Progress returns the cached partial transcript for a session, if an
// interrupted run left one behind within the TTL.
func (s *Streamer) Progress(sessionKey string) (*progress.Entry, bool) {
	return s.cache.Get(sessionKey)
}
