package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/driftlock/gatewaykit/config"
	"github.com/driftlock/gatewaykit/errors"
	"github.com/driftlock/gatewaykit/gateway"
	"github.com/driftlock/gatewaykit/progress"
	"github.com/driftlock/gatewaykit/wire"
)

// fakeGateway acks the handshake and chat requests, and lets tests push
// scripted chat events down the wire.
type fakeGateway struct {
	t      *testing.T
	server *httptest.Server

	sends  chan wire.ChatSendParams
	aborts chan wire.ChatAbortParams

	mu       sync.Mutex
	failSend bool
	conn     *websocket.Conn
}

func (gw *fakeGateway) setFailSend(fail bool) {
	gw.mu.Lock()
	gw.failSend = fail
	gw.mu.Unlock()
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	gw := &fakeGateway{
		t:      t,
		sends:  make(chan wire.ChatSendParams, 8),
		aborts: make(chan wire.ChatAbortParams, 8),
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	gw.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		gw.mu.Lock()
		gw.conn = conn
		gw.mu.Unlock()
		gw.serve(conn)
	}))
	t.Cleanup(gw.server.Close)
	return gw
}

func (gw *fakeGateway) serve(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f, err := wire.Parse(data)
		if err != nil || !f.IsRequest() {
			continue
		}

		switch f.Method {
		case wire.MethodConnect:
			gw.reply(f.ID, nil, "")
		case wire.MethodChatSend:
			var params wire.ChatSendParams
			json.Unmarshal(f.Params, &params)
			gw.sends <- params
			gw.mu.Lock()
			fail := gw.failSend
			gw.mu.Unlock()
			if fail {
				gw.reply(f.ID, nil, "agent unavailable")
				continue
			}
			gw.reply(f.ID, map[string]string{"runId": params.IdempotencyKey}, "")
		case wire.MethodChatAbort:
			var params wire.ChatAbortParams
			json.Unmarshal(f.Params, &params)
			gw.aborts <- params
			gw.reply(f.ID, nil, "")
		}
	}
}

func (gw *fakeGateway) reply(id string, payload interface{}, errMsg string) {
	var f *wire.Frame
	if errMsg != "" {
		f = wire.NewErrorResponse(id, "FAILED", errMsg)
	} else {
		f, _ = wire.NewResponse(id, payload)
	}
	gw.write(f)
}

func (gw *fakeGateway) write(f *wire.Frame) {
	data, err := wire.Marshal(f)
	if err != nil {
		gw.t.Errorf("marshal frame: %v", err)
		return
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.conn.WriteMessage(websocket.TextMessage, data)
}

func (gw *fakeGateway) pushChat(seq uint64, ev *wire.ChatEvent) {
	ev.Seq = seq
	f, err := wire.NewEvent(wire.EventChat, seq, ev)
	if err != nil {
		gw.t.Errorf("build event: %v", err)
		return
	}
	gw.write(f)
}

func (gw *fakeGateway) dropConnection() {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.conn.Close()
}

func delta(runID, text string) *wire.ChatEvent {
	return &wire.ChatEvent{
		RunID: runID,
		State: wire.StateDelta,
		Message: &wire.ChatMessage{
			Content: []wire.ContentPart{{Type: "text", Text: text}},
		},
	}
}

func final(runID, text string) *wire.ChatEvent {
	ev := delta(runID, text)
	ev.State = wire.StateFinal
	return ev
}

type testRig struct {
	gw       *fakeGateway
	streamer *Streamer
	cache    *progress.Cache
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	gw := newFakeGateway(t)

	cfg := config.Default()
	cfg.GatewayURL = "ws" + strings.TrimPrefix(gw.server.URL, "http")
	cfg.ReconnectInterval = 10 * time.Millisecond
	cfg.MaxReconnectInterval = 50 * time.Millisecond
	cfg.PingInterval = 0

	client, err := gateway.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	cache, err := progress.NewCache(0, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cache.Close() })

	return &testRig{
		gw:       gw,
		streamer: NewStreamer(client, cache, zerolog.Nop()),
		cache:    cache,
	}
}

// start begins a stream and returns it with the run id the server saw.
func (r *testRig) start(t *testing.T, sessionKey, message string) (*Stream, string) {
	t.Helper()
	stream, err := r.streamer.Stream(context.Background(), sessionKey, message)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	select {
	case params := <-r.gw.sends:
		if params.SessionKey != sessionKey {
			t.Errorf("sessionKey = %q, want %q", params.SessionKey, sessionKey)
		}
		if params.Deliver {
			t.Error("deliver must be false")
		}
		if params.IdempotencyKey != stream.RunID() {
			t.Error("idempotency key must equal the run id")
		}
		if params.TimeoutMs <= 0 {
			t.Error("timeoutMs missing")
		}
		return stream, params.IdempotencyKey
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the chat request")
		return nil, ""
	}
}

// collectAll drains the stream until its channel closes.
func collectAll(t *testing.T, stream *Stream) []string {
	t.Helper()
	var chunks []string
	for {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				return chunks
			}
			chunks = append(chunks, chunk)
		case <-time.After(3 * time.Second):
			t.Fatalf("stream stalled after %v", chunks)
		}
	}
}

// collectUntil drains chunks until their concatenation equals want.
func collectUntil(t *testing.T, stream *Stream, want string) {
	t.Helper()
	var got string
	for got != want {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				t.Fatalf("stream closed early with %q, want %q", got, want)
			}
			got += chunk
		case <-time.After(3 * time.Second):
			t.Fatalf("stream stalled at %q, want %q", got, want)
		}
	}
}

func TestStreamScenario(t *testing.T) {
	r := newTestRig(t)
	stream, runID := r.start(t, "s1", "hi")

	r.gw.pushChat(1, delta(runID, "He"))
	r.gw.pushChat(2, delta(runID, "Hello"))
	r.gw.pushChat(3, final(runID, "Hello!"))

	chunks := collectAll(t, stream)
	if strings.Join(chunks, "") != "Hello!" {
		t.Errorf("chunks = %v, concatenation should be %q", chunks, "Hello!")
	}
	if err := stream.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
	if stream.Degraded() {
		t.Error("clean completion must not be degraded")
	}
	if _, ok := r.cache.Get("s1"); ok {
		t.Error("progress entry must be cleared on normal completion")
	}
}

func TestStreamNeverReplaysDeliveredText(t *testing.T) {
	r := newTestRig(t)
	stream, runID := r.start(t, "s1", "hi")

	// Duplicates and stale resends carry content no longer than what has
	// been accumulated; they must produce no increments.
	r.gw.pushChat(1, delta(runID, "He"))
	r.gw.pushChat(2, delta(runID, "He"))
	r.gw.pushChat(3, delta(runID, "Hel"))
	r.gw.pushChat(4, delta(runID, "H"))
	r.gw.pushChat(5, final(runID, "Hello"))

	chunks := collectAll(t, stream)
	if got := strings.Join(chunks, ""); got != "Hello" {
		t.Errorf("concatenation = %q, want %q (chunks %v)", got, "Hello", chunks)
	}
	for _, chunk := range chunks {
		if chunk == "" {
			t.Error("empty increment yielded")
		}
	}
}

func TestStreamGracefulDegradationOnDisconnect(t *testing.T) {
	r := newTestRig(t)
	stream, runID := r.start(t, "s1", "hi")

	r.gw.pushChat(1, delta(runID, "Hello wor"))
	collectUntil(t, stream, "Hello wor")

	// Kill the connection; the client synthesizes an error-state event.
	r.gw.dropConnection()

	select {
	case chunk, ok := <-stream.Chunks():
		if ok {
			t.Fatalf("unexpected chunk %q after disconnect", chunk)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not end after disconnect")
	}

	if err := stream.Err(); err != nil {
		t.Errorf("degraded stream must not fail, got %v", err)
	}
	if !stream.Degraded() {
		t.Error("stream should report degraded completion")
	}

	// The partial transcript survives for later inspection.
	entry, ok := r.cache.Get("s1")
	if !ok {
		t.Fatal("progress entry must be kept on degraded completion")
	}
	if entry.Text != "Hello wor" || entry.RunID != runID {
		t.Errorf("unexpected progress entry: %+v", entry)
	}
}

func TestStreamHardFailureWithoutOutput(t *testing.T) {
	r := newTestRig(t)
	stream, runID := r.start(t, "s1", "hi")

	r.gw.pushChat(1, &wire.ChatEvent{
		RunID:        runID,
		State:        wire.StateError,
		ErrorMessage: "backend exploded",
	})

	chunks := collectAll(t, stream)
	if len(chunks) != 0 {
		t.Errorf("failed stream yielded chunks: %v", chunks)
	}
	err := stream.Err()
	if !errors.Is(err, errors.ErrCodeStreamFailed) {
		t.Fatalf("expected STREAM_FAILED, got %v", err)
	}
	if !strings.Contains(err.Error(), "backend exploded") {
		t.Errorf("error message not surfaced: %v", err)
	}
}

func TestStreamSendFailure(t *testing.T) {
	r := newTestRig(t)
	r.gw.setFailSend(true)

	_, err := r.streamer.Stream(context.Background(), "s1", "hi")
	if !errors.Is(err, errors.ErrCodeRemote) {
		t.Fatalf("expected REMOTE_ERROR, got %v", err)
	}
	if !strings.Contains(err.Error(), "agent unavailable") {
		t.Errorf("remote message not surfaced: %v", err)
	}
}

func TestStreamAbort(t *testing.T) {
	r := newTestRig(t)
	stream, runID := r.start(t, "s1", "long task")

	r.gw.pushChat(1, delta(runID, "working"))
	collectUntil(t, stream, "working")

	if err := r.streamer.Abort(context.Background(), "s1", runID); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	select {
	case params := <-r.gw.aborts:
		if params.SessionKey != "s1" || params.RunID != runID {
			t.Errorf("abort params = %+v", params)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the abort request")
	}

	// Abort is advisory: termination arrives through the event path.
	r.gw.pushChat(2, &wire.ChatEvent{RunID: runID, State: wire.StateAborted})

	select {
	case _, ok := <-stream.Chunks():
		if ok {
			t.Fatal("unexpected chunk after abort")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not end after aborted event")
	}
	if err := stream.Err(); err != nil {
		t.Errorf("aborted stream should end cleanly, got %v", err)
	}
	if _, ok := r.cache.Get("s1"); ok {
		t.Error("progress entry must be cleared after aborted completion")
	}
}

// failingStore rejects every save, simulating a broken progress cache.
type failingStore struct {
	saves int
}

func (f *failingStore) Save(sessionKey, runID, text string, seq uint64) error {
	f.saves++
	return fmt.Errorf("store unavailable")
}

func (f *failingStore) Clear(sessionKey string) {}

func TestProgressSaveFailureDoesNotStopStream(t *testing.T) {
	var logBuf bytes.Buffer
	store := &failingStore{}
	st := newRunState("run-1", "s1", store, zerolog.New(&logBuf))

	st.onEvent(delta("run-1", "He"))
	st.onEvent(final("run-1", "Hello"))

	acc, done, degraded, failErr := st.snapshot()
	if acc != "Hello" || !done || degraded || failErr != nil {
		t.Errorf("snapshot = (%q, %v, %v, %v), accumulation must survive save failures",
			acc, done, degraded, failErr)
	}
	if store.saves != 2 {
		t.Errorf("saves = %d, want 2", store.saves)
	}
	if !strings.Contains(logBuf.String(), "saving progress entry failed") {
		t.Error("save failure was not logged")
	}
}

func TestPriorProgressIsNotMerged(t *testing.T) {
	r := newTestRig(t)

	// Leftover state from an earlier interrupted run for the same session.
	if err := r.cache.Save("s1", "old-run", "OLD PARTIAL", 9); err != nil {
		t.Fatal(err)
	}

	stream, runID := r.start(t, "s1", "again")
	r.gw.pushChat(1, delta(runID, "N"))
	r.gw.pushChat(2, final(runID, "New"))

	chunks := collectAll(t, stream)
	if got := strings.Join(chunks, ""); got != "New" {
		t.Errorf("concatenation = %q, old progress must not leak in", got)
	}
}
