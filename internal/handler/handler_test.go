package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-assistant-go/internal/model"
	"rag-assistant-go/internal/service"
	"rag-assistant-go/pkg/llm"
)

type stubDocuments struct {
	n       int
	err     error
	sources []string
	opts    []service.IngestOptions
}

func (s *stubDocuments) IngestSource(_ context.Context, source string, opts service.IngestOptions) (int, error) {
	s.sources = append(s.sources, source)
	s.opts = append(s.opts, opts)
	return s.n, s.err
}

type stubSearch struct {
	results []model.SearchResult
	err     error
	queries []string
	opts    []service.SearchOptions
}

func (s *stubSearch) Retrieve(context.Context, string) ([]string, error) { return nil, nil }

func (s *stubSearch) Search(_ context.Context, query string, opts service.SearchOptions) ([]model.SearchResult, error) {
	s.queries = append(s.queries, query)
	s.opts = append(s.opts, opts)
	return s.results, s.err
}

type stubChat struct {
	err      error
	mu       sync.Mutex
	sessions []string
}

func (s *stubChat) seenSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sessions...)
}

func (s *stubChat) Answer(context.Context, string, string) (string, error) { return "", nil }

func (s *stubChat) StreamResponse(_ context.Context, sessionID, query string, writer llm.MessageWriter, _ func() bool) error {
	s.mu.Lock()
	s.sessions = append(s.sessions, sessionID)
	s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	b, _ := json.Marshal(map[string]string{"chunk": "echo: " + query})
	if err := writer.WriteMessage(websocket.TextMessage, b); err != nil {
		return err
	}
	return writer.WriteMessage(websocket.TextMessage, service.CompletionNotice())
}

type stubConversations struct {
	transcript []model.ChatMessage
	err        error
}

func (s *stubConversations) NewSessionID() string { return "3f1c0d5e-0000-4000-8000-000000000001" }

func (s *stubConversations) GetTranscript(context.Context, string) ([]model.ChatMessage, error) {
	return s.transcript, s.err
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(s Services) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(s)
}

func do(t *testing.T, r http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestIngestHandler(t *testing.T) {
	docs := &stubDocuments{n: 42}
	r := newTestRouter(Services{Documents: docs})

	w, env := do(t, r, http.MethodPost, "/api/v1/documents/ingest", `{"source":"embeddings/microwave_manual.txt","chunkSize":300,"truncate":false}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"source":"embeddings/microwave_manual.txt","chunks":42}`, string(env.Data))

	require.Len(t, docs.opts, 1)
	require.NotNil(t, docs.opts[0].ChunkSize)
	assert.Equal(t, 300, *docs.opts[0].ChunkSize)
	assert.Nil(t, docs.opts[0].Overlap)
	require.NotNil(t, docs.opts[0].Truncate)
	assert.False(t, *docs.opts[0].Truncate)
}

func TestIngestHandlerErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "missing source", body: `{}`, status: http.StatusBadRequest},
		{name: "bad chunking", body: `{"source":"a.txt"}`, err: fmt.Errorf("%w: overlap 4 must be smaller than chunk size 4", model.ErrConfiguration), status: http.StatusBadRequest},
		{name: "gateway", body: `{"source":"a.txt"}`, err: fmt.Errorf("%w: 429", model.ErrEmbeddingGateway), status: http.StatusBadGateway},
		{name: "mismatch", body: `{"source":"a.txt"}`, err: model.ErrEmbeddingMismatch, status: http.StatusBadGateway},
		{name: "store", body: `{"source":"a.txt"}`, err: fmt.Errorf("%w: connection refused", model.ErrPersistence), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(Services{Documents: &stubDocuments{err: tt.err}})
			w, env := do(t, r, http.MethodPost, "/api/v1/documents/ingest", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.status, env.Code)
		})
	}
}

func TestSearchHandler(t *testing.T) {
	search := &stubSearch{results: []model.SearchResult{{DocumentName: "m.txt", Text: "Press DEFROST.", Distance: 0.1, Score: 0.9}}}
	r := newTestRouter(Services{Search: search})

	w, env := do(t, r, http.MethodGet, "/api/v1/search?query=defrost&topK=2&scoreThreshold=0.7&mode=euclidean", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var results []model.SearchResult
	require.NoError(t, json.Unmarshal(env.Data, &results))
	assert.Equal(t, search.results, results)

	assert.Equal(t, []string{"defrost"}, search.queries)
	assert.Equal(t, "euclidean", search.opts[0].Mode)
	assert.Equal(t, 2, search.opts[0].TopK)
	require.NotNil(t, search.opts[0].ScoreThreshold)
	assert.Equal(t, 0.7, *search.opts[0].ScoreThreshold)
}

func TestSearchHandlerEmptyResult(t *testing.T) {
	r := newTestRouter(Services{Search: &stubSearch{}})
	w, env := do(t, r, http.MethodGet, "/api/v1/search?query=anything", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestSearchHandlerRejectsBadParameters(t *testing.T) {
	search := &stubSearch{}
	r := newTestRouter(Services{Search: search})

	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?query=q&mode=manhattan",
		"/api/v1/search?query=q&topK=0",
		"/api/v1/search?query=q&topK=abc",
		"/api/v1/search?query=q&scoreThreshold=high",
	} {
		w, env := do(t, r, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Equal(t, http.StatusBadRequest, env.Code, target)
		assert.NotEmpty(t, env.Message, target)
	}
	assert.Empty(t, search.queries)

	search.err = fmt.Errorf("%w: score threshold 2 outside [0, 1]", model.ErrConfiguration)
	w, _ := do(t, r, http.MethodGet, "/api/v1/search?query=q&scoreThreshold=2", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTranscriptHandler(t *testing.T) {
	conversations := &stubConversations{transcript: []model.ChatMessage{{Role: "user", Content: "q"}}}
	r := newTestRouter(Services{Conversations: conversations})

	w, env := do(t, r, http.MethodGet, "/api/v1/sessions/3f1c0d5e-0000-4000-8000-000000000001/transcript", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var got []model.ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "q", got[0].Content)

	conversations.err = fmt.Errorf("%w: invalid session id", model.ErrConfiguration)
	w, _ = do(t, r, http.MethodGet, "/api/v1/sessions/nope/transcript", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func dialChat(t *testing.T, r http.Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/chat", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestChatHandlerStreams(t *testing.T) {
	chat := &stubChat{}
	conn := dialChat(t, newTestRouter(Services{Chat: chat, Conversations: &stubConversations{}}))

	hello := readFrame(t, conn)
	assert.Equal(t, "session", hello["type"])
	assert.Equal(t, "3f1c0d5e-0000-4000-8000-000000000001", hello["sessionId"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("  How do I defrost?  ")))
	assert.Equal(t, "echo: How do I defrost?", readFrame(t, conn)["chunk"])
	assert.Equal(t, "completion", readFrame(t, conn)["type"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("second")))
	assert.Equal(t, "echo: second", readFrame(t, conn)["chunk"])
	assert.Equal(t, "completion", readFrame(t, conn)["type"])
	assert.Equal(t, []string{"3f1c0d5e-0000-4000-8000-000000000001", "3f1c0d5e-0000-4000-8000-000000000001"}, chat.seenSessions())
}

func TestChatHandlerReportsFailures(t *testing.T) {
	chat := &stubChat{err: errors.New("failed to retrieve context: retrieval failed")}
	conn := dialChat(t, newTestRouter(Services{Chat: chat, Conversations: &stubConversations{}}))
	readFrame(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("q")))
	assert.Contains(t, readFrame(t, conn)["error"], "temporarily unavailable")
	assert.Equal(t, "completion", readFrame(t, conn)["type"])
}

// pausingChat streams one chunk, then waits for the client to ask it to stop.
type pausingChat struct {
	stubChat
	stoppedAtStart []bool
	sawStop        []bool
}

func (p *pausingChat) StreamResponse(_ context.Context, _, query string, writer llm.MessageWriter, shouldStop func() bool) error {
	p.mu.Lock()
	p.stoppedAtStart = append(p.stoppedAtStart, shouldStop())
	p.mu.Unlock()

	b, _ := json.Marshal(map[string]string{"chunk": "first part of " + query})
	if err := writer.WriteMessage(websocket.TextMessage, b); err != nil {
		return err
	}
	deadline := time.Now().Add(2 * time.Second)
	for !shouldStop() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	p.mu.Lock()
	p.sawStop = append(p.sawStop, shouldStop())
	p.mu.Unlock()
	return writer.WriteMessage(websocket.TextMessage, service.CompletionNotice())
}

func TestChatHandlerStopFrame(t *testing.T) {
	chat := &pausingChat{}
	conn := dialChat(t, newTestRouter(Services{Chat: chat, Conversations: &stubConversations{}}))
	readFrame(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("How do I defrost?")))
	assert.Equal(t, "first part of How do I defrost?", readFrame(t, conn)["chunk"])
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop"}`)))
	assert.Equal(t, "completion", readFrame(t, conn)["type"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("next")))
	assert.Equal(t, "first part of next", readFrame(t, conn)["chunk"])
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop"}`)))
	assert.Equal(t, "completion", readFrame(t, conn)["type"])

	chat.mu.Lock()
	defer chat.mu.Unlock()
	assert.Equal(t, []bool{false, false}, chat.stoppedAtStart, "each question starts unstopped")
	assert.Equal(t, []bool{true, true}, chat.sawStop)
}

func TestIsStopFrame(t *testing.T) {
	assert.True(t, isStopFrame([]byte(`{"type":"stop"}`)))
	assert.False(t, isStopFrame([]byte(`{"type":"session"}`)))
	assert.False(t, isStopFrame([]byte("stop")))
}
