package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/config"
	"ragchat/internal/adapter/analyzer"
	"ragchat/internal/adapter/chunker"
	"ragchat/internal/adapter/embedding"
	"ragchat/internal/adapter/llm"
	"ragchat/internal/adapter/memstore"
	"ragchat/internal/adapter/retriever"
	"ragchat/internal/usecase"
)

func newTestServer(t *testing.T, model *llm.MockChatModel) *Server {
	t.Helper()

	tokenizer := analyzer.NewTokenizer(true)
	st := memstore.NewMemoryStore()
	vectors := memstore.NewMemoryVectorStore(8)
	embedder := embedding.NewMockEmbedder(8)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	svc := usecase.NewService(usecase.Options{
		Store:    st,
		Vectors:  vectors,
		Embedder: embedder,
		Chunker:  chunker.NewWindowChunker(512, 50, tokenizer),
		Dense:    retriever.NewDenseRetriever(vectors, embedder, st),
		Sparse:   retriever.NewSparseRetriever(st, tokenizer, 1.5, 0.75),
		Fuser:    retriever.NewFuser(60, 0.5, 0.5),
		Log:      log,
	})

	cfg := config.DefaultConfig()
	cfg.Server.APIKeyEnv = "RAGCHAT_TEST_API_KEY"

	if model == nil {
		model = &llm.MockChatModel{Deltas: []string{"test answer"}}
	}
	return New(cfg, svc, model, log)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestServer_Healthz(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "mock", body["model"])
}

func TestServer_IngestSearchDeleteRoundtrip(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	w := postJSON(t, h, "/ingest", map[string]string{
		"filename": "refunds.txt",
		"content":  "refunds are processed within fourteen business days",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var ingestBody map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ingestBody))
	docID, _ := ingestBody["doc_id"].(string)
	require.NotEmpty(t, docID)
	assert.EqualValues(t, 1, ingestBody["chunks"])

	w = postJSON(t, h, "/search", map[string]any{"query": "refund", "top_k": 5})
	require.Equal(t, http.StatusOK, w.Code)
	var searchBody struct {
		Results []struct {
			ChunkID string `json:"chunk_id"`
			DocID   string `json:"doc_id"`
		} `json:"results"`
		Count    int  `json:"count"`
		Degraded bool `json:"degraded"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &searchBody))
	require.Equal(t, 1, searchBody.Count)
	assert.Equal(t, docID, searchBody.Results[0].DocID)
	assert.False(t, searchBody.Degraded)

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Contains(t, w2.Body.String(), "refunds.txt")

	req = httptest.NewRequest(http.MethodDelete, "/documents/"+docID, nil)
	w3 := httptest.NewRecorder()
	h.ServeHTTP(w3, req)
	require.Equal(t, http.StatusOK, w3.Code)

	w = postJSON(t, h, "/search", map[string]any{"query": "refund"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestServer_IngestUnsupportedFormat(t *testing.T) {
	srv := newTestServer(t, nil)

	w := postJSON(t, srv.Handler(), "/ingest", map[string]string{
		"filename": "report.pdf",
		"content":  "%PDF-1.4",
	})
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestServer_SearchRequiresQuery(t *testing.T) {
	srv := newTestServer(t, nil)

	w := postJSON(t, srv.Handler(), "/search", map[string]any{"top_k": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_APIKeyAuth(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.apiKey = "secret"
	h := srv.Handler()

	w := postJSON(t, h, "/search", map[string]any{"query": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret")
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)

	// Health stays open without a key.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w3 := httptest.NewRecorder()
	h.ServeHTTP(w3, req)
	assert.Equal(t, http.StatusOK, w3.Code)
}

func TestServer_WebsocketChat(t *testing.T) {
	model := &llm.MockChatModel{Deltas: []string{"Streamed ", "reply."}}
	srv := newTestServer(t, model)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var greeting map[string]any
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, "connected", greeting["type"])

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "chat",
		"text":    "hello there",
		"use_rag": false,
	}))

	var full string
	for {
		var ev map[string]any
		require.NoError(t, conn.ReadJSON(&ev))
		switch ev["type"] {
		case "llm_delta":
			full += ev["delta"].(string)
		case "llm_complete":
			assert.Equal(t, "Streamed reply.", full)
			assert.EqualValues(t, len(full), ev["response_length"])
			return
		case "error":
			t.Fatalf("unexpected error event: %v", ev)
		}
	}
}

func TestServer_WebsocketPingAndClear(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var greeting map[string]any
	require.NoError(t, conn.ReadJSON(&greeting))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	var pong map[string]any
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "clear"}))
	var cleared map[string]any
	require.NoError(t, conn.ReadJSON(&cleared))
	assert.Equal(t, "cleared", cleared["type"])
}
