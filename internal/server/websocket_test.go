package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/tablo/internal/table"
	"github.com/MeKo-Tech/tablo/internal/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConnWriter struct {
	mu       sync.Mutex
	messages [][]byte
}

func (m *mockConnWriter) WriteMessage(_ int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, data)
	return nil
}

func (m *mockConnWriter) responses(t *testing.T) []WebSocketTableResponse {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]WebSocketTableResponse, len(m.messages))
	for i, data := range m.messages {
		require.NoError(t, json.Unmarshal(data, &out[i]))
	}
	return out
}

func dialTables(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/tables"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readResponse(t *testing.T, conn *websocket.Conn) WebSocketTableResponse {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	var resp WebSocketTableResponse
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestWebSocket_Fragments(t *testing.T) {
	s, _ := newTestServer(t)
	conn := dialTables(t, s)

	require.NoError(t, conn.WriteJSON(WebSocketTableRequest{
		Type:      wsTypeFragments,
		Fragments: testutil.SampleFragments(),
		Headers:   []string{"Price"},
		RequestID: "req-1",
	}))

	resp := readResponse(t, conn)
	assert.Equal(t, "table_response", resp.Type)
	assert.Equal(t, wsStatusCompleted, resp.Status)
	assert.Equal(t, "req-1", resp.RequestID)
	require.NotNil(t, resp.Result)
	assert.Equal(t, []string{"Price", "Item", "Qty"}, resp.Result.Table.Columns)
}

func TestWebSocket_Image(t *testing.T) {
	s, img := newTestServer(t)
	conn := dialTables(t, s)

	require.NoError(t, conn.WriteJSON(WebSocketTableRequest{
		Type:      wsTypeImage,
		Image:     testutil.EncodePNG(t, img),
		RequestID: "req-2",
	}))

	progress := readResponse(t, conn)
	assert.Equal(t, wsStatusProcessing, progress.Status)
	assert.InDelta(t, 0.1, progress.Progress, 1e-9)

	done := readResponse(t, conn)
	assert.Equal(t, wsStatusCompleted, done.Status)
	assert.Equal(t, "req-2", done.RequestID)
	require.NotNil(t, done.Result)
	assert.True(t, done.Result.Found)
	assert.Equal(t, []string{"Item", "Qty", "Price"}, done.Result.Table.Columns)
	assert.Len(t, done.Result.Table.Rows, 4)
	assert.Equal(t, table.Value{}, done.Result.Table.Rows[3][1])
}

func TestHandleWebSocketMessage_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name      string
		message   string
		errorType string
		contains  string
	}{
		{name: "invalid json", message: "{", errorType: "invalid_request", contains: "Failed to parse request"},
		{name: "unknown type", message: `{"type": "video", "request_id": "x"}`, errorType: "invalid_request", contains: "Unsupported request type"},
		{name: "no image", message: `{"type": "image"}`, errorType: "invalid_request", contains: "No image data"},
		{name: "bad image", message: `{"type": "image", "image": "bm90IGFuIGltYWdl"}`, errorType: "invalid_request", contains: "Failed to decode image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &mockConnWriter{}
			s.handleWebSocketMessage(w, []byte(tt.message))

			resps := w.responses(t)
			require.Len(t, resps, 1)
			assert.Equal(t, "error", resps[0].Type)
			assert.Equal(t, wsStatusError, resps[0].Status)
			assert.Equal(t, tt.errorType, resps[0].ErrorType)
			assert.Contains(t, resps[0].Error, tt.contains)
		})
	}
}

func TestHandleWebSocketMessage_NoPipeline(t *testing.T) {
	s := NewServerWithPipeline(nil, Config{})
	w := &mockConnWriter{}

	s.handleWebSocketMessage(w, []byte(`{"type": "image", "image": "AQID"}`))
	resps := w.responses(t)
	require.Len(t, resps, 1)
	assert.Equal(t, "unavailable", resps[0].ErrorType)

	// fragments need no pipeline
	w = &mockConnWriter{}
	s.handleWebSocketMessage(w, []byte(`{"type": "fragments", "fragments": [{"text": "a", "box": [0, 0, 5, 5]}]}`))
	resps = w.responses(t)
	require.Len(t, resps, 1)
	assert.Equal(t, wsStatusCompleted, resps[0].Status)
	assert.NotEmpty(t, resps[0].RequestID)
}
