package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/tablo/internal/pipeline"
	"github.com/MeKo-Tech/tablo/internal/table"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/gorilla/websocket"
)

const (
	wsTypeImage     = "image"
	wsTypeFragments = "fragments"

	wsStatusProcessing = "processing"
	wsStatusCompleted  = "completed"
	wsStatusError      = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the CORS origin setting on the HTTP endpoints.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketTableRequest is one request message on /ws/tables. Image carries the encoded
// image bytes (base64 in JSON); Fragments is used for type "fragments".
type WebSocketTableRequest struct {
	Type      string           `json:"type"`
	Image     []byte           `json:"image,omitempty"`
	Fragments []table.Fragment `json:"fragments,omitempty"`
	Headers   []string         `json:"headers,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
}

// WebSocketTableResponse is sent for progress, results and errors.
type WebSocketTableResponse struct {
	Type      string                `json:"type"`
	Status    string                `json:"status"`
	Progress  float64               `json:"progress,omitempty"`
	Result    *pipeline.TableResult `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
	ErrorType string                `json:"error_type,omitempty"`
	RequestID string                `json:"request_id,omitempty"`
}

// WebSocketConnWriter is the part of *websocket.Conn used to send messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// tablesWebSocketHandler upgrades the connection and serves table requests until the
// client disconnects.
func (s *Server) tablesWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	conn.SetReadLimit(s.maxUploadMB * 1024 * 1024 * 2)
	s.handleWebSocketConnection(conn)
}

func (s *Server) handleWebSocketConnection(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(conn, data)
		}
	}
}

// handleWebSocketMessage processes one request and writes its responses to conn.
func (s *Server) handleWebSocketMessage(conn WebSocketConnWriter, data []byte) {
	var req WebSocketTableRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = strconv.FormatInt(time.Now().UnixNano(), 10)
	}

	switch req.Type {
	case wsTypeImage:
		s.processWebSocketImage(conn, req)
	case wsTypeFragments:
		s.processWebSocketFragments(conn, req)
	default:
		s.sendWebSocketError(conn, req.RequestID, "invalid_request", "Unsupported request type: "+req.Type)
	}
}

func (s *Server) processWebSocketImage(conn WebSocketConnWriter, req WebSocketTableRequest) {
	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, req.RequestID, "invalid_request", "No image data provided")
		return
	}
	if s.pipeline == nil {
		s.sendWebSocketError(conn, req.RequestID, "unavailable", "Table pipeline not initialized")
		return
	}

	img, _, err := utils.DecodeImage(req.Image)
	if err != nil {
		s.sendWebSocketError(conn, req.RequestID, "invalid_request", fmt.Sprintf("Failed to decode image: %v", err))
		return
	}

	s.sendWebSocketResponse(conn, WebSocketTableResponse{
		Type:      "table_response",
		Status:    wsStatusProcessing,
		Progress:  0.1,
		RequestID: req.RequestID,
	})

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.pipelineFor(req.Headers).ExtractTableContext(ctx, img)
	if err != nil {
		recordFailure("websocket")
		s.sendWebSocketError(conn, req.RequestID, "processing_error", fmt.Sprintf("Table extraction failed: %v", err))
		return
	}
	recordResult("websocket", res.Table.NumRows(), time.Since(start).Seconds())

	s.sendWebSocketResponse(conn, WebSocketTableResponse{
		Type:      "table_response",
		Status:    wsStatusCompleted,
		Progress:  1.0,
		Result:    res,
		RequestID: req.RequestID,
	})
}

func (s *Server) processWebSocketFragments(conn WebSocketConnWriter, req WebSocketTableRequest) {
	opts := table.DefaultOptions()
	if s.pipeline != nil {
		opts = s.pipeline.Config().Table
	}
	if len(req.Headers) > 0 {
		opts.Headers = req.Headers
	}

	start := time.Now()
	res := pipeline.ReconstructFragments(req.Fragments, opts)
	recordResult("websocket", res.Table.NumRows(), time.Since(start).Seconds())

	s.sendWebSocketResponse(conn, WebSocketTableResponse{
		Type:      "table_response",
		Status:    wsStatusCompleted,
		Progress:  1.0,
		Result:    res,
		RequestID: req.RequestID,
	})
}

func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketTableResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketTableResponse{
		Type:      "error",
		Status:    wsStatusError,
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
