package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zoneguard/zoneguard-ai/internal/audit"
	"github.com/zoneguard/zoneguard-ai/internal/metrics"
	"github.com/zoneguard/zoneguard-ai/internal/models"
	"github.com/zoneguard/zoneguard-ai/internal/orchestrator"
)

// WebSocket message types
const (
	MessageTypeTrace     = "trace"
	MessageTypeResult    = "result"
	MessageTypeError     = "error"
	MessageTypeHeartbeat = "heartbeat"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string               `json:"type"`
	Trace     *models.StepTrace    `json:"trace,omitempty"`
	Output    *orchestrator.Output `json:"output,omitempty"`
	Error     string               `json:"error,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// defaultOrigins are accepted when no allow list is configured.
var defaultOrigins = []string{"http://localhost:3000", "http://localhost:8501"}

// newUpgrader builds an upgrader that accepts requests without an Origin
// header, any origin when "*" is listed, and otherwise only listed origins.
func newUpgrader(allowed []string) websocket.Upgrader {
	if len(allowed) == 0 {
		allowed = defaultOrigins
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, a := range allowed {
				if a == "*" || strings.EqualFold(a, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSConnection represents an active pipeline WebSocket connection
type WSConnection struct {
	conn          *websocket.Conn
	server        *Server
	mu            sync.Mutex
	ctx           context.Context
	cancel        context.CancelFunc
	sessionID     string
	correlationID string
}

// handlePipelineWebSocket runs the pipeline once per received request and
// streams each step trace, then the aggregated output.
func (s *Server) handlePipelineWebSocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP connection to WebSocket
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	wsConn := &WSConnection{
		conn:          conn,
		server:        s,
		ctx:           ctx,
		cancel:        cancel,
		sessionID:     "ws-" + uuid.New().String(),
		correlationID: audit.GetCorrelationID(r.Context()),
	}

	s.wg.Add(1)
	defer s.wg.Done()
	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()

	s.logger.Info("websocket connection established", zap.String("session_id", wsConn.sessionID))
	wsConn.handle()
}

// handle manages the WebSocket connection lifecycle
func (wsc *WSConnection) handle() {
	defer func() {
		wsc.cancel()
		wsc.conn.Close()
		wsc.server.logger.Info("websocket connection closed", zap.String("session_id", wsc.sessionID))
	}()

	// Unblock the reader when the server shuts down
	go func() {
		<-wsc.ctx.Done()
		wsc.conn.Close()
	}()
	go wsc.heartbeat()

	for {
		var req PipelineRequest
		if err := wsc.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsc.server.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		wsc.run(req)
	}
}

// run executes one pipeline request on the connection.
func (wsc *WSConnection) run(req PipelineRequest) {
	s := wsc.server
	ctx := audit.WithCorrelationID(wsc.ctx, wsc.correlationID)

	horizon, lookback, err := s.pipelineParams(req)
	if err != nil {
		wsc.sendError(err.Error())
		return
	}
	history, err := s.loadHistory(ctx)
	if err != nil {
		wsc.sendError(err.Error())
		return
	}

	start := time.Now()
	out, err := s.runner.RunWithSink(ctx, history, req.Zone, horizon, lookback, func(t models.StepTrace) {
		trace := t
		_ = wsc.send(&WSMessage{Type: MessageTypeTrace, Trace: &trace, Timestamp: time.Now()})
	})
	if err != nil {
		_ = s.audit.LogPipelineFailed(ctx, req.Zone, err)
		wsc.sendError(err.Error())
		return
	}
	_ = s.audit.LogPipelineCompleted(ctx, req.Zone, len(out.Anomalies.Events), out.Reasoning != nil, time.Since(start))
	_ = wsc.send(&WSMessage{Type: MessageTypeResult, Output: out, Timestamp: time.Now()})
}

// send sends a message to the client
func (wsc *WSConnection) send(msg *WSMessage) error {
	wsc.mu.Lock()
	defer wsc.mu.Unlock()

	_ = wsc.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return wsc.conn.WriteJSON(msg)
}

// sendError sends an error message to the client
func (wsc *WSConnection) sendError(errMsg string) {
	_ = wsc.send(&WSMessage{
		Type:      MessageTypeError,
		Error:     errMsg,
		Timestamp: time.Now(),
	})
}

// heartbeat sends periodic heartbeat messages
func (wsc *WSConnection) heartbeat() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-wsc.ctx.Done():
			return
		case <-ticker.C:
			_ = wsc.send(&WSMessage{
				Type:      MessageTypeHeartbeat,
				Timestamp: time.Now(),
			})
		}
	}
}
