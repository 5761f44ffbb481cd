package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoneguard/zoneguard-ai/internal/orchestrator"
)

func TestUpgraderCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", nil, "", true},
		{"default localhost", nil, "http://localhost:3000", true},
		{"default streamlit", nil, "http://localhost:8501", true},
		{"default rejects other", nil, "https://evil.example", false},
		{"configured match", []string{"https://ops.example"}, "https://ops.example", true},
		{"configured case insensitive", []string{"https://ops.example"}, "HTTPS://OPS.EXAMPLE", true},
		{"configured rejects default", []string{"https://ops.example"}, "http://localhost:3000", false},
		{"wildcard", []string{"*"}, "https://anything.example", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newUpgrader(tt.allowed)
			req := httptest.NewRequest(http.MethodGet, "/ws/pipeline", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, up.CheckOrigin(req))
		})
	}
}

func dialPipeline(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/pipeline"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPipelineWebSocket_StreamsTracesThenResult(t *testing.T) {
	srv, _ := newTestServer(t, true)
	conn := dialPipeline(t, srv)

	horizon, lookback := 3, 72
	require.NoError(t, conn.WriteJSON(PipelineRequest{Zone: "zone_02", Horizon: &horizon, Lookback: &lookback}))

	var steps []string
	var out *orchestrator.Output
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	for out == nil {
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		switch msg.Type {
		case MessageTypeTrace:
			require.NotNil(t, msg.Trace)
			steps = append(steps, msg.Trace.Step)
		case MessageTypeResult:
			out = msg.Output
		case MessageTypeError:
			t.Fatalf("unexpected error message: %s", msg.Error)
		}
	}

	require.NotNil(t, out)
	assert.Equal(t, "zone_02", out.ZoneID)
	assert.Len(t, steps, 4)
	assert.ElementsMatch(t, []string{
		orchestrator.StepForecast, orchestrator.StepAnomaly, orchestrator.StepReason, orchestrator.StepAction,
	}, steps)
	assert.Len(t, out.Traces, len(steps))
}

func TestPipelineWebSocket_ErrorKeepsConnectionOpen(t *testing.T) {
	srv, _ := newTestServer(t, true)
	conn := dialPipeline(t, srv)
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	bad := 100
	require.NoError(t, conn.WriteJSON(PipelineRequest{Zone: "zone_01", Horizon: &bad}))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Contains(t, msg.Error, "horizon")

	require.NoError(t, conn.WriteJSON(PipelineRequest{Zone: "zone_01"}))
	for {
		var next WSMessage
		require.NoError(t, conn.ReadJSON(&next))
		if next.Type == MessageTypeResult {
			assert.Equal(t, "zone_01", next.Output.ZoneID)
			return
		}
		require.NotEqual(t, MessageTypeError, next.Type, next.Error)
	}
}

func TestPipelineWebSocket_EmptyStore(t *testing.T) {
	srv, _ := newTestServer(t, false)
	conn := dialPipeline(t, srv)
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	require.NoError(t, conn.WriteJSON(PipelineRequest{Zone: "zone_01"}))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Contains(t, msg.Error, "no operational data loaded")
}
