package grpcserver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

type fakePinger struct {
	down atomic.Bool
}

func (p *fakePinger) Ping(context.Context) error {
	if p.down.Load() {
		return errors.New("database is closed")
	}
	return nil
}

func healthClient(t *testing.T, addr string) grpc_health_v1.HealthClient {
	t.Helper()
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return grpc_health_v1.NewHealthClient(conn)
}

func check(t *testing.T, client grpc_health_v1.HealthClient, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthFollowsProbe(t *testing.T) {
	pinger := &fakePinger{}
	srv := NewServer(pinger, 20*time.Millisecond, nil)
	require.NoError(t, srv.Start(context.Background(), "127.0.0.1:0"))
	defer srv.Stop()

	client := healthClient(t, srv.Addr())
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, client, ServiceName))

	pinger.down.Store(true)
	assert.Eventually(t, func() bool {
		return check(t, client, ServiceName) == grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 20*time.Millisecond)

	pinger.down.Store(false)
	assert.Eventually(t, func() bool {
		return check(t, client, "") == grpc_health_v1.HealthCheckResponse_SERVING
	}, 2*time.Second, 20*time.Millisecond)
}

func TestNilPingerIsServing(t *testing.T) {
	srv := NewServer(nil, 0, nil)
	require.NoError(t, srv.Start(context.Background(), "127.0.0.1:0"))
	defer srv.Stop()

	assert.Equal(t, DefaultProbeInterval, srv.interval)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, healthClient(t, srv.Addr()), ""))
}

func TestStartInvalidAddress(t *testing.T) {
	srv := NewServer(nil, 0, nil)
	assert.Error(t, srv.Start(context.Background(), "127.0.0.1:-1"))
	assert.Empty(t, srv.Addr())
}
