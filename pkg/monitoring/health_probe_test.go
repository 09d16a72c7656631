package monitoring

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/domestic-ai/domestic-bot/pkg/errors"
	"github.com/domestic-ai/domestic-bot/pkg/logging"
	"github.com/domestic-ai/domestic-bot/pkg/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func descriptorFor(t *testing.T, addr net.Addr, endpoint string) services.Descriptor {
	tcpAddr, ok := addr.(*net.TCPAddr)
	require.True(t, ok)
	return services.Descriptor{
		Name:           "test-service",
		Host:           "127.0.0.1",
		Port:           tcpAddr.Port,
		HealthEndpoint: endpoint,
	}
}

func unusedPort(t *testing.T) int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())
	return port
}

func TestProbe_HTTP(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api_endpoints", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"result": ["generate", "rembg"]}`))
	})
	mux.HandleFunc("/created", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api_endpoints", http.StatusFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	probe := NewHealthProbe(logging.NewNopLogger())

	tests := []struct {
		name      string
		endpoint  string
		reachable bool
	}{
		{"status 200", "/api_endpoints", true},
		{"status 201 is not 200", "/created", false},
		{"status 500", "/broken", false},
		{"redirect is not followed", "/moved", false},
		{"missing path", "/nope", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := descriptorFor(t, server.Listener.Addr(), tt.endpoint)
			assert.Equal(t, tt.reachable, probe.IsReachable(context.Background(), d, time.Second))
		})
	}

	t.Run("timeout", func(t *testing.T) {
		d := descriptorFor(t, server.Listener.Addr(), "/slow")
		start := time.Now()
		err := probe.Check(context.Background(), d, 100*time.Millisecond)
		require.Error(t, err)
		assert.True(t, errors.IsTimeoutError(err))
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestProbe_ConnectionRefused(t *testing.T) {
	probe := NewHealthProbe(logging.NewNopLogger())
	d := services.Descriptor{Name: "API", Host: "127.0.0.1", Port: unusedPort(t), HealthEndpoint: "/api_endpoints"}

	err := probe.Check(context.Background(), d, time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsNetworkError(err))
	assert.False(t, probe.IsReachable(context.Background(), d, time.Second))
}

func TestProbe_InvalidTimeout(t *testing.T) {
	probe := NewHealthProbe(logging.NewNopLogger())
	d := services.Descriptor{Name: "API", Host: "127.0.0.1", Port: 8000}

	err := probe.Check(context.Background(), d, 0)
	assert.True(t, errors.IsValidationError(err))
}

func TestProbe_GRPC(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("imagen", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("rembg", healthpb.HealthCheckResponse_NOT_SERVING)

	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	go func() {
		_ = server.Serve(listener)
	}()
	defer server.Stop()

	probe := NewHealthProbe(logging.NewNopLogger())

	tests := []struct {
		name      string
		endpoint  string
		reachable bool
	}{
		{"overall server status", "", true},
		{"serving service", "/imagen", true},
		{"not serving service", "rembg", false},
		{"unknown service", "/nope", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := descriptorFor(t, listener.Addr(), tt.endpoint)
			d.Probe = services.ProbeKindGRPC
			assert.Equal(t, tt.reachable, probe.IsReachable(context.Background(), d, 2*time.Second))
		})
	}
}

func TestValidateProbeSchedule(t *testing.T) {
	assert.NoError(t, ValidateProbeSchedule(DefaultProbeSchedule()))
	assert.Error(t, ValidateProbeSchedule(ProbeSchedule{Attempts: 0, Timeout: time.Second}))
	assert.Error(t, ValidateProbeSchedule(ProbeSchedule{Attempts: 1, Timeout: 0}))
	assert.Error(t, ValidateProbeSchedule(ProbeSchedule{Attempts: 1, Timeout: time.Second, Interval: -time.Second}))
}
