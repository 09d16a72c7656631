package monitoring

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/domestic-ai/domestic-bot/pkg/errors"
	"github.com/domestic-ai/domestic-bot/pkg/logging"
	"github.com/domestic-ai/domestic-bot/pkg/services"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// maxDrainBytes caps how much of a health response body is read before closing it
const maxDrainBytes = 4096

// HealthProbe performs a single bounded liveness check; it never retries
type HealthProbe interface {
	IsReachable(ctx context.Context, descriptor services.Descriptor, timeout time.Duration) bool
}

type Probe struct {
	client *http.Client
	logger logging.Logger
}

// NewHealthProbe returns a probe speaking HTTP or the gRPC health protocol,
// depending on the descriptor's probe kind
func NewHealthProbe(logger logging.Logger) *Probe {
	return &Probe{
		client: &http.Client{
			// Never follow redirects; only a direct 200 counts
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

func (p *Probe) IsReachable(ctx context.Context, descriptor services.Descriptor, timeout time.Duration) bool {
	err := p.Check(ctx, descriptor, timeout)
	if err != nil {
		p.logger.Debugf("Health probe failed, service: %s, error: %v", descriptor.Name, err)
		return false
	}
	p.logger.Debugf("Health probe passed, service: %s", descriptor.Name)
	return true
}

// Check reports why a descriptor is unreachable, or nil when it is reachable
func (p *Probe) Check(ctx context.Context, descriptor services.Descriptor, timeout time.Duration) error {
	if timeout <= 0 {
		return errors.NewValidationError("probe timeout must be positive", nil).WithContext("service", descriptor.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch descriptor.EffectiveProbe() {
	case services.ProbeKindHTTP:
		return p.checkHTTP(ctx, descriptor)
	case services.ProbeKindGRPC:
		return p.checkGRPC(ctx, descriptor)
	default:
		return errors.NewValidationError("unsupported probe kind: "+string(descriptor.Probe), nil).WithContext("service", descriptor.Name)
	}
}

func (p *Probe) checkHTTP(ctx context.Context, descriptor services.Descriptor) error {
	url := descriptor.URL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.NewValidationError("failed to create HTTP request", err).WithContext("url", url)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.NewTimeoutError("HTTP request timed out", err).WithContext("url", url)
		}
		return errors.NewNetworkError("HTTP request failed", err).WithContext("url", url)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode != http.StatusOK {
		return errors.NewHealthCheckError(fmt.Sprintf("unexpected status: %s", resp.Status), nil).WithContext("url", url)
	}
	return nil
}

func (p *Probe) checkGRPC(ctx context.Context, descriptor services.Descriptor) error {
	address := descriptor.Address()

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return errors.NewNetworkError("failed to create gRPC client", err).WithContext("address", address)
	}
	defer conn.Close()

	service := strings.TrimPrefix(descriptor.HealthEndpoint, "/")
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.NewTimeoutError("gRPC health check timed out", err).WithContext("address", address)
		}
		return errors.NewNetworkError("gRPC health check failed", err).WithContext("address", address)
	}

	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return errors.NewHealthCheckError("service not serving: "+resp.GetStatus().String(), nil).
			WithContext("address", address).
			WithContext("grpc_service", service)
	}
	return nil
}
