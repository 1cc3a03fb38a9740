package grpcserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Prober keeps the health status of services in step with a dependency check.
type Prober struct {
	health   *health.Server
	check    func(ctx context.Context) error
	services []string
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// NewProber reports the overall status ("") and every named service.
func NewProber(hs *health.Server, check func(ctx context.Context) error, interval time.Duration, logger *zap.Logger, services ...string) *Prober {
	return &Prober{
		health:   hs,
		check:    check,
		services: append([]string{""}, services...),
		interval: interval,
		timeout:  interval / 2,
		logger:   logger.Named("health_prober"),
	}
}

// Probe runs the check once and publishes the resulting status.
func (p *Prober) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := p.check(ctx); err != nil {
		p.logger.Warn("Health check failed", zap.Error(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	for _, svc := range p.services {
		p.health.SetServingStatus(svc, st)
	}
	return st
}

// Run probes immediately and then on every tick until ctx is done, when all
// services are marked NOT_SERVING.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			p.health.Shutdown()
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
