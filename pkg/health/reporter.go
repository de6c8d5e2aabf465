// Package health implements the Storage Element's periodic capacity/health
// publisher (§4.10): it samples backend capacity, derives thresholds and
// status, and publishes into the shared registry behind a circuit breaker
// so a flaky Redis never blocks request serving.
package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/BigKAA/artStore-sub005/pkg/backend"
	"github.com/BigKAA/artStore-sub005/pkg/capacity"
	"github.com/BigKAA/artStore-sub005/pkg/model"
	"github.com/BigKAA/artStore-sub005/pkg/registry"
)

// Reporter publishes this Storage Element's capacity and health into the
// shared registry every ReportInterval (§4.10).
type Reporter struct {
	ElementID      string
	Mode           model.Mode
	Endpoint       string
	Priority       int
	Backend        backend.Backend
	Registry       *registry.Client
	ReportInterval time.Duration
	Logger         *slog.Logger

	breaker *gobreaker.CircuitBreaker
}

// NewReporter builds a Reporter with a circuit breaker that opens after 3
// consecutive publish failures and probes again after 30s, mirroring the
// settings shape used for outbound integrations elsewhere in the pack.
func NewReporter(elementID string, m model.Mode, endpoint string, priority int, b backend.Backend, reg *registry.Client, reportInterval time.Duration, logger *slog.Logger) *Reporter {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "registry-publish:" + elementID,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("registry publish circuit breaker state change", "breaker", name, "from", from, "to", to)
			}
		},
	})

	return &Reporter{
		ElementID:      elementID,
		Mode:           m,
		Endpoint:       endpoint,
		Priority:       priority,
		Backend:        b,
		Registry:       reg,
		ReportInterval: reportInterval,
		Logger:         logger,
		breaker:        breaker,
	}
}

// Sample measures capacity and derives status, without publishing. Exposed
// separately so the compact `/capacity` HTTP endpoint can reuse it.
func (r *Reporter) Sample(ctx context.Context) (registry.Record, error) {
	c, err := r.Backend.Capacity(ctx)
	if err != nil {
		return registry.Record{}, err
	}

	thresholds := capacity.Derive(r.Mode, c.TotalBytes)
	status := capacity.StatusFor(r.Mode, thresholds, c.FreeBytes)
	percent := capacity.Percent(c.UsedBytes, c.TotalBytes)

	return registry.Record{
		ID:                r.ElementID,
		Mode:              r.Mode,
		CapacityTotal:     c.TotalBytes,
		CapacityUsed:      c.UsedBytes,
		CapacityFree:      c.FreeBytes,
		CapacityPercent:   percent,
		Endpoint:          r.Endpoint,
		Priority:          r.Priority,
		LastUpdated:       time.Now().UTC(),
		HealthStatus:      model.HealthHealthy,
		CapacityStatus:    status,
		ThresholdWarning:  thresholds.WarningFree,
		ThresholdCritical: thresholds.CriticalFree,
		ThresholdFull:     thresholds.FullFree,
	}, nil
}

// PublishOnce samples and publishes a single report through the circuit
// breaker. A tripped breaker causes this to return quickly without
// attempting Redis, satisfying "skip publishes and keep serving" (§4.10
// step 6).
func (r *Reporter) PublishOnce(ctx context.Context) error {
	rec, err := r.Sample(ctx)
	if err != nil {
		return err
	}

	_, err = r.breaker.Execute(func() (any, error) {
		return nil, r.Registry.Publish(ctx, rec, r.ReportInterval)
	})
	if err != nil && r.Logger != nil {
		r.Logger.Warn("registry publish failed or circuit open", "element_id", r.ElementID, "error", err)
	}
	return err
}

// Run publishes on ReportInterval until ctx is cancelled, then deregisters
// for a graceful shutdown (§4.10 step 5).
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			deregisterCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.Registry.Deregister(deregisterCtx, r.ElementID, r.Mode); err != nil && r.Logger != nil {
				r.Logger.Warn("deregistering on shutdown failed", "element_id", r.ElementID, "error", err)
			}
			return
		case <-ticker.C:
			_ = r.PublishOnce(ctx)
		}
	}
}
