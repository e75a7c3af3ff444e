// Package health aggregates liveness across the message store and every
// registered platform adapter.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zulandar/switchboard/internal/messaging"
	"github.com/zulandar/switchboard/internal/platform"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

const defaultProbeTimeout = 5 * time.Second

// StoreProber is the slice of messaging.Client the aggregator needs.
type StoreProber interface {
	HealthCheck(ctx context.Context) messaging.Health
}

// Report is one aggregated health snapshot. Status is ok only when the
// store and every adapter probe came back healthy.
type Report struct {
	Status    string                     `json:"status"`
	Services  map[string]platform.Health `json:"services"`
	A2A       messaging.Health           `json:"a2a"`
	Timestamp time.Time                  `json:"timestamp"`
}

// Aggregator fans health probes out to the store and all adapters.
type Aggregator struct {
	registry     *platform.Registry
	a2a          StoreProber
	probeTimeout time.Duration
}

// NewAggregator creates an Aggregator. A probeTimeout <= 0 falls back to 5s.
func NewAggregator(registry *platform.Registry, a2a StoreProber, probeTimeout time.Duration) *Aggregator {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	return &Aggregator{
		registry:     registry,
		a2a:          a2a,
		probeTimeout: probeTimeout,
	}
}

// Aggregate probes everything concurrently and never blocks longer than the
// probe timeout. Probes are fresh per call, nothing is cached.
func (a *Aggregator) Aggregate(ctx context.Context) Report {
	adapters := a.registry.All()
	results := make([]platform.Health, len(adapters))

	var wg sync.WaitGroup
	for i, ad := range adapters {
		wg.Add(1)
		go func(i int, ad platform.Adapter) {
			defer wg.Done()
			results[i] = a.probeAdapter(ctx, ad)
		}(i, ad)
	}

	var a2aHealth messaging.Health
	wg.Add(1)
	go func() {
		defer wg.Done()
		a2aHealth = a.probeStore(ctx)
	}()
	wg.Wait()

	status := StatusOK
	services := make(map[string]platform.Health, len(adapters))
	for i, ad := range adapters {
		services[ad.Name()] = results[i]
		if !results[i].Healthy {
			status = StatusDegraded
		}
	}
	if a2aHealth.Status != "healthy" {
		status = StatusDegraded
	}

	return Report{
		Status:    status,
		Services:  services,
		A2A:       a2aHealth,
		Timestamp: time.Now().UTC(),
	}
}

// probeAdapter bounds one adapter probe. A probe that overruns the timeout
// is reported unhealthy and its late result discarded.
func (a *Aggregator) probeAdapter(ctx context.Context, ad platform.Adapter) platform.Health {
	pctx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	ch := make(chan platform.Health, 1)
	go func() {
		ch <- ad.HealthCheck(pctx)
	}()

	select {
	case h := <-ch:
		return h
	case <-pctx.Done():
		return platform.Health{
			Service: ad.Name(),
			Healthy: false,
			Detail:  fmt.Sprintf("health probe timed out after %s", a.probeTimeout),
		}
	}
}

func (a *Aggregator) probeStore(ctx context.Context) messaging.Health {
	pctx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	ch := make(chan messaging.Health, 1)
	go func() {
		ch <- a.a2a.HealthCheck(pctx)
	}()

	select {
	case h := <-ch:
		return h
	case <-pctx.Done():
		return messaging.Health{
			Status: "unhealthy",
			Detail: fmt.Sprintf("health probe timed out after %s", a.probeTimeout),
		}
	}
}
