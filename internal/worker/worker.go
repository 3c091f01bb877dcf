// Package worker runs the periodic health sweep that keeps routing
// decisions based on fresh provider health.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/robert-ris/prompts-generator-sub001/internal/manager"
)

type HealthSweeper struct {
	mgr      *manager.Manager
	interval time.Duration
}

func NewHealthSweeper(mgr *manager.Manager, interval time.Duration) *HealthSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HealthSweeper{mgr: mgr, interval: interval}
}

// Run sweeps until the context is cancelled. Each sweep probes all enabled
// providers concurrently; individual probe timeouts bound the sweep, so one
// slow provider cannot stall the loop.
func (s *HealthSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			statuses := s.mgr.CheckAllProviders(ctx)
			unhealthy := 0
			for _, h := range statuses {
				if !h.Healthy {
					unhealthy++
					log.Printf("health sweep: provider %s unhealthy: %s", h.Provider, h.Error)
				}
			}
			if unhealthy == 0 {
				log.Printf("health sweep: %d providers healthy", len(statuses))
			}
		}
	}
}
