package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/orbitalworks/satlink-rca/internal/config"
	"github.com/orbitalworks/satlink-rca/internal/models"
)

// NetworkLister enumerates the networks to sweep.
type NetworkLister interface {
	ListNetworks(ctx context.Context) ([]string, error)
}

// Sweeper periodically analyzes every known network with a bounded pool of
// workers. Individual network failures are logged and do not stop the sweep.
type Sweeper struct {
	service  *AnalysisService
	networks NetworkLister
	cfg      config.SweepConfig
	logger   *slog.Logger
}

// NewSweeper constructs a Sweeper.
func NewSweeper(service *AnalysisService, networks NetworkLister, cfg config.SweepConfig, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{service: service, networks: networks, cfg: cfg, logger: logger}
}

// Run sweeps once immediately and then on every interval tick until ctx is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce analyzes every network concurrently, bounded by the configured
// worker count.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	networks, err := s.networks.ListNetworks(ctx)
	if err != nil {
		s.logger.Error("network listing failed, skipping sweep", slog.Any("error", err))
		return
	}
	if len(networks) == 0 {
		s.logger.Info("no networks to sweep")
		return
	}

	start := time.Now()
	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for networkID := range jobs {
				s.sweepNetwork(ctx, networkID)
			}
		}()
	}

	for _, networkID := range networks {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case jobs <- networkID:
		}
	}
	close(jobs)
	wg.Wait()

	s.logger.Info("sweep completed",
		slog.Int("networks", len(networks)),
		slog.Duration("elapsed", time.Since(start)))
}

func (s *Sweeper) sweepNetwork(ctx context.Context, networkID string) {
	resp, err := s.service.Analyze(ctx, models.AnalysisRequest{
		Scope:    models.ScopeNetwork,
		EntityID: networkID,
	})
	if err != nil {
		s.logger.Warn("network sweep failed",
			slog.String("network_id", networkID), slog.Any("error", err))
		return
	}
	if len(resp.Analysis.Patterns) > 0 {
		s.logger.Info("sweep found degradation patterns",
			slog.String("network_id", networkID),
			slog.Int("patterns", len(resp.Analysis.Patterns)),
			slog.Float64("correlation_score", resp.Analysis.CorrelationScore))
	}
}
