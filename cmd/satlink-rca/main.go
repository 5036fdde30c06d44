package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/orbitalworks/satlink-rca/internal/config"
	"github.com/orbitalworks/satlink-rca/internal/engine"
	"github.com/orbitalworks/satlink-rca/internal/metrics"
	"github.com/orbitalworks/satlink-rca/internal/ml"
	"github.com/orbitalworks/satlink-rca/internal/models"
	"github.com/orbitalworks/satlink-rca/internal/repo"
	"github.com/orbitalworks/satlink-rca/internal/services"
	"github.com/orbitalworks/satlink-rca/internal/utils"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "satlink-rca",
		Short:        "Correlation and root-cause analysis for satellite link telemetry",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")

	root.AddCommand(newAnalyzeCommand(&configPath))
	root.AddCommand(newSweepCommand(&configPath))
	return root
}

func newAnalyzeCommand(configPath *string) *cobra.Command {
	var hours int

	analyze := &cobra.Command{
		Use:   "analyze",
		Short: "Run one correlation analysis and print the result as JSON",
	}
	analyze.PersistentFlags().IntVar(&hours, "hours", 0, "lookback window in hours (0 uses the configured default)")

	scopes := []struct {
		use   string
		short string
		scope models.CorrelationScope
	}{
		{"network <network-id>", "Correlate degradation across every link in a network", models.ScopeNetwork},
		{"hub <site-id>", "Correlate sustained instability across a hub's links", models.ScopeHubAntenna},
		{"satellite <satellite>", "Correlate degradation across links sharing a satellite", models.ScopeSatellite},
		{"link <link-id>", "Check one link for simultaneous bidirectional degradation", models.ScopeLinkBidirectional},
	}
	for _, sc := range scopes {
		scope := sc.scope
		analyze.AddCommand(&cobra.Command{
			Use:   sc.use,
			Short: sc.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runAnalysis(cmd.Context(), *configPath, scope, args[0], hours)
			},
		})
	}
	return analyze
}

func newSweepCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Continuously analyze all networks and expose Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(*configPath)
		},
	}
}

// app bundles everything a command needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *repo.Store
	service *services.AnalysisService
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

func buildApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		return nil, err
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		return nil, err
	}

	store, err := repo.NewStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to telemetry store", slog.Any("error", err))
		return nil, err
	}

	modelManager := ml.NewManager(cfg.Classifier.ModelsDir, logger)
	modelCache := ml.NewCache(cfg.Classifier.CacheCapacity, cfg.Classifier.CacheTTL,
		func(ctx context.Context, key string) (ml.Classifier, error) {
			if cfg.Classifier.Version != "" {
				classifier, _, err := modelManager.Load(key, cfg.Classifier.Version)
				return classifier, err
			}
			classifier, _, err := modelManager.LoadLatest(key)
			return classifier, err
		})
	provider := func(ctx context.Context) (ml.Classifier, error) {
		return modelCache.Get(ctx, cfg.Classifier.ModelName)
	}

	recommender, err := engine.NewRecommender(cfg.Recommendations.Path, logger)
	if err != nil {
		logger.Error("failed to load recommendation playbook", slog.Any("error", err))
		store.Close()
		return nil, err
	}

	eng := engine.New(
		store,
		engine.NewDetector(cfg.Detection),
		engine.NewCorrelator(cfg.Correlation, cfg.Detection),
		engine.NewSeverityScorer(cfg.Scoring),
		engine.NewConfidenceEstimator(cfg.Scoring, cfg.Detection),
		engine.NewRootCauseClassifier(provider, cfg.Classifier.ConfidenceFloor, logger),
		recommender,
		cfg.Engine,
		logger,
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		service: services.NewAnalysisService(eng, logger),
	}, nil
}

func runAnalysis(ctx context.Context, configPath string, scope models.CorrelationScope, entityID string, hours int) error {
	a, err := buildApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.service.Analyze(ctx, models.AnalysisRequest{
		Scope:         scope,
		EntityID:      entityID,
		HoursLookback: hours,
	})
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

func runSweep(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	a.logger.Info("starting sweep",
		slog.Duration("interval", a.cfg.Sweep.Interval),
		slog.Int("workers", a.cfg.Sweep.Workers),
		slog.String("metrics_address", a.cfg.Sweep.MetricsAddress))

	metricsServer := &http.Server{
		Addr:              a.cfg.Sweep.MetricsAddress,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	sweeper := services.NewSweeper(a.service, a.store, a.cfg.Sweep, a.logger)
	sweeper.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	a.logger.Info("sweep stopped")
	return nil
}
