package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lawnwatch/internal/alerts"
	"lawnwatch/internal/batcher"
	"lawnwatch/internal/config"
	"lawnwatch/internal/core"
	"lawnwatch/internal/db"
	"lawnwatch/internal/external"
	"lawnwatch/internal/forecasts"
	"lawnwatch/internal/monitor"
	notifcore "lawnwatch/internal/notifications/core"
	"lawnwatch/internal/prediction"
	"lawnwatch/internal/reschedule"
	"lawnwatch/internal/scheduler"
	"lawnwatch/internal/scoring"
	"lawnwatch/internal/telemetry"
	"lawnwatch/internal/types"
)

const (
	jobTimeout        = 5 * time.Minute
	readHeaderTimeout = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Monitor scheduled treatments and dispatch weather alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireServe(); err != nil {
				return err
			}

			logger := newLogger(os.Stdout, cfg.LogLevel, true).With(
				"service", cfg.Service,
				"env", cfg.Environment,
				"version", cfg.Build.Version,
			)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	clock := types.RealClock{}

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	awsCfg, err := newAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return err
	}

	recorder, metricsHandler := newRecorder(cfg.Observability.MetricsBackend, awsCfg, logger)

	weather := newWeatherClient(cfg.Weather, recorder, logger)
	gateway := forecasts.NewCachedGateway(weather, cfg.Weather.CacheTTL, clock, logger)

	treatmentRepo := db.NewTreatmentRepository(pool)
	sampleRepo := db.NewTrainingSampleRepository(pool)

	publisher, err := notifcore.NewAlertPublisher(
		sqs.NewFromConfig(awsCfg),
		cfg.AWS.AlertQueueURL,
		treatmentRepo,
		cfg.Alerts.CompressThreshold,
		clock,
		logger,
	)
	if err != nil {
		return fmt.Errorf("serve: alert publisher: %w", err)
	}

	timers := scheduler.NewTickerScheduler()

	alertBatcher := batcher.New(batcher.Config{
		Window:            cfg.Alerts.BatchWindow,
		MaxAlertsPerBatch: cfg.Alerts.MaxPerBatch,
		MinAlertPriority:  cfg.Alerts.MinPriority,
		DispatchTimeout:   cfg.Alerts.DispatchTimeout,
	}, batcher.Deps{
		Dispatcher: publisher,
		Scheduler:  timers,
		Clock:      clock,
		Metrics:    recorder,
		Logger:     logger,
	})

	optimizer := reschedule.NewOptimizer(reschedule.Config{
		AlertThreshold: cfg.Reschedule.AlertThreshold,
		DaysToCheck:    cfg.Reschedule.DaysToCheck,
	}, gateway, scoring.New(), clock, logger)

	manager := monitor.NewManager(monitor.Config{
		Default:      cfg.MonitoringDefaults(),
		CheckTimeout: cfg.Monitoring.CheckTimeout,
	}, monitor.Deps{
		Gateway:   gateway,
		Generator: alerts.NewGenerator(clock),
		Sink:      alertBatcher,
		Scheduler: timers,
		Suggester: optimizer,
		Clock:     clock,
		Metrics:   recorder,
		Logger:    logger,
	})

	engine, err := newEngine(cfg.Prediction, sampleRepo, clock, recorder, logger)
	if err != nil {
		return err
	}

	syncTreatments := func(ctx context.Context) error {
		res, err := manager.SyncTreatments(ctx, treatmentRepo, cfg.Monitoring.SyncHorizon, cfg.Monitoring.SyncConcurrency)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "treatment sync complete",
			"started", res.Started,
			"stopped", res.Stopped,
			"failed", res.Failed,
		)
		return nil
	}

	jobs := scheduler.NewCronRunner(jobTimeout, logger)
	if err := jobs.Add("treatment_sync", cfg.Monitoring.SyncSchedule, syncTreatments); err != nil {
		return err
	}
	if err := jobs.Add("model_retrain", cfg.Prediction.RetrainSchedule, engine.Retrain); err != nil {
		return err
	}

	startupCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	if err := syncTreatments(startupCtx); err != nil {
		logger.WarnContext(ctx, "initial treatment sync failed", "error", err)
	}
	cancel()

	ops := core.NewServer(core.Options{
		Logger: logger,
		Probes: []core.HealthProbe{
			core.ProbeFunc{ProbeName: "database", Fn: pool.Ping},
			core.ProbeFunc{ProbeName: "weather", Fn: func(context.Context) error {
				if weather.BreakerOpen() {
					return errors.New("circuit breaker open")
				}
				return nil
			}},
		},
		Metrics:  metricsHandler,
		Sessions: manager,
		Model:    engine,
		Build:    cfg.Build.Map(),
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           ops.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	jobs.Start()
	logger.InfoContext(ctx, "lawnwatch started", "ops_addr", cfg.Server.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := jobs.Stop(shutdownCtx); err != nil {
			logger.Warn("cron jobs did not stop in time", "error", err)
		}
		// Sessions stop first so no new alerts reach the batcher while it
		// flushes.
		manager.Shutdown(shutdownCtx)
		alertBatcher.Close(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newPool(ctx context.Context, c config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(c.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("database: parse DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = c.MaxConns
	poolCfg.MinConns = c.MinConns
	poolCfg.MaxConnLifetime = c.MaxConnLifetime
	poolCfg.HealthCheckPeriod = c.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}
	return pool, nil
}

func newAWSConfig(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("serve: load AWS config: %w", err)
	}
	if c.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(c.EndpointURL)
	}
	return awsCfg, nil
}

// newRecorder returns the metrics recorder for backend and, for
// Prometheus, the handler serving its registry.
func newRecorder(backend string, awsCfg aws.Config, logger *slog.Logger) (telemetry.Recorder, http.Handler) {
	switch backend {
	case "cloudwatch":
		return telemetry.NewCloudWatchRecorder(cloudwatch.NewFromConfig(awsCfg), logger), nil
	case "prometheus":
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return telemetry.NewPrometheusRecorder(reg), promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	default:
		return telemetry.Noop{}, nil
	}
}

func newWeatherClient(c config.WeatherConfig, recorder telemetry.Recorder, logger *slog.Logger) *external.OpenMeteoClient {
	policy := external.DefaultRetryPolicy()
	policy.MaxRetries = c.MaxRetries

	base := external.NewBaseClient(
		&http.Client{Timeout: c.Timeout},
		external.ProviderOpenMeteo,
		external.BreakerConfig{FailureThreshold: c.BreakerThreshold, OpenTimeout: c.BreakerTimeout},
		policy,
		c.UserAgent,
	)
	return external.NewOpenMeteoClient(base, c.BaseURL, recorder, logger)
}

func newEngine(c config.PredictionConfig, store prediction.SampleStore, clock types.Clock, recorder telemetry.Recorder, logger *slog.Logger) (*prediction.Engine, error) {
	weights, err := prediction.WeightsFromMap(c.FeatureWeights)
	if err != nil {
		return nil, fmt.Errorf("prediction weights: %w", err)
	}
	return prediction.NewEngine(prediction.Config{
		ConfidenceThreshold: c.ConfidenceThreshold,
		MinDataPoints:       c.MinDataPoints,
		TrainingInterval:    c.TrainingInterval,
		MaxTrainingSamples:  c.MaxSamples,
		FeatureWeights:      weights,
	}, store, clock, recorder, logger), nil
}
