package cli

import (
	nethttp "net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turtacn/CoverIQ-Intelligence/internal/application/authorities"
	"github.com/turtacn/CoverIQ-Intelligence/internal/config"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/prometheus"
	httpapi "github.com/turtacn/CoverIQ-Intelligence/internal/interfaces/http"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			log.Info("Starting CoverIQ-Intelligence API server",
				logging.String("version", Version),
				logging.Int("port", cfg.Server.Port),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Hot-reload the log level when the config file changes; all
			// other settings require a restart.
			if opts.configPath != "" {
				config.Watch(opts.configPath, func(next *config.Config) {
					if logging.SetLevel(log, next.Log.Level) {
						log.Info("Log level updated", logging.String("level", next.Log.Level))
					}
				})
			}

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.connectObjectStore(); err != nil {
				return err
			}
			a.connectProducer()

			var (
				appMetrics     *prometheus.AppMetrics
				metricsHandler nethttp.Handler
			)
			if cfg.Metrics.Enabled {
				collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
					Namespace:            cfg.Metrics.Namespace,
					EnableProcessMetrics: cfg.Metrics.EnableProcessMetrics,
					EnableGoMetrics:      cfg.Metrics.EnableGoMetrics,
				}, log.Named("metrics"))
				if err != nil {
					return err
				}
				appMetrics = prometheus.NewAppMetrics(collector)
				metricsHandler = collector.Handler()
			}

			engine, err := a.buildEngine(ctx, appMetrics)
			if err != nil {
				return err
			}
			extractionsSvc := a.buildExtractions()
			authoritiesSvc := authorities.NewService(a.authorityRepo, a.memberRepo,
				a.extractionRepo, a.contractRepo, engine, log.Named("authorities"))

			router := httpapi.NewRouter(httpapi.Services{
				Portfolios:  a.portfolios,
				Members:     a.members,
				Contracts:   a.contracts,
				Extractions: extractionsSvc,
				Authorities: authoritiesSvc,
				Exports:     a.exports,
				Prompts:     a.prompts,
			}, httpapi.RouterOptions{
				Logger:         log,
				Metrics:        appMetrics,
				MetricsHandler: metricsHandler,
				CORSOrigins:    cfg.Server.CORSOrigins,
				ReadinessChecks: map[string]httpapi.CheckFunc{
					"postgres": a.pg.HealthCheck,
					"redis":    a.rdb.Ping,
					"minio":    a.objects.HealthCheck,
				},
				MaxUploadBytes: cfg.Server.MaxUploadSize,
			})

			srv := httpapi.NewServer(cfg.Server, router, log.Named("http"))
			return srv.Start(ctx)
		},
	}
}
