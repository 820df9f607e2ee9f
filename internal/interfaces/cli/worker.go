package cli

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/CoverIQ-Intelligence/internal/application/extractions"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
)

func newWorkerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the extraction worker",
		Long: "The worker consumes extraction request events from Kafka, runs the\n" +
			"configured LLM against the contract text, and stores the results.  A\n" +
			"periodic sweep recovers pending jobs whose events were lost before\n" +
			"reaching the broker and jobs stranded mid-run by a crashed worker.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			log.Info("Starting extraction worker", logging.String("version", Version))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			a.connectProducer()
			engine, err := a.buildEngine(ctx, nil)
			if err != nil {
				return err
			}
			worker := extractions.NewWorker(a.buildExtractions(), engine, nil, log.Named("worker"))

			consumer := kafka.NewConsumer(cfg.Kafka, cfg.Worker, a.producer, log.Named("consumer"))
			if err := consumer.Start(ctx, worker.HandleEnvelope); err != nil {
				return err
			}

			pollInterval := cfg.Worker.PollInterval
			if pollInterval <= 0 {
				pollInterval = 30 * time.Second
			}
			sweepLimit := cfg.Worker.Concurrency
			if sweepLimit < 1 {
				sweepLimit = 10
			}
			// Jobs stuck in processing this long are considered orphaned by
			// a dead worker and swept back up.
			staleAfter := 2 * cfg.Worker.JobTimeout
			if staleAfter <= 0 {
				staleAfter = 10 * time.Minute
			}
			ticker := time.NewTicker(pollInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					log.Info("Extraction worker stopping")
					return consumer.Stop()
				case <-ticker.C:
					n, err := worker.SweepPending(ctx, sweepLimit, staleAfter)
					if err != nil {
						log.Error("Pending job sweep failed", logging.Err(err))
						continue
					}
					if n > 0 {
						log.Info("Recovered pending jobs", logging.Int("count", n))
					}
				}
			}
		},
	}
}
