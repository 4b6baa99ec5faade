package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/service"
	"github.com/vibast-solutions/ms-go-gocardless-payments/config"
)

var abandonFlowsWorker bool

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run background processing commands",
}

var abandonFlowsCmd = &cobra.Command{
	Use:   "abandon-flows",
	Short: "Fail payments whose payer never returned from the redirect flow",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"abandon_flows",
			abandonFlowsWorker,
			func(cfg *config.Config) time.Duration { return cfg.Jobs.AbandonedFlowInterval },
			func(s *service.RedirectFlowService, ctx context.Context) error {
				return s.RunAbandonedFlowBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(abandonFlowsCmd)

	abandonFlowsCmd.Flags().BoolVar(&abandonFlowsWorker, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	worker bool,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.RedirectFlowService, ctx context.Context) error,
) {
	deps := mustCreateRedirectFlowService()
	defer deps.cleanup()

	if worker {
		runWorker(name, intervalResolver(deps.cfg), deps.service, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(deps.service, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	redirectFlowService *service.RedirectFlowService,
	fn func(s *service.RedirectFlowService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(redirectFlowService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(redirectFlowService, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
