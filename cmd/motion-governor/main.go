// main package for the motion-governor service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/motion-governor/internal/config"
	"github.com/book-expert/motion-governor/internal/objectstore"
	"github.com/book-expert/motion-governor/internal/pathutil"
	"github.com/book-expert/motion-governor/internal/profilestore"
	"github.com/book-expert/motion-governor/internal/style"
	"github.com/book-expert/motion-governor/internal/worker"
)

const logFileName = "motion-governor.log"

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	err := pathutil.EnsureDir(logPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir(), "motion-governor-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	log, err := setupLogger(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	natsConnection, err := nats.Connect(cfg.NATS.URL, nats.Name("motion-governor"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	coeffStore, err := objectstore.New(jetstreamContext, cfg.NATS.CoeffsObjectStoreBucket)
	if err != nil {
		return err
	}

	audioStore, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return err
	}

	profiles, err := profilestore.Open(cfg.Paths.ProfileDB)
	if err != nil {
		return err
	}

	defer func() { _ = profiles.Close() }()

	resolver, err := newResolver(cfg, profiles, log)
	if err != nil {
		return err
	}

	natsWorker, err := worker.NewNatsWorker(natsConnection, worker.Config{
		Subject:    cfg.NATS.GovernorSubject,
		QueueGroup: cfg.NATS.QueueGroup,
		CoeffStore: coeffStore,
		AudioStore: audioStore,
		Styles:     resolver,
		Recorder:   profiles,
		Options:    cfg.MotionOptions(),
		Timeout:    time.Duration(cfg.Governor.TimeoutSeconds) * time.Second,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.System("Motion governor initialized. Default style %s, profiles at %s", cfg.Governor.Style, profiles.Path())

	return natsWorker.Run(ctx)
}

// newResolver builds the resolver whose fallback is the configured default style.
func newResolver(cfg *config.Config, profiles *profilestore.Store, log *logger.Logger) (*profilestore.Resolver, error) {
	resolver := profilestore.NewResolver(profiles, log)

	if cfg.Governor.StyleFile != "" {
		path, err := pathutil.ResolveStyleFile(cfg.Governor.StyleFile)
		if err != nil {
			return nil, err
		}

		profile, err := style.Load(path)
		if err != nil {
			return nil, err
		}

		return resolver.WithFallback(profile), nil
	}

	profile, err := resolver.Resolve(context.Background(), cfg.Governor.Style)
	if err != nil {
		return nil, err
	}

	return resolver.WithFallback(profile), nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
