// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/tendant/simple-ingest/internal/consumer"
	"github.com/tendant/simple-ingest/internal/fetch"
	"github.com/tendant/simple-ingest/internal/img"
	"github.com/tendant/simple-ingest/internal/queue"
)

const fetchTimeout = 30 * time.Second

type config struct {
	QueueURL           string
	DeadLetterQueueURL string
	OriginalsDir       string
	ResizedDir         string
	MaxDimension       int
	MaxDeliveryCount   int
	VisibilityTimeout  time.Duration
	WaitTime           time.Duration
	StatsInterval      time.Duration
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		fatal(logger, "load config", err)
	}
	logger.Info("worker starting",
		"queue_url", cfg.QueueURL,
		"dead_letter_queue_url", cfg.DeadLetterQueueURL,
		"originals_dir", cfg.OriginalsDir,
		"resized_dir", cfg.ResizedDir,
		"max_dimension", cfg.MaxDimension)

	for _, dir := range []string{cfg.OriginalsDir, cfg.ResizedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fatal(logger, "ensure output directory", err, "dir", dir)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal(logger, "load AWS config", err)
	}

	q := queue.NewClient(sqs.NewFromConfig(awsCfg), cfg.QueueURL)

	if cfg.StatsInterval > 0 {
		go monitorQueueStats(ctx, q, cfg.StatsInterval, logger)
	}

	c := consumer.New(consumer.Config{
		DeadLetterQueueURL: cfg.DeadLetterQueueURL,
		OriginalsDir:       cfg.OriginalsDir,
		ResizedDir:         cfg.ResizedDir,
		MaxDeliveryCount:   cfg.MaxDeliveryCount,
		VisibilityTimeout:  cfg.VisibilityTimeout,
		WaitTime:           cfg.WaitTime,
	}, q, fetch.NewClient(fetchTimeout), img.NewStore(cfg.MaxDimension), logger)

	c.Run(ctx)
	logger.Info("worker exited")
}

func monitorQueueStats(ctx context.Context, q *queue.Client, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := q.Stats(ctx)
			if err != nil {
				logger.Error("fetch queue stats", "err", err)
				continue
			}
			logger.Info("queue stats", "visible", stats.Visible, "in_flight", stats.InFlight)
		case <-ctx.Done():
			return
		}
	}
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}

func loadConfig() (config, error) {
	cfg := config{
		QueueURL:           os.Getenv("QUEUE_URL"),
		DeadLetterQueueURL: os.Getenv("DEAD_LETTER_QUEUE_URL"),
		OriginalsDir:       getenv("ORIGINALS_DIR", "originals"),
		ResizedDir:         getenv("RESIZED_DIR", "resized"),
	}

	if cfg.QueueURL == "" {
		return config{}, fmt.Errorf("QUEUE_URL is required")
	}
	if cfg.DeadLetterQueueURL == "" {
		return config{}, fmt.Errorf("DEAD_LETTER_QUEUE_URL is required")
	}

	maxDim, err := parsePositiveInt(getenv("MAX_DIMENSION", "256"), "MAX_DIMENSION")
	if err != nil {
		return config{}, err
	}
	cfg.MaxDimension = maxDim

	maxDeliveries, err := parsePositiveInt(getenv("MAX_DELIVERY_COUNT", "10"), "MAX_DELIVERY_COUNT")
	if err != nil {
		return config{}, err
	}
	cfg.MaxDeliveryCount = maxDeliveries

	// The visibility window must comfortably exceed one message's processing
	// latency, or a second consumer can see the message mid-flight.
	visibilitySec, err := parsePositiveInt(getenv("VISIBILITY_TIMEOUT_SECONDS", "10"), "VISIBILITY_TIMEOUT_SECONDS")
	if err != nil {
		return config{}, err
	}
	cfg.VisibilityTimeout = time.Duration(visibilitySec) * time.Second

	waitSec, err := parsePositiveInt(getenv("WAIT_TIME_SECONDS", "20"), "WAIT_TIME_SECONDS")
	if err != nil {
		return config{}, err
	}
	cfg.WaitTime = time.Duration(waitSec) * time.Second

	statsSec, err := parseNonNegativeInt(getenv("STATS_INTERVAL_SECONDS", "30"), "STATS_INTERVAL_SECONDS")
	if err != nil {
		return config{}, err
	}
	cfg.StatsInterval = time.Duration(statsSec) * time.Second

	return cfg, nil
}

func parsePositiveInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return v, nil
}

func parseNonNegativeInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative (got %d)", name, v)
	}
	return v, nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
