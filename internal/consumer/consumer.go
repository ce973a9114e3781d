// Package consumer runs the message consumption loop: poll, decide, process,
// acknowledge. The loop is the top-level failure boundary; nothing short of
// cancellation stops it.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/tendant/simple-ingest/internal/queue"
	"github.com/tendant/simple-ingest/internal/work"
)

// Queue is the transport contract the loop needs: receive deliveries, ack by
// receipt handle, and forward raw bodies to another queue.
type Queue interface {
	Receive(ctx context.Context, max int32, visibility, wait time.Duration) ([]queue.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
	Send(ctx context.Context, queueURL, body string) error
}

// Fetcher retrieves the image bytes for a work item.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Store persists the two artifacts. Both writes must overwrite, since a
// redelivered message repeats them.
type Store interface {
	SaveOriginal(data []byte, dstPath string) error
	SaveResized(data []byte, dstPath string) error
}

type Config struct {
	DeadLetterQueueURL string
	OriginalsDir       string
	ResizedDir         string
	MaxDeliveryCount   int
	VisibilityTimeout  time.Duration
	WaitTime           time.Duration
}

type Consumer struct {
	cfg     Config
	queue   Queue
	fetcher Fetcher
	store   Store
	logger  *slog.Logger

	processed int
	failed    int
}

func New(cfg Config, q Queue, f Fetcher, s Store, logger *slog.Logger) *Consumer {
	if cfg.MaxDeliveryCount <= 0 {
		cfg.MaxDeliveryCount = work.DefaultMaxDeliveryCount
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 10 * time.Second
	}
	if cfg.WaitTime <= 0 {
		cfg.WaitTime = 20 * time.Second
	}
	return &Consumer{cfg: cfg, queue: q, fetcher: f, store: s, logger: logger}
}

// Run polls the queue until ctx is cancelled. Transport errors and per-message
// failures are logged and never propagate; redelivery handles retries.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("consumer started",
		"visibility_timeout", c.cfg.VisibilityTimeout,
		"wait_time", c.cfg.WaitTime,
		"max_delivery_count", c.cfg.MaxDeliveryCount)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopped", "processed", c.processed, "failed", c.failed)
			return
		default:
		}

		msgs, err := c.queue.Receive(ctx, 1, c.cfg.VisibilityTimeout, c.cfg.WaitTime)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("receive failed", "err", err)
			continue
		}

		if len(msgs) == 0 {
			c.logger.Debug("no messages received, waiting")
			continue
		}

		for _, msg := range msgs {
			if err := c.handleMessage(ctx, msg); err != nil {
				c.failed++
				c.logger.Error("message left for redelivery", "receive_count", msg.ReceiveCount, "err", err)
			} else {
				c.processed++
			}
		}
	}
}

// handleMessage runs one delivery through the state machine. A nil return
// means the delivery reached a terminal state (acknowledged or quarantined);
// an error means the message stays visible for redelivery. A panic in the
// processing path is contained here so the loop survives rogue inputs.
func (c *Consumer) handleMessage(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during message processing: %v", r)
		}
	}()

	if work.ShouldQuarantine(msg.ReceiveCount, c.cfg.MaxDeliveryCount) {
		return c.quarantine(ctx, msg)
	}

	item, err := work.ParseItem([]byte(msg.Body))
	if err != nil {
		var valErr *work.ValidationError
		if errors.As(err, &valErr) {
			// Permanently malformed; redelivery can't fix it, but the
			// count-exceeded path will eventually quarantine it.
			return fmt.Errorf("invalid work item: %w", err)
		}
		return fmt.Errorf("unreadable message body: %w", err)
	}

	logger := c.logger.With("id", item.ID)

	data, err := c.fetcher.Fetch(ctx, item.ImageURL)
	if err != nil {
		return fmt.Errorf("download image %s: %w", item.ImageURL, err)
	}

	ext := work.InferExtension(item.ImageURL)
	originalPath := filepath.Join(c.cfg.OriginalsDir, item.ID+ext)
	resizedPath := filepath.Join(c.cfg.ResizedDir, item.ID+ext)

	if err := c.store.SaveOriginal(data, originalPath); err != nil {
		return fmt.Errorf("persist original: %w", err)
	}
	if err := c.store.SaveResized(data, resizedPath); err != nil {
		return fmt.Errorf("persist resized: %w", err)
	}

	if err := c.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		// Writes are idempotent, so the redelivery this causes repeats them
		// harmlessly.
		return fmt.Errorf("acknowledge after processing: %w", err)
	}

	logger.Info("processed image", "original", originalPath, "resized", resizedPath)
	return nil
}

// quarantine forwards the raw body to the dead-letter queue and removes the
// message from the main queue. The delete happens regardless of the forward
// outcome so an exhausted message can't occupy the queue forever.
func (c *Consumer) quarantine(ctx context.Context, msg queue.Message) error {
	c.logger.Error("delivery count exceeded, moving message to dead-letter queue",
		"receive_count", msg.ReceiveCount)

	if err := c.queue.Send(ctx, c.cfg.DeadLetterQueueURL, msg.Body); err != nil {
		c.logger.Error("dead-letter forward failed", "err", err)
	}

	if err := c.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		return fmt.Errorf("delete quarantined message: %w", err)
	}
	return nil
}
