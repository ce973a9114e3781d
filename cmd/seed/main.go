// cmd/seed/main.go
//
// Enqueues synthetic ingestion messages for local testing of the worker.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type workMessage struct {
	ID       string `json:"id"`
	ImageURL string `json:"image_url"`
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	queueURL := os.Getenv("QUEUE_URL")
	if queueURL == "" {
		logger.Error("QUEUE_URL is required")
		os.Exit(1)
	}

	imageURL := getenv("SEED_IMAGE_URL", "https://picsum.photos/1200/800.jpg")
	count := getenvInt("SEED_COUNT", 1, logger)

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("load AWS config", "err", err)
		os.Exit(1)
	}
	client := sqs.NewFromConfig(awsCfg)

	for i := 0; i < count; i++ {
		msg := workMessage{
			ID:       uuid.NewString(),
			ImageURL: imageURL,
		}
		body, err := json.Marshal(msg)
		if err != nil {
			logger.Error("marshal message", "err", err)
			os.Exit(1)
		}

		_, err = client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(queueURL),
			MessageBody: aws.String(string(body)),
		})
		if err != nil {
			logger.Error("send message", "id", msg.ID, "err", err)
			os.Exit(1)
		}
		logger.Info("enqueued message", "id", msg.ID, "image_url", msg.ImageURL)
	}

	logger.Info("done", "count", count)
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int, logger *slog.Logger) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Error("invalid value", "var", k, "value", v)
		os.Exit(1)
	}
	return n
}
