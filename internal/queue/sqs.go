// internal/queue/sqs.go
package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// API is the slice of the SQS client the worker depends on.
type API interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// Message is one delivery of a queue message, lifted out of the SQS types at
// the transport boundary.
type Message struct {
	Body          string
	ReceiptHandle string
	// ReceiveCount is how many times the queue has delivered this logical
	// message, this delivery included. Starts at 1.
	ReceiveCount int
}

// Stats holds approximate queue depth counters.
type Stats struct {
	Visible  string
	InFlight string
}

// Client wraps an SQS queue identified by its URL.
type Client struct {
	api      API
	queueURL string
}

func NewClient(api API, queueURL string) *Client {
	return &Client{api: api, queueURL: queueURL}
}

func (c *Client) QueueURL() string { return c.queueURL }

// Receive long-polls the queue for up to max messages, hiding each delivery
// for the visibility window. An empty slice is a normal outcome of the wait
// elapsing, not an error.
func (c *Client) Receive(ctx context.Context, max int32, visibility, wait time.Duration) ([]Message, error) {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: max,
		VisibilityTimeout:   int32(visibility.Seconds()),
		WaitTimeSeconds:     int32(wait.Seconds()),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			ReceiveCount:  receiveCount(m),
		})
	}
	return msgs, nil
}

// Delete acknowledges one delivery by its receipt handle.
func (c *Client) Delete(ctx context.Context, receiptHandle string) error {
	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Send enqueues body on the queue at queueURL, which may differ from the
// client's own queue. Used for the dead-letter forward.
func (c *Client) Send(ctx context.Context, queueURL, body string) error {
	_, err := c.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Stats fetches approximate visible and in-flight message counts.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	out, err := c.api.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(c.queueURL),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
			types.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
		},
	})
	if err != nil {
		return Stats{}, fmt.Errorf("queue attributes: %w", err)
	}
	return Stats{
		Visible:  out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)],
		InFlight: out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible)],
	}, nil
}

// receiveCount parses ApproximateReceiveCount, treating a missing or mangled
// attribute as a first delivery.
func receiveCount(m types.Message) int {
	raw, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
