package queue

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAPI struct {
	receiveIn  *sqs.ReceiveMessageInput
	receiveOut *sqs.ReceiveMessageOutput
	deleteIn   *sqs.DeleteMessageInput
	sendIn     *sqs.SendMessageInput
}

func (s *stubAPI) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	s.receiveIn = params
	return s.receiveOut, nil
}

func (s *stubAPI) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	s.deleteIn = params
	return &sqs.DeleteMessageOutput{}, nil
}

func (s *stubAPI) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.sendIn = params
	return &sqs.SendMessageOutput{}, nil
}

func (s *stubAPI) GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	return &sqs.GetQueueAttributesOutput{Attributes: map[string]string{
		string(types.QueueAttributeNameApproximateNumberOfMessages):           "3",
		string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible): "1",
	}}, nil
}

func TestReceiveMapsMessages(t *testing.T) {
	api := &stubAPI{
		receiveOut: &sqs.ReceiveMessageOutput{Messages: []types.Message{
			{
				Body:          aws.String(`{"id":"1"}`),
				ReceiptHandle: aws.String("rh-1"),
				Attributes: map[string]string{
					string(types.MessageSystemAttributeNameApproximateReceiveCount): "4",
				},
			},
		}},
	}
	c := NewClient(api, "https://sqs.test/main")

	msgs, err := c.Receive(context.Background(), 1, 10*time.Second, 20*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	assert.Equal(t, `{"id":"1"}`, msgs[0].Body)
	assert.Equal(t, "rh-1", msgs[0].ReceiptHandle)
	assert.Equal(t, 4, msgs[0].ReceiveCount)

	require.NotNil(t, api.receiveIn)
	assert.Equal(t, "https://sqs.test/main", aws.ToString(api.receiveIn.QueueUrl))
	assert.Equal(t, int32(1), api.receiveIn.MaxNumberOfMessages)
	assert.Equal(t, int32(10), api.receiveIn.VisibilityTimeout)
	assert.Equal(t, int32(20), api.receiveIn.WaitTimeSeconds)
}

func TestReceiveCountDefaultsToFirstDelivery(t *testing.T) {
	tests := []struct {
		name string
		msg  types.Message
	}{
		{"no attributes", types.Message{Body: aws.String("b")}},
		{"unparseable count", types.Message{
			Body: aws.String("b"),
			Attributes: map[string]string{
				string(types.MessageSystemAttributeNameApproximateReceiveCount): "lots",
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 1, receiveCount(tt.msg))
		})
	}
}

func TestDeleteUsesReceiptHandle(t *testing.T) {
	api := &stubAPI{}
	c := NewClient(api, "https://sqs.test/main")

	require.NoError(t, c.Delete(context.Background(), "rh-42"))
	require.NotNil(t, api.deleteIn)
	assert.Equal(t, "rh-42", aws.ToString(api.deleteIn.ReceiptHandle))
	assert.Equal(t, "https://sqs.test/main", aws.ToString(api.deleteIn.QueueUrl))
}

func TestSendTargetsGivenQueue(t *testing.T) {
	api := &stubAPI{}
	c := NewClient(api, "https://sqs.test/main")

	require.NoError(t, c.Send(context.Background(), "https://sqs.test/dlq", "payload"))
	require.NotNil(t, api.sendIn)
	assert.Equal(t, "https://sqs.test/dlq", aws.ToString(api.sendIn.QueueUrl))
	assert.Equal(t, "payload", aws.ToString(api.sendIn.MessageBody))
}

func TestStats(t *testing.T) {
	c := NewClient(&stubAPI{}, "https://sqs.test/main")

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3", stats.Visible)
	assert.Equal(t, "1", stats.InFlight)
}
