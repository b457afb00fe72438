package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"payhook/internal/ingest"
	"payhook/internal/types"
)

// SQSSender is the subset of the SQS client the publisher uses.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// relayMessage is the queue payload for one accepted event. ReceivedAt is
// the storage-assigned acceptance timestamp, RFC3339 in UTC.
type relayMessage struct {
	TraceID    string `json:"trace_id"`
	EventID    string `json:"event_id"`
	PaymentID  string `json:"payment_id"`
	EventType  string `json:"event_type"`
	ReceivedAt string `json:"received_at"`
}

// Publisher forwards accepted events to an SQS queue for downstream
// consumers. Sends go through a circuit breaker so a dead queue degrades to
// fast local failures instead of stalling ingestion on AWS timeouts.
type Publisher struct {
	client   SQSSender
	queueURL string
	breaker  *gobreaker.CircuitBreaker[*sqs.SendMessageOutput]
	logger   *slog.Logger
}

var _ ingest.AcceptedSink = (*Publisher)(nil)

// NewPublisher creates a Publisher for the given queue URL.
func NewPublisher(client SQSSender, queueURL string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:    "sqs-relay",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("relay circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Publisher{
		client:   client,
		queueURL: queueURL,
		breaker:  gobreaker.NewCircuitBreaker[*sqs.SendMessageOutput](settings),
		logger:   logger,
	}
}

// Publish sends one accepted event to the queue.
func (p *Publisher) Publish(ctx context.Context, evt *types.PaymentEvent) error {
	msg := relayMessage{
		TraceID:    uuid.NewString(),
		EventID:    evt.EventID,
		PaymentID:  evt.PaymentID,
		EventType:  evt.EventType,
		ReceivedAt: evt.ReceivedAt.UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling relay message: %w", err)
	}

	_, err = p.breaker.Execute(func() (*sqs.SendMessageOutput, error) {
		sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		return p.client.SendMessage(sendCtx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
		})
	})
	if err != nil {
		return fmt.Errorf("sending relay message for event %s: %w", evt.EventID, err)
	}

	p.logger.DebugContext(ctx, "accepted event relayed",
		"event_id", evt.EventID,
		"trace_id", msg.TraceID,
	)
	return nil
}
