// Package queue publishes records of payment processor resources that were
// left behind after a failed signup could not be rolled back.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"cardsignup/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// OrphanRecord describes processor resources that remain after a partial
// signup whose compensation failed. An operator (or a sweeper) consumes these
// to finish the cleanup by hand.
type OrphanRecord struct {
	RecordID        string    `json:"record_id"`
	InvocationID    string    `json:"invocation_id,omitempty"`
	CustomerID      string    `json:"customer_id,omitempty"`
	PaymentMethodID string    `json:"payment_method_id,omitempty"`
	FailedStep      string    `json:"failed_step"`
	Reason          string    `json:"reason"`
	CreatedAt       time.Time `json:"created_at"`
}

// SQSOrphanReporter sends OrphanRecords to an SQS queue.
type SQSOrphanReporter struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
	now      func() time.Time
}

// NewSQSOrphanReporter creates a reporter for queueURL.
func NewSQSOrphanReporter(client SQSSender, queueURL string, logger *slog.Logger) *SQSOrphanReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQSOrphanReporter{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		now:      time.Now,
	}
}

// ReportOrphan fills RecordID, InvocationID and CreatedAt when unset,
// serializes the record and sends it with a "step" message attribute.
func (r *SQSOrphanReporter) ReportOrphan(ctx context.Context, rec OrphanRecord) error {
	if rec.RecordID == "" {
		rec.RecordID = uuid.New().String()
	}
	if rec.InvocationID == "" {
		rec.InvocationID = types.GetInvocationID(ctx)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal OrphanRecord: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(r.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"step": {
				DataType:    aws.String("String"),
				StringValue: aws.String(rec.FailedStep),
			},
		},
	}

	if _, err := r.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send OrphanRecord to %s: %w", r.queueURL, err)
	}

	r.logger.InfoContext(ctx, "orphan record sent",
		"queue_url", r.queueURL,
		"record_id", rec.RecordID,
		"customer_id", rec.CustomerID,
		"payment_method_id", rec.PaymentMethodID,
		"failed_step", rec.FailedStep,
	)
	return nil
}

// NoopOrphanReporter discards records. It is used when no queue is configured.
type NoopOrphanReporter struct{}

// ReportOrphan does nothing.
func (NoopOrphanReporter) ReportOrphan(context.Context, OrphanRecord) error { return nil }
