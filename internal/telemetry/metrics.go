// Package telemetry emits signup outcome and latency metrics to CloudWatch.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric and dimension names.
const (
	MetricSignupOutcome = "SignupOutcome"
	MetricSignupLatency = "SignupLatency"
	DimResult           = "Result"

	// ResultSuccess is the Result dimension for a completed signup. Failures
	// use the error code as the Result.
	ResultSuccess = "success"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Recorder records the outcome of one signup invocation.
type Recorder interface {
	RecordSignup(ctx context.Context, result string, elapsed time.Duration)
}

// CloudWatchRecorder implements Recorder on CloudWatch.
//
// Metrics emitted, in a single PutMetricData call:
//   - SignupOutcome: Dims {Result}, Count 1
//   - SignupLatency: no dims, Milliseconds
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

var _ Recorder = (*CloudWatchRecorder)(nil)

// NewCloudWatchRecorder creates a recorder publishing to namespace.
func NewCloudWatchRecorder(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRecorder{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordSignup publishes both metrics. Failures are logged at warn and never
// affect the response.
func (m *CloudWatchRecorder) RecordSignup(ctx context.Context, result string, elapsed time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricSignupOutcome),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(DimResult),
						Value: aws.String(result),
					},
				},
			},
			{
				MetricName: aws.String(MetricSignupLatency),
				Value:      aws.Float64(float64(elapsed.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.WarnContext(ctx, "failed to record signup metrics",
			"error", err.Error(),
			"result", result,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}

// NoopRecorder discards metrics.
type NoopRecorder struct{}

// RecordSignup does nothing.
func (NoopRecorder) RecordSignup(context.Context, string, time.Duration) {}
