package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestCloudWatchRecorder_RecordSignup(t *testing.T) {
	cw := &mockCloudWatchClient{}
	rec := NewCloudWatchRecorder(cw, "CardSignup", nil)

	rec.RecordSignup(context.Background(), ResultSuccess, 1500*time.Millisecond)

	if len(cw.calls) != 1 {
		t.Fatalf("expected 1 PutMetricData call, got %d", len(cw.calls))
	}
	input := cw.calls[0]
	if *input.Namespace != "CardSignup" {
		t.Errorf("expected namespace CardSignup, got %q", *input.Namespace)
	}
	if len(input.MetricData) != 2 {
		t.Fatalf("expected 2 metric data, got %d", len(input.MetricData))
	}

	outcome := input.MetricData[0]
	if *outcome.MetricName != MetricSignupOutcome {
		t.Errorf("expected %s, got %q", MetricSignupOutcome, *outcome.MetricName)
	}
	if outcome.Unit != cwtypes.StandardUnitCount || *outcome.Value != 1 {
		t.Errorf("unexpected outcome datum: unit=%s value=%f", outcome.Unit, *outcome.Value)
	}
	if len(outcome.Dimensions) != 1 || *outcome.Dimensions[0].Name != DimResult || *outcome.Dimensions[0].Value != ResultSuccess {
		t.Errorf("unexpected outcome dimensions: %+v", outcome.Dimensions)
	}

	latency := input.MetricData[1]
	if *latency.MetricName != MetricSignupLatency {
		t.Errorf("expected %s, got %q", MetricSignupLatency, *latency.MetricName)
	}
	if latency.Unit != cwtypes.StandardUnitMilliseconds || *latency.Value != 1500 {
		t.Errorf("unexpected latency datum: unit=%s value=%f", latency.Unit, *latency.Value)
	}
}

func TestCloudWatchRecorder_ErrorCodeResult(t *testing.T) {
	cw := &mockCloudWatchClient{}
	rec := NewCloudWatchRecorder(cw, "CardSignup", nil)

	rec.RecordSignup(context.Background(), "payment_declined", time.Second)

	if got := *cw.calls[0].MetricData[0].Dimensions[0].Value; got != "payment_declined" {
		t.Errorf("expected Result payment_declined, got %q", got)
	}
}

func TestCloudWatchRecorder_FailureLogsWarn(t *testing.T) {
	var buf bytes.Buffer
	cw := &mockCloudWatchClient{returnErr: fmt.Errorf("throttled")}
	rec := NewCloudWatchRecorder(cw, "CardSignup", slog.New(slog.NewJSONHandler(&buf, nil)))

	rec.RecordSignup(context.Background(), ResultSuccess, time.Second)

	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) {
		t.Errorf("expected warn-level record, got: %s", out)
	}
	if !strings.Contains(out, "throttled") {
		t.Errorf("expected underlying error in log, got: %s", out)
	}
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.RecordSignup(context.Background(), ResultSuccess, time.Second)
}
