package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"payhook/internal/core"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// sample is one observed request, queued for the background flusher.
type sample struct {
	method   string
	endpoint string
	status   string
	duration time.Duration
}

// CloudWatchCollector publishes per-request metrics to CloudWatch. Samples are
// handed off to a background flusher so a slow or unreachable metrics backend
// never adds latency to the request path; when the buffer is full, samples are
// dropped rather than blocking.
//
// Metrics emitted:
//   - RequestCount:     Dims {Method, Endpoint, Status} -- one per request
//   - RequestLatencyMs: Dims {Method, Endpoint} -- request duration
type CloudWatchCollector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger

	// mu guards stopped and the samples channel: Stop closes the channel
	// under the write lock, senders re-check stopped under the read lock,
	// so a send can never land on a closed channel.
	mu       sync.RWMutex
	stopped  bool
	samples  chan sample
	stopOnce sync.Once
	done     chan struct{}
}

var _ core.MetricsCollector = (*CloudWatchCollector)(nil)

// NewCloudWatchCollector creates a collector publishing to the given
// namespace and starts its background flusher.
func NewCloudWatchCollector(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchCollector {
	if logger == nil {
		logger = slog.Default()
	}
	c := &CloudWatchCollector{
		client:    client,
		namespace: namespace,
		logger:    logger,
		samples:   make(chan sample, 256),
		done:      make(chan struct{}),
	}
	go c.flushLoop()
	return c
}

// RecordRequest queues one request observation. Never blocks; samples
// arriving after Stop or into a full buffer are dropped.
func (c *CloudWatchCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped {
		return
	}
	select {
	case c.samples <- sample{method: method, endpoint: endpoint, status: status, duration: duration}:
	default:
		// Buffer full; losing a datapoint beats stalling a request.
	}
}

// Stop drains queued samples and shuts down the flusher. Safe to call more
// than once, and safe against requests still in flight.
func (c *CloudWatchCollector) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		close(c.samples)
		c.mu.Unlock()
		<-c.done
	})
}

func (c *CloudWatchCollector) flushLoop() {
	defer close(c.done)
	for s := range c.samples {
		c.publish(s)
	}
}

func (c *CloudWatchCollector) publish(s sample) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(c.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String("RequestCount"),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String("Method"), Value: aws.String(s.method)},
					{Name: aws.String("Endpoint"), Value: aws.String(s.endpoint)},
					{Name: aws.String("Status"), Value: aws.String(s.status)},
				},
			},
			{
				MetricName: aws.String("RequestLatencyMs"),
				Value:      aws.Float64(float64(s.duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String("Method"), Value: aws.String(s.method)},
					{Name: aws.String("Endpoint"), Value: aws.String(s.endpoint)},
				},
			},
		},
	}

	if _, err := c.client.PutMetricData(ctx, input); err != nil {
		c.logger.Error("failed to publish request metrics",
			"error", err.Error(),
			"endpoint", s.endpoint,
		)
	}
}
