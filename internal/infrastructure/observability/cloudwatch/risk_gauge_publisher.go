package cloudwatch

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

const (
	// CloudWatch limits
	maxMetricsPerRequest = 1000
	maxRetries           = 3
	initialBackoff       = 100 * time.Millisecond
)

// putMetricDataAPI is the subset of the CloudWatch client used by the publisher.
type putMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// RiskGaugePublisherConfig holds configuration for CloudWatch gauge publishing.
type RiskGaugePublisherConfig struct {
	Namespace         string            // CloudWatch namespace (e.g., "RiskDashboard")
	Region            string            // AWS region (e.g., "us-east-1")
	Endpoint          string            // Optional endpoint override (for LocalStack)
	AccessKeyID       string            // AWS access key
	SecretAccessKey   string            // AWS secret key
	DefaultDimensions map[string]string // Default dimensions added to all gauges
	BufferSize        int               // Buffer size before auto-flush
	FlushInterval     time.Duration     // Automatic flush interval
}

// RiskGaugePublisher publishes risk gauges to AWS CloudWatch.
// Implements port.GaugePublisher.
type RiskGaugePublisher struct {
	client            putMetricDataAPI
	namespace         string
	defaultDimensions map[string]string
	logger            *logger.Logger

	buffer     []entity.RiskGauge
	bufferSize int
	mu         sync.Mutex

	flushInterval time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewRiskGaugePublisher creates a CloudWatch client and starts the background flush loop.
func NewRiskGaugePublisher(ctx context.Context, cfg RiskGaugePublisherConfig, log *logger.Logger) (*RiskGaugePublisher, error) {
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, err
	}

	awsCfg, err := buildAWSConfig(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	p := newRiskGaugePublisher(cloudwatch.NewFromConfig(awsCfg), cfg, log)
	p.start()
	return p, nil
}

func newRiskGaugePublisher(client putMetricDataAPI, cfg RiskGaugePublisherConfig, log *logger.Logger) *RiskGaugePublisher {
	return &RiskGaugePublisher{
		client:            client,
		namespace:         cfg.Namespace,
		defaultDimensions: cfg.DefaultDimensions,
		logger:            log,
		buffer:            make([]entity.RiskGauge, 0, cfg.BufferSize),
		bufferSize:        cfg.BufferSize,
		flushInterval:     cfg.FlushInterval,
		stopCh:            make(chan struct{}),
	}
}

func normalizeConfig(cfg RiskGaugePublisherConfig) (RiskGaugePublisherConfig, error) {
	if cfg.Namespace == "" {
		return cfg, fmt.Errorf("namespace is required")
	}
	if cfg.Region == "" {
		return cfg, fmt.Errorf("region is required")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 20
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Minute
	}
	return cfg, nil
}

// PublishBatch buffers gauges; a full buffer is flushed inline.
func (p *RiskGaugePublisher) PublishBatch(ctx context.Context, gauges []entity.RiskGauge) error {
	if len(gauges) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, gauge := range gauges {
		if math.IsNaN(gauge.Value) || math.IsInf(gauge.Value, 0) {
			// CloudWatch rejects non-finite values
			p.logger.Warn("Skipping non-finite gauge", "name", gauge.Name)
			continue
		}
		p.buffer = append(p.buffer, gauge)

		if len(p.buffer) >= p.bufferSize {
			if err := p.flushBufferUnsafe(ctx); err != nil {
				return fmt.Errorf("failed to flush buffer: %w", err)
			}
		}
	}

	return nil
}

// Flush forces immediate publication of all buffered gauges.
func (p *RiskGaugePublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushBufferUnsafe(ctx)
}

// Close stops the background flush goroutine and flushes remaining gauges.
func (p *RiskGaugePublisher) Close(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	return p.Flush(ctx)
}

func (p *RiskGaugePublisher) start() {
	p.wg.Add(1)
	go p.flushLoop()
}

func (p *RiskGaugePublisher) flushLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := p.Flush(ctx); err != nil {
				// Buffer is kept, the next tick retries
				p.logger.Error("CloudWatch flush failed", err)
			}
			cancel()
		case <-p.stopCh:
			return
		}
	}
}

// flushBufferUnsafe flushes the buffer without locking (caller must hold lock).
func (p *RiskGaugePublisher) flushBufferUnsafe(ctx context.Context) error {
	if len(p.buffer) == 0 {
		return nil
	}

	data := make([]types.MetricDatum, 0, len(p.buffer))
	for _, gauge := range p.buffer {
		data = append(data, p.convertToDatum(gauge))
	}

	for i := 0; i < len(data); i += maxMetricsPerRequest {
		end := min(i+maxMetricsPerRequest, len(data))
		if err := p.publishWithRetry(ctx, data[i:end]); err != nil {
			return fmt.Errorf("failed to publish chunk: %w", err)
		}
	}

	p.buffer = p.buffer[:0]
	p.logger.Debug("Gauges flushed to CloudWatch", "count", len(data))

	return nil
}

func (p *RiskGaugePublisher) publishWithRetry(ctx context.Context, data []types.MetricDatum) error {
	var lastErr error
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(maxRetries),
		retry.Delay(initialBackoff),
		retry.DelayType(retry.BackOffDelay),
	)

	err := r.Do(func() error {
		_, lastErr = p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(p.namespace),
			MetricData: data,
		})
		return lastErr
	})
	if err == nil {
		return nil
	}
	if lastErr == nil {
		return err
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// convertToDatum converts a domain RiskGauge to CloudWatch MetricDatum.
func (p *RiskGaugePublisher) convertToDatum(gauge entity.RiskGauge) types.MetricDatum {
	dims := make(map[string]string, len(p.defaultDimensions)+len(gauge.Dimensions))
	for key, value := range p.defaultDimensions {
		dims[key] = value
	}
	for key, value := range gauge.Dimensions {
		dims[key] = value
	}

	// Stable order keeps datums comparable between flushes
	keys := make([]string, 0, len(dims))
	for key := range dims {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	dimensions := make([]types.Dimension, 0, len(keys))
	for _, key := range keys {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(key),
			Value: aws.String(dims[key]),
		})
	}

	timestamp := gauge.At
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	return types.MetricDatum{
		MetricName: aws.String(gauge.Name),
		Value:      aws.Float64(gauge.Value),
		Unit:       mapUnit(gauge.Unit),
		Timestamp:  aws.Time(timestamp),
		Dimensions: dimensions,
	}
}

// mapUnit accepts CloudWatch unit names and a few short aliases.
func mapUnit(unit string) types.StandardUnit {
	switch unit {
	case "%":
		return types.StandardUnitPercent
	case "count":
		return types.StandardUnitCount
	case "ms":
		return types.StandardUnitMilliseconds
	case "s":
		return types.StandardUnitSeconds
	}
	for _, known := range types.StandardUnitNone.Values() {
		if string(known) == unit {
			return known
		}
	}
	return types.StandardUnitNone
}

// buildAWSConfig creates an AWS config with credentials.
func buildAWSConfig(ctx context.Context, region, endpoint, accessKeyID, secretAccessKey string) (aws.Config, error) {
	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if accessKeyID != "" && secretAccessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return aws.Config{}, err
	}

	// Override endpoint if specified (for LocalStack testing)
	if endpoint != "" {
		cfg.BaseEndpoint = aws.String(endpoint)
	}

	return cfg, nil
}
