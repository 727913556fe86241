package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FailureAction picks what happens when a CloudWatch PutMetricData call
// fails, per spec §7's "buffer-processing failures ... invoke a
// configurable failure action."
type FailureAction int

const (
	// DisableLogging turns emission off in-process and logs the cause.
	DisableLogging FailureAction = iota
	// TripCircuitBreaker additionally flips the breaker so the caller can
	// make the surrounding service return 503s to new requests.
	TripCircuitBreaker
)

// CircuitBreaker is a minimal explicit state machine: closed while
// healthy, open once tripped. It never resets itself — an operator or a
// health check resets it deliberately via Reset.
type CircuitBreaker struct {
	mu    sync.Mutex
	open  bool
	since time.Time
}

// Trip opens the breaker.
func (c *CircuitBreaker) Trip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		c.open = true
		c.since = time.Now()
	}
}

// Reset closes the breaker.
func (c *CircuitBreaker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

// Open reports whether the breaker is currently tripped.
func (c *CircuitBreaker) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// CloudWatchSink is the production Sink: begin/end/cancel and set/
// increment metrics are put to CloudWatch as a namespaced custom metric.
// AdjustUserEntityFrequency/AdjustGroupEntityFrequency are tracked
// in-process only (CloudWatch has no notion of a per-key gauge table);
// unlike InMemorySink, this type has no accessor that reads them back.
type CloudWatchSink[U comparable, G comparable] struct {
	client    *cloudwatch.Client
	namespace string
	logger    *zap.Logger
	onFailure FailureAction
	breaker   *CircuitBreaker

	mu        sync.Mutex
	enabled   bool
	begins    map[BeginID]time.Time
	userFreq  map[U]map[string]int
	groupFreq map[G]map[string]int
}

// NewCloudWatchSink wires a CloudWatchSink against an already-configured
// client (see cmd/node for the aws-sdk-go-v2/config bootstrap).
func NewCloudWatchSink[U comparable, G comparable](client *cloudwatch.Client, namespace string, logger *zap.Logger, onFailure FailureAction) *CloudWatchSink[U, G] {
	return &CloudWatchSink[U, G]{
		client:    client,
		namespace: namespace,
		logger:    logger,
		onFailure: onFailure,
		breaker:   &CircuitBreaker{},
		enabled:   true,
		begins:    make(map[BeginID]time.Time),
		userFreq:  make(map[U]map[string]int),
		groupFreq: make(map[G]map[string]int),
	}
}

// Breaker exposes the sink's circuit breaker so callers (e.g. the REST
// adapter) can check Open() before accepting new requests.
func (s *CloudWatchSink[U, G]) Breaker() *CircuitBreaker { return s.breaker }

func (s *CloudWatchSink[U, G]) Begin(kind EventKind) BeginID {
	id := BeginID(uuid.NewString())
	s.mu.Lock()
	s.begins[id] = time.Now()
	s.mu.Unlock()
	return id
}

func (s *CloudWatchSink[U, G]) End(id BeginID, kind EventKind) {
	s.finishInterval(id, kind, true)
}

func (s *CloudWatchSink[U, G]) CancelBegin(id BeginID, kind EventKind) {
	s.finishInterval(id, kind, false)
}

func (s *CloudWatchSink[U, G]) finishInterval(id BeginID, kind EventKind, completed bool) {
	if !s.Enabled() {
		return
	}
	s.mu.Lock()
	start, ok := s.begins[id]
	delete(s.begins, id)
	s.mu.Unlock()
	if !ok {
		start = time.Now()
	}

	metricName := string(kind) + "Duration"
	value := float64(time.Since(start).Microseconds())
	unit := types.StandardUnitMicroseconds
	if !completed {
		metricName = string(kind) + "Cancelled"
		value = 1
		unit = types.StandardUnitCount
	}
	s.put(metricName, value, unit)
}

func (s *CloudWatchSink[U, G]) Increment(kind EventKind) {
	if !s.Enabled() {
		return
	}
	s.put(string(kind)+"Completed", 1, types.StandardUnitCount)
}

func (s *CloudWatchSink[U, G]) Set(relation RelationKind, count int) {
	if !s.Enabled() {
		return
	}
	s.put(string(relation), float64(count), types.StandardUnitCount)
}

func (s *CloudWatchSink[U, G]) AdjustUserEntityFrequency(user U, entityType string, delta int) {
	if delta == 0 {
		return
	}
	s.mu.Lock()
	if s.userFreq[user] == nil {
		s.userFreq[user] = make(map[string]int)
	}
	s.userFreq[user][entityType] += delta
	if s.userFreq[user][entityType] <= 0 {
		delete(s.userFreq[user], entityType)
	}
	s.mu.Unlock()
}

func (s *CloudWatchSink[U, G]) AdjustGroupEntityFrequency(group G, entityType string, delta int) {
	if delta == 0 {
		return
	}
	s.mu.Lock()
	if s.groupFreq[group] == nil {
		s.groupFreq[group] = make(map[string]int)
	}
	s.groupFreq[group][entityType] += delta
	if s.groupFreq[group][entityType] <= 0 {
		delete(s.groupFreq[group], entityType)
	}
	s.mu.Unlock()
}

func (s *CloudWatchSink[U, G]) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *CloudWatchSink[U, G]) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

func (s *CloudWatchSink[U, G]) put(name string, value float64, unit types.StandardUnit) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(s.namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(value),
				Unit:       unit,
				Timestamp:  aws.Time(time.Now()),
			},
		},
	})
	if err == nil {
		return
	}

	s.logger.Error("cloudwatch put metric data failed", zap.String("metric", name), zap.Error(err))
	switch s.onFailure {
	case TripCircuitBreaker:
		s.breaker.Trip()
		s.SetEnabled(false)
		s.logger.Warn("metric circuit breaker tripped, disabling emission", zap.String("reason", fmt.Sprintf("%v", err)))
	default:
		s.SetEnabled(false)
	}
}
