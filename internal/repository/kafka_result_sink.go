package repository

import (
	"context"
	"fmt"
	"time"

	"MTFCast/internal/domain/models"
	pkgkafka "MTFCast/pkg/kafka"
	applogger "MTFCast/pkg/logger"
)

const publishChunkSize = 500

type predictionEnvelope struct {
	RunID     string    `json:"run_id"`
	Fold      int       `json:"fold"`
	Timestamp time.Time `json:"timestamp"`
	Predicted float64   `json:"predicted"`
	Actual    float64   `json:"actual"`
}

type metricEnvelope struct {
	RunID   string  `json:"run_id"`
	Scope   string  `json:"scope"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

// KafkaResultSink publishes backtest outputs to Kafka topics. Messages are
// keyed by run id so a hash balancer keeps a run's records in one partition.
type KafkaResultSink struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

func NewKafkaResultSink(producer *pkgkafka.Producer, topic string, l *applogger.Logger) *KafkaResultSink {
	return &KafkaResultSink{producer: producer, topic: topic, l: l}
}

func (s *KafkaResultSink) PublishPredictions(ctx context.Context, runID string, records []models.PredictionRecord) error {
	key := []byte(runID)
	for offset := 0; offset < len(records); offset += publishChunkSize {
		end := offset + publishChunkSize
		if end > len(records) {
			end = len(records)
		}
		msgs := make([]pkgkafka.Message, 0, end-offset)
		for _, r := range records[offset:end] {
			msgs = append(msgs, pkgkafka.Message{
				Key: key,
				Value: predictionEnvelope{
					RunID:     runID,
					Fold:      r.Fold,
					Timestamp: r.Timestamp,
					Predicted: r.Predicted,
					Actual:    r.Actual,
				},
			})
		}
		if err := s.producer.PublishBatch(ctx, s.topic, msgs); err != nil {
			return fmt.Errorf("publish predictions: %w", err)
		}
	}
	if s.l != nil {
		s.l.Debug("published predictions",
			applogger.String("run_id", runID),
			applogger.Int("records", len(records)),
			applogger.String("topic", s.topic),
		)
	}
	return nil
}

func (s *KafkaResultSink) PublishMetrics(ctx context.Context, runID string, results []models.MetricResult) error {
	key := []byte(runID)
	msgs := make([]pkgkafka.Message, 0, len(results))
	for _, m := range results {
		msgs = append(msgs, pkgkafka.Message{
			Key: key,
			Value: metricEnvelope{
				RunID:   runID,
				Scope:   m.Scope,
				Name:    m.Name,
				Value:   m.Value,
				Defined: m.Defined,
			},
		})
	}
	if err := s.producer.PublishBatch(ctx, s.topic, msgs); err != nil {
		return fmt.Errorf("publish metrics: %w", err)
	}
	return nil
}

func (s *KafkaResultSink) Close() error {
	return s.producer.Close()
}

// NopResultSink discards everything. Used when Kafka is disabled.
type NopResultSink struct{}

func (NopResultSink) PublishPredictions(context.Context, string, []models.PredictionRecord) error {
	return nil
}

func (NopResultSink) PublishMetrics(context.Context, string, []models.MetricResult) error {
	return nil
}

func (NopResultSink) Close() error { return nil }
