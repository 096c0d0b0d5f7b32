// Package queue implements the deferred work queue that carries pagination
// continuations between ingestion invocations.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"news_aggregator/internal/config"
	"news_aggregator/internal/domain"
)

// Handler processes one delivered continuation.
type Handler func(ctx context.Context, req domain.ContinuationRequest) error

// Queue delivers each request no earlier than its DelaySeconds after Enqueue.
type Queue interface {
	Enqueue(ctx context.Context, req domain.ContinuationRequest) error
	// Consume blocks, running handler for every due request, until ctx is
	// cancelled.
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// New opens the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.QueueConfig, logger *zap.Logger) (Queue, error) {
	switch cfg.Backend {
	case "rabbitmq":
		return NewRabbitMQ(RabbitMQConfig{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
			DelayQueue: cfg.RabbitMQ.DelayQueue,
			Prefetch:   cfg.RabbitMQ.Prefetch,
		}, logger)
	case "sqs":
		return NewSQS(ctx, SQSConfig{
			Region:   cfg.SQS.Region,
			QueueURL: cfg.SQS.QueueURL,
			WaitTime: cfg.SQS.WaitTime,
		}, logger)
	case "bolt":
		return OpenBolt(cfg.Bolt.Path, cfg.Bolt.PollInterval, logger)
	default:
		return nil, fmt.Errorf("unsupported queue backend %q", cfg.Backend)
	}
}

func encode(req domain.ContinuationRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal continuation: %w", err)
	}
	return body, nil
}

func decode(body []byte) (domain.ContinuationRequest, error) {
	var req domain.ContinuationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("unmarshal continuation: %w", err)
	}
	if req.Source == "" || req.NextPage < 1 {
		return req, fmt.Errorf("malformed continuation: %s", body)
	}
	return req, nil
}

func requestFields(req domain.ContinuationRequest) []zap.Field {
	return []zap.Field{
		zap.String("source", req.Source),
		zap.Int("page", req.NextPage),
		zap.String("from_date", req.FromDate),
		zap.Int("delay_seconds", req.DelaySeconds),
	}
}
