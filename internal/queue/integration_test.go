//go:build integration

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"news_aggregator/internal/domain"
)

type RabbitMQQueueSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
}

func (s *RabbitMQQueueSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQQueueSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQQueueSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQQueueSuite))
}

func (s *RabbitMQQueueSuite) newQueue(name string) *RabbitMQ {
	q, err := NewRabbitMQ(RabbitMQConfig{
		URL:        s.amqpURL,
		Exchange:   "ingest-" + name,
		RoutingKey: "continuations",
		QueueName:  "continuations-" + name,
	}, zap.NewNop())
	s.Require().NoError(err)
	return q
}

func (s *RabbitMQQueueSuite) consumeOne(q *RabbitMQ, timeout time.Duration) (domain.ContinuationRequest, time.Time, bool) {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	got := make(chan domain.ContinuationRequest, 1)
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, req domain.ContinuationRequest) error {
			got <- req
			return nil
		})
	}()

	select {
	case req := <-got:
		return req, time.Now(), true
	case <-ctx.Done():
		return domain.ContinuationRequest{}, time.Time{}, false
	}
}

func (s *RabbitMQQueueSuite) TestDelayedDelivery() {
	q := s.newQueue("delayed")
	defer q.Close()

	req := domain.ContinuationRequest{Source: "newsapi", NextPage: 2, FromDate: "2024-11-20", DelaySeconds: 2}
	sent := time.Now()
	s.Require().NoError(q.Enqueue(s.ctx, req))

	got, at, ok := s.consumeOne(q, 10*time.Second)
	s.Require().True(ok)
	s.Equal(req, got)
	s.GreaterOrEqual(at.Sub(sent), 2*time.Second)
}

func (s *RabbitMQQueueSuite) TestImmediateDelivery() {
	q := s.newQueue("immediate")
	defer q.Close()

	req := domain.ContinuationRequest{Source: "guardian", NextPage: 5, FromDate: "2024-11-20"}
	s.Require().NoError(q.Enqueue(s.ctx, req))

	got, _, ok := s.consumeOne(q, 5*time.Second)
	s.Require().True(ok)
	s.Equal(req, got)
}
