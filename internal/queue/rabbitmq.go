package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"news_aggregator/internal/domain"
)

type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
	// DelayQueue holds messages until their expiration, then dead-letters
	// them into Exchange.
	DelayQueue string
	Prefetch   int
}

// RabbitMQ delays continuations with a per-message TTL on a consumer-less
// queue. Every walk uses the same delay, so expiry order matches enqueue order.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     RabbitMQConfig
	logger  *zap.Logger

	mu sync.Mutex
}

func NewRabbitMQ(cfg RabbitMQConfig, logger *zap.Logger) (*RabbitMQ, error) {
	if cfg.DelayQueue == "" {
		cfg.DelayQueue = cfg.QueueName + "_delay"
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("connected to rabbitmq",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", cfg.QueueName),
		zap.String("delay_queue", cfg.DelayQueue),
	)

	return &RabbitMQ{conn: conn, channel: ch, cfg: cfg, logger: logger}, nil
}

func declareTopology(ch *amqp.Channel, cfg RabbitMQConfig) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	_, err = ch.QueueDeclare(cfg.DelayQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    cfg.Exchange,
		"x-dead-letter-routing-key": cfg.RoutingKey,
	})
	if err != nil {
		return fmt.Errorf("declare delay queue: %w", err)
	}

	return nil
}

func (r *RabbitMQ) Enqueue(ctx context.Context, req domain.ContinuationRequest) error {
	body, err := encode(req)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
	}

	exchange, key := r.cfg.Exchange, r.cfg.RoutingKey
	if delay := req.Delay(); delay > 0 {
		exchange, key = "", r.cfg.DelayQueue
		msg.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}

	r.mu.Lock()
	err = r.channel.PublishWithContext(ctx, exchange, key, false, false, msg)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish continuation: %w", err)
	}

	r.logger.Debug("enqueued continuation", requestFields(req)...)
	return nil
}

// Consume acks on success. Failed or undecodable deliveries are rejected
// without requeue.
func (r *RabbitMQ) Consume(ctx context.Context, handler Handler) error {
	r.mu.Lock()
	if err := r.channel.Qos(r.cfg.Prefetch, 0, false); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := r.channel.Consume(r.cfg.QueueName, "", false, false, false, false, nil)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	r.logger.Info("consuming continuations", zap.String("queue", r.cfg.QueueName))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			r.handle(ctx, d, handler)
		}
	}
}

func (r *RabbitMQ) handle(ctx context.Context, d amqp.Delivery, handler Handler) {
	req, err := decode(d.Body)
	if err != nil {
		r.logger.Error("dropping undecodable continuation", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := handler(ctx, req); err != nil {
		r.logger.Error("continuation failed", append(requestFields(req), zap.Error(err))...)
		_ = d.Nack(false, false)
		return
	}

	if err := d.Ack(false); err != nil {
		r.logger.Warn("ack failed", zap.Error(err))
	}
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
