package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"news_aggregator/internal/config"
	"news_aggregator/internal/domain"
)

// MaxSQSDelay is the longest DelaySeconds SQS accepts.
const MaxSQSDelay = config.MaxSQSDelay

type sqsClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type SQSConfig struct {
	Region   string
	QueueURL string
	WaitTime time.Duration
}

// SQS uses native message delays. Failed deliveries are left on the queue
// and reappear after the visibility timeout.
type SQS struct {
	client       sqsClient
	queueURL     string
	waitTime     time.Duration
	errorBackoff time.Duration
	logger       *zap.Logger
}

func NewSQS(ctx context.Context, cfg SQSConfig, logger *zap.Logger) (*SQS, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("sqs queue url is required")
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newSQS(sqs.NewFromConfig(awsCfg), cfg, logger), nil
}

func newSQS(client sqsClient, cfg SQSConfig, logger *zap.Logger) *SQS {
	if cfg.WaitTime <= 0 || cfg.WaitTime > 20*time.Second {
		cfg.WaitTime = 20 * time.Second
	}
	return &SQS{
		client:       client,
		queueURL:     cfg.QueueURL,
		waitTime:     cfg.WaitTime,
		errorBackoff: 5 * time.Second,
		logger:       logger,
	}
}

func (s *SQS) Enqueue(ctx context.Context, req domain.ContinuationRequest) error {
	body, err := encode(req)
	if err != nil {
		return err
	}

	delay := req.Delay()
	if delay > MaxSQSDelay {
		return fmt.Errorf("continuation delay %s exceeds sqs maximum of %s", delay, MaxSQSDelay)
	}

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(s.queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: int32(delay / time.Second),
	})
	if err != nil {
		return fmt.Errorf("send message to sqs: %w", err)
	}

	s.logger.Debug("enqueued continuation", requestFields(req)...)
	return nil
}

func (s *SQS) Consume(ctx context.Context, handler Handler) error {
	s.logger.Info("consuming continuations", zap.String("queue_url", s.queueURL))

	for ctx.Err() == nil {
		out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(s.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     int32(s.waitTime / time.Second),
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.Error("receive from sqs failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(s.errorBackoff):
			}
			continue
		}

		for _, msg := range out.Messages {
			s.handle(ctx, aws.ToString(msg.Body), msg.ReceiptHandle, handler)
		}
	}

	return nil
}

func (s *SQS) handle(ctx context.Context, body string, receipt *string, handler Handler) {
	req, err := decode([]byte(body))
	if err != nil {
		s.logger.Error("dropping undecodable continuation", zap.Error(err))
		s.delete(ctx, receipt)
		return
	}

	if err := handler(ctx, req); err != nil {
		s.logger.Error("continuation failed", append(requestFields(req), zap.Error(err))...)
		return
	}

	s.delete(ctx, receipt)
}

func (s *SQS) delete(ctx context.Context, receipt *string) {
	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: receipt,
	})
	if err != nil {
		s.logger.Warn("delete sqs message failed", zap.Error(err))
	}
}

func (s *SQS) Close() error { return nil }
