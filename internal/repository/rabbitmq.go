package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/config"
	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const brokerAppID = "plagiarism-checker"

// EventBroker delivers submission events to consumers outside the service.
type EventBroker interface {
	PublishSubmissionChecked(ctx context.Context, event models.SubmissionCheckedEvent) error
	Close() error
}

// RabbitMQBroker publishes events to a durable topic exchange on a channel
// in confirm mode: a publish returns only after the broker has taken the
// message.
type RabbitMQBroker struct {
	cfg     config.RabbitMQConfig
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  zerolog.Logger

	mu sync.Mutex
}

func NewRabbitMQBroker(ctx context.Context, cfg config.RabbitMQConfig, logger zerolog.Logger) (*RabbitMQBroker, error) {
	if cfg.Exchange == "" || cfg.RoutingKey == "" {
		return nil, errors.New("rabbitmq exchange and routing key are required")
	}

	var conn *amqp.Connection
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 15 * time.Second

	err := backoff.Retry(func() error {
		var err error
		conn, err = amqp.Dial(cfg.URL)
		if err != nil {
			logger.Warn().Err(err).Msg("RabbitMQ not reachable, retrying")
		}
		return err
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	b := &RabbitMQBroker{cfg: cfg, conn: conn, channel: channel, logger: logger}
	if err := b.declare(); err != nil {
		b.Close()
		return nil, err
	}

	logger.Info().
		Str("exchange", cfg.Exchange).
		Str("queue", cfg.QueueName).
		Str("routing_key", cfg.RoutingKey).
		Msg("RabbitMQ broker ready")

	return b, nil
}

// declare creates the exchange and, when a queue name is configured, a
// durable queue bound to the submission routing key.
func (b *RabbitMQBroker) declare() error {
	if err := b.channel.ExchangeDeclare(b.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", b.cfg.Exchange, err)
	}
	if b.cfg.QueueName == "" {
		return nil
	}

	if _, err := b.channel.QueueDeclare(b.cfg.QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", b.cfg.QueueName, err)
	}
	if err := b.channel.QueueBind(b.cfg.QueueName, b.cfg.RoutingKey, b.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", b.cfg.QueueName, err)
	}
	return nil
}

func (b *RabbitMQBroker) PublishSubmissionChecked(ctx context.Context, event models.SubmissionCheckedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.EventID, err)
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     event.EventID,
		CorrelationId: event.SubmissionID,
		Type:          models.EventSubmissionChecked,
		AppId:         brokerAppID,
		Timestamp:     event.Timestamp,
		Headers: amqp.Table{
			"assignment_id": event.AssignmentID,
			"is_duplicate":  event.IsDuplicate,
		},
		Body: body,
	}

	b.mu.Lock()
	confirm, err := b.channel.PublishWithDeferredConfirmWithContext(ctx, b.cfg.Exchange, b.cfg.RoutingKey, false, false, msg)
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.EventID, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("event %s not confirmed: %w", event.EventID, err)
	}
	if !acked {
		return fmt.Errorf("event %s rejected by broker", event.EventID)
	}
	return nil
}

func (b *RabbitMQBroker) Close() error {
	var errs []error
	if b.channel != nil {
		if err := b.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if b.conn != nil {
		if err := b.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
