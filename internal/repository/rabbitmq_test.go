package repository

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/config"
	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRabbitMQBrokerRejectsIncompleteConfig(t *testing.T) {
	_, err := NewRabbitMQBroker(context.Background(), config.RabbitMQConfig{URL: "amqp://localhost"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRabbitMQBrokerPublishesSubmissionChecked(t *testing.T) {
	url := os.Getenv("EVENTS_TEST_RABBITMQ_URL")
	if url == "" {
		t.Skip("EVENTS_TEST_RABBITMQ_URL not set")
	}

	suffix := uuid.New().String()[:8]
	cfg := config.RabbitMQConfig{
		Enabled:    true,
		URL:        url,
		Exchange:   "test_exchange_" + suffix,
		RoutingKey: models.EventSubmissionChecked,
		QueueName:  "test_queue_" + suffix,
		Timeout:    5 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	broker, err := NewRabbitMQBroker(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { broker.Close() })

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	ch, err := conn.Channel()
	require.NoError(t, err)
	t.Cleanup(func() {
		ch.QueueDelete(cfg.QueueName, false, false, false)
		ch.ExchangeDelete(cfg.Exchange, false, false)
		ch.Close()
	})

	sub := &models.Submission{ID: "sub-2", AssignmentID: "hw1", SubmitterID: "bob"}
	report := models.NewDetectionReport(sub.ID, &models.Submission{ID: "sub-1"})
	event := models.NewSubmissionCheckedEvent(uuid.New().String(), sub, report)

	require.NoError(t, broker.PublishSubmissionChecked(ctx, event))

	var delivery amqp.Delivery
	require.Eventually(t, func() bool {
		msg, ok, err := ch.Get(cfg.QueueName, true)
		if err != nil || !ok {
			return false
		}
		delivery = msg
		return true
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, event.EventID, delivery.MessageId)
	assert.Equal(t, sub.ID, delivery.CorrelationId)
	assert.Equal(t, models.EventSubmissionChecked, delivery.Type)
	assert.Equal(t, amqp.Persistent, delivery.DeliveryMode)
	assert.Equal(t, "hw1", delivery.Headers["assignment_id"])

	var decoded models.SubmissionCheckedEvent
	require.NoError(t, json.Unmarshal(delivery.Body, &decoded))
	assert.Equal(t, sub.ID, decoded.SubmissionID)
	assert.True(t, decoded.IsDuplicate)
}
