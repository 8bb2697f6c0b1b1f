package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/knulata/satteli/internal/models"
)

// AlertCreatedEvent is the wire shape consumers of AlertCreatedQueue receive.
type AlertCreatedEvent struct {
	AlertID         uuid.UUID            `json:"alert_id"`
	TenantID        uuid.UUID            `json:"tenant_id"`
	ParcelID        *uuid.UUID           `json:"parcel_id,omitempty"`
	Type            models.AlertType     `json:"type"`
	Severity        models.AlertSeverity `json:"severity"`
	Title           string               `json:"title"`
	AffectedAreaHa  *float64             `json:"affected_area_ha,omitempty"`
	ConfidenceScore float64              `json:"confidence_score"`
	DetectedAt      int64                `json:"detected_at"`
}

// AlertPublisher publishes alert lifecycle events to RabbitMQ. Scan workers
// publish concurrently, so the counters are atomic.
type AlertPublisher struct {
	conn              *RabbitMQConnection
	messagesPublished atomic.Int64
	messagesFailed    atomic.Int64
	lastPublishNano   atomic.Int64
}

// NewAlertPublisher creates a new alert event publisher
func NewAlertPublisher(conn *RabbitMQConnection) *AlertPublisher {
	p := &AlertPublisher{conn: conn}
	p.lastPublishNano.Store(time.Now().UnixNano())
	return p
}

// PublishAlertCreated publishes an alert-created event to the
// alert_created_events queue.
func (p *AlertPublisher) PublishAlertCreated(ctx context.Context, alert *models.Alert) error {
	if p.conn == nil || p.conn.Channel == nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("failed to publish alert event: no open channel")
	}

	// Ensure the queue exists
	_, err := p.conn.Channel.QueueDeclare(
		AlertCreatedQueue, // queue name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	event := AlertCreatedEvent{
		AlertID:         alert.ID,
		TenantID:        alert.TenantID,
		ParcelID:        alert.ParcelID,
		Type:            alert.Type,
		Severity:        alert.Severity,
		Title:           alert.Title,
		AffectedAreaHa:  alert.AffectedAreaHa,
		ConfidenceScore: alert.ConfidenceScore,
		DetectedAt:      alert.DetectedAt,
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	err = p.conn.Channel.PublishWithContext(
		ctx,
		"",                // exchange
		AlertCreatedQueue, // routing key (queue name)
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    alert.ID.String(),
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("failed to publish alert event: %w", err)
	}

	p.messagesPublished.Add(1)
	p.lastPublishNano.Store(time.Now().UnixNano())

	slog.Info("Alert event published",
		"queue", AlertCreatedQueue,
		"alert_id", alert.ID,
		"severity", alert.Severity,
	)

	return nil
}

// GetMetrics returns publisher metrics
func (p *AlertPublisher) GetMetrics() map[string]any {
	return map[string]any{
		"messages_published": p.messagesPublished.Load(),
		"messages_failed":    p.messagesFailed.Load(),
		"last_publish_time":  time.Unix(0, p.lastPublishNano.Load()),
		"queue":              AlertCreatedQueue,
	}
}

// HealthCheck returns the health status of the publisher
func (p *AlertPublisher) HealthCheck() PublisherHealthStatus {
	isHealthy := p.conn != nil && p.conn.Connection != nil && !p.conn.Connection.IsClosed()

	return PublisherHealthStatus{
		IsHealthy:         isHealthy,
		MessagesPublished: p.messagesPublished.Load(),
		MessagesFailed:    p.messagesFailed.Load(),
		LastPublishTime:   time.Unix(0, p.lastPublishNano.Load()),
		Queue:             AlertCreatedQueue,
	}
}

// PublisherHealthStatus represents the health status of the publisher
type PublisherHealthStatus struct {
	IsHealthy         bool      `json:"is_healthy"`
	MessagesPublished int64     `json:"messages_published"`
	MessagesFailed    int64     `json:"messages_failed"`
	LastPublishTime   time.Time `json:"last_publish_time"`
	Queue             string    `json:"queue"`
}
