package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"banquet_crm/internal/domain/lead"
	"banquet_crm/internal/domain/notification"
	"banquet_crm/internal/infra/realtime"

	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the part of *amqp.Channel the producer uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Producer struct {
	ch channel
}

func NewProducer(ch *amqp.Channel) *Producer {
	return &Producer{ch: ch}
}

// PublishNewLead publishes the same JSON the websocket clients receive.
func (p *Producer) PublishNewLead(ctx context.Context, l *lead.Lead, n *notification.Notification) error {
	body, err := json.Marshal(realtime.NewLead(l, n))
	if err != nil {
		return fmt.Errorf("failed to encode new lead event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKeyNewLead,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    l.ID,
			Timestamp:    time.Now(),
			Type:         realtime.TypeNewLead,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to RabbitMQ: %w", err)
	}
	return nil
}
