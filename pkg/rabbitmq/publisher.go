package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	"clip-ingest/config"
	"clip-ingest/dto"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultExchangeName = "clips_exchange"
	ingestedRoutingKey  = "clips.ingested"
)

// Publisher emits post-commit ingestion events for downstream consumers.
type Publisher struct {
	conn *amqp.Connection
	cfg  *config.RabbitMQ
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ) *Publisher {
	return &Publisher{
		conn: conn,
		cfg:  cfg,
	}
}

func (p *Publisher) PublishClipsIngested(ctx context.Context, event dto.ClipsIngestedEvent) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	exchangeName := p.cfg.ExchangeName
	if exchangeName == "" {
		exchangeName = defaultExchangeName
	}

	if err := ch.ExchangeDeclare(exchangeName, p.cfg.Kind, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, exchangeName, ingestedRoutingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        body,
	})
}
