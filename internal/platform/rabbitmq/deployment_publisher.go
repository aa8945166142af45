package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"semql-indexer/internal/model"
)

type DeploymentPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewDeploymentPublisher(conn *amqp.Connection, queueName string) *DeploymentPublisher {
	return &DeploymentPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *DeploymentPublisher) Publish(ctx context.Context, job model.DeploymentJob) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal deployment job failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish deployment job failed: %w", err)
	}
	return nil
}
