package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/grapat/backend/internal/util"

	"github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp091.Channel used for declaring and
// publishing.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Init dials RabbitMQ from the RABBITMQ_* environment, retrying up to
// RABBITMQ_CONNECT_TRIES times. It returns ErrNotConfigured when
// RABBITMQ_HOST is empty.
func Init(ctx context.Context) (*amqp091.Connection, error) {
	host := util.GetEnv("RABBITMQ_HOST")
	if host == "" {
		return nil, ErrNotConfigured
	}
	user := util.GetEnvString("RABBITMQ_USER", "guest")
	pass := util.GetEnvString("RABBITMQ_PASSWORD", "guest")
	port := util.GetEnvString("RABBITMQ_PORT", "5672")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	tries := util.GetEnvInt("RABBITMQ_CONNECT_TRIES", 5)
	conn, err := util.RetryWithContext(ctx, tries, time.Second, func(context.Context) (*amqp091.Connection, error) {
		return amqp091.Dial(connURL)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	return conn, nil
}

// DeadLetterQueue is the queue failed messages of name are moved to.
func DeadLetterQueue(name string) string {
	return name + "_dlq"
}

// SetupQueues declares each durable queue together with its dead letter
// queue.
func SetupQueues(ch Channel, queueNames []string) error {
	for _, name := range queueNames {
		for _, q := range []string{name, DeadLetterQueue(name)} {
			_, err := ch.QueueDeclare(
				q,
				true,  // durable
				false, // autoDelete
				false, // exclusive
				false, // noWait
				nil,   // args
			)
			if err != nil {
				return fmt.Errorf("QueueDeclare %s failed: %w", q, err)
			}
		}
	}

	return nil
}

func PublishFIFO(ctx context.Context, ch Channel, queueName string, data []byte) error {
	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.PublishWithContext(
		ctx,
		"",
		q.Name,
		false,
		false,
		publishing,
	)
}
