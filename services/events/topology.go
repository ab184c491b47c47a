package events

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeDmarcDirect = "dmarcstack-direct"
	ExchangeDeadLetter  = "dead-letter"

	QueueAggregateReports = "dmarc-aggregate-reports"
	DLQAggregateReports   = QueueAggregateReports + "-dlq"

	RoutingKeyDeadLetter       = "dead-letter"
	RoutingKeyAggregateReports = "dmarc-aggregate-reports"

	DefaultMessageTTL = 240 * time.Hour // after TTL message moves to DLQ
)

// declareTopology is idempotent; it runs on every (re)connect.
func declareTopology(channel *amqp091.Channel, messageTTL time.Duration) error {
	err := channel.ExchangeDeclare(ExchangeDeadLetter, "direct", true, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "Failed to declare dead letter exchange")
	}

	err = channel.ExchangeDeclare(ExchangeDmarcDirect, "direct", true, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "Failed to declare dmarcstack-direct exchange")
	}

	if err = declareQueueWithDLQ(channel, QueueAggregateReports, DLQAggregateReports, messageTTL); err != nil {
		return err
	}

	err = channel.QueueBind(QueueAggregateReports, RoutingKeyAggregateReports, ExchangeDmarcDirect, false, nil)
	if err != nil {
		return errors.Wrapf(err, "Failed to bind queue %s to exchange %s", QueueAggregateReports, ExchangeDmarcDirect)
	}
	return nil
}

func declareQueueWithDLQ(channel *amqp091.Channel, queueName, dlqName string, messageTTL time.Duration) error {
	_, err := channel.QueueDeclare(dlqName, true, false, false, false, nil)
	if err != nil {
		return errors.Wrapf(err, "Failed to declare DLQ %s", dlqName)
	}

	err = channel.QueueBind(dlqName, RoutingKeyDeadLetter, ExchangeDeadLetter, false, nil)
	if err != nil {
		return errors.Wrapf(err, "Failed to bind DLQ %s to exchange", dlqName)
	}

	_, err = channel.QueueDeclare(queueName, true, false, false, false, queueArgs(messageTTL))
	if err != nil {
		return errors.Wrapf(err, "Failed to declare queue %s", queueName)
	}
	return nil
}

func queueArgs(messageTTL time.Duration) amqp091.Table {
	return amqp091.Table{
		"x-dead-letter-exchange":    ExchangeDeadLetter,
		"x-dead-letter-routing-key": RoutingKeyDeadLetter,
		"x-message-ttl":             messageTTL.Milliseconds(),
	}
}
