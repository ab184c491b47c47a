package events

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/customeros/dmarcstack/dto"
	"github.com/customeros/dmarcstack/interfaces"
	"github.com/customeros/dmarcstack/internal/logger"
	"github.com/customeros/dmarcstack/internal/tracing"
	"github.com/customeros/dmarcstack/internal/utils"
)

type SubscriberConfig struct {
	MessageTTL     time.Duration
	RetryDelay     time.Duration
	AckMaxAttempts int
}

func defaultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		MessageTTL:     DefaultMessageTTL,
		RetryDelay:     5 * time.Second,
		AckMaxAttempts: 5,
	}
}

type RabbitMQSubscriber struct {
	connection      *amqp091.Connection
	connectionMutex sync.Mutex
	url             string
	logger          logger.Logger
	config          SubscriberConfig
	listeners       map[string]interfaces.EventListener
	listenerMutex   sync.RWMutex
	closed          chan struct{}
	closeOnce       sync.Once
}

func NewRabbitMQSubscriber(rabbitmqURL string, logger logger.Logger, config *SubscriberConfig) (*RabbitMQSubscriber, error) {
	subscriber := newSubscriber(rabbitmqURL, logger, config)
	if err := subscriber.connect(); err != nil {
		return nil, err
	}
	return subscriber, nil
}

func newSubscriber(rabbitmqURL string, logger logger.Logger, config *SubscriberConfig) *RabbitMQSubscriber {
	cfg := defaultSubscriberConfig()
	if config != nil {
		cfg = *config
	}
	return &RabbitMQSubscriber{
		url:       rabbitmqURL,
		logger:    logger,
		config:    cfg,
		listeners: make(map[string]interfaces.EventListener),
		closed:    make(chan struct{}),
	}
}

func (r *RabbitMQSubscriber) RegisterListener(listener interfaces.EventListener) {
	r.listenerMutex.Lock()
	defer r.listenerMutex.Unlock()

	eventType := listener.GetEventType()
	r.listeners[eventType] = listener
	r.logger.Infof("Registered listener for event type: %s on queue: %s", eventType, listener.GetQueueName())
}

// ListenQueue consumes in the background, reopening the channel until Close.
func (r *RabbitMQSubscriber) ListenQueue(queueName string) error {
	go func() {
		for {
			select {
			case <-r.closed:
				return
			default:
			}

			if err := r.consume(queueName); err != nil {
				r.logger.Errorf("Consumer on queue %s stopped: %v. Retrying...", queueName, err)
			} else {
				r.logger.Warnf("Connection lost for queue %s. Reconnecting...", queueName)
			}

			select {
			case <-r.closed:
				return
			case <-time.After(r.config.RetryDelay):
			}
		}
	}()
	return nil
}

func (r *RabbitMQSubscriber) consume(queueName string) error {
	connection := r.currentConnection()
	if connection == nil || connection.IsClosed() {
		return errors.New("no open connection")
	}

	channel, err := connection.Channel()
	if err != nil {
		return errors.Wrap(err, "open channel")
	}
	defer channel.Close()

	// reports are ingested one message at a time
	if err = channel.Qos(1, 0, false); err != nil {
		return errors.Wrap(err, "set qos")
	}

	msgs, err := channel.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "register consumer")
	}

	r.logger.Infof("Listening for messages on queue %s", queueName)
	for d := range msgs {
		r.handleMessage(d, queueName)
	}
	return nil
}

func (r *RabbitMQSubscriber) handleMessage(d amqp091.Delivery, queueName string) {
	defer tracing.RecoverAndLogToJaeger(r.logger)

	err := r.processMessage(context.Background(), d.Body, queueName)
	if err != nil {
		r.logger.Errorf("Failed to process message on queue %s: %v", queueName, err)
		r.retryAckNack(d, false)
	} else {
		r.retryAckNack(d, true)
	}
}

func (r *RabbitMQSubscriber) processMessage(ctx context.Context, body []byte, queueName string) error {
	var event dto.Event
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&event); err != nil {
		return errors.Wrap(err, "failed to unmarshal message")
	}

	ctx = utils.WithCustomContext(ctx, &utils.CustomContext{
		AppSource: event.Metadata.AppSource,
	})

	ctx, span := tracing.StartRabbitMQMessageTracerSpanWithHeader(ctx, "RabbitMQSubscriber.ProcessMessage", event.Metadata.UberTraceId)
	defer span.Finish()
	tracing.TagComponentListener(span)
	span.LogKV("event_type", event.Event.EventType)
	span.LogKV("queue_name", queueName)

	r.listenerMutex.RLock()
	listener, exists := r.listeners[event.Event.EventType]
	r.listenerMutex.RUnlock()

	if !exists {
		r.logger.Infof("No listener found for event type: %s on queue: %s", event.Event.EventType, queueName)
		return nil
	}
	if listener.GetQueueName() != queueName {
		r.logger.Warnf("Event type %s received on wrong queue. Expected %s, got %s",
			event.Event.EventType, listener.GetQueueName(), queueName)
		return nil
	}

	if err := listener.Handle(ctx, event); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *RabbitMQSubscriber) connect() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	connection, err := amqp091.Dial(r.url)
	if err != nil {
		return errors.Wrap(err, "Failed to connect to RabbitMQ")
	}

	channel, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return errors.Wrap(err, "Failed to open setup channel")
	}
	err = declareTopology(channel, r.config.MessageTTL)
	_ = channel.Close()
	if err != nil {
		_ = connection.Close()
		return errors.Wrap(err, "Failed to setup exchanges and queues")
	}

	r.connection = connection
	go r.watchConnection(connection)
	return nil
}

func (r *RabbitMQSubscriber) watchConnection(connection *amqp091.Connection) {
	notifyClose := connection.NotifyClose(make(chan *amqp091.Error, 1))
	select {
	case <-r.closed:
		return
	case amqpErr := <-notifyClose:
		r.logger.Warnf("RabbitMQ connection closed (%v), attempting to reconnect", amqpErr)
	}

	for {
		err := r.connect()
		if err == nil {
			return
		}
		r.logger.Errorf("Reconnect to RabbitMQ failed: %v", err)
		select {
		case <-r.closed:
			return
		case <-time.After(r.config.RetryDelay):
		}
	}
}

func (r *RabbitMQSubscriber) currentConnection() *amqp091.Connection {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()
	return r.connection
}

func (r *RabbitMQSubscriber) retryAckNack(d amqp091.Delivery, ack bool) {
	retryDelay := 100 * time.Millisecond

	for i := 0; i < r.config.AckMaxAttempts; i++ {
		var err error
		if ack {
			err = d.Ack(false)
		} else {
			// rejected messages go to the DLQ
			err = d.Nack(false, false)
		}
		if err == nil {
			return
		}
		time.Sleep(retryDelay)
	}

	r.logger.Errorf("Failed to %s message after %d attempts",
		map[bool]string{true: "acknowledge", false: "negative acknowledge"}[ack], r.config.AckMaxAttempts)
}

func (r *RabbitMQSubscriber) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })

	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	if r.connection != nil && !r.connection.IsClosed() {
		return r.connection.Close()
	}
	return nil
}
