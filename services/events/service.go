package events

import (
	"github.com/pkg/errors"

	"github.com/customeros/dmarcstack/interfaces"
	"github.com/customeros/dmarcstack/internal/logger"
)

type EventsService struct {
	Subscriber interfaces.EventSubscriber
}

// NewEventsService returns nil when no broker url is configured.
func NewEventsService(rabbitmqURL string, log logger.Logger, subscriberConfig *SubscriberConfig) (*EventsService, error) {
	if rabbitmqURL == "" {
		log.Info("RabbitMQ url not set, queue report source disabled")
		return nil, nil
	}

	subscriber, err := NewRabbitMQSubscriber(rabbitmqURL, log, subscriberConfig)
	if err != nil {
		return nil, err
	}

	return &EventsService{
		Subscriber: subscriber,
	}, nil
}

// Listen registers the listeners and starts consuming their queues.
func (s *EventsService) Listen(listeners ...interfaces.EventListener) error {
	queues := map[string]bool{}
	for _, listener := range listeners {
		s.Subscriber.RegisterListener(listener)
		queues[listener.GetQueueName()] = true
	}
	for queue := range queues {
		if err := s.Subscriber.ListenQueue(queue); err != nil {
			return errors.Wrapf(err, "listen on %s", queue)
		}
	}
	return nil
}

func (s *EventsService) Close() error {
	if s == nil || s.Subscriber == nil {
		return nil
	}
	if err := s.Subscriber.Close(); err != nil {
		return errors.Wrap(err, "errors closing events service")
	}
	return nil
}
