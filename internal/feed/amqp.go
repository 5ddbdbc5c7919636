package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/zenpa1/budget-tracker/internal/logger"
	"github.com/zenpa1/budget-tracker/internal/models"
)

// AMQP publishes change events to a topic exchange with the collection name
// as routing key. Every subscriber gets its own exclusive, auto-deleted queue
// so each session sees every event.
type AMQP struct {
	conn     *amqp091.Connection
	exchange string

	mu      sync.Mutex
	channel *amqp091.Channel
}

// NewAMQP dials the broker and declares the change exchange.
func NewAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQP{conn: conn, exchange: exchange, channel: channel}, nil
}

// Publish implements Publisher.
func (a *AMQP) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	a.mu.Lock()
	defer a.mu.Unlock()
	err = a.channel.PublishWithContext(
		ctx,
		a.exchange,               // exchange
		string(event.Collection), // routing key
		false,                    // mandatory
		false,                    // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   event.EmittedAt,
			MessageId:   event.ID,
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Collection, err)
	}
	return nil
}

// Subscribe implements Subscriber.
func (a *AMQP) Subscribe(ctx context.Context, collections ...models.Collection) (Subscription, error) {
	if len(collections) == 0 {
		collections = models.Collections()
	}

	channel, err := a.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	queue, err := channel.QueueDeclare(
		"",    // name, server generated
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	for _, c := range collections {
		if err := channel.QueueBind(queue.Name, string(c), a.exchange, false, nil); err != nil {
			channel.Close()
			return nil, fmt.Errorf("bind %s: %w", c, err)
		}
	}

	deliveries, err := channel.ConsumeWithContext(
		ctx,
		queue.Name, // queue
		"",         // consumer
		true,       // auto-ack
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		channel.Close()
		return nil, fmt.Errorf("start consuming: %w", err)
	}

	sub := &amqpSub{
		channel: channel,
		events:  make(chan Event, defaultMemoryBuffer),
		errs:    make(chan error, 1),
		closing: channel.NotifyClose(make(chan *amqp091.Error, 1)),
		done:    make(chan struct{}),
	}
	go sub.pump(deliveries)
	return sub, nil
}

// Close closes the publishing channel and the connection.
func (a *AMQP) Close() error {
	a.mu.Lock()
	if a.channel != nil {
		a.channel.Close()
	}
	a.mu.Unlock()
	return a.conn.Close()
}

type amqpSub struct {
	channel *amqp091.Channel
	events  chan Event
	errs    chan error
	closing chan *amqp091.Error
	done    chan struct{}
	once    sync.Once
}

func (s *amqpSub) Events() <-chan Event { return s.events }
func (s *amqpSub) Err() <-chan error    { return s.errs }

func (s *amqpSub) pump(deliveries <-chan amqp091.Delivery) {
	defer close(s.events)
	log := logger.Named("feed.amqp")

	for {
		select {
		case <-s.done:
			return
		case amqpErr, ok := <-s.closing:
			if ok && amqpErr != nil {
				s.errs <- fmt.Errorf("amqp channel closed: %w", amqpErr)
			} else {
				s.errs <- ErrClosed
			}
			return
		case delivery, ok := <-deliveries:
			if !ok {
				s.errs <- ErrClosed
				return
			}
			var event Event
			if err := json.Unmarshal(delivery.Body, &event); err != nil {
				log.Warnw("dropping malformed change event", "routing_key", delivery.RoutingKey, "error", err)
				continue
			}
			select {
			case s.events <- event:
			case <-s.done:
				return
			}
		}
	}
}

func (s *amqpSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.channel.Close()
	})
	return err
}
