package rabbitmq

import (
	"errors"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPublisherUnavailable is returned when no broker connection is available.
var ErrPublisherUnavailable = errors.New("rabbitmq publisher unavailable")

// Handler processes one delivery body. Returning false requeues the message.
type Handler func([]byte) bool

type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewConsumer(amqpURL string) (*Consumer, error) {
	cleanURL, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, ch: ch}, nil
}

// ConsumeWithBindings declares a durable queue bound to each routing key on a topic
// exchange and dispatches deliveries to the matching handler. Up to prefetch deliveries
// are handled concurrently, one background worker each; handlers must tolerate
// redelivery and parallel calls.
func (c *Consumer) ConsumeWithBindings(exchange, queueName string, prefetch int, bindings map[string]Handler) error {
	if len(bindings) == 0 {
		return fmt.Errorf("no bindings provided")
	}

	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return err
	}

	if prefetch > 0 {
		if err := c.ch.Qos(prefetch, 0, false); err != nil {
			return err
		}
	}

	handlers := make(map[string]Handler, len(bindings))
	for routingKey, handler := range bindings {
		if handler == nil {
			continue
		}
		handlers[routingKey] = handler
		if err := c.ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
			return err
		}
	}

	msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go dispatchDeliveries(q.Name, msgs, handlers, prefetch)

	return nil
}

// dispatchDeliveries drains msgs with the given number of workers until the channel
// closes.
func dispatchDeliveries(queue string, msgs <-chan amqp.Delivery, handlers map[string]Handler, workers int) {
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range msgs {
				handleDelivery(d, handlers)
			}
		}()
	}
	wg.Wait()
	log.Printf("level=info component=rabbitmq_consumer msg=\"delivery channel closed\" queue=%s", queue)
}

func handleDelivery(d amqp.Delivery, handlers map[string]Handler) {
	handler, ok := handlers[d.RoutingKey]
	if !ok {
		log.Printf("level=warn component=rabbitmq_consumer msg=\"no handler for routing key; dropping\" routing_key=%s", d.RoutingKey)
		d.Ack(false)
		return
	}
	if handler(d.Body) {
		d.Ack(false)
		return
	}
	log.Printf("level=warn component=rabbitmq_consumer msg=\"handler failed; requeueing\" routing_key=%s", d.RoutingKey)
	d.Nack(false, true)
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
