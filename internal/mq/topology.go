package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeItems Exchange = "itemsvc.items"
	ExchangeDLQ   Exchange = "itemsvc.dlq"
)

// Queues — имена очередей.
const (
	QueueItemEvents Queue = "items.events"
	QueueDLQItems   Queue = "dlq.items"
)

// Routing keys.
const (
	RoutingKeyItemCreated RoutingKey = "item.created"
	RoutingKeyItemUpdated RoutingKey = "item.updated"
	RoutingKeyItemDeleted RoutingKey = "item.deleted"
	RoutingKeyItemAll     RoutingKey = "item.#"
	RoutingKeyDLQItems    RoutingKey = "items"
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

// topology описывает все объекты брокера.
type topology struct {
	exchanges []exchangeDecl
	queues    []queueDecl
	bindings  []bindingDecl
}

func itemTopology() topology {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQItems),
	}

	return topology{
		exchanges: []exchangeDecl{
			{ExchangeItems, amqp.ExchangeTopic},
			{ExchangeDLQ, amqp.ExchangeDirect},
		},
		queues: []queueDecl{
			// items.events — битые сообщения уходят в dlq.items
			{QueueItemEvents, dlqArgs},
			{QueueDLQItems, nil},
		},
		bindings: []bindingDecl{
			{QueueItemEvents, RoutingKeyItemAll, ExchangeItems},
			{QueueDLQItems, RoutingKeyDLQItems, ExchangeDLQ},
		},
	}
}

// SetupTopology объявляет обменники, очереди и привязки.
// Повторный вызов безопасен.
func SetupTopology(ctx context.Context, conn *Connection) error {
	t := itemTopology()

	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range t.exchanges {
			err := ch.ExchangeDeclare(
				string(ex.name), // name
				ex.kind,         // type
				true,            // durable
				false,           // auto-deleted
				false,           // internal
				false,           // no-wait
				nil,             // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		for _, q := range t.queues {
			_, err := ch.QueueDeclare(
				string(q.name), // name
				true,           // durable
				false,          // delete when unused
				false,          // exclusive
				false,          // no-wait
				q.args,         // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		for _, b := range t.bindings {
			err := ch.QueueBind(
				string(b.queue),      // queue name
				string(b.routingKey), // routing key
				string(b.exchange),   // exchange
				false,                // no-wait
				nil,                  // arguments
			)
			if err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Itemsvc RabbitMQ Topology:

    itemsvc.items (topic)
    └── items.events [routing: item.#]
            item.created, item.updated, item.deleted
            Consumer: itemsvc-cli events watch
            DLQ: dlq.items

    itemsvc.dlq (direct)
    └── dlq.items [routing: items]
            Manual processing
  `
}
