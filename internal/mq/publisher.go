package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Itemsvc/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeItemCreated MessageType = "item.created"
	MessageTypeItemUpdated MessageType = "item.updated"
	MessageTypeItemDeleted MessageType = "item.deleted"
)

// RoutingKey возвращает ключ маршрутизации для типа сообщения.
func (t MessageType) RoutingKey() RoutingKey {
	return RoutingKey(t)
}

// Valid сообщает, известен ли тип.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeItemCreated, MessageTypeItemUpdated, MessageTypeItemDeleted:
		return true
	}
	return false
}

// Message — событие товара в очереди.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	Payload ItemEventPayload `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// ItemEventPayload — payload событий товаров.
// Для item.deleted поле Item пустое.
type ItemEventPayload struct {
	ItemID string       `json:"item_id"`
	Item   *domain.Item `json:"item,omitempty"`
}

// NewItemEvent собирает сообщение о событии товара.
func NewItemEvent(typ MessageType, itemID string, item *domain.Item) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   ItemEventPayload{ItemID: itemID, Item: item},
		Timestamp: time.Now().UTC(),
	}
}

// amqpPublisher — часть *amqp.Channel, нужная для публикации.
type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return p.send(ctx, ch, exchange, routingKey, msg)
	})
}

// send сериализует сообщение и отправляет его через pub.
func (p *Publisher) send(ctx context.Context, pub amqpPublisher, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = pub.PublishWithContext(
		ctx,
		string(exchange),   // exchange
		string(routingKey), // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         string(msg.Type),
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.ID,
		"type", msg.Type,
	)
	return nil
}

// PublishItemEvent публикует событие товара в itemsvc.items.
// Потребитель: items.events.
func (p *Publisher) PublishItemEvent(ctx context.Context, typ MessageType, itemID string, item *domain.Item) error {
	msg := NewItemEvent(typ, itemID, item)
	return p.Publish(ctx, ExchangeItems, typ.RoutingKey(), msg)
}
