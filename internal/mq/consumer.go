package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrInvalidEvent — сообщение не является корректным событием товара.
var ErrInvalidEvent = errors.New("invalid item event")

// EventHandler обрабатывает одно событие товара.
// Ошибка приводит к nack: первая неудача возвращает событие в очередь,
// повторная отправляет его в DLQ.
type EventHandler func(ctx context.Context, msg *Message) error

// DecodeItemEvent разбирает тело AMQP сообщения и проверяет событие:
// известный тип, непустой item_id, товар для created/updated
// с тем же ID.
func DecodeItemEvent(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	p := msg.Payload
	switch {
	case !msg.Type.Valid():
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, msg.Type)
	case p.ItemID == "":
		return nil, fmt.Errorf("%w: empty item_id", ErrInvalidEvent)
	case msg.Type != MessageTypeItemDeleted && p.Item == nil:
		return nil, fmt.Errorf("%w: %s without item", ErrInvalidEvent, msg.Type)
	case p.Item != nil && p.Item.ID != p.ItemID:
		return nil, fmt.Errorf("%w: item id %q does not match %q", ErrInvalidEvent, p.Item.ID, p.ItemID)
	}
	return &msg, nil
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	// Queue — очередь событий, по умолчанию items.events.
	Queue Queue

	// Prefetch — сколько неподтверждённых событий держать, по умолчанию 1.
	Prefetch int

	Handler EventHandler
}

// Consumer читает события товаров из очереди.
// После разрыва соединения подписка восстанавливается
// по сигналу Connection.ReconnectNotify.
type Consumer struct {
	conn   *Connection
	logger *slog.Logger
	cfg    ConsumerConfig
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Queue == "" {
		cfg.Queue = QueueItemEvents
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}

	return &Consumer{
		conn:   conn,
		logger: logger.With("queue", cfg.Queue),
		cfg:    cfg,
	}
}

// Run подписывается на очередь и обрабатывает события до отмены ctx.
// Возвращает ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	for {
		deliveries, err := c.subscribe(ctx)
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
		} else {
			c.logger.Info("consumer started")
			c.drain(ctx, deliveries)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("subscription lost, waiting for reconnect")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

// subscribe выставляет prefetch и открывает поток доставок
// с ручным подтверждением.
func (c *Consumer) subscribe(ctx context.Context) (<-chan amqp.Delivery, error) {
	var deliveries <-chan amqp.Delivery

	err := c.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}

		var err error
		deliveries, err = ch.ConsumeWithContext(ctx,
			string(c.cfg.Queue), // queue
			"",                  // consumer tag
			false,               // auto-ack
			false,               // exclusive
			false,               // no-local
			false,               // no-wait
			nil,                 // args
		)
		if err != nil {
			return fmt.Errorf("consume: %w", err)
		}
		return nil
	})
	return deliveries, err
}

// drain обрабатывает доставки, пока поток не закроется или ctx не отменят.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			c.handle(ctx, raw)
		}
	}
}

// handle обрабатывает одну доставку и подтверждает или отклоняет её.
func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	msg, err := DecodeItemEvent(raw.Body)
	if err != nil {
		c.logger.Warn("rejecting message", "message_id", raw.MessageId, "error", err)
		raw.Nack(false, false)
		return
	}

	log := c.logger.With("message_id", msg.ID, "type", msg.Type, "item_id", msg.Payload.ItemID)
	log.Debug("received item event")

	if err := c.cfg.Handler(ctx, msg); err != nil {
		log.Error("item event handler failed", "redelivered", raw.Redelivered, "error", err)
		raw.Nack(false, !raw.Redelivered)
		return
	}

	raw.Ack(false)
}
