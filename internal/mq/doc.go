// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий товаров
//   - consumer.go   — потребление событий из очереди
//
// Типы сообщений:
//   - item.created — товар создан
//   - item.updated — товар заменён
//   - item.deleted — товар удалён
//
// Exchanges:
//   - itemsvc.items — события товаров (topic)
//   - itemsvc.dlq   — dead letter queue
package mq
