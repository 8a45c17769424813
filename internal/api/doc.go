// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (хранилище, publisher, инструменты, logger)
//   - routes.go           — регистрация маршрутов и сборка http.Handler
//   - middleware.go       — middleware (request id, logging, recovery, метрики)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects
//   - item_handler.go     — обработчики для /items
//   - info_handler.go     — обработчики / и /health
//   - simulate_handler.go — обработчики /simulate/*
//
// Каждая операция увеличивает requests.total; все, кроме /simulate/error,
// записывают processing.duration. Любой запрос учитывается в
// active.connections на время обработки.
package api
