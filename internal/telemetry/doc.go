// Package telemetry обеспечивает наблюдаемость сервиса.
//
// Включает:
//   - logging.go  — structured logging через slog
//   - metrics.go  — инструменты сервиса (requests.total, processing.duration,
//     active.connections)
//   - provider.go — MeterProvider с OTLP/HTTP выгрузкой и Prometheus /metrics
//
// Инструменты создаются один раз и передаются в обработчики явно,
// глобальный MeterProvider не используется.
package telemetry
