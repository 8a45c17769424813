package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName — имя meter'а, под которым создаются инструменты сервиса.
const InstrumentationName = "github.com/shaiso/Itemsvc"

// Имена метрик.
const (
	MetricRequestsTotal      = "requests.total"
	MetricProcessingDuration = "processing.duration"
	MetricActiveConnections  = "active.connections"
)

// Ключи атрибутов.
const (
	AttrEndpoint = attribute.Key("endpoint")
	AttrMethod   = attribute.Key("method")
)

// Instruments — набор инструментов сервиса.
//
// Создаётся один раз при старте и передаётся в обработчики явно.
type Instruments struct {
	requests    metric.Int64Counter
	duration    metric.Float64Histogram
	connections metric.Int64UpDownCounter
}

// NewInstruments создаёт счётчик запросов, гистограмму длительности
// и счётчик активных соединений.
func NewInstruments(mp metric.MeterProvider) (*Instruments, error) {
	meter := mp.Meter(InstrumentationName)

	requests, err := meter.Int64Counter(MetricRequestsTotal,
		metric.WithDescription("Total number of requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricRequestsTotal, err)
	}

	duration, err := meter.Float64Histogram(MetricProcessingDuration,
		metric.WithDescription("Request processing duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricProcessingDuration, err)
	}

	connections, err := meter.Int64UpDownCounter(MetricActiveConnections,
		metric.WithDescription("Number of active connections"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricActiveConnections, err)
	}

	return &Instruments{
		requests:    requests,
		duration:    duration,
		connections: connections,
	}, nil
}

// CountRequest увеличивает requests.total на 1.
func (i *Instruments) CountRequest(ctx context.Context, endpoint, method string) {
	i.requests.Add(ctx, 1, metric.WithAttributes(
		AttrEndpoint.String(endpoint),
		AttrMethod.String(method),
	))
}

// RecordDuration записывает длительность в миллисекундах.
func (i *Instruments) RecordDuration(ctx context.Context, endpoint, method string, d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	i.duration.Record(ctx, ms, metric.WithAttributes(
		AttrEndpoint.String(endpoint),
		AttrMethod.String(method),
	))
}

// TrackConnection увеличивает active.connections и возвращает функцию,
// уменьшающую его обратно. Повторные вызовы функции ничего не делают.
//
//	release := inst.TrackConnection(ctx, r.URL.Path)
//	defer release()
func (i *Instruments) TrackConnection(ctx context.Context, endpoint string) func() {
	attrs := metric.WithAttributes(AttrEndpoint.String(endpoint))
	i.connections.Add(ctx, 1, attrs)

	var once sync.Once
	return func() {
		once.Do(func() {
			// Контекст запроса к этому моменту может быть отменён.
			i.connections.Add(context.WithoutCancel(ctx), -1, attrs)
		})
	}
}
