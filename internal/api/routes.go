package api

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Шаблоны маршрутов; используются как атрибут endpoint в метриках.
const (
	EndpointRoot          = "/"
	EndpointHealth        = "/health"
	EndpointItems         = "/items"
	EndpointItem          = "/items/{item_id}"
	EndpointSimulateSlow  = "/simulate/slow"
	EndpointSimulateError = "/simulate/error"
	EndpointMetrics       = "/metrics"
)

// route — операция API.
type route struct {
	method   string
	endpoint string
	handler  http.HandlerFunc

	// timed — записывать ли processing.duration.
	timed bool
}

func (h *Handler) routes() []route {
	return []route{
		{http.MethodGet, EndpointRoot, h.Info, true},
		{http.MethodGet, EndpointHealth, h.Health, true},
		{http.MethodGet, EndpointItems, h.ListItems, true},
		{http.MethodPost, EndpointItems, h.CreateItem, true},
		{http.MethodGet, EndpointItem, h.GetItem, true},
		{http.MethodPut, EndpointItem, h.UpdateItem, true},
		{http.MethodDelete, EndpointItem, h.DeleteItem, true},
		{http.MethodGet, EndpointSimulateSlow, h.SimulateSlow, true},
		{http.MethodGet, EndpointSimulateError, h.SimulateError, false},
	}
}

// AvailableEndpoints возвращает список операций в виде "METHOD /path".
func (h *Handler) AvailableEndpoints() []string {
	routes := h.routes()
	out := make([]string, len(routes))
	for i, rt := range routes {
		out[i] = rt.method + " " + rt.endpoint
	}
	return out
}

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	for _, rt := range h.routes() {
		// Middleware chain
		chain := Chain(
			Recovery(h.logger),
			Instrument(h.instruments, rt.endpoint, rt.method, rt.timed),
		)

		pattern := rt.method + " " + rt.endpoint
		if rt.endpoint == EndpointRoot {
			// "/" без {$} совпал бы с любым путём
			pattern = rt.method + " /{$}"
		}
		mux.Handle(pattern, chain(rt.handler))
	}

	if h.metricsHandler != nil {
		mux.Handle(http.MethodGet+" "+EndpointMetrics, h.metricsHandler)
	}
}

// Routes возвращает готовый http.Handler сервера: mux с маршрутами,
// обёрнутый в request id, логирование, учёт активных соединений
// и otelhttp.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	handler := Chain(
		RequestID(h.logger),
		Logging(),
		ActiveConnections(h.instruments),
	)(mux)

	if h.meterProvider != nil {
		handler = otelhttp.NewHandler(handler, h.serviceName,
			otelhttp.WithMeterProvider(h.meterProvider),
		)
	}
	return handler
}
