package api

import (
	"net/http"
	"time"

	"github.com/shaiso/Itemsvc/internal/telemetry"
)

// Info возвращает описание сервиса и список операций.
// GET /
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	Success(w, InfoResponse{
		Service:            h.serviceName,
		Version:            telemetry.ServiceVersion,
		MetricsEndpoint:    h.metricsEndpoint,
		AvailableEndpoints: h.AvailableEndpoints(),
	})
}

// Health сообщает, что сервис работает.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	Success(w, HealthResponse{
		Status:    "healthy",
		Service:   h.serviceName,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	})
}
