package api

import (
	"github.com/shaiso/Itemsvc/internal/domain"
)

// Item DTOs

// ListItemsResponse — ответ со списком товаров.
type ListItemsResponse struct {
	Items []domain.Item `json:"items"`
	Count int           `json:"count"`
}

// Service DTOs

// InfoResponse — описание сервиса.
type InfoResponse struct {
	Service            string   `json:"service"`
	Version            string   `json:"version"`
	MetricsEndpoint    string   `json:"metrics_endpoint"`
	AvailableEndpoints []string `json:"available_endpoints"`
}

// HealthResponse — ответ проверки здоровья.
type HealthResponse struct {
	Status    string  `json:"status"`
	Service   string  `json:"service"`
	Timestamp float64 `json:"timestamp"`
}

// Simulation DTOs

// MessageResponse — ответ с текстовым сообщением.
type MessageResponse struct {
	Message string `json:"message"`
}

// SlowResponse — ответ /simulate/slow.
type SlowResponse struct {
	Message      string  `json:"message"`
	DelaySeconds float64 `json:"delay_seconds"`
}
