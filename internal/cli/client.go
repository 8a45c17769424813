package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// Item — товар из API.
type Item struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Price       float64  `json:"price"`
	Tax         *float64 `json:"tax"`
}

// ItemList — ответ GET /items.
type ItemList struct {
	Items []Item `json:"items"`
	Count int    `json:"count"`
}

// InfoResponse — ответ GET /.
type InfoResponse struct {
	Service            string   `json:"service"`
	Version            string   `json:"version"`
	MetricsEndpoint    string   `json:"metrics_endpoint"`
	AvailableEndpoints []string `json:"available_endpoints"`
}

// HealthResponse — ответ GET /health.
type HealthResponse struct {
	Status    string  `json:"status"`
	Service   string  `json:"service"`
	Timestamp float64 `json:"timestamp"`
}

// MessageResponse — ответ с сообщением.
type MessageResponse struct {
	Message string `json:"message"`
}

// SlowResponse — ответ GET /simulate/slow.
type SlowResponse struct {
	Message      string  `json:"message"`
	DelaySeconds float64 `json:"delay_seconds"`
}

// --- Request types ---

// ItemRequest — тело создания или замены товара.
type ItemRequest struct {
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Tax         *float64 `json:"tax,omitempty"`
}

// --- Errors ---

// APIError — ошибка, возвращённая API.
type APIError struct {
	Status int    `json:"-"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// --- Client ---

// Client — HTTP-клиент для Itemsvc API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Service ---

// Info возвращает описание сервиса.
func (c *Client) Info() (*InfoResponse, error) {
	var info InfoResponse
	err := c.get("/", &info)
	return &info, err
}

// Health проверяет здоровье сервиса.
func (c *Client) Health() (*HealthResponse, error) {
	var health HealthResponse
	err := c.get("/health", &health)
	return &health, err
}

// --- Items ---

// ListItems возвращает все товары.
func (c *Client) ListItems() (*ItemList, error) {
	var list ItemList
	err := c.get("/items", &list)
	return &list, err
}

// CreateItem создаёт товар.
func (c *Client) CreateItem(req ItemRequest) (*Item, error) {
	var item Item
	err := c.post("/items", req, &item)
	return &item, err
}

// GetItem возвращает товар по ID.
func (c *Client) GetItem(id string) (*Item, error) {
	var item Item
	err := c.get("/items/"+id, &item)
	return &item, err
}

// UpdateItem заменяет товар.
func (c *Client) UpdateItem(id string, req ItemRequest) (*Item, error) {
	var item Item
	err := c.put("/items/"+id, req, &item)
	return &item, err
}

// DeleteItem удаляет товар.
func (c *Client) DeleteItem(id string) error {
	return c.delete("/items/" + id)
}

// --- Simulation ---

// SimulateSlow вызывает медленный endpoint.
func (c *Client) SimulateSlow() (*SlowResponse, error) {
	var resp SlowResponse
	err := c.get("/simulate/slow", &resp)
	return &resp, err
}

// SimulateError вызывает endpoint со случайными ошибками.
// Имитированная ошибка возвращается как *APIError со Status 500.
func (c *Client) SimulateError() (*MessageResponse, error) {
	var resp MessageResponse
	err := c.get("/simulate/error", &resp)
	return &resp, err
}

// Probe выполняет запрос и возвращает статус, тело и время ответа
// без интерпретации ошибок API.
func (c *Client) Probe(method, path string, body any) (int, []byte, time.Duration, error) {
	start := time.Now()

	resp, err := c.do(method, path, body)
	if err != nil {
		return 0, nil, time.Since(start), err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, time.Since(start), err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doJSON(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doJSON(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doJSON(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	return c.doJSON(http.MethodDelete, path, nil, nil)
}

func (c *Client) doJSON(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent || result == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
		return &APIError{Status: resp.StatusCode}
	}
	return apiErr
}
