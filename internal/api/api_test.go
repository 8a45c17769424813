package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Itemsvc/internal/config"
	"github.com/shaiso/Itemsvc/internal/domain"
	"github.com/shaiso/Itemsvc/internal/mq"
	"github.com/shaiso/Itemsvc/internal/repo"
	"github.com/shaiso/Itemsvc/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// testEnv — сервер с хранилищем в памяти и ручным читателем метрик.
type testEnv struct {
	handler   *Handler
	server    http.Handler
	reader    *sdkmetric.ManualReader
	store     *repo.MemoryItemRepo
	publisher *fakePublisher
}

type envOption func(*Config)

func withSimulation(sim config.Simulation) envOption {
	return func(c *Config) { c.Simulation = sim }
}

func withStore(s ItemStore) envOption {
	return func(c *Config) { c.Store = s }
}

func withMetricsHandler(h http.Handler) envOption {
	return func(c *Config) { c.MetricsHandler = h }
}

func fastSimulation() config.Simulation {
	return config.Simulation{
		SlowMin:      20 * time.Millisecond,
		SlowMax:      40 * time.Millisecond,
		ListDelayMin: 0,
		ListDelayMax: time.Millisecond,
		ErrorRate:    0.5,
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	inst, err := telemetry.NewInstruments(mp)
	require.NoError(t, err)

	store := repo.NewMemoryItemRepo()
	pub := &fakePublisher{}

	cfg := Config{
		Store:           store,
		Publisher:       pub,
		Instruments:     inst,
		MeterProvider:   mp,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		Simulation:      fastSimulation(),
		ServiceName:     "itemsvc-test",
		MetricsEndpoint: "http://collector:4318/v1/metrics",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := NewHandler(cfg)
	return &testEnv{
		handler:   h,
		server:    h.Routes(),
		reader:    reader,
		store:     store,
		publisher: pub,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// fakePublisher запоминает события.
type fakePublisher struct {
	mu     sync.Mutex
	events []mq.MessageType
	ids    []string
	err    error
}

func (f *fakePublisher) PublishItemEvent(_ context.Context, typ mq.MessageType, itemID string, _ *domain.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, typ)
	f.ids = append(f.ids, itemID)
	return f.err
}

// failingStore возвращает ошибку на любую операцию.
type failingStore struct{ err error }

func (s failingStore) List(context.Context) ([]domain.Item, error) { return nil, s.err }
func (s failingStore) Create(context.Context, domain.ItemInput) (*domain.Item, error) {
	return nil, s.err
}
func (s failingStore) Get(context.Context, string) (*domain.Item, error) { return nil, s.err }
func (s failingStore) Update(context.Context, string, domain.ItemInput) (*domain.Item, error) {
	return nil, s.err
}
func (s failingStore) Delete(context.Context, string) error { return s.err }

// Metrics helpers

func (e *testEnv) collect(t *testing.T) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, e.reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func matches(attrs attribute.Set, endpoint, method string) bool {
	ep, _ := attrs.Value(telemetry.AttrEndpoint)
	if ep.AsString() != endpoint {
		return false
	}
	if method == "" {
		return true
	}
	m, _ := attrs.Value(telemetry.AttrMethod)
	return m.AsString() == method
}

func (e *testEnv) requestCount(t *testing.T, endpoint, method string) int64 {
	t.Helper()

	m, ok := e.collect(t)[telemetry.MetricRequestsTotal]
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
		if matches(dp.Attributes, endpoint, method) {
			total += dp.Value
		}
	}
	return total
}

func (e *testEnv) durationCount(t *testing.T, endpoint, method string) uint64 {
	t.Helper()

	m, ok := e.collect(t)[telemetry.MetricProcessingDuration]
	if !ok {
		return 0
	}
	var total uint64
	for _, dp := range m.Data.(metricdata.Histogram[float64]).DataPoints {
		if matches(dp.Attributes, endpoint, method) {
			total += dp.Count
		}
	}
	return total
}

func (e *testEnv) activeConnections(t *testing.T, path string) int64 {
	t.Helper()

	m, ok := e.collect(t)[telemetry.MetricActiveConnections]
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
		if matches(dp.Attributes, path, "") {
			total += dp.Value
		}
	}
	return total
}

// Tests

func TestInfo(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	info := decode[InfoResponse](t, rec)
	assert.Equal(t, "itemsvc-test", info.Service)
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, "http://collector:4318/v1/metrics", info.MetricsEndpoint)
	assert.Equal(t, []string{
		"GET /",
		"GET /health",
		"GET /items",
		"POST /items",
		"GET /items/{item_id}",
		"PUT /items/{item_id}",
		"DELETE /items/{item_id}",
		"GET /simulate/slow",
		"GET /simulate/error",
	}, info.AvailableEndpoints)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	before := float64(time.Now().Unix())

	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "itemsvc-test", health.Service)
	assert.GreaterOrEqual(t, health.Timestamp, before)
	assert.LessOrEqual(t, health.Timestamp, float64(time.Now().Unix()+1))
}

func TestUnknownPath(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, env.requestCount(t, "/", http.MethodGet))
}

func TestItemsLifecycle(t *testing.T) {
	env := newTestEnv(t)

	bodies := []string{
		`{"name":"Laptop","description":"High-performance laptop","price":999.99,"tax":99.99}`,
		`{"name":"Mouse","price":29.99}`,
		`{"name":"Keyboard","description":"Mechanical keyboard","price":79.99,"tax":7.99}`,
	}
	for i, body := range bodies {
		rec := env.do(t, http.MethodPost, "/items", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		item := decode[domain.Item](t, rec)
		assert.Equal(t, string(rune('1'+i)), item.ID)
	}

	// Mouse без description/tax — null в ответе
	rec := env.do(t, http.MethodGet, "/items/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"2","name":"Mouse","description":null,"price":29.99,"tax":null}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListItemsResponse](t, rec)
	assert.Equal(t, 3, list.Count)
	require.Len(t, list.Items, 3)
	assert.Equal(t, []string{"Laptop", "Mouse", "Keyboard"},
		[]string{list.Items[0].Name, list.Items[1].Name, list.Items[2].Name})

	rec = env.do(t, http.MethodPut, "/items/1", `{"name":"Gaming Laptop","price":1299.99}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[domain.Item](t, rec)
	assert.Equal(t, "1", updated.ID)
	assert.Equal(t, "Gaming Laptop", updated.Name)
	assert.Nil(t, updated.Description)
	assert.Nil(t, updated.Tax)

	rec = env.do(t, http.MethodDelete, "/items/2", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/items/2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrorResponse{Detail: "Item not found", Code: ErrCodeNotFound}, decode[ErrorResponse](t, rec))

	// ID не переиспользуется
	rec = env.do(t, http.MethodPost, "/items", `{"name":"Monitor","price":199}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "4", decode[domain.Item](t, rec).ID)

	assert.Equal(t,
		[]mq.MessageType{
			mq.MessageTypeItemCreated, mq.MessageTypeItemCreated, mq.MessageTypeItemCreated,
			mq.MessageTypeItemUpdated, mq.MessageTypeItemDeleted, mq.MessageTypeItemCreated,
		},
		env.publisher.events)
	assert.Equal(t, []string{"1", "2", "3", "1", "2", "4"}, env.publisher.ids)
}

func TestItemsNotFound(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/items/nonexistent", ""},
		{http.MethodPut, "/items/99", `{"name":"X","price":1}`},
		{http.MethodDelete, "/items/99", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "Item not found", decode[ErrorResponse](t, rec).Detail)
		})
	}

	assert.Empty(t, env.publisher.events)
}

func TestItemsInvalidBody(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   ErrorCode
	}{
		{"malformed json", http.MethodPost, "/items", `{"name":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"wrong type", http.MethodPost, "/items", `{"name":"X","price":"cheap"}`, http.StatusBadRequest, ErrCodeBadRequest},
		{"trailing garbage", http.MethodPost, "/items", `{"name":"X","price":1} junk`, http.StatusBadRequest, ErrCodeBadRequest},
		{"two objects", http.MethodPost, "/items", `{"name":"X","price":1}{"name":"Y","price":2}`, http.StatusBadRequest, ErrCodeBadRequest},
		{"update trailing garbage", http.MethodPut, "/items/1", `{"name":"X","price":1}]`, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing name", http.MethodPost, "/items", `{"price":1}`, http.StatusUnprocessableEntity, ErrCodeValidationError},
		{"missing price", http.MethodPost, "/items", `{"name":"X"}`, http.StatusUnprocessableEntity, ErrCodeValidationError},
		{"update missing price", http.MethodPut, "/items/1", `{"name":"X"}`, http.StatusUnprocessableEntity, ErrCodeValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}

	items, err := env.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCreateItemTrailingWhitespace(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/items", "{\"name\":\"X\",\"price\":1}\n  \n")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestStoreFailure(t *testing.T) {
	env := newTestEnv(t, withStore(failingStore{err: errors.New("connection refused")}))

	rec := env.do(t, http.MethodGet, "/items/1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ErrorResponse{Detail: "internal server error", Code: ErrCodeInternalError}, decode[ErrorResponse](t, rec))

	rec = env.do(t, http.MethodGet, "/items", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPublishFailureDoesNotChangeResponse(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.err = errors.New("broker down")

	rec := env.do(t, http.MethodPost, "/items", `{"name":"Laptop","price":1}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, env.publisher.events, 1)
}

func TestSimulateSlow(t *testing.T) {
	env := newTestEnv(t)

	start := time.Now()
	rec := env.do(t, http.MethodGet, "/simulate/slow", "")
	elapsed := time.Since(start)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SlowResponse](t, rec)
	assert.Equal(t, "Slow response", resp.Message)
	assert.GreaterOrEqual(t, resp.DelaySeconds, 0.020)
	assert.LessOrEqual(t, resp.DelaySeconds, 0.040)
	assert.GreaterOrEqual(t, elapsed.Seconds(), resp.DelaySeconds)
	assert.InDelta(t, resp.DelaySeconds, elapsed.Seconds(), 0.05)
}

func TestSimulateSlowCancelled(t *testing.T) {
	sim := fastSimulation()
	sim.SlowMin, sim.SlowMax = time.Hour, time.Hour
	env := newTestEnv(t, withSimulation(sim))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/simulate/slow", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		env.server.ServeHTTP(httptest.NewRecorder(), req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("slow handler ignored cancellation")
	}

	assert.Equal(t, int64(1), env.requestCount(t, EndpointSimulateSlow, http.MethodGet))
	assert.Equal(t, uint64(1), env.durationCount(t, EndpointSimulateSlow, http.MethodGet))
	assert.Zero(t, env.activeConnections(t, "/simulate/slow"))
}

func TestSimulateError(t *testing.T) {
	t.Run("always", func(t *testing.T) {
		sim := fastSimulation()
		sim.ErrorRate = 1
		env := newTestEnv(t, withSimulation(sim))

		for range 20 {
			rec := env.do(t, http.MethodGet, "/simulate/error", "")
			require.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, "Simulated internal server error", decode[ErrorResponse](t, rec).Detail)
		}
	})

	t.Run("never", func(t *testing.T) {
		sim := fastSimulation()
		sim.ErrorRate = 0
		env := newTestEnv(t, withSimulation(sim))

		for range 20 {
			rec := env.do(t, http.MethodGet, "/simulate/error", "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "Success!", decode[MessageResponse](t, rec).Message)
		}
	})

	t.Run("rate", func(t *testing.T) {
		env := newTestEnv(t)

		const calls = 1000
		failures := 0
		for range calls {
			if env.do(t, http.MethodGet, "/simulate/error", "").Code == http.StatusInternalServerError {
				failures++
			}
		}
		assert.InDelta(t, 0.5, float64(failures)/calls, 0.1)
		assert.Equal(t, int64(calls), env.requestCount(t, EndpointSimulateError, http.MethodGet))
	})
}

func TestRequestMetrics(t *testing.T) {
	env := newTestEnv(t)

	requests := []struct {
		method   string
		path     string
		body     string
		endpoint string
	}{
		{http.MethodGet, "/", "", EndpointRoot},
		{http.MethodGet, "/health", "", EndpointHealth},
		{http.MethodPost, "/items", `{"name":"A","price":1}`, EndpointItems},
		{http.MethodGet, "/items", "", EndpointItems},
		{http.MethodGet, "/items/1", "", EndpointItem},
		{http.MethodPut, "/items/1", `{"name":"B","price":2}`, EndpointItem},
		{http.MethodDelete, "/items/1", "", EndpointItem},
		{http.MethodGet, "/items/1", "", EndpointItem}, // 404
		{http.MethodPost, "/items", `{"name":`, EndpointItems}, // 400
		{http.MethodGet, "/simulate/slow", "", EndpointSimulateSlow},
	}
	for _, rq := range requests {
		env.do(t, rq.method, rq.path, rq.body)
	}

	wantCount := map[[2]string]int64{}
	for _, rq := range requests {
		wantCount[[2]string{rq.endpoint, rq.method}]++
	}
	for key, want := range wantCount {
		assert.Equal(t, want, env.requestCount(t, key[0], key[1]), "requests.total %v", key)
		assert.Equal(t, uint64(want), env.durationCount(t, key[0], key[1]), "processing.duration %v", key)
	}

	for _, path := range []string{"/", "/health", "/items", "/items/1", "/simulate/slow"} {
		assert.Zero(t, env.activeConnections(t, path), path)
	}
}

func TestSimulateErrorIsNotTimed(t *testing.T) {
	env := newTestEnv(t)

	for range 10 {
		env.do(t, http.MethodGet, "/simulate/error", "")
	}

	assert.Equal(t, int64(10), env.requestCount(t, EndpointSimulateError, http.MethodGet))
	assert.Zero(t, env.durationCount(t, EndpointSimulateError, http.MethodGet))
	assert.Zero(t, env.activeConnections(t, "/simulate/error"))
}

func TestActiveConnectionsDuringRequest(t *testing.T) {
	sim := fastSimulation()
	sim.SlowMin, sim.SlowMax = 200*time.Millisecond, 200*time.Millisecond
	env := newTestEnv(t, withSimulation(sim))

	done := make(chan struct{})
	go func() {
		env.do(t, http.MethodGet, "/simulate/slow", "")
		close(done)
	}()

	require.Eventually(t, func() bool {
		return env.activeConnections(t, "/simulate/slow") == 1
	}, time.Second, 5*time.Millisecond)

	<-done
	assert.Zero(t, env.activeConnections(t, "/simulate/slow"))
}

func TestPanicKeepsMetricsConsistent(t *testing.T) {
	env := newTestEnv(t)
	inst := env.handler.instruments

	boom := Chain(
		ActiveConnections(inst),
		Recovery(env.handler.logger),
		Instrument(inst, "/boom", http.MethodGet, true),
	)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	boom.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ErrCodeInternalError, decode[ErrorResponse](t, rec).Code)
	assert.Equal(t, int64(1), env.requestCount(t, "/boom", http.MethodGet))
	assert.Equal(t, uint64(1), env.durationCount(t, "/boom", http.MethodGet))
	assert.Zero(t, env.activeConnections(t, "/boom"))
}

func TestActiveConnectionsUnrecoveredPanic(t *testing.T) {
	env := newTestEnv(t)

	h := ActiveConnections(env.handler.instruments)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	assert.Panics(t, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/raw", nil))
	})
	assert.Zero(t, env.activeConnections(t, "/raw"))
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Len(t, rec.Header().Get(HeaderRequestID), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "# metrics\n")
	})
	env := newTestEnv(t, withMetricsHandler(metrics))

	rec := env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics\n", rec.Body.String())
	assert.Zero(t, env.requestCount(t, EndpointMetrics, http.MethodGet))
}

func TestHTTPServerMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/health", "")

	found := false
	for name := range env.collect(t) {
		if strings.HasPrefix(name, "http.server.") {
			found = true
		}
	}
	assert.True(t, found, "otelhttp metrics missing")
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK)

	assert.Equal(t, http.StatusTeapot, rw.status)
	assert.Same(t, rec, rw.Unwrap())
}

func TestUniform(t *testing.T) {
	for range 100 {
		d := uniform(10*time.Millisecond, 50*time.Millisecond)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 50*time.Millisecond)
	}
	assert.Equal(t, 5*time.Millisecond, uniform(5*time.Millisecond, 5*time.Millisecond))
}
