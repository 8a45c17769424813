package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/shaiso/Itemsvc/internal/domain"
	"github.com/shaiso/Itemsvc/internal/mq"
	"github.com/shaiso/Itemsvc/internal/telemetry"
)

const (
	// maxBodyBytes — предельный размер тела запроса.
	maxBodyBytes = 1 << 20

	// publishTimeout — таймаут публикации события товара.
	publishTimeout = 2 * time.Second
)

// ListItems возвращает все товары.
// GET /items
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	delay := uniform(h.simulation.ListDelayMin, h.simulation.ListDelayMax)
	if err := sleep(ctx, delay); err != nil {
		return
	}

	items, err := h.store.List(ctx)
	if HandleStoreError(w, telemetry.FromContext(ctx), err) {
		return
	}

	Success(w, ListItemsResponse{Items: items, Count: len(items)})
}

// CreateItem создаёт товар.
// POST /items
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeItemInput(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	item, err := h.store.Create(ctx, in)
	if HandleStoreError(w, telemetry.FromContext(ctx), err) {
		return
	}

	h.publish(ctx, mq.MessageTypeItemCreated, item.ID, item)
	Created(w, item)
}

// GetItem возвращает товар по ID.
// GET /items/{item_id}
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	item, err := h.store.Get(ctx, r.PathValue("item_id"))
	if HandleStoreError(w, telemetry.FromContext(ctx), err) {
		return
	}

	Success(w, item)
}

// UpdateItem полностью заменяет товар.
// PUT /items/{item_id}
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeItemInput(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	item, err := h.store.Update(ctx, r.PathValue("item_id"), in)
	if HandleStoreError(w, telemetry.FromContext(ctx), err) {
		return
	}

	h.publish(ctx, mq.MessageTypeItemUpdated, item.ID, item)
	Success(w, item)
}

// DeleteItem удаляет товар.
// DELETE /items/{item_id}
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("item_id")

	if err := h.store.Delete(ctx, id); HandleStoreError(w, telemetry.FromContext(ctx), err) {
		return
	}

	h.publish(ctx, mq.MessageTypeItemDeleted, id, nil)
	NoContent(w)
}

// decodeItemInput читает и проверяет тело запроса.
// При ошибке ответ уже отправлен.
func decodeItemInput(w http.ResponseWriter, r *http.Request) (domain.ItemInput, bool) {
	var in domain.ItemInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		BadRequest(w, MsgInvalidRequestBody)
		return in, false
	}
	// после объекта допустимы только пробелы
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		BadRequest(w, MsgInvalidRequestBody)
		return in, false
	}

	if err := in.Validate(); err != nil {
		ValidationError(w, err.Error())
		return in, false
	}
	return in, true
}

// publish отправляет событие товара. Ошибки только логируются.
func (h *Handler) publish(ctx context.Context, typ mq.MessageType, itemID string, item *domain.Item) {
	if h.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := h.publisher.PublishItemEvent(ctx, typ, itemID, item); err != nil {
		telemetry.FromContext(ctx).Warn("failed to publish item event",
			"type", typ,
			"item_id", itemID,
			"error", err,
		)
	}
}

// uniform возвращает случайную длительность из [lo, hi].
func uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Float64()*float64(hi-lo))
}

// sleep ждёт d или отмены ctx.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
