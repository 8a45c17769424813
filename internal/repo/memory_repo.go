package repo

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"sync"

	"github.com/shaiso/Itemsvc/internal/domain"
)

// MemoryItemRepo — хранилище товаров в памяти процесса.
//
// ID выдаются из монотонного счётчика и не переиспользуются после удаления.
// Все операции защищены мьютексом.
type MemoryItemRepo struct {
	mu     sync.RWMutex
	items  map[string]domain.Item
	lastID int64
}

// NewMemoryItemRepo создаёт пустое хранилище.
func NewMemoryItemRepo() *MemoryItemRepo {
	return &MemoryItemRepo{items: make(map[string]domain.Item)}
}

// List возвращает все товары, упорядоченные по ID.
func (r *MemoryItemRepo) List(_ context.Context) ([]domain.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]domain.Item, 0, len(r.items))
	for _, item := range r.items {
		items = append(items, item)
	}
	SortByID(items)
	return items, nil
}

// Create сохраняет новый товар и назначает ему следующий ID.
func (r *MemoryItemRepo) Create(_ context.Context, in domain.ItemInput) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	item := in.ToItem(strconv.FormatInt(r.lastID, 10))
	r.items[item.ID] = item
	return &item, nil
}

// Get возвращает товар по ID.
func (r *MemoryItemRepo) Get(_ context.Context, id string) (*domain.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

// Update полностью заменяет поля товара, сохраняя ID.
func (r *MemoryItemRepo) Update(_ context.Context, id string, in domain.ItemInput) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return nil, ErrNotFound
	}
	item := in.ToItem(id)
	r.items[id] = item
	return &item, nil
}

// Delete удаляет товар.
func (r *MemoryItemRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

// SortByID упорядочивает товары по ID: сначала по длине, затем
// лексикографически. Для десятичных ID без ведущих нулей это числовой порядок.
func SortByID(items []domain.Item) {
	slices.SortFunc(items, func(a, b domain.Item) int {
		if c := cmp.Compare(len(a.ID), len(b.ID)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
