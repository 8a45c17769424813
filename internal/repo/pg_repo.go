package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Itemsvc/internal/domain"
)

// itemsSchema — DDL таблицы товаров.
const itemsSchema = `
	CREATE TABLE IF NOT EXISTS items (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT,
		price       DOUBLE PRECISION NOT NULL,
		tax         DOUBLE PRECISION
	)
`

// PgItemRepo — хранилище товаров в Postgres.
type PgItemRepo struct {
	pool *pgxpool.Pool
}

// NewPgItemRepo создаёт новый PgItemRepo.
func NewPgItemRepo(pool *pgxpool.Pool) *PgItemRepo {
	return &PgItemRepo{pool: pool}
}

// EnsureSchema создаёт таблицу items, если её нет.
func (r *PgItemRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, itemsSchema); err != nil {
		return fmt.Errorf("create items table: %w", err)
	}
	return nil
}

// List возвращает все товары, упорядоченные по ID.
func (r *PgItemRepo) List(ctx context.Context) ([]domain.Item, error) {
	query := `
		SELECT id, name, description, price, tax
		FROM items
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []domain.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Create вставляет товар; ID выдаёт последовательность BIGSERIAL.
func (r *PgItemRepo) Create(ctx context.Context, in domain.ItemInput) (*domain.Item, error) {
	query := `
		INSERT INTO items (name, description, price, tax)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query, *in.Name, in.Description, *in.Price, in.Tax).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	item := in.ToItem(strconv.FormatInt(id, 10))
	return &item, nil
}

// Get возвращает товар по ID.
func (r *PgItemRepo) Get(ctx context.Context, id string) (*domain.Item, error) {
	key, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}

	query := `
		SELECT id, name, description, price, tax
		FROM items
		WHERE id = $1
	`
	item, err := scanItem(r.pool.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item by id: %w", err)
	}
	return item, nil
}

// Update полностью заменяет поля товара.
func (r *PgItemRepo) Update(ctx context.Context, id string, in domain.ItemInput) (*domain.Item, error) {
	key, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}

	query := `
		UPDATE items
		SET name = $2, description = $3, price = $4, tax = $5
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, key, *in.Name, in.Description, *in.Price, in.Tax)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	item := in.ToItem(id)
	return &item, nil
}

// Delete удаляет товар.
func (r *PgItemRepo) Delete(ctx context.Context, id string) error {
	key, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, key)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanItem читает строку items в domain.Item.
func scanItem(row pgx.Row) (*domain.Item, error) {
	var (
		id   int64
		item domain.Item
	)
	if err := row.Scan(&id, &item.Name, &item.Description, &item.Price, &item.Tax); err != nil {
		return nil, err
	}
	item.ID = strconv.FormatInt(id, 10)
	return &item, nil
}

// parseID переводит строковый ID в ключ таблицы.
// Нечисловой или неканонический ID ("01", "+1") не может
// существовать в таблице.
func parseID(id string) (int64, bool) {
	key, err := strconv.ParseInt(id, 10, 64)
	if err != nil || key <= 0 || strconv.FormatInt(key, 10) != id {
		return 0, false
	}
	return key, true
}
