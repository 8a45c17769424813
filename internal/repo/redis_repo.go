package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/shaiso/Itemsvc/internal/domain"
)

// Ключи Redis.
const (
	redisItemsKey = "itemsvc:items"
	redisSeqKey   = "itemsvc:items:seq"
)

// RedisItemRepo — хранилище товаров в Redis.
//
// Товары лежат в hash itemsvc:items (поле — ID, значение — JSON),
// ID выдаются через INCR itemsvc:items:seq.
type RedisItemRepo struct {
	rdb *redis.Client
}

// NewRedisItemRepo создаёт RedisItemRepo поверх готового клиента.
func NewRedisItemRepo(rdb *redis.Client) *RedisItemRepo {
	return &RedisItemRepo{rdb: rdb}
}

// NewRedisClient разбирает URL вида redis://host:port/db и проверяет соединение.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// List возвращает все товары, упорядоченные по ID.
func (r *RedisItemRepo) List(ctx context.Context) ([]domain.Item, error) {
	raw, err := r.rdb.HGetAll(ctx, redisItemsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	items := make([]domain.Item, 0, len(raw))
	for id, data := range raw {
		var item domain.Item
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", id, err)
		}
		items = append(items, item)
	}
	SortByID(items)
	return items, nil
}

// Create сохраняет новый товар.
func (r *RedisItemRepo) Create(ctx context.Context, in domain.ItemInput) (*domain.Item, error) {
	seq, err := r.rdb.Incr(ctx, redisSeqKey).Result()
	if err != nil {
		return nil, fmt.Errorf("next item id: %w", err)
	}

	item := in.ToItem(strconv.FormatInt(seq, 10))
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}

	if err := r.rdb.HSet(ctx, redisItemsKey, item.ID, data).Err(); err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return &item, nil
}

// Get возвращает товар по ID.
func (r *RedisItemRepo) Get(ctx context.Context, id string) (*domain.Item, error) {
	data, err := r.rdb.HGet(ctx, redisItemsKey, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	var item domain.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("decode item %s: %w", id, err)
	}
	return &item, nil
}

// updateScript заменяет значение поля, только если оно существует.
// Возвращает -1 для отсутствующего товара.
var updateScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
	return redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
end
return -1
`)

// Update заменяет товар. Проверка существования и запись выполняются
// одним Lua скриптом, поэтому удалённый товар не воскресает, а
// параллельные записи других товаров не мешают обновлению.
func (r *RedisItemRepo) Update(ctx context.Context, id string, in domain.ItemInput) (*domain.Item, error) {
	item := in.ToItem(id)
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}

	res, err := updateScript.Run(ctx, r.rdb, []string{redisItemsKey}, id, data).Int64()
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if res < 0 {
		return nil, ErrNotFound
	}
	return &item, nil
}

// Delete удаляет товар.
func (r *RedisItemRepo) Delete(ctx context.Context, id string) error {
	n, err := r.rdb.HDel(ctx, redisItemsKey, id).Result()
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
