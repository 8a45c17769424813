package repo

import "errors"

// Общие ошибки хранилищ.
var (
	// ErrNotFound — товар с таким ID отсутствует.
	ErrNotFound = errors.New("item not found")
)
