package domain

import "errors"

// Ошибки валидации входных данных.
var (
	// ErrNameRequired — в теле запроса нет поля name.
	ErrNameRequired = errors.New("field required: name")

	// ErrPriceRequired — в теле запроса нет поля price.
	ErrPriceRequired = errors.New("field required: price")
)

// Item — товар в коллекции.
//
// ID назначается хранилищем при создании и не меняется при обновлении.
// Description и Tax необязательны и сериализуются как null, если не заданы.
type Item struct {
	// ID — строковый идентификатор ("1", "2", ...).
	ID string `json:"id"`

	// Name — название товара.
	Name string `json:"name"`

	// Description — описание товара.
	Description *string `json:"description"`

	// Price — цена.
	Price float64 `json:"price"`

	// Tax — налог.
	Tax *float64 `json:"tax"`
}

// ItemInput — тело запроса на создание или полную замену товара.
//
// Name и Price — указатели, чтобы отличить отсутствующее поле от нулевого
// значения.
type ItemInput struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Tax         *float64 `json:"tax"`
}

// Validate проверяет наличие обязательных полей.
func (in ItemInput) Validate() error {
	if in.Name == nil {
		return ErrNameRequired
	}
	if in.Price == nil {
		return ErrPriceRequired
	}
	return nil
}

// ToItem собирает Item с указанным ID.
// Вызывать только после успешного Validate.
func (in ItemInput) ToItem(id string) Item {
	return Item{
		ID:          id,
		Name:        *in.Name,
		Description: in.Description,
		Price:       *in.Price,
		Tax:         in.Tax,
	}
}
