// Package docstore описывает документное хранилище, на котором держится сервис:
// выборки с фильтрами равенства и сортировкой, атомарные транзакции
// read-modify-write с автоматическим повтором при конфликте и push-подписки
// на результат запроса.
package docstore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

// IDField - имя поля идентификатора документа
const IDField = "_id"

var (
	ErrNotFound    = errors.New("document not found")
	ErrConflict    = errors.New("transaction retry budget exhausted")
	ErrUnavailable = errors.New("document store unavailable")
)

// Document - документ коллекции; ID не входит в Data
type Document struct {
	ID   string
	Data bson.M
}

// Filter - условие равенства поля значению
type Filter struct {
	Field string
	Value interface{}
}

// SortField - сортировка по одному полю
type SortField struct {
	Field string
	Desc  bool
}

// Query - запрос к коллекции. Фильтры применяются в порядке добавления.
// Хранилище добавляет к сортировке _id в направлении последнего поля,
// поэтому порядок результата всегда полный.
type Query struct {
	Collection string
	Filters    []Filter
	Sort       []SortField
}

// Collection возвращает запрос ко всей коллекции
func Collection(name string) Query {
	return Query{Collection: name}
}

// Where возвращает копию запроса с дополнительным условием равенства
func (q Query) Where(field string, value interface{}) Query {
	out := q.clone()
	out.Filters = append(out.Filters, Filter{Field: field, Value: value})
	return out
}

// OrderBy возвращает копию запроса с дополнительным полем сортировки
func (q Query) OrderBy(field string, desc bool) Query {
	out := q.clone()
	out.Sort = append(out.Sort, SortField{Field: field, Desc: desc})
	return out
}

func (q Query) clone() Query {
	out := Query{Collection: q.Collection}
	if len(q.Filters) > 0 {
		out.Filters = append(make([]Filter, 0, len(q.Filters)+1), q.Filters...)
	}
	if len(q.Sort) > 0 {
		out.Sort = append(make([]SortField, 0, len(q.Sort)+1), q.Sort...)
	}
	return out
}

// TieBreakDesc - направление сортировки по _id для разрешения равенства
func (q Query) TieBreakDesc() bool {
	if len(q.Sort) == 0 {
		return false
	}
	return q.Sort[len(q.Sort)-1].Desc
}

// Store - драйвер документного хранилища
type Store interface {
	// Find выполняет запрос один раз
	Find(ctx context.Context, q Query) ([]Document, error)
	// Get возвращает документ по ID или ErrNotFound
	Get(ctx context.Context, collection, id string) (Document, error)
	// Insert создаёт документ; пустой doc.ID заменяется сгенерированным
	Insert(ctx context.Context, collection string, doc Document) (string, error)
	// Update перезаписывает указанные поля документа или возвращает ErrNotFound
	Update(ctx context.Context, collection, id string, fields bson.M) error
	// RunTransaction выполняет fn атомарно. При конфликте с параллельной
	// записью fn перезапускается со свежим чтением; после исчерпания
	// лимита попыток возвращается ErrConflict. Ошибка fn прерывает
	// транзакцию и возвращается без изменений.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Watch регистрирует постоянную подписку на результат запроса.
	// fn получает полный текущий результат сразу после регистрации и
	// затем при каждом его изменении. ctx ограничивает только регистрацию.
	Watch(ctx context.Context, q Query, fn func([]Document)) (*Subscription, error)
	// NewID генерирует идентификатор документа
	NewID() string
	// Close останавливает все подписки и освобождает соединение
	Close(ctx context.Context) error
}

// Tx - операции внутри транзакции
type Tx interface {
	Get(collection, id string) (Document, error)
	Update(collection, id string, fields bson.M) error
	Insert(collection string, doc Document) error
}
