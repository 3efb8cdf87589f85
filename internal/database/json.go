package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JsonColumn wraps a value which is stored in the database as
// JSON/JSONB, allowing sqlx to scan and write it transparently.
type JsonColumn[T any] struct {
	val T
}

func NewJsonColumn[T any](v T) JsonColumn[T] {
	return JsonColumn[T]{val: v}
}

func (j *JsonColumn[T]) Scan(src any) error {
	if src == nil {
		var zero T
		j.val = zero
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("json column: unsupported scan source type")
	}

	return json.Unmarshal(raw, &j.val)
}

func (j JsonColumn[T]) Value() (driver.Value, error) {
	raw, err := json.Marshal(j.val)
	if err != nil {
		return nil, err
	}

	return string(raw), nil
}

func (j *JsonColumn[T]) Get() *T {
	return &j.val
}
