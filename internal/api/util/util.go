package util

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ApplyConversion maps each of the models to a DTO using the converter
// provided. The result is never nil, so an empty input is rendered as
// an empty JSON array rather than null.
func ApplyConversion[T any, K any](models []T, converter func(T) K) []K {
	dtos := make([]K, 0, len(models))
	for _, v := range models {
		dtos = append(dtos, converter(v))
	}

	return dtos
}

// NotNilOrDefault returns the value behind maybe, or dflt if maybe is nil.
// PATCH requests use this so omitted fields keep their stored value.
func NotNilOrDefault[T any](maybe *T, dflt T) T {
	if maybe == nil {
		return dflt
	}

	return *maybe
}

// ParseIDParam parses the ':id' path parameter of the request as a UUID. A
// 400 HTTP error naming the resource is returned if it is malformed.
func ParseIDParam(ec echo.Context, resource string) (uuid.UUID, error) {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s ID is not a valid UUID", resource))
	}

	return id, nil
}
