package util_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/api/util"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(id string) echo.Context {
	ec := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	ec.SetParamNames("id")
	ec.SetParamValues(id)
	return ec
}

func Test_ParseIDParam(t *testing.T) {
	expected := uuid.New()
	id, err := util.ParseIDParam(newContext(expected.String()), "Scene")
	require.NoError(t, err)
	assert.Equal(t, expected, id)

	_, err = util.ParseIDParam(newContext("not-a-uuid"), "Scene")
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	assert.Equal(t, "Scene ID is not a valid UUID", httpErr.Message)
}

func Test_ApplyConversion_NeverNil(t *testing.T) {
	out := util.ApplyConversion[int, string](nil, func(int) string { return "x" })
	assert.NotNil(t, out)
	assert.Empty(t, out)

	assert.Equal(t, []int{2, 4}, util.ApplyConversion([]int{1, 2}, func(i int) int { return i * 2 }))
}

func Test_NotNilOrDefault(t *testing.T) {
	name := "updated"
	assert.Equal(t, "updated", util.NotNilOrDefault(&name, "stored"))
	assert.Equal(t, "stored", util.NotNilOrDefault((*string)(nil), "stored"))
}
