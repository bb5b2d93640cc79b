package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paramsFor(query string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/patients"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		limit  int
		offset int
	}{
		{"defaults", "", DefaultLimit, 0},
		{"custom", "?limit=50&offset=10", 50, 10},
		{"garbage", "?limit=abc&offset=-3", DefaultLimit, 0},
		{"zero limit", "?limit=0", DefaultLimit, 0},
		{"clamped", "?limit=5000", MaxLimit, 0},
		{"exact max", "?limit=100&offset=200", MaxLimit, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := paramsFor(tt.query)
			assert.Equal(t, tt.limit, p.Limit)
			assert.Equal(t, tt.offset, p.Offset)
		})
	}
}

func TestNewPage_HasMore(t *testing.T) {
	p := Params{Limit: 2, Offset: 0}

	page := NewPage([]string{"a", "b"}, 5, p)
	assert.True(t, page.HasMore)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.Limit)

	last := NewPage([]string{"e"}, 5, Params{Limit: 2, Offset: 4})
	assert.False(t, last.HasMore)
}

func TestNewPage_NilRendersEmptyArray(t *testing.T) {
	var items []int
	body, err := json.Marshal(NewPage(items, 0, Params{Limit: DefaultLimit}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[],"total":0,"limit":20,"offset":0,"has_more":false}`, string(body))
}
