package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, 0, p.Offset)
}

func TestFromRequest_Defaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	p := FromRequest(req)

	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, 0, p.Offset)
}

func TestFromRequest_CustomValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/search?page=3&limit=25", nil)
	p := FromRequest(req)

	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 25, p.Limit)
	assert.Equal(t, 50, p.Offset) // (3-1) * 25
}

func TestFromRequest_InvalidPage(t *testing.T) {
	for _, page := range []string{"-1", "0", "abc"} {
		t.Run(page, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/search?page="+page, nil)
			assert.Equal(t, 1, FromRequest(req).Page)
		})
	}
}

func TestFromRequest_LimitClampedToMax(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/search?limit=200", nil)
	assert.Equal(t, MaxLimit, FromRequest(req).Limit)
}

func TestFromRequest_LimitZeroUsesDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/search?limit=0", nil)
	assert.Equal(t, DefaultLimit, FromRequest(req).Limit)
}

func TestNew_OffsetCalculation(t *testing.T) {
	tests := []struct {
		page   int
		limit  int
		offset int
	}{
		{1, 10, 0},
		{2, 10, 10},
		{3, 25, 50},
		{4, 50, 150},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.offset, New(tt.page, tt.limit).Offset)
	}
}

func TestTotalPages(t *testing.T) {
	p := New(1, 20)
	assert.Equal(t, 0, p.TotalPages(0))
	assert.Equal(t, 1, p.TotalPages(1))
	assert.Equal(t, 1, p.TotalPages(20))
	assert.Equal(t, 2, p.TotalPages(21))
	assert.Equal(t, 5, p.TotalPages(100))
}
