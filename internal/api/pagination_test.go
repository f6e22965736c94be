package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	t.Run("nil nil to 50 0", func(t *testing.T) {
		l, o := parsePagination(nil, nil)
		assert.Equal(t, int32(50), l)
		assert.Equal(t, int32(0), o)
	})

	t.Run("valid values success", func(t *testing.T) {
		limit, offset := 10, 5
		l, o := parsePagination(&limit, &offset)
		assert.Equal(t, int32(10), l)
		assert.Equal(t, int32(5), o)
	})

	t.Run("limit capped to 100", func(t *testing.T) {
		limit := 200
		l, _ := parsePagination(&limit, nil)
		assert.Equal(t, int32(100), l)
	})

	t.Run("limit minimum set to 1", func(t *testing.T) {
		limit := 0
		l, _ := parsePagination(&limit, nil)
		assert.Equal(t, int32(1), l)
	})

	t.Run("negative offset set to 0", func(t *testing.T) {
		offset := -10
		_, o := parsePagination(nil, &offset)
		assert.Equal(t, int32(0), o)
	})
}

func TestBindPagination(t *testing.T) {
	r := httptest.NewRequest("GET", "/assets?limit=20&offset=40", nil)
	l, o, err := bindPagination(r)
	require.NoError(t, err)
	assert.Equal(t, int32(20), l)
	assert.Equal(t, int32(40), o)

	r = httptest.NewRequest("GET", "/assets?limit=ten", nil)
	_, _, err = bindPagination(r)
	assert.Error(t, err)
}

func TestBuildPaginationMeta(t *testing.T) {
	t.Run("more data", func(t *testing.T) {
		meta := buildPaginationMeta(100, 10, 0)
		assert.Equal(t, int64(100), meta.Total)
		assert.True(t, meta.HasMore)
	})

	t.Run("no more data", func(t *testing.T) {
		meta := buildPaginationMeta(100, 50, 50)
		assert.False(t, meta.HasMore)
	})

	t.Run("empty list is not null", func(t *testing.T) {
		list := newList[int](nil, 0, 50, 0)
		assert.NotNil(t, list.Data)
	})
}
