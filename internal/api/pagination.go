package api

import (
	"net/http"

	"github.com/oapi-codegen/runtime"
)

type PaginationMeta struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

type ListResponse[T any] struct {
	Data []T           `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

// parsePagination normalizes limit/offset query params.
// limit=50, offset=0. limit capped at 100, minimum 1.
// offset min 0
func parsePagination(limit, offset *int) (int32, int32) {
	l := int32(50)
	o := int32(0)
	if limit != nil {
		l = int32(*limit)
	}
	if offset != nil {
		o = int32(*offset)
	}
	if l > 100 {
		l = 100
	}
	if l < 1 {
		l = 1
	}
	if o < 0 {
		o = 0
	}
	return l, o
}

// bindPagination reads limit and offset from the query string.
func bindPagination(r *http.Request) (int32, int32, error) {
	var limit, offset *int
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		return 0, 0, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", query, &offset); err != nil {
		return 0, 0, err
	}
	l, o := parsePagination(limit, offset)
	return l, o, nil
}

func buildPaginationMeta(total int64, limit, offset int32) PaginationMeta {
	return PaginationMeta{
		Total:   total,
		Limit:   int(limit),
		Offset:  int(offset),
		HasMore: int64(offset)+int64(limit) < total,
	}
}

func newList[T any](data []T, total int64, limit, offset int32) ListResponse[T] {
	if data == nil {
		data = []T{}
	}
	return ListResponse[T]{Data: data, Meta: buildPaginationMeta(total, limit, offset)}
}
