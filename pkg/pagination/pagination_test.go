// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pagination_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/skpdportal/pkg/pagination"
)

/*
TestFromRequest verifies parsing and clamping of list parameters.
*/
func TestFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  pagination.Params
	}{
		{"defaults", "", pagination.Params{Page: 1, Limit: 10}},
		{"explicit", "?page=3&limit=25&search=+10.0.0+", pagination.Params{Page: 3, Limit: 25, Search: "10.0.0"}},
		{"negative page", "?page=-2", pagination.Params{Page: 1, Limit: 10}},
		{"limit too large", "?limit=500", pagination.Params{Page: 1, Limit: 100}},
		{"garbage", "?page=abc&limit=xyz", pagination.Params{Page: 1, Limit: 10}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			request := httptest.NewRequest("GET", "/login-attempts"+tc.query, nil)
			assert.Equal(t, tc.want, pagination.FromRequest(request))
		})
	}
}

/*
TestNewMeta verifies total page computation and offsets.
*/
func TestNewMeta(t *testing.T) {
	assert.Equal(t, 3, pagination.NewMeta(1, 10, 21).TotalPages)
	assert.Equal(t, 0, pagination.NewMeta(1, 10, 0).TotalPages)
	assert.Equal(t, 20, pagination.Params{Page: 3, Limit: 10}.Offset())
	assert.Equal(t, 0, pagination.Params{Page: 0, Limit: 10}.Offset())
}
