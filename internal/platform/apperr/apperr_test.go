// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/skpdportal/internal/platform/apperr"
)

/*
TestAs finds an AppError through wrapping layers.
*/
func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("login_failed: %w", apperr.Locked("ACCOUNT_LOCKED", "Account temporarily locked"))

	appError := apperr.As(wrapped)
	require.NotNil(t, appError)
	assert.Equal(t, http.StatusLocked, appError.HTTPStatus)
	assert.Equal(t, "ACCOUNT_LOCKED", appError.Code)

	assert.Nil(t, apperr.As(errors.New("plain")))
}

/*
TestInternal keeps the cause reachable but out of the client message.
*/
func TestInternal(t *testing.T) {
	cause := errors.New("postgres_find_account_failed: connection reset")
	appError := apperr.Internal(cause)

	assert.ErrorIs(t, appError, cause)
	assert.NotContains(t, appError.Error(), "postgres")
	assert.Equal(t, http.StatusInternalServerError, appError.HTTPStatus)
}
