package response

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otelapi/pkg/errors"
)

func TestErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errors.InvalidUserID, http.StatusBadRequest},
		{errors.ValidationFailed, http.StatusBadRequest},
		{errors.UserNotFound, http.StatusNotFound},
		{errors.TooManyRequests, http.StatusTooManyRequests},
		{errors.ProductsUnavailable, http.StatusInternalServerError},
		{errors.TelemetryUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", errors.UserNotFound), http.StatusNotFound},
		{fmt.Errorf("plain failure"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, errorToHTTPStatus(tc.err), tc.err.Error())
	}
}

func TestErrorWritesEnvelopeAndRecordsError(t *testing.T) {
	c := app.NewContext(0)

	ErrorWithDetails(context.Background(), c, errors.UserNotFound, map[string]interface{}{"requested_id": "42"})

	assert.Equal(t, http.StatusNotFound, c.Response.StatusCode())
	require.Len(t, c.Errors, 1)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(c.Response.Body(), &body))
	assert.Equal(t, "USER_NOT_FOUND", body.Error.Code)
	assert.Equal(t, "User not found", body.Error.Message)
	assert.Equal(t, "42", body.Error.Details["requested_id"])
}

func TestUnknownErrorIsInternal(t *testing.T) {
	c := app.NewContext(0)

	Error(context.Background(), c, fmt.Errorf("boom"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(c.Response.Body(), &body))
	assert.Equal(t, http.StatusInternalServerError, c.Response.StatusCode())
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body.Error.Code)
	assert.Equal(t, "boom", body.Error.Message)
}

func TestCreated(t *testing.T) {
	c := app.NewContext(0)

	Created(context.Background(), c, map[string]int{"id": 4})

	assert.Equal(t, http.StatusCreated, c.Response.StatusCode())
	assert.JSONEq(t, `{"data":{"id":4}}`, string(c.Response.Body()))
}
