package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("missing amount"), http.StatusBadRequest},
		{"unauthorized", Unauthorized("admin only"), http.StatusUnauthorized},
		{"not found", NotFound("plan not found"), http.StatusNotFound},
		{"conflict", Conflict("email taken"), http.StatusConflict},
		{"upstream", Upstream("db down", errors.New("dial tcp")), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("handler: %w", NotFound("user")), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestUpstreamKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("could not save payment", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "connection refused", err.Details())
	assert.True(t, Is(err, KindUpstream))
	assert.False(t, Is(err, KindValidation))
}
