package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/genrelay/server/internal/model"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns message", func(t *testing.T) {
		err := &AppError{Code: "TEST_ERROR", Message: "test error message"}
		assert.Equal(t, "test error message", err.Error())
	})

	t.Run("Error includes wrapped error", func(t *testing.T) {
		err := &AppError{Code: "TEST_ERROR", Message: "outer", Err: errors.New("inner")}
		assert.Equal(t, "outer: inner", err.Error())
	})

	t.Run("Is matches by code", func(t *testing.T) {
		assert.True(t, errors.Is(BadGateway("x"), &AppError{Code: "BAD_GATEWAY"}))
		assert.False(t, errors.Is(BadGateway("x"), &AppError{Code: "BAD_REQUEST"}))
	})

	t.Run("Is matches sentinel", func(t *testing.T) {
		assert.True(t, errors.Is(QuotaExceeded("x"), ErrQuotaExceeded))
	})
}

func TestToResponse(t *testing.T) {
	resp := Unauthorized("").ToResponse()

	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
	assert.Equal(t, "authentication required", resp.Error.Message)
}

func TestFromFailure(t *testing.T) {
	tests := []struct {
		kind   model.FailureKind
		status int
		code   string
	}{
		{model.FailureValidation, http.StatusBadRequest, "BAD_REQUEST"},
		{model.FailureQuotaDenied, http.StatusTooManyRequests, "QUOTA_EXCEEDED"},
		{model.FailureChainExhausted, http.StatusBadGateway, "BAD_GATEWAY"},
		{model.FailureStorage, http.StatusBadGateway, "BAD_GATEWAY"},
		{model.FailureNoProvider, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{model.FailureUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{model.FailureKind("other"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := FromFailure(&model.Failure{Kind: tt.kind, Message: "msg"})
			assert.Equal(t, tt.status, err.StatusCode)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, "msg", err.Message)
		})
	}

	assert.Nil(t, FromFailure(nil))
}

func TestStatusOf(t *testing.T) {
	fail := func(mode model.Mode, kind model.FailureKind) *model.GenerationResult {
		return &model.GenerationResult{Mode: mode, Failure: &model.Failure{Kind: kind}}
	}

	assert.Equal(t, http.StatusOK, StatusOf(&model.GenerationResult{OK: true, Mode: model.ModeImage}))
	assert.Equal(t, http.StatusOK, StatusOf(fail(model.ModeText, model.FailureChainExhausted)))
	assert.Equal(t, http.StatusOK, StatusOf(fail(model.ModeText, model.FailureNoProvider)))
	assert.Equal(t, http.StatusBadRequest, StatusOf(fail(model.ModeText, model.FailureValidation)))
	assert.Equal(t, http.StatusTooManyRequests, StatusOf(fail(model.ModeImage, model.FailureQuotaDenied)))
	assert.Equal(t, http.StatusBadGateway, StatusOf(fail(model.ModeImage, model.FailureChainExhausted)))
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(fail(model.ModeImage, model.FailureNoProvider)))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(nil))
}
