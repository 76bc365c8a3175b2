package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genrelay/server/internal/port/outbound"
)

func TestCaller_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := NewCaller(server.Client(), CallerOptions{Provider: "test"})
	resp, err := c.PostJSON(context.Background(), server.URL, http.Header{"Authorization": {"Bearer k"}}, map[string]string{"a": "b"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "application/json", resp.ContentType)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestCaller_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer server.Close()

	c := NewCaller(server.Client(), CallerOptions{Provider: "test"})
	_, err := c.Get(context.Background(), server.URL, nil)

	var perr *outbound.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "test", perr.Provider)
	assert.Equal(t, "unexpected status", perr.Reason)
	assert.Equal(t, http.StatusTooManyRequests, perr.Status)
	assert.Contains(t, err.Error(), "slow down")
}

func TestCaller_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := NewCaller(server.Client(), CallerOptions{Provider: "slow", Timeout: 50 * time.Millisecond})
	_, err := c.Get(context.Background(), server.URL, nil)

	var perr *outbound.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "timeout", perr.Reason)
}

func TestCaller_RateLimitWaitCountsAgainstTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := NewCaller(server.Client(), CallerOptions{Provider: "limited", RPS: 0.01, Burst: 1, Timeout: 50 * time.Millisecond})

	_, err := c.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), server.URL, nil)
	var perr *outbound.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "rate limited", perr.Reason)
}

func TestCaller_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewCaller(nil, CallerOptions{Provider: "gone"})
	_, err := c.Get(context.Background(), url, nil)

	var perr *outbound.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "request failed", perr.Reason)
}
