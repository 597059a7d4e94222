package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoConvertsDeadlineToTimeoutError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = Do(context.Background(), server.Client(), req, 20*time.Millisecond)
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.True(t, timeoutErr.Retryable())
	require.Contains(t, timeoutErr.Error(), "timeout after")
}

func TestDoSucceedsWithinTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := Do(context.Background(), server.Client(), req, time.Second)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.NoError(t, CheckStatus(resp))
}

func TestCheckStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		body          string
		status        int
		wantErr       bool
		wantRetryable bool
	}{
		"200 ok":               {status: http.StatusOK},
		"204 no content":       {status: http.StatusNoContent},
		"429 rate limited":     {status: http.StatusTooManyRequests, wantErr: true, wantRetryable: true},
		"503 unavailable":      {status: http.StatusServiceUnavailable, wantErr: true, wantRetryable: true},
		"504 gateway timeout":  {status: http.StatusGatewayTimeout, wantErr: true, wantRetryable: true},
		"401 unauthorized":     {status: http.StatusUnauthorized, wantErr: true, wantRetryable: false},
		"400 bad request":      {status: http.StatusBadRequest, wantErr: true, wantRetryable: false},
		"500 internal":         {status: http.StatusInternalServerError, wantErr: true, wantRetryable: false},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			resp, err := server.Client().Get(server.URL)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			statusErr := CheckStatus(resp)
			if !tc.wantErr {
				require.NoError(t, statusErr)
				return
			}

			var se *StatusError
			require.ErrorAs(t, statusErr, &se)
			require.Equal(t, tc.status, se.Status)
			require.Equal(t, tc.wantRetryable, se.Retryable())
		})
	}
}

func TestCheckStatusSanitizesBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "invalid", "api_key": "sk-live-secret123"}`))
	}))
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	statusErr := CheckStatus(resp)
	require.Error(t, statusErr)
	require.NotContains(t, statusErr.Error(), "sk-live-secret123")
}

func TestCheckStatusTruncatesLongBodies(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(strings.Repeat("x", 10_000)))
	}))
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	statusErr := CheckStatus(resp)
	require.Error(t, statusErr)
	require.Less(t, len(statusErr.Error()), 1_000)
}
