package neon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/donorbridge/donorbridge/internal/canonical"
	"github.com/donorbridge/donorbridge/internal/credentials"
	"github.com/donorbridge/donorbridge/internal/retry"
	"github.com/donorbridge/donorbridge/internal/vendors"
)

func testCreds() credentials.Fields {
	return credentials.Fields{
		FieldOrgID:  "org-123",
		FieldAPIKey: "test-api-key",
	}
}

func newTestAdapter(t *testing.T, serverURL string) *Adapter {
	t.Helper()

	a, err := New(testCreds(),
		WithBaseURL(serverURL),
		WithPageSize(2),
		WithTimeout(5*time.Second))
	require.NoError(t, err)
	return a
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		creds   credentials.Fields
		opts    []Option
		wantErr string
	}{
		"valid credentials": {
			creds: testCreds(),
		},
		"missing org id": {
			creds:   credentials.Fields{FieldAPIKey: "key"},
			wantErr: "organization ID",
		},
		"missing api key": {
			creds:   credentials.Fields{FieldOrgID: "org"},
			wantErr: "API key",
		},
		"invalid option": {
			creds:   testCreds(),
			opts:    []Option{WithPageSize(0)},
			wantErr: "page size",
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			a, err := New(tc.creds, tc.opts...)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, canonical.ProviderNeon, a.Provider())
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(accountsResponse{})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	require.NoError(t, a.ValidateCredentials(context.Background()))
	require.NotEmpty(t, gotAuth, "expected basic auth header")
}

func TestValidateCredentialsRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	err := a.ValidateCredentials(context.Background())
	require.ErrorContains(t, err, "regenerate the API key")
	require.False(t, retry.Retryable(err), "auth rejection must not be retried")
}

func TestFetchConstituentsPaging(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("currentPage")
		resp := accountsResponse{}
		switch page {
		case "", "1":
			resp.Accounts = []vendors.RawRecord{{"accountId": "a1"}, {"accountId": "a2"}}
			resp.Pagination.CurrentPage = 1
		case "2":
			resp.Accounts = []vendors.RawRecord{{"accountId": "a3"}}
			resp.Pagination.CurrentPage = 2
		}
		resp.Pagination.TotalPages = 2
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	since := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	first, err := a.FetchConstituents(context.Background(), since, "")
	require.NoError(t, err)
	require.Len(t, first.Records, 2)
	require.True(t, first.HasMore)
	require.Equal(t, "2", first.NextCursor)

	second, err := a.FetchConstituents(context.Background(), since, first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Records, 1)
	require.False(t, second.HasMore)
	require.Empty(t, second.NextCursor)
}

func TestFetchConstituentsSendsSinceFilter(t *testing.T) {
	t.Parallel()

	var gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("updatedAfter")
		_ = json.NewEncoder(w).Encode(accountsResponse{})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	since := time.Date(2026, 7, 15, 10, 30, 0, 0, time.UTC)

	_, err := a.FetchConstituents(context.Background(), since, "")
	require.NoError(t, err)
	require.Equal(t, "2026-07-15", gotSince)
}

func TestFetchDonationsCursorAdvances(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := donationsResponse{}
		switch r.URL.Query().Get("afterId") {
		case "":
			resp.Donations = []vendors.RawRecord{{"donationId": 10}, {"donationId": 20}}
			resp.HasMore = true
		case "20":
			resp.Donations = []vendors.RawRecord{{"donationId": 30}}
		default:
			t.Errorf("unexpected afterId %q", r.URL.Query().Get("afterId"))
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	since := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	first, err := a.FetchDonations(context.Background(), since, "")
	require.NoError(t, err)
	require.Len(t, first.Records, 2)
	require.True(t, first.HasMore)
	require.Equal(t, "20", first.NextCursor)

	second, err := a.FetchDonations(context.Background(), since, first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Records, 1)
	require.False(t, second.HasMore)
}

func TestFetchDonationsStalledCursorStopsStream(t *testing.T) {
	t.Parallel()

	// The vendor keeps serving the same page and claiming there is more.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(donationsResponse{
			Donations: []vendors.RawRecord{{"donationId": 42}},
			HasMore:   true,
		})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	since := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	first, err := a.FetchDonations(context.Background(), since, "")
	require.NoError(t, err)
	require.True(t, first.HasMore)

	// Same max ID again: the guard ends the stream as a normal completion.
	second, err := a.FetchDonations(context.Background(), since, first.NextCursor)
	require.NoError(t, err)
	require.False(t, second.HasMore)
	require.Empty(t, second.NextCursor)
}

func TestFetchDonationsRateLimitIsRetryable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"slow down"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)

	_, err := a.FetchDonations(context.Background(), time.Now(), "")
	require.Error(t, err)
	require.True(t, retry.Retryable(err))
}

func TestGetRedactsErrorBodies(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, fmt.Sprintf("bad request: api_key=%s", "super-secret"), http.StatusBadRequest)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)

	_, err := a.FetchConstituents(context.Background(), time.Now(), "")
	require.Error(t, err)
	require.NotContains(t, err.Error(), "super-secret")
}
