// Package neon provides the Neon CRM vendor adapter: credential validation,
// paginated fetches, and mapping into the canonical model.
package neon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/donorbridge/donorbridge/internal/canonical"
	"github.com/donorbridge/donorbridge/internal/credentials"
	"github.com/donorbridge/donorbridge/internal/httpx"
	"github.com/donorbridge/donorbridge/internal/pagination"
	"github.com/donorbridge/donorbridge/internal/vendors"
)

const (
	// FieldAPIKey is the credential field holding the API key.
	FieldAPIKey = "apiKey"

	// FieldOrgID is the credential field holding the organization ID.
	FieldOrgID = "orgId"

	isoDate = "2006-01-02"
)

// Adapter is the Neon CRM vendor adapter.
type Adapter struct {
	// apiKey authenticates API requests together with orgID.
	apiKey string

	// baseURL is the base URL for API requests.
	baseURL string

	// guard verifies the donation ID cursor strictly advances.
	guard pagination.CursorGuard

	// httpClient is the HTTP client for making requests.
	httpClient *http.Client

	// logger is the structured logger for data-quality warnings.
	logger *slog.Logger

	// orgID is the Neon organization identifier.
	orgID string

	// pageSize is the requested records per page.
	pageSize int

	// timeout bounds each HTTP request.
	timeout time.Duration
}

// accountsResponse is the wire shape of the accounts listing.
type accountsResponse struct {
	Accounts   []vendors.RawRecord `json:"accounts"`
	Pagination struct {
		CurrentPage int `json:"currentPage"`
		TotalPages  int `json:"totalPages"`
	} `json:"pagination"`
}

// donationsResponse is the wire shape of the donations listing.
type donationsResponse struct {
	Donations []vendors.RawRecord `json:"donations"`
	HasMore   bool                `json:"hasMore"`
}

// New creates a Neon adapter from a decoded credential bundle.
func New(creds credentials.Fields, opts ...Option) (*Adapter, error) {
	orgID := creds[FieldOrgID]
	apiKey := creds[FieldAPIKey]
	if orgID == "" {
		return nil, errors.New("organization ID credential is required")
	}
	if apiKey == "" {
		return nil, errors.New("API key credential is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Adapter{
		apiKey:     apiKey,
		baseURL:    o.baseURL,
		httpClient: httpClient,
		logger:     o.logger,
		orgID:      orgID,
		pageSize:   o.pageSize,
		timeout:    o.timeout,
	}, nil
}

// Provider identifies the vendor.
func (a *Adapter) Provider() canonical.Provider {
	return canonical.ProviderNeon
}

// ValidateCredentials verifies the org ID and API key against the accounts
// endpoint. Auth rejections carry a remediation hint for the operator.
func (a *Adapter) ValidateCredentials(ctx context.Context) error {
	params := url.Values{}
	params.Set("pageSize", "1")

	var out accountsResponse
	if err := a.get(ctx, "/accounts", params, &out); err != nil {
		var statusErr *httpx.StatusError
		if errors.As(err, &statusErr) && (statusErr.Status == http.StatusUnauthorized || statusErr.Status == http.StatusForbidden) {
			return fmt.Errorf("credentials rejected (regenerate the API key under Neon settings and re-link the organization): %w", err)
		}
		return err
	}
	return nil
}

// FetchConstituents fetches one page of raw account records. Neon paginates
// accounts by page number; the cursor is the page to fetch.
func (a *Adapter) FetchConstituents(ctx context.Context, since time.Time, cursor string) (*vendors.Page, error) {
	page := 1
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, fmt.Errorf("parsing page cursor %q: %w", cursor, err)
		}
		page = n
	}

	params := url.Values{}
	params.Set("updatedAfter", since.UTC().Format(isoDate))
	params.Set("currentPage", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(a.pageSize))

	var out accountsResponse
	if err := a.get(ctx, "/accounts", params, &out); err != nil {
		return nil, err
	}

	result := &vendors.Page{Records: out.Accounts}
	if out.Pagination.CurrentPage < out.Pagination.TotalPages {
		result.HasMore = true
		result.NextCursor = strconv.Itoa(out.Pagination.CurrentPage + 1)
	}
	return result, nil
}

// FetchDonations fetches one page of raw donation records. Neon paginates
// donations by a monotonically increasing ID cursor; the adapter verifies
// the cursor strictly advances each batch, since the vendor has been
// observed to return the same page twice under load. A stalled cursor ends
// the stream as a normal completion.
func (a *Adapter) FetchDonations(ctx context.Context, since time.Time, cursor string) (*vendors.Page, error) {
	params := url.Values{}
	params.Set("donatedAfter", since.UTC().Format(isoDate))
	params.Set("limit", strconv.Itoa(a.pageSize))
	if cursor != "" {
		params.Set("afterId", cursor)
	}

	var out donationsResponse
	if err := a.get(ctx, "/donations", params, &out); err != nil {
		return nil, err
	}

	result := &vendors.Page{Records: out.Donations, HasMore: out.HasMore}
	if len(out.Donations) == 0 {
		return result, nil
	}

	maxID := batchMaxID(out.Donations)
	if d := a.guard.Advance(maxID); !d.Continue {
		a.logger.Warn("stopping donation pagination", "reason", d.Reason)
		result.HasMore = false
		result.NextCursor = ""
		return result, nil
	}

	if result.HasMore {
		result.NextCursor = strconv.FormatInt(maxID, 10)
	}
	return result, nil
}

// get executes a GET request against the Neon API and decodes the JSON
// response.
func (a *Adapter) get(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := fmt.Sprintf("%s%s?%s", a.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(a.orgID, a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpx.Do(ctx, a.httpClient, req, a.timeout)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httpx.CheckStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// batchMaxID returns the largest donation ID in a batch.
func batchMaxID(records []vendors.RawRecord) int64 {
	var maxID int64
	for _, r := range records {
		id, err := strconv.ParseInt(r.String("donationId"), 10, 64)
		if err == nil && id > maxID {
			maxID = id
		}
	}
	return maxID
}
