// Package factory constructs vendor adapters from a provider name and a
// decoded credential bundle.
package factory

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/donorbridge/donorbridge/internal/canonical"
	"github.com/donorbridge/donorbridge/internal/credentials"
	"github.com/donorbridge/donorbridge/internal/syncrun"
	"github.com/donorbridge/donorbridge/internal/vendors/neon"
)

// Options carries the cross-vendor adapter settings.
type Options struct {
	// Logger is the structured logger passed to the adapter.
	Logger *slog.Logger

	// PageSize overrides the records requested per vendor page. Zero keeps
	// the adapter's default.
	PageSize int

	// Timeout bounds each vendor API request.
	Timeout time.Duration
}

// New builds the adapter for one provider. Providers without a shipped
// adapter return an error naming the provider, so a run against them fails
// at startup rather than mid-sync.
func New(provider canonical.Provider, creds credentials.Fields, opts Options) (syncrun.Adapter, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch provider {
	case canonical.ProviderNeon:
		neonOpts := []neon.Option{neon.WithLogger(logger)}
		if opts.PageSize != 0 {
			neonOpts = append(neonOpts, neon.WithPageSize(opts.PageSize))
		}
		if opts.Timeout > 0 {
			neonOpts = append(neonOpts, neon.WithTimeout(opts.Timeout))
		}
		adapter, err := neon.New(creds, neonOpts...)
		if err != nil {
			return nil, fmt.Errorf("building neon adapter: %w", err)
		}
		return adapter, nil
	default:
		return nil, fmt.Errorf("no adapter is available for provider %s", provider)
	}
}
