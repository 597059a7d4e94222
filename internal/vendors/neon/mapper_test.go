package neon

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/donorbridge/donorbridge/internal/canonical"
	"github.com/donorbridge/donorbridge/internal/vendors"
)

func mapperAdapter(t *testing.T) *Adapter {
	t.Helper()

	a, err := New(testCreds())
	require.NoError(t, err)
	return a
}

func TestMapConstituent(t *testing.T) {
	t.Parallel()

	a := mapperAdapter(t)

	c, err := a.MapConstituent(vendors.RawRecord{
		"accountId":           "acc-9",
		"addressLine1":        "1 Main St",
		"city":                "Springfield",
		"donationCount":       7,
		"email":               "donor@example.org",
		"firstName":           "Ada",
		"lastDonationDate":    "2026-06-01T12:00:00Z",
		"lastName":            "Lovelace",
		"membershipLevel":     "gold",
		"state":               "IL",
		"totalDonationAmount": "1,234.50",
		"zipCode":             "62704",
	})
	require.NoError(t, err)

	require.Equal(t, canonical.ProviderNeon, c.Provider)
	require.Equal(t, "acc-9", c.ExternalID)
	require.Equal(t, "neon/acc-9", c.Key())
	require.Equal(t, "Ada", c.FirstName)
	require.Equal(t, "Lovelace", c.LastName)
	require.Equal(t, "62704", c.PostalCode)
	require.False(t, c.SyncedAt.IsZero())

	require.NotNil(t, c.Giving)
	require.NotNil(t, c.Giving.LifetimeTotal)
	require.InDelta(t, 1234.50, *c.Giving.LifetimeTotal, 0.001)
	require.Equal(t, 7, *c.Giving.GiftCount)
	require.Equal(t, "2026-06-01", c.Giving.LastGiftDate)

	// Unmapped vendor fields land in the namespaced custom-field bag.
	require.Equal(t, "gold", c.CustomFields["neon:membershipLevel"])
}

func TestMapConstituentMissingIDSynthesizesFallback(t *testing.T) {
	t.Parallel()

	a := mapperAdapter(t)

	c, err := a.MapConstituent(vendors.RawRecord{"firstName": "Anonymous"})
	require.NoError(t, err)
	require.NotEmpty(t, c.ExternalID)
	require.Contains(t, c.ExternalID, "neon-unknown-")
}

func TestMapConstituentNoGivingData(t *testing.T) {
	t.Parallel()

	a := mapperAdapter(t)

	c, err := a.MapConstituent(vendors.RawRecord{"accountId": "acc-1"})
	require.NoError(t, err)
	require.Nil(t, c.Giving)
	require.Nil(t, c.CustomFields)
}

func TestMapDonation(t *testing.T) {
	t.Parallel()

	a := mapperAdapter(t)

	tests := map[string]struct {
		raw        vendors.RawRecord
		wantAmount float64
		wantDate   string
		wantStatus canonical.DonationStatus
		wantType   canonical.DonationType
	}{
		"well-formed": {
			raw: vendors.RawRecord{
				"accountId":  "acc-9",
				"amount":     "250.00",
				"date":       "2026-07-04",
				"donationId": 555,
				"status":     "Succeeded",
				"type":       "Monthly Sustainer",
			},
			wantAmount: 250,
			wantDate:   "2026-07-04",
			wantStatus: canonical.DonationStatusCompleted,
			wantType:   canonical.DonationTypeRecurring,
		},
		"unparsable amount defaults to zero": {
			raw: vendors.RawRecord{
				"amount":     "abc",
				"donationId": 556,
			},
			wantAmount: 0,
			wantStatus: canonical.DonationStatusUnknown,
			wantType:   canonical.DonationTypeOneTime,
		},
		"negative amount clamps to zero": {
			raw: vendors.RawRecord{
				"amount":     "-50",
				"donationId": 557,
			},
			wantAmount: 0,
			wantStatus: canonical.DonationStatusUnknown,
			wantType:   canonical.DonationTypeOneTime,
		},
		"us date form normalizes": {
			raw: vendors.RawRecord{
				"amount":     "10",
				"date":       "7/4/2026",
				"donationId": 558,
			},
			wantAmount: 10,
			wantDate:   "2026-07-04",
			wantStatus: canonical.DonationStatusUnknown,
			wantType:   canonical.DonationTypeOneTime,
		},
		"unparsable date kept verbatim": {
			raw: vendors.RawRecord{
				"amount":     "10",
				"date":       "next tuesday",
				"donationId": 559,
			},
			wantAmount: 10,
			wantDate:   "next tuesday",
			wantStatus: canonical.DonationStatusUnknown,
			wantType:   canonical.DonationTypeOneTime,
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			d, err := a.MapDonation(tc.raw)
			require.NoError(t, err)
			require.Equal(t, canonical.ProviderNeon, d.Provider)
			require.InDelta(t, tc.wantAmount, d.Amount, 0.001)
			require.Equal(t, tc.wantDate, d.DonationDate)
			require.Equal(t, tc.wantStatus, d.Status)
			require.Equal(t, tc.wantType, d.Type)
		})
	}
}

func TestMapDonationLinksConstituent(t *testing.T) {
	t.Parallel()

	a := mapperAdapter(t)

	d, err := a.MapDonation(vendors.RawRecord{
		"accountId":  "acc-9",
		"amount":     "25",
		"donationId": 42,
		"tenderType": "Credit Card",
	})
	require.NoError(t, err)
	require.Equal(t, "42", d.ExternalID)
	require.Equal(t, "acc-9", d.ConstituentExternalID)
	require.Equal(t, "Credit Card", d.PaymentMethod)
}
