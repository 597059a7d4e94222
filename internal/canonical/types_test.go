package canonical

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		input   string
		want    Provider
		wantErr bool
	}{
		"known provider":    {input: "neon", want: ProviderNeon},
		"mixed case":        {input: "Blackbaud", want: ProviderBlackbaud},
		"padded":            {input: "  virtuous ", want: ProviderVirtuous},
		"unknown provider":  {input: "salesforce", wantErr: true},
		"empty":             {input: "", wantErr: true},
		"little green light": {input: "littlegreenlight", want: ProviderLittleGreenLight},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseProvider(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestProvidersCoversSevenVendors(t *testing.T) {
	t.Parallel()

	require.Len(t, Providers(), 7)
}

func TestMapDonationType(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		raw  string
		want DonationType
	}{
		"empty defaults to one-time": {raw: "", want: DonationTypeOneTime},
		"recurring":                  {raw: "Recurring Donation", want: DonationTypeRecurring},
		"monthly sustainer":          {raw: "monthly", want: DonationTypeRecurring},
		"pledge":                     {raw: "PLEDGE", want: DonationTypePledge},
		"pledge payment":             {raw: "Pledge Payment", want: DonationTypePledgePayment},
		"grant":                      {raw: "Foundation Grant", want: DonationTypeGrant},
		"in kind":                    {raw: "In-Kind", want: DonationTypeInKind},
		"stock":                      {raw: "stock transfer", want: DonationTypeStock},
		"securities":                 {raw: "Securities", want: DonationTypeStock},
		"cash gift":                  {raw: "cash", want: DonationTypeOneTime},
		"unmapped":                   {raw: "cryptocurrency", want: DonationTypeOther},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, MapDonationType(tc.raw))
		})
	}
}

func TestMapDonationStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		raw  string
		want DonationStatus
	}{
		"completed":  {raw: "Completed", want: DonationStatusCompleted},
		"succeeded":  {raw: "succeeded", want: DonationStatusCompleted},
		"posted":     {raw: "posted", want: DonationStatusCompleted},
		"pending":    {raw: "pending settlement", want: DonationStatusPending},
		"declined":   {raw: "Declined", want: DonationStatusDeclined},
		"failed":     {raw: "payment failed", want: DonationStatusDeclined},
		"refunded":   {raw: "refund issued", want: DonationStatusRefunded},
		"chargeback": {raw: "chargeback", want: DonationStatusReversed},
		"unmapped":   {raw: "mysterious", want: DonationStatusUnknown},
		"empty":      {raw: "", want: DonationStatusUnknown},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, MapDonationStatus(tc.raw))
		})
	}
}

func TestRecordKeys(t *testing.T) {
	t.Parallel()

	c := &Constituent{Provider: ProviderNeon, ExternalID: "acct-42"}
	require.Equal(t, "neon/acct-42", c.Key())

	d := &Donation{Provider: ProviderKindful, ExternalID: "don-7"}
	require.Equal(t, "kindful/don-7", d.Key())
}
