// Package canonical defines the provider-agnostic constituent and donation
// model that every vendor adapter maps into.
package canonical

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies one of the supported fundraising-CRM vendors.
type Provider string

const (
	// ProviderBlackbaud is Blackbaud Raiser's Edge NXT.
	ProviderBlackbaud Provider = "blackbaud"

	// ProviderBloomerang is Bloomerang.
	ProviderBloomerang Provider = "bloomerang"

	// ProviderDonorPerfect is DonorPerfect.
	ProviderDonorPerfect Provider = "donorperfect"

	// ProviderKindful is Kindful.
	ProviderKindful Provider = "kindful"

	// ProviderLittleGreenLight is Little Green Light.
	ProviderLittleGreenLight Provider = "littlegreenlight"

	// ProviderNeon is Neon CRM.
	ProviderNeon Provider = "neon"

	// ProviderVirtuous is Virtuous.
	ProviderVirtuous Provider = "virtuous"
)

// Providers returns all supported providers in stable order.
func Providers() []Provider {
	return []Provider{
		ProviderBlackbaud,
		ProviderBloomerang,
		ProviderDonorPerfect,
		ProviderKindful,
		ProviderLittleGreenLight,
		ProviderNeon,
		ProviderVirtuous,
	}
}

// ParseProvider converts a string into a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Providers() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// DonationType is the controlled vocabulary for donation types.
// Vendor-specific values are mapped onto these via MapDonationType.
type DonationType string

const (
	// DonationTypeGrant is a foundation or government grant.
	DonationTypeGrant DonationType = "grant"

	// DonationTypeInKind is a non-monetary gift of goods or services.
	DonationTypeInKind DonationType = "in-kind"

	// DonationTypeOneTime is a single non-recurring gift.
	DonationTypeOneTime DonationType = "one-time"

	// DonationTypeOther is any type not covered by the vocabulary.
	DonationTypeOther DonationType = "other"

	// DonationTypePledge is a commitment to give in the future.
	DonationTypePledge DonationType = "pledge"

	// DonationTypePledgePayment is a payment against an existing pledge.
	DonationTypePledgePayment DonationType = "pledge-payment"

	// DonationTypeRecurring is an installment of a recurring gift series.
	DonationTypeRecurring DonationType = "recurring"

	// DonationTypeStock is a gift of securities.
	DonationTypeStock DonationType = "stock"
)

// DonationStatus is the controlled vocabulary for donation statuses.
type DonationStatus string

const (
	// DonationStatusCompleted is a settled, successful donation.
	DonationStatusCompleted DonationStatus = "completed"

	// DonationStatusDeclined is a donation rejected by the payment processor.
	DonationStatusDeclined DonationStatus = "declined"

	// DonationStatusPending is a donation awaiting settlement.
	DonationStatusPending DonationStatus = "pending"

	// DonationStatusRefunded is a donation returned to the donor.
	DonationStatusRefunded DonationStatus = "refunded"

	// DonationStatusReversed is a donation reversed by chargeback or correction.
	DonationStatusReversed DonationStatus = "reversed"

	// DonationStatusUnknown is any status the vendor value could not be mapped to.
	DonationStatusUnknown DonationStatus = "unknown"
)

// GivingSummary aggregates a constituent's giving history. Every field is
// optional because vendors expose different subsets; nil means the vendor
// did not report the value, which is distinct from zero.
type GivingSummary struct {
	// FirstGiftAmount is the amount of the earliest recorded gift.
	FirstGiftAmount *float64

	// FirstGiftDate is the ISO date of the earliest recorded gift.
	FirstGiftDate string

	// GiftCount is the total number of recorded gifts.
	GiftCount *int

	// LargestGift is the largest single gift amount.
	LargestGift *float64

	// LastGiftAmount is the amount of the most recent gift.
	LastGiftAmount *float64

	// LastGiftDate is the ISO date of the most recent gift.
	LastGiftDate string

	// LifetimeTotal is the cumulative giving amount.
	LifetimeTotal *float64
}

// Constituent is the canonical donor/contact record. Identity is the pair
// (Provider, ExternalID); the local storage key is assigned by the
// persistence layer, never here.
type Constituent struct {
	// AddressLine1 is the first street address line.
	AddressLine1 string

	// AddressLine2 is the second street address line.
	AddressLine2 string

	// City is the city name.
	City string

	// Country is the country name or code.
	Country string

	// CustomFields holds vendor-specific fields that have no canonical
	// equivalent, keyed with a per-vendor namespace.
	CustomFields map[string]string

	// Email is the primary email address.
	Email string

	// ExternalID is the vendor-scoped record identifier. Never empty: a
	// fallback token is synthesized when the vendor omits it.
	ExternalID string

	// FirstName is the given name.
	FirstName string

	// Giving summarises the constituent's giving history, if reported.
	Giving *GivingSummary

	// LastName is the family name.
	LastName string

	// Phone is the primary phone number.
	Phone string

	// PostalCode is the postal or ZIP code.
	PostalCode string

	// Provider is the vendor this record came from.
	Provider Provider

	// State is the state or province.
	State string

	// SyncedAt is when this record was normalized.
	SyncedAt time.Time
}

// Key returns the stable identity key for the constituent.
func (c *Constituent) Key() string {
	return string(c.Provider) + "/" + c.ExternalID
}

// Donation is the canonical donation record.
type Donation struct {
	// Amount is the donation amount. Never negative; defaults to 0 when the
	// vendor value is unparsable so downstream sums stay defined.
	Amount float64

	// Campaign is the campaign name or identifier, if any.
	Campaign string

	// ConstituentExternalID links the donation to its constituent within the
	// same provider scope.
	ConstituentExternalID string

	// CustomFields holds vendor-specific fields that have no canonical
	// equivalent, keyed with a per-vendor namespace.
	CustomFields map[string]string

	// DonationDate is the ISO gift date, or the vendor's verbatim value when
	// it could not be coerced.
	DonationDate string

	// ExternalID is the vendor-scoped record identifier. Never empty.
	ExternalID string

	// Fund is the fund designation, if any.
	Fund string

	// Notes is free-form donor or gift notes.
	Notes string

	// PaymentMethod is the payment method, if reported.
	PaymentMethod string

	// Provider is the vendor this record came from.
	Provider Provider

	// Status is the mapped donation status.
	Status DonationStatus

	// SyncedAt is when this record was normalized.
	SyncedAt time.Time

	// Type is the mapped donation type.
	Type DonationType
}

// Key returns the stable identity key for the donation.
func (d *Donation) Key() string {
	return string(d.Provider) + "/" + d.ExternalID
}

// MapDonationType maps a vendor-specific type value onto the controlled
// vocabulary. Unrecognised values map to DonationTypeOther.
func MapDonationType(raw string) DonationType {
	switch v := strings.ToLower(strings.TrimSpace(raw)); {
	case v == "":
		return DonationTypeOneTime
	case strings.Contains(v, "pledge payment") || strings.Contains(v, "pledge-payment") || strings.Contains(v, "pledgepayment"):
		return DonationTypePledgePayment
	case strings.Contains(v, "pledge"):
		return DonationTypePledge
	case strings.Contains(v, "recurring") || strings.Contains(v, "monthly") || strings.Contains(v, "sustainer") || strings.Contains(v, "installment"):
		return DonationTypeRecurring
	case strings.Contains(v, "grant"):
		return DonationTypeGrant
	case strings.Contains(v, "in-kind") || strings.Contains(v, "in kind") || strings.Contains(v, "inkind"):
		return DonationTypeInKind
	case strings.Contains(v, "stock") || strings.Contains(v, "securit"):
		return DonationTypeStock
	case strings.Contains(v, "one-time") || strings.Contains(v, "one time") || strings.Contains(v, "onetime") ||
		strings.Contains(v, "single") || v == "donation" || v == "gift" || v == "cash":
		return DonationTypeOneTime
	default:
		return DonationTypeOther
	}
}

// MapDonationStatus maps a vendor-specific status value onto the controlled
// vocabulary. Unrecognised values map to DonationStatusUnknown.
func MapDonationStatus(raw string) DonationStatus {
	switch v := strings.ToLower(strings.TrimSpace(raw)); {
	case v == "refunded" || strings.Contains(v, "refund"):
		return DonationStatusRefunded
	case strings.Contains(v, "reversed") || strings.Contains(v, "chargeback") || strings.Contains(v, "reversal"):
		return DonationStatusReversed
	case strings.Contains(v, "declined") || strings.Contains(v, "failed") || strings.Contains(v, "rejected"):
		return DonationStatusDeclined
	case strings.Contains(v, "pending") || strings.Contains(v, "processing") || strings.Contains(v, "scheduled"):
		return DonationStatusPending
	case v == "completed" || v == "complete" || v == "succeeded" || v == "success" || v == "settled" || v == "paid" || v == "posted" || v == "cleared":
		return DonationStatusCompleted
	default:
		return DonationStatusUnknown
	}
}
