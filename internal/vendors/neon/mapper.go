package neon

import (
	"time"

	"github.com/donorbridge/donorbridge/internal/canonical"
	"github.com/donorbridge/donorbridge/internal/vendors"
)

// constituentFields are the account fields that map onto canonical
// constituent fields. Everything else lands in CustomFields.
var constituentFields = map[string]bool{
	"accountId":             true,
	"addressLine1":          true,
	"addressLine2":          true,
	"city":                  true,
	"country":               true,
	"donationCount":         true,
	"email":                 true,
	"firstDonationAmount":   true,
	"firstDonationDate":     true,
	"firstName":             true,
	"largestDonationAmount": true,
	"lastDonationAmount":    true,
	"lastDonationDate":      true,
	"lastName":              true,
	"phone":                 true,
	"state":                 true,
	"totalDonationAmount":   true,
	"zipCode":               true,
}

// donationFields are the donation fields that map onto canonical donation
// fields.
var donationFields = map[string]bool{
	"accountId":    true,
	"amount":       true,
	"campaignName": true,
	"date":         true,
	"donationId":   true,
	"fundName":     true,
	"note":         true,
	"status":       true,
	"tenderType":   true,
	"type":         true,
}

// MapConstituent maps a raw Neon account record onto the canonical
// constituent model. Mapping never fails: missing IDs get a synthesized
// fallback and malformed values degrade with a logged warning.
func (a *Adapter) MapConstituent(raw vendors.RawRecord) (*canonical.Constituent, error) {
	externalID := raw.String("accountId")
	if externalID == "" {
		externalID = canonical.FallbackID("neon")
		a.logger.Warn("account record missing accountId, synthesized fallback", "external_id", externalID)
	}

	c := &canonical.Constituent{
		AddressLine1: raw.String("addressLine1"),
		AddressLine2: raw.String("addressLine2"),
		City:         raw.String("city"),
		Country:      raw.String("country"),
		CustomFields: a.customFields(raw, constituentFields),
		Email:        raw.String("email"),
		ExternalID:   externalID,
		FirstName:    raw.String("firstName"),
		Giving:       a.givingSummary(raw),
		LastName:     raw.String("lastName"),
		Phone:        raw.String("phone"),
		PostalCode:   raw.String("zipCode"),
		Provider:     canonical.ProviderNeon,
		State:        raw.String("state"),
		SyncedAt:     time.Now().UTC(),
	}
	return c, nil
}

// MapDonation maps a raw Neon donation record onto the canonical donation
// model.
func (a *Adapter) MapDonation(raw vendors.RawRecord) (*canonical.Donation, error) {
	externalID := raw.String("donationId")
	if externalID == "" {
		externalID = canonical.FallbackID("neon")
		a.logger.Warn("donation record missing donationId, synthesized fallback", "external_id", externalID)
	}

	rawAmount := raw.String("amount")
	amount := canonical.ParseAmount(rawAmount)
	if rawAmount != "" && canonical.ParseFloat(rawAmount) == nil {
		a.logger.Warn("donation amount unparsable, defaulting to 0",
			"external_id", externalID,
			"raw_amount", rawAmount)
	}

	date, ok := canonical.NormalizeDate(raw.String("date"))
	if !ok && date != "" {
		a.logger.Warn("donation date not normalizable, keeping verbatim",
			"external_id", externalID,
			"raw_date", date)
	}

	d := &canonical.Donation{
		Amount:                amount,
		Campaign:              raw.String("campaignName"),
		ConstituentExternalID: raw.String("accountId"),
		CustomFields:          a.customFields(raw, donationFields),
		DonationDate:          date,
		ExternalID:            externalID,
		Fund:                  raw.String("fundName"),
		Notes:                 raw.String("note"),
		PaymentMethod:         raw.String("tenderType"),
		Provider:              canonical.ProviderNeon,
		Status:                canonical.MapDonationStatus(raw.String("status")),
		SyncedAt:              time.Now().UTC(),
		Type:                  canonical.MapDonationType(raw.String("type")),
	}
	return d, nil
}

// givingSummary extracts the optional giving aggregates from an account
// record. Returns nil when the vendor reported none of them.
func (a *Adapter) givingSummary(raw vendors.RawRecord) *canonical.GivingSummary {
	g := &canonical.GivingSummary{
		FirstGiftAmount: canonical.ParseFloat(raw.String("firstDonationAmount")),
		GiftCount:       canonical.ParseInt(raw.String("donationCount")),
		LargestGift:     canonical.ParseFloat(raw.String("largestDonationAmount")),
		LastGiftAmount:  canonical.ParseFloat(raw.String("lastDonationAmount")),
		LifetimeTotal:   canonical.ParseFloat(raw.String("totalDonationAmount")),
	}
	g.FirstGiftDate, _ = canonical.NormalizeDate(raw.String("firstDonationDate"))
	g.LastGiftDate, _ = canonical.NormalizeDate(raw.String("lastDonationDate"))

	if g.FirstGiftAmount == nil && g.GiftCount == nil && g.LargestGift == nil &&
		g.LastGiftAmount == nil && g.LifetimeTotal == nil &&
		g.FirstGiftDate == "" && g.LastGiftDate == "" {
		return nil
	}
	return g
}

// customFields collects vendor fields with no canonical equivalent, keyed
// with the provider namespace. Returns nil when there are none.
func (a *Adapter) customFields(raw vendors.RawRecord, known map[string]bool) map[string]string {
	var out map[string]string
	for field := range raw {
		if known[field] {
			continue
		}
		v := raw.String(field)
		if v == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[canonical.CustomFieldKey(canonical.ProviderNeon, field)] = v
	}
	return out
}
