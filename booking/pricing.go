/*
pricing.go - The nightly price calculator

PURPOSE:
  Computes the full price of a stay: per-night base rates (weekday vs
  weekend), the best-matching seasonal adjustment per night, the extra-
  occupant surcharge, and addon line items.

GUARANTEES:
  - Pure function of its inputs. No clocks, no stores, no side effects.
  - Deterministic: the same inputs always produce the same Quote, including
    the adjustment chosen for each night (see pickAdjustment).
  - Always recomputed server-side at booking time. Client-submitted totals
    are never trusted, on any path, including admin-created bookings.

ALGORITHM (per stay):
  1. For each night in [check_in, check_out): weekend test picks the base
     rate; the best covering adjustment (if any) discounts or overrides it.
  2. extraPax = max(0, adults+children - base_pax); surcharge is
     extraPax * additional_pax_fee per night.
  3. Addon lines: per_person quantities scale by total pax.
  4. grandTotal = totalBaseRate + totalPaxSurcharge + addonsAmount.
     Voucher discounts are applied by the caller after separate validation.

SEE ALSO:
  - voucher.go: discount computation applied on top of the quote
  - types.go: RateAdjustment.Covers, PricingModel.QuantityFor
*/
package booking

import (
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// =============================================================================
// QUOTE TYPES
// =============================================================================

// QuoteInput carries everything the calculator needs. Adjustments should be
// the tenant's currently-active rate adjustments; the calculator filters
// them per night.
type QuoteInput struct {
	Type        *AccommodationType
	CheckIn     Date
	CheckOut    Date
	Adults      int
	Children    int
	Adjustments []RateAdjustment
	Addons      []AddonSelection
}

// NightPrice is the per-night detail of a quote.
type NightPrice struct {
	Date             Date
	Weekend          bool
	BaseRate         decimal.Decimal
	AdjustmentName   string
	AdjustmentAmount decimal.Decimal
	EffectiveRate    decimal.Decimal
}

// AddonLine is a priced addon on a quote.
type AddonLine struct {
	AddonID   string
	Name      string
	Quantity  int // effective quantity after pricing-model expansion
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Quote is the calculator's output. GrandTotal excludes any voucher
// discount.
type Quote struct {
	Nights               []NightPrice
	TotalNights          int
	TotalBaseRate        decimal.Decimal
	TotalPax             int
	ExtraPax             int
	PaxSurchargePerNight decimal.Decimal
	TotalPaxSurcharge    decimal.Decimal
	AddonLines           []AddonLine
	AddonsAmount         decimal.Decimal
	GrandTotal           decimal.Decimal
}

// =============================================================================
// CALCULATOR
// =============================================================================

// ComputeQuote prices a stay. Returns a validation error for an inverted
// date range, a pax count exceeding the rate card's maximum, or a
// non-positive addon quantity.
func ComputeQuote(in QuoteInput) (*Quote, error) {
	if in.Type == nil {
		return nil, ErrTypeNotFound
	}
	if !in.CheckIn.Before(in.CheckOut) {
		return nil, ErrInvalidDateRange
	}
	if in.Adults < 1 {
		return nil, &ValidationError{Field: "num_adults", Message: "at least one adult is required"}
	}
	if in.Children < 0 {
		return nil, &ValidationError{Field: "num_children", Message: "must not be negative"}
	}

	totalPax := in.Adults + in.Children
	if in.Type.MaxPax > 0 && totalPax > in.Type.MaxPax {
		return nil, &ValidationError{Field: "num_adults", Message: "pax count exceeds room capacity"}
	}

	q := &Quote{
		TotalPax:          totalPax,
		TotalBaseRate:     decimal.Zero,
		TotalPaxSurcharge: decimal.Zero,
		AddonsAmount:      decimal.Zero,
	}

	// Per-night rate resolution.
	for _, night := range Nights(in.CheckIn, in.CheckOut) {
		np := NightPrice{Date: night, Weekend: night.IsWeekend()}
		if np.Weekend {
			np.BaseRate = in.Type.BaseRateWeekend
		} else {
			np.BaseRate = in.Type.BaseRateWeekday
		}
		np.EffectiveRate = np.BaseRate

		if adj := pickAdjustment(in.Adjustments, night, in.Type.ID); adj != nil {
			np.AdjustmentName = adj.Name
			switch adj.Type {
			case AdjustmentPercentageDiscount:
				np.AdjustmentAmount = np.BaseRate.Mul(adj.Value).Div(oneHundred)
				np.EffectiveRate = np.BaseRate.Sub(np.AdjustmentAmount)
			case AdjustmentFixedOverride:
				np.AdjustmentAmount = np.BaseRate.Sub(adj.Value)
				np.EffectiveRate = adj.Value
			}
		}

		q.Nights = append(q.Nights, np)
		q.TotalBaseRate = q.TotalBaseRate.Add(np.EffectiveRate)
	}
	q.TotalNights = len(q.Nights)

	// Extra-occupant surcharge.
	q.ExtraPax = totalPax - in.Type.BasePax
	if q.ExtraPax < 0 {
		q.ExtraPax = 0
	}
	q.PaxSurchargePerNight = in.Type.AdditionalPaxFee.Mul(decimal.NewFromInt(int64(q.ExtraPax)))
	q.TotalPaxSurcharge = q.PaxSurchargePerNight.Mul(decimal.NewFromInt(int64(q.TotalNights)))

	// Addon lines.
	for _, sel := range in.Addons {
		if sel.Quantity < 1 {
			return nil, &ValidationError{Field: "addon_quantities", Message: "addon quantity must be positive"}
		}
		qty := sel.Addon.PricingModel.QuantityFor(sel.Quantity, totalPax)
		line := AddonLine{
			AddonID:   sel.Addon.ID,
			Name:      sel.Addon.Name,
			Quantity:  qty,
			UnitPrice: sel.Addon.Price,
			LineTotal: sel.Addon.Price.Mul(decimal.NewFromInt(int64(qty))),
		}
		q.AddonLines = append(q.AddonLines, line)
		q.AddonsAmount = q.AddonsAmount.Add(line.LineTotal)
	}

	q.GrandTotal = q.TotalBaseRate.Add(q.TotalPaxSurcharge).Add(q.AddonsAmount)
	return q, nil
}

// pickAdjustment selects the adjustment for a night. The order is total:
// highest priority, then narrowest date span, then latest created, then
// lowest ID. Incidental slice ordering never decides the winner.
func pickAdjustment(adjustments []RateAdjustment, night Date, typeID AccommodationTypeID) *RateAdjustment {
	var best *RateAdjustment
	for i := range adjustments {
		adj := &adjustments[i]
		if !adj.Covers(night, typeID) {
			continue
		}
		if best == nil || adjustmentWins(adj, best) {
			best = adj
		}
	}
	return best
}

func adjustmentWins(a, b *RateAdjustment) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	spanA := a.StartDate.DaysUntil(a.EndDate)
	spanB := b.StartDate.DaysUntil(b.EndDate)
	if spanA != spanB {
		return spanA < spanB
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}
