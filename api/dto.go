/*
dto.go - Request and response shapes for the HTTP API

PURPOSE:
  JSON contracts live here, separate from the domain types. Requests carry
  validator tags; responses are built from domain values so handlers never
  leak internal structs directly. Dates cross the wire as YYYY-MM-DD
  strings, money as decimal numbers.

SEE ALSO:
  - handlers.go: decodes requests, builds responses
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/booking-engine/booking"
)

// =============================================================================
// REQUESTS
// =============================================================================

// AddonRequest selects one addon and how many the guest wants. For
// per_person addons the quantity is per head; the server expands it.
type AddonRequest struct {
	AddonID  string `json:"addon_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

// QuoteRequest prices one room without reserving anything.
type QuoteRequest struct {
	AccommodationTypeID string         `json:"accommodation_type_id" validate:"required"`
	BookingType         string         `json:"booking_type"`
	CheckInDate         string         `json:"check_in_date" validate:"required"`
	CheckOutDate        string         `json:"check_out_date" validate:"required"`
	NumAdults           int            `json:"num_adults" validate:"required,min=1"`
	NumChildren         int            `json:"num_children" validate:"min=0"`
	Addons              []AddonRequest `json:"addons" validate:"dive"`
}

// VoucherValidateRequest checks a code against a prospective booking.
// Validation is read-only; it never consumes a use.
type VoucherValidateRequest struct {
	Code          string          `json:"code" validate:"required"`
	BookingType   string          `json:"booking_type"`
	BookingAmount decimal.Decimal `json:"booking_amount" validate:"required"`
}

// RoomRequest is one room line of a booking request.
type RoomRequest struct {
	RoomID              string         `json:"room_id" validate:"required"`
	AccommodationTypeID string         `json:"accommodation_type_id" validate:"required"`
	NumAdults           int            `json:"num_adults" validate:"required,min=1"`
	NumChildren         int            `json:"num_children" validate:"min=0"`
	Addons              []AddonRequest `json:"addons" validate:"dive"`
}

// BookingRequest creates a reservation. One room entry makes a single
// booking; several make a group booking under a shared reference. All
// amounts are recomputed server-side regardless of source.
type BookingRequest struct {
	BookingType  string        `json:"booking_type"`
	CheckInDate  string        `json:"check_in_date" validate:"required"`
	CheckOutDate string        `json:"check_out_date" validate:"required"`
	GuestName    string        `json:"guest_name" validate:"required"`
	GuestEmail   string        `json:"guest_email" validate:"required,email"`
	GuestPhone   string        `json:"guest_phone"`
	VoucherCode  string        `json:"voucher_code"`
	Rooms        []RoomRequest `json:"rooms" validate:"required,min=1,dive"`
}

// StatusChangeRequest drives a booking status transition.
type StatusChangeRequest struct {
	Status    string `json:"status" validate:"required"`
	ChangedBy string `json:"changed_by"`
	Notes     string `json:"notes"`
	Reason    string `json:"reason"` // cancellation reason
}

// PaymentChangeRequest drives a payment status transition.
type PaymentChangeRequest struct {
	PaymentStatus    string `json:"payment_status" validate:"required"`
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
	ChangedBy        string `json:"changed_by"`
	Notes            string `json:"notes"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type NightPriceDTO struct {
	Date             booking.Date    `json:"date"`
	IsWeekend        bool            `json:"is_weekend"`
	BaseRate         decimal.Decimal `json:"base_rate"`
	AdjustmentName   string          `json:"adjustment_name,omitempty"`
	AdjustmentAmount decimal.Decimal `json:"adjustment_amount"`
	EffectiveRate    decimal.Decimal `json:"effective_rate"`
}

type AddonLineDTO struct {
	AddonID   string          `json:"addon_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type QuoteResponse struct {
	Nights               []NightPriceDTO `json:"nights"`
	TotalNights          int             `json:"total_nights"`
	TotalBaseRate        decimal.Decimal `json:"total_base_rate"`
	TotalPax             int             `json:"total_pax"`
	ExtraPax             int             `json:"extra_pax"`
	PaxSurchargePerNight decimal.Decimal `json:"pax_surcharge_per_night"`
	TotalPaxSurcharge    decimal.Decimal `json:"total_pax_surcharge"`
	Addons               []AddonLineDTO  `json:"addons"`
	AddonsAmount         decimal.Decimal `json:"addons_amount"`
	GrandTotal           decimal.Decimal `json:"grand_total"`
}

func toQuoteResponse(q *booking.Quote) *QuoteResponse {
	resp := &QuoteResponse{
		Nights:               make([]NightPriceDTO, 0, len(q.Nights)),
		TotalNights:          q.TotalNights,
		TotalBaseRate:        q.TotalBaseRate,
		TotalPax:             q.TotalPax,
		ExtraPax:             q.ExtraPax,
		PaxSurchargePerNight: q.PaxSurchargePerNight,
		TotalPaxSurcharge:    q.TotalPaxSurcharge,
		Addons:               make([]AddonLineDTO, 0, len(q.AddonLines)),
		AddonsAmount:         q.AddonsAmount,
		GrandTotal:           q.GrandTotal,
	}
	for _, n := range q.Nights {
		resp.Nights = append(resp.Nights, NightPriceDTO{
			Date:             n.Date,
			IsWeekend:        n.Weekend,
			BaseRate:         n.BaseRate,
			AdjustmentName:   n.AdjustmentName,
			AdjustmentAmount: n.AdjustmentAmount,
			EffectiveRate:    n.EffectiveRate,
		})
	}
	for _, l := range q.AddonLines {
		resp.Addons = append(resp.Addons, AddonLineDTO{
			AddonID:   l.AddonID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		})
	}
	return resp
}

// VoucherValidateResponse reports an accepted code and its discount
// against the submitted booking amount.
type VoucherValidateResponse struct {
	Valid          bool             `json:"valid"`
	Code           string           `json:"code"`
	DiscountType   string           `json:"discount_type"`
	DiscountValue  decimal.Decimal  `json:"discount_value"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	MaxDiscount    *decimal.Decimal `json:"max_discount,omitempty"`
}

// BookingCreatedResponse reports a committed reservation.
type BookingCreatedResponse struct {
	BookingIDs       []string        `json:"booking_ids"`
	ReferenceNumbers []string        `json:"reference_numbers"`
	GroupID          string          `json:"group_id,omitempty"`
	GroupReference   string          `json:"group_reference,omitempty"`
	Status           string          `json:"status"`
	PaymentStatus    string          `json:"payment_status"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
}

type BookingAddonDTO struct {
	AddonID   string          `json:"addon_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type BookingDTO struct {
	ID                  string          `json:"id"`
	Reference           string          `json:"reference_number"`
	GroupID             string          `json:"group_id,omitempty"`
	RoomID              string          `json:"room_id"`
	AccommodationTypeID string          `json:"accommodation_type_id"`
	BookingType         string          `json:"booking_type"`
	CheckInDate         booking.Date    `json:"check_in_date"`
	CheckOutDate        booking.Date    `json:"check_out_date"`
	GuestName           string          `json:"guest_name"`
	GuestEmail          string          `json:"guest_email"`
	GuestPhone          string          `json:"guest_phone,omitempty"`
	NumAdults           int             `json:"num_adults"`
	NumChildren         int             `json:"num_children"`
	BaseAmount          decimal.Decimal `json:"base_amount"`
	PaxSurcharge        decimal.Decimal `json:"pax_surcharge"`
	AddonsAmount        decimal.Decimal `json:"addons_amount"`
	DiscountAmount      decimal.Decimal `json:"discount_amount"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	VoucherCode         string          `json:"voucher_code,omitempty"`
	Status              string          `json:"status"`
	PaymentStatus       string          `json:"payment_status"`
	Source              string          `json:"source"`
	PaymentMethod       string          `json:"payment_method,omitempty"`
	PaymentReference    string          `json:"payment_reference,omitempty"`
	CancellationReason  string          `json:"cancellation_reason,omitempty"`
	CreatedAt           string          `json:"created_at"`
	UpdatedAt           string          `json:"updated_at"`

	Addons []BookingAddonDTO `json:"addons,omitempty"`
}

func toBookingDTO(b *booking.Booking, addons []booking.BookingAddon) *BookingDTO {
	dto := &BookingDTO{
		ID:                  string(b.ID),
		Reference:           b.Reference,
		GroupID:             string(b.GroupID),
		RoomID:              string(b.RoomID),
		AccommodationTypeID: string(b.TypeID),
		BookingType:         string(b.BookingType),
		CheckInDate:         b.CheckIn,
		CheckOutDate:        b.CheckOut,
		GuestName:           b.GuestName,
		GuestEmail:          b.GuestEmail,
		GuestPhone:          b.GuestPhone,
		NumAdults:           b.Adults,
		NumChildren:         b.Children,
		BaseAmount:          b.BaseAmount,
		PaxSurcharge:        b.PaxSurcharge,
		AddonsAmount:        b.AddonsAmount,
		DiscountAmount:      b.DiscountAmount,
		TotalAmount:         b.TotalAmount,
		VoucherCode:         b.VoucherCode,
		Status:              string(b.Status),
		PaymentStatus:       string(b.PaymentStatus),
		Source:              string(b.Source),
		PaymentMethod:       b.PaymentMethod,
		PaymentReference:    b.PaymentReference,
		CancellationReason:  b.CancellationReason,
		CreatedAt:           b.CreatedAt.Format(timestampLayout),
		UpdatedAt:           b.UpdatedAt.Format(timestampLayout),
	}
	for _, a := range addons {
		dto.Addons = append(dto.Addons, BookingAddonDTO{
			AddonID:   a.AddonID,
			Name:      a.Name,
			Quantity:  a.Quantity,
			UnitPrice: a.UnitPrice,
			LineTotal: a.LineTotal,
		})
	}
	return dto
}

type DayOccupancyDTO struct {
	TotalRooms  int    `json:"total_rooms"`
	BookedRooms int    `json:"booked_rooms"`
	Status      string `json:"status"`
}

type AvailabilityResponse struct {
	AccommodationTypeID string                     `json:"accommodation_type_id"`
	StartDate           booking.Date               `json:"start_date"`
	EndDate             booking.Date               `json:"end_date"`
	Days                map[string]DayOccupancyDTO `json:"days"`
}

type StatusLogDTO struct {
	FieldChanged string `json:"field_changed"`
	OldValue     string `json:"old_value"`
	NewValue     string `json:"new_value"`
	ChangedBy    string `json:"changed_by"`
	ChangeSource string `json:"change_source"`
	Notes        string `json:"notes,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

const timestampLayout = "2006-01-02T15:04:05Z07:00"

func parseBookingType(s string) (booking.BookingType, error) {
	switch s {
	case "", string(booking.BookingOvernight):
		return booking.BookingOvernight, nil
	case string(booking.BookingDayTour):
		return booking.BookingDayTour, nil
	}
	return "", &booking.ValidationError{Field: "booking_type", Message: "unknown booking type: " + s}
}

func parseDateField(field, value string) (booking.Date, error) {
	d, err := booking.ParseDate(value)
	if err != nil {
		return booking.Date{}, &booking.ValidationError{Field: field, Message: "must be a YYYY-MM-DD date"}
	}
	return d, nil
}
