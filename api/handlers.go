/*
handlers.go - HTTP handlers for the booking engine

PURPOSE:
  Thin translation layer: decode + validate the request, call the domain
  or the store, map the error taxonomy to a status code, encode the
  response. No pricing, voucher, or availability rules live here.

ERROR MAPPING:
  ValidationError / bad dates   -> 400 (field-level detail)
  missing tenant-scoped entity  -> 404
  VoucherError / ConflictError  -> 409 (machine-readable code)
  anything else                 -> 500 (generic message, detail in logs)

PRICING TRUST BOUNDARY:
  Every path that creates a booking recomputes all amounts server-side
  from the rate cards - including admin-created manual bookings. The
  request never carries a price the server believes.

SEE ALSO:
  - booking/errors.go: the taxonomy being mapped
  - server.go: route table
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/logger"
	"github.com/warp/booking-engine/notify"
)

// Handler carries the handlers' dependencies.
type Handler struct {
	store    booking.Store
	notifier notify.Notifier
	validate *validator.Validate
}

func NewHandler(store booking.Store, notifier notify.Notifier) *Handler {
	v := validator.New()
	// Report the JSON field name, not the Go field name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{store: store, notifier: notifier, validate: v}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps the domain error taxonomy to an HTTP response.
func writeError(w http.ResponseWriter, err error) {
	var verr *booking.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message, Field: verr.Field})
		return
	}
	var terr *booking.TransitionError
	if errors.As(err, &terr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: terr.Error(), Code: "ILLEGAL_TRANSITION"})
		return
	}
	var vcerr *booking.VoucherError
	if errors.As(err, &vcerr) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: vcerr.Error(), Code: string(vcerr.Code)})
		return
	}
	var cerr *booking.ConflictError
	if errors.As(err, &cerr) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: cerr.Message, Code: cerr.Code})
		return
	}
	switch {
	case booking.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case booking.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case booking.IsConflict(err):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "ROOM_UNAVAILABLE"})
	default:
		logger.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// decode parses the JSON body into dst and runs struct validation.
// Returns false after writing the error response.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error: "invalid value for " + first.Field(),
				Field: first.Field(),
			})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return false
	}
	return true
}

// =============================================================================
// QUOTES
// =============================================================================

// CreateQuote prices a stay without reserving anything.
// POST /api/quotes
func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())

	var req QuoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	bookingType, err := parseBookingType(req.BookingType)
	if err != nil {
		writeError(w, err)
		return
	}
	checkIn, err := parseDateField("check_in_date", req.CheckInDate)
	if err != nil {
		writeError(w, err)
		return
	}
	checkOut, err := parseDateField("check_out_date", req.CheckOutDate)
	if err != nil {
		writeError(w, err)
		return
	}

	adjustments, err := h.store.ListActiveAdjustments(r.Context(), tenant)
	if err != nil {
		writeError(w, err)
		return
	}
	quote, err := h.buildQuote(r.Context(), tenant, bookingType, checkIn, checkOut, roomSpec{
		typeID:   booking.AccommodationTypeID(req.AccommodationTypeID),
		adults:   req.NumAdults,
		children: req.NumChildren,
		addons:   req.Addons,
	}, adjustments)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteResponse(quote))
}

// roomSpec is the per-room input to the server-side quote computation,
// shared by the quote endpoint and both booking-creation paths.
type roomSpec struct {
	typeID   booking.AccommodationTypeID
	adults   int
	children int
	addons   []AddonRequest
}

func (h *Handler) buildQuote(ctx context.Context, tenant booking.TenantID, bt booking.BookingType,
	checkIn, checkOut booking.Date, spec roomSpec, adjustments []booking.RateAdjustment) (*booking.Quote, error) {

	at, err := h.store.GetAccommodationType(ctx, tenant, spec.typeID)
	if err != nil {
		return nil, err
	}

	var selections []booking.AddonSelection
	if len(spec.addons) > 0 {
		ids := make([]string, 0, len(spec.addons))
		for _, a := range spec.addons {
			ids = append(ids, a.AddonID)
		}
		found, err := h.store.GetAddons(ctx, tenant, ids)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]booking.Addon, len(found))
		for _, a := range found {
			byID[a.ID] = a
		}
		for _, req := range spec.addons {
			addon, ok := byID[req.AddonID]
			if !ok {
				return nil, &booking.ValidationError{Field: "addons", Message: "unknown addon: " + req.AddonID}
			}
			if !addon.AppliesTo.Matches(bt) {
				return nil, &booking.ValidationError{Field: "addons", Message: "addon does not apply to this booking type: " + addon.Name}
			}
			selections = append(selections, booking.AddonSelection{Addon: addon, Quantity: req.Quantity})
		}
	}

	return booking.ComputeQuote(booking.QuoteInput{
		Type:        at,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Adults:      spec.adults,
		Children:    spec.children,
		Adjustments: adjustments,
		Addons:      selections,
	})
}

// =============================================================================
// VOUCHERS
// =============================================================================

// ValidateVoucher runs the voucher rule chain against a prospective
// booking. Read-only: times_used is untouched.
// POST /api/vouchers/validate
func (h *Handler) ValidateVoucher(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())

	var req VoucherValidateRequest
	if !h.decode(w, r, &req) {
		return
	}
	bookingType, err := parseBookingType(req.BookingType)
	if err != nil {
		writeError(w, err)
		return
	}

	v, err := h.store.GetVoucherByCode(r.Context(), tenant, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := booking.ValidateVoucher(v, booking.Today(), bookingType, req.BookingAmount); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, VoucherValidateResponse{
		Valid:          true,
		Code:           v.Code,
		DiscountType:   string(v.DiscountType),
		DiscountValue:  v.DiscountValue,
		DiscountAmount: booking.VoucherDiscount(v, req.BookingAmount),
		MaxDiscount:    v.MaxDiscount,
	})
}

// =============================================================================
// BOOKINGS
// =============================================================================

// CreateBooking reserves rooms for an online guest.
// POST /api/bookings
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	h.createBooking(w, r, booking.SourceOnline)
}

// CreateManualBooking reserves rooms on behalf of a guest (walk-in, phone).
// Same pipeline as the public endpoint: amounts are recomputed, the room
// re-checked, the voucher re-validated. The only difference is the source
// tag and the missing rate limit.
// POST /api/admin/bookings
func (h *Handler) CreateManualBooking(w http.ResponseWriter, r *http.Request) {
	h.createBooking(w, r, booking.SourceManual)
}

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request, source booking.BookingSource) {
	tenant := tenantFrom(r.Context())

	var req BookingRequest
	if !h.decode(w, r, &req) {
		return
	}
	bookingType, err := parseBookingType(req.BookingType)
	if err != nil {
		writeError(w, err)
		return
	}
	checkIn, err := parseDateField("check_in_date", req.CheckInDate)
	if err != nil {
		writeError(w, err)
		return
	}
	checkOut, err := parseDateField("check_out_date", req.CheckOutDate)
	if err != nil {
		writeError(w, err)
		return
	}

	adjustments, err := h.store.ListActiveAdjustments(r.Context(), tenant)
	if err != nil {
		writeError(w, err)
		return
	}

	rooms := make([]booking.RoomReservation, 0, len(req.Rooms))
	for _, room := range req.Rooms {
		quote, err := h.buildQuote(r.Context(), tenant, bookingType, checkIn, checkOut, roomSpec{
			typeID:   booking.AccommodationTypeID(room.AccommodationTypeID),
			adults:   room.NumAdults,
			children: room.NumChildren,
			addons:   room.Addons,
		}, adjustments)
		if err != nil {
			writeError(w, err)
			return
		}
		rooms = append(rooms, booking.RoomReservation{
			RoomID:   booking.RoomID(room.RoomID),
			TypeID:   booking.AccommodationTypeID(room.AccommodationTypeID),
			Adults:   room.NumAdults,
			Children: room.NumChildren,
			Quote:    quote,
		})
	}

	result, err := h.store.Reserve(r.Context(), booking.ReservationInput{
		TenantID:    tenant,
		BookingType: bookingType,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Guest: booking.GuestDetails{
			Name:  req.GuestName,
			Email: req.GuestEmail,
			Phone: req.GuestPhone,
		},
		Rooms:       rooms,
		VoucherCode: req.VoucherCode,
		Source:      source,
		Today:       booking.Today(),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if b, err := h.store.GetBooking(r.Context(), tenant, result.BookingIDs[0]); err == nil {
		go h.notifier.BookingCreated(context.Background(), b)
	}

	ids := make([]string, 0, len(result.BookingIDs))
	for _, id := range result.BookingIDs {
		ids = append(ids, string(id))
	}
	writeJSON(w, http.StatusCreated, BookingCreatedResponse{
		BookingIDs:       ids,
		ReferenceNumbers: result.References,
		GroupID:          string(result.GroupID),
		GroupReference:   result.GroupRef,
		Status:           string(booking.StatusPending),
		PaymentStatus:    string(booking.PaymentUnpaid),
		DiscountAmount:   result.Discount,
		TotalAmount:      result.Total,
	})
}

// GetBookingByReference looks a booking up by its public reference.
// GET /api/bookings/{reference}
func (h *Handler) GetBookingByReference(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())
	reference := chi.URLParam(r, "reference")

	b, err := h.store.GetBookingByReference(r.Context(), tenant, reference)
	if err != nil {
		writeError(w, err)
		return
	}
	addons, err := h.store.ListBookingAddons(r.Context(), b.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b, addons))
}

// =============================================================================
// AVAILABILITY
// =============================================================================

// GetAvailability reports per-day occupancy over an inclusive date range
// (max 90 days), for one accommodation type or, when type_id is absent,
// across every active room of the tenant. Advisory only; the reservation
// transaction is the authority.
// GET /api/availability?type_id=&start_date=&end_date=
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())

	typeID := r.URL.Query().Get("type_id")
	start, err := parseDateField("start_date", r.URL.Query().Get("start_date"))
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := parseDateField("end_date", r.URL.Query().Get("end_date"))
	if err != nil {
		writeError(w, err)
		return
	}

	if typeID != "" {
		if _, err := h.store.GetAccommodationType(r.Context(), tenant, booking.AccommodationTypeID(typeID)); err != nil {
			writeError(w, err)
			return
		}
	}
	rooms, err := h.store.ListActiveRooms(r.Context(), tenant, booking.AccommodationTypeID(typeID))
	if err != nil {
		writeError(w, err)
		return
	}
	roomIDs := make([]booking.RoomID, 0, len(rooms))
	for _, room := range rooms {
		roomIDs = append(roomIDs, room.ID)
	}

	// Bookings occupying any day in [start, end] overlap [start, end+1).
	// ListOverlapping treats an empty room list as "all rooms", so a type
	// with no rooms must not reach it: zero rooms means zero booked.
	var bookings []booking.Booking
	if len(roomIDs) > 0 {
		bookings, err = h.store.ListOverlapping(r.Context(), tenant, roomIDs, start, end.AddDays(1))
		if err != nil {
			writeError(w, err)
			return
		}
	}

	occupancy, err := booking.ComputeOccupancy(len(rooms), bookings, start, end)
	if err != nil {
		writeError(w, err)
		return
	}

	days := make(map[string]DayOccupancyDTO, len(occupancy))
	for day, occ := range occupancy {
		days[day.String()] = DayOccupancyDTO{
			TotalRooms:  occ.TotalRooms,
			BookedRooms: occ.BookedRooms,
			Status:      string(occ.Status),
		}
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{
		AccommodationTypeID: typeID,
		StartDate:           start,
		EndDate:             end,
		Days:                days,
	})
}

// =============================================================================
// ADMIN
// =============================================================================

// ListBookings returns the tenant's bookings, newest first.
// GET /api/admin/bookings
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())

	bookings, err := h.store.ListBookings(r.Context(), tenant)
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]*BookingDTO, 0, len(bookings))
	for i := range bookings {
		dtos = append(dtos, toBookingDTO(&bookings[i], nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": dtos})
}

// GetBooking returns one booking with its addon lines.
// GET /api/admin/bookings/{id}
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())
	id := booking.BookingID(chi.URLParam(r, "id"))

	b, err := h.store.GetBooking(r.Context(), tenant, id)
	if err != nil {
		writeError(w, err)
		return
	}
	addons, err := h.store.ListBookingAddons(r.Context(), b.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b, addons))
}

// ChangeStatus applies one booking status transition.
// PATCH /api/admin/bookings/{id}/status
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())
	id := booking.BookingID(chi.URLParam(r, "id"))

	var req StatusChangeRequest
	if !h.decode(w, r, &req) {
		return
	}
	changedBy := req.ChangedBy
	if changedBy == "" {
		changedBy = "admin"
	}

	b, err := h.store.ApplyStatusChange(r.Context(), tenant, id, booking.StatusChange{
		Field:     booking.FieldStatus,
		NewValue:  req.Status,
		ChangedBy: changedBy,
		Source:    booking.SourceAdmin,
		Notes:     req.Notes,
		Reason:    req.Reason,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	switch b.Status {
	case booking.StatusConfirmed:
		go h.notifier.BookingConfirmed(context.Background(), b)
	case booking.StatusCancelled:
		go h.notifier.BookingCancelled(context.Background(), b)
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b, nil))
}

// ChangePayment applies one payment status transition.
// PATCH /api/admin/bookings/{id}/payment
func (h *Handler) ChangePayment(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())
	id := booking.BookingID(chi.URLParam(r, "id"))

	var req PaymentChangeRequest
	if !h.decode(w, r, &req) {
		return
	}
	changedBy := req.ChangedBy
	if changedBy == "" {
		changedBy = "admin"
	}

	b, err := h.store.ApplyStatusChange(r.Context(), tenant, id, booking.StatusChange{
		Field:            booking.FieldPaymentStatus,
		NewValue:         req.PaymentStatus,
		ChangedBy:        changedBy,
		Source:           booking.SourceAdmin,
		Notes:            req.Notes,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b, nil))
}

// ListStatusLogs returns a booking's audit trail, oldest first.
// GET /api/admin/bookings/{id}/logs
func (h *Handler) ListStatusLogs(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())
	id := booking.BookingID(chi.URLParam(r, "id"))

	// 404 for an unknown booking rather than an empty list.
	if _, err := h.store.GetBooking(r.Context(), tenant, id); err != nil {
		writeError(w, err)
		return
	}
	logs, err := h.store.ListStatusLogs(r.Context(), tenant, id)
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]StatusLogDTO, 0, len(logs))
	for _, l := range logs {
		dtos = append(dtos, StatusLogDTO{
			FieldChanged: l.FieldChanged,
			OldValue:     l.OldValue,
			NewValue:     l.NewValue,
			ChangedBy:    l.ChangedBy,
			ChangeSource: l.ChangeSource,
			Notes:        l.Notes,
			CreatedAt:    l.CreatedAt.Format(timestampLayout),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": dtos})
}
