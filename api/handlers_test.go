package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/api"
	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/notify"
	"github.com/warp/booking-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testTenant = "tenant-1"

type testServer struct {
	store  *memory.Store
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	h := api.NewHandler(store, notify.NewLogNotifier())
	return &testServer{store: store, router: api.NewRouter(h, nil)}
}

func (ts *testServer) seedInventory(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, ts.store.SaveAccommodationType(ctx, &booking.AccommodationType{
		ID: "type-1", TenantID: testTenant, Name: "Family Room",
		BaseRateWeekday: decimal.NewFromInt(3000), BaseRateWeekend: decimal.NewFromInt(3500),
		BasePax: 2, MaxPax: 4, AdditionalPaxFee: decimal.NewFromInt(500), IsActive: true,
	}))
	require.NoError(t, ts.store.SaveRoom(ctx, &booking.Room{
		ID: "room-1", TenantID: testTenant, TypeID: "type-1", Name: "Room 1", IsActive: true,
	}))
	require.NoError(t, ts.store.SaveAddon(ctx, &booking.Addon{
		ID: "addon-bf", TenantID: testTenant, Name: "Breakfast",
		Price: decimal.NewFromInt(350), PricingModel: booking.PerPerson,
		AppliesTo: booking.AppliesBoth, IsActive: true,
	}))
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", testTenant)

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst), "body: %s", rec.Body.String())
}

func bookingRequest() map[string]any {
	return map[string]any{
		"check_in_date":  "2025-03-06",
		"check_out_date": "2025-03-08",
		"guest_name":     "Maria Santos",
		"guest_email":    "maria@example.com",
		"rooms": []map[string]any{{
			"room_id":               "room-1",
			"accommodation_type_id": "type-1",
			"num_adults":            3,
			"num_children":          1,
		}},
	}
}

// =============================================================================
// TENANT RESOLUTION
// =============================================================================

func TestAPI_MissingTenantHeaderRejected(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/availability", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_TENANT")
}

func TestAPI_HealthNeedsNoTenant(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// QUOTES
// =============================================================================

func TestCreateQuote_PricesTheStay(t *testing.T) {
	// Thu March 6 -> Sat March 8: one weekday + one weekend night,
	// 3 adults + 1 child, per_person breakfast for all four.
	ts := newTestServer(t)
	ts.seedInventory(t)

	rec := ts.do(t, http.MethodPost, "/api/quotes", map[string]any{
		"accommodation_type_id": "type-1",
		"check_in_date":         "2025-03-06",
		"check_out_date":        "2025-03-08",
		"num_adults":            3,
		"num_children":          1,
		"addons":                []map[string]any{{"addon_id": "addon-bf", "quantity": 1}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp api.QuoteResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 2, resp.TotalNights)
	assert.Equal(t, "6500", resp.TotalBaseRate.String())
	assert.Equal(t, "2000", resp.TotalPaxSurcharge.String())
	assert.Equal(t, "1400", resp.AddonsAmount.String())
	assert.Equal(t, "9900", resp.GrandTotal.String())
	require.Len(t, resp.Addons, 1)
	assert.Equal(t, 4, resp.Addons[0].Quantity)
}

func TestCreateQuote_UnknownTypeIs404(t *testing.T) {
	ts := newTestServer(t)
	ts.seedInventory(t)

	rec := ts.do(t, http.MethodPost, "/api/quotes", map[string]any{
		"accommodation_type_id": "type-ghost",
		"check_in_date":         "2025-03-06",
		"check_out_date":        "2025-03-08",
		"num_adults":            2,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateQuote_BadInputIs400(t *testing.T) {
	ts := newTestServer(t)
	ts.seedInventory(t)

	t.Run("missing required field", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/quotes", map[string]any{
			"accommodation_type_id": "type-1",
			"check_in_date":         "2025-03-06",
			// no check_out_date, no num_adults
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed date", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/quotes", map[string]any{
			"accommodation_type_id": "type-1",
			"check_in_date":         "06/03/2025",
			"check_out_date":        "2025-03-08",
			"num_adults":            2,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "check_in_date")
	})

	t.Run("unknown addon", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/quotes", map[string]any{
			"accommodation_type_id": "type-1",
			"check_in_date":         "2025-03-06",
			"check_out_date":        "2025-03-08",
			"num_adults":            2,
			"addons":                []map[string]any{{"addon_id": "addon-ghost", "quantity": 1}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// =============================================================================
// VOUCHERS
// =============================================================================

func TestValidateVoucher(t *testing.T) {
	ts := newTestServer(t)
	max := decimal.NewFromInt(500)
	require.NoError(t, ts.store.SaveVoucher(context.Background(), &booking.Voucher{
		ID: "v-1", TenantID: testTenant, Code: "SUMMER20",
		DiscountType: booking.DiscountPercentage, DiscountValue: decimal.NewFromInt(20),
		MaxDiscount: &max, AppliesTo: booking.AppliesBoth, IsActive: true,
	}))

	t.Run("valid code reports capped discount", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/vouchers/validate", map[string]any{
			"code":           "SUMMER20",
			"booking_amount": 4000,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp api.VoucherValidateResponse
		decodeBody(t, rec, &resp)
		assert.True(t, resp.Valid)
		assert.Equal(t, "500", resp.DiscountAmount.String(), "20%% of 4000 capped at 500")
	})

	t.Run("unknown code is a 409 with INVALID_CODE", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/vouchers/validate", map[string]any{
			"code":           "NOPE",
			"booking_amount": 4000,
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_CODE")
	})

	t.Run("expired code reports EXPIRED", func(t *testing.T) {
		until := booking.Today().AddDays(-1)
		require.NoError(t, ts.store.SaveVoucher(context.Background(), &booking.Voucher{
			ID: "v-2", TenantID: testTenant, Code: "OLD",
			DiscountType: booking.DiscountFixed, DiscountValue: decimal.NewFromInt(100),
			ValidUntil: &until, AppliesTo: booking.AppliesBoth, IsActive: true,
		}))
		rec := ts.do(t, http.MethodPost, "/api/vouchers/validate", map[string]any{
			"code":           "OLD",
			"booking_amount": 4000,
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "EXPIRED")
	})
}

// =============================================================================
// BOOKINGS
// =============================================================================

func TestCreateBooking_EndToEnd(t *testing.T) {
	ts := newTestServer(t)
	ts.seedInventory(t)

	rec := ts.do(t, http.MethodPost, "/api/bookings", bookingRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created api.BookingCreatedResponse
	decodeBody(t, rec, &created)
	require.Len(t, created.ReferenceNumbers, 1)
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "unpaid", created.PaymentStatus)
	assert.Equal(t, "8500", created.TotalAmount.String())

	// The reference resolves through the public lookup.
	rec = ts.do(t, http.MethodGet, "/api/bookings/"+created.ReferenceNumbers[0], nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var b api.BookingDTO
	decodeBody(t, rec, &b)
	assert.Equal(t, "Maria Santos", b.GuestName)
	assert.Equal(t, "online", b.Source)
	assert.Equal(t, "2025-03-06", b.CheckInDate.String())
}

func TestCreateBooking_OverlapIs409(t *testing.T) {
	ts := newTestServer(t)
	ts.seedInventory(t)

	rec := ts.do(t, http.MethodPost, "/api/bookings", bookingRequest())
	require.Equal(t, http.StatusCreated, rec.Code)

	second := bookingRequest()
	second["guest_email"] = "other@example.com"
	rec = ts.do(t, http.MethodPost, "/api/bookings", second)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ROOM_UNAVAILABLE")
}

func TestCreateBooking_ClientTotalsIgnored(t *testing.T) {
	// A request smuggling its own price still pays the server's price.
	ts := newTestServer(t)
	ts.seedInventory(t)

	req := bookingRequest()
	req["total_amount"] = 1
	rec := ts.do(t, http.MethodPost, "/api/bookings", req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created api.BookingCreatedResponse
	decodeBody(t, rec, &created)
	assert.Equal(t, "8500", created.TotalAmount.String())
}

func TestGetBookingByReference_Unknown404(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/bookings/RSV-XXXXXXXX", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// AVAILABILITY
// =============================================================================

func TestGetAvailability_ReportsOccupancy(t *testing.T) {
	// Two rooms, both booked for the stay. The booked days are full; on the
	// checkout day both rooms are free again, which clears the limited
	// threshold (2 available > ceil(2*0.3)).
	ts := newTestServer(t)
	ts.seedInventory(t)
	require.NoError(t, ts.store.SaveRoom(context.Background(), &booking.Room{
		ID: "room-2", TenantID: testTenant, TypeID: "type-1", Name: "Room 2", IsActive: true,
	}))

	req := bookingRequest()
	req["rooms"] = append(req["rooms"].([]map[string]any), map[string]any{
		"room_id":               "room-2",
		"accommodation_type_id": "type-1",
		"num_adults":            2,
	})
	rec := ts.do(t, http.MethodPost, "/api/bookings", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet,
		"/api/availability?type_id=type-1&start_date=2025-03-06&end_date=2025-03-08", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp api.AvailabilityResponse
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Days, 3)
	assert.Equal(t, "full", resp.Days["2025-03-06"].Status, "both rooms are booked")
	assert.Equal(t, 2, resp.Days["2025-03-06"].BookedRooms)
	assert.Equal(t, "full", resp.Days["2025-03-07"].Status)
	assert.Equal(t, "available", resp.Days["2025-03-08"].Status, "checkout day is free")
	assert.Zero(t, resp.Days["2025-03-08"].BookedRooms)
}

func TestGetAvailability_AllTypesWhenTypeOmitted(t *testing.T) {
	// Without type_id the report spans every active room of the tenant.
	ts := newTestServer(t)
	ts.seedInventory(t)
	require.NoError(t, ts.store.SaveAccommodationType(context.Background(), &booking.AccommodationType{
		ID: "type-2", TenantID: testTenant, Name: "Cottage",
		BaseRateWeekday: decimal.NewFromInt(2000), BaseRateWeekend: decimal.NewFromInt(2500),
		BasePax: 2, MaxPax: 2, IsActive: true,
	}))
	require.NoError(t, ts.store.SaveRoom(context.Background(), &booking.Room{
		ID: "room-c1", TenantID: testTenant, TypeID: "type-2", Name: "Cottage 1", IsActive: true,
	}))

	rec := ts.do(t, http.MethodPost, "/api/bookings", bookingRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet,
		"/api/availability?start_date=2025-03-06&end_date=2025-03-08", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp api.AvailabilityResponse
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Days, 3)
	occupied := resp.Days["2025-03-06"]
	assert.Equal(t, 2, occupied.TotalRooms, "one room per type")
	assert.Equal(t, 1, occupied.BookedRooms)
	free := resp.Days["2025-03-08"]
	assert.Zero(t, free.BookedRooms)
}

func TestGetAvailability_TypeWithoutRooms(t *testing.T) {
	// A type with zero rooms reports zero booked; other types' bookings
	// must not bleed into its counts.
	ts := newTestServer(t)
	ts.seedInventory(t)
	require.NoError(t, ts.store.SaveAccommodationType(context.Background(), &booking.AccommodationType{
		ID: "type-2", TenantID: testTenant, Name: "Cottage",
		BaseRateWeekday: decimal.NewFromInt(2000), BaseRateWeekend: decimal.NewFromInt(2500),
		BasePax: 2, MaxPax: 2, IsActive: true,
	}))

	rec := ts.do(t, http.MethodPost, "/api/bookings", bookingRequest())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet,
		"/api/availability?type_id=type-2&start_date=2025-03-06&end_date=2025-03-08", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp api.AvailabilityResponse
	decodeBody(t, rec, &resp)
	for day, occ := range resp.Days {
		assert.Zero(t, occ.TotalRooms, "day %s", day)
		assert.Zero(t, occ.BookedRooms, "day %s", day)
	}
}

func TestGetAvailability_Bounds(t *testing.T) {
	ts := newTestServer(t)
	ts.seedInventory(t)

	t.Run("span over 90 days", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet,
			"/api/availability?type_id=type-1&start_date=2025-01-01&end_date=2025-06-30", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown type", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet,
			"/api/availability?type_id=type-ghost&start_date=2025-03-06&end_date=2025-03-08", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed start date", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet,
			"/api/availability?type_id=type-1&start_date=06-03-2025&end_date=2025-03-08", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAdmin_ManualBookingTagged(t *testing.T) {
	ts := newTestServer(t)
	ts.seedInventory(t)

	rec := ts.do(t, http.MethodPost, "/api/admin/bookings", bookingRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created api.BookingCreatedResponse
	decodeBody(t, rec, &created)

	rec = ts.do(t, http.MethodGet, "/api/admin/bookings/"+created.BookingIDs[0], nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var b api.BookingDTO
	decodeBody(t, rec, &b)
	assert.Equal(t, "manual", b.Source)
	assert.Equal(t, "8500", b.TotalAmount.String(), "manual bookings are priced server-side too")
}

func TestAdmin_StatusAndPaymentLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.seedInventory(t)

	rec := ts.do(t, http.MethodPost, "/api/bookings", bookingRequest())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created api.BookingCreatedResponse
	decodeBody(t, rec, &created)
	id := created.BookingIDs[0]

	// Confirm
	rec = ts.do(t, http.MethodPatch, "/api/admin/bookings/"+id+"/status", map[string]any{
		"status": "confirmed", "changed_by": "front-desk",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Pay
	rec = ts.do(t, http.MethodPatch, "/api/admin/bookings/"+id+"/payment", map[string]any{
		"payment_status": "paid", "payment_method": "gcash", "payment_reference": "GC-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var b api.BookingDTO
	decodeBody(t, rec, &b)
	assert.Equal(t, "paid", b.PaymentStatus)
	assert.Equal(t, "confirmed", b.Status)

	// Illegal jump is a 400 with the transition spelled out.
	rec = ts.do(t, http.MethodPatch, "/api/admin/bookings/"+id+"/status", map[string]any{
		"status": "checked_out",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ILLEGAL_TRANSITION")

	// The audit trail recorded both applied changes.
	rec = ts.do(t, http.MethodGet, "/api/admin/bookings/"+id+"/logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs struct {
		Logs []api.StatusLogDTO `json:"logs"`
	}
	decodeBody(t, rec, &logs)
	require.Len(t, logs.Logs, 2)
	assert.Equal(t, "status", logs.Logs[0].FieldChanged)
	assert.Equal(t, "payment_status", logs.Logs[1].FieldChanged)
}

func TestAdmin_ListBookings(t *testing.T) {
	ts := newTestServer(t)
	ts.seedInventory(t)

	for i := 0; i < 2; i++ {
		req := bookingRequest()
		req["check_in_date"] = fmt.Sprintf("2025-04-%02d", 1+i*7)
		req["check_out_date"] = fmt.Sprintf("2025-04-%02d", 3+i*7)
		rec := ts.do(t, http.MethodPost, "/api/bookings", req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := ts.do(t, http.MethodGet, "/api/admin/bookings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Bookings []api.BookingDTO `json:"bookings"`
	}
	decodeBody(t, rec, &resp)
	assert.Len(t, resp.Bookings, 2)
}
