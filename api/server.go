/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RealIP:    resolve the client address behind proxies
  2. Recoverer: panic recovery (500 instead of crash)
  3. RequestID: unique ID per request for tracing
  4. CORS:      cross-origin requests for the booking frontend
  5. Tenant:    X-Tenant-ID header -> request context (all /api routes)
  6. RateLimit: public routes only; admin routes are exempt

ROUTE GROUPS:
  /api/quotes              price a stay (no reservation)
  /api/vouchers/validate   check a voucher code
  /api/bookings            create / look up reservations
  /api/availability        per-day occupancy report
  /api/admin/*             manual bookings, status and payment changes

SECURITY NOTE:
  Tenancy is header-based; there is no authentication middleware. Admin
  routes are expected to sit behind a gateway that enforces auth.

SEE ALSO:
  - handlers.go: handler implementations
  - ratelimit.go: limiter implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/logger"
)

// NewRouter creates the router with all routes configured. limiter may be
// nil to disable rate limiting (tests, or config).
func NewRouter(h *Handler, limiter Limiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Tenant-ID"},
		AllowCredentials: false,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(tenantMiddleware)

		// Public routes, rate limited
		r.Group(func(r chi.Router) {
			r.Use(rateLimitMiddleware(limiter))

			r.Post("/quotes", h.CreateQuote)
			r.Post("/vouchers/validate", h.ValidateVoucher)
			r.Get("/availability", h.GetAvailability)

			r.Route("/bookings", func(r chi.Router) {
				r.Post("/", h.CreateBooking)
				r.Get("/{reference}", h.GetBookingByReference)
			})
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Route("/bookings", func(r chi.Router) {
				r.Get("/", h.ListBookings)
				r.Post("/", h.CreateManualBooking)
				r.Get("/{id}", h.GetBooking)
				r.Get("/{id}/logs", h.ListStatusLogs)
				r.Patch("/{id}/status", h.ChangeStatus)
				r.Patch("/{id}/payment", h.ChangePayment)
			})
		})
	})

	return r
}

// =============================================================================
// TENANT RESOLUTION
// =============================================================================

type contextKey string

const tenantContextKey contextKey = "tenant"

// tenantMiddleware requires the X-Tenant-ID header on every /api route and
// places it in the request context.
func tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get("X-Tenant-ID")
		if tenant == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error: "X-Tenant-ID header is required",
				Code:  "MISSING_TENANT",
			})
			return
		}
		ctx := context.WithValue(r.Context(), tenantContextKey, booking.TenantID(tenant))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tenantFrom returns the tenant placed in the context by tenantMiddleware.
func tenantFrom(ctx context.Context) booking.TenantID {
	tenant, _ := ctx.Value(tenantContextKey).(booking.TenantID)
	return tenant
}

// =============================================================================
// RATE LIMITING
// =============================================================================

// rateLimitMiddleware applies the limiter per (client IP, path). Limiter
// failures fail open: an unreachable Redis must not block bookings.
func rateLimitMiddleware(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), r.RemoteAddr, r.URL.Path)
			if err != nil {
				logger.Warn("rate limiter unavailable, failing open", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				writeJSON(w, http.StatusTooManyRequests, errorResponse{
					Error: "too many requests",
					Code:  "RATE_LIMITED",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
