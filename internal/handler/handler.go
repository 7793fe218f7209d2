package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/kart-ledger/internal/domain/cart"
	"github.com/xenking/kart-ledger/internal/domain/profile"
)

// CartStore provides storefront cart sessions with per-cart exclusive access.
type CartStore interface {
	Create(ctx context.Context) (string, error)
	Update(ctx context.Context, id string, fn func(l *cart.Ledger) error) error
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// Token is the static bearer token guarding the profile endpoints.
	Token string
	// Meter records cart mutation counters. Defaults to a no-op meter.
	Meter metric.Meter
	// PasswordGuard, when set, wraps the change-password route.
	PasswordGuard func(http.Handler) http.Handler
}

// Handler serves the profile API and the storefront cart API.
type Handler struct {
	profiles *profile.Service
	carts    CartStore
	token    string
	guard    func(http.Handler) http.Handler
	metrics  *metrics
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, profiles *profile.Service, carts CartStore) (*Handler, error) {
	meter := cfg.Meter
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("")
	}
	m, err := newMetrics(meter)
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}
	return &Handler{
		profiles: profiles,
		carts:    carts,
		token:    cfg.Token,
		guard:    cfg.PasswordGuard,
		metrics:  m,
	}, nil
}

// Routes mounts all endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/register", h.Register)

	r.Group(func(r chi.Router) {
		r.Use(RequireBearer(h.token))
		r.Get("/profile", h.GetProfile)
		r.Put("/profile", h.UpdateProfile)
		r.Delete("/profile", h.DeleteProfile)
		if h.guard != nil {
			r = r.With(h.guard)
		}
		r.Put("/change-password", h.ChangePassword)
	})

	r.Route("/carts", func(r chi.Router) {
		r.Post("/", h.CreateCart)
		r.Route("/{cartID}", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.DestroyCart)
			r.Post("/items", h.AddItem)
			r.Put("/items/{productID}", h.UpdateItem)
			r.Delete("/items/{productID}", h.RemoveItem)
			r.Post("/discounts", h.ApplyDiscount)
			r.Delete("/discounts/{name}", h.RemoveDiscount)
			r.Post("/freebies", h.ApplyFreebie)
		})
	})
}

// Router returns a chi router with all endpoints mounted and JSON
// responses for unknown routes and methods.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	h.Routes(r)
	return r
}
