package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/harvestfield/api/internal/platform/auth"
	"github.com/harvestfield/api/internal/platform/httpx"
)

const defaultBasePath = "/api/v1"

type routerOptions struct {
	basePath    string
	health      *HealthHandlers
	orders      *OrderHandlers
	payments    *PaymentHandlers
	cart        *CartHandlers
	authn       *auth.Authenticator
	middlewares []func(http.Handler) http.Handler
	idempotency func(http.Handler) http.Handler
}

// RouterOption customises router construction.
type RouterOption func(*routerOptions)

// WithBasePath overrides the versioned API mount point.
func WithBasePath(path string) RouterOption {
	return func(o *routerOptions) {
		if path != "" {
			o.basePath = path
		}
	}
}

// WithHealthHandlers mounts the liveness and readiness probes.
func WithHealthHandlers(h *HealthHandlers) RouterOption {
	return func(o *routerOptions) {
		o.health = h
	}
}

// WithOrderHandlers mounts the order lifecycle endpoints.
func WithOrderHandlers(h *OrderHandlers) RouterOption {
	return func(o *routerOptions) {
		o.orders = h
	}
}

// WithPaymentHandlers mounts the simulated payment endpoints.
func WithPaymentHandlers(h *PaymentHandlers) RouterOption {
	return func(o *routerOptions) {
		o.payments = h
	}
}

// WithCartHandlers mounts the cart endpoints.
func WithCartHandlers(h *CartHandlers) RouterOption {
	return func(o *routerOptions) {
		o.cart = h
	}
}

// WithAuthenticator guards the API surface with bearer-token auth.
func WithAuthenticator(a *auth.Authenticator) RouterOption {
	return func(o *routerOptions) {
		o.authn = a
	}
}

// WithMiddlewares appends extra middlewares after the defaults.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) RouterOption {
	return func(o *routerOptions) {
		o.middlewares = append(o.middlewares, mw...)
	}
}

// WithIdempotencyMiddleware wraps write endpoints with replay protection.
func WithIdempotencyMiddleware(mw func(http.Handler) http.Handler) RouterOption {
	return func(o *routerOptions) {
		o.idempotency = mw
	}
}

// NewRouter assembles the HTTP surface. Handlers left unset respond 503
// through their nil-service guards rather than 404, keeping the route
// table stable across partial wiring in tests.
func NewRouter(opts ...RouterOption) chi.Router {
	options := routerOptions{basePath: defaultBasePath}
	for _, opt := range opts {
		opt(&options)
	}
	if options.health == nil {
		options.health = NewHealthHandlers()
	}
	if options.orders == nil {
		options.orders = NewOrderHandlers(nil, nil)
	}
	if options.payments == nil {
		options.payments = NewPaymentHandlers(nil)
	}
	if options.cart == nil {
		options.cart = NewCartHandlers(nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	for _, mw := range options.middlewares {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", "method not allowed", http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", options.health.Healthz)
	r.Get("/readyz", options.health.Readyz)

	requireAuth := func(next http.Handler) http.Handler { return next }
	if options.authn != nil {
		requireAuth = options.authn.RequireAuth(auth.RoleConsumer, auth.RoleFarmer, auth.RoleAdmin)
	}
	guardWrites := func(next http.Handler) http.Handler { return next }
	if options.idempotency != nil {
		guardWrites = options.idempotency
	}

	r.Route(options.basePath, func(api chi.Router) {
		api.Route("/orders", func(orders chi.Router) {
			orders.Use(requireAuth)
			orders.With(guardWrites).Post("/", options.orders.Create)
			orders.Get("/", options.orders.List)
			orders.Get("/{orderID}", options.orders.Get)
			orders.With(guardWrites).Put("/{orderID}/status", options.orders.UpdateStatus)
			orders.With(guardWrites).Put("/{orderID}/cancel", options.orders.Cancel)
			orders.Get("/{orderID}/payments", options.orders.ListPayments)
		})

		api.Route("/payments", func(payments chi.Router) {
			payments.Get("/methods", options.payments.ListMethods)
			payments.With(requireAuth, guardWrites).Post("/simulate", options.payments.Simulate)
		})

		api.Route("/cart", func(cart chi.Router) {
			cart.Use(requireAuth)
			cart.Get("/", options.cart.Get)
			cart.Put("/", options.cart.Replace)
			cart.Delete("/", options.cart.Clear)
			cart.Get("/estimate", options.cart.Estimate)
			cart.Post("/items", options.cart.AddItem)
			cart.Delete("/items/{productID}", options.cart.RemoveItem)
		})
	})

	return r
}
