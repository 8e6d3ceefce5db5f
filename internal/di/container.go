package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	domain "github.com/harvestfield/api/internal/domain"
	"github.com/harvestfield/api/internal/payments"
	"github.com/harvestfield/api/internal/platform/config"
	"github.com/harvestfield/api/internal/platform/observability"
	"github.com/harvestfield/api/internal/repositories"
	"github.com/harvestfield/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders   services.OrderService
	Payments services.PaymentService
	Cart     services.CartService
	System   services.SystemService
}

// Container wires repositories, services, and supporting infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// ContainerOption customises container assembly.
type ContainerOption func(*containerConfig)

type containerConfig struct {
	events services.OrderEventPublisher
	build  services.BuildInfo
	logger *zap.Logger
	clock  func() time.Time
}

// WithEventPublisher attaches the order event publisher. Without it order
// events are dropped silently, which is acceptable for local development.
func WithEventPublisher(events services.OrderEventPublisher) ContainerOption {
	return func(c *containerConfig) {
		c.events = events
	}
}

// WithBuildInfo sets the build metadata surfaced by health endpoints.
func WithBuildInfo(build services.BuildInfo) ContainerOption {
	return func(c *containerConfig) {
		c.build = build
	}
}

// WithLogger sets the fallback logger used when a request context carries none.
func WithLogger(logger *zap.Logger) ContainerOption {
	return func(c *containerConfig) {
		c.logger = logger
	}
}

// WithClock overrides the shared time source, primarily for tests.
func WithClock(clock func() time.Time) ContainerOption {
	return func(c *containerConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies. Production wiring provides
// the Firestore-backed registry, while tests can supply in-memory fakes.
func NewContainer(_ context.Context, cfg config.Config, reg repositories.Registry, opts ...ContainerOption) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	options := containerConfig{clock: time.Now}
	for _, opt := range opts {
		opt(&options)
	}
	if options.build.StartedAt.IsZero() {
		options.build.StartedAt = options.clock().UTC()
	}

	svc, err := buildServices(cfg, reg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(cfg config.Config, reg repositories.Registry, options containerConfig) (Services, error) {
	var svc Services

	logFn := serviceLogger(options.logger)

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Counters:   reg.Counters(),
		UnitOfWork: reg,
		Clock:      options.clock,
		Events:     options.events,
		Logger:     logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	gateway, err := buildGateway(cfg, logFn, options.clock)
	if err != nil {
		return Services{}, fmt.Errorf("build payment gateway: %w", err)
	}
	paymentSvc, err := services.NewPaymentService(services.PaymentServiceDeps{
		Orders:  orderSvc,
		Records: reg.OrderPayments(),
		Gateway: gateway,
		Clock:   options.clock,
		Logger:  logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment service: %w", err)
	}
	svc.Payments = paymentSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Repository: reg.Carts(),
		Clock:      options.clock,
		Logger:     logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Clock:            options.clock,
		Build:            options.build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}

// buildGateway routes every simulatable method through the one simulated
// provider. Cash is deliberately absent; it never reaches a gateway.
func buildGateway(cfg config.Config, logFn func(context.Context, string, map[string]any), clock func() time.Time) (services.Gateway, error) {
	provider, err := payments.NewSimulatedProvider(payments.SimulatedProviderConfig{
		SuccessRate:     cfg.Gateway.SuccessRate,
		ProcessingDelay: cfg.Gateway.ProcessingDelay,
		Logger:          payments.SimulatedLogger(logFn),
		Clock:           clock,
	})
	if err != nil {
		return nil, err
	}

	return payments.NewManager(map[domain.PaymentMethod]payments.Provider{
		domain.PaymentMethodCard:   provider,
		domain.PaymentMethodUPI:    provider,
		domain.PaymentMethodWallet: provider,
	})
}

// serviceLogger adapts zap to the field-map logging contract the services
// accept. The request-scoped logger carries request id and trace fields; the
// fallback covers calls made outside a request, such as startup probes.
func serviceLogger(fallback *zap.Logger) func(context.Context, string, map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := observability.FromContext(ctx)
		if !logger.Core().Enabled(zap.InfoLevel) && fallback != nil {
			logger = fallback
		}
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
