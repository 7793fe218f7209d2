package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-ledger/internal/domain/profile"
	"github.com/xenking/kart-ledger/internal/handler"
	"github.com/xenking/kart-ledger/internal/storage/memory"
	"github.com/xenking/kart-ledger/internal/storage/postgres"
	"github.com/xenking/kart-ledger/pkg/health"
	"github.com/xenking/kart-ledger/pkg/httpmiddleware"
)

const instrumentationName = "github.com/xenking/kart-ledger"

// profileStore is a profile.Store that can report on its backend.
type profileStore interface {
	profile.Store
	health.Pinger
}

// cartStore is a handler.CartStore that evicts idle carts in the background.
type cartStore interface {
	handler.CartStore
	StartCleanup(ctx context.Context)
}

// stores groups the persistence backends selected by configuration.
type stores struct {
	profiles profileStore
	carts    cartStore
	close    func()
}

// openStores returns PostgreSQL stores when a database URL is configured and
// in-memory stores otherwise.
func openStores(ctx context.Context, lg *zap.Logger, cfg *Config) (*stores, error) {
	if cfg.DatabaseURL == "" {
		lg.Info("Using in-memory stores")
		return &stores{
			profiles: memory.NewProfileStore(),
			carts:    memory.NewCartStore(cfg.Cart.TTL),
			close:    func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	lg.Info("Using PostgreSQL stores")
	return &stores{
		profiles: postgres.NewProfileStore(pool),
		carts:    postgres.NewCartStore(pool, cfg.Cart.TTL),
		close:    pool.Close,
	}, nil
}

// service is the assembled application, ready to be served.
type service struct {
	handler http.Handler
	health  *health.Health
	limiter *httpmiddleware.RateLimiter
	close   func()
}

// newService builds stores, domain services and the HTTP handler chain.
// Background work (health checks, cart eviction) is bound to ctx.
func newService(ctx context.Context, lg *zap.Logger, cfg *Config, tp trace.TracerProvider, mp metric.MeterProvider) (_ *service, rerr error) {
	st, err := openStores(ctx, lg, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr != nil {
			st.close()
		}
	}()

	profiles := profile.NewService(st.profiles)
	if cfg.Profile.Seed {
		seeded, err := profiles.Seed(ctx, profile.Default())
		if err != nil {
			return nil, errors.Wrap(err, "seed profile")
		}
		lg.Info("Profile seed", zap.Bool("installed", seeded))
	}

	st.carts.StartCleanup(zctx.Base(ctx, lg.Named("carts")))

	limiter := httpmiddleware.NewRateLimiter(httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	})

	h, err := handler.NewHandler(handler.HandlerConfig{
		Token:         cfg.Auth.Token,
		Meter:         mp.Meter(instrumentationName),
		PasswordGuard: limiter.Middleware(),
	}, profiles, st.carts)
	if err != nil {
		return nil, errors.Wrap(err, "create handler")
	}

	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "profile_store", health.PingCheck(st.profiles), health.WithTimeout(5*time.Second))
	healthSvc.Add(health.Liveness, "goroutines", health.GoroutineCountCheck(10000))

	mux := h.Router()
	healthSvc.Routes(mux)

	return &service{
		handler: otelhttp.NewHandler(
			httpmiddleware.Wrap(mux,
				httpmiddleware.Recovery(),
				httpmiddleware.CORS(httpmiddleware.CORSConfig{
					AllowOrigins:     cfg.CORS.Origins,
					AllowHeaders:     []string{"Content-Type", "Authorization"},
					ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
					AllowCredentials: cfg.CORS.AllowCredentials,
					MaxAge:           86400,
				}),
				httpmiddleware.RequestID(),
				httpmiddleware.InjectLogger(lg),
				httpmiddleware.LogRequests(),
				httpmiddleware.RouteLabels(),
			),
			"kart-api",
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithMeterProvider(mp),
		),
		health:  healthSvc,
		limiter: limiter,
		close:   st.close,
	}, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	svc, err := newService(ctx, lg, cfg, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}
	defer svc.close()

	svc.health.Start(ctx, 10*time.Second)
	defer svc.health.Stop()
	svc.health.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           svc.handler,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		svc.limiter.Run(gCtx)
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		svc.health.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}
