package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/ledger"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	shutdownTracing, err := tracing.Init(bootCtx, cfg.Tracing, nil)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, shutdownTracing(context.Background())) }()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svcs, err := buildServices(cfg, logg, dbClient, sessionManager, reg)
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	instance := os.Getenv("DYNO")
	if instance == "" {
		instance = "local"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			Sessions:       sessionManager,
			RateLimits:     redisClient,
			Idempotency:    redisClient,
			HTTPMetrics:    metrics.NewHTTPMetrics(reg),
			MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadinessChecks: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
			AuthService:     svcs.auth,
			UsersService:    svcs.users,
			ProductsService: svcs.products,
			CartService:     svcs.cart,
			OrdersService:   svcs.orders,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

type services struct {
	auth     auth.Service
	users    users.Service
	products products.Service
	cart     cart.Service
	orders   orders.Service
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, sessions *session.Manager, reg prometheus.Registerer) (*services, error) {
	conn := dbClient.DB()
	box := outbox.NewService(outbox.NewRepository(conn), logg)
	retry := db.RetryPolicy{
		MaxAttempts: cfg.Checkout.MaxAttempts,
		BaseDelay:   cfg.Checkout.RetryBaseDelay,
	}

	usersRepo := users.NewRepository(conn)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	accounts, err := users.NewAccounts(usersRepo, ledgerSvc)
	if err != nil {
		return nil, err
	}

	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return nil, err
	}

	usersSvc, err := users.NewService(users.ServiceParams{
		Repo:     usersRepo,
		Accounts: accounts,
		Tx:       dbClient,
		Outbox:   box,
		Ledger:   ledgerSvc,
		Retry:    retry,
	})
	if err != nil {
		return nil, err
	}

	productRepo := products.NewRepository(conn)
	productsSvc, err := products.NewService(productRepo)
	if err != nil {
		return nil, err
	}

	cartRepo := cart.NewRepository(conn)
	cartSvc, err := cart.NewService(cartRepo, productRepo, dbClient, logg)
	if err != nil {
		return nil, err
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(conn),
		Carts:     cartRepo,
		Users:     usersRepo,
		Accounts:  accounts,
		Inventory: products.NewInventory(),
		Tx:        dbClient,
		Outbox:    box,
		Retry:     retry,
		Metrics:   metrics.NewOrderMetrics(reg),
		Logger:    logg,
	})
	if err != nil {
		return nil, err
	}

	return &services{
		auth:     authSvc,
		users:    usersSvc,
		products: productsSvc,
		cart:     cartSvc,
		orders:   ordersSvc,
	}, nil
}
