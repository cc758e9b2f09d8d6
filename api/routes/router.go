package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface needs. Nil stores disable
// the middleware that depends on them.
type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	Sessions        session.AccessSessionChecker
	RateLimits      middleware.RateLimitStore
	Idempotency     pkgredis.IdempotencyStore
	HTTPMetrics     *metrics.HTTPMetrics
	MetricsHandler  http.Handler
	ReadinessChecks map[string]controllers.Pinger

	AuthService     auth.Service
	UsersService    users.Service
	ProductsService products.Service
	CartService     cart.Service
	OrdersService   orders.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.CORS(cfg.App.AllowedOrigins()),
		chimw.StripSlashes,
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	requireAuth := middleware.Auth(cfg.JWT, p.Sessions, logg)
	requireAdmin := middleware.RequireAdmin(logg)
	idempotent := middleware.Idempotency(p.Idempotency, cfg.FeatureFlags.IdempotencyRequired, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.ReadinessChecks, logg))
	})
	if p.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", p.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, p.RateLimits, logg), idempotent).
				Post("/register", controllers.AuthRegister(p.AuthService, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, p.RateLimits, logg)).
				Post("/login", controllers.AuthLogin(p.AuthService, logg))
			r.Post("/refresh", controllers.AuthRefresh(p.AuthService, logg))

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, idempotent)
				r.Post("/logout", controllers.AuthLogout(p.AuthService, logg))
				r.Get("/profile", controllers.ProfileGet(p.UsersService, logg))
				r.Put("/profile", controllers.ProfileUpdate(p.UsersService, logg))
				r.Get("/profile/detail", controllers.ProfileGet(p.UsersService, logg))
				r.Post("/balance", controllers.BalanceCredit(p.UsersService, logg))
				r.Get("/balance/entries", controllers.BalanceEntries(p.UsersService, logg))
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(p.ProductsService, logg))
			r.Get("/categories", controllers.CategoryList(p.ProductsService, logg))
			r.Get("/{id}", controllers.ProductDetail(p.ProductsService, logg))
			r.Get("/{id}/stock", controllers.ProductStock(p.ProductsService, logg))

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireAdmin, idempotent)
				r.Post("/", controllers.ProductCreate(p.ProductsService, logg))
				r.Post("/categories", controllers.CategoryCreate(p.ProductsService, logg))
				r.Put("/{id}", controllers.ProductUpdate(p.ProductsService, logg))
				r.Delete("/{id}", controllers.ProductDelete(p.ProductsService, logg))
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(requireAuth, idempotent)
			r.Get("/", controllers.CartList(p.CartService, logg))
			r.Post("/add", controllers.CartAdd(p.CartService, logg))
			r.Post("/clear", controllers.CartClear(p.CartService, logg))
			r.Get("/summary", controllers.CartSummary(p.CartService, logg))
			r.Put("/{id}", controllers.CartUpdate(p.CartService, logg))
			r.Post("/{id}/quantity", controllers.CartSetQuantity(p.CartService, logg))
			r.Delete("/{id}/remove", controllers.CartRemove(p.CartService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(requireAuth, idempotent)
			r.Get("/", controllers.OrderList(p.OrdersService, logg))
			r.Post("/create", controllers.OrderCreate(p.OrdersService, logg))
			r.Get("/summary", controllers.OrderSummary(p.OrdersService, logg))
			r.Post("/validate", controllers.OrderValidate(p.OrdersService, logg))
			r.Get("/{id}", controllers.OrderDetail(p.OrdersService, logg))
			r.Post("/{id}/cancel", controllers.OrderCancel(p.OrdersService, logg))

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/admin/list", controllers.AdminOrderList(p.OrdersService, logg))
				r.Put("/{id}/status", controllers.OrderUpdateStatus(p.OrdersService, logg))
			})
		})
	})

	return r
}
