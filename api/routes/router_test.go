package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Services are left nil: a handler without its service answers 500, which
// shows the request made it through routing and the guards.
const reachedHandler = http.StatusInternalServerError

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubSessions struct{}

func (stubSessions) HasSession(context.Context, string) (bool, error) { return true, nil }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 15},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	router := NewRouter(RouterParams{
		Config:          cfg,
		Logger:          logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Sessions:        stubSessions{},
		HTTPMetrics:     metrics.NewHTTPMetrics(reg),
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadinessChecks: map[string]controllers.Pinger{"db": stubPinger{}},
	})
	return router, cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:   uuid.New(),
		Username: "tester",
		Role:     role,
		JTI:      session.NewAccessID(),
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouterGuards(t *testing.T) {
	router, cfg := newTestRouter(t)
	customer := bearer(t, cfg, enums.UserRoleCustomer)
	admin := bearer(t, cfg, enums.UserRoleAdmin)
	id := uuid.NewString()

	cases := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"live", http.MethodGet, "/health/live", "", http.StatusOK},
		{"ready", http.MethodGet, "/health/ready", "", http.StatusOK},
		{"products public", http.MethodGet, "/api/v1/products", "", reachedHandler},
		{"products trailing slash", http.MethodGet, "/api/v1/products/", "", reachedHandler},
		{"product detail public", http.MethodGet, "/api/v1/products/" + id, "", reachedHandler},
		{"product stock public", http.MethodGet, "/api/v1/products/" + id + "/stock", "", reachedHandler},
		{"categories public", http.MethodGet, "/api/v1/products/categories", "", reachedHandler},
		{"create product anonymous", http.MethodPost, "/api/v1/products", "", http.StatusUnauthorized},
		{"create product customer", http.MethodPost, "/api/v1/products", customer, http.StatusForbidden},
		{"create product admin", http.MethodPost, "/api/v1/products", admin, reachedHandler},
		{"delete product customer", http.MethodDelete, "/api/v1/products/" + id, customer, http.StatusForbidden},
		{"login public", http.MethodPost, "/api/v1/auth/login", "", reachedHandler},
		{"profile anonymous", http.MethodGet, "/api/v1/auth/profile", "", http.StatusUnauthorized},
		{"profile detail", http.MethodGet, "/api/v1/auth/profile/detail/", customer, reachedHandler},
		{"balance", http.MethodPost, "/api/v1/auth/balance", customer, reachedHandler},
		{"cart anonymous", http.MethodGet, "/api/v1/cart", "", http.StatusUnauthorized},
		{"cart summary", http.MethodGet, "/api/v1/cart/summary", customer, reachedHandler},
		{"cart remove", http.MethodDelete, "/api/v1/cart/" + id + "/remove", customer, reachedHandler},
		{"checkout", http.MethodPost, "/api/v1/orders/create", customer, reachedHandler},
		{"cancel", http.MethodPost, "/api/v1/orders/" + id + "/cancel", customer, reachedHandler},
		{"order summary", http.MethodGet, "/api/v1/orders/summary", customer, reachedHandler},
		{"validate", http.MethodPost, "/api/v1/orders/validate", customer, reachedHandler},
		{"admin list customer", http.MethodGet, "/api/v1/orders/admin/list", customer, http.StatusForbidden},
		{"admin list admin", http.MethodGet, "/api/v1/orders/admin/list", admin, reachedHandler},
		{"status customer", http.MethodPut, "/api/v1/orders/" + id + "/status", customer, http.StatusForbidden},
		{"status admin", http.MethodPut, "/api/v1/orders/" + id + "/status", admin, reachedHandler},
		{"unknown", http.MethodGet, "/api/v1/nothing", "", http.StatusNotFound},
		{"wrong method", http.MethodPatch, "/api/v1/orders/create", customer, http.StatusMethodNotAllowed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{}`))
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRouterSetsRequestIDAndExposesMetrics(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/health/live",status="200"} 1`)
}
