package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bizflow/backend/internal/handlers"
	"github.com/bizflow/backend/internal/jobs"
	"github.com/bizflow/backend/internal/middleware"
	"github.com/bizflow/backend/internal/repository"
	"github.com/bizflow/backend/internal/services/billing"
	"github.com/bizflow/backend/internal/testutil"
	"github.com/bizflow/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "routes-test-secret"

type nopGateway struct{}

func (nopGateway) Charge(_ context.Context, _ billing.ChargeRequest) (*billing.ChargeResult, error) {
	return nil, billing.ErrGatewayNotConfigured
}

func setupRouter(t *testing.T) (*gin.Engine, *testutil.Fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	repo := repository.NewGormRepository(db)
	now := func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	f := testutil.SeedSubscription(t, db, now().AddDate(0, 0, 5))

	ledger := billing.NewPaymentLedger()
	orchestrator := billing.NewRenewalOrchestrator(repo, nopGateway{}, nil, ledger, billing.RenewalConfig{Now: now})
	status := billing.NewStatusService(repo, now)
	reconciler := billing.NewWebhookReconciler(repo, billing.NewSignatureVerifier("events"), nil, ledger, now)

	limiter := middleware.NewRateLimiter(0.001, 1)
	t.Cleanup(limiter.Stop)

	router := gin.New()
	RegisterRoutes(router, Dependencies{
		DB:          db,
		Webhook:     handlers.NewWebhookHandler(reconciler),
		Billing:     handlers.NewBillingHandler(status),
		Admin:       handlers.NewAdminHandler(jobs.NewRunner(orchestrator, status, nil, time.Minute), nil, ""),
		RateLimiter: limiter,
		JWTSecret:   jwtSecret,
	})
	return router, f
}

func request(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(`{"event":"transaction.updated"}`))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	router, _ := setupRouter(t)

	w := request(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = request(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	router, _ := setupRouter(t)
	admin, err := utils.GenerateToken(jwtSecret, "ops@bizflow.test", utils.RoleAdmin, time.Hour)
	require.NoError(t, err)
	viewer, err := utils.GenerateToken(jwtSecret, "app@bizflow.test", "service", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, request(router, http.MethodPost, "/api/v1/admin/billing/status-sweep", "").Code)
	assert.Equal(t, http.StatusForbidden, request(router, http.MethodPost, "/api/v1/admin/billing/status-sweep", viewer).Code)

	for _, path := range []string{"renewals", "retries", "status-sweep", "trial-reminders"} {
		w := request(router, http.MethodPost, "/api/v1/admin/billing/"+path, admin)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), `"sweep":"`+path+`"`)
	}
}

func TestAccessRoute(t *testing.T) {
	router, f := setupRouter(t)
	token, err := utils.GenerateToken(jwtSecret, "app@bizflow.test", "service", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, request(router, http.MethodGet, "/api/v1/billing/access/"+f.Business.ID.String(), "").Code)

	w := request(router, http.MethodGet, "/api/v1/billing/access/"+f.Business.ID.String(), token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"access":"FULL"`)
}

func TestWebhookRouteIsRateLimited(t *testing.T) {
	router, _ := setupRouter(t)

	// the body is unsigned, so the first call is rejected by verification, not the limiter
	w := request(router, http.MethodPost, "/api/v1/webhooks/payments", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = request(router, http.MethodPost, "/api/v1/webhooks/payments", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
