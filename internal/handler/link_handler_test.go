package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parthsharma2/linksight/internal/analytics"
	"github.com/parthsharma2/linksight/internal/domain"
	"github.com/parthsharma2/linksight/internal/pkg/keygen"
	"github.com/parthsharma2/linksight/internal/quota"
	"github.com/parthsharma2/linksight/internal/repository"
	"github.com/parthsharma2/linksight/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	router *gin.Engine
	store  *repository.MemoryStore
	cache  *repository.MemoryLinkCache
}

func newTestEnv(t *testing.T, plan domain.Plan) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	linkCache := repository.NewMemoryLinkCache()
	ledger := quota.NewMemoryLedger()
	plans := quota.NewStaticPlanSource(plan)

	gen, err := keygen.NewSnowflakeGenerator(keygen.Config{MachineID: 1, MinLength: 7})
	require.NoError(t, err)

	logger := zap.NewNop()
	linkService := service.NewLinkService(store, linkCache, ledger, plans, gen, logger, nil, service.LinkServiceConfig{
		BaseURL: "http://sho.rt",
	})
	resolver := service.NewResolver(store, linkCache, nil, logger, nil, time.Hour, 2*time.Second)
	aggregator := analytics.NewAggregator(store, logger)

	linkHandler := NewLinkHandler(linkService, resolver, aggregator, logger)
	analyticsHandler := NewAnalyticsHandler(aggregator, linkHandler, logger)

	router := gin.New()
	router.GET("/:shortID", linkHandler.Redirect)
	api := router.Group("/api/v1")
	api.POST("/links", linkHandler.CreateLink)
	api.GET("/links", linkHandler.ListLinks)
	api.PATCH("/links/:shortID", linkHandler.UpdateLink)
	api.DELETE("/links/:shortID", linkHandler.DeleteLink)
	api.GET("/links/:shortID/stats", linkHandler.LinkStats)
	api.GET("/usage", linkHandler.Usage)
	api.GET("/analytics/breakdown", analyticsHandler.Breakdown)
	api.GET("/admin/stats", analyticsHandler.PlatformStats)

	return &testEnv{router: router, store: store, cache: linkCache}
}

func (e *testEnv) do(method, path, owner, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if owner != "" {
		req.Header.Set(OwnerIDHeader, owner)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createLink(t *testing.T, owner, body string) domain.CreateLinkResponse {
	t.Helper()
	w := e.do(http.MethodPost, "/api/v1/links", owner, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp domain.CreateLinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateLink_RequiresOwner(t *testing.T) {
	env := newTestEnv(t, domain.Plan{MaxLinks: -1, MaxClicks: -1})
	w := env.do(http.MethodPost, "/api/v1/links", "", `{"original_url":"https://example.com"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAndRedirect(t *testing.T) {
	env := newTestEnv(t, domain.Plan{MaxLinks: -1, MaxClicks: -1})
	resp := env.createLink(t, "owner-1", `{"original_url":"https://example.com/page"}`)

	w := env.do(http.MethodGet, "/"+resp.ShortID, "", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/page", w.Header().Get("Location"))
}

func TestRedirect_NotFound(t *testing.T) {
	env := newTestEnv(t, domain.Plan{MaxLinks: -1, MaxClicks: -1})
	w := env.do(http.MethodGet, "/missing1", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRedirect_GoneAfterDeactivation(t *testing.T) {
	env := newTestEnv(t, domain.Plan{MaxLinks: -1, MaxClicks: -1})
	resp := env.createLink(t, "owner-1", `{"original_url":"https://example.com"}`)

	w := env.do(http.MethodPatch, "/api/v1/links/"+resp.ShortID, "owner-1", `{"is_active":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/"+resp.ShortID, "", "")
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestRedirect_GoneWhenExpired(t *testing.T) {
	env := newTestEnv(t, domain.Plan{MaxLinks: -1, MaxClicks: -1})
	resp := env.createLink(t, "owner-1", `{"original_url":"https://example.com","expires_in":1}`)

	// flip the stored expiry into the past rather than sleeping
	past := time.Now().UTC().Add(-time.Minute)
	_, err := env.store.Update(context.Background(), resp.ShortID, "owner-1", domain.LinkPatch{ExpiresAt: &past})
	require.NoError(t, err)
	require.NoError(t, env.cache.Delete(context.Background(), resp.ShortID))

	w := env.do(http.MethodGet, "/"+resp.ShortID, "", "")
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestUpdate_ForbiddenForNonOwner(t *testing.T) {
	env := newTestEnv(t, domain.Plan{MaxLinks: -1, MaxClicks: -1})
	resp := env.createLink(t, "owner-1", `{"original_url":"https://example.com"}`)

	w := env.do(http.MethodPatch, "/api/v1/links/"+resp.ShortID, "owner-2", `{"is_active":false}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreate_AliasConflict(t *testing.T) {
	env := newTestEnv(t, domain.Plan{MaxLinks: -1, MaxClicks: -1})
	env.createLink(t, "owner-1", `{"original_url":"https://example.com","custom_alias":"promo"}`)

	w := env.do(http.MethodPost, "/api/v1/links", "owner-2", `{"original_url":"https://other.com","custom_alias":"promo"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreate_QuotaExceeded(t *testing.T) {
	env := newTestEnv(t, domain.Plan{MaxLinks: 1, MaxClicks: -1})
	env.createLink(t, "owner-1", `{"original_url":"https://example.com"}`)

	w := env.do(http.MethodPost, "/api/v1/links", "owner-1", `{"original_url":"https://example.com"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "quota_exceeded")
}

func TestDeleteLink(t *testing.T) {
	env := newTestEnv(t, domain.Plan{MaxLinks: -1, MaxClicks: -1})
	resp := env.createLink(t, "owner-1", `{"original_url":"https://example.com"}`)

	w := env.do(http.MethodDelete, "/api/v1/links/"+resp.ShortID, "owner-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/"+resp.ShortID, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBreakdown_InvalidDimension(t *testing.T) {
	env := newTestEnv(t, domain.Plan{MaxLinks: -1, MaxClicks: -1})
	w := env.do(http.MethodGet, "/api/v1/analytics/breakdown?dimension=referrer", "owner-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlatformStats_AdminOnly(t *testing.T) {
	env := newTestEnv(t, domain.Plan{MaxLinks: -1, MaxClicks: -1})

	w := env.do(http.MethodGet, "/api/v1/admin/stats", "owner-1", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	req.Header.Set(AdminRoleHeader, "true")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLinkStats(t *testing.T) {
	env := newTestEnv(t, domain.Plan{MaxLinks: -1, MaxClicks: -1})
	resp := env.createLink(t, "owner-1", `{"original_url":"https://example.com"}`)

	w := env.do(http.MethodGet, "/api/v1/links/"+resp.ShortID+"/stats", "owner-1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var stats domain.LinkStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, resp.ShortID, stats.ShortID)
	assert.Equal(t, int64(0), stats.ClickCount)
}
