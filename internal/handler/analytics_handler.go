package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/parthsharma2/linksight/internal/analytics"
	"github.com/parthsharma2/linksight/internal/domain"
	"go.uber.org/zap"
)

// AdminRoleHeader marks requests that passed the upstream admin check.
const AdminRoleHeader = "X-Admin"

type AnalyticsHandler struct {
	aggregator *analytics.Aggregator
	logger     *zap.Logger
	links      *LinkHandler
}

func NewAnalyticsHandler(aggregator *analytics.Aggregator, links *LinkHandler, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		aggregator: aggregator,
		logger:     logger,
		links:      links,
	}
}

// DailySeries returns per-day click counts for the owner, optionally narrowed
// to a single link via ?link=. Missing days are not zero-filled; the
// dashboard densifies at render time.
func (h *AnalyticsHandler) DailySeries(c *gin.Context) {
	owner, ok := h.links.ownerID(c)
	if !ok {
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	scope := domain.ClickScope{
		OwnerID: owner,
		ShortID: c.Query("link"),
	}

	series, err := h.aggregator.DailySeries(c.Request.Context(), scope, days)
	if err != nil {
		h.links.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": series})
}

// Breakdown groups the owner's clicks by ?dimension= (device, browser or
// country).
func (h *AnalyticsHandler) Breakdown(c *gin.Context) {
	owner, ok := h.links.ownerID(c)
	if !ok {
		return
	}

	dimension := domain.ClickDimension(c.DefaultQuery("dimension", "device"))
	switch dimension {
	case domain.DimensionDevice, domain.DimensionBrowser, domain.DimensionCountry:
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_dimension",
			Message: "dimension must be one of device, browser, country",
		})
		return
	}

	scope := domain.ClickScope{
		OwnerID: owner,
		ShortID: c.Query("link"),
	}

	buckets, err := h.aggregator.GroupBy(c.Request.Context(), dimension, scope)
	if err != nil {
		h.links.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"breakdown": buckets})
}

// PlatformStats is the admin-only, platform-wide summary.
func (h *AnalyticsHandler) PlatformStats(c *gin.Context) {
	if c.GetHeader(AdminRoleHeader) != "true" {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "Admin access required",
		})
		return
	}

	stats, err := h.aggregator.PlatformStats(c.Request.Context())
	if err != nil {
		h.links.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
