package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/parthsharma2/linksight/internal/analytics"
	"github.com/parthsharma2/linksight/internal/domain"
	"github.com/parthsharma2/linksight/internal/service"
	"go.uber.org/zap"
)

// OwnerIDHeader carries the already-authenticated owner identity, set by the
// auth layer in front of this service. This subsystem authorizes record-level
// ownership but never authenticates.
const OwnerIDHeader = "X-Owner-ID"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type LinkHandler struct {
	linkService *service.LinkService
	resolver    *service.Resolver
	aggregator  *analytics.Aggregator
	logger      *zap.Logger
}

func NewLinkHandler(
	linkService *service.LinkService,
	resolver *service.Resolver,
	aggregator *analytics.Aggregator,
	logger *zap.Logger,
) *LinkHandler {
	return &LinkHandler{
		linkService: linkService,
		resolver:    resolver,
		aggregator:  aggregator,
		logger:      logger,
	}
}

func (h *LinkHandler) ownerID(c *gin.Context) (string, bool) {
	owner := c.GetHeader(OwnerIDHeader)
	if owner == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthenticated",
			Message: "Missing owner identity",
		})
		return "", false
	}
	return owner, true
}

func (h *LinkHandler) CreateLink(c *gin.Context) {
	owner, ok := h.ownerID(c)
	if !ok {
		return
	}

	var req domain.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	resp, err := h.linkService.Create(c.Request.Context(), owner, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *LinkHandler) Redirect(c *gin.Context) {
	shortID := c.Param("shortID")

	dest, err := h.resolver.Resolve(c.Request.Context(), shortID, service.Hit{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
		Referrer:  c.Request.Referer(),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Redirect(http.StatusFound, dest)
}

func (h *LinkHandler) UpdateLink(c *gin.Context) {
	owner, ok := h.ownerID(c)
	if !ok {
		return
	}

	var req domain.UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	link, err := h.linkService.Update(c.Request.Context(), owner, c.Param("shortID"), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

func (h *LinkHandler) DeleteLink(c *gin.Context) {
	owner, ok := h.ownerID(c)
	if !ok {
		return
	}

	if err := h.linkService.Delete(c.Request.Context(), owner, c.Param("shortID")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LinkHandler) ListLinks(c *gin.Context) {
	owner, ok := h.ownerID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	links, total, err := h.linkService.List(c.Request.Context(), owner, page, pageSize)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"links": links,
		"total": total,
		"page":  page,
	})
}

func (h *LinkHandler) LinkStats(c *gin.Context) {
	owner, ok := h.ownerID(c)
	if !ok {
		return
	}

	link, err := h.linkService.GetOwned(c.Request.Context(), owner, c.Param("shortID"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	stats, err := h.aggregator.LinkStats(c.Request.Context(), link)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *LinkHandler) Usage(c *gin.Context) {
	owner, ok := h.ownerID(c)
	if !ok {
		return
	}

	usage, err := h.linkService.Usage(c.Request.Context(), owner)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (h *LinkHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// handleError maps domain outcomes to transport responses. NotFound is a 404;
// expired and inactive links are 410 Gone; ownership violations return a
// uniform 403 body that does not leak whether the record exists.
func (h *LinkHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Link not found",
		})
	case errors.Is(err, domain.ErrLinkExpired):
		c.JSON(http.StatusGone, ErrorResponse{
			Error:   "expired",
			Message: "This link is no longer available",
		})
	case errors.Is(err, domain.ErrLinkInactive):
		c.JSON(http.StatusGone, ErrorResponse{
			Error:   "inactive",
			Message: "This link is no longer available",
		})
	case errors.Is(err, domain.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_url",
			Message: "Invalid destination URL",
		})
	case errors.Is(err, domain.ErrInvalidAlias):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_alias",
			Message: "Alias must be 3-50 characters of letters, digits, hyphen or underscore",
		})
	case errors.Is(err, domain.ErrAliasTaken):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "alias_taken",
			Message: "This alias is already in use",
		})
	case errors.Is(err, domain.ErrAllocationExhausted):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "allocation_exhausted",
			Message: "Could not allocate a short code, please retry",
		})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "You do not have access to this link",
		})
	case errors.Is(err, domain.ErrQuotaExceeded):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "quota_exceeded",
			Message: "Plan limit reached, upgrade your plan to create more links",
		})
	default:
		h.logger.Error("unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}
