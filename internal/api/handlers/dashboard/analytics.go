package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edgestats/edgestats/internal/analytics"
	"github.com/edgestats/edgestats/internal/cloudflare"
	"github.com/edgestats/edgestats/internal/ratelimit"
)

// Service is the slice of the analytics layer the handlers consume.
type Service interface {
	FetchAnalytics(ctx context.Context, rangeKey, clientID string) (*cloudflare.Snapshot, error)
	TestConnection(ctx context.Context) (string, error)
}

// Handler serves the dashboard endpoints.
type Handler struct {
	service    Service
	trustProxy func() bool
}

// NewHandler builds the handler set. trustProxy gates X-Forwarded-For
// client identification and may change on config reload.
func NewHandler(service Service, trustProxy func() bool) *Handler {
	return &Handler{service: service, trustProxy: trustProxy}
}

// GetAnalytics handles GET /v1/analytics?range=24|7|30.
func (h *Handler) GetAnalytics(c *gin.Context) {
	rangeKey := c.DefaultQuery("range", string(cloudflare.Range24h))
	clientID := ratelimit.ClientID(c.Request, h.trustProxy())

	snapshot, err := h.service.FetchAnalytics(c.Request.Context(), rangeKey, clientID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, snapshot)
}

// TestConnection handles POST /v1/connection/test.
func (h *Handler) TestConnection(c *gin.Context) {
	email, err := h.service.TestConnection(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{
		"status": "connected",
		"email":  email,
	})
}

func (h *Handler) respondServiceError(c *gin.Context, err error) {
	var tagged *analytics.Error
	if !errors.As(err, &tagged) {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "unexpected failure")
		return
	}
	if tagged.Code == analytics.CodeRateLimited && tagged.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(tagged.RetryAfter.Seconds())))
	}
	respondError(c, statusForCode(tagged.Code), string(tagged.Code), tagged.Message)
}
