package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"outreach_backend/internal/tracking/service"
	"outreach_backend/internal/tracking/transport"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidToken     = "invalid tracking token"
	msgInvalidEmailID   = "invalid email ID"
)

// 1x1 transparent GIF served for every pixel hit, valid token or not.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler handles public tracking hits and authenticated analytics reads.
type Handler struct {
	svc *service.Service
	val *validator.Validator
	log *logger.Logger
}

// New creates a new tracking handler.
func New(svc *service.Service, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{svc: svc, val: val, log: log}
}

// RegisterPublicRoutes mounts the unauthenticated pixel, redirect, and
// webhook endpoints. These are hit by mail clients and providers, never by
// API users.
func (h *Handler) RegisterPublicRoutes(engine *gin.Engine) {
	t := engine.Group("/t")
	t.GET("/open/:token", h.Open)
	t.GET("/click/:token", h.Click)
	t.POST("/reply/:token", h.Reply)
	t.POST("/bounce/:token", h.Bounce)
}

// RegisterRoutes mounts the analytics routes on the given group.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/events", h.ListEvents)
	g.GET("/counts", h.CountByType)
	g.GET("/stats", h.Stats)
	g.GET("/unique-opens", h.UniqueOpens)
}

func requestMeta(c *gin.Context) service.RequestMeta {
	meta := service.RequestMeta{}
	if ip := c.ClientIP(); ip != "" {
		meta.IPAddress = &ip
	}
	if ua := c.Request.UserAgent(); ua != "" {
		meta.UserAgent = &ua
	}
	if ref := c.Request.Referer(); ref != "" {
		meta.Referer = &ref
	}
	return meta
}

// Open records a pixel hit. The pixel is always served so mail clients never
// see a broken image and unknown tokens are indistinguishable from real ones.
// GET /t/open/:token
func (h *Handler) Open(c *gin.Context) {
	token, err := uuid.Parse(c.Param("token"))
	if err == nil {
		if recordErr := h.svc.RecordOpen(c.Request.Context(), token, requestMeta(c)); recordErr != nil {
			h.log.Warn("open event not recorded", "token", token, "error", recordErr)
		}
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/gif", pixelGIF)
}

// Click records a link hit and redirects to the wrapped destination.
// GET /t/click/:token?url=...
func (h *Handler) Click(c *gin.Context) {
	target := c.Query("url")
	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		httpkit.Error(c, http.StatusBadRequest, "invalid redirect url", nil)
		return
	}

	token, err := uuid.Parse(c.Param("token"))
	if err == nil {
		if recordErr := h.svc.RecordClick(c.Request.Context(), token, target, requestMeta(c)); recordErr != nil {
			h.log.Warn("click event not recorded", "token", token, "error", recordErr)
		}
	}
	c.Redirect(http.StatusFound, target)
}

// Reply records an inbound reply webhook.
// POST /t/reply/:token
func (h *Handler) Reply(c *gin.Context) {
	h.webhook(c, h.svc.RecordReply)
}

// Bounce records a delivery failure webhook.
// POST /t/bounce/:token
func (h *Handler) Bounce(c *gin.Context) {
	h.webhook(c, h.svc.RecordBounce)
}

func (h *Handler) webhook(c *gin.Context, record func(ctx context.Context, token uuid.UUID, extraData map[string]any) error) {
	token, err := uuid.Parse(c.Param("token"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidToken, nil)
		return
	}

	var req transport.WebhookRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}

	if err := record(c.Request.Context(), token, req.ExtraData); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

// ListEvents returns the event log of one email, newest first.
// GET /api/v1/tracking/events?emailId=...
func (h *Handler) ListEvents(c *gin.Context) {
	var req transport.ListEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.ListByEmail(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CountByType groups events by type, globally or for one email.
// GET /api/v1/tracking/counts[?emailId=...]
func (h *Handler) CountByType(c *gin.Context) {
	emailID, ok := optionalEmailID(c)
	if !ok {
		return
	}

	result, err := h.svc.CountByType(c.Request.Context(), emailID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Stats derives engagement rates, globally or for one email.
// GET /api/v1/tracking/stats[?emailId=...]
func (h *Handler) Stats(c *gin.Context) {
	emailID, ok := optionalEmailID(c)
	if !ok {
		return
	}

	result, err := h.svc.Stats(c.Request.Context(), emailID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// UniqueOpens counts distinct open origins for one email.
// GET /api/v1/tracking/unique-opens?emailId=...
func (h *Handler) UniqueOpens(c *gin.Context) {
	emailID, err := uuid.Parse(c.Query("emailId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidEmailID, nil)
		return
	}

	count, err := h.svc.UniqueOpens(c.Request.Context(), emailID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"emailId": emailID, "uniqueOpens": count})
}

// optionalEmailID parses the emailId query parameter when present. The
// second return is false when the request was already rejected.
func optionalEmailID(c *gin.Context) (*uuid.UUID, bool) {
	raw := c.Query("emailId")
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidEmailID, nil)
		return nil, false
	}
	return &id, true
}
