package analyses

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"factcheck-backend/internal/shared/server/middleware"
	"factcheck-backend/internal/shared/server/respond"
	"factcheck-backend/internal/shared/util"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc   *Service
	polls *pollLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, polls: newPollLimiter(pollLimitWindow, nil)}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.analyze)
	rg.POST("/analyses", h.submit)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
}

type imageRequest struct {
	ImageURL string `json:"imageUrl"`
	ImageKey string `json:"imageKey"`
}

func (h *Handler) analyze(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}
	result, err := h.Svc.Analyze(c.Request.Context(), req)
	if err != nil {
		writeJobError(c, err)
		return
	}
	c.Set("analysisId", result.JobID)
	respond.JSON(c, http.StatusOK, result)
}

func (h *Handler) submit(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}
	analysis, err := h.Svc.Submit(c.Request.Context(), req)
	if err != nil {
		writeJobError(c, err)
		return
	}
	c.Set("analysisId", analysis.ID)
	c.Set("statusTransition", "->"+analysis.Status)
	respond.Accepted(c, gin.H{
		"jobId":  analysis.ID,
		"status": analysis.Status,
	})
}

// bindRequest accepts a multipart "image" file or a JSON body naming an
// uploaded key or a public URL.
func (h *Handler) bindRequest(c *gin.Context) (Request, bool) {
	req := Request{UserID: middleware.UserIDFromContext(c)}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	c.Request = c.Request.WithContext(ctx)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("image")
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "image file is required", []map[string]string{
				{"field": "image", "issue": "required"},
			})
			return Request{}, false
		}
		if fh.Size > maxImageBytes {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "image must be 10MB or smaller", nil)
			return Request{}, false
		}
		f, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read image", nil)
			return Request{}, false
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
		if err != nil || len(data) == 0 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read image", nil)
			return Request{}, false
		}
		mimeType, ok := util.DetectImageType(data, fh.Filename)
		if !ok {
			respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "image must be JPEG, PNG, WebP or HEIC", gin.H{"detected": mimeType})
			return Request{}, false
		}
		req.Image = data
		req.MIME = mimeType
		req.FileName = fh.Filename
		return req, true
	}

	var body imageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return Request{}, false
	}
	req.ImageURL = strings.TrimSpace(body.ImageURL)
	req.ImageKey = strings.TrimSpace(body.ImageKey)
	if req.ImageURL == "" && req.ImageKey == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", ErrNoImage.Error(), []map[string]string{
			{"field": "imageUrl", "issue": "required"},
		})
		return Request{}, false
	}
	if req.ImageURL != "" && !strings.HasPrefix(req.ImageURL, "https://") && !strings.HasPrefix(req.ImageURL, "http://") {
		respond.Error(c, http.StatusBadRequest, "validation_error", "imageUrl must be an http(s) URL", nil)
		return Request{}, false
	}
	return req, true
}

func (h *Handler) getAnalysis(c *gin.Context) {
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}
	c.Set("analysisId", analysisID)
	userID := middleware.UserIDFromContext(c)
	if !h.polls.Allow(userID, analysisID) {
		c.Header("Retry-After", strconv.Itoa(h.polls.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "polling too frequently", nil)
		return
	}

	analysis, err := h.Svc.Get(c.Request.Context(), analysisID)
	if err != nil || (analysis.UserID != "" && analysis.UserID != userID) {
		switch {
		case err == nil, errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	resp := gin.H{
		"jobId":     analysis.ID,
		"status":    analysis.Status,
		"createdAt": analysis.CreatedAt,
	}
	if analysis.Status == StatusCompleted && analysis.Result != nil {
		resp["result"] = analysis.Result
	}
	if analysis.Status == StatusFailed {
		resp["error"] = gin.H{
			"code":    analysis.ErrorCode,
			"message": analysis.ErrorMessage,
		}
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	if isGuest, ok := c.Get("isGuest"); ok {
		if guest, ok2 := isGuest.(bool); ok2 && guest {
			respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to view history", nil)
			return
		}
	}

	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	analyses, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]gin.H, 0, len(analyses))
	for _, a := range analyses {
		item := gin.H{
			"jobId":     a.ID,
			"status":    a.Status,
			"createdAt": a.CreatedAt,
		}
		if a.Status == StatusCompleted && a.Result != nil {
			item["aggregateTrustScore"] = a.Result.AggregateTrustScore
			item["trustLabel"] = a.Result.TrustLabel
			item["summary"] = a.Result.Summary
		}
		resp = append(resp, item)
	}

	respond.JSON(c, http.StatusOK, resp)
}

// writeJobError maps the job failure taxonomy onto HTTP statuses. Timeouts
// and configuration problems carry a remediation hint.
func writeJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNoImage):
		respond.Error(c, http.StatusBadRequest, "validation_error", ErrNoImage.Error(), nil)
	case errors.Is(err, ErrImageNotFound):
		respond.ErrorWithHint(c, http.StatusBadRequest, "image_not_found", ErrImageNotFound.Error(), hintUpload)
	case errors.Is(err, ErrJobTimeout):
		respond.ErrorWithHint(c, http.StatusGatewayTimeout, "job_timeout", "analysis did not finish in time", hintTimeout)
	case errors.Is(err, ErrOCRFailed):
		respond.ErrorWithHint(c, http.StatusUnprocessableEntity, "ocr_failed", sanitizeError(err), hintOCR)
	case errors.Is(err, ErrNotConfigured):
		respond.ErrorWithHint(c, http.StatusServiceUnavailable, "configuration_error", sanitizeError(err), hintConfigure)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "analysis failed", nil)
	}
}
