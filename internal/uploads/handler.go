package uploads

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"factcheck-backend/internal/shared/server/middleware"
	"factcheck-backend/internal/shared/server/respond"
	"factcheck-backend/internal/shared/storage/object"
	s3store "factcheck-backend/internal/shared/storage/object/s3"
	"factcheck-backend/internal/shared/telemetry"
	"factcheck-backend/internal/shared/util"
)

const (
	maxUploadBytes = 10 << 20
	presignExpires = 15 * time.Minute
)

// Presigner issues direct-to-bucket upload URLs. Only the S3 store provides one.
type Presigner interface {
	PresignPut(ctx context.Context, userID, fileName, contentType string, ttl time.Duration) (s3store.PresignedPut, error)
}

// Handler stores screenshots ahead of an analysis request. The returned
// imageKey is what clients pass to /analyze or /analyses.
type Handler struct {
	Store     object.ObjectStore
	Presigner Presigner
}

// NewHandler constructs a Handler. presigner may be nil when uploads go to
// local disk.
func NewHandler(store object.ObjectStore, presigner Presigner) *Handler {
	return &Handler{Store: store, Presigner: presigner}
}

// RegisterRoutes attaches upload routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads", h.upload)
	rg.POST("/uploads/presign", h.presign)
}

type uploadResponse struct {
	ImageKey  string `json:"imageKey"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

func (h *Handler) upload(c *gin.Context) {
	if h.Store == nil {
		respond.Error(c, http.StatusServiceUnavailable, "configuration_error", "uploads not configured", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes+(1<<20))

	fh, err := c.FormFile("image")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "image file is required", nil)
		return
	}
	if fh.Size > maxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "image must be 10MB or smaller", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read image", nil)
		return
	}
	defer f.Close()

	var sniff [512]byte
	n, _ := io.ReadFull(f, sniff[:])
	if n == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "image is empty", nil)
		return
	}
	if mimeType, ok := util.DetectImageType(sniff[:n], fh.Filename); !ok {
		respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "image must be JPEG, PNG, WebP or HEIC", gin.H{"detected": mimeType})
		return
	}

	body := io.MultiReader(bytes.NewReader(sniff[:n]), f)
	key, size, mimeType, err := h.Store.Save(c.Request.Context(), userID, fh.Filename, body)
	if err != nil {
		telemetry.Error("uploads.save.failed", map[string]any{
			"err":        err.Error(),
			"request_id": middleware.RequestIDFromContext(c),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store image", nil)
		return
	}

	telemetry.Info("uploads.saved", map[string]any{
		"size_bytes": size,
		"mime_type":  mimeType,
		"request_id": middleware.RequestIDFromContext(c),
	})
	respond.JSON(c, http.StatusCreated, uploadResponse{ImageKey: key, MimeType: mimeType, SizeBytes: size})
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type presignResponse struct {
	s3store.PresignedPut
	ExpiresInSeconds int64 `json:"expiresInSeconds"`
}

func (h *Handler) presign(c *gin.Context) {
	if h.Presigner == nil {
		respond.Error(c, http.StatusServiceUnavailable, "configuration_error", "presigned uploads need UPLOADS_S3_BUCKET", nil)
		return
	}

	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.ToLower(strings.TrimSpace(req.ContentType))

	if req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileName is required", nil)
		return
	}
	if _, ok := util.ImageTypes[req.ContentType]; !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "contentType is not allowed", nil)
		return
	}
	if req.SizeBytes <= 0 || req.SizeBytes > maxUploadBytes {
		respond.Error(c, http.StatusBadRequest, "validation_error", "sizeBytes exceeds limit", nil)
		return
	}
	if _, err := util.SanitizeFileName(req.FileName); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid fileName", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	out, err := h.Presigner.PresignPut(c.Request.Context(), userID, req.FileName, req.ContentType, presignExpires)
	if err != nil {
		telemetry.Error("uploads.presign.failed", map[string]any{
			"err":         err.Error(),
			"contentType": req.ContentType,
			"sizeBytes":   req.SizeBytes,
			"request_id":  middleware.RequestIDFromContext(c),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		return
	}

	respond.JSON(c, http.StatusOK, presignResponse{
		PresignedPut:     out,
		ExpiresInSeconds: int64(presignExpires.Seconds()),
	})
}
