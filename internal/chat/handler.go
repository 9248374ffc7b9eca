package chat

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"factcheck-backend/internal/llm"
	"factcheck-backend/internal/shared/server/middleware"
	"factcheck-backend/internal/shared/server/respond"
)

// Handler exposes the chat endpoint.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chat", h.chat)
}

func (h *Handler) chat(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	reply, err := h.Svc.Reply(c.Request.Context(), middleware.UserIDFromContext(c), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrJobNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrJobNotFinished):
			respond.Error(c, http.StatusConflict, "not_ready", "analysis has not completed yet", nil)
		case errors.Is(err, ErrNotConfigured):
			respond.ErrorWithHint(c, http.StatusServiceUnavailable, "configuration_error", "chat model is not configured", "set OPENAI_API_KEY or CHAT_MODEL and restart the service")
		case errors.Is(err, llm.ErrRateLimited):
			respond.Error(c, http.StatusTooManyRequests, "rate_limited", "chat model is busy, try again shortly", nil)
		case errors.Is(err, ErrUnavailable):
			respond.Error(c, http.StatusBadGateway, "model_unavailable", "chat model did not answer", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "chat failed", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"reply": reply})
}
