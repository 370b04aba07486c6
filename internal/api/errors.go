package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yangwenmai/savanna/internal/model"
	"github.com/yangwenmai/savanna/internal/submission"
)

func mapDomainError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	var se *submission.StepError
	if errors.As(err, &se) {
		info := se.Info(time.Now())
		body = gin.H{"error": info.Message, "failed_step": info.FailedStep, "failed_at": info.FailedAt}
	}

	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, model.ErrInvalidAssetURL),
		errors.Is(err, model.ErrMissingVirtue),
		errors.Is(err, model.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, body)

	case errors.Is(err, model.ErrWalletNotConnected),
		errors.Is(err, model.ErrPermissionDenied),
		errors.Is(err, model.ErrInvalidAddress),
		errors.Is(err, model.ErrSessionMismatch):
		c.JSON(http.StatusUnauthorized, body)

	case errors.Is(err, model.ErrConnectInProgress),
		errors.Is(err, model.ErrAlreadyTerminal):
		c.JSON(http.StatusConflict, body)

	case errors.Is(err, model.ErrSubmissionNotFound):
		c.JSON(http.StatusNotFound, body)

	case errors.Is(err, model.ErrGalleryUnavailable),
		errors.Is(err, model.ErrWalletUnavailable):
		c.JSON(http.StatusServiceUnavailable, body)

	default:
		slog.Error("request failed",
			"path", c.Request.URL.Path,
			"request_id", c.GetString("request_id"),
			"error", err,
		)
		body["error"] = "internal server error"
		c.JSON(http.StatusInternalServerError, body)
	}
}
