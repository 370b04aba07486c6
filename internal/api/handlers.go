package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yangwenmai/savanna/internal/gallery"
	"github.com/yangwenmai/savanna/internal/model"
)

// ---------------------------------------------------------------------------
// GET /healthz
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(c *gin.Context) {
	if s.deps.Health != nil {
		if err := s.deps.Health.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ---------------------------------------------------------------------------
// /api/wallet
// ---------------------------------------------------------------------------

func (s *Server) handleConnectWallet(c *gin.Context) {
	sess, err := s.deps.Wallet.Connect(c.Request.Context())
	if err != nil {
		mapDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address":          sess.Address,
		"addressFormatted": model.FormatAddress(sess.Address),
		"permissions":      sess.Permissions,
		"connectedAt":      sess.ConnectedAt,
	})
}

type restoreRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleRestoreWallet(c *gin.Context) {
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	sess, err := s.deps.Wallet.Restore(c.Request.Context(), strings.TrimSpace(req.Address))
	if err != nil {
		mapDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address":          sess.Address,
		"addressFormatted": model.FormatAddress(sess.Address),
		"permissions":      sess.Permissions,
		"connectedAt":      sess.ConnectedAt,
	})
}

func (s *Server) handleGetWallet(c *gin.Context) {
	sess, err := s.deps.Wallet.Current()
	if errors.Is(err, model.ErrWalletNotConnected) {
		c.JSON(http.StatusOK, gin.H{"connected": false})
		return
	}
	if err != nil {
		mapDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"connected":        true,
		"address":          sess.Address,
		"addressFormatted": model.FormatAddress(sess.Address),
		"permissions":      sess.Permissions,
	})
}

func (s *Server) handleDisconnectWallet(c *gin.Context) {
	if err := s.deps.Wallet.Disconnect(c.Request.Context()); err != nil {
		mapDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// POST /api/submissions
// ---------------------------------------------------------------------------

type submitRequest struct {
	AssetURL string `json:"asset_url"`
	Virtue   string `json:"virtue"`
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	sub, err := s.deps.Submitter.Submit(c.Request.Context(), req.AssetURL, req.Virtue)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"token":    sub.CorrelationToken,
		"status":   model.StatusPending,
		"assetId":  sub.AssetID,
		"feedback": model.Feedback{Level: model.LevelInfo, Message: "Submitting...", TxURL: model.GatewayURL(sub.CorrelationToken)},
	})
}

// ---------------------------------------------------------------------------
// GET /api/submissions/:token
// ---------------------------------------------------------------------------

func (s *Server) handleGetSubmission(c *gin.Context) {
	entry, err := s.deps.Submissions.Get(c.Param("token"))
	if err != nil {
		mapDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      entry.Submission.CorrelationToken,
		"status":     entry.Status,
		"feedback":   entry.Feedback,
		"submission": entry.Submission,
		"updatedAt":  entry.UpdatedAt,
	})
}

// ---------------------------------------------------------------------------
// GET /api/gallery
// ---------------------------------------------------------------------------

func (s *Server) handleGallery(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := gallery.ClampLimit(queryInt(c, "limit", gallery.DefaultLimit))
	virtue := strings.TrimSpace(c.Query("virtue"))

	if virtue == "" || strings.EqualFold(virtue, gallery.AllVirtues) {
		p, err := s.deps.Gallery.Page(c.Request.Context(), page, limit)
		if err != nil {
			mapDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
		return
	}

	subs, err := s.deps.Gallery.Filter(c.Request.Context(), virtue)
	if err != nil {
		mapDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginate(subs, page, limit))
}

func paginate(subs []model.Submission, page, limit int) *gallery.Page {
	out := &gallery.Page{Page: page, Limit: limit, Total: len(subs), Source: "filter", Items: []model.Submission{}}
	start, end := gallery.Window(len(subs), page, limit)
	if start == end {
		return out
	}
	out.Items = subs[start:end]
	out.HasMore = end < len(subs)
	return out
}

// queryInt reads a positive integer query parameter, or returns fallback.
func queryInt(c *gin.Context, key string, fallback int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
