package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yangwenmai/savanna/internal/gallery"
	"github.com/yangwenmai/savanna/internal/model"
	"github.com/yangwenmai/savanna/internal/store"
	"github.com/yangwenmai/savanna/internal/wallet"
)

// maxRequestBody is the maximum allowed request body size (1 MB).
const maxRequestBody int64 = 1 << 20

// Wallet is the session manager behind the /api/wallet routes.
type Wallet interface {
	Connect(ctx context.Context) (*wallet.Session, error)
	Restore(ctx context.Context, address string) (*wallet.Session, error)
	Disconnect(ctx context.Context) error
	Current() (*wallet.Session, error)
}

// Submitter sends a new submission.
type Submitter interface {
	Submit(ctx context.Context, assetURL, virtue string) (*model.Submission, error)
}

// Submissions looks up tracked submissions by correlation token.
type Submissions interface {
	Get(token string) (store.Entry, error)
}

// Gallery serves the submission gallery.
type Gallery interface {
	Page(ctx context.Context, page, limit int) (*gallery.Page, error)
	Filter(ctx context.Context, virtue string) ([]model.Submission, error)
}

// Pinger checks a backing dependency for /healthz. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the services the API is built on.
type Deps struct {
	Wallet      Wallet
	Submitter   Submitter
	Submissions Submissions
	Gallery     Gallery
	Health      Pinger
	CORSOrigin  string
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	deps   Deps
	router *gin.Engine
}

// New creates a new API server.
func New(deps Deps) *Server {
	if deps.CORSOrigin == "" {
		deps.CORSOrigin = "*"
	}
	srv := &Server{deps: deps, router: gin.New()}
	srv.router.Use(RequestID(), Logging(), gin.Recovery(), CORS(deps.CORSOrigin), LimitBody(maxRequestBody))
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api")
	api.POST("/wallet/connect", s.handleConnectWallet)
	api.POST("/wallet/restore", s.handleRestoreWallet)
	api.GET("/wallet", s.handleGetWallet)
	api.DELETE("/wallet", s.handleDisconnectWallet)

	api.POST("/submissions", s.handleSubmit)
	api.GET("/submissions/:token", s.handleGetSubmission)

	api.GET("/gallery", s.handleGallery)
}
