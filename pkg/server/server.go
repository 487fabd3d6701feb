package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/duynguyendang/cyclopath/pkg/extract"
	"github.com/duynguyendang/cyclopath/pkg/learnpath"
	"github.com/duynguyendang/cyclopath/pkg/service"
)

const requestIDHeader = "X-Request-ID"

// PathGenerator produces a learning path for one request.
type PathGenerator interface {
	Generate(ctx context.Context, req extract.Request) ([]learnpath.Node, error)
}

// Options configures the server.
type Options struct {
	// MaxDocumentBytes caps the uploaded document size.
	MaxDocumentBytes int64
	Logger           *slog.Logger
}

// Server holds the state for the REST API server.
type Server struct {
	paths            PathGenerator
	maxDocumentBytes int64
	router           *gin.Engine
	logger           *slog.Logger
}

// NewServer creates a new Server instance.
func NewServer(paths PathGenerator, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxDocumentBytes <= 0 {
		opts.MaxDocumentBytes = 20 << 20
	}

	r := gin.New()
	s := &Server{
		paths:            paths,
		maxDocumentBytes: opts.MaxDocumentBytes,
		router:           r,
		logger:           opts.Logger.With("component", "http"),
	}
	r.Use(gin.Recovery(), s.requestContext(), cors.Default())
	s.setupRoutes()
	return s
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the server on addr and shuts it down gracefully when ctx ends.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api")
	api.POST("/generate-path", s.handleGeneratePath)
}

// Health check
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "Cyclopath backend is live and running"})
}

// requestContext assigns a request id and logs each request.
func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(service.WithRequestID(c.Request.Context(), id))

		start := time.Now()
		c.Next()

		s.logger.Info("request",
			"request_id", id,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
