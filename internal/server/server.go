// Package server exposes the storage operations over HTTP/JSON.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mcs-go/internal/app"
	"mcs-go/internal/mcs"
)

// Service is the subset of app.App the server calls.
type Service interface {
	TestConnection(ctx context.Context) mcs.ConnectionResult
	MigrateExistingFiles(ctx context.Context) (*mcs.Report, error)
	GenerateFileURL(ctx context.Context, contentHash, fileName string) (string, error)
	UploadRecord(ctx context.Context, id string) (*app.UploadResult, error)
}

var _ Service = (*app.App)(nil)

const shutdownTimeout = 10 * time.Second

// Server routes RPC calls to a Service.
type Server struct {
	svc    Service
	tokens *TokenManager
	logger mcs.Logger
	engine *gin.Engine
}

// New creates a Server. tokens may be nil to disable authentication.
func New(svc Service, tokens *TokenManager, logger mcs.Logger) *Server {
	s := &Server{svc: svc, tokens: tokens, logger: logger}
	s.engine = gin.New()
	s.engine.Use(s.recovery(), s.requestLog())
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api/v1", AuthMiddleware(s.tokens))

	storage := api.Group("/storage", RequireRole(s.tokens, RoleStorageAdmin))
	storage.POST("/test-connection", s.testConnection)
	storage.POST("/migrate", s.migrate)

	api.GET("/files/generate", s.generateFile)
	api.POST("/files/:id/upload", RequireRole(s.tokens, RoleStorageAdmin), s.uploadRecord)
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr, "auth", s.tokens != nil)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serving on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) testConnection(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.TestConnection(c.Request.Context()))
}

func (s *Server) migrate(c *gin.Context) {
	report, err := s.svc.MigrateExistingFiles(c.Request.Context())
	if err != nil {
		status := migrateStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("migration failed", "error", err)
		}
		c.JSON(status, errorBody(err.Error()))
		return
	}
	c.JSON(http.StatusOK, report)
}

// migrateStatus maps a MigrateExistingFiles error to an HTTP status.
func migrateStatus(err error) int {
	switch {
	case errors.Is(err, mcs.ErrNotEnabled), errors.Is(err, mcs.ErrInvalidConfig):
		return http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrMigrationRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) generateFile(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, errorBody("key is required"))
		return
	}

	u, err := s.svc.GenerateFileURL(c.Request.Context(), key, c.Query("file_name"))
	switch {
	case err == nil:
		c.Redirect(http.StatusFound, u)
	case errors.Is(err, mcs.ErrNotFound):
		c.JSON(http.StatusNotFound, errorBody("file not found"))
	case errors.Is(err, mcs.ErrNotEnabled), errors.Is(err, mcs.ErrInvalidConfig):
		c.JSON(http.StatusUnprocessableEntity, errorBody(err.Error()))
	default:
		s.logger.Error("generating file url", "key", key, "error", err)
		c.JSON(http.StatusBadGateway, errorBody("could not generate file url"))
	}
}

func (s *Server) uploadRecord(c *gin.Context) {
	id := c.Param("id")
	res, err := s.svc.UploadRecord(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, mcs.ErrNotFound):
		c.JSON(http.StatusNotFound, errorBody("file record not found"))
	case errors.Is(err, mcs.ErrNotEnabled), errors.Is(err, mcs.ErrInvalidConfig):
		c.JSON(http.StatusUnprocessableEntity, errorBody(err.Error()))
	default:
		s.logger.Error("uploading file record", "file", id, "error", err)
		c.JSON(http.StatusBadGateway, errorBody(err.Error()))
	}
}

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}
