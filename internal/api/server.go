// Package api serves the task service over HTTP with gin.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskyard/internal/auth"
	"github.com/zulandar/taskyard/internal/task"
)

// Authenticator turns a bearer credential into a caller.
type Authenticator interface {
	ResolveCaller(ctx context.Context, credential string) (auth.Caller, error)
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Service        *task.Service
	Auth           Authenticator
	Log            logrus.FieldLogger
	Port           int
	RequestTimeout time.Duration
	Out            io.Writer
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(svc *task.Service, authn Authenticator, log logrus.FieldLogger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	binding.EnableDecoderDisallowUnknownFields = true
	router := gin.New()
	router.Use(requestLogger(log), gin.Recovery())
	registerRoutes(router, svc, authn)
	return router
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Service == nil {
		return fmt.Errorf("api: service is required")
	}
	if opts.Auth == nil {
		return fmt.Errorf("api: authenticator is required")
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      NewRouter(opts.Service, opts.Auth, opts.Log),
		ReadTimeout:  opts.RequestTimeout,
		WriteTimeout: opts.RequestTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
