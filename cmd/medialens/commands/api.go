package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/medialens/medialens/logging/logger"
	"github.com/medialens/medialens/pipeline/handler"
	"github.com/medialens/medialens/pipeline/ingest"
	"github.com/medialens/medialens/pipeline/ledger"
)

// NewAPICommand creates the command running the HTTP ingest and query API.
func NewAPICommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "api",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := bootstrap(configFile)
			if err != nil {
				return err
			}
			defer cleanup()

			return runAPI(e)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "config file path")
	return cmd
}

func runAPI(e *env) error {
	if e.config.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	ledgerSvc := ledger.NewService(e.data.JobRepo, e.logger)
	extractor := ingest.NewFFmpegExtractor(e.config.Pipeline.FFmpegPath, e.config.Pipeline.FFprobePath, e.logger)
	gateway := ingest.NewGateway(e.table, e.store, ledgerSvc, e.data.Queue, extractor, e.logger)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(e.logger))
	handler.New(gateway, ledgerSvc, e.store, e.logger).RegisterRoutes(engine)

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		e.logger.Info(context.Background(), "Starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error(context.Background(), "Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	e.logger.Info(context.Background(), "Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		e.logger.Error(ctx, "Server forced to shutdown", "error", err)
		return err
	}

	e.logger.Info(context.Background(), "Server exited")
	return nil
}

// requestLogger tags each request with an id and logs it after it completes.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		ctx := logger.WithRequestID(c.Request.Context(), uuid.New().String())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		log.Info(c.Request.Context(), "HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"ip", c.ClientIP(),
		)
	}
}
