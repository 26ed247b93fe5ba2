package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/tile_extractor/internal/server"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for tile extraction",
		Long: `Start an HTTP server that cuts uploaded tilesets into tiles.

POST a tileset image to /api/v1/extract?tile_width=W&tile_height=H and the
emitted tiles come back as a zip archive.

Examples:
  # Start server on default port 8080
  tile_extractor serve

  # Start server with custom bind address
  tile_extractor serve --bind 0.0.0.0 --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, v)
		},
	}

	// Server configuration
	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
	serveCmd.Flags().Int64("max-upload", server.DefaultMaxUpload, "largest accepted tileset in bytes")
	serveCmd.Flags().Int64("max-pixels", server.DefaultMaxPixels, "largest accepted tileset area in pixels")

	// Bind flags to viper
	v.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	v.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	v.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
	v.BindPFlag("server.max-upload", serveCmd.Flags().Lookup("max-upload"))
	v.BindPFlag("server.max-pixels", serveCmd.Flags().Lookup("max-pixels"))

	return serveCmd
}

func runServe(cmd *cobra.Command, v *viper.Viper) error {
	addr := fmt.Sprintf("%s:%d", v.GetString("server.bind"), v.GetInt("server.port"))
	timeout := v.GetDuration("server.timeout")

	logger := newLogger(cmd.ErrOrStderr(), v).Named("server")

	apiServer := server.NewServer(version, logger, server.Config{
		MaxUpload: v.GetInt64("server.max-upload"),
		MaxPixels: v.GetInt64("server.max-pixels"),
		Workers:   v.GetInt("workers"),
	})

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      apiServer.Handler(timeout),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()

		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "error", err)
		}
	}()

	logger.Info("starting server", "addr", addr)
	logger.Info("endpoints", "health", "http://"+addr+"/api/v1/health", "extract", "http://"+addr+"/api/v1/extract")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %v", err)
	}

	return nil
}
