package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/phillip/event-ticketing-go/logger"
	"github.com/phillip/event-ticketing-go/middleware"
	"github.com/phillip/event-ticketing-go/routes"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API. On start-up a recovery sweep finalizes funded pools
and issues any tickets a previous run left behind.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		if v, _ := cmd.Flags().GetString("port"); v != "" {
			cfg.Port = v
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		log := logger.WithComponent("server")
		ctx := context.Background()

		if err := openLedger(ctx, cfg); err != nil {
			return err
		}
		defer cfg.Ledger.Close()

		if err := wireGroupPay(cfg); err != nil {
			return err
		}

		if _, err := cfg.GroupPay.Recover(ctx); err != nil {
			log.Error().Err(err).Msg("Start-up recovery sweep failed")
		}

		if cfg.LogLevel != string(logger.DebugLevel) {
			gin.SetMode(gin.ReleaseMode)
		}
		r := gin.New()
		r.Use(gin.Recovery())
		r.Use(middleware.RequestLogger())
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-None-Match"},
			ExposeHeaders:    []string{"ETag", "Last-Modified"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
		routes.SetupRoutes(r, cfg)

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", srv.Addr).Str("store", cfg.Store).Msg("API listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("Shutting down")
		case err := <-errCh:
			return fmt.Errorf("API server error: %v", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("port", "", "HTTP port (overrides PORT)")
}
