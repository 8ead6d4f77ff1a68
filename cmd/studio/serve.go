package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/brand-studio/internal/api"
	"github.com/fpang/brand-studio/internal/auth"
	"github.com/fpang/brand-studio/internal/generation"
	"github.com/fpang/brand-studio/internal/lambdaboot"
)

var (
	listenFlag       string
	skipKeyCheckFlag bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API locally",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenFlag, "listen", "", "Listen address (default STUDIO_LISTEN_ADDR)")
	serveCmd.Flags().BoolVar(&skipKeyCheckFlag, "skip-key-check", false, "Skip the Gemini API key check at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := buildRuntime(ctx, cfg, "studio-serve", true)
	defer rt.Close()

	if !skipKeyCheckFlag {
		if err := auth.ValidateAPIKey(ctx, rt.Text, cfg.TextModel); err != nil {
			handleValidationError(err)
		}
	}

	addr := cfg.ListenAddr
	if listenFlag != "" {
		addr = listenFlag
	}
	server := api.New(lambdaboot.NewService(rt, cfg), auth.NewResolver(rt.Store), api.Options{
		OriginVerifySecret: cfg.OriginVerifySecret,
		Compress:           true,
		Version:            "local",
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	rt.Startup.Config("listen", addr).Log()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", addr).Msg("Listening")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}
}

// handleValidationError exits with a message for the kind of key failure.
func handleValidationError(err error) {
	var validationErr *auth.ValidationError
	if !errors.As(err, &validationErr) {
		log.Fatal().Err(err).Msg("Unexpected error during API key validation")
	}
	switch validationErr.Kind {
	case generation.KindRateLimited, generation.KindQuotaExhausted:
		log.Fatal().Err(err).Msg("API quota exceeded. Please try again later or check your usage limits")
	case generation.KindAssetProcessing:
		log.Fatal().Err(err).Msg("Invalid API key. Please check your API key and try again")
	default:
		log.Fatal().Err(err).Msg("API key validation failed. Check the key and your network connection")
	}
}
