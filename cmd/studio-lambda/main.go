// Package main provides the Lambda entry point for the brand studio API.
//
// Configuration comes from STUDIO_* environment variables (see
// internal/config). The Gemini API key is read from GEMINI_API_KEY or the
// SSM parameter named by STUDIO_SSM_API_KEY_PARAM at cold start.
//
// Security:
//   - Origin-verify middleware blocks direct API Gateway access (CloudFront-only)
//   - Every endpoint except /api/health requires a bearer token
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-studio/internal/api"
	"github.com/fpang/brand-studio/internal/auth"
	"github.com/fpang/brand-studio/internal/config"
	"github.com/fpang/brand-studio/internal/lambdaboot"
	"github.com/fpang/brand-studio/internal/logging"
)

var server *api.Server

func init() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("info", "json")
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	rt, err := lambdaboot.Build(context.Background(), cfg, lambdaboot.Options{
		Name:         "studio-lambda",
		WithProvider: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	if cfg.OriginVerifySecret == "" {
		log.Warn().Msg("STUDIO_ORIGIN_VERIFY_SECRET not set, origin verification disabled")
	}

	server = api.New(lambdaboot.NewService(rt, cfg), auth.NewResolver(rt.Store), api.Options{
		OriginVerifySecret: cfg.OriginVerifySecret,
		Version:            commitHash,
		BuildTime:          buildTime,
	})
	rt.Startup.CommitHash(commitHash).BuildTime(buildTime).Log()
}

func main() {
	adapter := httpadapter.NewV2(server.Handler())
	lambda.Start(adapter.ProxyWithContext)
}
