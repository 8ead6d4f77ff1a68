// Package lambdaboot builds the service's collaborators from configuration.
//
// Both the Lambda entry point and the CLI's local server compose the same
// pieces: a store, an asset store, a reconciliation publisher and a Gemini
// client. AWS config is loaded only when a configured backend needs it, so
// a fully local setup (SQLite + directory assets) runs without credentials.
package lambdaboot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-studio/internal/assetstore"
	"github.com/fpang/brand-studio/internal/auth"
	"github.com/fpang/brand-studio/internal/chat"
	"github.com/fpang/brand-studio/internal/config"
	"github.com/fpang/brand-studio/internal/generation"
	"github.com/fpang/brand-studio/internal/ledger"
	"github.com/fpang/brand-studio/internal/logging"
	"github.com/fpang/brand-studio/internal/reconcile"
	"github.com/fpang/brand-studio/internal/store"
	"github.com/fpang/brand-studio/internal/studio"
)

// Runtime is everything a request handler needs.
type Runtime struct {
	Store     store.Store
	Assets    assetstore.Store
	Publisher reconcile.Publisher
	Provider  generation.Provider
	Text      chat.TextGenerator
	Startup   *logging.StartupLogger

	closers []func() error
}

// Close releases database handles.
func (r *Runtime) Close() {
	for _, c := range r.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("Close failed")
		}
	}
}

// needsAWS reports whether any configured backend talks to AWS.
func needsAWS(cfg *config.Config, withProvider bool) bool {
	return cfg.Store == config.StoreDynamo ||
		cfg.AssetBucket != "" ||
		cfg.EventBus != "" ||
		(withProvider && os.Getenv("GEMINI_API_KEY") == "")
}

// Options selects which parts Build wires.
type Options struct {
	// Name identifies the entry point in the startup log.
	Name string
	// WithProvider wires the Gemini client; admin commands skip it.
	WithProvider bool
	// LocalKeyFallback allows the GPG credential file when the key is not in
	// the environment or SSM.
	LocalKeyFallback bool
}

// Build composes a Runtime from cfg.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	initStart := time.Now()
	rt := &Runtime{Startup: logging.NewStartupLogger(opts.Name)}

	var awsCfg *aws.Config
	if needsAWS(cfg, opts.WithProvider) {
		c, err := InitAWS(ctx)
		if err != nil {
			if cfg.Store == config.StoreDynamo || cfg.AssetBucket != "" || cfg.EventBus != "" {
				return nil, err
			}
			log.Debug().Err(err).Msg("AWS config unavailable; continuing without SSM")
		} else {
			awsCfg = &c
		}
	}

	st, closeStore, err := InitStore(ctx, cfg, awsCfg, rt.Startup)
	if err != nil {
		return nil, err
	}
	rt.Store = st
	if closeStore != nil {
		rt.closers = append(rt.closers, closeStore)
	}

	assets, err := InitAssets(cfg, awsCfg, rt.Startup)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Assets = assets
	rt.Publisher = InitPublisher(cfg, awsCfg, rt.Startup)

	if opts.WithProvider {
		apiKey, err := LoadGeminiKey(ctx, awsCfg, cfg.SSMAPIKeyParam, opts.LocalKeyFallback)
		if err != nil {
			rt.Close()
			return nil, err
		}
		if awsCfg != nil {
			rt.Startup.SSMParam("geminiApiKey", cfg.SSMAPIKeyParam)
		}
		provider, text, err := InitProvider(ctx, cfg, apiKey)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Provider, rt.Text = provider, text
		rt.Startup.
			Config("provider", cfg.Provider).
			Config("imageModel", cfg.ImageModel).
			Config("textModel", cfg.TextModel)
	}

	rt.Startup.
		Config("store", cfg.Store).
		Config("maxRetries", fmt.Sprint(cfg.MaxRetries)).
		Config("retryBaseDelay", cfg.RetryBaseDelay.String()).
		Config("referenceCap", fmt.Sprint(cfg.ReferenceCap)).
		Feature("originVerify", cfg.OriginVerifySecret != "").
		InitDuration(time.Since(initStart))
	return rt, nil
}

// InitAWS loads the default AWS config.
func InitAWS(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return cfg, nil
}

// InitStore opens the configured store. The returned closer is nil for
// DynamoDB.
func InitStore(ctx context.Context, cfg *config.Config, awsCfg *aws.Config, startup *logging.StartupLogger) (store.Store, func() error, error) {
	switch cfg.Store {
	case config.StoreDynamo:
		if awsCfg == nil {
			return nil, nil, fmt.Errorf("DynamoDB store requires AWS config")
		}
		startup.DynamoTable("store", cfg.DynamoTable)
		return store.NewDynamoStore(dynamodb.NewFromConfig(*awsCfg), cfg.DynamoTable), nil, nil
	case config.StorePostgres:
		s, err := store.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		startup.Database("store", "postgres")
		return s, s.Close, nil
	case config.StoreSQLite:
		s, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		startup.Database("store", cfg.SQLitePath)
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// InitAssets returns an S3 store when a bucket is configured, otherwise a
// local directory store.
func InitAssets(cfg *config.Config, awsCfg *aws.Config, startup *logging.StartupLogger) (assetstore.Store, error) {
	if cfg.AssetBucket != "" {
		if awsCfg == nil {
			return nil, fmt.Errorf("S3 asset store requires AWS config")
		}
		startup.S3Bucket("assets", cfg.AssetBucket)
		return assetstore.NewS3Store(s3.NewFromConfig(*awsCfg), cfg.AssetBucket, cfg.AssetURLExpiry), nil
	}
	d, err := assetstore.NewDirStore(cfg.AssetDir)
	if err != nil {
		return nil, err
	}
	startup.Config("assetDir", cfg.AssetDir)
	return d, nil
}

// InitPublisher returns an EventBridge publisher when a bus is configured.
func InitPublisher(cfg *config.Config, awsCfg *aws.Config, startup *logging.StartupLogger) reconcile.Publisher {
	if cfg.EventBus != "" && awsCfg != nil {
		startup.EventBus("reconcile", cfg.EventBus)
		return reconcile.NewEventBridgePublisher(eventbridge.NewFromConfig(*awsCfg), cfg.EventBus)
	}
	return reconcile.LogPublisher{}
}

// LoadGeminiKey returns GEMINI_API_KEY if set, else reads the SSM
// parameter, else (locally) falls back to the GPG credential file.
func LoadGeminiKey(ctx context.Context, awsCfg *aws.Config, paramName string, localFallback bool) (string, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key, nil
	}
	if awsCfg != nil && paramName != "" {
		ssmStart := time.Now()
		result, err := ssm.NewFromConfig(*awsCfg).GetParameter(ctx, &ssm.GetParameterInput{
			Name:           &paramName,
			WithDecryption: aws.Bool(true),
		})
		if err == nil {
			log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Gemini API key loaded from SSM")
			return aws.ToString(result.Parameter.Value), nil
		}
		if !localFallback {
			return "", fmt.Errorf("failed to read API key from SSM %s: %w", paramName, err)
		}
		log.Debug().Err(err).Str("param", paramName).Msg("SSM key unavailable, trying local credentials")
	}
	if localFallback {
		return auth.GetAPIKey()
	}
	return "", fmt.Errorf("GEMINI_API_KEY is not set and no SSM parameter is configured")
}

// InitProvider creates the configured Gemini client. Both implementations
// serve image and text generation.
func InitProvider(ctx context.Context, cfg *config.Config, apiKey string) (generation.Provider, chat.TextGenerator, error) {
	switch cfg.Provider {
	case config.ProviderSDK:
		client, err := chat.NewGeminiClient(ctx, apiKey)
		if err != nil {
			return nil, nil, err
		}
		c := chat.NewSDKImageClient(client)
		return c, c, nil
	default:
		c := chat.NewGeminiImageClient(apiKey)
		return c, c, nil
	}
}

// NewService wires the action orchestrator from a Runtime built with
// WithProvider.
func NewService(rt *Runtime, cfg *config.Config) *studio.Service {
	policy := generation.Policy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBaseDelay}
	return studio.New(studio.Deps{
		Store:        rt.Store,
		Ledger:       ledger.New(rt.Store, nil),
		Invoker:      generation.NewInvoker(rt.Provider, cfg.ImageModel, policy),
		Text:         rt.Text,
		TextModel:    cfg.TextModel,
		Assets:       rt.Assets,
		Publisher:    rt.Publisher,
		ReferenceCap: cfg.ReferenceCap,
	})
}
