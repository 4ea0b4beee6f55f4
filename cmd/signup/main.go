// Package main is the entry point for the card signup function.
//
// Inside AWS Lambda (AWS_LAMBDA_RUNTIME_API or _LAMBDA_SERVER_PORT set) the
// handler is registered with lambda.Start for API Gateway proxy events.
// Otherwise it runs as a local HTTP server on PORT, serving the handler at /
// and /signup, with graceful shutdown on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"cardsignup/internal/billing"
	"cardsignup/internal/config"
	"cardsignup/internal/core"
	"cardsignup/internal/external"
	"cardsignup/internal/queue"
	"cardsignup/internal/secrets"
	"cardsignup/internal/signup"
	"cardsignup/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel).With("service", cfg.Service)
	logger.Info("card signup starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"secret_backend", cfg.Secrets.Backend,
	)

	ctx := context.Background()
	deps, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close()

	if isLambdaEnvironment() {
		lambda.Start(deps.handler.HandleAPIGateway)
		return nil
	}

	return runHTTPServer(deps.handler, cfg, logger)
}

// dependencies is everything built at cold start.
type dependencies struct {
	handler *signup.Handler
	closers []func() error
	logger  *slog.Logger
}

func (d *dependencies) close() {
	for _, c := range d.closers {
		if err := c(); err != nil {
			d.logger.Warn("closing dependency", "error", err)
		}
	}
}

// awsClients lazily loads one AWS config shared by SSM, SQS and CloudWatch.
type awsClients struct {
	cfg    *config.Config
	loaded *aws.Config
}

func (a *awsClients) config(ctx context.Context) (aws.Config, error) {
	if a.loaded != nil {
		return *a.loaded, nil
	}
	c, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.cfg.AWS.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	a.loaded = &c
	return c, nil
}

func (a *awsClients) endpoint() *string {
	if a.cfg.AWS.EndpointURL == "" {
		return nil
	}
	return aws.String(a.cfg.AWS.EndpointURL)
}

// buildDependencies wires the handler from configuration.
func buildDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{logger: logger}
	clients := &awsClients{cfg: cfg}

	var accessor secrets.Accessor
	switch cfg.Secrets.Backend {
	case config.SecretBackendSSM:
		accessor = secrets.NewSSMAccessor(cfg.AWS.Region, cfg.AWS.EndpointURL)
	case config.SecretBackendEnv:
		accessor = secrets.NewEnvAccessor(cfg.Secrets.LocalKey)
	default:
		sm := secrets.NewSecretManagerAccessor(logger)
		deps.closers = append(deps.closers, sm.Close)
		accessor = sm
	}

	transport := external.NewBreakerTransport(nil, external.DefaultBreakerSettings("stripe"), userAgent(cfg))
	gateway := external.NewStripeGateway(external.StripeGatewayConfig{
		HTTPClient: external.NewHTTPClient(cfg.Billing.Timeout, transport),
		BaseURL:    cfg.Billing.APIURL,
		Logger:     logger,
	})

	var orphans billing.OrphanReporter = queue.NoopOrphanReporter{}
	if cfg.AWS.OrphanQueueURL != "" {
		awsCfg, err := clients.config(ctx)
		if err != nil {
			return nil, err
		}
		endpoint := clients.endpoint()
		client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if endpoint != nil {
				o.BaseEndpoint = endpoint
			}
		})
		orphans = queue.NewSQSOrphanReporter(client, cfg.AWS.OrphanQueueURL, logger)
	}

	var metrics telemetry.Recorder = telemetry.NoopRecorder{}
	if cfg.Metrics.Enabled {
		awsCfg, err := clients.config(ctx)
		if err != nil {
			return nil, err
		}
		endpoint := clients.endpoint()
		client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if endpoint != nil {
				o.BaseEndpoint = endpoint
			}
		})
		metrics = telemetry.NewCloudWatchRecorder(client, cfg.Metrics.Namespace, logger)
	}

	deps.handler = signup.NewHandler(signup.Config{
		Secrets: accessor,
		Secret: signup.SecretRef{
			ProjectID: cfg.Secrets.ProjectID,
			SecretID:  cfg.Secrets.SecretID,
			Version:   cfg.Secrets.Version,
		},
		Gateway: gateway,
		Provisioner: billing.NewProvisioner(billing.ProvisionerConfig{
			PlanID:     cfg.Billing.PlanID,
			Compensate: cfg.Signup.Compensate,
			Orphans:    orphans,
			Logger:     logger,
		}),
		Validator:     core.NewValidator(),
		Metrics:       metrics,
		Logger:        logger,
		UniformStatus: cfg.Signup.UniformStatus,
	})
	return deps, nil
}

func userAgent(cfg *config.Config) string {
	version := cfg.Build.Version
	if version == "" {
		version = "dev"
	}
	return "CardSignup/" + version
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runHTTPServer starts the local HTTP server with graceful shutdown.
func runHTTPServer(h http.Handler, cfg *config.Config, logger *slog.Logger) error {
	srv, err := core.NewServer(logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.MountRoutes(h)

	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a JSON slog.Logger for the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
