package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	api "mail-event-processor/cmd/api"
	emailUsecase "mail-event-processor/internal/email/usecase"
	"mail-event-processor/internal/notification"
	"mail-event-processor/pkg/ai"
	"mail-event-processor/pkg/config"
	"mail-event-processor/pkg/fcm"
	"mail-event-processor/pkg/gmail"
	"mail-event-processor/pkg/logger"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("processor stopped with error")
	}
	log.Info().Msg("processor shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// Initialize storage (users, logs, device tokens)
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	// Runtime settings let the ops API retarget Ollama without a restart
	settings := api.NewRuntimeSettings(cfg.OllamaBaseURL, cfg.OllamaModel)
	registry := ai.NewRegistry(ai.Config{
		DefaultProvider:  ai.ProviderType(cfg.DefaultAIProvider),
		GeminiAPIKey:     cfg.GeminiAPIKey,
		GeminiModel:      cfg.GeminiModel,
		GetOllamaBaseURL: settings.OllamaBaseURL,
		GetOllamaModel:   settings.OllamaModel,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenAIModel:      cfg.OpenAIModel,
	}, log)
	log.Info().Strs("providers", registry.Names()).Str("default", string(registry.DefaultProvider())).Msg("AI providers registered")

	deps := emailUsecase.EventProcessorDeps{
		Users:               store.Users,
		Logs:                store.Logs,
		Mail:                gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret),
		Contexts:            emailUsecase.NewContextEngine(store.Logs),
		Prompts:             emailUsecase.NewPromptBuilder(cfg.ContextAwarePrompt, log),
		Summarizers:         registry,
		Recent:              emailUsecase.NewRecentIDCache(cfg.RecentIDCapacity),
		DefaultContextDepth: cfg.DefaultContextDepth,
	}
	if notifier := newSummaryNotifier(ctx, cfg, store, log); notifier != nil {
		deps.Notifier = notifier
	}

	processor := emailUsecase.NewEventProcessor(deps, log)
	loop := emailUsecase.NewEventLoop(processor, cfg.EventWorkers, cfg.EventQueueSize, log)
	loop.Start()

	bridge, err := notification.NewService(ctx,
		cfg.GoogleProjectID,
		resourceID(cfg.GooglePubSubTopic),
		resourceID(cfg.GmailSubscriptionID),
		cfg.GoogleCredentials,
		loop,
		log,
	)
	if err != nil {
		_ = loop.Stop(context.Background())
		return err
	}
	bridge.SetMaxOutstandingMessages(cfg.EventQueueSize)
	defer func() {
		if err := bridge.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close pubsub client")
		}
	}()

	if cfg.OpsAPIToken == "" {
		log.Warn().Msg("OPS_API_TOKEN not set, settings API disabled")
	}
	handler := api.NewHandler(processor, loop, registry.Names(), settings, cfg.OpsAPIToken, log)

	g, gctx := errgroup.WithContext(ctx)
	bridgeDone := make(chan struct{})

	g.Go(func() error {
		defer close(bridgeDone)
		return bridge.Start(gctx)
	})
	g.Go(func() error {
		return handler.Start(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		// Stop accepting notifications before draining the loop
		<-bridgeDone

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := loop.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("event loop did not drain in time")
		}
		return handler.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newSummaryNotifier returns nil when push notifications are not configured.
func newSummaryNotifier(ctx context.Context, cfg *config.Config, store *storage, log zerolog.Logger) *notification.SummaryNotifier {
	if cfg.FirebaseCredentials == "" {
		return nil
	}
	if store.FCMTokens == nil {
		log.Warn().Str("backend", cfg.StorageBackend).Msg("push notifications need the postgres backend, disabled")
		return nil
	}

	client, err := fcm.NewClient(ctx, notification.CredentialsOptions(cfg.FirebaseCredentials)...)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize FCM client, push notifications disabled")
		return nil
	}
	return notification.NewSummaryNotifier(client, store.FCMTokens, log)
}

// resourceID extracts the short name from a full resource name such as
// projects/p/topics/gmail-events.
func resourceID(name string) string {
	if parts := strings.Split(name, "/"); len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return name
}
