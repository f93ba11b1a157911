package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookline/internal/api"
	"bookline/internal/bot"
	"bookline/internal/config"
	"bookline/internal/database"
	"bookline/internal/domain"
	"bookline/internal/events"
	"bookline/internal/logging"
	"bookline/internal/metrics"
	"bookline/internal/repository"
	"bookline/internal/service"
	"bookline/internal/whatsapp"
	"bookline/internal/worker"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := baseLogger.With().Str("component", "server").Logger()

	metrics.Register()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.SeedCatalog(ctx, cfg.Organizations); err != nil {
		return err
	}
	logger.Info().Int("organizations", len(cfg.Organizations)).Msg("catalog seeded")

	sessionRepo := buildSessionRepo(ctx, cfg, &logger)
	sessions := service.NewSessionService(sessionRepo, &logger)

	eventBus := events.NewEventBus()
	booking := service.NewBookingService(db, eventBus, &logger)
	availability := service.NewAvailabilityService(db, &logger)
	facade := service.NewAppointmentFacade(booking, availability)

	sender, orgByPNID := buildSenders(cfg, &logger)

	notifier := worker.NewNotifier(sender, worker.DefaultRetryPolicy(), &logger)
	notifier.SubscribeTo(eventBus)
	go notifier.Start(ctx)

	sweeper := worker.NewSweeper(sessions, time.Duration(cfg.Chat.SweepInterval)*time.Minute, &logger)
	go sweeper.Start(ctx)

	engine := bot.NewEngine(facade, &logger)
	dispatcher := whatsapp.NewDispatcher(
		sessions, engine, sender, orgByPNID,
		cfg.Chat.RateLimitMessages,
		time.Duration(cfg.Chat.RateLimitWindow)*time.Second,
		&logger,
	)

	server := api.NewHTTPServer(*cfg, api.Deps{
		DB:           db,
		Booking:      booking,
		Availability: availability,
		Dispatcher:   dispatcher,
		Logger:       &logger,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildSessionRepo prefers Redis with an in-memory fallback behind the
// failover wrapper; with no Redis configured it runs purely in memory.
func buildSessionRepo(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.SessionRepository {
	memory := repository.NewMemorySessionRepository()
	if cfg.Redis.Address == "" {
		logger.Warn().Msg("redis not configured, sessions are process-local")
		return memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable at startup, failover engaged")
	}
	primary := repository.NewRedisSessionRepository(client, 0)
	return repository.NewFailoverSessionRepository(primary, memory, logger)
}

// buildSenders wires one Cloud API client per business phone number behind
// a router keyed by organization. It also returns the phone_number_id to
// organization mapping the dispatcher routes inbound batches on.
func buildSenders(cfg *config.Config, logger *zerolog.Logger) (domain.MessageSender, map[string]string) {
	timeout := time.Duration(cfg.WhatsApp.TimeoutSeconds) * time.Second

	router := whatsapp.NewSenderRouter()
	orgByPNID := make(map[string]string, len(cfg.Organizations))
	for _, org := range cfg.Organizations {
		if org.WhatsAppPhoneNumberID == "" {
			logger.Warn().Str("org_id", org.ID).Msg("organization has no whatsapp phone number id")
			continue
		}
		orgByPNID[org.WhatsAppPhoneNumberID] = org.ID
		router.Register(org.ID, whatsapp.NewClient(
			cfg.WhatsApp.APIBase, org.WhatsAppPhoneNumberID, cfg.WhatsApp.AccessToken, timeout, logger))
	}
	return router, orgByPNID
}
