package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/blockedby/teamsheet/internal/api"
	"github.com/blockedby/teamsheet/internal/config"
	"github.com/blockedby/teamsheet/internal/database"
	"github.com/blockedby/teamsheet/internal/dispatcher"
	"github.com/blockedby/teamsheet/internal/lock"
	"github.com/blockedby/teamsheet/internal/logger"
	"github.com/blockedby/teamsheet/internal/mail"
	"github.com/blockedby/teamsheet/internal/migrator"
	"github.com/blockedby/teamsheet/internal/nats"
	"github.com/blockedby/teamsheet/internal/publisher"
	"github.com/blockedby/teamsheet/internal/repository"
	"github.com/blockedby/teamsheet/internal/web"
	"github.com/blockedby/teamsheet/migrations"
)

const version = "1.0.0"

func main() {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Setup Logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Str("version", version).Msg("starting teamsheet server")

	// 3. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// 4. Database
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Bool("sqlite", db.IsSQLite()).Msg("connected to database")

	if db.IsSQLite() {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate sqlite schema")
		}
	} else if cfg.RunMigrations {
		m, err := migrator.NewWithFS(migrations.FS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load migrations")
		}
		if err := m.Up(ctx, cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		log.Info().Msg("migrations applied")
	}

	// 5. Processing locks
	locker, redisClient, err := lock.Connect(ctx, cfg.RedisURL, cfg.LockTTL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, using in-memory locks")
		locker = lock.NewMemoryLocker(cfg.LockTTL)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info().Msg("connected to redis")
	}

	// 6. Presets
	presets, err := dispatcher.LoadPresets(cfg.PresetsFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.PresetsFile).Msg("failed to load presets")
	}
	for _, p := range presets.Problems() {
		log.Warn().Str("problem", p).Msg("preset check")
	}

	// 7. Delivery pipeline
	transport, err := mail.New(ctx, mailConfig(cfg), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create mail transport")
	}
	log.Info().Str("transport", cfg.MailTransport).Msg("mail transport ready")

	hub := web.NewHub()
	go hub.Run()

	messagesRepo := repository.NewMessagesRepository(db.GORM, log)
	rosterRepo := repository.NewRosterRepository(db.GORM)

	tracker := dispatcher.NewDeliveryTracker(messagesRepo, hub, log)
	processor := dispatcher.NewProcessor(messagesRepo, rosterRepo, transport, tracker, locker,
		dispatcher.ProcessorConfig{From: cfg.MailFrom}, log)

	// 8. Job queue: JetStream when reachable, in-process otherwise
	var queue dispatcher.JobQueue
	natsClient, err := connectNATS(ctx, cfg.NatsURL)
	if err != nil {
		log.Warn().Err(err).Msg("nats unavailable, dispatching in-process")
		local := dispatcher.NewLocalQueue(processor, cfg.LocalQueueSize, cfg.LocalWorkers, log)
		local.Start(ctx)
		defer local.Close()
		queue = local
	} else {
		defer natsClient.Close()
		log.Info().Msg("connected to nats")
		queue = publisher.NewNATSPublisher(natsClient)

		if cfg.EmbeddedWorker {
			consumer := dispatcher.NewConsumer(natsClient, processor, log)
			if err := consumer.Start(ctx); err != nil {
				log.Fatal().Err(err).Msg("failed to start dispatch consumer")
			}
			log.Info().Msg("embedded dispatch consumer started")
		}
	}

	service := dispatcher.NewService(messagesRepo, rosterRepo, queue, locker, presets,
		dispatcher.ServiceConfig{
			ReadRetries:    cfg.MessageReadRetries,
			ReadRetryDelay: cfg.MessageReadRetryDelay,
		}, log)

	// 9. HTTP server
	server := api.NewServer(&api.Config{
		Port:        cfg.HTTPPort,
		Title:       "Teamsheet API",
		Description: "Group messaging and delivery tracking",
		Version:     version,
		CORSOrigins: cfg.CORSOrigins,
	}, &api.Dependencies{
		Messages: service,
		Database: db,
		Hub:      hub,
	}, log)

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("http server listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	log.Info().Msg("shutdown complete")
}

func connectNATS(ctx context.Context, url string) (*nats.Client, error) {
	if url == "" {
		return nil, errors.New("NATS_URL is empty")
	}
	client, err := nats.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := client.EnsureStream(ctx, dispatcher.DispatchStream, []string{dispatcher.DispatchSubject}); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func mailConfig(cfg *config.Config) mail.Config {
	return mail.Config{
		Kind:           cfg.MailTransport,
		RatePerSec:     cfg.MailRatePerSec,
		RateBurst:      cfg.MailRateBurst,
		SendTimeout:    cfg.MailSendTimeout,
		SMTPHost:       cfg.SMTPHost,
		SMTPPort:       cfg.SMTPPort,
		SMTPUsername:   cfg.SMTPUsername,
		SMTPPassword:   cfg.SMTPPassword,
		AWSRegion:      cfg.AWSRegion,
		AWSAccessKeyID: cfg.AWSAccessKeyID,
		AWSSecretKey:   cfg.AWSSecretKey,
	}
}
