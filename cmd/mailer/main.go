// Command mailer consumes dispatch jobs from JetStream and delivers them.
// Run it alongside cmd/server with EMBEDDED_WORKER=false to scale delivery
// separately from the API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/blockedby/teamsheet/internal/config"
	"github.com/blockedby/teamsheet/internal/database"
	"github.com/blockedby/teamsheet/internal/dispatcher"
	"github.com/blockedby/teamsheet/internal/lock"
	"github.com/blockedby/teamsheet/internal/logger"
	"github.com/blockedby/teamsheet/internal/mail"
	"github.com/blockedby/teamsheet/internal/nats"
	"github.com/blockedby/teamsheet/internal/repository"
)

func main() {
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
	log.Info().Msg("starting mailer")

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

	// 4. Setup resources
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to database")

	natsClient, err := nats.New(ctx, cfg.NatsURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to nats")
	}
	defer natsClient.Close()
	log.Info().Msg("connected to nats")

	if err := natsClient.EnsureStream(ctx, dispatcher.DispatchStream, []string{dispatcher.DispatchSubject}); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure stream")
	}

	// Locks are shared with the API server through Redis.
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set, retries from the API cannot see this worker's locks")
	}
	locker, redisClient, err := lock.Connect(ctx, cfg.RedisURL, cfg.LockTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	transport, err := mail.New(ctx, mail.Config{
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
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create mail transport")
	}

	messagesRepo := repository.NewMessagesRepository(db.GORM, log)
	rosterRepo := repository.NewRosterRepository(db.GORM)

	// no websocket hub in this process; status changes are still persisted
	tracker := dispatcher.NewDeliveryTracker(messagesRepo, nil, log)
	processor := dispatcher.NewProcessor(messagesRepo, rosterRepo, transport, tracker, locker,
		dispatcher.ProcessorConfig{From: cfg.MailFrom}, log)

	consumer := dispatcher.NewConsumer(natsClient, processor, log)

	// 5. Start Consumer
	if err := consumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start consumer")
	}
	log.Info().Str("transport", cfg.MailTransport).Msg("consumer started")

	// Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down")

	// give in-flight deliveries a moment before the nats drain in Close
	time.Sleep(1 * time.Second)
	log.Info().Msg("shutdown complete")
}
