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

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jimiolaniyan/accounts/auth"
	"github.com/jimiolaniyan/accounts/config"
	"github.com/jimiolaniyan/accounts/logger"
	"github.com/jimiolaniyan/accounts/notify"
)

const connectTimeout = 10 * time.Second

type notifier interface {
	auth.Notifier
	Close() error
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat))
		},
	}
}

func newEnsureIndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-indexes",
		Short: "Create the account collection indexes and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

			client, coll, err := connectMongo(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer disconnect(client, log)

			ctx, cancel := context.WithTimeout(cmd.Context(), connectTimeout)
			defer cancel()
			if err := auth.EnsureIndexes(ctx, coll); err != nil {
				return err
			}
			log.Info().Str("collection", cfg.MongoCollection).Msg("indexes ensured")
			return nil
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	policy, err := auth.ParsePolicy(cfg.VerificationPolicy)
	if err != nil {
		return err
	}

	client, coll, err := connectMongo(ctx, cfg)
	if err != nil {
		return err
	}
	defer disconnect(client, log)

	idxCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	err = auth.EnsureIndexes(idxCtx, coll)
	cancel()
	if err != nil {
		return err
	}

	n, err := newNotifier(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := n.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing notifier")
		}
	}()

	accounts := auth.NewMongoRepository(coll)
	svc := auth.NewService(
		accounts,
		auth.NewBcryptHasher(cfg.BcryptCost),
		auth.NewTokenGenerator(cfg.VerificationTokenTTL),
		n,
		auth.Config{
			Policy:             policy,
			VerifyEmailBaseURL: cfg.VerifyEmailBaseURL,
			Logger:             log,
		},
	)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      auth.NewRouter(svc, accounts, log),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("policy", policy.String()).Str("notifier", cfg.Notifier).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func connectMongo(ctx context.Context, cfg *config.Config) (*mongo.Client, *mongo.Collection, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection), nil
}

func disconnect(client *mongo.Client, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Warn().Err(err).Msg("error disconnecting from mongo")
	}
}

func newNotifier(cfg *config.Config, log zerolog.Logger) (notifier, error) {
	switch cfg.Notifier {
	case config.NotifierSMTP:
		return notify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom), nil
	case config.NotifierRabbitMQ:
		return notify.NewRabbitNotifier(cfg.RabbitURL, cfg.RabbitExchange)
	default:
		return notify.NewLogNotifier(log.With().Str("component", "notifier").Logger()), nil
	}
}
