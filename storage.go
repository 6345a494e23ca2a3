package main

import (
	"context"
	"fmt"
	"time"

	authdomain "mail-event-processor/internal/auth/domain"
	authRepo "mail-event-processor/internal/auth/repository"
	emaildomain "mail-event-processor/internal/email/domain"
	emailRepo "mail-event-processor/internal/email/repository"
	"mail-event-processor/pkg/config"
	"mail-event-processor/pkg/database"
	"mail-event-processor/pkg/mongodb"

	"github.com/rs/zerolog"
)

// storage bundles the repositories of the configured backend.
type storage struct {
	Users     authRepo.UserRepository
	Logs      emailRepo.EmailLogRepository
	FCMTokens authRepo.FCMTokenRepository // postgres only

	closers []func() error
	log     zerolog.Logger
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	s := &storage{log: log.With().Str("component", "storage").Logger()}

	switch cfg.StorageBackend {
	case config.StorageMongo:
		client, err := mongodb.NewClient(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		})

		db := client.Database(cfg.MongoDatabase)
		logs := emailRepo.NewMongoEmailLogRepository(db)
		if err := logs.EnsureIndexes(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}
		s.Users = authRepo.NewMongoUserRepository(db)
		s.Logs = logs

	default:
		db, err := database.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { return database.Close(db) })

		// Auto-migrate database schemas
		if err := db.AutoMigrate(&authdomain.User{}, &authdomain.FCMToken{}, &emaildomain.EmailLog{}); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		s.Users = authRepo.NewUserRepository(db)
		s.Logs = emailRepo.NewEmailLogRepository(db)
		s.FCMTokens = authRepo.NewFCMTokenRepository(db)
	}

	s.log.Info().Str("backend", cfg.StorageBackend).Msg("storage ready")
	return s, nil
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.Warn().Err(err).Msg("failed to close storage")
		}
	}
	s.closers = nil
}
