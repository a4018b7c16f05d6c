package records

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/bigkaa/queenofscience/export-module/internal/domain/model"
	"github.com/bigkaa/queenofscience/export-module/internal/repository"
)

// PostgresSource - коллекции в таблице records PostgreSQL.
type PostgresSource struct {
	repo   repository.RecordRepository
	ping   func(ctx context.Context) error
	logger *slog.Logger
}

// NewPostgresSource создаёт источник поверх репозитория.
// ping - проверка соединения (обычно pool.Ping).
func NewPostgresSource(repo repository.RecordRepository, ping func(ctx context.Context) error, logger *slog.Logger) *PostgresSource {
	return &PostgresSource{
		repo:   repo,
		ping:   ping,
		logger: logger.With(slog.String("component", "postgres_source")),
	}
}

// Load читает коллекцию. Ошибка запроса даёт пустую коллекцию.
func (s *PostgresSource) Load(ctx context.Context, c model.Collection) []json.RawMessage {
	docs, err := s.repo.List(ctx, string(c))
	if err != nil {
		s.logger.Warn("Ошибка чтения коллекции из PostgreSQL, коллекция пуста",
			slog.String("collection", string(c)),
			slog.String("error", err.Error()),
		)
		return []json.RawMessage{}
	}
	return docs
}

// Save заменяет коллекцию целиком.
func (s *PostgresSource) Save(ctx context.Context, c model.Collection, docs []json.RawMessage) error {
	return s.repo.Replace(ctx, string(c), docs)
}

// Ping проверяет соединение с PostgreSQL.
func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.ping(ctx)
}
