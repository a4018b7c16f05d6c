// Пакет records - чтение коллекций записей (статьи, вопросы, пользователи)
// из постоянного хранилища.
//
// Источник никогда не отказывает вызывающему при чтении: отсутствующая
// или повреждённая коллекция читается как пустая, причина пишется в лог.
// Экспорт пустой коллекции - штатный случай.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bigkaa/queenofscience/export-module/internal/domain/model"
)

// Source - хранилище коллекций в виде сырых JSON-документов.
type Source interface {
	// Load читает коллекцию целиком. Ошибки хранилища дают пустой результат.
	Load(ctx context.Context, c model.Collection) []json.RawMessage
	// Save полностью заменяет коллекцию.
	Save(ctx context.Context, c model.Collection, docs []json.RawMessage) error
	// Ping проверяет доступность хранилища (для readiness).
	Ping(ctx context.Context) error
}

// Loader - типизированное чтение коллекций поверх Source.
type Loader struct {
	source Source
	logger *slog.Logger
}

// NewLoader создаёт загрузчик записей.
func NewLoader(source Source, logger *slog.Logger) *Loader {
	return &Loader{
		source: source,
		logger: logger.With(slog.String("component", "records")),
	}
}

// Posts читает статьи или вопросы.
func (l *Loader) Posts(ctx context.Context, c model.Collection) []model.Post {
	return DecodePosts(l.source.Load(ctx, c), l.logger.With(slog.String("collection", string(c))))
}

// Users читает пользователей.
func (l *Loader) Users(ctx context.Context) []model.User {
	return DecodeUsers(l.source.Load(ctx, model.CollectionUsers),
		l.logger.With(slog.String("collection", string(model.CollectionUsers))))
}

// Ping проверяет доступность хранилища.
func (l *Loader) Ping(ctx context.Context) error {
	return l.source.Ping(ctx)
}

// DecodePosts декодирует документы в посты. Документы, которые не
// удалось разобрать, пропускаются с предупреждением.
func DecodePosts(docs []json.RawMessage, logger *slog.Logger) []model.Post {
	posts := make([]model.Post, 0, len(docs))
	for i, doc := range docs {
		var p model.Post
		if err := json.Unmarshal(doc, &p); err != nil {
			logger.Warn("Запись пропущена: ошибка декодирования",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		posts = append(posts, p)
	}
	return posts
}

// DecodeUsers декодирует документы в пользователей.
func DecodeUsers(docs []json.RawMessage, logger *slog.Logger) []model.User {
	users := make([]model.User, 0, len(docs))
	for i, doc := range docs {
		var u model.User
		if err := json.Unmarshal(doc, &u); err != nil {
			logger.Warn("Пользователь пропущен: ошибка декодирования",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		users = append(users, u)
	}
	return users
}

// Seed переносит коллекции из from в to. Коллекции, в которых to уже
// содержит записи, не трогаются. Возвращает число перенесённых коллекций.
func Seed(ctx context.Context, from, to Source, logger *slog.Logger) (int, error) {
	seeded := 0
	for _, c := range model.Collections() {
		if len(to.Load(ctx, c)) > 0 {
			continue
		}
		docs := from.Load(ctx, c)
		if len(docs) == 0 {
			continue
		}
		if err := to.Save(ctx, c, docs); err != nil {
			return seeded, fmt.Errorf("перенос коллекции %s: %w", c, err)
		}
		logger.Info("Коллекция перенесена",
			slog.String("collection", string(c)),
			slog.Int("records", len(docs)),
		)
		seeded++
	}
	return seeded, nil
}
