package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/queenofscience/export-module/internal/database"
	"github.com/bigkaa/queenofscience/export-module/internal/database/dbtest"
)

// setupTestDB запускает PostgreSQL контейнер и применяет миграции.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	cfg := dbtest.Start(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка применения миграций: %v", err)
	}

	pool, err := database.Connect(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestRecordRepository_ListEmpty(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewRecordRepository(pool)

	docs, err := repo.List(context.Background(), "articles")
	if err != nil {
		t.Fatalf("List() вернул ошибку: %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Errorf("ожидался пустой не-nil срез, получено %#v", docs)
	}
}

// TestRecordRepository_ReplaceKeepsOrder проверяет порядок документов и полную замену.
func TestRecordRepository_ReplaceKeepsOrder(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewRecordRepository(pool)
	ctx := context.Background()

	first := []json.RawMessage{
		json.RawMessage(`{"id":"3","title":"c"}`),
		json.RawMessage(`{"id":"1","title":"a"}`),
		json.RawMessage(`{"id":"2","title":"b"}`),
	}
	if err := repo.Replace(ctx, "questions", first); err != nil {
		t.Fatalf("Replace() вернул ошибку: %v", err)
	}

	docs, err := repo.List(ctx, "questions")
	if err != nil {
		t.Fatalf("List() вернул ошибку: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("ожидалось 3 документа, получено %d", len(docs))
	}
	wantIDs := []string{"3", "1", "2"}
	for i, doc := range docs {
		var v struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(doc, &v); err != nil {
			t.Fatalf("документ %d не JSON: %v", i, err)
		}
		if v.ID != wantIDs[i] {
			t.Errorf("позиция %d: ожидался id %s, получен %s", i, wantIDs[i], v.ID)
		}
	}

	// Замена на меньшую коллекцию не оставляет хвостов
	if err := repo.Replace(ctx, "questions", first[:1]); err != nil {
		t.Fatalf("повторный Replace() вернул ошибку: %v", err)
	}
	docs, err = repo.List(ctx, "questions")
	if err != nil {
		t.Fatalf("List() вернул ошибку: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("ожидался 1 документ, получено %d", len(docs))
	}

	// Другие коллекции не затронуты
	other, err := repo.List(ctx, "articles")
	if err != nil {
		t.Fatalf("List(articles) вернул ошибку: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("коллекция articles должна быть пустой, получено %d", len(other))
	}
}

func TestRecordRepository_ReplaceInvalidJSON(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewRecordRepository(pool)
	ctx := context.Background()

	if err := repo.Replace(ctx, "users", []json.RawMessage{json.RawMessage(`{"id":"u1"}`)}); err != nil {
		t.Fatalf("Replace() вернул ошибку: %v", err)
	}

	err := repo.Replace(ctx, "users", []json.RawMessage{json.RawMessage(`{"id":"u2"}`), json.RawMessage(`not json`)})
	if err == nil {
		t.Fatal("ожидалась ошибка для невалидного JSON")
	}

	// Транзакция откатилась - прежнее содержимое на месте
	docs, err := repo.List(ctx, "users")
	if err != nil {
		t.Fatalf("List() вернул ошибку: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("после отката ожидался 1 документ, получено %d", len(docs))
	}
}
