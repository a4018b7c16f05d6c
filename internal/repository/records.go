package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// RecordRepository - коллекции JSON-документов в таблице records.
type RecordRepository interface {
	// List возвращает документы коллекции в порядке хранения.
	List(ctx context.Context, collection string) ([]json.RawMessage, error)
	// Replace заменяет коллекцию целиком в одной транзакции.
	Replace(ctx context.Context, collection string, docs []json.RawMessage) error
}

type recordRepo struct {
	db TxDB
}

// NewRecordRepository создаёт репозиторий коллекций.
func NewRecordRepository(db TxDB) RecordRepository {
	return &recordRepo{db: db}
}

// List возвращает документы коллекции, упорядоченные по position.
func (r *recordRepo) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT doc FROM records WHERE collection = $1 ORDER BY position`, collection)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения коллекции %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]json.RawMessage, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("ошибка сканирования документа: %w", err)
		}
		docs = append(docs, json.RawMessage(doc))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return docs, nil
}

// Replace удаляет документы коллекции и вставляет новые с position 0..n-1.
func (r *recordRepo) Replace(ctx context.Context, collection string, docs []json.RawMessage) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM records WHERE collection = $1`, collection); err != nil {
			return fmt.Errorf("ошибка очистки коллекции: %w", err)
		}

		batch := &pgx.Batch{}
		for i, doc := range docs {
			batch.Queue(
				`INSERT INTO records (collection, position, doc) VALUES ($1, $2, $3::jsonb)`,
				collection, i, string(doc),
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("ошибка вставки документов: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка замены коллекции %s: %w", collection, err)
	}
	return nil
}
