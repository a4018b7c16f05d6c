// Пакет repository - слой доступа к данным PostgreSQL.
// Все запросы - чистый SQL через pgx, без ORM.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX - интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxDB - DBTX, умеющий открывать транзакции (*pgxpool.Pool).
type TxDB interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}
