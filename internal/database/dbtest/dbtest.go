// Пакет dbtest - PostgreSQL в Docker-контейнере для интеграционных тестов.
// Тесты пропускаются, если не задана переменная TEST_INTEGRATION.
package dbtest

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/queenofscience/export-module/internal/config"
)

const (
	dbName     = "qos_test"
	dbUser     = "qos"
	dbPassword = "test-password"
)

// Enabled сообщает, включены ли интеграционные тесты.
func Enabled() bool {
	return os.Getenv("TEST_INTEGRATION") != ""
}

// Start запускает PostgreSQL и возвращает конфигурацию для подключения к нему.
// Контейнер останавливается по завершении теста.
func Start(t *testing.T) *config.Config {
	t.Helper()

	if testing.Short() {
		t.Skip("Пропуск интеграционного теста в режиме -short")
	}
	if !Enabled() {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}
	portNum, err := strconv.Atoi(port.Port())
	if err != nil {
		t.Fatalf("Некорректный port контейнера %q: %v", port.Port(), err)
	}

	return &config.Config{
		RecordStore: config.RecordStorePostgres,
		DBHost:      host,
		DBPort:      portNum,
		DBName:      dbName,
		DBUser:      dbUser,
		DBPassword:  dbPassword,
		DBSSLMode:   "disable",
	}
}
