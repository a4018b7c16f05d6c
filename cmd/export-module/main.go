// main.go - точка входа Export Module.
// Порядок запуска: config → logger → хранилище коллекций (файлы или PostgreSQL) →
// хранилище файлов экспорта → сервис экспорта → topologymetrics → JWT → HTTP-сервер.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/queenofscience/export-module/internal/api/handlers"
	"github.com/bigkaa/queenofscience/export-module/internal/api/middleware"
	"github.com/bigkaa/queenofscience/export-module/internal/api/openapi"
	"github.com/bigkaa/queenofscience/export-module/internal/config"
	"github.com/bigkaa/queenofscience/export-module/internal/database"
	"github.com/bigkaa/queenofscience/export-module/internal/repository"
	"github.com/bigkaa/queenofscience/export-module/internal/server"
	"github.com/bigkaa/queenofscience/export-module/internal/service"
	"github.com/bigkaa/queenofscience/export-module/internal/storage/artifacts"
	"github.com/bigkaa/queenofscience/export-module/internal/storage/records"
)

func main() {
	// 1. Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Export Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("record_store", cfg.RecordStore),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("Export Module завершился с ошибкой", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Export Module остановлен")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Хранилище коллекций. Файловое нужно и в режиме postgres - как источник переноса.
	fileSource := records.NewFileSource(cfg.DataDir, cfg.RecordCacheSize, cfg.RecordCacheTTL, logger)

	var (
		source records.Source
		pool   *pgxpool.Pool
	)
	switch cfg.RecordStore {
	case config.RecordStorePostgres:
		if err := database.Migrate(cfg, logger); err != nil {
			return err
		}
		var err error
		pool, err = database.Connect(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer pool.Close()

		pgSource := records.NewPostgresSource(repository.NewRecordRepository(pool), pool.Ping, logger)
		if cfg.DBSeedFromFiles {
			n, err := records.Seed(ctx, fileSource, pgSource, logger)
			if err != nil {
				return fmt.Errorf("перенос коллекций в PostgreSQL: %w", err)
			}
			logger.Info("Перенос коллекций завершён", slog.Int("collections", n))
		}
		source = pgSource
	default:
		if err := fileSource.EnsureCollections(); err != nil {
			return err
		}
		source = fileSource
	}
	loader := records.NewLoader(source, logger)

	// 4. Хранилище файлов экспорта
	store, err := artifacts.New(cfg.ExportsDir, logger)
	if err != nil {
		return err
	}
	existing, err := store.List(ctx)
	if err != nil {
		return err
	}
	logger.Info("Хранилище файлов экспорта готово",
		slog.String("dir", store.Dir()),
		slog.Int("files", len(existing)),
	)

	// 5. Сервис экспорта
	exportSvc := service.NewExportService(loader, store, service.ExportOptions{
		MemberUserType: cfg.MemberUserType,
		Location:       cfg.Timezone,
	}, logger)

	// 6. topologymetrics - мониторинг зависимостей
	depCfg := service.DephealthConfig{
		ServiceID:     cfg.ServiceID,
		Group:         cfg.DephealthGroup,
		JWKSURL:       cfg.JWKSUrl,
		TLSSkipVerify: cfg.TLSSkipVerify,
		CheckInterval: cfg.DephealthCheckInterval,
	}
	if pool != nil {
		// Проверка PostgreSQL идёт через существующий пул соединений
		pgDB := stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()
		depCfg.DB = pgDB
		depCfg.DBURL = fmt.Sprintf("postgres://%s:%d/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)
	}

	var deps handlers.DependencyReporter
	dephealthSvc, err := service.NewDephealthService(depCfg, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
	} else {
		defer dephealthSvc.Stop()
		deps = dephealthSvc
		logger.Info("topologymetrics запущен",
			slog.String("jwks_url", cfg.JWKSUrl),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 7. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
		JWKSURL:         cfg.JWKSUrl,
		CACertPath:      cfg.JWKSCACert,
		TLSSkipVerify:   cfg.TLSSkipVerify,
		ClientTimeout:   cfg.JWKSClientTimeout,
		RefreshInterval: cfg.JWKSRefreshInterval,
		JWTLeeway:       cfg.JWTLeeway,
	}, logger)
	if err != nil {
		return fmt.Errorf("настройка JWT: %w", err)
	}
	logger.Info("JWT аутентификация настроена", slog.String("jwks_url", cfg.JWKSUrl))

	// 8. OpenAPI контракт для проверки запросов
	doc, err := openapi.Load(ctx)
	if err != nil {
		return err
	}
	validator, err := openapi.NewValidator(doc, logger)
	if err != nil {
		return err
	}

	// 9. Маршруты и HTTP-сервер
	router := server.NewRouter(logger, server.Routes{
		Exports:        handlers.NewExportsHandler(exportSvc, logger),
		Health:         handlers.NewHealthHandler(store, loader, deps),
		Auth:           jwtAuth.Middleware(),
		MemberUserType: cfg.MemberUserType,
		Validator:      validator,
	})

	return server.New(cfg, logger, router).Run(ctx)
}
