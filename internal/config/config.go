// Пакет config - загрузка и валидация конфигурации Export Module
// из переменных окружения и необязательного YAML-файла.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	// База часовых поясов для EX_TIMEZONE в образах без tzdata
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Хранилища коллекций.
const (
	RecordStoreFile     = "file"
	RecordStorePostgres = "postgres"
)

// Config содержит все параметры конфигурации Export Module.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Имя сервиса в метриках topologymetrics
	ServiceID string
	// Директория JSON-файлов коллекций
	DataDir string
	// Директория сгенерированных файлов экспорта
	ExportsDir string
	// Хранилище коллекций: file или postgres
	RecordStore string

	// Параметры PostgreSQL (только для RecordStore=postgres)
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	// Перенести коллекции из DataDir в пустые таблицы при старте
	DBSeedFromFiles bool

	// Кэш разобранных коллекций: размер (0 - выключен) и TTL
	RecordCacheSize int
	RecordCacheTTL  time.Duration

	// URL JWKS endpoint
	JWKSUrl string
	// Путь к CA-сертификату JWKS endpoint (опционально)
	JWKSCACert string
	// Пропускать проверку TLS-сертификатов JWKS
	TLSSkipVerify bool
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Значение claim user_type, дающее право на экспорт
	MemberUserType string

	// Часовой пояс дат в документах
	Timezone *time.Location

	// TLS сервера (оба пустые - HTTP)
	TLSCert string
	TLSKey  string

	// Таймауты HTTP-сервера
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
}

// Load загружает конфигурацию. Если задан EX_CONFIG_FILE, значения
// из YAML-файла используются как значения по умолчанию; переменные
// окружения имеют приоритет.
func Load() (*Config, error) {
	env := &envSource{}
	if path := os.Getenv("EX_CONFIG_FILE"); path != "" {
		values, err := readConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("EX_CONFIG_FILE: %w", err)
		}
		env.file = values
	}

	cfg := &Config{}
	var err error

	// EX_PORT - порт HTTP-сервера (по умолчанию 8030)
	cfg.Port, err = env.getInt("EX_PORT", 8030)
	if err != nil {
		return nil, fmt.Errorf("EX_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("EX_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.ServiceID = env.getDefault("EX_SERVICE_ID", "export-module")

	if cfg.DataDir, err = env.getRequired("EX_DATA_DIR"); err != nil {
		return nil, err
	}
	if cfg.ExportsDir, err = env.getRequired("EX_EXPORTS_DIR"); err != nil {
		return nil, err
	}

	cfg.RecordStore = env.getDefault("EX_RECORD_STORE", RecordStoreFile)
	switch cfg.RecordStore {
	case RecordStoreFile:
	case RecordStorePostgres:
		if err := loadDatabase(env, cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("EX_RECORD_STORE: недопустимое значение %q, допустимые: file, postgres", cfg.RecordStore)
	}

	cfg.RecordCacheSize, err = env.getInt("EX_RECORD_CACHE_SIZE", 8)
	if err != nil {
		return nil, fmt.Errorf("EX_RECORD_CACHE_SIZE: %w", err)
	}
	if cfg.RecordCacheSize < 0 {
		return nil, fmt.Errorf("EX_RECORD_CACHE_SIZE: значение не может быть отрицательным")
	}
	cfg.RecordCacheTTL, err = env.getDuration("EX_RECORD_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EX_RECORD_CACHE_TTL: %w", err)
	}

	if cfg.JWKSUrl, err = env.getRequired("EX_JWKS_URL"); err != nil {
		return nil, err
	}
	cfg.JWKSCACert = env.getDefault("EX_JWKS_CA_CERT", "")
	cfg.TLSSkipVerify, err = env.getBool("EX_TLS_SKIP_VERIFY", false)
	if err != nil {
		return nil, fmt.Errorf("EX_TLS_SKIP_VERIFY: %w", err)
	}
	cfg.JWKSClientTimeout, err = env.getDuration("EX_JWKS_CLIENT_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EX_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = env.getDuration("EX_JWKS_REFRESH_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EX_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWTLeeway, err = env.getDuration("EX_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EX_JWT_LEEWAY: %w", err)
	}
	cfg.MemberUserType = env.getDefault("EX_MEMBER_USER_TYPE", "Member")

	tz := env.getDefault("EX_TIMEZONE", "UTC")
	cfg.Timezone, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("EX_TIMEZONE: неизвестный часовой пояс %q", tz)
	}

	// TLS опционален, но сертификат и ключ задаются только вместе
	cfg.TLSCert = env.getDefault("EX_TLS_CERT", "")
	cfg.TLSKey = env.getDefault("EX_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("EX_TLS_CERT и EX_TLS_KEY должны задаваться вместе")
	}

	if cfg.ReadTimeout, err = env.getDuration("EX_HTTP_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("EX_HTTP_READ_TIMEOUT: %w", err)
	}
	// Генерация большого документа укладывается в таймаут записи
	if cfg.WriteTimeout, err = env.getDuration("EX_HTTP_WRITE_TIMEOUT", 120*time.Second); err != nil {
		return nil, fmt.Errorf("EX_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.IdleTimeout, err = env.getDuration("EX_HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return nil, fmt.Errorf("EX_HTTP_IDLE_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = env.getDuration("EX_SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("EX_SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg.LogLevel, err = parseLogLevel(env.getDefault("EX_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("EX_LOG_LEVEL: %w", err)
	}
	cfg.LogFormat = env.getDefault("EX_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("EX_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.DephealthCheckInterval, err = env.getDuration("EX_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EX_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = env.getDefault("EX_DEPHEALTH_GROUP", "queenofscience")

	return cfg, nil
}

// loadDatabase читает параметры PostgreSQL.
func loadDatabase(env *envSource, cfg *Config) error {
	var err error
	if cfg.DBHost, err = env.getRequired("EX_DB_HOST"); err != nil {
		return err
	}
	if cfg.DBPort, err = env.getInt("EX_DB_PORT", 5432); err != nil {
		return fmt.Errorf("EX_DB_PORT: %w", err)
	}
	if cfg.DBName, err = env.getRequired("EX_DB_NAME"); err != nil {
		return err
	}
	if cfg.DBUser, err = env.getRequired("EX_DB_USER"); err != nil {
		return err
	}
	if cfg.DBPassword, err = env.getRequired("EX_DB_PASSWORD"); err != nil {
		return err
	}
	cfg.DBSSLMode = env.getDefault("EX_DB_SSL_MODE", "disable")
	if cfg.DBSeedFromFiles, err = env.getBool("EX_DB_SEED_FROM_FILES", false); err != nil {
		return fmt.Errorf("EX_DB_SEED_FROM_FILES: %w", err)
	}
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// MigrateURL возвращает URL базы в формате golang-migrate (pgx5://).
func (c *Config) MigrateURL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// TLSEnabled сообщает, настроен ли TLS сервера.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// readConfigFile читает YAML-файл с плоским набором ключей.
// Ключ "data_dir" соответствует переменной EX_DATA_DIR; допускается
// и полное имя переменной.
func readConfigFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("разбор %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToUpper(k)
		if !strings.HasPrefix(key, "EX_") {
			key = "EX_" + key
		}
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("ключ %s: ожидалось скалярное значение", k)
		case nil:
			continue
		}
		values[key] = fmt.Sprint(v)
	}
	return values, nil
}

// --- Вспомогательные функции ---

// envSource - переменные окружения поверх значений из файла конфигурации.
type envSource struct {
	file map[string]string
}

// lookup возвращает значение переменной окружения, а если она пуста -
// значение из файла конфигурации.
func (e *envSource) lookup(key string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return e.file[key]
}

// getRequired возвращает значение или ошибку, если оно не задано.
func (e *envSource) getRequired(key string) (string, error) {
	val := e.lookup(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getDefault возвращает значение или значение по умолчанию.
func (e *envSource) getDefault(key, defaultVal string) string {
	val := e.lookup(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getInt возвращает целочисленное значение или значение по умолчанию.
func (e *envSource) getInt(key string, defaultVal int) (int, error) {
	val := e.lookup(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getBool возвращает логическое значение или значение по умолчанию.
func (e *envSource) getBool(key string, defaultVal bool) (bool, error) {
	val := e.lookup(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getDuration возвращает time.Duration или значение по умолчанию.
func (e *envSource) getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := e.lookup(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
