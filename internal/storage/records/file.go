package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/queenofscience/export-module/internal/domain/model"
)

// FileSource - коллекции в JSON-файлах <dir>/<collection>.json.
// Каждый файл - JSON-массив документов.
type FileSource struct {
	dir    string
	cache  *collectionCache
	logger *slog.Logger
}

// NewFileSource создаёт файловый источник. cacheSize <= 0 отключает кэш.
func NewFileSource(dir string, cacheSize int, cacheTTL time.Duration, logger *slog.Logger) *FileSource {
	return &FileSource{
		dir:    dir,
		cache:  newCollectionCache(cacheSize, cacheTTL),
		logger: logger.With(slog.String("component", "file_source")),
	}
}

// Dir возвращает директорию данных.
func (s *FileSource) Dir() string {
	return s.dir
}

func (s *FileSource) path(c model.Collection) string {
	return filepath.Join(s.dir, string(c)+".json")
}

// EnsureCollections создаёт директорию данных и пустые файлы
// для отсутствующих коллекций.
func (s *FileSource) EnsureCollections() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("не удалось создать директорию данных %s: %w", s.dir, err)
	}
	for _, c := range model.Collections() {
		path := s.path(c)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("проверка файла %s: %w", path, err)
		}
		if err := writeFileAtomic(path, []byte("[]\n")); err != nil {
			return err
		}
		s.logger.Info("Создан пустой файл коллекции", slog.String("path", path))
	}
	return nil
}

// Load читает коллекцию. Отсутствующий, нечитаемый или повреждённый
// файл даёт пустой результат.
func (s *FileSource) Load(ctx context.Context, c model.Collection) []json.RawMessage {
	path := s.path(c)

	info, err := os.Stat(path)
	if err != nil {
		s.logger.Warn("Файл коллекции недоступен, коллекция пуста",
			slog.String("collection", string(c)),
			slog.String("error", err.Error()),
		)
		return []json.RawMessage{}
	}

	if docs, ok := s.cache.get(c, info.ModTime(), info.Size()); ok {
		return docs
	}

	if err := ctx.Err(); err != nil {
		return []json.RawMessage{}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("Ошибка чтения файла коллекции, коллекция пуста",
			slog.String("collection", string(c)),
			slog.String("error", err.Error()),
		)
		return []json.RawMessage{}
	}

	var docs []json.RawMessage
	if err := json.Unmarshal(data, &docs); err != nil {
		s.logger.Warn("Повреждённый файл коллекции, коллекция пуста",
			slog.String("collection", string(c)),
			slog.String("error", err.Error()),
		)
		return []json.RawMessage{}
	}
	if docs == nil {
		// null в файле
		docs = []json.RawMessage{}
	}

	s.cache.put(c, info.ModTime(), info.Size(), docs)
	return docs
}

// Save атомарно перезаписывает файл коллекции (JSON с отступом в 2 пробела).
func (s *FileSource) Save(ctx context.Context, c model.Collection, docs []json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if docs == nil {
		docs = []json.RawMessage{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("сериализация коллекции %s: %w", c, err)
	}

	if err := writeFileAtomic(s.path(c), buf.Bytes()); err != nil {
		return err
	}
	s.cache.invalidate(c)
	return nil
}

// Ping проверяет, что директория данных существует.
func (s *FileSource) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("директория данных недоступна: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s не является директорией", s.dir)
	}
	return nil
}

// writeFileAtomic пишет данные во временный файл рядом с целевым,
// выполняет fsync и переименовывает.
func writeFileAtomic(path string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.New().String()+".tmp")

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("не удалось создать временный файл: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("ошибка записи %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("ошибка fsync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ошибка закрытия %s: %w", path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ошибка переименования в %s: %w", path, err)
	}
	return nil
}
