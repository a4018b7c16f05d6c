// Пакет artifacts - хранилище сгенерированных файлов экспорта.
//
// Файл пишется потоково во временный скрытый файл, затем fsync и атомарный
// rename. Пока запись не завершена, файл не виден в List и недоступен для
// скачивания. Срока хранения нет: файл живёт до явного удаления.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/queenofscience/export-module/internal/domain/model"
)

var (
	// ErrNotFound - файл не существует.
	ErrNotFound = errors.New("файл экспорта не найден")
	// ErrInvalidName - имя не может ссылаться на файл хранилища.
	ErrInvalidName = errors.New("недопустимое имя файла")
)

var (
	artifactsCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ex_artifacts_count",
		Help: "Количество файлов экспорта в хранилище.",
	})
	artifactsBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ex_artifacts_bytes",
		Help: "Суммарный размер файлов экспорта в байтах.",
	})
)

// Store - директория файлов экспорта.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
	// pending - имена, выданные NewName, запись которых ещё не завершена
	pending map[string]struct{}
}

// New создаёт хранилище и директорию, если её нет.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию экспорта %s: %w", dir, err)
	}
	return &Store{
		dir:     dir,
		logger:  logger.With(slog.String("component", "artifacts")),
		now:     time.Now,
		pending: make(map[string]struct{}),
	}, nil
}

// Dir возвращает директорию хранилища.
func (s *Store) Dir() string {
	return s.dir
}

// NewName выдаёт уникальное имя {collection}_export_{epoch-millis}.{ext}.
// Если имя на текущую миллисекунду занято, берётся следующая.
func (s *Store) NewName(c model.Collection, f model.Format) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now()
	for {
		name := model.ExportName(c, f, ts)
		if _, busy := s.pending[name]; !busy && !s.exists(name) {
			s.pending[name] = struct{}{}
			return name
		}
		ts = ts.Add(time.Millisecond)
	}
}

func (s *Store) exists(name string) bool {
	_, err := os.Lstat(filepath.Join(s.dir, name))
	return err == nil
}

func (s *Store) release(name string) {
	s.mu.Lock()
	delete(s.pending, name)
	s.mu.Unlock()
}

// Write создаёт файл name, записывая содержимое через fn.
// Если fn вернула ошибку или контекст отменён, временный файл удаляется
// и в хранилище ничего не появляется.
func (s *Store) Write(ctx context.Context, name string, fn func(io.Writer) error) (*model.Artifact, error) {
	defer s.release(name)

	if err := ValidateName(name); err != nil {
		return nil, err
	}

	fullPath := filepath.Join(s.dir, name)
	tmpPath := filepath.Join(s.dir, "."+name+"."+uuid.New().String()+".tmp")

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	cw := &countingWriter{w: f}
	if err := fn(cw); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения информации о файле %s: %w", name, err)
	}

	s.logger.Info("Файл экспорта сохранён",
		slog.String("name", name),
		slog.Int64("size", cw.n),
	)
	s.refreshMetrics()

	return toArtifact(info), nil
}

// List возвращает файлы хранилища, отсортированные по имени.
// Скрытые (в том числе временные) файлы и поддиректории пропускаются.
func (s *Store) List(ctx context.Context) ([]model.Artifact, error) {
	result, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	updateGauges(result)
	return result, nil
}

func (s *Store) list(ctx context.Context) ([]model.Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.Artifact{}, nil
		}
		return nil, fmt.Errorf("ошибка чтения директории экспорта: %w", err)
	}

	result := make([]model.Artifact, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Файл удалён между ReadDir и Stat
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("ошибка получения информации о файле %s: %w", e.Name(), err)
		}
		result = append(result, *toArtifact(info))
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Open открывает файл для чтения. Вызывающий код обязан закрыть файл.
func (s *Store) Open(name string) (*os.File, *model.Artifact, error) {
	if err := ValidateName(name); err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("ошибка открытия файла %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("ошибка получения информации о файле %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, ErrNotFound
	}
	return f, toArtifact(info), nil
}

// Delete удаляет файл.
func (s *Store) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	fullPath := filepath.Join(s.dir, name)
	info, err := os.Lstat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка получения информации о файле %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return ErrNotFound
	}

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка удаления файла %s: %w", name, err)
	}

	s.logger.Info("Файл экспорта удалён", slog.String("name", name))
	s.refreshMetrics()
	return nil
}

// Ping проверяет, что в директорию можно писать.
func (s *Store) Ping() error {
	f, err := os.CreateTemp(s.dir, ".ping-*.tmp")
	if err != nil {
		return fmt.Errorf("директория экспорта недоступна для записи: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// ValidateName отклоняет имена, которые могут выйти за пределы директории
// или указывают на скрытые файлы.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return ErrInvalidName
	case strings.ContainsAny(name, "/\\\x00"):
		return ErrInvalidName
	case strings.HasPrefix(name, "."):
		return ErrInvalidName
	}
	return nil
}

func (s *Store) refreshMetrics() {
	items, err := s.list(context.Background())
	if err != nil {
		s.logger.Warn("Не удалось обновить метрики хранилища", slog.String("error", err.Error()))
		return
	}
	updateGauges(items)
}

func updateGauges(items []model.Artifact) {
	var total int64
	for _, a := range items {
		total += a.Size
	}
	artifactsCount.Set(float64(len(items)))
	artifactsBytes.Set(float64(total))
}

// toArtifact строит описание файла. Время создания берётся из mtime:
// os.FileInfo не даёт время рождения файла переносимо.
func toArtifact(info fs.FileInfo) *model.Artifact {
	mod := info.ModTime().UTC()
	return &model.Artifact{
		Name:       info.Name(),
		Size:       info.Size(),
		CreatedAt:  mod,
		ModifiedAt: mod,
	}
}

// countingWriter считает записанные байты.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
