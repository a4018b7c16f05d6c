// Пакет service - бизнес-логика Export Module.
// ExportService ведёт запрос экспорта от проверки прав до сохранения файла
// и управляет жизненным циклом сохранённых файлов.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/queenofscience/export-module/internal/docgen"
	"github.com/bigkaa/queenofscience/export-module/internal/domain/model"
	"github.com/bigkaa/queenofscience/export-module/internal/domain/pipeline"
	"github.com/bigkaa/queenofscience/export-module/internal/storage/artifacts"
)

// Ошибки сервиса экспорта. Обработчики сопоставляют их с HTTP-кодами.
var (
	ErrForbidden   = errors.New("недостаточно прав для экспорта")
	ErrUnsupported = errors.New("экспорт в этот формат не поддерживается")
	ErrNotFound    = errors.New("файл экспорта не найден")
	ErrGeneration  = errors.New("ошибка генерации документа")
	ErrStorage     = errors.New("ошибка хранилища файлов экспорта")
)

// Результаты экспорта для метрик.
const (
	resultCompleted = "completed"
	resultFailed    = "failed"
)

var (
	exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ex_exports_total",
		Help: "Количество запросов экспорта по коллекции, формату и результату.",
	}, []string{"collection", "format", "result"})

	exportFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ex_export_failures_total",
		Help: "Количество неудачных экспортов по шагу, на котором произошёл сбой.",
	}, []string{"stage"})

	exportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ex_export_duration_seconds",
		Help:    "Длительность экспорта от запроса до сохранения файла.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"collection", "format"})
)

// Principal - вызывающий пользователь, определённый по токену.
type Principal struct {
	Subject  string
	UserType string
}

// RecordLoader - чтение коллекций. Никогда не возвращает ошибку:
// недоступная коллекция читается как пустая.
type RecordLoader interface {
	Posts(ctx context.Context, c model.Collection) []model.Post
	Users(ctx context.Context) []model.User
}

// ArtifactStore - хранилище файлов экспорта.
type ArtifactStore interface {
	NewName(c model.Collection, f model.Format) string
	Write(ctx context.Context, name string, fn func(io.Writer) error) (*model.Artifact, error)
	List(ctx context.Context) ([]model.Artifact, error)
	Open(name string) (*os.File, *model.Artifact, error)
	Delete(name string) error
}

// ExportOptions - параметры ExportService.
type ExportOptions struct {
	// MemberUserType - user_type, которому разрешён экспорт
	MemberUserType string
	// Location - часовой пояс дат в документах (nil - UTC)
	Location *time.Location
}

// ExportResult - ответ на успешный экспорт.
type ExportResult struct {
	Message     string `json:"message"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"downloadUrl"`
}

// ExportService - оркестратор экспорта.
type ExportService struct {
	loader       RecordLoader
	store        ArtifactStore
	opts         ExportOptions
	generatorFor func(model.Format) (docgen.Generator, error)
	now          func() time.Time
	logger       *slog.Logger
}

// NewExportService создаёт сервис экспорта.
func NewExportService(loader RecordLoader, store ArtifactStore, opts ExportOptions, logger *slog.Logger) *ExportService {
	if opts.MemberUserType == "" {
		opts.MemberUserType = "Member"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &ExportService{
		loader:       loader,
		store:        store,
		opts:         opts,
		generatorFor: docgen.For,
		now:          time.Now,
		logger:       logger.With(slog.String("component", "export")),
	}
}

// authorize проверяет право на экспорт и управление файлами.
func (s *ExportService) authorize(p Principal) error {
	if p.UserType != s.opts.MemberUserType {
		return fmt.Errorf("%w: user_type %q", ErrForbidden, p.UserType)
	}
	return nil
}

// Export формирует документ из коллекции и сохраняет его в хранилище.
// Шаги запроса: requested → authorized → loaded → generated → stored → completed;
// при ошибке запрос переходит в failed и файл не создаётся.
func (s *ExportService) Export(ctx context.Context, p Principal, c model.Collection, f model.Format) (*ExportResult, error) {
	req := pipeline.NewRequest()
	result, err := s.runExport(ctx, req, p, c, f)

	outcome := resultCompleted
	if err != nil {
		outcome = resultFailed
		if req.Current() != pipeline.StateFailed {
			_ = req.Fail()
		}
		exportFailuresTotal.WithLabelValues(string(req.FailedIn())).Inc()
		s.logger.Warn("Экспорт не выполнен",
			slog.String("collection", string(c)),
			slog.String("format", string(f)),
			slog.String("subject", p.Subject),
			slog.String("failed_in", string(req.FailedIn())),
			slog.String("error", err.Error()),
		)
	}
	exportsTotal.WithLabelValues(string(c), string(f), outcome).Inc()
	exportDuration.WithLabelValues(string(c), string(f)).Observe(req.Duration().Seconds())

	return result, err
}

func (s *ExportService) runExport(
	ctx context.Context, req *pipeline.Request, p Principal, c model.Collection, f model.Format,
) (*ExportResult, error) {
	if err := s.authorize(p); err != nil {
		return nil, err
	}
	if err := req.Advance(pipeline.StateAuthorized); err != nil {
		return nil, err
	}

	if !docgen.Supports(c, f) {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupported, c, f)
	}
	gen, err := s.generatorFor(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	doc := docgen.NewDocument(c, s.now(), s.opts.Location)
	var count int
	if c == model.CollectionUsers {
		doc.Users = s.loader.Users(ctx)
		count = len(doc.Users)
	} else {
		doc.Posts = s.loader.Posts(ctx, c)
		count = len(doc.Posts)
	}
	if err := req.Advance(pipeline.StateLoaded); err != nil {
		return nil, err
	}

	name := s.store.NewName(c, f)
	var genErr error
	artifact, err := s.store.Write(ctx, name, func(w io.Writer) error {
		if genErr = gen.Generate(ctx, w, doc); genErr != nil {
			return genErr
		}
		return req.Advance(pipeline.StateGenerated)
	})
	switch {
	case genErr != nil:
		return nil, fmt.Errorf("%w: %v", ErrGeneration, genErr)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := req.Advance(pipeline.StateStored); err != nil {
		return nil, err
	}
	if err := req.Advance(pipeline.StateCompleted); err != nil {
		return nil, err
	}

	s.logger.Info("Экспорт выполнен",
		slog.String("collection", string(c)),
		slog.String("format", string(f)),
		slog.String("filename", artifact.Name),
		slog.Int("records", count),
		slog.Int64("size", artifact.Size),
		slog.String("subject", p.Subject),
		slog.Duration("duration", req.Duration()),
	)

	return &ExportResult{
		Message:     fmt.Sprintf("%s exported to %s successfully", c.DisplayName(), f.DisplayName()),
		Filename:    artifact.Name,
		DownloadURL: "download/" + artifact.Name,
	}, nil
}

// List возвращает сохранённые файлы экспорта.
func (s *ExportService) List(ctx context.Context, p Principal) ([]model.Artifact, error) {
	if err := s.authorize(p); err != nil {
		return nil, err
	}
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return items, nil
}

// ServeDownload отдаёт файл как вложение. Ошибка возвращается до записи
// ответа; после начала отдачи http.ServeContent сам обрабатывает Range
// и условные запросы.
func (s *ExportService) ServeDownload(w http.ResponseWriter, r *http.Request, p Principal, name string) error {
	if err := s.authorize(p); err != nil {
		return err
	}

	f, artifact, err := s.store.Open(name)
	if err != nil {
		return mapStoreError(err)
	}
	defer f.Close()

	w.Header().Set("Content-Type", model.ContentTypeByName(artifact.Name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Name))
	http.ServeContent(w, r, artifact.Name, artifact.ModifiedAt, f)

	s.logger.Debug("Файл экспорта отдан",
		slog.String("filename", artifact.Name),
		slog.String("subject", p.Subject),
	)
	return nil
}

// Delete удаляет файл экспорта.
func (s *ExportService) Delete(_ context.Context, p Principal, name string) error {
	if err := s.authorize(p); err != nil {
		return err
	}
	if err := s.store.Delete(name); err != nil {
		return mapStoreError(err)
	}
	s.logger.Info("Файл экспорта удалён пользователем",
		slog.String("filename", name),
		slog.String("subject", p.Subject),
	)
	return nil
}

// mapStoreError сводит ошибки хранилища к ошибкам сервиса.
// Недопустимое имя не может указывать на файл, поэтому это тоже NotFound.
func mapStoreError(err error) error {
	if errors.Is(err, artifacts.ErrNotFound) || errors.Is(err, artifacts.ErrInvalidName) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
