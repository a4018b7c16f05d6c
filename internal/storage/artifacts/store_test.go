package artifacts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/queenofscience/export-module/internal/domain/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "exports"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("ошибка создания Store: %v", err)
	}
	return s
}

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

// TestNew_CreatesDirectory проверяет создание директории экспорта.
func TestNew_CreatesDirectory(t *testing.T) {
	s := newTestStore(t)
	info, err := os.Stat(s.Dir())
	if err != nil || !info.IsDir() {
		t.Fatalf("директория не создана: %v", err)
	}
	if err := s.Ping(); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestNewName_Unique(t *testing.T) {
	s := newTestStore(t)
	fixed := time.UnixMilli(1767225600000)
	s.now = func() time.Time { return fixed }

	first := s.NewName(model.CollectionArticles, model.FormatPDF)
	second := s.NewName(model.CollectionArticles, model.FormatPDF)

	if first != "articles_export_1767225600000.pdf" {
		t.Errorf("неожиданное имя: %s", first)
	}
	if second != "articles_export_1767225600001.pdf" {
		t.Errorf("повторное имя в ту же миллисекунду должно сдвигаться: %s", second)
	}
	if !model.IsExportName(second) {
		t.Errorf("имя %s не соответствует формату", second)
	}
}

// TestWriteOpenDelete проверяет полный цикл жизни файла.
func TestWriteOpenDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	name := s.NewName(model.CollectionQuestions, model.FormatExcel)

	a, err := s.Write(ctx, name, writeString("payload"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if a.Name != name || a.Size != 7 {
		t.Errorf("артефакт: %+v", a)
	}

	f, info, err := s.Open(name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "payload" || info.Size != 7 {
		t.Errorf("содержимое: %q, размер %d", data, info.Size)
	}

	if err := s.Delete(name); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(name); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторное удаление: ожидалась ErrNotFound, получено %v", err)
	}
	if _, _, err := s.Open(name); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open после удаления: ожидалась ErrNotFound, получено %v", err)
	}
}

// TestWrite_FailureLeavesNothing проверяет, что ошибка генерации не оставляет файлов.
func TestWrite_FailureLeavesNothing(t *testing.T) {
	s := newTestStore(t)
	name := s.NewName(model.CollectionArticles, model.FormatWord)
	boom := errors.New("boom")

	_, err := s.Write(context.Background(), name, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ожидалась исходная ошибка, получено %v", err)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("в директории остались файлы: %v", entries)
	}
}

func TestWrite_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	name := s.NewName(model.CollectionArticles, model.FormatPDF)

	_, err := s.Write(ctx, name, func(w io.Writer) error {
		cancel()
		_, err := io.WriteString(w, "data")
		return err
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидалась context.Canceled, получено %v", err)
	}

	list, err := s.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("после отмены файл не должен появиться: %+v", list)
	}
}

// TestList_SkipsHiddenAndDirs проверяет фильтрацию и сортировку.
func TestList_SkipsHiddenAndDirs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"users_export_3.xlsx", "articles_export_1.pdf", "questions_export_2.pdf"} {
		if _, err := s.Write(ctx, name, writeString(name)); err != nil {
			t.Fatalf("Write %s: %v", name, err)
		}
	}
	// Временный файл незавершённой записи и поддиректория
	if err := os.WriteFile(filepath.Join(s.Dir(), ".articles_export_9.pdf.x.tmp"), []byte("x"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(s.Dir(), "nested"), 0o750); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, a := range list {
		names = append(names, a.Name)
	}
	want := "articles_export_1.pdf,questions_export_2.pdf,users_export_3.xlsx"
	if strings.Join(names, ",") != want {
		t.Errorf("List: ожидалось %s, получено %v", want, names)
	}
	for _, a := range list {
		if a.CreatedAt.IsZero() || a.ModifiedAt.IsZero() {
			t.Errorf("%s: пустое время", a.Name)
		}
	}
}

func TestList_MissingDirectory(t *testing.T) {
	s := newTestStore(t)
	if err := os.Remove(s.Dir()); err != nil {
		t.Fatal(err)
	}
	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List без директории: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("ожидался пустой список, получено %#v", list)
	}
}

// TestValidateName проверяет, что имена не выходят за пределы директории.
func TestValidateName(t *testing.T) {
	bad := []string{"", ".", "..", "../etc/passwd", "a/b.pdf", `a\b.pdf`, ".hidden", "x\x00.pdf"}
	for _, name := range bad {
		if err := ValidateName(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q): ожидалась ErrInvalidName, получено %v", name, err)
		}
	}
	if err := ValidateName("articles_export_1.pdf"); err != nil {
		t.Errorf("корректное имя отклонено: %v", err)
	}

	s := newTestStore(t)
	secret := filepath.Join(filepath.Dir(s.Dir()), "secret.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Open("../secret.txt"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Open с обходом пути: ожидалась ErrInvalidName, получено %v", err)
	}
	if err := s.Delete("../secret.txt"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Delete с обходом пути: ожидалась ErrInvalidName, получено %v", err)
	}
	if _, err := os.Stat(secret); err != nil {
		t.Errorf("файл вне директории затронут: %v", err)
	}
}
