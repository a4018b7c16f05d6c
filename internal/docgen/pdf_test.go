package docgen

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/bigkaa/queenofscience/export-module/internal/domain/model"
)

// pageObject - объект страницы в несжатом PDF (без корневого /Pages).
var pageObject = regexp.MustCompile(`/Type /Page[^s]`)

func renderPDF(t *testing.T, doc *Document) string {
	t.Helper()
	var buf bytes.Buffer
	if err := (PDFGenerator{Uncompressed: true}).Generate(context.Background(), &buf, doc); err != nil {
		t.Fatalf("ошибка генерации PDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatal("результат не начинается с сигнатуры PDF")
	}
	return buf.String()
}

// TestPDF_PagePerRecord проверяет: каждая запись на своей странице,
// блок ответов только у записей с ответами.
func TestPDF_PagePerRecord(t *testing.T) {
	out := renderPDF(t, postsDocument(model.CollectionArticles, samplePosts()))

	if pages := len(pageObject.FindAllString(out, -1)); pages != 2 {
		t.Errorf("ожидалось 2 страницы, получено %d", pages)
	}
	if n := strings.Count(out, "(Replies:)"); n != 1 {
		t.Errorf("ожидался 1 блок ответов, получено %d", n)
	}

	first := strings.Index(out, "(Article 1: First)")
	replies := strings.Index(out, "(Replies:)")
	second := strings.Index(out, "(Article 2: Second)")
	if first < 0 || replies < 0 || second < 0 {
		t.Fatalf("в PDF нет ожидаемых строк: first=%d replies=%d second=%d", first, replies, second)
	}
	if !(first < replies && replies < second) {
		t.Error("нарушен порядок: заголовок 1, ответы, заголовок 2")
	}

	for _, want := range []string{
		"(Author: alice | Date: 3/4/2026)",
		"(1. bob: hi)",
		"(2. carol: hello)",
		"(Body two)",
		"(Generated on: 3/10/2026, 3:04:05 PM)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("в PDF нет строки %s", want)
		}
	}
}

// TestPDF_Empty проверяет документ без записей: одна страница с заголовком.
func TestPDF_Empty(t *testing.T) {
	out := renderPDF(t, postsDocument(model.CollectionQuestions, nil))

	if pages := len(pageObject.FindAllString(out, -1)); pages != 1 {
		t.Errorf("ожидалась 1 страница, получено %d", pages)
	}
	if !strings.Contains(out, "(Queen of Science - Questions Export)") {
		t.Error("нет заголовка документа")
	}
	if strings.Contains(out, "(Replies:)") {
		t.Error("в пустом документе не должно быть блока ответов")
	}
}

// TestPDF_NonLatinText проверяет, что непредставимые в cp1252 символы не ломают генерацию.
func TestPDF_NonLatinText(t *testing.T) {
	posts := []model.Post{{ID: "1", Title: "Привет, 世界", Content: "Café ✓", Author: "ёж", Replies: []model.Reply{}}}
	out := renderPDF(t, postsDocument(model.CollectionArticles, posts))

	if pages := len(pageObject.FindAllString(out, -1)); pages != 1 {
		t.Errorf("ожидалась 1 страница, получено %d", pages)
	}
}

func TestPDF_UsersUnsupported(t *testing.T) {
	doc := NewDocument(model.CollectionUsers, testGeneratedAt, nil)
	var buf bytes.Buffer
	err := PDFGenerator{}.Generate(context.Background(), &buf, doc)
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("ожидалась ErrUnsupported, получено %v", err)
	}
	if buf.Len() != 0 {
		t.Error("при неподдерживаемой коллекции ничего не должно записываться")
	}
}
