package docgen

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/queenofscience/export-module/internal/domain/model"
)

var testGeneratedAt = time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC)

func ptrTime(t time.Time) *time.Time { return &t }

func ptrInt(v int64) *int64 { return &v }

// samplePosts - две записи: первая с двумя ответами, вторая без ответов.
func samplePosts() []model.Post {
	return []model.Post{
		{
			ID:        "a1",
			Title:     "First",
			Content:   "Body one",
			Author:    "alice",
			CreatedAt: ptrTime(time.Date(2026, 3, 4, 10, 20, 30, 0, time.UTC)),
			Replies: []model.Reply{
				{Author: "bob", Text: "hi", CreatedAt: ptrTime(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))},
				{Author: "carol", Text: "hello"},
			},
		},
		{
			ID:      "a2",
			Title:   "Second",
			Content: "Body two",
			Author:  "dave",
			Replies: []model.Reply{},
		},
	}
}

func postsDocument(c model.Collection, posts []model.Post) *Document {
	doc := NewDocument(c, testGeneratedAt, time.UTC)
	doc.Posts = posts
	return doc
}

func TestSupports(t *testing.T) {
	tests := []struct {
		c    model.Collection
		f    model.Format
		want bool
	}{
		{model.CollectionArticles, model.FormatPDF, true},
		{model.CollectionArticles, model.FormatExcel, true},
		{model.CollectionArticles, model.FormatWord, true},
		{model.CollectionQuestions, model.FormatPDF, true},
		{model.CollectionQuestions, model.FormatWord, true},
		{model.CollectionUsers, model.FormatExcel, true},
		{model.CollectionUsers, model.FormatPDF, false},
		{model.CollectionUsers, model.FormatWord, false},
		{"comments", model.FormatExcel, false},
	}
	for _, tt := range tests {
		if got := Supports(tt.c, tt.f); got != tt.want {
			t.Errorf("Supports(%s, %s) = %v, ожидалось %v", tt.c, tt.f, got, tt.want)
		}
	}
}

func TestFor(t *testing.T) {
	for _, f := range []model.Format{model.FormatPDF, model.FormatExcel, model.FormatWord} {
		g, err := For(f)
		if err != nil {
			t.Fatalf("For(%s): %v", f, err)
		}
		if g.Format() != f {
			t.Errorf("For(%s) вернул генератор формата %s", f, g.Format())
		}
	}
	if _, err := For("odt"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("ожидалась ErrUnsupported, получено %v", err)
	}
}

func TestDocument_Texts(t *testing.T) {
	doc := NewDocument(model.CollectionQuestions, testGeneratedAt, nil)

	if doc.Title != "Queen of Science - Questions Export" {
		t.Errorf("Title: %q", doc.Title)
	}
	if got := doc.Stamp(); got != "Generated on: 3/10/2026, 3:04:05 PM" {
		t.Errorf("Stamp: %q", got)
	}
	if got := doc.Heading(2, "Why?"); got != "Question 2: Why?" {
		t.Errorf("Heading: %q", got)
	}
	if got := doc.FormatDate(nil); got != "" {
		t.Errorf("пустая дата должна давать пустую строку, получено %q", got)
	}

	p := samplePosts()[0]
	if got := doc.Byline(&p); got != "Author: alice | Date: 3/4/2026" {
		t.Errorf("Byline: %q", got)
	}
}

func TestDocument_Location(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	doc := NewDocument(model.CollectionArticles, time.Date(2026, 12, 31, 22, 30, 0, 0, time.UTC), loc)

	if got := doc.Stamp(); got != "Generated on: 1/1/2027, 1:30:00 AM" {
		t.Errorf("Stamp с часовым поясом: %q", got)
	}
}

func TestTruncateContent(t *testing.T) {
	exact := strings.Repeat("ж", 500)
	if got := TruncateContent(exact); got != exact {
		t.Error("текст длиной 500 символов не должен усекаться")
	}

	long := strings.Repeat("ж", 501)
	got := TruncateContent(long)
	if got != exact+"..." {
		t.Errorf("ожидалось 500 символов и \"...\", получено %d рун", len([]rune(got)))
	}

	if TruncateContent("") != "" {
		t.Error("пустая строка должна остаться пустой")
	}
}

// TestGenerators_ContextCancelled проверяет прерывание генерации по контексту.
func TestGenerators_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gens := []Generator{PDFGenerator{}, ExcelGenerator{}, WordGenerator{}}
	for _, g := range gens {
		err := g.Generate(ctx, io.Discard, postsDocument(model.CollectionArticles, samplePosts()))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("%s: ожидалась context.Canceled, получено %v", g.Format(), err)
		}
	}
}
