// Пакет docgen - генераторы документов экспорта (PDF, Excel, Word).
//
// Каждый генератор принимает Document и пишет готовый файл в io.Writer.
// Генераторы не знают о хранилище артефактов: куда попадут байты,
// решает вызывающая сторона.
package docgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/bigkaa/queenofscience/export-module/internal/domain/model"
)

// ErrUnsupported - пара (коллекция, формат) не поддерживается.
var ErrUnsupported = errors.New("комбинация коллекции и формата не поддерживается")

const (
	// dateLayout - формат даты записи (M/D/YYYY)
	dateLayout = "1/2/2006"
	// stampLayout - формат отметки времени генерации
	stampLayout = "1/2/2006, 3:04:05 PM"
	// contentLimit - лимит символов содержимого в ячейке таблицы
	contentLimit = 500
	// ellipsis - маркер усечения
	ellipsis = "..."
)

// Generator - генератор документа одного формата.
type Generator interface {
	// Format возвращает формат, который производит генератор.
	Format() model.Format
	// Generate пишет документ в w. При ошибке содержимое w не определено.
	Generate(ctx context.Context, w io.Writer, doc *Document) error
}

// Document - входные данные генератора.
// Для коллекций статей и вопросов заполнен Posts, для пользователей - Users.
type Document struct {
	Collection  model.Collection
	Title       string
	GeneratedAt time.Time
	Location    *time.Location
	Posts       []model.Post
	Users       []model.User
}

// NewDocument создаёт документ с заголовком по коллекции.
// nil-локация означает UTC.
func NewDocument(c model.Collection, generatedAt time.Time, loc *time.Location) *Document {
	if loc == nil {
		loc = time.UTC
	}
	return &Document{
		Collection:  c,
		Title:       fmt.Sprintf("Queen of Science - %s Export", c.DisplayName()),
		GeneratedAt: generatedAt,
		Location:    loc,
	}
}

// Stamp возвращает строку "Generated on: ...".
func (d *Document) Stamp() string {
	return "Generated on: " + d.GeneratedAt.In(d.location()).Format(stampLayout)
}

// FormatDate форматирует дату записи. Пустая дата даёт пустую строку.
func (d *Document) FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(d.location()).Format(dateLayout)
}

// Heading возвращает заголовок i-й записи (нумерация с 1).
func (d *Document) Heading(i int, title string) string {
	return fmt.Sprintf("%s %d: %s", d.Collection.ItemLabel(), i, title)
}

// Byline возвращает строку "Author: ... | Date: ...".
func (d *Document) Byline(p *model.Post) string {
	return fmt.Sprintf("Author: %s | Date: %s", p.Author, d.FormatDate(p.CreatedAt))
}

func (d *Document) location() *time.Location {
	if d.Location == nil {
		return time.UTC
	}
	return d.Location
}

// generators - реестр генераторов по формату.
var generators = map[model.Format]Generator{
	model.FormatPDF:   PDFGenerator{},
	model.FormatExcel: ExcelGenerator{},
	model.FormatWord:  WordGenerator{},
}

// supported - допустимые форматы для каждой коллекции.
var supported = map[model.Collection]map[model.Format]bool{
	model.CollectionArticles:  {model.FormatPDF: true, model.FormatExcel: true, model.FormatWord: true},
	model.CollectionQuestions: {model.FormatPDF: true, model.FormatExcel: true, model.FormatWord: true},
	model.CollectionUsers:     {model.FormatExcel: true},
}

// For возвращает генератор для формата.
func For(f model.Format) (Generator, error) {
	g, ok := generators[f]
	if !ok {
		return nil, fmt.Errorf("%w: формат %q", ErrUnsupported, f)
	}
	return g, nil
}

// Supports проверяет, что коллекцию можно выгрузить в формат.
func Supports(c model.Collection, f model.Format) bool {
	return supported[c][f]
}

// TruncateContent обрезает текст до 500 символов (рун) и добавляет "...".
// Текст не длиннее лимита возвращается без изменений.
func TruncateContent(s string) string {
	if utf8.RuneCountInString(s) <= contentLimit {
		return s
	}
	return string([]rune(s)[:contentLimit]) + ellipsis
}

// checkPosts проверяет, что документ содержит записи-посты.
func checkPosts(doc *Document, f model.Format) error {
	if doc.Collection == model.CollectionUsers || !Supports(doc.Collection, f) {
		return fmt.Errorf("%w: %s/%s", ErrUnsupported, doc.Collection, f)
	}
	return nil
}
