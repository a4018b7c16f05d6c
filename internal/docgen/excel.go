package docgen

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/bigkaa/queenofscience/export-module/internal/domain/model"
)

const (
	repliesSheet = "Replies"
	usersSheet   = "Users"
	headerFill   = "E6E6FA"
)

// column - колонка листа: заголовок и ширина.
type column struct {
	header string
	width  float64
}

var postColumns = []column{
	{"ID", 10},
	{"Title", 30},
	{"Author", 20},
	{"Content", 50},
	{"Date", 15},
	{"Replies Count", 15},
}

var userColumns = []column{
	{"ID", 10},
	{"Unique ID Name", 20},
	{"Email/Phone", 25},
	{"User Type", 15},
	{"Name", 20},
	{"Age", 10},
	{"College", 25},
	{"Articles Count", 15},
	{"Questions Count", 15},
	{"Registration Date", 20},
}

// replyColumns возвращает колонки листа ответов с подписью родительской записи.
func replyColumns(label string) []column {
	return []column{
		{label + " ID", 15},
		{label + " Title", 30},
		{"Reply Author", 20},
		{"Reply Text", 50},
		{"Reply Date", 15},
	}
}

// ExcelGenerator - генератор книги XLSX для всех коллекций.
type ExcelGenerator struct{}

// Format возвращает model.FormatExcel.
func (ExcelGenerator) Format() model.Format { return model.FormatExcel }

// Generate пишет книгу XLSX в w.
func (ExcelGenerator) Generate(ctx context.Context, w io.Writer, doc *Document) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   doc.Title,
		Creator: "queenofscience export-module",
		Created: doc.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}); err != nil {
		return fmt.Errorf("свойства книги: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
	})
	if err != nil {
		return fmt.Errorf("стиль заголовка: %w", err)
	}

	sb := &sheetBuilder{file: f, headerStyle: headerStyle}

	switch doc.Collection {
	case model.CollectionUsers:
		err = writeUsers(ctx, sb, doc)
	case model.CollectionArticles, model.CollectionQuestions:
		err = writePosts(ctx, sb, doc)
	default:
		err = fmt.Errorf("%w: %s/%s", ErrUnsupported, doc.Collection, model.FormatExcel)
	}
	if err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("запись XLSX: %w", err)
	}
	return nil
}

func writePosts(ctx context.Context, sb *sheetBuilder, doc *Document) error {
	sheet := doc.Collection.DisplayName()
	// Первый лист книги создаётся по умолчанию как Sheet1.
	if err := sb.file.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("лист %s: %w", sheet, err)
	}
	if err := sb.header(sheet, postColumns); err != nil {
		return err
	}

	withReplies := false
	for i := range doc.Posts {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := &doc.Posts[i]
		if p.HasReplies() {
			withReplies = true
		}
		row := []any{
			p.ID,
			p.Title,
			p.Author,
			TruncateContent(p.Content),
			doc.FormatDate(p.CreatedAt),
			len(p.Replies),
		}
		if err := sb.row(sheet, i+2, row); err != nil {
			return err
		}
	}

	if !withReplies {
		return nil
	}

	if _, err := sb.file.NewSheet(repliesSheet); err != nil {
		return fmt.Errorf("лист %s: %w", repliesSheet, err)
	}
	if err := sb.header(repliesSheet, replyColumns(doc.Collection.ItemLabel())); err != nil {
		return err
	}

	rowNum := 2
	for i := range doc.Posts {
		p := &doc.Posts[i]
		for _, r := range p.Replies {
			row := []any{p.ID, p.Title, r.Author, r.Text, doc.FormatDate(r.CreatedAt)}
			if err := sb.row(repliesSheet, rowNum, row); err != nil {
				return err
			}
			rowNum++
		}
	}
	return nil
}

func writeUsers(ctx context.Context, sb *sheetBuilder, doc *Document) error {
	if err := sb.file.SetSheetName("Sheet1", usersSheet); err != nil {
		return fmt.Errorf("лист %s: %w", usersSheet, err)
	}
	if err := sb.header(usersSheet, userColumns); err != nil {
		return err
	}

	for i := range doc.Users {
		if err := ctx.Err(); err != nil {
			return err
		}
		u := &doc.Users[i]
		row := []any{
			u.ID,
			u.UniqueID,
			u.Contact(),
			u.UserType,
			u.Name,
			optionalInt(u.Age),
			u.College,
			optionalInt(u.ArticleCount),
			optionalInt(u.ResponseCount),
			doc.FormatDate(u.RegistrationDate),
		}
		if err := sb.row(usersSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

// optionalInt возвращает число или пустую строку для отсутствующего значения.
func optionalInt(v *int64) any {
	if v == nil {
		return ""
	}
	return *v
}

// sheetBuilder - запись строк и оформление заголовков листа.
type sheetBuilder struct {
	file        *excelize.File
	headerStyle int
}

// header пишет строку заголовка, задаёт ширины колонок и стиль.
func (b *sheetBuilder) header(sheet string, cols []column) error {
	headers := make([]any, len(cols))
	for i, c := range cols {
		headers[i] = c.header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := b.file.SetColWidth(sheet, name, name, c.width); err != nil {
			return fmt.Errorf("ширина колонки %s!%s: %w", sheet, name, err)
		}
	}

	if err := b.row(sheet, 1, headers); err != nil {
		return err
	}

	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return err
	}
	if err := b.file.SetCellStyle(sheet, "A1", last, b.headerStyle); err != nil {
		return fmt.Errorf("стиль заголовка %s: %w", sheet, err)
	}
	return nil
}

// row пишет значения в строку rowNum (нумерация с 1).
func (b *sheetBuilder) row(sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := b.file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("строка %s!%d: %w", sheet, rowNum, err)
	}
	return nil
}
