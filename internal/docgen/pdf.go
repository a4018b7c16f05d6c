package docgen

import (
	"context"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/bigkaa/queenofscience/export-module/internal/domain/model"
)

// Размеры шрифтов PDF (пункты).
const (
	pdfTitleSize   = 20
	pdfStampSize   = 12
	pdfHeadingSize = 16
	pdfBylineSize  = 10
	pdfBodySize    = 12
	pdfRepliesSize = 14
	pdfReplySize   = 10

	pdfFont       = "Helvetica"
	pdfLineHeight = 6.0
)

// PDFGenerator - генератор PDF для статей и вопросов.
// Каждая запись начинается с новой страницы.
type PDFGenerator struct {
	// Uncompressed отключает сжатие потоков страниц (используется в тестах).
	Uncompressed bool
}

// Format возвращает model.FormatPDF.
func (PDFGenerator) Format() model.Format { return model.FormatPDF }

// Generate пишет PDF-документ в w.
func (g PDFGenerator) Generate(ctx context.Context, w io.Writer, doc *Document) error {
	if err := checkPosts(doc, model.FormatPDF); err != nil {
		return err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(!g.Uncompressed)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("queenofscience export-module", true)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetModificationDate(doc.GeneratedAt)

	// Базовые шрифты работают в cp1252; непредставимые символы заменяются.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont(pdfFont, "", pdfTitleSize)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "C", false, 0, "")
	pdf.Ln(pdfLineHeight)
	pdf.SetFont(pdfFont, "", pdfStampSize)
	pdf.CellFormat(0, pdfLineHeight, tr(doc.Stamp()), "", 1, "C", false, 0, "")
	pdf.Ln(2 * pdfLineHeight)

	for i := range doc.Posts {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := &doc.Posts[i]

		pdf.SetFont(pdfFont, "U", pdfHeadingSize)
		pdf.MultiCell(0, 8, tr(doc.Heading(i+1, p.Title)), "", "L", false)
		pdf.Ln(pdfLineHeight)

		pdf.SetFont(pdfFont, "", pdfBylineSize)
		pdf.MultiCell(0, 5, tr(doc.Byline(p)), "", "L", false)
		pdf.Ln(pdfLineHeight)

		pdf.SetFont(pdfFont, "", pdfBodySize)
		pdf.MultiCell(0, pdfLineHeight, tr(p.Content), "", "L", false)
		pdf.Ln(pdfLineHeight)

		if p.HasReplies() {
			pdf.SetFont(pdfFont, "U", pdfRepliesSize)
			pdf.CellFormat(0, 7, "Replies:", "", 1, "L", false, 0, "")
			pdf.SetFont(pdfFont, "", pdfReplySize)
			for k, r := range p.Replies {
				line := fmt.Sprintf("%d. %s: %s", k+1, r.Author, r.Text)
				pdf.MultiCell(0, 5, tr(line), "", "L", false)
				pdf.Ln(pdfLineHeight / 2)
			}
		}

		if i < len(doc.Posts)-1 {
			pdf.AddPage()
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("построение PDF: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("запись PDF: %w", err)
	}
	return nil
}
