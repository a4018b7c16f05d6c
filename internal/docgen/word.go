package docgen

import (
	"archive/zip"
	"bufio"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bigkaa/queenofscience/export-module/internal/domain/model"
)

// Размеры шрифтов Word (половины пункта) и отступ ответов (twips).
const (
	wordTitleSize   = 32
	wordStampSize   = 20
	wordHeadingSize = 24
	wordBylineSize  = 18
	wordBodySize    = 22
	wordRepliesSize = 20
	wordReplySize   = 18
	wordReplyIndent = 720
)

const (
	nsMain = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

	contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
		`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>` +
		`</Types>`

	relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
		`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties" Target="docProps/app.xml"/>` +
		`</Relationships>`

	appXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">` +
		`<Application>queenofscience export-module</Application></Properties>`

	sectPrXML = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/>` +
		`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="708" w:footer="708" w:gutter="0"/>` +
		`</w:sectPr>`
)

// WordGenerator - генератор DOCX для статей и вопросов.
type WordGenerator struct{}

// Format возвращает model.FormatWord.
func (WordGenerator) Format() model.Format { return model.FormatWord }

// Generate пишет OOXML-пакет в w.
func (WordGenerator) Generate(ctx context.Context, w io.Writer, doc *Document) error {
	if err := checkPosts(doc, model.FormatWord); err != nil {
		return err
	}

	zw := zip.NewWriter(w)

	parts := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"[Content_Types].xml", staticPart(contentTypesXML)},
		{"_rels/.rels", staticPart(relsXML)},
		{"docProps/app.xml", staticPart(appXML)},
		{"docProps/core.xml", func(pw io.Writer) error { return writeCoreProps(pw, doc) }},
		{"word/document.xml", func(pw io.Writer) error { return writeDocumentXML(ctx, pw, doc) }},
	}

	for _, part := range parts {
		pw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     part.name,
			Method:   zip.Deflate,
			Modified: doc.GeneratedAt,
		})
		if err != nil {
			return fmt.Errorf("часть %s: %w", part.name, err)
		}
		if err := part.write(pw); err != nil {
			return fmt.Errorf("часть %s: %w", part.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("запись DOCX: %w", err)
	}
	return nil
}

func staticPart(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func writeCoreProps(w io.Writer, doc *Document) error {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"`)
	b.WriteString(` xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/"`)
	b.WriteString(` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`)
	b.WriteString(`<dc:title>`)
	if err := xml.EscapeText(&b, []byte(doc.Title)); err != nil {
		return err
	}
	b.WriteString(`</dc:title><dc:creator>queenofscience export-module</dc:creator>`)
	created := doc.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z")
	b.WriteString(`<dcterms:created xsi:type="dcterms:W3CDTF">` + created + `</dcterms:created>`)
	b.WriteString(`</cp:coreProperties>`)
	_, err := io.WriteString(w, b.String())
	return err
}

// wordParagraph - абзац из одного фрагмента текста.
type wordParagraph struct {
	text   string
	size   int
	bold   bool
	center bool
	indent int
}

func writeDocumentXML(ctx context.Context, w io.Writer, doc *Document) error {
	pw := &paragraphWriter{w: bufio.NewWriter(w)}

	pw.raw(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	pw.raw(`<w:document xmlns:w="` + nsMain + `"><w:body>`)

	pw.paragraph(wordParagraph{text: doc.Title, size: wordTitleSize, bold: true, center: true})
	pw.paragraph(wordParagraph{text: doc.Stamp(), size: wordStampSize, center: true})
	pw.empty()

	for i := range doc.Posts {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := &doc.Posts[i]

		pw.paragraph(wordParagraph{text: doc.Heading(i+1, p.Title), size: wordHeadingSize, bold: true})
		pw.paragraph(wordParagraph{text: doc.Byline(p), size: wordBylineSize})
		pw.paragraph(wordParagraph{text: p.Content, size: wordBodySize})

		if p.HasReplies() {
			pw.paragraph(wordParagraph{text: "Replies:", size: wordRepliesSize, bold: true})
			for _, r := range p.Replies {
				pw.paragraph(wordParagraph{
					text:   r.Author + ": " + r.Text,
					size:   wordReplySize,
					indent: wordReplyIndent,
				})
			}
		}
		pw.empty()
	}

	pw.raw(sectPrXML)
	pw.raw(`</w:body></w:document>`)
	return pw.flush()
}

// paragraphWriter пишет разметку WordprocessingML, запоминая первую ошибку.
type paragraphWriter struct {
	w   *bufio.Writer
	err error
}

func (p *paragraphWriter) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = p.w.WriteString(s)
}

func (p *paragraphWriter) text(s string) {
	if p.err != nil {
		return
	}
	p.err = xml.EscapeText(p.w, []byte(s))
}

func (p *paragraphWriter) empty() {
	p.raw(`<w:p/>`)
}

func (p *paragraphWriter) paragraph(para wordParagraph) {
	p.raw(`<w:p>`)
	if para.indent > 0 || para.center {
		p.raw(`<w:pPr>`)
		if para.indent > 0 {
			p.raw(`<w:ind w:left="` + strconv.Itoa(para.indent) + `"/>`)
		}
		if para.center {
			p.raw(`<w:jc w:val="center"/>`)
		}
		p.raw(`</w:pPr>`)
	}

	p.raw(`<w:r><w:rPr>`)
	if para.bold {
		p.raw(`<w:b/>`)
	}
	size := strconv.Itoa(para.size)
	p.raw(`<w:sz w:val="` + size + `"/><w:szCs w:val="` + size + `"/></w:rPr>`)

	// Переводы строк внутри текста становятся разрывами строки в том же абзаце.
	lines := strings.Split(strings.ReplaceAll(para.text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if i > 0 {
			p.raw(`<w:br/>`)
		}
		p.raw(`<w:t xml:space="preserve">`)
		p.text(line)
		p.raw(`</w:t>`)
	}
	p.raw(`</w:r></w:p>`)
}

func (p *paragraphWriter) flush() error {
	if p.err != nil {
		return p.err
	}
	return p.w.Flush()
}
