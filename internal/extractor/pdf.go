// Package extractor turns PDF bytes into plain text.
//
// The ledongthuc/pdf reader is tried first with several layout strategies.
// Next the content streams are scanned directly and decoded through the
// document's ToUnicode CMaps. When that fails too the document is handed
// to pdftotext (poppler-utils) and, if enabled, to tesseract OCR.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

// Extraction methods reported in Document.Method.
const (
	MethodRows      = "rows"
	MethodContent   = "content"
	MethodPlainText = "plain-text"
	MethodRaw       = "raw"
	MethodPdftotext = "pdftotext"
	MethodOCR       = "ocr"
)

var (
	ErrEmptyDocument = errors.New("document buffer is empty")
	ErrUnreadable    = errors.New("no readable text could be extracted from the PDF")
)

// Document is the text of a PDF, pages joined by blank lines.
type Document struct {
	Text      string
	PageCount int
	Method    string
}

// PDFExtractor extracts text from in-memory PDF documents.
type PDFExtractor struct {
	log zerolog.Logger
	ocr bool
	// tools runs the external fallbacks; replaced in tests.
	tools toolRunner
}

// NewPDFExtractor returns an extractor. With ocr set, image-only documents
// are run through tesseract as a last resort.
func NewPDFExtractor(log zerolog.Logger, ocr bool) *PDFExtractor {
	return &PDFExtractor{log: log, ocr: ocr, tools: execRunner{}}
}

// Extract returns the text of the PDF in data.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (Document, error) {
	if len(data) == 0 {
		return Document{}, ErrEmptyDocument
	}

	pages, numPages, method, libErr := extractWithLibrary(data)
	if libErr == nil && isReadableText(pages) {
		return newDocument(pages, numPages, method), nil
	}
	if libErr != nil {
		e.log.Debug().Err(libErr).Msg("pdf library extraction failed")
	}
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	if raw := extractRaw(data); isReadableText(raw) {
		return newDocument(raw, numPages, MethodRaw), nil
	}

	path, cleanup, err := writeTemp(data)
	if err != nil {
		return Document{}, err
	}
	defer cleanup()

	if numPages == 0 {
		numPages = pageCount(ctx, e.tools, path)
	}

	pages, err = extractWithPdftotext(ctx, e.tools, path, numPages)
	if err == nil && isReadableText(pages) {
		return newDocument(pages, numPages, MethodPdftotext), nil
	}
	if err != nil {
		e.log.Debug().Err(err).Msg("pdftotext extraction failed")
	}

	if e.ocr {
		pages, err = extractWithOCR(ctx, e.tools, path)
		if err == nil && totalTextLen(pages) > 0 {
			return newDocument(pages, max(numPages, len(pages)), MethodOCR), nil
		}
		if err != nil {
			e.log.Debug().Err(err).Msg("ocr extraction failed")
		}
	}

	if libErr != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrUnreadable, libErr)
	}
	return Document{}, ErrUnreadable
}

func newDocument(pages []string, numPages int, method string) Document {
	if numPages == 0 {
		numPages = len(pages)
	}
	return Document{Text: strings.Join(pages, "\n\n"), PageCount: numPages, Method: method}
}

// libraryStrategy reads one page with the ledongthuc/pdf reader.
type libraryStrategy struct {
	method string
	page   func(pdf.Page) string
}

// libraryStrategies are tried in order. Row and content layouts keep column
// gaps as two spaces so the record parser can split columns.
var libraryStrategies = []libraryStrategy{
	{MethodRows, rowsText},
	{MethodContent, contentText},
	{MethodPlainText, plainText},
}

// extractWithLibrary tries each ledongthuc/pdf strategy in turn and returns
// the first readable result. The library panics on some malformed files.
func extractWithLibrary(data []byte) (pages []string, numPages int, method string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, "", err
	}
	numPages = r.NumPage()
	if numPages == 0 {
		return nil, 0, "", errors.New("pdf has no pages")
	}

	for _, s := range libraryStrategies {
		if pages = readPages(r, numPages, s.page); isReadableText(pages) {
			return pages, numPages, s.method, nil
		}
	}
	if text := readerPlainText(r); isReadableText([]string{text}) {
		return []string{text}, numPages, MethodPlainText, nil
	}
	return pages, numPages, MethodPlainText, nil
}

func readPages(r *pdf.Reader, numPages int, read func(pdf.Page) string) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		if text := read(page); text != "" {
			pages = append(pages, text)
		}
	}
	return pages
}

// columnGap is the horizontal distance, in points, treated as a column
// boundary when rebuilding rows from positioned text.
const columnGap = 15

// rowTolerance is how far apart, in points, two baselines may be and still
// count as one row. Amount columns are often set a fraction of a point
// off the description.
const rowTolerance = 2.0

// joinRow writes positioned pieces, already in X order, as one line.
// Pieces separated by more than columnGap get a two-space column break.
func joinRow(row []pdf.Text, sep string) string {
	var sb strings.Builder
	for j, t := range row {
		if j > 0 {
			prev := row[j-1]
			if t.X-(prev.X+prev.W) > columnGap {
				sb.WriteString("  ")
			} else {
				sb.WriteString(sep)
			}
		}
		sb.WriteString(t.S)
	}
	return strings.TrimSpace(sb.String())
}

func rowsText(page pdf.Page) string {
	rows, err := page.GetTextByRow()
	if err != nil {
		return ""
	}
	var lines []string
	for _, row := range rows {
		if line := joinRow(row.Content, " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// contentText rebuilds rows from the page's positioned glyph runs: runs are
// sorted top to bottom, baselines within rowTolerance are merged, and each
// row is ordered by X.
func contentText(page pdf.Page) string {
	var runs []pdf.Text
	for _, t := range page.Content().Text {
		if strings.TrimSpace(t.S) != "" {
			runs = append(runs, t)
		}
	}
	sort.SliceStable(runs, func(a, b int) bool { return runs[a].Y > runs[b].Y })

	var lines []string
	flush := func(row []pdf.Text) {
		sort.SliceStable(row, func(a, b int) bool { return row[a].X < row[b].X })
		if line := joinRow(row, ""); line != "" {
			lines = append(lines, line)
		}
	}
	var row []pdf.Text
	for _, t := range runs {
		if len(row) > 0 && math.Abs(row[0].Y-t.Y) > rowTolerance {
			flush(row)
			row = nil
		}
		row = append(row, t)
	}
	if len(row) > 0 {
		flush(row)
	}
	return strings.Join(lines, "\n")
}

func plainText(page pdf.Page) string {
	fonts := make(map[string]*pdf.Font)
	for _, name := range page.Fonts() {
		f := page.Font(name)
		fonts[name] = &f
	}
	text, err := page.GetPlainText(fonts)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func readerPlainText(r *pdf.Reader) string {
	rd, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(rd)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
