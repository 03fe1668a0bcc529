// Package statement turns an uploaded bank statement into categorised
// records and their totals.
package statement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-categorizer/internal/categorizer"
	"github.com/insightdelivered/statement-categorizer/internal/extractor"
	"github.com/insightdelivered/statement-categorizer/internal/models"
	"github.com/insightdelivered/statement-categorizer/internal/parser"
)

const (
	// minTextLength is the shortest extracted text accepted as a statement.
	minTextLength = 100
	maxFileName   = 1000
	defaultName   = "statement.pdf"
)

// TextExtractor returns the plain text of a document.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (extractor.Document, error)
}

// CategorySource hands out the category configuration to classify with.
type CategorySource interface {
	Snapshot() *categorizer.Config
}

// Processor runs the statement pipeline: text extraction, record
// extraction, classification and totals. It keeps no per-call state and is
// safe for concurrent use.
type Processor struct {
	text       TextExtractor
	categories CategorySource
	records    *parser.Extractor
	timeout    time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

// Option customises a Processor.
type Option func(*Processor)

// WithTimeout bounds the time spent on one document. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(p *Processor) { p.timeout = d }
}

// WithRecordExtractor replaces the default strategy cascade.
func WithRecordExtractor(e *parser.Extractor) Option {
	return func(p *Processor) { p.records = e }
}

// NewProcessor returns a Processor reading text with text and categories
// from categories.
func NewProcessor(text TextExtractor, categories CategorySource, log zerolog.Logger, opts ...Option) *Processor {
	p := &Processor{
		text:       text,
		categories: categories,
		records:    parser.NewExtractor(log),
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process parses the document in data. Failures the caller should report
// to the user are returned as *Error.
func (p *Processor) Process(ctx context.Context, data []byte, fileName string, metadata map[string]string) (*models.StatementResult, error) {
	if len(data) == 0 {
		return nil, invalidInput("document buffer is empty")
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	fileName = SanitizeFileName(fileName)
	log := p.log.With().Str("file", fileName).Logger()

	doc, err := p.text.Extract(ctx, data)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Kind: KindExtraction, Msg: "the document took too long to read", Err: err}
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &Error{Kind: KindExtraction, Msg: "could not read text from the document", Err: err}
	}
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return nil, &Error{Kind: KindExtraction, Msg: "the document contains no text"}
	}
	if utf8.RuneCountInString(text) < minTextLength {
		return nil, &Error{Kind: KindExtraction, Msg: "the document contains too little text to be a bank statement"}
	}

	var warnings []string
	if issuer, ok := parser.DetectIssuer(text); ok {
		log = log.With().Str("issuer", issuer).Logger()
	} else {
		log.Warn().Msg("no known bank identified in the document")
		warnings = append(warnings, "no known bank identified in the document")
	}

	cfg := p.categories.Snapshot()
	ext, err := p.records.Extract(ctx, parser.SplitLines(text), cfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Kind: KindExtraction, Msg: "the document took too long to parse", Err: err}
		}
		return nil, fmt.Errorf("extracting records: %w", err)
	}
	warnings = append(warnings, ext.Warnings...)
	if len(ext.Records) == 0 {
		log.Info().Strs("strategies", ext.Attempted).Msg("no records found")
		return nil, &Error{
			Kind: KindNoRecords,
			Msg:  "no transactions were found; the document may not be a supported bank statement format",
		}
	}

	records := ext.Records
	for i := range records {
		r := &records[i]
		if r.Category == "" {
			r.Category = cfg.Classify(r.Description, r.Direction)
		}
		if r.Amount.IsZero() {
			warnings = append(warnings, fmt.Sprintf("record on %s (%s) has a zero amount", r.Date, r.Description))
		}
	}

	result := &models.StatementResult{
		ID:        uuid.NewString(),
		FileName:  fileName,
		PageCount: doc.PageCount,
		ParsedAt:  p.now().UTC(),
		Strategy:  ext.Strategy,
		Records:   records,
		Summary:   Summarize(records),
		Breakdown: Breakdown(records),
		Warnings:  warnings,
		Metadata:  copyMetadata(metadata),
	}

	log.Info().
		Str("statement_id", result.ID).
		Str("strategy", result.Strategy).
		Int("records", result.Summary.Count).
		Int("warnings", len(warnings)).
		Msg("statement processed")
	return result, nil
}

// SanitizeFileName strips angle brackets and surrounding space and caps the
// name at 1000 characters.
func SanitizeFileName(name string) string {
	name = strings.NewReplacer("<", "", ">", "").Replace(name)
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxFileName {
		name = string([]rune(name)[:maxFileName])
	}
	if name == "" {
		return defaultName
	}
	return name
}

func copyMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
