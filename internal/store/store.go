// Package store persists processed statements.
package store

import (
	"context"
	"errors"

	"github.com/insightdelivered/statement-categorizer/internal/models"
)

var ErrNotFound = errors.New("statement not found")

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects a window of a listing. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps p to valid values.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset is the number of items before the page.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Size
}

// Listing is one page of statement headers, newest first.
type Listing struct {
	Items []models.StatementHeader `json:"items"`
	Total int                      `json:"total"`
	Page  int                      `json:"page"`
	Size  int                      `json:"size"`
}

// ResultStore keeps processed statements.
type ResultStore interface {
	Save(ctx context.Context, r *models.StatementResult) error
	Get(ctx context.Context, id string) (*models.StatementResult, error)
	// GetByName returns the most recent statement with that file name.
	GetByName(ctx context.Context, fileName string) (*models.StatementResult, error)
	List(ctx context.Context, p Page) (Listing, error)
	// Search matches query against file names, record text and metadata.
	Search(ctx context.Context, query string, p Page) (Listing, error)
	// UpdateRecords replaces the records, summary and breakdown of a
	// stored statement.
	UpdateRecords(ctx context.Context, r *models.StatementResult) error
	Delete(ctx context.Context, id string) error
	Close() error
}

func cloneResult(r *models.StatementResult) *models.StatementResult {
	c := *r
	c.Records = append([]models.Record(nil), r.Records...)
	c.Breakdown = append([]models.CategoryTotal(nil), r.Breakdown...)
	c.Warnings = append([]string(nil), r.Warnings...)
	if r.Metadata != nil {
		c.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
