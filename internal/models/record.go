package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction says whether money was received or spent.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Record represents a single transaction extracted from a statement.
type Record struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"` // DD/MM/YYYY
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction"`
	Category    string          `json:"category"`
	RawText     string          `json:"rawText,omitempty"`
}

// Summary aggregates the records of one statement.
type Summary struct {
	Count    int             `json:"count"`
	TotalOut decimal.Decimal `json:"totalOut"`
	TotalIn  decimal.Decimal `json:"totalIn"`
	Net      decimal.Decimal `json:"net"`
}

// CategoryTotal is the amount spent or received under one category.
type CategoryTotal struct {
	Category  string          `json:"category"`
	Direction Direction       `json:"direction"`
	Count     int             `json:"count"`
	Amount    decimal.Decimal `json:"amount"`
}

// StatementResult is the full output of processing one document.
type StatementResult struct {
	ID        string            `json:"id"`
	FileName  string            `json:"fileName"`
	PageCount int               `json:"pageCount"`
	ParsedAt  time.Time         `json:"parsedAt"`
	Strategy  string            `json:"strategy,omitempty"`
	Records   []Record          `json:"records"`
	Summary   Summary           `json:"summary"`
	Breakdown []CategoryTotal   `json:"breakdown,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// StatementHeader is the listing view of a stored result, without records.
type StatementHeader struct {
	ID        string    `json:"id"`
	FileName  string    `json:"fileName"`
	PageCount int       `json:"pageCount"`
	ParsedAt  time.Time `json:"parsedAt"`
	Summary   Summary   `json:"summary"`
}

// Header returns the listing view of r.
func (r *StatementResult) Header() StatementHeader {
	return StatementHeader{
		ID:        r.ID,
		FileName:  r.FileName,
		PageCount: r.PageCount,
		ParsedAt:  r.ParsedAt,
		Summary:   r.Summary,
	}
}
