package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/insightdelivered/statement-categorizer/internal/models"
	"github.com/insightdelivered/statement-categorizer/internal/textnorm"
)

// Memory is an in-memory ResultStore. Data is lost on restart.
type Memory struct {
	mu         sync.RWMutex
	statements map[string]*models.StatementResult
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{statements: make(map[string]*models.StatementResult)}
}

func (m *Memory) Save(_ context.Context, r *models.StatementResult) error {
	if r.ID == "" {
		return fmt.Errorf("statement ID is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statements[r.ID] = cloneResult(r)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*models.StatementResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.statements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneResult(r), nil
}

func (m *Memory) GetByName(_ context.Context, fileName string) (*models.StatementResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.sorted() {
		if r.FileName == fileName {
			return cloneResult(r), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, fileName)
}

func (m *Memory) List(_ context.Context, p Page) (Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return paginate(m.sorted(), p), nil
}

func (m *Memory) Search(_ context.Context, query string, p Page) (Listing, error) {
	q := textnorm.Upper(strings.TrimSpace(query))

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []*models.StatementResult
	for _, r := range m.sorted() {
		if q == "" || matches(r, q) {
			hits = append(hits, r)
		}
	}
	return paginate(hits, p), nil
}

func (m *Memory) UpdateRecords(_ context.Context, r *models.StatementResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.statements[r.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, r.ID)
	}
	next := cloneResult(cur)
	src := cloneResult(r)
	next.Records = src.Records
	next.Summary = src.Summary
	next.Breakdown = src.Breakdown
	m.statements[r.ID] = next
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.statements[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.statements, id)
	return nil
}

func (m *Memory) Close() error { return nil }

// sorted returns the statements newest first. Callers hold the lock.
func (m *Memory) sorted() []*models.StatementResult {
	out := make([]*models.StatementResult, 0, len(m.statements))
	for _, r := range m.statements {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ParsedAt.Equal(out[j].ParsedAt) {
			return out[i].ParsedAt.After(out[j].ParsedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// matches reports whether the folded query q occurs in the file name, a
// record or a metadata value of r.
func matches(r *models.StatementResult, q string) bool {
	if strings.Contains(textnorm.Upper(r.FileName), q) {
		return true
	}
	for _, rec := range r.Records {
		if strings.Contains(textnorm.Upper(rec.Description), q) ||
			strings.Contains(textnorm.Upper(rec.Category), q) ||
			strings.Contains(rec.Date, q) {
			return true
		}
	}
	for _, v := range r.Metadata {
		if strings.Contains(textnorm.Upper(v), q) {
			return true
		}
	}
	return false
}

func paginate(all []*models.StatementResult, p Page) Listing {
	p = p.Normalize()
	l := Listing{Total: len(all), Page: p.Number, Size: p.Size, Items: []models.StatementHeader{}}
	start := p.Offset()
	if start >= len(all) {
		return l
	}
	end := min(start+p.Size, len(all))
	for _, r := range all[start:end] {
		l.Items = append(l.Items, r.Header())
	}
	return l
}

var _ ResultStore = (*Memory)(nil)
