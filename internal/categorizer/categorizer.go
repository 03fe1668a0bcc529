// Package categorizer assigns records to categories by keyword matching.
//
// Classification reads an immutable Config snapshot; Store owns the mutable
// category list and hands out a fresh snapshot after every change, so a
// classification pass never sees a half-applied edit.
package categorizer

import (
	"strings"

	"github.com/insightdelivered/statement-categorizer/internal/models"
	"github.com/insightdelivered/statement-categorizer/internal/textnorm"
)

// Ids of the built-in fallback categories.
const (
	DefaultOutID = "other_expense"
	DefaultInID  = "other_income"
)

// Config is an immutable, ordered set of categories. The order is the match
// priority.
type Config struct {
	categories []models.Category
	keywords   [][]string // folded keywords, parallel to categories
	defaultOut string
	defaultIn  string
}

// NewConfig snapshots categories. Defaults are the categories flagged
// Default and restricted to one direction; the built-in ids are used when
// none is flagged.
func NewConfig(categories []models.Category) *Config {
	c := &Config{
		categories: cloneCategories(categories),
		defaultOut: DefaultOutID,
		defaultIn:  DefaultInID,
	}
	c.keywords = make([][]string, len(c.categories))
	for i, cat := range c.categories {
		for _, kw := range cat.Keywords {
			if kw = textnorm.Upper(kw); strings.TrimSpace(kw) != "" {
				c.keywords[i] = append(c.keywords[i], kw)
			}
		}
		if !cat.Default || len(cat.ApplicableFor) != 1 {
			continue
		}
		switch cat.ApplicableFor[0] {
		case models.DirectionOut:
			c.defaultOut = cat.ID
		case models.DirectionIn:
			c.defaultIn = cat.ID
		}
	}
	return c
}

// DefaultConfig returns a snapshot of the built-in category table.
func DefaultConfig() *Config {
	return NewConfig(DefaultCategories())
}

// Classify returns the id of the first category, in configured order, that
// applies to dir and has a keyword contained in description. Keywords match
// as plain substrings, without word boundaries. When nothing matches, the
// default for dir is returned (the OUT default for an unknown direction).
func (c *Config) Classify(description string, dir models.Direction) string {
	folded := textnorm.Upper(description)
	for i, cat := range c.categories {
		if !cat.AppliesTo(dir) {
			continue
		}
		for _, kw := range c.keywords[i] {
			if strings.Contains(folded, kw) {
				return cat.ID
			}
		}
	}
	return c.DefaultFor(dir)
}

// DefaultFor returns the fallback category id for dir.
func (c *Config) DefaultFor(dir models.Direction) string {
	if dir == models.DirectionIn {
		return c.defaultIn
	}
	return c.defaultOut
}

// Categories returns a copy of the ordered category list.
func (c *Config) Categories() []models.Category {
	return cloneCategories(c.categories)
}

// ClassifyRecords sets the category of every record from its description
// and direction.
func (c *Config) ClassifyRecords(records []models.Record) {
	for i := range records {
		records[i].Category = c.Classify(records[i].Description, records[i].Direction)
	}
}

func cloneCategories(in []models.Category) []models.Category {
	out := make([]models.Category, len(in))
	for i, cat := range in {
		cat.Keywords = append([]string(nil), cat.Keywords...)
		cat.ApplicableFor = append([]models.Direction(nil), cat.ApplicableFor...)
		out[i] = cat
	}
	return out
}
