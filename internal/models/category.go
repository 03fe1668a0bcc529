package models

import "strings"

// Category is a keyword-based classification rule.
type Category struct {
	ID            string      `json:"id" yaml:"id"`
	Name          string      `json:"name" yaml:"name"`
	Color         string      `json:"color" yaml:"color"`
	Description   string      `json:"description,omitempty" yaml:"description,omitempty"`
	Keywords      []string    `json:"keywords" yaml:"keywords"`
	ApplicableFor []Direction `json:"applicableFor,omitempty" yaml:"applicable_for,omitempty"`
	Default       bool        `json:"default,omitempty" yaml:"default,omitempty"`
}

// AppliesTo reports whether the category may be assigned to records with
// direction d. A category without restriction applies to both directions,
// and an unknown direction matches every category.
func (c Category) AppliesTo(d Direction) bool {
	if len(c.ApplicableFor) == 0 || !d.Valid() {
		return true
	}
	for _, a := range c.ApplicableFor {
		if a == d {
			return true
		}
	}
	return false
}

// CategoryID derives the stable id of a category from its name:
// "Food & Dining" -> "food_&_dining".
func CategoryID(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "_"))
}
