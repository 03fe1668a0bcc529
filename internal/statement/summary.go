package statement

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-categorizer/internal/categorizer"
	"github.com/insightdelivered/statement-categorizer/internal/models"
)

// Summarize totals records by direction. Net is TotalIn - TotalOut.
func Summarize(records []models.Record) models.Summary {
	s := models.Summary{
		Count:    len(records),
		TotalOut: decimal.Zero,
		TotalIn:  decimal.Zero,
	}
	for _, r := range records {
		if r.Direction == models.DirectionIn {
			s.TotalIn = s.TotalIn.Add(r.Amount)
		} else {
			s.TotalOut = s.TotalOut.Add(r.Amount)
		}
	}
	s.Net = s.TotalIn.Sub(s.TotalOut)
	return s
}

// Breakdown totals records per (category, direction), largest amount first
// within each direction, money out before money in.
func Breakdown(records []models.Record) []models.CategoryTotal {
	type key struct {
		cat string
		dir models.Direction
	}
	idx := make(map[key]int)
	var out []models.CategoryTotal
	for _, r := range records {
		dir := r.Direction
		if dir != models.DirectionIn {
			dir = models.DirectionOut
		}
		k := key{r.Category, dir}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, models.CategoryTotal{Category: r.Category, Direction: dir, Amount: decimal.Zero})
		}
		out[i].Count++
		out[i].Amount = out[i].Amount.Add(r.Amount)
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Direction != out[b].Direction {
			return out[a].Direction == models.DirectionOut
		}
		if c := out[a].Amount.Cmp(out[b].Amount); c != 0 {
			return c > 0
		}
		return out[a].Category < out[b].Category
	})
	return out
}

// Reclassify assigns categories again with cfg, typically after the
// category rules changed, and refreshes the totals. It returns how many
// records changed category.
func Reclassify(result *models.StatementResult, cfg *categorizer.Config) int {
	changed := 0
	for i := range result.Records {
		r := &result.Records[i]
		if cat := cfg.Classify(r.Description, r.Direction); cat != r.Category {
			r.Category = cat
			changed++
		}
	}
	result.Summary = Summarize(result.Records)
	result.Breakdown = Breakdown(result.Records)
	return changed
}
