package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/insightdelivered/statement-categorizer/internal/models"
)

// Strategy names, strictest first.
const (
	StrategyDateAtStart   = "date-at-start"
	StrategyDateAnywhere  = "date-anywhere"
	StrategyNeighbourDate = "keyword-neighbour-date"
)

// neighbourWindow is how many lines before and after a keyword line are
// searched for its date.
const neighbourWindow = 3

// ctxCheckEvery bounds how many lines are scanned between cancellation checks.
const ctxCheckEvery = 256

func checkContext(ctx context.Context, i int) error {
	if i%ctxCheckEvery != 0 {
		return nil
	}
	return ctx.Err()
}

// extractDateAtStart handles tabular statements where every transaction row
// starts with its date:
//
//	02/01/2024  PAIEMENT PAR CARTE 4112 BIM 1714           150.50
func extractDateAtStart(ctx context.Context, lines []string, cls Classifier) (StrategyResult, error) {
	var res StrategyResult
	for i, line := range lines {
		if err := checkContext(ctx, i); err != nil {
			return res, err
		}
		if skipLine(line) {
			continue
		}
		date, rest, ok := splitLeadingDate(line)
		if !ok {
			continue
		}
		amounts := FindAmounts(line)
		if len(amounts) == 0 && !hasTransactionKeyword(line) {
			continue
		}
		res.Matches++
		if len(amounts) == 0 {
			res.Warnings = append(res.Warnings, skipWarning(StrategyDateAtStart, line, "no amount"))
			continue
		}
		desc := columnDescription(rest)
		res.Records = append(res.Records, buildRecord(date, desc, amounts[len(amounts)-1], line, cls))
	}
	return res, nil
}

// extractDateAnywhere accepts a date at any position when the line also
// names a transaction type.
func extractDateAnywhere(ctx context.Context, lines []string, cls Classifier) (StrategyResult, error) {
	var res StrategyResult
	for i, line := range lines {
		if err := checkContext(ctx, i); err != nil {
			return res, err
		}
		if skipLine(line) || !hasTransactionKeyword(line) {
			continue
		}
		dates := findDates(line)
		if len(dates) == 0 {
			continue
		}
		res.Matches++
		amounts := FindAmounts(line)
		if len(amounts) == 0 {
			res.Warnings = append(res.Warnings, skipWarning(StrategyDateAnywhere, line, "no amount"))
			continue
		}
		desc := cleanDescription(stripDatesAndAmounts(line))
		res.Records = append(res.Records, buildRecord(dates[0].Value, desc, amounts[len(amounts)-1], line, cls))
	}
	return res, nil
}

// extractNeighbourDate is the last resort for layouts where the date sits on
// its own line: any keyword line qualifies and borrows the nearest date
// within neighbourWindow lines.
func extractNeighbourDate(ctx context.Context, lines []string, cls Classifier) (StrategyResult, error) {
	var res StrategyResult
	for i, line := range lines {
		if err := checkContext(ctx, i); err != nil {
			return res, err
		}
		if skipLine(line) || !hasTransactionKeyword(line) {
			continue
		}
		res.Matches++
		date := nearestDate(lines, i)
		if date == "" {
			res.Warnings = append(res.Warnings, skipWarning(StrategyNeighbourDate, line, "no date nearby"))
			continue
		}
		amounts := FindAmounts(line)
		if len(amounts) == 0 {
			res.Warnings = append(res.Warnings, skipWarning(StrategyNeighbourDate, line, "no amount"))
			continue
		}
		desc := cleanDescription(stripDatesAndAmounts(line))
		res.Records = append(res.Records, buildRecord(date, desc, amounts[len(amounts)-1], line, cls))
	}
	return res, nil
}

// nearestDate returns the date on line i itself, else the closest date within
// neighbourWindow lines, looking backwards first at each distance.
func nearestDate(lines []string, i int) string {
	if d := findDates(lines[i]); len(d) > 0 {
		return d[0].Value
	}
	for dist := 1; dist <= neighbourWindow; dist++ {
		for _, j := range []int{i - dist, i + dist} {
			if j < 0 || j >= len(lines) {
				continue
			}
			if d := findDates(lines[j]); len(d) > 0 {
				return d[0].Value
			}
		}
	}
	return ""
}

// columnDescription picks the description out of the text following the
// leading date: the first column left non-empty once its dates and amounts
// are removed, else everything before the last amount, else the whole
// remainder.
func columnDescription(rest string) string {
	rest = strings.TrimSpace(rest)
	for _, seg := range columnSeparator.Split(rest, -1) {
		if d := cleanDescription(stripDatesAndAmounts(seg)); d != "" {
			return d
		}
	}
	if locs := findAmountIndexes(rest); len(locs) > 0 {
		if d := cleanDescription(rest[:locs[len(locs)-1][0]]); d != "" {
			return d
		}
	}
	return cleanDescription(rest)
}

// buildRecord assembles a classified record. The transaction amount is the
// last amount on the line; earlier ones are running balances.
func buildRecord(date, desc, amountText, raw string, cls Classifier) models.Record {
	desc = orPlaceholder(desc)
	amount := ParseAmount(amountText)
	dir := ClassifyDirection(raw)

	rec := models.Record{
		ID:          RecordID(date, desc, amount),
		Date:        date,
		Description: desc,
		Amount:      amount,
		Direction:   dir,
		RawText:     raw,
	}
	if cls != nil {
		rec.Category = cls.Classify(desc, dir)
	}
	return rec
}

func skipWarning(strategy, line, reason string) string {
	return fmt.Sprintf("%s: skipped line (%s): %q", strategy, reason, line)
}
