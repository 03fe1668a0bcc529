package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
)

// Placeholder is used when no description survives cleaning.
const Placeholder = "Opération sans libellé"

// Date patterns found in statements: DD/MM/YYYY with "/", "-" or "." as the
// separator. Two-digit years are accepted and expanded to 20YY.
var (
	datePattern        = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})\b`)
	leadingDatePattern = regexp.MustCompile(`^\s*(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})\b`)
)

// Amount-shaped substrings: "1,234.56", "1 234,56", "150.50", "85,00".
var amountPattern = regexp.MustCompile(`\b\d{1,3}(?:[ ,]\d{3})+[.,]\d{2}\b|\b\d+[.,]\d{2}\b`)

var (
	// Commas followed by exactly three digits are thousands separators.
	thousandsComma = regexp.MustCompile(`,(\d{3})(\D|$)`)
	// A trailing ",NN" is a decimal comma.
	decimalComma = regexp.MustCompile(`,(\d{2})$`)
	// Tabs or runs of 2+ spaces separate columns in a tabular rendering.
	columnSeparator = regexp.MustCompile(`\t+|\s{2,}`)
)

var currencyReplacer = strings.NewReplacer(
	"MAD", "", "mad", "",
	"DH", "", "dh", "", "Dh", "",
	"€", "", "$", "", "£", "",
	" ", "", "\u00a0", "", "\u202f", "", "\t", "",
)

// ParseAmount converts "1,234.56", "1 234,56" or "150.50" to a non-negative
// decimal with two places. Text that does not parse yields zero.
func ParseAmount(s string) decimal.Decimal {
	s = currencyReplacer.Replace(strings.TrimSpace(s))
	for thousandsComma.MatchString(s) {
		s = thousandsComma.ReplaceAllString(s, "$1$2")
	}
	s = decimalComma.ReplaceAllString(s, ".$1")
	s = strings.Trim(s, "+-")
	if s == "" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d.Abs().Round(2)
}

// dateMatch is one date token located in a line.
type dateMatch struct {
	Value      string // normalised DD/MM/YYYY
	Start, End int
}

// normalizeDate validates and pads the captured day, month and year.
func normalizeDate(day, month, year string) (string, bool) {
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return "", false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return "", false
	}
	if len(year) == 2 {
		year = "20" + year
	}
	return fmt.Sprintf("%02d/%02d/%s", d, m, year), true
}

// findDates returns every valid date token in line, in order.
func findDates(line string) []dateMatch {
	var out []dateMatch
	for _, loc := range datePattern.FindAllStringSubmatchIndex(line, -1) {
		v, ok := normalizeDate(line[loc[2]:loc[3]], line[loc[4]:loc[5]], line[loc[6]:loc[7]])
		if !ok {
			continue
		}
		out = append(out, dateMatch{Value: v, Start: loc[0], End: loc[1]})
	}
	return out
}

// splitLeadingDate returns the normalised date a line starts with and the
// remainder after it.
func splitLeadingDate(line string) (date, rest string, ok bool) {
	m := leadingDatePattern.FindStringSubmatchIndex(line)
	if m == nil {
		return "", "", false
	}
	date, ok = normalizeDate(line[m[2]:m[3]], line[m[4]:m[5]], line[m[6]:m[7]])
	if !ok {
		return "", "", false
	}
	return date, line[m[1]:], true
}

// startsWithDate checks if a line begins with a valid date.
func startsWithDate(line string) bool {
	_, _, ok := splitLeadingDate(line)
	return ok
}

// maskDates blanks out date tokens so their digits are never read as
// amounts. Offsets into the line are preserved.
func maskDates(line string) string {
	dates := findDates(line)
	if len(dates) == 0 {
		return line
	}
	b := []byte(line)
	for _, d := range dates {
		for i := d.Start; i < d.End; i++ {
			b[i] = ' '
		}
	}
	return string(b)
}

// findAmountIndexes locates amount-shaped substrings, ignoring dates. A
// space-grouped amount must open a column; otherwise its leading groups
// belong to the text before it, so "GAB 12 200.00" yields "200.00".
func findAmountIndexes(line string) [][]int {
	masked := maskDates(line)
	locs := amountPattern.FindAllStringIndex(masked, -1)
	for _, loc := range locs {
		for !opensColumn(masked, loc[0]) {
			sp := strings.IndexByte(masked[loc[0]:loc[1]], ' ')
			if sp < 0 {
				break
			}
			loc[0] += sp + 1
		}
	}
	return locs
}

// opensColumn reports whether position i follows the line start, a tab or a
// run of two or more spaces.
func opensColumn(s string, i int) bool {
	before := s[:i]
	if strings.TrimSpace(before) == "" {
		return true
	}
	return strings.HasSuffix(before, "\t") || strings.HasSuffix(before, "  ")
}

// FindAmounts returns every amount-shaped substring of line, in order.
func FindAmounts(line string) []string {
	locs := findAmountIndexes(line)
	out := make([]string, 0, len(locs))
	for _, loc := range locs {
		out = append(out, line[loc[0]:loc[1]])
	}
	return out
}

// hasAmount reports whether line carries at least one amount.
func hasAmount(line string) bool {
	return len(findAmountIndexes(line)) > 0
}

// stripDatesAndAmounts removes every date and amount token from line.
func stripDatesAndAmounts(line string) string {
	masked := []byte(maskDates(line))
	for _, loc := range findAmountIndexes(line) {
		for i := loc[0]; i < loc[1]; i++ {
			masked[i] = ' '
		}
	}
	return string(masked)
}

// cleanDescription collapses whitespace and strips pipes and leading or
// trailing dashes.
func cleanDescription(s string) string {
	s = strings.ReplaceAll(s, "|", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(strings.Trim(s, "-–— "))
}

// orPlaceholder substitutes Placeholder for an empty description.
func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

// RecordID derives a stable id from the identifying fields of a record.
func RecordID(date, description string, amount decimal.Decimal) string {
	sum := xxhash.Sum64String(date + "|" + description + "|" + amount.StringFixed(2))
	return fmt.Sprintf("%016x", sum)
}
