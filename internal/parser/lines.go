package parser

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/statement-categorizer/internal/textnorm"
)

// headerPatterns match column headers, disclaimers, page numbers and
// separator rows. They are applied to folded (uppercase, no accents) text.
var headerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bDATE\b.*\b(OPERATION|LIBELLE|DESCRIPTION|VALEUR)\b`),
	regexp.MustCompile(`\bLIBELLE\b`),
	regexp.MustCompile(`\bDEBIT\s+CREDIT\b`),
	regexp.MustCompile(`\bCREDIT\s+DEBIT\b`),
	regexp.MustCompile(`\bPAID\s+OUT\b.*\bPAID\s+IN\b`),
	regexp.MustCompile(`SAUF ERREUR OU OMISSION`),
	regexp.MustCompile(`RELEVE DE COMPTE`),
	regexp.MustCompile(`RELEVE D'IDENTITE BANCAIRE`),
	regexp.MustCompile(`\bCAPITAL (SOCIAL|DE)\b`),
	regexp.MustCompile(`^\s*\d{4}\s*/\s*\d{4}\s*$`),
	regexp.MustCompile(`^\s*PAGE\s*\d+(\s*(/|SUR|OF)\s*\d+)?\s*$`),
	regexp.MustCompile(`^[\s\-=_*.|+~]+$`),
}

// footerURL matches the bank web address printed in page footers. Merchant
// names carry URLs too, so it only applies to lines without a date or amount.
var footerURL = regexp.MustCompile(`\bWWW\.`)

// balanceWords mark running-balance and total rows.
var balanceWords = []string{"SOLDE", "BALANCE", "TOTAL", "TOTAUX"}

// transactionKeywords is the vocabulary that marks a line as a money
// movement: operation types plus frequent merchant brands.
var transactionKeywords = []string{
	"PAIEMENT", "VIREMENT", "VIR ", "RETRAIT", "CARTE", "PRELEVEMENT", "PRLV",
	"FRAIS", "COMMISSION", "CHEQUE", "CHQ", "VERSEMENT", "ACHAT", "REMISE",
	"DEPOT", "GAB", "DAB", "COTISATION", "AGIOS", "REMBOURSEMENT", "TPE",
	"PAYMENT", "TRANSFER", "WITHDRAWAL", "CARD", "DEPOSIT", "DIRECT DEBIT",
	"BIM", "MARJANE", "CARREFOUR", "ACIMA", "JUMIA", "GLOVO", "AMAZON",
	"NETFLIX", "UBER",
}

// minLineLength is the length below which a line without an amount is noise.
const minLineLength = 8

// IsHeaderLine reports whether line is boilerplate rather than data.
func IsHeaderLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < minLineLength && !hasAmount(trimmed) {
		return true
	}
	folded := textnorm.Upper(trimmed)
	for _, p := range headerPatterns {
		if p.MatchString(folded) {
			return true
		}
	}
	return footerURL.MatchString(folded) && len(findDates(trimmed)) == 0 && !hasAmount(trimmed)
}

// IsBalanceLine reports whether line is a running balance or total row.
func IsBalanceLine(line string) bool {
	return textnorm.ContainsAny(textnorm.Upper(line), balanceWords)
}

// hasTransactionKeyword reports whether line mentions a money movement.
func hasTransactionKeyword(line string) bool {
	return textnorm.ContainsAny(textnorm.Upper(line), transactionKeywords)
}

// skipLine is the exclusion applied by every extraction strategy.
func skipLine(line string) bool {
	return IsHeaderLine(line) || IsBalanceLine(line)
}

// SplitLines breaks extracted text into trimmed, non-empty lines.
func SplitLines(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
