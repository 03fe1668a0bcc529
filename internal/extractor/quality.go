package extractor

import (
	"strings"
	"unicode"

	"github.com/insightdelivered/statement-categorizer/internal/textnorm"
)

// statementWords appear in virtually every bank statement, French or
// English. Text containing none of them is most likely decoding garbage.
var statementWords = []string{
	"BANQUE", "BANK", "COMPTE", "ACCOUNT", "SOLDE", "BALANCE", "RELEVE",
	"STATEMENT", "DATE", "OPERATION", "LIBELLE", "DEBIT", "CREDIT",
	"VIREMENT", "TRANSFER", "PAIEMENT", "PAYMENT", "MONTANT", "AMOUNT",
	"TOTAL", "PAGE", "PERIODE", "PERIOD",
}

const (
	minReadableLen     = 50
	minReadableQuality = 0.6
)

// isReadableText reports whether pages look like real statement text rather
// than the output of an undecodable font encoding.
func isReadableText(pages []string) bool {
	if totalTextLen(pages) <= minReadableLen {
		return false
	}
	if textQuality(pages) <= minReadableQuality {
		return false
	}
	return containsStatementWords(pages)
}

// textQuality is the share of characters that are ASCII letters, digits,
// whitespace, punctuation, currency signs or French accented letters.
// unicode.IsLetter is too broad: identity-encoded fonts decode to arbitrary
// letters from other scripts.
func textQuality(pages []string) float64 {
	total, readable := 0, 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if isReadableRune(r) {
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

func isReadableRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case unicode.IsSpace(r):
		return true
	case strings.ContainsRune(".,-/:;()'\"%&@#!?+=*|_€$£", r):
		return true
	case strings.ContainsRune("éèêëàâäçùûüôöîïÉÈÊÀÇÔ", r):
		return true
	}
	return false
}

func containsStatementWords(pages []string) bool {
	folded := textnorm.Upper(strings.Join(pages, " "))
	return textnorm.ContainsAny(folded, statementWords)
}

func totalTextLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}
