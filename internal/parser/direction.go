package parser

import (
	"github.com/insightdelivered/statement-categorizer/internal/models"
	"github.com/insightdelivered/statement-categorizer/internal/textnorm"
)

// incomeCues mark money received. First match wins; everything else is a
// debit.
var incomeCues = []string{
	"VIREMENT RECU", "VIR RECU", "RECU", "VERSEMENT", "DEPOT", "SALAIRE",
	"REMBOURSEMENT", "CREDIT", "DEPOSIT", "SALARY", "TRANSFER RECEIVED",
	"TRANSFER FROM",
}

// ClassifyDirection decides whether a statement line is money in or out.
func ClassifyDirection(line string) models.Direction {
	if textnorm.ContainsAny(textnorm.Upper(line), incomeCues) {
		return models.DirectionIn
	}
	return models.DirectionOut
}
