package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-categorizer/internal/models"
)

// keywordClassifier is a minimal first-match classifier for tests.
type keywordClassifier []struct {
	keyword  string
	category string
}

func (k keywordClassifier) Classify(desc string, dir models.Direction) string {
	for _, rule := range k {
		if strings.Contains(strings.ToUpper(desc), rule.keyword) {
			return rule.category
		}
	}
	if dir == models.DirectionIn {
		return "other_income"
	}
	return "other_expense"
}

var testClassifier = keywordClassifier{
	{"BIM", "shopping"},
	{"VIREMENT", "transfers"},
	{"RETRAIT", "cash"},
}

func TestDetectIssuer(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
		found    bool
	}{
		{"Attijariwafa", "ATTIJARIWAFA BANK\nRelevé de compte", "Attijariwafa bank", true},
		{"Banque Populaire accents", "Banque Populaire du Centre Sud", "Banque Populaire", true},
		{"CIH", "CIH Bank - extrait de compte", "CIH Bank", true},
		{"unknown", "Some unknown statement", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectIssuer(tt.text)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExtract_DateAtStart(t *testing.T) {
	lines := []string{
		"DATE OPERATION LIBELLE DEBIT CREDIT",
		"02/01/2024  PAIEMENT PAR CARTE 4112 BIM 1714           150.50",
		"03/01/2024  VIREMENT RECU DE ENTREPRISE ABC                        3000.00",
		"SOLDE AU 03/01/2024                                  12 019,25",
	}

	ex := NewExtractor(zerolog.Nop())
	got, err := ex.Extract(context.Background(), lines, testClassifier)
	require.NoError(t, err)

	assert.Equal(t, StrategyDateAtStart, got.Strategy)
	assert.Equal(t, []string{StrategyDateAtStart}, got.Attempted)
	require.Len(t, got.Records, 2)

	card := got.Records[0]
	assert.Equal(t, "02/01/2024", card.Date)
	assert.Equal(t, "PAIEMENT PAR CARTE 4112 BIM 1714", card.Description)
	assert.True(t, card.Amount.Equal(decimal.RequireFromString("150.50")))
	assert.Equal(t, models.DirectionOut, card.Direction)
	assert.Equal(t, "shopping", card.Category)
	assert.Equal(t, lines[1], card.RawText)

	salary := got.Records[1]
	assert.Equal(t, "03/01/2024", salary.Date)
	assert.True(t, salary.Amount.Equal(decimal.RequireFromString("3000.00")))
	assert.Equal(t, models.DirectionIn, salary.Direction)
	assert.Equal(t, "transfers", salary.Category)
}

func TestExtract_CascadeStopsAtFirstMatch(t *testing.T) {
	lines := []string{
		"02/01/2024  PAIEMENT PAR CARTE 4112 BIM 1714           150.50",
		"OPERATION DU 05/01/2024 RETRAIT GAB 500,00",
		"RETRAIT GAB AGENCE CENTRE 200,00",
	}

	calls := map[string]int{}
	ex := NewExtractor(zerolog.Nop())
	for i := range ex.Strategies {
		s := ex.Strategies[i]
		ex.Strategies[i].Run = func(ctx context.Context, lines []string, cls Classifier) (StrategyResult, error) {
			calls[s.Name]++
			return s.Run(ctx, lines, cls)
		}
	}

	got, err := ex.Extract(context.Background(), lines, testClassifier)
	require.NoError(t, err)

	assert.Equal(t, 1, calls[StrategyDateAtStart])
	assert.Zero(t, calls[StrategyDateAnywhere])
	assert.Zero(t, calls[StrategyNeighbourDate])

	onlyFirst := &Extractor{Strategies: DefaultStrategies()[:1], Logger: zerolog.Nop()}
	want, err := onlyFirst.Extract(context.Background(), lines, testClassifier)
	require.NoError(t, err)
	assert.Equal(t, want.Records, got.Records)
}

func TestExtract_DateAnywhere(t *testing.T) {
	lines := []string{
		"Agence Casablanca Centre",
		"OPERATION DU 05/01/2024 RETRAIT GAB 500,00",
	}

	got, err := NewExtractor(zerolog.Nop()).Extract(context.Background(), lines, testClassifier)
	require.NoError(t, err)

	assert.Equal(t, StrategyDateAnywhere, got.Strategy)
	assert.Equal(t, []string{StrategyDateAtStart, StrategyDateAnywhere}, got.Attempted)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "05/01/2024", got.Records[0].Date)
	assert.Equal(t, "OPERATION DU RETRAIT GAB", got.Records[0].Description)
	assert.True(t, got.Records[0].Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "cash", got.Records[0].Category)
}

func TestExtract_NeighbourDate(t *testing.T) {
	lines := []string{
		"05/01/2024",
		"RETRAIT GAB AGENCE CENTRE 500,00",
		"Agence Casablanca Centre",
		"Service clientele 24h/24",
		"Conseiller: M. Alaoui",
		"Merci de votre confiance",
		"PAIEMENT CARTE SANS DATE 20,00",
	}

	got, err := NewExtractor(zerolog.Nop()).Extract(context.Background(), lines, testClassifier)
	require.NoError(t, err)

	assert.Equal(t, StrategyNeighbourDate, got.Strategy)
	assert.Len(t, got.Attempted, 3)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "05/01/2024", got.Records[0].Date)
	assert.Equal(t, "RETRAIT GAB AGENCE CENTRE", got.Records[0].Description)

	require.NotEmpty(t, got.Warnings)
	assert.Contains(t, got.Warnings[len(got.Warnings)-1], "no date nearby")
}

func TestExtract_BalanceLinesOnly(t *testing.T) {
	lines := []string{
		"SOLDE AU 31/01/2024   12 019,25",
		"SOLDE 1 500,00",
	}

	got, err := NewExtractor(zerolog.Nop()).Extract(context.Background(), lines, testClassifier)
	require.NoError(t, err)

	assert.Empty(t, got.Records)
	assert.Empty(t, got.Strategy)
	assert.Len(t, got.Attempted, 3)
}

func TestExtract_SkipsLineWithoutAmount(t *testing.T) {
	lines := []string{
		"02/01/2024  PAIEMENT PAR CARTE BIM",
		"03/01/2024  RETRAIT GAB AGENCE CENTRE                500.00",
	}

	got, err := NewExtractor(zerolog.Nop()).Extract(context.Background(), lines, testClassifier)
	require.NoError(t, err)

	require.Len(t, got.Records, 1)
	assert.Equal(t, "RETRAIT GAB AGENCE CENTRE", got.Records[0].Description)
	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], "no amount")
}

func TestExtract_NilClassifierLeavesCategoryEmpty(t *testing.T) {
	lines := []string{"02/01/2024  PAIEMENT PAR CARTE 4112 BIM 1714           150.50"}

	got, err := NewExtractor(zerolog.Nop()).Extract(context.Background(), lines, nil)
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.Empty(t, got.Records[0].Category)
}

func TestExtract_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(zerolog.Nop()).Extract(ctx, []string{"02/01/2024 PAIEMENT 10.00"}, testClassifier)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtract_DeterministicIDs(t *testing.T) {
	lines := []string{
		"02/01/2024  PAIEMENT PAR CARTE 4112 BIM 1714           150.50",
		"02/01/2024  PAIEMENT PAR CARTE 4112 BIM 1714           150.50",
	}

	got, err := NewExtractor(zerolog.Nop()).Extract(context.Background(), lines, testClassifier)
	require.NoError(t, err)
	require.Len(t, got.Records, 2)
	assert.Equal(t, got.Records[0].ID, got.Records[1].ID)
}

func TestExtract_OnlineMerchantLine(t *testing.T) {
	lines := []string{
		"www.attijariwafabank.com",
		"05/01/2024  PAIEMENT CARTE WWW.JUMIA.MA            350.00",
	}

	got, err := NewExtractor(zerolog.Nop()).Extract(context.Background(), lines, testClassifier)
	require.NoError(t, err)

	require.Len(t, got.Records, 1)
	assert.Equal(t, "PAIEMENT CARTE WWW.JUMIA.MA", got.Records[0].Description)
	assert.True(t, got.Records[0].Amount.Equal(decimal.NewFromInt(350)))
}

func TestExtract_NumberBeforeSingleSpacedAmount(t *testing.T) {
	lines := []string{"08/01/2024 RETRAIT GAB 12 200.00"}

	got, err := NewExtractor(zerolog.Nop()).Extract(context.Background(), lines, testClassifier)
	require.NoError(t, err)

	require.Len(t, got.Records, 1)
	assert.Equal(t, "RETRAIT GAB 12", got.Records[0].Description)
	assert.True(t, got.Records[0].Amount.Equal(decimal.NewFromInt(200)))
}
