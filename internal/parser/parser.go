package parser

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-categorizer/internal/models"
	"github.com/insightdelivered/statement-categorizer/internal/textnorm"
)

// Classifier assigns a category id to a record description.
type Classifier interface {
	Classify(description string, dir models.Direction) string
}

// StrategyResult is what one extraction strategy produced.
type StrategyResult struct {
	Records []models.Record
	// Matches counts lines that qualified for the strategy, including those
	// later dropped for lack of an amount or date.
	Matches  int
	Warnings []string
}

// Strategy is one heuristic for turning statement lines into records.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, lines []string, cls Classifier) (StrategyResult, error)
}

// Extraction is the outcome of running the strategy cascade.
type Extraction struct {
	Records []models.Record
	// Strategy names the strategy that produced Records, empty if none did.
	Strategy string
	// Attempted lists every strategy that ran, in order.
	Attempted []string
	Warnings  []string
}

// Extractor runs its strategies in order of strictness and stops at the
// first one that yields a record.
type Extractor struct {
	Strategies []Strategy
	Logger     zerolog.Logger
}

// NewExtractor returns an extractor with the default strategy cascade.
func NewExtractor(log zerolog.Logger) *Extractor {
	return &Extractor{
		Strategies: DefaultStrategies(),
		Logger:     log,
	}
}

// DefaultStrategies returns the cascade: date at start of line, date
// anywhere in the line, then keyword with a date from a neighbouring line.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyDateAtStart, Run: extractDateAtStart},
		{Name: StrategyDateAnywhere, Run: extractDateAnywhere},
		{Name: StrategyNeighbourDate, Run: extractNeighbourDate},
	}
}

// Extract turns trimmed, non-empty statement lines into records.
func (e *Extractor) Extract(ctx context.Context, lines []string, cls Classifier) (*Extraction, error) {
	out := &Extraction{}
	for _, s := range e.Strategies {
		out.Attempted = append(out.Attempted, s.Name)

		res, err := s.Run(ctx, lines, cls)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", s.Name, err)
		}
		out.Warnings = append(out.Warnings, res.Warnings...)

		e.Logger.Debug().
			Str("strategy", s.Name).
			Int("matches", res.Matches).
			Int("records", len(res.Records)).
			Msg("extraction strategy finished")

		if len(res.Records) > 0 {
			out.Records = res.Records
			out.Strategy = s.Name
			return out, nil
		}
	}
	return out, nil
}

// issuers holds identifiers of the banks whose statements are supported.
var issuers = []struct {
	Name    string
	Needles []string
}{
	{"Attijariwafa bank", []string{"ATTIJARIWAFA", "ATTIJARI"}},
	{"Banque Populaire", []string{"BANQUE POPULAIRE", "CHAABI", "BCP"}},
	{"Bank of Africa", []string{"BANK OF AFRICA", "BMCE"}},
	{"CIH Bank", []string{"CIH BANK", "CIH"}},
	{"Société Générale", []string{"SOCIETE GENERALE"}},
	{"Crédit Agricole", []string{"CREDIT AGRICOLE"}},
	{"CDM", []string{"CREDIT DU MAROC"}},
	{"BMCI", []string{"BMCI"}},
}

// DetectIssuer tries to identify the issuing bank from the statement text.
func DetectIssuer(text string) (string, bool) {
	folded := textnorm.Upper(text)
	for _, is := range issuers {
		if textnorm.ContainsAny(folded, is.Needles) {
			return is.Name, true
		}
	}
	return "", false
}
