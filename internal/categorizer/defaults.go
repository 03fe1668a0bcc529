package categorizer

import "github.com/insightdelivered/statement-categorizer/internal/models"

// DefaultCategories returns the built-in category table. Earlier entries win
// when a description matches several.
func DefaultCategories() []models.Category {
	out := []models.Direction{models.DirectionOut}
	in := []models.Direction{models.DirectionIn}

	return []models.Category{
		{
			ID: "shopping", Name: "Shopping", Color: "#FF9800",
			Description:   "Supermarkets, retail and online shops",
			Keywords:      []string{"BIM", "MARJANE", "CARREFOUR", "ACIMA", "LABEL VIE", "ZARA", "DECATHLON", "JUMIA", "AMAZON", "IKEA"},
			ApplicableFor: out,
		},
		{
			ID: "restaurants", Name: "Restaurants", Color: "#E91E63",
			Keywords:      []string{"RESTAURANT", "CAFE", "MCDONALD", "KFC", "GLOVO", "PIZZA", "SNACK"},
			ApplicableFor: out,
		},
		{
			ID: "transport", Name: "Transport", Color: "#3F51B5",
			Keywords:      []string{"AFRIQUIA", "SHELL", "PETROM", "WINXO", "ONCF", "TAXI", "UBER", "CAREEM", "AUTOROUTE", "ROYAL AIR MAROC"},
			ApplicableFor: out,
		},
		{
			ID: "bills", Name: "Bills & utilities", Color: "#009688",
			Keywords:      []string{"LYDEC", "REDAL", "AMENDIS", "ONEE", "MAROC TELECOM", "INWI", "ORANGE", "NETFLIX", "SPOTIFY"},
			ApplicableFor: out,
		},
		{
			ID: "cash", Name: "Cash withdrawals", Color: "#795548",
			Keywords:      []string{"RETRAIT", "GAB", "DAB", "WITHDRAWAL"},
			ApplicableFor: out,
		},
		{
			ID: "fees", Name: "Bank fees", Color: "#607D8B",
			Keywords:      []string{"FRAIS", "COMMISSION", "AGIOS", "COTISATION", "TIMBRE", "TENUE DE COMPTE"},
			ApplicableFor: out,
		},
		{
			ID: "salary", Name: "Salary", Color: "#4CAF50",
			Keywords:      []string{"SALAIRE", "SALARY", "PAIE "},
			ApplicableFor: in,
		},
		{
			ID: "transfers", Name: "Transfers", Color: "#2196F3",
			Keywords: []string{"VIREMENT", "VIR ", "TRANSFER"},
		},
		{
			ID: DefaultOutID, Name: "Other expenses", Color: "#9E9E9E",
			Description:   "Fallback for unmatched money out",
			ApplicableFor: out,
			Default:       true,
		},
		{
			ID: DefaultInID, Name: "Other income", Color: "#8BC34A",
			Description:   "Fallback for unmatched money in",
			ApplicableFor: in,
			Default:       true,
		},
	}
}
