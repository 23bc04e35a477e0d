package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category Category
	Amount   decimal.Decimal
	Count    int
}

// ByCategory aggregates expenses per category, in category display order.
// Categories with no expenses are omitted.
func ByCategory(expenses []Expense) []CategoryAmount {
	sums := make(map[Category]*CategoryAmount)
	for _, e := range expenses {
		ca, ok := sums[e.Category]
		if !ok {
			ca = &CategoryAmount{Category: e.Category, Amount: decimal.Zero}
			sums[e.Category] = ca
		}
		ca.Amount = ca.Amount.Add(e.Amount)
		ca.Count++
	}

	out := make([]CategoryAmount, 0, len(sums))
	for _, c := range categories {
		if ca, ok := sums[c]; ok {
			out = append(out, *ca)
			delete(sums, c)
		}
	}
	// Unknown categories from the server go last.
	for _, ca := range sums {
		out = append(out, *ca)
	}
	return out
}
