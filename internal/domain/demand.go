package domain

import "sort"

// DemandLedger maps an ingredient ID to the signed net quantity one order
// consumes. Positive entries consume stock, negative entries return it.
// The ledger is built fresh per attempt and never persisted.
type DemandLedger map[string]float64

// NewDemandLedger returns an empty ledger.
func NewDemandLedger() DemandLedger {
	return make(DemandLedger)
}

// Add folds a signed quantity into the ledger.
func (l DemandLedger) Add(ingredientID string, qty float64) {
	l[ingredientID] += qty
}

// Net returns the accumulated net quantity for an ingredient.
func (l DemandLedger) Net(ingredientID string) float64 {
	return l[ingredientID]
}

// IngredientIDs returns every ingredient touched by the ledger in a stable
// order, so admission control and stock writes iterate deterministically.
func (l DemandLedger) IngredientIDs() []string {
	ids := make([]string, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FoldLine accumulates one priced line's full stock effect: every recipe
// entry with positive sign, every extra adjustment with positive sign, and
// every non-extra adjustment with negative sign.
func (l DemandLedger) FoldLine(line PricedLine) {
	for _, entry := range line.Recipe {
		l.Add(entry.Ingredient.ID, entry.Quantity)
	}
	for _, extra := range line.Extras {
		if extra.Extra {
			l.Add(extra.IngredientID, extra.Quantity)
		} else {
			l.Add(extra.IngredientID, -extra.Quantity)
		}
	}
}
