package categorize

import (
	"bim-index-api/internal/catalog"
	"bim-index-api/internal/eav"
)

// Candidate is a classified (display name, value) pair before persistence.
type Candidate struct {
	ConditionID uint   `json:"condition_id"`
	DisplayName string `json:"display_name"`
	Value       string `json:"value"`
}

type pair struct{ displayName, value string }

// Classify assigns each distinct (display name, value) pair of rows to the
// first condition in catalog order, trying exact matches, then display name
// only, then value only. Unmatched pairs are dropped. Output keeps the order
// of first appearance and holds one candidate per (condition, value).
func Classify(rows []eav.Row, conditions []catalog.Condition) []Candidate {
	p := CompilePredicate(conditions)

	var exact, byName, byValue []Clause
	for _, c := range p.Clauses {
		switch {
		case c.DisplayName != nil && c.Value != nil:
			exact = append(exact, c)
		case c.DisplayName != nil:
			byName = append(byName, c)
		default:
			byValue = append(byValue, c)
		}
	}

	seenPair := map[pair]bool{}
	type key struct {
		condition uint
		value     string
	}
	seen := map[key]bool{}
	out := []Candidate{}

	for _, r := range rows {
		pr := pair{r.DisplayName, r.Value}
		if seenPair[pr] {
			continue
		}
		seenPair[pr] = true

		cl, ok := firstMatch(pr, exact, byName, byValue)
		if !ok {
			continue
		}
		k := key{cl.ConditionID, r.Value}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, Candidate{ConditionID: cl.ConditionID, DisplayName: r.DisplayName, Value: r.Value})
	}
	return out
}

func firstMatch(pr pair, tiers ...[]Clause) (Clause, bool) {
	for _, tier := range tiers {
		for _, c := range tier {
			if c.match(pr.displayName, pr.value) {
				return c, true
			}
		}
	}
	return Clause{}, false
}
