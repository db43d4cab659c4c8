package categorize

import (
	"bim-index-api/internal/catalog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Clause is one condition of a predicate. A nil field is unconstrained.
type Clause struct {
	ConditionID uint
	DisplayName *string
	Value       *string
}

func (c Clause) match(displayName, value string) bool {
	if c.DisplayName != nil && *c.DisplayName != displayName {
		return false
	}
	if c.Value != nil && *c.Value != value {
		return false
	}
	return true
}

// Predicate is an OR of clauses. The empty predicate matches nothing.
type Predicate struct {
	Clauses []Clause
}

// CompilePredicate keeps the usable conditions in catalog order.
func CompilePredicate(conditions []catalog.Condition) Predicate {
	var p Predicate
	for _, c := range conditions {
		cl := Clause{ConditionID: c.ID, DisplayName: nonEmpty(c.DisplayName), Value: nonEmpty(c.Value)}
		if cl.DisplayName == nil && cl.Value == nil {
			continue
		}
		p.Clauses = append(p.Clauses, cl)
	}
	return p
}

func (p Predicate) Empty() bool { return len(p.Clauses) == 0 }

// Apply adds the predicate to db as a single parametrized OR group.
func (p Predicate) Apply(db *gorm.DB, displayCol, valueCol string) *gorm.DB {
	if p.Empty() {
		return db.Where("1 = 0")
	}

	exprs := make([]clause.Expression, 0, len(p.Clauses))
	for _, c := range p.Clauses {
		switch {
		case c.DisplayName != nil && c.Value != nil:
			exprs = append(exprs, clause.Expr{
				SQL:  "(" + displayCol + " = ? AND " + valueCol + " = ?)",
				Vars: []any{*c.DisplayName, *c.Value},
			})
		case c.DisplayName != nil:
			exprs = append(exprs, clause.Expr{SQL: displayCol + " = ?", Vars: []any{*c.DisplayName}})
		default:
			exprs = append(exprs, clause.Expr{SQL: valueCol + " = ?", Vars: []any{*c.Value}})
		}
	}
	if len(exprs) == 1 {
		return db.Where(exprs[0])
	}
	return db.Where(clause.Or(exprs...))
}

// Match evaluates the predicate in memory.
func (p Predicate) Match(displayName, value string) bool {
	for _, c := range p.Clauses {
		if c.match(displayName, value) {
			return true
		}
	}
	return false
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
