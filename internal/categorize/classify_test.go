package categorize

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"bim-index-api/internal/catalog"
	"bim-index-api/internal/eav"
	"bim-index-api/internal/eav/eavtest"
)

func str(s string) *string { return &s }

func cond(id uint, displayName, value *string) catalog.Condition {
	return catalog.Condition{ID: id, DisplayName: displayName, Value: value, IsActive: true}
}

func TestClassify_DisplayNameOnlyCondition(t *testing.T) {
	conds := []catalog.Condition{cond(1, str("COBie.Type.Category"), nil)}
	rows := []eav.Row{{EntityID: 10, DisplayName: "COBie.Type.Category", Value: "Door"}}

	got := Classify(rows, conds)
	want := []Candidate{{ConditionID: 1, DisplayName: "COBie.Type.Category", Value: "Door"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestClassify_Precedence(t *testing.T) {
	conds := []catalog.Condition{
		cond(1, nil, str("Door")),
		cond(2, str("Category"), nil),
		cond(3, str("Category"), str("Door")),
		cond(4, str("Category"), str("Door")),
		cond(5, nil, nil),
	}
	rows := []eav.Row{
		{EntityID: 1, DisplayName: "Category", Value: "Door"},
		{EntityID: 2, DisplayName: "Category", Value: "Wall"},
		{EntityID: 3, DisplayName: "Family", Value: "Door"},
		{EntityID: 4, DisplayName: "Comments", Value: "n/a"},
		{EntityID: 5, DisplayName: "Category", Value: "Door"},
	}

	got := Classify(rows, conds)
	want := []Candidate{
		{ConditionID: 3, DisplayName: "Category", Value: "Door"},
		{ConditionID: 2, DisplayName: "Category", Value: "Wall"},
		{ConditionID: 1, DisplayName: "Family", Value: "Door"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}

	// deterministic across runs
	for i := 0; i < 5; i++ {
		if again := Classify(rows, conds); !reflect.DeepEqual(again, got) {
			t.Fatalf("run %d differs: %+v", i, again)
		}
	}
}

func TestClassify_OneCandidatePerConditionValue(t *testing.T) {
	conds := []catalog.Condition{cond(1, nil, str("Door"))}
	rows := []eav.Row{
		{EntityID: 1, DisplayName: "Category", Value: "Door"},
		{EntityID: 2, DisplayName: "Family", Value: "Door"},
	}

	got := Classify(rows, conds)
	if len(got) != 1 || got[0].DisplayName != "Category" {
		t.Fatalf("got %+v", got)
	}
}

func TestClassify_NoConditions(t *testing.T) {
	got := Classify([]eav.Row{{EntityID: 1, DisplayName: "a", Value: "b"}}, nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestPredicate_MatchAndEmpty(t *testing.T) {
	p := CompilePredicate([]catalog.Condition{
		cond(1, str("Category"), str("Door")),
		cond(2, nil, str("Wall")),
		cond(3, str(""), str("")),
	})
	if len(p.Clauses) != 2 {
		t.Fatalf("clauses=%+v", p.Clauses)
	}

	tests := []struct {
		dn, v string
		want  bool
	}{
		{"Category", "Door", true},
		{"Family", "Door", false},
		{"Anything", "Wall", true},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := p.Match(tt.dn, tt.v); got != tt.want {
			t.Fatalf("Match(%q,%q)=%v want %v", tt.dn, tt.v, got, tt.want)
		}
	}

	if (Predicate{}).Match("Category", "Door") {
		t.Fatalf("empty predicate must match nothing")
	}
}

func TestPredicate_ApplyAgainstDerivativeDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	eavtest.Write(t, path, []eavtest.Object{
		{ID: 10, Props: []eavtest.Prop{eavtest.Text("COBie.Type.Category", "Door")}},
		{ID: 11, Props: []eavtest.Prop{eavtest.Text("COBie.Type.Category", "Window"), eavtest.Text("Mark", "Door")}},
		{ID: 12, Props: []eavtest.Prop{eavtest.Text("Mark", "x'); DROP TABLE _objects_val; --")}},
	})
	e, err := eav.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	p := CompilePredicate([]catalog.Condition{
		cond(1, str("COBie.Type.Category"), str("Door")),
		cond(2, str("Mark"), str("x'); DROP TABLE _objects_val; --")),
	})
	rows, err := e.ExtractCategorizable(p)
	if err != nil {
		t.Fatalf("ExtractCategorizable: %v", err)
	}
	if len(rows) != 2 || rows[0].EntityID != 10 || rows[1].EntityID != 12 {
		t.Fatalf("rows=%+v", rows)
	}

	none, err := e.ExtractCategorizable(Predicate{})
	if err != nil || len(none) != 0 {
		t.Fatalf("empty predicate: rows=%v err=%v", none, err)
	}

	// still readable after the injection-shaped value
	if ids, err := e.ExtractEntityIDs(); err != nil || len(ids) != 3 {
		t.Fatalf("ids=%v err=%v", ids, err)
	}
}

func TestPredicate_ApplyMatchesNumericStoredValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	eavtest.Write(t, path, []eavtest.Object{
		{ID: 10, Props: []eavtest.Prop{eavtest.Int("Level Number", 3)}},
		{ID: 11, Props: []eavtest.Prop{eavtest.Int("Level Number", 4), eavtest.Real("Fire Rating", 1.5)}},
		{ID: 12, Props: []eavtest.Prop{eavtest.Text("Level Number", "3")}},
	})
	e, err := eav.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	p := CompilePredicate([]catalog.Condition{
		cond(1, str("Level Number"), str("3")),
		cond(2, nil, str("1.5")),
	})
	rows, err := e.ExtractCategorizable(p)
	if err != nil {
		t.Fatalf("ExtractCategorizable: %v", err)
	}
	if len(rows) != 3 || rows[0].EntityID != 10 || rows[1].EntityID != 11 || rows[2].EntityID != 12 {
		t.Fatalf("rows=%+v", rows)
	}
	for _, r := range rows {
		if !p.Match(r.DisplayName, r.Value) {
			t.Fatalf("SQL row %+v not matched in memory", r)
		}
	}
	if rows[1].Value != "1.5" {
		t.Fatalf("real value rendered as %q", rows[1].Value)
	}
}

func TestPredicate_ApplyIsParametrized(t *testing.T) {
	db := newTestDB(t)
	p := CompilePredicate([]catalog.Condition{cond(1, str("A"), str("B")), cond(2, nil, str("C"))})

	stmt := p.Apply(db.Session(&gormDryRun).Table("t"), "dn", "v").Find(&[]map[string]any{}).Statement
	sql := stmt.SQL.String()
	if !strings.Contains(sql, "dn = ? AND v = ?") || !strings.Contains(sql, " OR v = ?") {
		t.Fatalf("sql=%s", sql)
	}
	if len(stmt.Vars) != 3 {
		t.Fatalf("vars=%v", stmt.Vars)
	}
}
