package catalog

import (
	"errors"
	"testing"

	apperrors "github.com/louisbranch/sheetkit/internal/platform/errors"
	"golang.org/x/text/language"
)

const testCatalogYAML = `
tables:
  skills:
    - {id: swim, label: Swim, section: universal, stats: "str,con"}
    - {id: climb, label: Climb, section: universal, stats: "str, dex"}
    - {id: lore, label: Éclairage, stats: "int"}
  rolldiff:
    - {id: default, label: Default, value: "0"}
    - {id: diff_easy, label: Easy, value: "20"}
    - {id: diff_hard, label: Hard, value: "-20"}
    - {id: competitive, label: Competitive, value: "0"}
  attributes:
    - {id: default, label: ""}
    - {id: str, label: Strength}
    - {id: dex, label: Dexterity}
`

func loadTestCatalog(t *testing.T) *MemoryCatalog {
	t.Helper()
	c, err := LoadYAML([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return c
}

func TestLoadYAMLKeepsOrder(t *testing.T) {
	c := loadTestCatalog(t)
	skills := Skills(c)
	if len(skills) != 3 {
		t.Fatalf("expected 3 skills, got %d", len(skills))
	}
	if skills[0].ID != "swim" || skills[2].ID != "lore" {
		t.Fatalf("unexpected order %+v", skills)
	}
	if got := skills[1].Stats; len(got) != 2 || got[1] != "dex" {
		t.Fatalf("stats not trimmed: %v", got)
	}
	if !skills[0].Universal() || skills[2].Universal() {
		t.Fatal("unexpected universal flags")
	}
}

func TestLoadYAMLValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing id", doc: "tables:\n  skills:\n    - {label: X}\n"},
		{name: "duplicate id", doc: "tables:\n  skills:\n    - {id: a}\n    - {id: a}\n"},
		{name: "bad yaml", doc: "tables: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadYAML([]byte(tt.doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestToArraySkipDefault(t *testing.T) {
	c := loadTestCatalog(t)
	table, _ := c.Table(TableDifficulties)

	if got := len(ToArray(table, false)); got != 4 {
		t.Fatalf("ToArray(false) = %d rows", got)
	}
	rows := ToArray(table, true)
	if len(rows) != 3 || rows[0].ID() != "diff_easy" {
		t.Fatalf("ToArray(true) = %v", rows)
	}
	if ToArray(nil, true) != nil {
		t.Fatal("nil table should yield nil")
	}
}

func TestToMap(t *testing.T) {
	rows := []Row{{"id": "a", "label": "A"}, {"id": "b", "label": "B"}, {"id": "a", "label": "A2"}}
	m := ToMap(rows, "id")
	if len(m) != 2 || m["a"].String("label") != "A2" {
		t.Fatalf("unexpected map %v", m)
	}
}

func TestLookupDifficulty(t *testing.T) {
	c := loadTestCatalog(t)
	diff, err := LookupDifficulty(c, "diff_hard")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if diff.Value != -20 || diff.Label != "Hard" || diff.Competitive() {
		t.Fatalf("unexpected difficulty %+v", diff)
	}
	comp, _ := LookupDifficulty(c, CompetitiveID)
	if !comp.Competitive() {
		t.Fatal("expected competitive tier")
	}
}

func TestLookupMissingRow(t *testing.T) {
	c := loadTestCatalog(t)
	_, err := LookupSkill(c, "juggling")
	if !errors.Is(err, ErrMissingRow) {
		t.Fatalf("expected ErrMissingRow, got %v", err)
	}
	if apperrors.CodeOf(err) != apperrors.CodeMissingCatalogRow {
		t.Fatalf("unexpected code %s", apperrors.CodeOf(err))
	}

	empty := NewMemoryCatalog(nil)
	if _, err := LookupDifficulty(empty, "diff_easy"); !errors.Is(err, ErrMissingRow) {
		t.Fatalf("expected ErrMissingRow for absent table, got %v", err)
	}
}

func TestAttributesSkipDefault(t *testing.T) {
	attrs := Attributes(loadTestCatalog(t))
	if len(attrs) != 2 || attrs[0].ID != "str" {
		t.Fatalf("unexpected attributes %+v", attrs)
	}
}

func TestFilterSkills(t *testing.T) {
	c := loadTestCatalog(t)
	skills, _ := c.Table(TableSkills)

	tests := []struct {
		filter string
		want   []string
	}{
		{filter: "", want: []string{"swim", "climb", "lore"}},
		{filter: `section = "universal"`, want: []string{"swim", "climb"}},
		{filter: `section = "universal" AND label = "Climb"`, want: []string{"climb"}},
		{filter: `id = "lore" OR id = "swim"`, want: []string{"swim", "lore"}},
		{filter: `NOT section = "universal"`, want: []string{"lore"}},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			rows, err := Filter(skills, tt.filter, SkillColumns)
			if err != nil {
				t.Fatalf("filter: %v", err)
			}
			if len(rows) != len(tt.want) {
				t.Fatalf("got %d rows, want %d", len(rows), len(tt.want))
			}
			for i, row := range rows {
				if row.ID() != tt.want[i] {
					t.Fatalf("row %d = %s, want %s", i, row.ID(), tt.want[i])
				}
			}
		})
	}
}

func TestFilterDifficultyByValue(t *testing.T) {
	c := loadTestCatalog(t)
	table, _ := c.Table(TableDifficulties)
	rows, err := Filter(table, "value > 0", DifficultyColumns)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(rows) != 1 || rows[0].ID() != "diff_easy" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestFilterRejectsUnknownColumn(t *testing.T) {
	if _, err := ParseFilter(`color = "red"`, SkillColumns); err == nil {
		t.Fatal("expected error for undeclared column")
	}
}

func TestSortByLabelIgnoresCaseAndAccents(t *testing.T) {
	rows := []Row{
		{"id": "c", "label": "zebra"},
		{"id": "a", "label": "Éclairage"},
		{"id": "b", "label": "apple"},
	}
	SortByLabel(rows, language.English)
	want := []string{"b", "a", "c"}
	for i, row := range rows {
		if row.ID() != want[i] {
			t.Fatalf("position %d = %s, want %s", i, row.ID(), want[i])
		}
	}
	if CompareLabels(NewLabelCollator(language.English), "Swim", "swim") != 0 {
		t.Fatal("labels differing only by case should compare equal")
	}
}
