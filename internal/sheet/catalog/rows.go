package catalog

import (
	"strings"
)

// SectionUniversal marks skills every character can attempt untrained.
const SectionUniversal = "universal"

// CompetitiveID is the difficulty tier rolled as an open-ended percentile.
const CompetitiveID = "competitive"

// Skill is a row of the skills table.
type Skill struct {
	ID      string
	Label   string
	Section string
	// Stats lists the attribute ids whose minimum is the untrained percent.
	Stats []string
}

// Universal reports whether the skill belongs to the universal section.
func (s Skill) Universal() bool {
	return s.Section == SectionUniversal
}

// SkillFromRow decodes a skills row.
func SkillFromRow(row Row) Skill {
	skill := Skill{
		ID:      row.ID(),
		Label:   row.String("label"),
		Section: row.String("section"),
	}
	for _, stat := range strings.Split(row.String("stats"), ",") {
		if stat = strings.TrimSpace(stat); stat != "" {
			skill.Stats = append(skill.Stats, stat)
		}
	}
	return skill
}

// Difficulty is a row of the rolldiff table.
type Difficulty struct {
	ID    string
	Label string
	// Value is the modifier added to the 1d100 roll.
	Value int
}

// Competitive reports whether the tier uses the open-ended roll.
func (d Difficulty) Competitive() bool {
	return d.ID == CompetitiveID
}

// DifficultyFromRow decodes a rolldiff row. A non-numeric value reads as 0.
func DifficultyFromRow(row Row) Difficulty {
	value, _ := row.Int("value")
	return Difficulty{ID: row.ID(), Label: row.String("label"), Value: value}
}

// Attribute is a row of the attributes table.
type Attribute struct {
	ID    string
	Label string
}

// Skills returns every row of the skills table in order.
func Skills(c Catalog) []Skill {
	t, ok := c.Table(TableSkills)
	if !ok {
		return nil
	}
	var out []Skill
	t.Each(func(row Row) {
		out = append(out, SkillFromRow(row))
	})
	return out
}

// LookupSkill resolves one skill by id.
func LookupSkill(c Catalog, id string) (Skill, error) {
	row, err := lookup(c, TableSkills, id)
	if err != nil {
		return Skill{}, err
	}
	return SkillFromRow(row), nil
}

// LookupDifficulty resolves one difficulty tier by id.
func LookupDifficulty(c Catalog, id string) (Difficulty, error) {
	row, err := lookup(c, TableDifficulties, id)
	if err != nil {
		return Difficulty{}, err
	}
	return DifficultyFromRow(row), nil
}

// Attributes returns the attributes table, skipping the default row.
func Attributes(c Catalog) []Attribute {
	t, ok := c.Table(TableAttributes)
	if !ok {
		return nil
	}
	rows := ToArray(t, true)
	out := make([]Attribute, 0, len(rows))
	for _, row := range rows {
		out = append(out, Attribute{ID: row.ID(), Label: row.String("label")})
	}
	return out
}

func lookup(c Catalog, table, id string) (Row, error) {
	t, ok := c.Table(table)
	if !ok {
		return nil, missingRow(table, id)
	}
	row, ok := t.Get(id)
	if !ok {
		return nil, missingRow(table, id)
	}
	return row, nil
}
