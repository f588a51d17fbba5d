package skillroll

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"

	"github.com/louisbranch/sheetkit/internal/sheet/catalog"
	"github.com/louisbranch/sheetkit/internal/sheet/document"
	"github.com/louisbranch/sheetkit/internal/sheet/store"
)

// SortKey selects the skill sort column.
type SortKey int

const (
	ByLabel SortKey = iota
	ByPercent
)

// ParseSortKey reads "label" or "percent".
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "label", "name":
		return ByLabel, nil
	case "percent":
		return ByPercent, nil
	default:
		return ByLabel, fmt.Errorf("unknown sort key %q", s)
	}
}

// Direction is ascending or descending.
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) mul() int {
	if d == Desc {
		return -1
	}
	return 1
}

// Keyed is one repeater entry with its id.
type Keyed struct {
	ID    string
	Entry document.SkillEntry
}

// Entries lists a repeater's skill entries in order.
func Entries(r *document.Repeater) []Keyed {
	var out []Keyed
	r.Each(func(id string, e document.Entry) {
		out = append(out, Keyed{ID: id, Entry: document.SkillEntryFrom(e)})
	})
	return out
}

// SortSkills orders entries in place. Percent sorting uses the effective
// percent and breaks ties by ascending label. Entries whose skill is not in
// the catalog always sort last.
func (o *Orchestrator) SortSkills(entries []Keyed, by SortKey, dir Direction) {
	labels := map[string]string{}
	for _, skill := range catalog.Skills(o.catalog) {
		labels[skill.ID] = skill.Label
	}
	coll := catalog.NewLabelCollator(o.lang)
	slices.SortStableFunc(entries, func(a, b Keyed) int {
		return compareSkill(coll, labels, a.Entry, b.Entry, by, dir.mul())
	})
}

func compareSkill(coll *collate.Collator, labels map[string]string, a, b document.SkillEntry, by SortKey, mul int) int {
	if by == ByPercent {
		if c := mul * cmp.Compare(a.EffectivePercent(), b.EffectivePercent()); c != 0 {
			return c
		}
		return compareSkill(coll, labels, a, b, ByLabel, 1)
	}
	aLabel, aOK := labels[a.Skill]
	bLabel, bOK := labels[b.Skill]
	switch {
	case !aOK && !bOK:
		return 0
	case !aOK:
		return 1
	case !bOK:
		return -1
	}
	return mul * catalog.CompareLabels(coll, aLabel, bLabel)
}

// Sorted returns a copy of r with entries reordered.
func (o *Orchestrator) Sorted(r *document.Repeater, by SortKey, dir Direction) *document.Repeater {
	entries := Entries(r)
	o.SortSkills(entries, by, dir)
	out := document.NewRepeater()
	for _, k := range entries {
		e, _ := r.Get(k.ID)
		out.Set(k.ID, e.Clone())
	}
	return out
}

// SortRepeater rewrites a stored skills repeater in sorted order. A missing
// repeater is left alone.
func (o *Orchestrator) SortRepeater(ctx context.Context, s store.Store, repeaterID string, by SortKey, dir Direction) error {
	data, err := s.Read(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", repeaterID, err)
	}
	r, ok := data.Repeater(repeaterID)
	if !ok {
		return nil
	}
	updates := store.NewUpdates()
	updates.Set(repeaterID, o.Sorted(r, by, dir))
	if _, err := store.ApplyUpdates(ctx, s, updates); err != nil {
		return fmt.Errorf("write %s: %w", repeaterID, err)
	}
	return nil
}
