package skillroll

import (
	"context"
	"fmt"

	"github.com/louisbranch/sheetkit/internal/sheet/catalog"
	"github.com/louisbranch/sheetkit/internal/sheet/document"
	"github.com/louisbranch/sheetkit/internal/sheet/store"
)

// EnsureUniversalSkills seeds the universal repeater with every universal
// catalog skill it lacks, keyed by skill id, with the attribute floor as the
// default percent. The repeater is rewritten in label order and then
// cleaned. It returns the ids added.
func (o *Orchestrator) EnsureUniversalSkills(ctx context.Context, s store.Store) ([]string, error) {
	data, err := s.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read universal skills: %w", err)
	}
	current, _ := data.Repeater(document.RepeaterUniversal)

	present := map[string]bool{}
	current.Each(func(_ string, e document.Entry) {
		present[document.SkillEntryFrom(e).Skill] = true
	})

	var added []string
	var entries []Keyed
	for _, skill := range catalog.Skills(o.catalog) {
		if !skill.Universal() || present[skill.ID] {
			continue
		}
		entries = append(entries, Keyed{ID: skill.ID, Entry: document.SkillEntry{
			Skill:          skill.ID,
			DefaultPercent: float64(Floor(data, skill.Stats)),
		}})
		added = append(added, skill.ID)
	}
	if len(added) == 0 {
		return nil, nil
	}

	existing := map[string]document.Entry{}
	current.Each(func(id string, e document.Entry) {
		entries = append(entries, Keyed{ID: id, Entry: document.SkillEntryFrom(e)})
		existing[id] = e
	})
	o.SortSkills(entries, ByLabel, Asc)

	next := document.NewRepeater()
	for _, k := range entries {
		if e, ok := existing[k.ID]; ok {
			next.Set(k.ID, e.Clone())
			continue
		}
		next.Set(k.ID, k.Entry.Entry())
	}

	updates := store.NewUpdates()
	updates.Set(document.RepeaterUniversal, next)
	if _, err := store.ApplyUpdates(ctx, s, updates); err != nil {
		return nil, fmt.Errorf("write universal skills: %w", err)
	}
	if err := store.CleanRepeater(ctx, s, document.RepeaterUniversal, 0); err != nil {
		return nil, fmt.Errorf("clean universal skills: %w", err)
	}
	return added, nil
}
