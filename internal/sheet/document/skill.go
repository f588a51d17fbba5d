package document

// Skill entry keys inside a skills repeater.
const (
	SkillKey          = "skill"
	PercentKey        = "percent"
	DefaultPercentKey = "defaultPercent"
	UsedKey           = "used"
)

// SkillEntry is the typed form of one skills-repeater entry. Skill must name
// a catalog row; stale ids are tolerated and skipped by readers.
type SkillEntry struct {
	Skill          string
	Percent        float64
	DefaultPercent float64
	Used           bool
}

// SkillEntryFrom decodes a repeater entry.
func SkillEntryFrom(e Entry) SkillEntry {
	out := SkillEntry{Used: Truthy(e[UsedKey])}
	out.Skill, _ = e[SkillKey].(string)
	out.Percent, _ = Number(e[PercentKey])
	out.DefaultPercent, _ = Number(e[DefaultPercentKey])
	return out
}

// Entry encodes the skill entry for storage.
func (s SkillEntry) Entry() Entry {
	return Entry{
		SkillKey:          s.Skill,
		PercentKey:        s.Percent,
		DefaultPercentKey: s.DefaultPercent,
		UsedKey:           s.Used,
	}
}

// EffectivePercent is the trained percent, falling back to the default.
func (s SkillEntry) EffectivePercent() float64 {
	if s.Percent != 0 {
		return s.Percent
	}
	return s.DefaultPercent
}
