package document

// Attribute ids carried by main sheets.
var Attributes = []string{"str", "dex", "int", "wis", "lks", "cha", "con"}

// Main sheet field ids.
const (
	FieldSkillDifficulty   = "skillDifficulty"
	FieldSortSkillsName    = "sortSkillsName"
	FieldSortSkillsPercent = "sortSkillsPercent"
	FieldFilterSkills      = "filterSkills"
	FieldCharacterName     = "characterName"
	FieldCharacterLevel    = "characterLevel"
	FieldCharacterRace     = "characterRace"
	FieldCharacterClass    = "characterClass"

	RepeaterUniversal = "universal"
	RepeaterSkills    = "skills"
	RepeaterLanguages = "languages"
)

// Variant is the typed, read-only view of one document kind.
type Variant interface {
	Kind() Kind
	Common() Universal
}

// Universal holds the fields every kind shares.
type Universal struct {
	UID            string
	Version        int
	DiceVisibility string
}

// MainSheet is the character sheet variant.
type MainSheet struct {
	Universal
	SkillDifficulty string
	FilterSkills    string
	CharacterName   string
	CharacterLevel  int
	// Attributes holds only the attributes that are set.
	Attributes      map[string]float64
	UniversalSkills *Repeater
	Skills          *Repeater
	Languages       *Repeater
}

// Kind implements Variant.
func (MainSheet) Kind() Kind { return KindMain }

// Common implements Variant.
func (m MainSheet) Common() Universal { return m.Universal }

// MonsterSheet is the monster sheet variant.
type MonsterSheet struct {
	Universal
}

// Kind implements Variant.
func (MonsterSheet) Kind() Kind { return KindMonster }

// Common implements Variant.
func (m MonsterSheet) Common() Universal { return m.Universal }

// Decode builds the typed view for kind. Unknown kinds fail with
// ErrTypeMismatch.
func Decode(tag string, data Data) (Variant, error) {
	kind, err := ParseKind(tag)
	if err != nil {
		return nil, err
	}
	common := Universal{
		UID:            data.String(FieldUID),
		Version:        data.Version(),
		DiceVisibility: data.String(FieldDiceVisibility),
	}
	switch kind {
	case KindMain:
		main := MainSheet{
			Universal:       common,
			SkillDifficulty: data.String(FieldSkillDifficulty),
			FilterSkills:    data.String(FieldFilterSkills),
			CharacterName:   data.String(FieldCharacterName),
			Attributes:      map[string]float64{},
		}
		if lvl, ok := data.Number(FieldCharacterLevel); ok {
			main.CharacterLevel = int(lvl)
		}
		for _, attr := range Attributes {
			if v, ok := data.Number(attr); ok {
				main.Attributes[attr] = v
			}
		}
		main.UniversalSkills, _ = data.Repeater(RepeaterUniversal)
		main.Skills, _ = data.Repeater(RepeaterSkills)
		main.Languages, _ = data.Repeater(RepeaterLanguages)
		return main, nil
	default:
		return MonsterSheet{Universal: common}, nil
	}
}
