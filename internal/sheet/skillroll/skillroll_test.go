package skillroll

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"

	"github.com/louisbranch/sheetkit/internal/core/dice"
	"github.com/louisbranch/sheetkit/internal/host"
	"github.com/louisbranch/sheetkit/internal/host/memhost"
	"github.com/louisbranch/sheetkit/internal/sheet/catalog"
	"github.com/louisbranch/sheetkit/internal/sheet/document"
	"github.com/louisbranch/sheetkit/internal/sheet/listener"
	"github.com/louisbranch/sheetkit/internal/sheet/store"
)

const testCatalog = `
tables:
  skills:
    - {id: swim, label: Swim, section: universal, stats: "str,dex"}
    - {id: athletics, label: Athletics, section: universal, stats: "str,con"}
    - {id: lore, label: Lore, section: knowledge, stats: "int"}
    - {id: climb, label: climb, section: physical, stats: "str"}
  rolldiff:
    - {id: default, label: Default, value: "0"}
    - {id: diff_easy, label: Easy, value: "20"}
    - {id: diff_hard, label: Hard, value: "-20"}
    - {id: competitive, label: Competitive, value: "0"}
`

func loadCatalog(t *testing.T) *catalog.MemoryCatalog {
	t.Helper()
	c, err := catalog.LoadYAML([]byte(testCatalog))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return c
}

type submission struct {
	expr       string
	title      string
	visibility string
}

type recordingRoller struct {
	subs []submission
}

func (r *recordingRoller) SubmitRoll(_ context.Context, _ host.Sheet, expr dice.Expr, title, visibility string) error {
	r.subs = append(r.subs, submission{expr: expr.String(), title: title, visibility: visibility})
	return nil
}

func quietLogger(buf *bytes.Buffer) *log.Logger {
	return log.New(buf, "", 0)
}

func TestFloor(t *testing.T) {
	data := document.Data{"str": 10, "dex": float64(14)}
	tests := []struct {
		name  string
		stats []string
		want  int
	}{
		{name: "min of two", stats: []string{"str", "dex"}, want: 10},
		{name: "single", stats: []string{"dex"}, want: 14},
		{name: "missing counts as zero", stats: []string{"dex", "con"}, want: 0},
		{name: "no stats", stats: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Floor(data, tt.stats); got != tt.want {
				t.Fatalf("Floor = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRollShapes(t *testing.T) {
	tests := []struct {
		name    string
		data    document.Data
		skill   string
		rolled  bool
		expr    string
		title   string
		visible string
	}{
		{
			name:    "universal untrained uses floor",
			data:    document.Data{"str": 10, "dex": 14, "swim_pct": 55, "skillDifficulty": "diff_easy", "diceVisibility": "gm"},
			skill:   "swim",
			rolled:  true,
			expr:    "1d100 + 20[difficulty] < 10[skillPercent]",
			title:   "Swim Easy Skill Check",
			visible: "gm",
		},
		{
			name:   "universal trained uses percent",
			data:   document.Data{"str": 10, "dex": 14, "swim_pct": 55, "swim_isTrained": true, "skillDifficulty": "diff_hard"},
			skill:  "swim",
			rolled: true,
			expr:   "1d100 - 20[difficulty] < 55[skillPercent]",
			title:  "Swim Hard Skill Check",
		},
		{
			name:   "competitive",
			data:   document.Data{"lore_pct": 35, "skillDifficulty": "competitive"},
			skill:  "lore",
			rolled: true,
			expr:   "(1d100 < 100 ? reroll(1d100,100) : 100 + (1d20 < 20 ? reroll(1d20,20) : 20 + expl(1d6))) + 35[skillPercent]",
			title:  "Lore Competitive Check",
		},
		{
			name:   "untrained non universal",
			data:   document.Data{"lore_pct": 0, "skillDifficulty": "diff_easy"},
			skill:  "lore",
			rolled: false,
		},
		{
			name:   "unknown difficulty",
			data:   document.Data{"lore_pct": 30, "skillDifficulty": "diff_legendary"},
			skill:  "lore",
			rolled: false,
		},
		{
			name:   "stale skill id",
			data:   document.Data{"skillDifficulty": "diff_easy"},
			skill:  "juggling",
			rolled: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			roller := &recordingRoller{}
			o := New(loadCatalog(t), roller, WithLogger(quietLogger(&buf)))
			sheet := memhost.NewSheet(1, "main", store.NewMemoryStore(tt.data))

			rolled, err := o.Roll(context.Background(), sheet, tt.skill)
			if err != nil {
				t.Fatalf("roll: %v", err)
			}
			if rolled != tt.rolled {
				t.Fatalf("rolled = %v, want %v", rolled, tt.rolled)
			}
			if !tt.rolled {
				if len(roller.subs) != 0 {
					t.Fatalf("unexpected submissions %+v", roller.subs)
				}
				return
			}
			if len(roller.subs) != 1 {
				t.Fatalf("submissions = %d", len(roller.subs))
			}
			got := roller.subs[0]
			if got.expr != tt.expr {
				t.Fatalf("expr = %q, want %q", got.expr, tt.expr)
			}
			if got.title != tt.title || got.visibility != tt.visible {
				t.Fatalf("title/visibility = %q/%q", got.title, got.visibility)
			}
		})
	}
}

func TestMissingSkillRowIsLogged(t *testing.T) {
	var buf bytes.Buffer
	o := New(loadCatalog(t), &recordingRoller{}, WithLogger(quietLogger(&buf)))
	sheet := memhost.NewSheet(1, "main", store.NewMemoryStore(nil))
	if _, err := o.Roll(context.Background(), sheet, "juggling"); err != nil {
		t.Fatalf("roll: %v", err)
	}
	if !strings.Contains(buf.String(), "skill juggling: missing catalog row, skipping") {
		t.Fatalf("missing log: %q", buf.String())
	}
}

func TestElementPercentWins(t *testing.T) {
	roller := &recordingRoller{}
	o := New(loadCatalog(t), roller, WithLogger(quietLogger(&bytes.Buffer{})))
	sheet := memhost.NewSheet(1, "main", store.NewMemoryStore(document.Data{"lore_pct": 0, "skillDifficulty": "diff_easy"}))
	sheet.AddElement("lore_pct", 42)

	rolled, err := o.Roll(context.Background(), sheet, "lore")
	if err != nil || !rolled {
		t.Fatalf("roll = %v, %v", rolled, err)
	}
	if !strings.HasSuffix(roller.subs[0].expr, "< 42[skillPercent]") {
		t.Fatalf("expr = %q", roller.subs[0].expr)
	}
}

func TestBindRollsOnClick(t *testing.T) {
	src := faces{5}
	roller := memhost.NewRollerWithSource(&src)
	o := New(loadCatalog(t), roller, WithLogger(quietLogger(&bytes.Buffer{})))
	sheet := memhost.NewSheet(1024, "main", store.NewMemoryStore(document.Data{
		"uid": "ID_BACE", "str": 30, "dex": 40, "skillDifficulty": "diff_easy",
	}))
	swim := sheet.AddElement("swim", nil)
	sheet.AddElement("lore", nil)

	reg := listener.NewRegistry()
	bound, err := o.Bind(context.Background(), reg, sheet, listener.Options{})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if bound != 2 {
		t.Fatalf("bound = %d, want 2", bound)
	}
	if err := swim.Fire(host.EventClick); err != nil {
		t.Fatalf("click: %v", err)
	}

	results := roller.Results()
	if len(results) != 1 {
		t.Fatalf("results = %d", len(results))
	}
	got := results[0]
	if got.Total != 25 || !got.Compared || !got.Success {
		t.Fatalf("unexpected result %+v", got)
	}
	if got.Title != "Swim Easy Skill Check" || !got.ContainsTag("ID_BACE") {
		t.Fatalf("unexpected result %+v", got)
	}
}

// cancelAwareStore fails reads once the caller's context is done, like a
// database-backed store would.
type cancelAwareStore struct {
	*store.MemoryStore
}

func (s cancelAwareStore) Read(ctx context.Context) (document.Data, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.MemoryStore.Read(ctx)
}

func TestBindSurvivesInitContextCancel(t *testing.T) {
	src := faces{5}
	roller := memhost.NewRollerWithSource(&src)
	o := New(loadCatalog(t), roller, WithLogger(quietLogger(&bytes.Buffer{})))
	sheet := memhost.NewSheet(1024, "main", cancelAwareStore{store.NewMemoryStore(document.Data{
		"str": 30, "dex": 40, "skillDifficulty": "diff_easy",
	})})
	swim := sheet.AddElement("swim", nil)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := o.Bind(ctx, listener.NewRegistry(), sheet, listener.Options{}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	cancel()

	if err := swim.Fire(host.EventClick); err != nil {
		t.Fatalf("click after init context ended: %v", err)
	}
	if got := len(roller.Results()); got != 1 {
		t.Fatalf("results = %d, want 1", got)
	}
}

type faces []int

func (f *faces) Intn(int) int {
	if len(*f) == 0 {
		return 0
	}
	v := (*f)[0]
	*f = (*f)[1:]
	return v - 1
}

func skillRepeater(entries ...document.SkillEntry) *document.Repeater {
	r := document.NewRepeater()
	for i, e := range entries {
		r.Set("e"+string(rune('a'+i)), e.Entry())
	}
	return r
}

func skillsOf(entries []Keyed) string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Entry.Skill)
	}
	return strings.Join(out, ",")
}

func TestSortSkills(t *testing.T) {
	o := New(loadCatalog(t), &recordingRoller{})
	r := skillRepeater(
		document.SkillEntry{Skill: "swim", Percent: 40},
		document.SkillEntry{Skill: "ghost", Percent: 90},
		document.SkillEntry{Skill: "lore", DefaultPercent: 40},
		document.SkillEntry{Skill: "climb", Percent: 70},
		document.SkillEntry{Skill: "athletics", DefaultPercent: 10},
	)
	tests := []struct {
		name string
		by   SortKey
		dir  Direction
		want string
	}{
		{name: "label asc", by: ByLabel, dir: Asc, want: "athletics,climb,lore,swim,ghost"},
		{name: "label desc", by: ByLabel, dir: Desc, want: "swim,lore,climb,athletics,ghost"},
		{name: "percent asc", by: ByPercent, dir: Asc, want: "athletics,lore,swim,climb,ghost"},
		{name: "percent desc", by: ByPercent, dir: Desc, want: "ghost,climb,lore,swim,athletics"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := Entries(r)
			o.SortSkills(entries, tt.by, tt.dir)
			if got := skillsOf(entries); got != tt.want {
				t.Fatalf("order = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSortRepeater(t *testing.T) {
	o := New(loadCatalog(t), &recordingRoller{})
	s := store.NewMemoryStore(document.Data{
		document.RepeaterSkills: skillRepeater(
			document.SkillEntry{Skill: "swim"},
			document.SkillEntry{Skill: "climb"},
		),
	})
	if err := o.SortRepeater(context.Background(), s, document.RepeaterSkills, ByLabel, Asc); err != nil {
		t.Fatalf("sort: %v", err)
	}
	data, _ := s.Read(context.Background())
	r, _ := data.Repeater(document.RepeaterSkills)
	if ids := r.IDs(); len(ids) != 2 || ids[0] != "eb" {
		t.Fatalf("ids = %v", ids)
	}

	s.ResetWrites()
	if err := o.SortRepeater(context.Background(), s, document.RepeaterLanguages, ByLabel, Asc); err != nil {
		t.Fatalf("sort missing: %v", err)
	}
	if len(s.Writes()) != 0 {
		t.Fatal("missing repeater should not be written")
	}
}

func TestEnsureUniversalSkills(t *testing.T) {
	o := New(loadCatalog(t), &recordingRoller{})
	existing := document.NewRepeater()
	existing.Set("row1", document.SkillEntry{Skill: "swim", Percent: 60}.Entry())
	s := store.NewMemoryStore(document.Data{
		"str": 12, "con": 9, "dex": 15,
		document.RepeaterUniversal: existing,
	})

	added, err := o.EnsureUniversalSkills(context.Background(), s)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(added) != 1 || added[0] != "athletics" {
		t.Fatalf("added = %v", added)
	}

	data, _ := s.Read(context.Background())
	r, _ := data.Repeater(document.RepeaterUniversal)
	if ids := r.IDs(); len(ids) != 2 || ids[0] != "athletics" || ids[1] != "row1" {
		t.Fatalf("ids = %v", ids)
	}
	e, _ := r.Get("athletics")
	got := document.SkillEntryFrom(e)
	want := document.SkillEntry{Skill: "athletics", DefaultPercent: 9}
	if got != want {
		t.Fatalf("entry = %+v, want %+v", got, want)
	}
	kept, _ := r.Get("row1")
	if document.SkillEntryFrom(kept).Percent != 60 {
		t.Fatalf("existing entry changed: %v", kept)
	}
	// one repeater write, one clear, one restore
	if n := len(s.Writes()); n != 3 {
		t.Fatalf("writes = %d, want 3", n)
	}

	s.ResetWrites()
	added, err = o.EnsureUniversalSkills(context.Background(), s)
	if err != nil || len(added) != 0 {
		t.Fatalf("second ensure = %v, %v", added, err)
	}
	if len(s.Writes()) != 0 {
		t.Fatal("second ensure should not write")
	}
}

func TestParseSortKey(t *testing.T) {
	if k, err := ParseSortKey("percent"); err != nil || k != ByPercent {
		t.Fatalf("ParseSortKey(percent) = %v, %v", k, err)
	}
	if _, err := ParseSortKey("age"); err == nil {
		t.Fatal("expected error")
	}
}
