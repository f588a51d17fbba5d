package memhost

import (
	"context"
	"errors"
	"testing"

	"github.com/louisbranch/sheetkit/internal/core/check"
	"github.com/louisbranch/sheetkit/internal/core/dice"
	"github.com/louisbranch/sheetkit/internal/host"
	"github.com/louisbranch/sheetkit/internal/sheet/document"
	"github.com/louisbranch/sheetkit/internal/sheet/store"
)

// faces replays fixed die faces; Intn returns face-1.
type faces []int

func (f *faces) Intn(n int) int {
	if len(*f) == 0 {
		return 0
	}
	v := (*f)[0]
	*f = (*f)[1:]
	return v - 1
}

func TestElementKeepsOneHandlerPerType(t *testing.T) {
	sheet := NewSheet(7, "main", store.NewMemoryStore(nil))
	el := sheet.AddElement("roll", nil)

	var calls []string
	el.On(host.EventClick, func(host.Element) error {
		calls = append(calls, "first")
		return nil
	})
	el.On(host.EventClick, func(host.Element) error {
		calls = append(calls, "second")
		return nil
	})

	if err := el.Fire(host.EventClick); err != nil {
		t.Fatalf("fire: %v", err)
	}
	if len(calls) != 1 || calls[0] != "second" {
		t.Fatalf("calls = %v, want [second]", calls)
	}
	if got := el.Installs(host.EventClick); got != 2 {
		t.Fatalf("installs = %d, want 2", got)
	}

	el.Off(host.EventClick)
	if err := el.Fire(host.EventClick); err != nil {
		t.Fatalf("fire after off: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("handler ran after Off: %v", calls)
	}
}

func TestSheetRows(t *testing.T) {
	sheet := NewSheet(7, "main", store.NewMemoryStore(nil))
	sheet.AddElement("skills", nil)

	row, err := sheet.AddRow("skills", "r1", map[string]any{"skill": "swim", "percent": 40})
	if err != nil {
		t.Fatalf("add row: %v", err)
	}
	repeater, _ := sheet.Element("skills")
	found, ok := repeater.Find("r1")
	if !ok || found.ID() != row.ID() {
		t.Fatal("row not reachable from repeater")
	}
	field, ok := found.Find("percent")
	if !ok || field.Value() != 40 || field.Index() != "r1" {
		t.Fatalf("unexpected field %v", field)
	}

	if _, err := sheet.AddRow("missing", "r1", nil); err == nil {
		t.Fatal("expected error for missing repeater")
	}
	if _, ok := sheet.Element("nope"); ok {
		t.Fatal("unexpected element")
	}
	if ids := sheet.ElementIDs(); len(ids) != 1 || ids[0] != "skills" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestRollerTagsSheetAndIntercepts(t *testing.T) {
	sheet := NewSheet(1024, "main", store.NewMemoryStore(document.Data{document.FieldUID: "ID_BACE"}))
	src := faces{30}
	roller := NewRollerWithSource(&src)

	var seen host.DiceResult
	roller.Intercept(func(_ context.Context, result host.DiceResult, render host.RenderFunc) error {
		seen = result
		render("resultCustom", func(fields map[string]any) {
			fields["total"] = result.Total
		})
		return nil
	})

	expr := dice.Compare(dice.Add(dice.D(1, 100), dice.TaggedN(10, "difficulty")), check.Less, dice.TaggedN(55, "skillPercent"))
	if err := roller.SubmitRoll(context.Background(), sheet, expr, "Swim Easy Skill Check", "visible"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if seen.Total != 40 || !seen.Compared || !seen.Success || seen.Margin != 15 {
		t.Fatalf("unexpected result %+v", seen)
	}
	if want := "(1d100 + 10[difficulty] < 55[skillPercent])[ID_BACE]"; seen.Expression != want {
		t.Fatalf("expression = %q, want %q", seen.Expression, want)
	}
	if !seen.ContainsTag("ID_BACE") || !seen.ContainsTag("difficulty") || !seen.ContainsTag("skillPercent") {
		t.Fatalf("tags = %v", seen.AllTags)
	}
	if seen.InstanceID != 1024 || seen.Visibility != "visible" {
		t.Fatalf("unexpected result %+v", seen)
	}
	views := roller.Views()
	if len(views) != 1 || views[0].ID != "resultCustom" || views[0].Fields["total"] != 40 {
		t.Fatalf("views = %+v", views)
	}
	if len(roller.Results()) != 1 {
		t.Fatalf("results = %d", len(roller.Results()))
	}
}

func TestRollerPropagatesInterceptError(t *testing.T) {
	src := faces{3}
	roller := NewRollerWithSource(&src)
	boom := errors.New("boom")
	roller.Intercept(func(context.Context, host.DiceResult, host.RenderFunc) error { return boom })

	err := roller.SubmitRoll(context.Background(), nil, dice.D(1, 6), "d6", "")
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestRollerRejectsInvalidExpression(t *testing.T) {
	roller, err := NewRoller(42)
	if err != nil {
		t.Fatalf("new roller: %v", err)
	}
	if roller.Seed() != 42 {
		t.Fatalf("seed = %d", roller.Seed())
	}
	if err := roller.SubmitRoll(context.Background(), nil, dice.D(1, 0), "bad", ""); err == nil {
		t.Fatal("expected error for zero-sided die")
	}
}
