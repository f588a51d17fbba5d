// Package skillroll turns skill clicks into roll submissions and maintains
// the skill repeaters of main sheets.
package skillroll

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/louisbranch/sheetkit/internal/core/check"
	"github.com/louisbranch/sheetkit/internal/core/dice"
	"github.com/louisbranch/sheetkit/internal/host"
	"github.com/louisbranch/sheetkit/internal/platform/otel"
	"github.com/louisbranch/sheetkit/internal/sheet/catalog"
	"github.com/louisbranch/sheetkit/internal/sheet/document"
	"github.com/louisbranch/sheetkit/internal/sheet/listener"
)

// Roll tags.
const (
	TagSkillPercent = "skillPercent"
	TagDifficulty   = "difficulty"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer overrides the tracer used for roll spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithLanguage sets the locale used to compare skill labels.
func WithLanguage(tag language.Tag) Option {
	return func(o *Orchestrator) {
		o.lang = tag
	}
}

// Orchestrator resolves skill rolls against a catalog.
type Orchestrator struct {
	catalog catalog.Catalog
	roller  host.Roller
	logger  *log.Logger
	tracer  trace.Tracer
	lang    language.Tag
}

// New returns an orchestrator submitting rolls to roller.
func New(c catalog.Catalog, roller host.Roller, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog: c,
		roller:  roller,
		logger:  log.Default(),
		tracer:  otel.Tracer(),
		lang:    language.English,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Plan is a roll ready for submission.
type Plan struct {
	Expr       dice.Expr
	Title      string
	Visibility string
}

// Build composes the roll for a skill at a difficulty tier. The competitive
// tier rolls an open-ended percentile plus the skill percent; every other
// tier compares 1d100 plus the tier modifier against the skill percent.
func Build(skill catalog.Skill, diff catalog.Difficulty, percent int, visibility string) Plan {
	if diff.Competitive() {
		return Plan{
			Expr: dice.Add(
				dice.Paren(dice.If(
					dice.Compare(dice.D(1, 100), check.Less, dice.N(100)),
					dice.RerollOn(dice.D(1, 100), 100),
					dice.Add(dice.N(100), dice.Paren(dice.If(
						dice.Compare(dice.D(1, 20), check.Less, dice.N(20)),
						dice.RerollOn(dice.D(1, 20), 20),
						dice.Add(dice.N(20), dice.Expl(dice.D(1, 6))),
					))),
				)),
				dice.TaggedN(percent, TagSkillPercent),
			),
			Title:      skill.Label + " " + diff.Label + " Check",
			Visibility: visibility,
		}
	}
	return Plan{
		Expr: dice.Compare(
			dice.Add(dice.D(1, 100), dice.TaggedN(diff.Value, TagDifficulty)),
			check.Less,
			dice.TaggedN(percent, TagSkillPercent),
		),
		Title:      skill.Label + " " + diff.Label + " Skill Check",
		Visibility: visibility,
	}
}

// Floor is the untrained percent of a universal skill: the lowest of the
// listed attributes. A missing attribute counts as zero.
func Floor(data document.Data, stats []string) int {
	if len(stats) == 0 {
		return 0
	}
	lowest := math.Inf(1)
	for _, stat := range stats {
		v, _ := data.Number(stat)
		lowest = min(lowest, v)
	}
	return int(lowest)
}

// PercentField is the field holding a skill's trained percent.
func PercentField(skillID string) string { return skillID + "_pct" }

// TrainedField flags a universal skill as trained.
func TrainedField(skillID string) string { return skillID + "_isTrained" }

// Resolve builds the roll a click on skillID would submit. It reports false
// when no roll applies: an untrained non-universal skill, or a catalog row
// that no longer exists.
func (o *Orchestrator) Resolve(ctx context.Context, sheet host.Sheet, skillID string) (Plan, bool, error) {
	skill, err := catalog.LookupSkill(o.catalog, skillID)
	if err != nil {
		if errors.Is(err, catalog.ErrMissingRow) {
			o.logger.Printf("skill %s: missing catalog row, skipping", skillID)
			return Plan{}, false, nil
		}
		return Plan{}, false, err
	}

	data, err := sheet.Store().Read(ctx)
	if err != nil {
		return Plan{}, false, fmt.Errorf("read sheet %d: %w", sheet.InstanceID(), err)
	}

	percent := o.percent(sheet, data, skill.ID)
	if skill.Universal() {
		if !data.Bool(TrainedField(skill.ID)) {
			percent = Floor(data, skill.Stats)
		}
	} else if percent == 0 {
		return Plan{}, false, nil
	}

	diffID := data.String(document.FieldSkillDifficulty)
	diff, err := catalog.LookupDifficulty(o.catalog, diffID)
	if err != nil {
		if errors.Is(err, catalog.ErrMissingRow) {
			o.logger.Printf("difficulty %s: missing catalog row, skipping", diffID)
			return Plan{}, false, nil
		}
		return Plan{}, false, err
	}
	return Build(skill, diff, percent, data.String(document.FieldDiceVisibility)), true, nil
}

// percent prefers the live element value over the stored field.
func (o *Orchestrator) percent(sheet host.Sheet, data document.Data, skillID string) int {
	field := PercentField(skillID)
	if el, ok := sheet.Element(field); ok {
		if v, ok := document.Number(el.Value()); ok {
			return int(v)
		}
	}
	v, _ := data.Number(field)
	return int(v)
}

// Roll resolves and submits the roll for skillID. It reports whether a roll
// was submitted.
func (o *Orchestrator) Roll(ctx context.Context, sheet host.Sheet, skillID string) (rolled bool, err error) {
	ctx, span := o.tracer.Start(ctx, "sheet.skillroll", trace.WithAttributes(
		attribute.Int64("sheet.instance", sheet.InstanceID()),
		attribute.String("sheet.skill", skillID),
	))
	defer func() {
		span.SetAttributes(attribute.Bool("sheet.skill.rolled", rolled))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	plan, ok, err := o.Resolve(ctx, sheet, skillID)
	if err != nil || !ok {
		return false, err
	}
	if err := o.roller.SubmitRoll(ctx, sheet, plan.Expr, plan.Title, plan.Visibility); err != nil {
		return false, fmt.Errorf("submit %s: %w", plan.Title, err)
	}
	return true, nil
}

// Bind registers a click listener on every catalog skill the sheet shows.
// Skills without an element are skipped. opts apply to every listener.
// Clicks keep ctx's values but not its cancellation; opts.Signal ends them.
func (o *Orchestrator) Bind(ctx context.Context, reg *listener.Registry, sheet host.Sheet, opts listener.Options) (int, error) {
	clickCtx := context.WithoutCancel(ctx)
	bound := 0
	for _, skill := range catalog.Skills(o.catalog) {
		if _, ok := sheet.Element(skill.ID); !ok {
			continue
		}
		skillID := skill.ID
		_, err := reg.Register(sheet, skillID, host.EventClick, func(listener.Event) error {
			_, err := o.Roll(clickCtx, sheet, skillID)
			return err
		}, opts)
		if err != nil {
			return bound, fmt.Errorf("bind skill %s: %w", skillID, err)
		}
		bound++
	}
	return bound, nil
}
