package migrate

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/sheetkit/internal/platform/errors"
	"github.com/louisbranch/sheetkit/internal/platform/otel"
	"github.com/louisbranch/sheetkit/internal/sheet/document"
	"github.com/louisbranch/sheetkit/internal/sheet/store"
)

// ErrUpgradeInProgress rejects a second upgrade of an instance while one is
// running.
var ErrUpgradeInProgress = apperrors.New(apperrors.CodeUpgradeInProgress, "upgrade already in progress")

// Target identifies the document to upgrade.
type Target struct {
	InstanceID int64
	Kind       string
	Store      store.Store
}

// StepReport records what one version step wrote.
type StepReport struct {
	From             int
	Writes           int
	RenamedFields    []string
	RepeatersWritten []string
	RepeatersSkipped []string
	RepeatersCleaned []string
}

// Report summarizes an Upgrade call.
type Report struct {
	Kind  document.Kind
	From  int
	To    int
	Steps []StepReport
}

// Upgraded reports whether any step ran.
func (r Report) Upgraded() bool {
	return len(r.Steps) > 0
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRepeaterCleaning runs the clear-then-restore workaround on every
// repeater rewritten by a step. A clears of zero derives the count from the
// repeater size.
func WithRepeaterCleaning(enabled bool, clears int) Option {
	return func(e *Engine) {
		e.cleanRepeaters = enabled
		e.clears = clears
	}
}

// WithTracer overrides the tracer used for upgrade spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// Engine applies a Plan to documents.
type Engine struct {
	plan           *Plan
	logger         *log.Logger
	tracer         trace.Tracer
	cleanRepeaters bool
	clears         int

	mu     sync.Mutex
	active map[int64]struct{}
}

// NewEngine builds an engine for plan. A nil plan uses DefaultPlan.
func NewEngine(plan *Plan, opts ...Option) *Engine {
	if plan == nil {
		plan = DefaultPlan()
	}
	e := &Engine{
		plan:   plan,
		logger: log.Default(),
		tracer: otel.Tracer(),
		active: map[int64]struct{}{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Plan returns the engine's plan.
func (e *Engine) Plan() *Plan {
	return e.plan
}

// Upgrade brings the document to its kind's target version, one step at a
// time. A document already at or past the target is left untouched.
func (e *Engine) Upgrade(ctx context.Context, t Target) (report Report, err error) {
	kind, err := document.ParseKind(t.Kind)
	if err != nil {
		return Report{}, err
	}
	target, err := e.plan.Target(kind)
	if err != nil {
		return Report{}, err
	}
	if t.Store == nil {
		return Report{}, fmt.Errorf("upgrade %s.%d: store is required", kind, t.InstanceID)
	}
	if err := e.acquire(t.InstanceID); err != nil {
		return Report{}, err
	}
	defer e.release(t.InstanceID)

	ctx, span := e.tracer.Start(ctx, "sheet.migrate.upgrade", trace.WithAttributes(
		attribute.String("sheet.kind", string(kind)),
		attribute.Int64("sheet.instance", t.InstanceID),
		attribute.Int("sheet.version.target", target),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	data, err := t.Store.Read(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("read %s.%d: %w", kind, t.InstanceID, err)
	}
	report = Report{Kind: kind, From: data.Version(), To: data.Version()}

	for v := data.Version(); v < target; v++ {
		step, err := e.step(ctx, t, kind, v)
		if err != nil {
			return report, err
		}
		report.Steps = append(report.Steps, step)
		report.To = v + 1
	}
	return report, nil
}

func (e *Engine) step(ctx context.Context, t Target, kind document.Kind, v int) (report StepReport, err error) {
	ctx, span := e.tracer.Start(ctx, "sheet.migrate.step", trace.WithAttributes(
		attribute.String("sheet.kind", string(kind)),
		attribute.Int64("sheet.instance", t.InstanceID),
		attribute.Int("sheet.version.from", v),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	e.logger.Printf("upgrading %s.%d from %d to %d", kind, t.InstanceID, v, v+1)
	report = StepReport{From: v}
	desc := e.plan.Descriptor(kind, v)

	data, err := t.Store.Read(ctx)
	if err != nil {
		return report, fmt.Errorf("read %s.%d at version %d: %w", kind, t.InstanceID, v, err)
	}

	updates, renamed := renameUpdates(data, desc.FieldRenames)
	report.RenamedFields = renamed
	for _, f := range desc.Updates {
		updates.Set(f.Key, document.CloneValue(f.Value))
	}
	for _, d := range desc.Derived {
		updates.Set(d.Field, derive(d.Source, t.InstanceID))
	}
	updates.Set(document.FieldVersion, v+1)

	writes, err := store.ApplyUpdates(ctx, t.Store, updates)
	report.Writes += writes
	if err != nil {
		return report, fmt.Errorf("apply %s.%d version %d: %w", kind, t.InstanceID, v+1, err)
	}

	if len(desc.RepeaterRenames) == 0 {
		return report, nil
	}
	repeaters, written, skipped, err := repeaterUpdates(ctx, t.Store, desc.RepeaterRenames)
	if err != nil {
		return report, err
	}
	report.RepeatersWritten = written
	report.RepeatersSkipped = skipped
	for _, id := range skipped {
		e.logger.Printf("repeater %s on %s.%d: nothing to rename, skipped", id, kind, t.InstanceID)
	}
	writes, err = store.ApplyUpdates(ctx, t.Store, repeaters)
	report.Writes += writes
	if err != nil {
		return report, fmt.Errorf("apply repeaters %s.%d version %d: %w", kind, t.InstanceID, v+1, err)
	}
	for _, id := range written {
		e.logger.Printf("repeater %s on %s.%d: keys renamed", id, kind, t.InstanceID)
	}

	if e.cleanRepeaters {
		for _, id := range written {
			if err := store.CleanRepeater(ctx, t.Store, id, e.clears); err != nil {
				return report, err
			}
			report.RepeatersCleaned = append(report.RepeatersCleaned, id)
		}
	}
	return report, nil
}

// renameUpdates stages, for every rename whose old field is set, a clear of
// the old id followed by a copy to the new id. Zero values such as 0, false
// and "" are carried over; only absent or nil fields are skipped. Renames are
// staged in descriptor order, so a later rename onto the same new id wins.
func renameUpdates(data document.Data, renames []Rename) (*store.Updates, []string) {
	updates := store.NewUpdates()
	var renamed []string
	for _, r := range renames {
		value, ok := data[r.Old]
		if !ok || value == nil {
			continue
		}
		updates.Set(r.Old, document.EmptyValue(value))
		updates.Set(r.New, document.CloneValue(value))
		renamed = append(renamed, r.Old)
	}
	return updates, renamed
}

// repeaterUpdates rewrites entry keys for each named repeater. Repeaters
// where no entry holds an old key are skipped.
func repeaterUpdates(ctx context.Context, s store.Store, renames []RepeaterRename) (*store.Updates, []string, []string, error) {
	updates := store.NewUpdates()
	var written, skipped []string
	for _, rr := range renames {
		value, ok, err := s.Get(ctx, rr.Repeater)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("read repeater %s: %w", rr.Repeater, err)
		}
		rep, isRepeater := value.(*document.Repeater)
		if !ok || !isRepeater || len(rr.Renames) == 0 {
			skipped = append(skipped, rr.Repeater)
			continue
		}
		rewritten, changed := renameEntries(rep, rr.Renames)
		if !changed {
			skipped = append(skipped, rr.Repeater)
			continue
		}
		updates.Set(rr.Repeater, rewritten)
		written = append(written, rr.Repeater)
	}
	return updates, written, skipped, nil
}

// renameEntries returns a copy of rep with entry keys renamed. A renamed key
// overwrites an existing value under its new name. Renames apply in slice
// order, so when two of them target the same key the later one wins.
func renameEntries(rep *document.Repeater, renames []Rename) (*document.Repeater, bool) {
	olds := make(map[string]struct{}, len(renames))
	for _, r := range renames {
		olds[r.Old] = struct{}{}
	}
	out := document.NewRepeater()
	changed := false
	rep.Each(func(id string, entry document.Entry) {
		next := make(document.Entry, len(entry))
		for key, value := range entry {
			if _, rename := olds[key]; !rename {
				next[key] = document.CloneValue(value)
			}
		}
		for _, r := range renames {
			value, ok := entry[r.Old]
			if !ok {
				continue
			}
			next[r.New] = document.CloneValue(value)
			changed = true
		}
		out.Set(id, next)
	})
	return out, changed
}

func derive(source Source, instanceID int64) any {
	switch source {
	case SourceInstanceUID:
		return document.ConvertInstanceID(instanceID)
	default:
		return nil
	}
}

func (e *Engine) acquire(id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.active[id]; busy {
		return apperrors.WrapWithMetadata(apperrors.CodeUpgradeInProgress,
			"upgrade rejected",
			map[string]string{"instance_id": strconv.FormatInt(id, 10)},
			ErrUpgradeInProgress)
	}
	e.active[id] = struct{}{}
	return nil
}

func (e *Engine) release(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, id)
}
