// Package migrate upgrades persisted sheet documents one schema version at a
// time. A Plan holds validated step descriptors per document kind; the
// Engine applies them through the batched store write path.
package migrate

import (
	"fmt"
	"sort"
	"strconv"

	apperrors "github.com/louisbranch/sheetkit/internal/platform/errors"
	"github.com/louisbranch/sheetkit/internal/sheet/document"
	"github.com/louisbranch/sheetkit/internal/sheet/store"
)

// ErrInvalidStep is returned when a step descriptor fails validation.
var ErrInvalidStep = apperrors.New(apperrors.CodeInvalidMigrationStep, "invalid migration step")

// Rename moves a value from Old to New.
type Rename struct {
	Old string
	New string
}

// RepeaterRename renames sub-field keys inside every entry of a repeater.
type RepeaterRename struct {
	Repeater string
	Renames  []Rename
}

// Source names a value computed from the instance instead of a literal.
type Source string

// SourceInstanceUID derives the roll-tag uid from the host instance id.
const SourceInstanceUID Source = "instance_uid"

// Derivation assigns a computed value to Field.
type Derivation struct {
	Field  string
	Source Source
}

// Step describes the transformation from version From to From+1. An empty
// Kind applies the step to every kind.
type Step struct {
	Kind            document.Kind
	From            int
	FieldRenames    []Rename
	RepeaterRenames []RepeaterRename
	Updates         []store.Field
	Derived         []Derivation
}

// Descriptor is the merged transformation for one (kind, version).
type Descriptor struct {
	FieldRenames    []Rename
	RepeaterRenames []RepeaterRename
	Updates         []store.Field
	Derived         []Derivation
}

// Empty reports whether the descriptor changes nothing besides the version.
func (d Descriptor) Empty() bool {
	return len(d.FieldRenames) == 0 && len(d.RepeaterRenames) == 0 &&
		len(d.Updates) == 0 && len(d.Derived) == 0
}

// Definition is the raw material of a Plan.
type Definition struct {
	Targets map[document.Kind]int
	Steps   []Step
}

// Merge combines two definitions. Targets take the higher version and steps
// are appended after the receiver's.
func (d Definition) Merge(other Definition) Definition {
	out := Definition{Targets: map[document.Kind]int{}}
	for kind, v := range d.Targets {
		out.Targets[kind] = v
	}
	for kind, v := range other.Targets {
		if v > out.Targets[kind] {
			out.Targets[kind] = v
		}
	}
	out.Steps = append(append([]Step(nil), d.Steps...), other.Steps...)
	return out
}

type stepKey struct {
	kind document.Kind
	from int
}

// Plan is a validated set of migration steps.
type Plan struct {
	targets map[document.Kind]int
	steps   map[stepKey][]Step
}

// NewPlan validates def. Every kind must be known, every step must fall
// below its kind's target, and renames must name distinct non-empty ids with
// distinct targets.
func NewPlan(def Definition) (*Plan, error) {
	p := &Plan{targets: map[document.Kind]int{}, steps: map[stepKey][]Step{}}
	for kind, target := range def.Targets {
		if _, err := document.ParseKind(string(kind)); err != nil {
			return nil, err
		}
		if target < 0 {
			return nil, invalidStep(kind, target, "negative target version")
		}
		p.targets[kind] = target
	}
	for _, step := range def.Steps {
		if err := p.validate(step); err != nil {
			return nil, err
		}
		key := stepKey{kind: step.Kind, from: step.From}
		p.steps[key] = append(p.steps[key], step)
	}
	return p, nil
}

func (p *Plan) validate(step Step) error {
	if step.From < 0 {
		return invalidStep(step.Kind, step.From, "negative source version")
	}
	if step.Kind == "" {
		if step.From >= p.maxTarget() {
			return invalidStep(step.Kind, step.From, "source version is not below any target")
		}
	} else {
		target, ok := p.targets[step.Kind]
		if !ok {
			return invalidStep(step.Kind, step.From, "kind has no target version")
		}
		if step.From >= target {
			return invalidStep(step.Kind, step.From, "source version is not below target "+strconv.Itoa(target))
		}
	}
	if err := validateRenames(step.Kind, step.From, step.FieldRenames); err != nil {
		return err
	}
	for _, rr := range step.RepeaterRenames {
		if rr.Repeater == "" {
			return invalidStep(step.Kind, step.From, "repeater id is required")
		}
		if err := validateRenames(step.Kind, step.From, rr.Renames); err != nil {
			return err
		}
	}
	for _, f := range step.Updates {
		if f.Key == "" {
			return invalidStep(step.Kind, step.From, "update field id is required")
		}
		if f.Key == document.FieldVersion {
			return invalidStep(step.Kind, step.From, "version is managed by the engine")
		}
	}
	for _, d := range step.Derived {
		if d.Field == "" {
			return invalidStep(step.Kind, step.From, "derived field id is required")
		}
		if d.Source != SourceInstanceUID {
			return invalidStep(step.Kind, step.From, "unknown derivation source "+string(d.Source))
		}
	}
	return nil
}

func validateRenames(kind document.Kind, from int, renames []Rename) error {
	seen := map[string]struct{}{}
	targets := map[string]string{}
	for _, r := range renames {
		if r.Old == "" || r.New == "" {
			return invalidStep(kind, from, "rename ids are required")
		}
		if r.Old == r.New {
			return invalidStep(kind, from, "rename "+r.Old+" onto itself")
		}
		if r.Old == document.FieldVersion || r.New == document.FieldVersion {
			return invalidStep(kind, from, "version cannot be renamed")
		}
		if _, ok := seen[r.Old]; ok {
			return invalidStep(kind, from, "duplicate rename of "+r.Old)
		}
		if prev, ok := targets[r.New]; ok {
			return invalidStep(kind, from, "renames of "+prev+" and "+r.Old+" both target "+r.New)
		}
		seen[r.Old] = struct{}{}
		targets[r.New] = r.Old
	}
	return nil
}

func (p *Plan) maxTarget() int {
	top := 0
	for _, v := range p.targets {
		top = max(top, v)
	}
	return top
}

// Kinds lists the kinds with a target version, sorted.
func (p *Plan) Kinds() []document.Kind {
	out := make([]document.Kind, 0, len(p.targets))
	for kind := range p.targets {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Target returns the current schema version for kind.
func (p *Plan) Target(kind document.Kind) (int, error) {
	target, ok := p.targets[kind]
	if !ok {
		return 0, apperrors.WrapWithMetadata(apperrors.CodeDocumentTypeMismatch,
			"no target version for kind "+string(kind),
			map[string]string{"kind": string(kind)},
			document.ErrTypeMismatch)
	}
	return target, nil
}

// Descriptor merges the kind-agnostic steps for version v with the
// kind-specific ones. Versions with no steps yield an empty descriptor.
func (p *Plan) Descriptor(kind document.Kind, v int) Descriptor {
	var d Descriptor
	for _, key := range []stepKey{{from: v}, {kind: kind, from: v}} {
		for _, step := range p.steps[key] {
			d.FieldRenames = append(d.FieldRenames, step.FieldRenames...)
			d.RepeaterRenames = mergeRepeaterRenames(d.RepeaterRenames, step.RepeaterRenames)
			d.Updates = append(d.Updates, step.Updates...)
			d.Derived = append(d.Derived, step.Derived...)
		}
	}
	return d
}

func mergeRepeaterRenames(into, add []RepeaterRename) []RepeaterRename {
	for _, rr := range add {
		merged := false
		for i := range into {
			if into[i].Repeater == rr.Repeater {
				into[i].Renames = append(append([]Rename(nil), into[i].Renames...), rr.Renames...)
				merged = true
				break
			}
		}
		if !merged {
			into = append(into, RepeaterRename{Repeater: rr.Repeater, Renames: append([]Rename(nil), rr.Renames...)})
		}
	}
	return into
}

func invalidStep(kind document.Kind, from int, reason string) error {
	label := string(kind)
	if label == "" {
		label = "*"
	}
	return apperrors.WrapWithMetadata(apperrors.CodeInvalidMigrationStep,
		fmt.Sprintf("step %s@%d: %s", label, from, reason),
		map[string]string{"kind": label, "from": strconv.Itoa(from)},
		ErrInvalidStep)
}
