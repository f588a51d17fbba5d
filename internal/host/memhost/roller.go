package memhost

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/louisbranch/sheetkit/internal/core/dice"
	"github.com/louisbranch/sheetkit/internal/host"
	"github.com/louisbranch/sheetkit/internal/random"
	"github.com/louisbranch/sheetkit/internal/sheet/document"
)

// Interceptor receives every executed roll before it is displayed.
type Interceptor func(ctx context.Context, result host.DiceResult, render host.RenderFunc) error

// View is a rendered roll view.
type View struct {
	ID     string
	Fields map[string]any
}

// Roller evaluates submitted expressions with the core dice evaluator.
type Roller struct {
	mu        sync.Mutex
	rng       dice.Source
	seed      int64
	intercept Interceptor
	results   []host.DiceResult
	views     []View
}

// NewRoller returns a roller seeded with seed; zero draws a crypto seed.
func NewRoller(seed int64) (*Roller, error) {
	rng, used, err := random.NewRand(seed)
	if err != nil {
		return nil, fmt.Errorf("seed roller: %w", err)
	}
	return &Roller{rng: rng, seed: used}, nil
}

// NewRollerWithSource returns a roller drawing faces from src.
func NewRollerWithSource(src dice.Source) *Roller {
	return &Roller{rng: src}
}

// Seed returns the seed in use, or zero for an explicit source.
func (r *Roller) Seed() int64 {
	return r.seed
}

// Intercept installs fn as the roll interception hook.
func (r *Roller) Intercept(fn Interceptor) {
	r.mu.Lock()
	r.intercept = fn
	r.mu.Unlock()
}

// SubmitRoll implements host.Roller. Rolls made from a sheet are wrapped in
// the sheet's uid tag.
func (r *Roller) SubmitRoll(ctx context.Context, sheet host.Sheet, expr dice.Expr, title, visibility string) error {
	var instanceID int64
	if sheet != nil && expr != nil {
		instanceID = sheet.InstanceID()
		uid, err := sheetUID(ctx, sheet)
		if err != nil {
			return err
		}
		if uid != "" && !slices.Contains(dice.Tags(expr), uid) {
			expr = dice.Tag(expr, uid)
		}
	}

	r.mu.Lock()
	outcome, err := dice.Evaluate(expr, r.rng)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("roll %q: %w", title, err)
	}

	result := host.DiceResult{
		InstanceID: instanceID,
		Title:      title,
		Expression: outcome.Expression,
		Total:      outcome.Total,
		Compared:   outcome.Compared,
		Success:    outcome.Success,
		Margin:     outcome.Margin,
		AllTags:    outcome.Tags,
		Visibility: visibility,
	}

	r.mu.Lock()
	r.results = append(r.results, result)
	intercept := r.intercept
	r.mu.Unlock()

	if intercept == nil {
		return nil
	}
	return intercept(ctx, result, r.render)
}

func (r *Roller) render(viewID string, populate func(fields map[string]any)) {
	fields := map[string]any{}
	if populate != nil {
		populate(fields)
	}
	r.mu.Lock()
	r.views = append(r.views, View{ID: viewID, Fields: fields})
	r.mu.Unlock()
}

// Results returns every executed roll in submission order.
func (r *Roller) Results() []host.DiceResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.results)
}

// Views returns every rendered view in render order.
func (r *Roller) Views() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.views)
}

func sheetUID(ctx context.Context, sheet host.Sheet) (string, error) {
	s := sheet.Store()
	if s == nil {
		return "", nil
	}
	v, ok, err := s.Get(ctx, document.FieldUID)
	if err != nil {
		return "", fmt.Errorf("read uid: %w", err)
	}
	if !ok {
		return "", nil
	}
	uid, _ := v.(string)
	if !strings.HasPrefix(uid, document.IDPrefix) {
		return "", nil
	}
	return uid, nil
}
