// Package script holds the entry points the host calls: sheet init, bar
// attribute discovery, and roll interception.
package script

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/louisbranch/sheetkit/internal/host"
	i18ncatalog "github.com/louisbranch/sheetkit/internal/platform/i18n/catalog"
	"github.com/louisbranch/sheetkit/internal/sheet/diceevents"
	"github.com/louisbranch/sheetkit/internal/sheet/document"
	"github.com/louisbranch/sheetkit/internal/sheet/listener"
	"github.com/louisbranch/sheetkit/internal/sheet/migrate"
	"github.com/louisbranch/sheetkit/internal/sheet/skillroll"
)

// Bar fields linked to the health gauge.
var healthBar = []string{"hp", "hpmax"}

// Option configures a Script.
type Option func(*Script)

// WithLogger sets the script logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Script) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithListeners shares an event registry.
func WithListeners(reg *listener.Registry) Option {
	return func(s *Script) {
		if reg != nil {
			s.listeners = reg
		}
	}
}

// WithDiceListeners shares a dice listener registry.
func WithDiceListeners(reg *diceevents.Registry) Option {
	return func(s *Script) {
		if reg != nil {
			s.dice = reg
		}
	}
}

// WithLocale sets the locale of labels handed to the host.
func WithLocale(locale string) Option {
	return func(s *Script) {
		if locale != "" {
			s.locale = locale
		}
	}
}

// WithUniversalSeeding adds missing universal skills on main sheet init.
func WithUniversalSeeding(enabled bool) Option {
	return func(s *Script) {
		s.seedUniversal = enabled
	}
}

// Script wires the sheet components to the host hooks.
type Script struct {
	engine        *migrate.Engine
	skills        *skillroll.Orchestrator
	listeners     *listener.Registry
	dice          *diceevents.Registry
	logger        *log.Logger
	locale        string
	seedUniversal bool

	mu       sync.Mutex
	bindings map[int64]*listener.AbortController
}

// New returns a script upgrading with engine and rolling with skills.
func New(engine *migrate.Engine, skills *skillroll.Orchestrator, opts ...Option) *Script {
	s := &Script{
		engine:   engine,
		skills:   skills,
		logger:   log.Default(),
		locale:   i18ncatalog.BaseLocale,
		bindings: map[int64]*listener.AbortController{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.engine == nil {
		s.engine = migrate.NewEngine(nil, migrate.WithLogger(s.logger))
	}
	if s.listeners == nil {
		s.listeners = listener.NewRegistry(listener.WithLogger(s.logger))
	}
	if s.dice == nil {
		s.dice = diceevents.New(diceevents.WithLogger(s.logger))
	}
	return s
}

// Listeners returns the element event registry.
func (s *Script) Listeners() *listener.Registry {
	return s.listeners
}

// DiceListeners returns the roll listener registry.
func (s *Script) DiceListeners() *diceevents.Registry {
	return s.dice
}

// InitReport summarizes an OnInit call.
type InitReport struct {
	Migration      migrate.Report
	// Sheet is the typed view of the document after init.
	Sheet          document.Variant
	SkillsBound    int
	UniversalAdded []string
}

// OnInit upgrades the sheet and, for main sheets, binds the skill rolls.
// Calling it again for the same instance replaces the earlier bindings.
// An unknown sheet kind is fatal.
func (s *Script) OnInit(ctx context.Context, sheet host.Sheet) (InitReport, error) {
	var report InitReport
	s.logger.Printf("initializing %s.%d", sheet.Kind(), sheet.InstanceID())

	migration, err := s.engine.Upgrade(ctx, migrate.Target{
		InstanceID: sheet.InstanceID(),
		Kind:       sheet.Kind(),
		Store:      sheet.Store(),
	})
	report.Migration = migration
	if err != nil {
		return report, fmt.Errorf("init %s.%d: %w", sheet.Kind(), sheet.InstanceID(), err)
	}
	if migration.Kind == document.KindMain && s.seedUniversal && s.skills != nil {
		added, err := s.skills.EnsureUniversalSkills(ctx, sheet.Store())
		if err != nil {
			return report, fmt.Errorf("init %s.%d: %w", sheet.Kind(), sheet.InstanceID(), err)
		}
		report.UniversalAdded = added
	}

	data, err := sheet.Store().Read(ctx)
	if err != nil {
		return report, fmt.Errorf("init %s.%d: %w", sheet.Kind(), sheet.InstanceID(), err)
	}
	view, err := document.Decode(sheet.Kind(), data)
	if err != nil {
		return report, fmt.Errorf("init %s.%d: %w", sheet.Kind(), sheet.InstanceID(), err)
	}
	report.Sheet = view
	mainSheet, ok := view.(document.MainSheet)
	if !ok || s.skills == nil {
		return report, nil
	}
	if mainSheet.SkillDifficulty == "" {
		s.logger.Printf("main.%d: no skill difficulty set, skill clicks will not roll", sheet.InstanceID())
	}

	ctrl := s.rebind(sheet.InstanceID())
	bound, err := s.skills.Bind(ctx, s.listeners, sheet, listener.Options{Signal: ctrl.Signal()})
	report.SkillsBound = bound
	if err != nil {
		ctrl.Abort()
		return report, fmt.Errorf("init %s.%d: %w", sheet.Kind(), sheet.InstanceID(), err)
	}
	return report, nil
}

// rebind aborts the instance's previous bindings and returns the controller
// for the new ones.
func (s *Script) rebind(instanceID int64) *listener.AbortController {
	s.mu.Lock()
	prev := s.bindings[instanceID]
	ctrl := listener.NewAbortController()
	s.bindings[instanceID] = ctrl
	s.mu.Unlock()

	if prev != nil {
		prev.Abort()
	}
	return ctrl
}

// Close drops every binding the script made for instanceID.
func (s *Script) Close(instanceID int64) {
	s.mu.Lock()
	ctrl := s.bindings[instanceID]
	delete(s.bindings, instanceID)
	s.mu.Unlock()

	if ctrl != nil {
		ctrl.Abort()
	}
}

// OnBarAttributesRequested lists the gauges a token of the sheet can show.
// Kinds without gauges return nil.
func (s *Script) OnBarAttributesRequested(sheet host.Sheet) map[string][]string {
	kind, err := document.ParseKind(sheet.Kind())
	if err != nil {
		return nil
	}
	switch kind {
	case document.KindMain, document.KindMonster:
		label := i18ncatalog.Printer(s.locale).Sprintf(i18ncatalog.KeyBarHealth)
		return map[string][]string{label: append([]string(nil), healthBar...)}
	default:
		return nil
	}
}

// OnDiceRollIntercepted offers an executed roll to the dice listeners.
func (s *Script) OnDiceRollIntercepted(ctx context.Context, result host.DiceResult, render host.RenderFunc) error {
	return s.dice.Intercept(ctx, result, render)
}
