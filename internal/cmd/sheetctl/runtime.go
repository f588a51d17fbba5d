package sheetctl

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"golang.org/x/text/language"

	"github.com/louisbranch/sheetkit/internal/host/memhost"
	"github.com/louisbranch/sheetkit/internal/sheet/catalog"
	"github.com/louisbranch/sheetkit/internal/sheet/listener"
	"github.com/louisbranch/sheetkit/internal/sheet/migrate"
	"github.com/louisbranch/sheetkit/internal/sheet/script"
	"github.com/louisbranch/sheetkit/internal/sheet/skillroll"
	"github.com/louisbranch/sheetkit/internal/sheet/store/sqlite"
)

// runtime is the reference host assembled from Config.
type runtime struct {
	cfg     Config
	db      *sqlite.Store
	catalog catalog.Catalog
	lang    language.Tag
	roller  *memhost.Roller
	skills  *skillroll.Orchestrator
	script  *script.Script
	logger  *log.Logger
}

type runtimeOptions struct {
	seedUniversal bool
}

func openRuntime(cfg Config, logger *log.Logger, opts runtimeOptions) (*runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	c, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	plan, err := loadPlan(cfg.MigrationsScript)
	if err != nil {
		return nil, err
	}
	policy, err := listener.ParseFaultPolicy(cfg.FaultPolicy)
	if err != nil {
		return nil, err
	}
	roller, err := memhost.NewRoller(cfg.Seed)
	if err != nil {
		return nil, err
	}
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		tag = language.English
	}

	db, err := sqlite.Open(cfg.DBPath, sqlite.WithMaxBatch(cfg.MaxBatch))
	if err != nil {
		return nil, err
	}

	engine := migrate.NewEngine(plan,
		migrate.WithLogger(logger),
		migrate.WithRepeaterCleaning(cfg.CleanRepeaters, cfg.RepeaterClears),
	)
	skills := skillroll.New(c, roller, skillroll.WithLogger(logger), skillroll.WithLanguage(tag))
	s := script.New(engine, skills,
		script.WithLogger(logger),
		script.WithLocale(cfg.Locale),
		script.WithUniversalSeeding(opts.seedUniversal),
		script.WithListeners(listener.NewRegistry(
			listener.WithLogger(logger),
			listener.WithFaultPolicy(policy),
			listener.WithDebug(cfg.Debug),
		)),
	)
	roller.Intercept(s.OnDiceRollIntercepted)

	return &runtime{
		cfg:     cfg,
		db:      db,
		catalog: c,
		lang:    tag,
		roller:  roller,
		skills:  skills,
		script:  s,
		logger:  logger,
	}, nil
}

func loadPlan(scriptPath string) (*migrate.Plan, error) {
	def := migrate.Builtin()
	if scriptPath != "" {
		extra, err := migrate.LoadScript(scriptPath)
		if err != nil {
			return nil, err
		}
		def = def.Merge(extra)
	}
	plan, err := migrate.NewPlan(def)
	if err != nil {
		return nil, fmt.Errorf("build migration plan: %w", err)
	}
	return plan, nil
}

func (r *runtime) Close() error {
	return r.db.Close()
}

// sheet loads a stored instance as a host sheet showing one element per
// catalog skill. A non-empty kind registers the instance when it is new.
func (r *runtime) sheet(ctx context.Context, id int64, kind string) (*memhost.Sheet, error) {
	var rec sqlite.SheetRecord
	var err error
	if kind != "" {
		rec, err = r.db.EnsureSheet(ctx, id, kind)
	} else {
		rec, err = r.db.GetSheet(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	sheet := memhost.NewSheet(rec.InstanceID, rec.Kind, r.db.Sheet(rec.InstanceID))
	for _, skill := range catalog.Skills(r.catalog) {
		sheet.AddElement(skill.ID, nil)
	}
	return sheet, nil
}

func parseInstanceID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid instance id %q", arg)
	}
	return id, nil
}
