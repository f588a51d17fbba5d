package sheetctl

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"google.golang.org/genproto/googleapis/rpc/errdetails"

	"github.com/louisbranch/sheetkit/internal/host"
	"github.com/louisbranch/sheetkit/internal/host/memhost"
	apperrors "github.com/louisbranch/sheetkit/internal/platform/errors"
	i18ncatalog "github.com/louisbranch/sheetkit/internal/platform/i18n/catalog"
	"github.com/louisbranch/sheetkit/internal/sheet/catalog"
	"github.com/louisbranch/sheetkit/internal/sheet/diceevents"
	"github.com/louisbranch/sheetkit/internal/sheet/document"
	"github.com/louisbranch/sheetkit/internal/sheet/script"
	"github.com/louisbranch/sheetkit/internal/sheet/skillroll"
	"github.com/louisbranch/sheetkit/internal/sheet/store"
)

// NewRootCommand builds the sheetctl command tree. Flags override cfg.
func NewRootCommand(cfg Config, logger *log.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "sheetctl",
		Short:         "Upgrade, roll, and inspect character sheets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the sheets sqlite database (SHEETKIT_DB_PATH)")
	flags.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "path to the YAML catalog (SHEETKIT_CATALOG_PATH)")
	flags.StringVar(&cfg.MigrationsScript, "migrations", cfg.MigrationsScript, "optional Lua file with extra migration steps (SHEETKIT_MIGRATIONS_SCRIPT)")
	flags.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale for labels and messages (SHEETKIT_LOCALE)")
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed, "dice seed, 0 draws a random one (SHEETKIT_SEED)")
	flags.BoolVar(&cfg.Debug, "debug", cfg.Debug, "log listener dispatches (SHEETKIT_DEBUG)")

	root.AddCommand(
		newUpgradeCommand(&cfg, logger),
		newRollCommand(&cfg, logger),
		newSkillsCommand(&cfg, logger),
		newBarsCommand(&cfg),
	)
	return root
}

func newUpgradeCommand(cfg *Config, logger *log.Logger) *cobra.Command {
	var seedUniversal bool
	cmd := &cobra.Command{
		Use:   "upgrade <instance-id> [kind]",
		Short: "Bring a stored sheet to its current schema version",
		Long: `Upgrade runs the sheet init hook against a stored instance. Passing a kind
registers the instance first when it does not exist yet.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInstanceID(args[0])
			if err != nil {
				return err
			}
			kind := ""
			if len(args) == 2 {
				kind = args[1]
			}
			rt, err := openRuntime(*cfg, logger, runtimeOptions{seedUniversal: seedUniversal})
			if err != nil {
				return err
			}
			defer rt.Close()
			return runUpgrade(cmd.Context(), rt, cmd.OutOrStdout(), id, kind)
		},
	}
	cmd.Flags().BoolVar(&seedUniversal, "seed-universal", false, "add missing universal skills to main sheets")
	return cmd
}

func runUpgrade(ctx context.Context, rt *runtime, out io.Writer, id int64, kind string) error {
	sheet, err := rt.sheet(ctx, id, kind)
	if err != nil {
		return err
	}
	report, err := rt.script.OnInit(ctx, sheet)
	if err != nil {
		return err
	}
	defer rt.script.Close(id)

	p := i18ncatalog.Printer(rt.cfg.Locale)
	m := report.Migration
	if m.Upgraded() {
		fmt.Fprintln(out, p.Sprintf(i18ncatalog.KeyUpgradeApplied, m.Kind, itoa(id), itoa(int64(m.From)), itoa(int64(m.To))))
	} else {
		fmt.Fprintln(out, p.Sprintf(i18ncatalog.KeyUpgradeCurrent, m.Kind, itoa(id), itoa(int64(m.To))))
	}
	if len(report.UniversalAdded) > 0 {
		fmt.Fprintln(out, p.Sprintf(i18ncatalog.KeyUpgradeSeeded, strings.Join(report.UniversalAdded, ", ")))
	}
	return nil
}

func newRollCommand(cfg *Config, logger *log.Logger) *cobra.Command {
	var difficulty string
	cmd := &cobra.Command{
		Use:   "roll <instance-id> <skill-id>",
		Short: "Click a skill on a stored sheet and print the roll",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInstanceID(args[0])
			if err != nil {
				return err
			}
			rt, err := openRuntime(*cfg, logger, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()
			return runRoll(cmd.Context(), rt, cmd.OutOrStdout(), id, args[1], difficulty)
		},
	}
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "set the sheet's difficulty tier before rolling")
	return cmd
}

func runRoll(ctx context.Context, rt *runtime, out io.Writer, id int64, skillID, difficulty string) error {
	sheet, err := rt.sheet(ctx, id, "")
	if err != nil {
		return err
	}
	if difficulty != "" {
		updates := store.NewUpdates()
		updates.Set(document.FieldSkillDifficulty, difficulty)
		if _, err := store.ApplyUpdates(ctx, sheet.Store(), updates); err != nil {
			return err
		}
	}
	if _, err := rt.script.OnInit(ctx, sheet); err != nil {
		return err
	}
	defer rt.script.Close(id)

	p := i18ncatalog.Printer(rt.cfg.Locale)
	rolled := 0
	rt.script.DiceListeners().AddGlobal(nil, func(_ context.Context, r host.DiceResult, render host.RenderFunc) (diceevents.Flow, error) {
		rolled++
		outcome := p.Sprintf(i18ncatalog.KeyRollFailure)
		if r.Success {
			outcome = p.Sprintf(i18ncatalog.KeyRollSuccess)
		}
		if !r.Compared {
			outcome = p.Sprintf(i18ncatalog.KeyRollOpen)
		}
		fmt.Fprintln(out, p.Sprintf(i18ncatalog.KeyRollLine, r.Title, r.Expression, itoa(int64(r.Total)), outcome))
		render("result", func(fields map[string]any) {
			fields["title"] = r.Title
			fields["total"] = r.Total
		})
		return diceevents.Continue, nil
	})
	defer rt.script.DiceListeners().RemoveGlobal(nil)

	el, ok := sheet.Lookup(skillID)
	if !ok {
		return fmt.Errorf("skill %s is not in the catalog", skillID)
	}
	if err := el.Fire(host.EventClick); err != nil {
		return err
	}
	if rolled == 0 {
		fmt.Fprintln(out, p.Sprintf(i18ncatalog.KeyRollNone))
	}
	return nil
}

func newSkillsCommand(cfg *Config, logger *log.Logger) *cobra.Command {
	var (
		filter   string
		instance int64
		sortBy   string
		desc     bool
		repeater string
	)
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "List catalog skills, or sort a sheet's skill repeater",
		Long: `Without --instance, skills prints the catalog skills matching an AIP-160
filter such as 'section = "universal"'. With --instance, it sorts that sheet's
skill repeater and prints the new order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			by, err := skillroll.ParseSortKey(sortBy)
			if err != nil {
				return err
			}
			dir := skillroll.Asc
			if desc {
				dir = skillroll.Desc
			}
			rt, err := openRuntime(*cfg, logger, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()
			if cmd.Flags().Changed("instance") {
				return runSortSkills(cmd.Context(), rt, cmd.OutOrStdout(), instance, repeater, by, dir)
			}
			return runListSkills(rt, cmd.OutOrStdout(), filter, cmd.Flags().Changed("sort") || desc, by, dir)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "AIP-160 filter over skill rows")
	cmd.Flags().Int64Var(&instance, "instance", 0, "sheet instance whose repeater is sorted")
	cmd.Flags().StringVar(&sortBy, "sort", "label", "sort key: label or percent")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().StringVar(&repeater, "repeater", document.RepeaterUniversal, "repeater to sort")
	return cmd
}

// runListSkills prints catalog skills in catalog order unless sorted is set.
// Catalog rows carry no percent, so only label sorting applies.
func runListSkills(rt *runtime, out io.Writer, filter string, sorted bool, by skillroll.SortKey, dir skillroll.Direction) error {
	if sorted && by != skillroll.ByLabel {
		return fmt.Errorf("catalog skills can only be sorted by label, use --instance to sort by percent")
	}
	table, ok := rt.catalog.Table(catalog.TableSkills)
	if !ok {
		return fmt.Errorf("catalog has no %s table", catalog.TableSkills)
	}
	rows, err := catalog.Filter(table, filter, catalog.SkillColumns)
	if err != nil {
		return err
	}
	if sorted {
		catalog.SortByLabel(rows, rt.lang)
		if dir == skillroll.Desc {
			slices.Reverse(rows)
		}
	}
	for _, row := range rows {
		skill := catalog.SkillFromRow(row)
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", skill.ID, skill.Label, skill.Section, strings.Join(skill.Stats, ","))
	}
	return nil
}

func runSortSkills(ctx context.Context, rt *runtime, out io.Writer, id int64, repeaterID string, by skillroll.SortKey, dir skillroll.Direction) error {
	sheet, err := rt.sheet(ctx, id, "")
	if err != nil {
		return err
	}
	if err := rt.skills.SortRepeater(ctx, sheet.Store(), repeaterID, by, dir); err != nil {
		return err
	}
	data, err := sheet.Store().Read(ctx)
	if err != nil {
		return err
	}
	rep, _ := data.Repeater(repeaterID)
	for _, k := range skillroll.Entries(rep) {
		fmt.Fprintf(out, "%s\t%s\t%g\n", k.ID, k.Entry.Skill, k.Entry.EffectivePercent())
	}
	return nil
}

func newBarsCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "bars <kind>",
		Short: "Print the token bar attributes of a sheet kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBars(cmd.OutOrStdout(), cfg.Locale, args[0])
		},
	}
}

func runBars(out io.Writer, locale, kind string) error {
	s := script.New(nil, nil, script.WithLocale(locale), script.WithLogger(log.New(io.Discard, "", 0)))
	attrs := s.OnBarAttributesRequested(memhost.NewSheet(0, kind, nil))
	if attrs == nil {
		p := i18ncatalog.Printer(locale)
		fmt.Fprintln(out, p.Sprintf(i18ncatalog.KeyBarsNone, kind))
		return nil
	}
	labels := make([]string, 0, len(attrs))
	for label := range attrs {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(out, "%s\t%s\n", label, strings.Join(attrs[label], ","))
	}
	return nil
}

// itoa keeps numbers out of the printer's locale digit grouping.
func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

// Execute runs the command tree with args, writing results to out.
func Execute(ctx context.Context, cfg Config, args []string, out io.Writer, logger *log.Logger) error {
	root := NewRootCommand(cfg, logger)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	return root.ExecuteContext(ctx)
}

// FormatError renders a command failure for locale from its status: the
// localized message followed by the machine-readable reason, when known.
func FormatError(err error, locale string) string {
	st := apperrors.Status(err, locale)
	message := st.Message()
	reason := ""
	for _, d := range st.Details() {
		switch v := d.(type) {
		case *errdetails.LocalizedMessage:
			message = v.Message
		case *errdetails.ErrorInfo:
			reason = v.Reason
		}
	}
	if reason == "" {
		return message
	}
	return fmt.Sprintf("%s (%s)", message, reason)
}
