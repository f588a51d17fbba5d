package sheetctl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/louisbranch/sheetkit/internal/platform/errors"
)

const testCatalog = `
tables:
  skills:
    - {id: swim, label: Swim, section: universal, stats: "str,dex"}
    - {id: athletics, label: Athletics, section: universal, stats: "str,con"}
    - {id: lore, label: Lore, section: knowledge, stats: "int"}
  rolldiff:
    - {id: default, label: Default, value: "0"}
    - {id: diff_easy, label: Easy, value: "20"}
    - {id: competitive, label: Competitive, value: "0"}
`

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(catalogPath, []byte(testCatalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return Config{
		DBPath:      filepath.Join(dir, "sheets.db"),
		CatalogPath: catalogPath,
		MaxBatch:    20,
		FaultPolicy: "fail-fast",
		Seed:        42,
		Locale:      "en-US",
	}
}

func run(t *testing.T, cfg Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Execute(context.Background(), cfg, args, &out, log.New(io.Discard, "", 0))
	return out.String(), err
}

func mustRun(t *testing.T, cfg Config, args ...string) string {
	t.Helper()
	out, err := run(t, cfg, args...)
	if err != nil {
		t.Fatalf("sheetctl %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv("SHEETKIT_DB_PATH", "")
	t.Setenv("SHEETKIT_FAULT_POLICY", "isolate")

	cfg, err := ParseConfig()
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != filepath.Join("data", "sheets.db") {
		t.Fatalf("db path = %q", cfg.DBPath)
	}
	if cfg.MaxBatch != 20 || cfg.CatalogPath != "catalog.yaml" || cfg.Locale != "en-US" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.FaultPolicy != "isolate" {
		t.Fatalf("fault policy = %q", cfg.FaultPolicy)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "valid", mutate: func(*Config) {}, ok: true},
		{name: "no db", mutate: func(c *Config) { c.DBPath = "" }},
		{name: "no catalog", mutate: func(c *Config) { c.CatalogPath = "" }},
		{name: "batch above host limit", mutate: func(c *Config) { c.MaxBatch = 21 }},
		{name: "zero batch", mutate: func(c *Config) { c.MaxBatch = 0 }},
		{name: "negative clears", mutate: func(c *Config) { c.RepeaterClears = -1 }},
		{name: "bad policy", mutate: func(c *Config) { c.FaultPolicy = "retry" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{DBPath: "x.db", CatalogPath: "c.yaml", MaxBatch: 20}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestUpgradeCommand(t *testing.T) {
	cfg := testConfig(t)

	out := mustRun(t, cfg, "upgrade", "1024", "main", "--seed-universal")
	if !strings.Contains(out, "main.1024: v0 -> v1") {
		t.Fatalf("first upgrade output %q", out)
	}
	if !strings.Contains(out, "universal skills added: swim, athletics") {
		t.Fatalf("missing seeding line in %q", out)
	}

	out = mustRun(t, cfg, "upgrade", "1024")
	if strings.TrimSpace(out) != "main.1024: already at v1" {
		t.Fatalf("second upgrade output %q", out)
	}

	ptBR := cfg
	ptBR.Locale = "pt"
	out = mustRun(t, ptBR, "upgrade", "1024")
	if strings.TrimSpace(out) != "main.1024: já está na v1" {
		t.Fatalf("translated upgrade output %q", out)
	}
}

func TestUpgradeUnknownKind(t *testing.T) {
	cfg := testConfig(t)
	_, err := run(t, cfg, "upgrade", "3", "craft")
	if !errors.Is(err, apperrors.New(apperrors.CodeDocumentTypeMismatch, "")) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
}

func TestFormatError(t *testing.T) {
	cfg := testConfig(t)
	_, kindErr := run(t, cfg, "upgrade", "3", "craft")

	tests := []struct {
		name   string
		err    error
		locale string
		want   string
	}{
		{name: "english", err: kindErr, locale: "en-US", want: "Sheet kind craft is not supported (DOCUMENT_TYPE_MISMATCH)"},
		{name: "portuguese", err: kindErr, locale: "pt-BR", want: "O tipo de ficha craft não é suportado (DOCUMENT_TYPE_MISMATCH)"},
		{name: "plain", err: errors.New("invalid instance id \"abc\""), locale: "en-US", want: `invalid instance id "abc"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatError(tt.err, tt.locale); got != tt.want {
				t.Fatalf("FormatError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRollCommand(t *testing.T) {
	cfg := testConfig(t)
	mustRun(t, cfg, "upgrade", "1024", "main")

	out := mustRun(t, cfg, "roll", "1024", "swim", "--difficulty", "diff_easy")
	if !strings.HasPrefix(out, "Swim Easy Skill Check: ") {
		t.Fatalf("roll output %q", out)
	}
	if !strings.Contains(out, "(success)") && !strings.Contains(out, "(failure)") {
		t.Fatalf("roll output without outcome %q", out)
	}

	out = mustRun(t, cfg, "roll", "1024", "lore")
	if strings.TrimSpace(out) != "No roll for this skill" {
		t.Fatalf("untrained roll output %q", out)
	}

	ptBR := cfg
	ptBR.Locale = "pt-BR"
	out = mustRun(t, ptBR, "roll", "1024", "lore")
	if strings.TrimSpace(out) != "Nenhuma rolagem para esta perícia" {
		t.Fatalf("translated output %q", out)
	}
}

func TestRollErrors(t *testing.T) {
	cfg := testConfig(t)
	_, err := run(t, cfg, "roll", "77", "swim")
	if !errors.Is(err, apperrors.New(apperrors.CodeNotFound, "")) {
		t.Fatalf("expected not found, got %v", err)
	}

	mustRun(t, cfg, "upgrade", "5", "main")
	if _, err := run(t, cfg, "roll", "5", "juggling"); err == nil {
		t.Fatal("expected unknown skill error")
	}
	if _, err := run(t, cfg, "roll", "abc", "swim"); err == nil {
		t.Fatal("expected invalid id error")
	}
}

func TestSkillsCommand(t *testing.T) {
	cfg := testConfig(t)

	out := mustRun(t, cfg, "skills", "--filter", `section = "universal"`)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "swim\t") || !strings.HasPrefix(lines[1], "athletics\t") {
		t.Fatalf("filtered skills %q", out)
	}

	if _, err := run(t, cfg, "skills", "--filter", "section = "); err == nil {
		t.Fatal("expected filter parse error")
	}

	out = mustRun(t, cfg, "skills", "--sort", "label")
	lines = strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "athletics\t") || !strings.HasPrefix(lines[1], "lore\t") || !strings.HasPrefix(lines[2], "swim\t") {
		t.Fatalf("label sorted skills %q", out)
	}
	if _, err := run(t, cfg, "skills", "--sort", "percent"); err == nil {
		t.Fatal("expected percent sort without instance to fail")
	}

	mustRun(t, cfg, "upgrade", "1024", "main", "--seed-universal")
	out = mustRun(t, cfg, "skills", "--instance", "1024", "--desc")
	lines = strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "swim\t") || !strings.HasPrefix(lines[1], "athletics\t") {
		t.Fatalf("sorted repeater %q", out)
	}
}

func TestBarsCommand(t *testing.T) {
	tests := []struct {
		name   string
		locale string
		kind   string
		want   string
	}{
		{name: "main", locale: "en-US", kind: "main", want: "Health\thp,hpmax"},
		{name: "monster translated", locale: "pt-BR", kind: "monster", want: "Vida\thp,hpmax"},
		{name: "unknown kind", locale: "en-US", kind: "craft", want: "craft: no bars"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Locale = tt.locale
			out := mustRun(t, cfg, "bars", tt.kind)
			if strings.TrimSpace(out) != tt.want {
				t.Fatalf("bars output %q, want %q", out, tt.want)
			}
		})
	}
}
