// Package catalog holds the strings sheetkit shows to players: sheet labels,
// command output and error messages. Each locale keeps one YAML file per
// namespace at locales/<locale>/<namespace>.yaml.
//
// Sheet messages are x/text format strings registered with
// golang.org/x/text/message, so Printer formats them with arguments. Error
// messages are text/template strings rendered by the errors package.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the locale every other locale falls back to, key by key.
const BaseLocale = "en-US"

// Namespaces a locale may define.
const (
	Sheet  = "sheet"
	Errors = "errors"
)

// Sheet message keys.
const (
	KeyBarHealth      = "sheet.bar.health"
	KeyBarsNone       = "sheet.bars.none"       // kind
	KeyRollNone       = "sheet.roll.none"
	KeyRollLine       = "sheet.roll.line"       // title, expression, total, outcome
	KeyRollSuccess    = "sheet.roll.success"
	KeyRollFailure    = "sheet.roll.failure"
	KeyRollOpen       = "sheet.roll.open"
	KeyUpgradeApplied = "sheet.upgrade.applied" // kind, instance, from, to
	KeyUpgradeCurrent = "sheet.upgrade.current" // kind, instance, version
	KeyUpgradeSeeded  = "sheet.upgrade.seeded"  // skill ids
)

// SheetKeys lists the keys the base locale must define.
var SheetKeys = []string{
	KeyBarHealth,
	KeyBarsNone,
	KeyRollNone,
	KeyRollLine,
	KeyRollSuccess,
	KeyRollFailure,
	KeyRollOpen,
	KeyUpgradeApplied,
	KeyUpgradeCurrent,
	KeyUpgradeSeeded,
}

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// Bundle is the set of messages of every locale, by namespace.
type Bundle struct {
	// locale -> namespace -> key -> message
	messages map[string]map[string]map[string]string
	// tags[0] is BaseLocale; matcher indexes into tags.
	tags    []language.Tag
	matcher language.Matcher
}

//go:embed locales/*/*.yaml
var embedded embed.FS

var (
	defaultOnce   sync.Once
	defaultBundle *Bundle
)

// Default returns the embedded bundle. The first call registers its sheet
// messages with x/text.
func Default() *Bundle {
	defaultOnce.Do(func() {
		b, err := Load(embedded)
		if err != nil {
			panic(err)
		}
		if err := b.Register(); err != nil {
			panic(err)
		}
		defaultBundle = b
	})
	return defaultBundle
}

// Load reads every locales/<locale>/<namespace>.yaml in fsys.
func Load(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	slices.Sort(paths)

	b := &Bundle{messages: map[string]map[string]map[string]string{}}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var f catalogFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := b.add(p, f); err != nil {
			return nil, err
		}
	}

	base, ok := b.messages[BaseLocale]
	if !ok {
		return nil, fmt.Errorf("base locale %s has no catalog", BaseLocale)
	}
	for _, key := range SheetKeys {
		if _, ok := base[Sheet][key]; !ok {
			return nil, fmt.Errorf("base locale %s is missing %q", BaseLocale, key)
		}
	}
	if err := b.index(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bundle) add(p string, f catalogFile) error {
	dirLocale := path.Base(path.Dir(p))
	fileNamespace := strings.TrimSuffix(path.Base(p), path.Ext(p))

	locale := strings.TrimSpace(f.Locale)
	if locale != dirLocale {
		return fmt.Errorf("catalog %s: locale %q must match directory %q", p, locale, dirLocale)
	}
	namespace := strings.TrimSpace(f.Namespace)
	if namespace != fileNamespace {
		return fmt.Errorf("catalog %s: namespace %q must match file name %q", p, namespace, fileNamespace)
	}
	if namespace != Sheet && namespace != Errors {
		return fmt.Errorf("catalog %s: unknown namespace %q", p, namespace)
	}
	if len(f.Messages) == 0 {
		return fmt.Errorf("catalog %s: no messages", p)
	}

	namespaces, ok := b.messages[locale]
	if !ok {
		namespaces = map[string]map[string]string{}
		b.messages[locale] = namespaces
	}
	out := make(map[string]string, len(f.Messages))
	for key, value := range f.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: blank message key", p)
		}
		for other, msgs := range namespaces {
			if _, dup := msgs[key]; dup {
				return fmt.Errorf("catalog %s: key %q already defined in %s/%s", p, key, locale, other)
			}
		}
		out[key] = value
	}
	namespaces[namespace] = out
	return nil
}

func (b *Bundle) index() error {
	b.tags = []language.Tag{language.MustParse(BaseLocale)}
	for _, locale := range b.Locales() {
		if locale == BaseLocale {
			continue
		}
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale %q: %w", locale, err)
		}
		b.tags = append(b.tags, tag)
	}
	b.matcher = language.NewMatcher(b.tags)
	return nil
}

// Locales returns the defined locales, sorted.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.messages))
	for locale := range b.messages {
		out = append(out, locale)
	}
	slices.Sort(out)
	return out
}

// Match resolves a requested locale, such as "pt" or "pt-PT", to the closest
// defined one. Unparseable or unmatched requests resolve to BaseLocale.
func (b *Bundle) Match(requested string) string {
	tag, err := language.Parse(strings.TrimSpace(requested))
	if err != nil {
		return BaseLocale
	}
	_, i, conf := b.matcher.Match(tag)
	if conf == language.No {
		return BaseLocale
	}
	return b.tags[i].String()
}

// Messages returns the namespace messages of the locale matched by
// requested, filled in from BaseLocale for keys it does not define.
func (b *Bundle) Messages(requested, namespace string) map[string]string {
	locale := b.Match(requested)
	out := maps.Clone(b.messages[BaseLocale][namespace])
	if out == nil {
		out = map[string]string{}
	}
	maps.Copy(out, b.messages[locale][namespace])
	return out
}

// Missing lists, sorted, the keys BaseLocale defines in namespace that
// locale does not.
func (b *Bundle) Missing(locale, namespace string) []string {
	var out []string
	for key := range b.messages[BaseLocale][namespace] {
		if _, ok := b.messages[locale][namespace][key]; !ok {
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return out
}

// Register adds the sheet messages of every locale to x/text's default
// catalog, under the locale tag and its bare language when that is unused.
func (b *Bundle) Register() error {
	for _, tag := range b.tags {
		tags := []language.Tag{tag}
		if base, conf := tag.Base(); conf != language.No {
			if lang, err := language.Parse(base.String()); err == nil && lang != tag && !slices.Contains(b.tags, lang) {
				tags = append(tags, lang)
			}
		}
		msgs := b.Messages(tag.String(), Sheet)
		keys := make([]string, 0, len(msgs))
		for key := range msgs {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, t := range tags {
			for _, key := range keys {
				if err := message.SetString(t, key, msgs[key]); err != nil {
					return fmt.Errorf("register %s/%s: %w", t, key, err)
				}
			}
		}
	}
	return nil
}

// Printer returns a printer for the locale matched by requested. Sheet keys
// print translated; other strings print as format strings.
func Printer(requested string) *message.Printer {
	locale := Default().Match(requested)
	return message.NewPrinter(language.MustParse(locale))
}
