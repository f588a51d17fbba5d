// Package i18n renders error codes as localized messages. Message templates
// live in the errors namespace of the locale catalogs and read the error's
// metadata, as in "Table {{.table}} has no row {{.id}}".
package i18n

import (
	"strings"
	"sync"
	"text/template"

	i18ncatalog "github.com/louisbranch/sheetkit/internal/platform/i18n/catalog"
)

// Messages holds the parsed error templates of one locale.
type Messages struct {
	locale    string
	templates map[string]*template.Template
	raw       map[string]string
}

// locale -> *Messages
var compiled sync.Map

// For returns the error messages of the catalog locale closest to locale.
// Codes the locale does not translate use the base locale's text.
func For(locale string) *Messages {
	bundle := i18ncatalog.Default()
	resolved := bundle.Match(locale)
	if m, ok := compiled.Load(resolved); ok {
		return m.(*Messages)
	}
	m, _ := compiled.LoadOrStore(resolved, Compile(resolved, bundle.Messages(resolved, i18ncatalog.Errors)))
	return m.(*Messages)
}

// Compile parses templates keyed by error code. A template that does not
// parse renders as its raw text.
func Compile(locale string, templates map[string]string) *Messages {
	m := &Messages{
		locale:    locale,
		templates: make(map[string]*template.Template, len(templates)),
		raw:       make(map[string]string, len(templates)),
	}
	for code, text := range templates {
		m.raw[code] = text
		t, err := template.New(code).Option("missingkey=zero").Parse(text)
		if err != nil {
			continue
		}
		m.templates[code] = t
	}
	return m
}

// Locale returns the catalog locale the messages came from.
func (m *Messages) Locale() string {
	return m.locale
}

// Format renders code with metadata. Unknown codes render as the code and
// missing metadata renders empty.
func (m *Messages) Format(code string, metadata map[string]string) string {
	raw, ok := m.raw[code]
	if !ok {
		return code
	}
	t, ok := m.templates[code]
	if !ok {
		return raw
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	var b strings.Builder
	if err := t.Execute(&b, metadata); err != nil {
		return raw
	}
	return b.String()
}
