package migrate

import (
	"github.com/louisbranch/sheetkit/internal/sheet/document"
	"github.com/louisbranch/sheetkit/internal/sheet/store"
)

// BaseAttributeValue is the score every attribute starts at on a new sheet.
const BaseAttributeValue = 10

// Builtin is the schema history shipped with the script.
func Builtin() Definition {
	attrs := make([]store.Field, 0, len(document.Attributes))
	for _, attr := range document.Attributes {
		attrs = append(attrs, store.Field{Key: attr, Value: BaseAttributeValue})
	}
	return Definition{
		Targets: map[document.Kind]int{
			document.KindMain:    1,
			document.KindMonster: 1,
		},
		Steps: []Step{
			{
				From:    0,
				Derived: []Derivation{{Field: document.FieldUID, Source: SourceInstanceUID}},
			},
			{
				Kind:    document.KindMain,
				From:    0,
				Updates: attrs,
			},
		},
	}
}

// DefaultPlan returns the validated builtin plan.
func DefaultPlan() *Plan {
	p, err := NewPlan(Builtin())
	if err != nil {
		panic("builtin migration plan: " + err.Error())
	}
	return p
}
