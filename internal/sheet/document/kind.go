package document

import (
	"strings"

	apperrors "github.com/louisbranch/sheetkit/internal/platform/errors"
)

// Kind tags the schema a document follows.
type Kind string

const (
	KindMain    Kind = "main"
	KindMonster Kind = "monster"
)

// Kinds lists every known document kind.
var Kinds = []Kind{KindMain, KindMonster}

// ErrTypeMismatch signals a document whose kind tag matches no known schema.
var ErrTypeMismatch = apperrors.New(apperrors.CodeDocumentTypeMismatch, "document type mismatch")

// ParseKind resolves a host type tag. Unknown tags are a fatal mismatch.
func ParseKind(tag string) (Kind, error) {
	kind := Kind(strings.TrimSpace(tag))
	for _, known := range Kinds {
		if kind == known {
			return kind, nil
		}
	}
	return "", apperrors.WithMetadata(
		apperrors.CodeDocumentTypeMismatch,
		"unknown document kind "+tag,
		map[string]string{"kind": tag},
	)
}
