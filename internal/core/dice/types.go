package dice

import apperrors "github.com/louisbranch/sheetkit/internal/platform/errors"

var (
	// ErrMissingDice is returned when there is no expression to roll.
	ErrMissingDice = apperrors.New(apperrors.CodeDiceMissing, "a roll expression is required")
	// ErrInvalidDiceSpec is returned for a spec with non-positive sides or count.
	ErrInvalidDiceSpec = apperrors.New(apperrors.CodeDiceInvalidSpec, "dice spec must have positive sides and count")
	// ErrInvalidExpression is returned for a malformed roll expression.
	ErrInvalidExpression = apperrors.New(apperrors.CodeDiceInvalidExpression, "invalid roll expression")
)

// Spec describes count dice of the given sides.
type Spec struct {
	Sides int
	Count int
}

// Roll holds the faces rolled for one Spec.
type Roll struct {
	Sides   int
	Results []int
	Total   int
}

