// Package errors provides coded domain errors shared by the sheet packages.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Document errors
	CodeDocumentTypeMismatch Code = "DOCUMENT_TYPE_MISMATCH"
	CodeUpgradeInProgress    Code = "UPGRADE_IN_PROGRESS"

	// Migration descriptor errors
	CodeInvalidMigrationStep Code = "INVALID_MIGRATION_STEP"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeBatchTooLarge Code = "BATCH_TOO_LARGE"

	// Catalog errors
	CodeMissingCatalogRow Code = "MISSING_CATALOG_ROW"

	// Listener errors
	CodeMissingElement        Code = "MISSING_ELEMENT"
	CodeListenerCallbackFault Code = "LISTENER_CALLBACK_FAULT"

	// Dice errors
	CodeDiceMissing           Code = "DICE_MISSING"
	CodeDiceInvalidSpec       Code = "DICE_INVALID_SPEC"
	CodeDiceInvalidExpression Code = "DICE_INVALID_EXPRESSION"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - malformed descriptors, batches, dice
	case CodeInvalidMigrationStep,
		CodeBatchTooLarge,
		CodeDiceMissing,
		CodeDiceInvalidSpec,
		CodeDiceInvalidExpression:
		return codes.InvalidArgument

	// FailedPrecondition - the sheet layout or schema does not match the script
	case CodeDocumentTypeMismatch,
		CodeMissingElement:
		return codes.FailedPrecondition

	case CodeUpgradeInProgress:
		return codes.Aborted

	case CodeNotFound,
		CodeMissingCatalogRow:
		return codes.NotFound

	case CodeListenerCallbackFault:
		return codes.Internal

	default:
		return codes.Unknown
	}
}
