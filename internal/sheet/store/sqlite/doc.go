// Package sqlite persists sheet documents in SQLite, one row per field.
//
// Each sheet instance is a row in sheets; its fields live in sheet_fields as
// JSON values tagged with their type so typed empties (0, "", false, empty
// repeater) survive a round trip. A WriteBatch is one transaction.
package sqlite
