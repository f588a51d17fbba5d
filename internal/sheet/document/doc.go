// Package document models the persisted record behind one character sheet.
//
// A Document is a flat mapping of field id to value, where a value is one of
// nil (absent), bool, a number, string, or a *Repeater. Repeaters hold the
// sheet's one-to-many data as an insertion-ordered mapping of host-assigned
// entry ids to flat Entry records.
//
// Each document carries a Kind tag ("main", "monster") and an integer schema
// version stored in its own "version" field. The typed variants (MainSheet,
// MonsterSheet) are read-only views decoded from Data; writes always go
// through the batched store path.
package document
