// Package catalog is the read-only accessor over the host's reference tables
// (skills, difficulty tiers, attributes). Tables are keyed by row id and keep
// the order they were authored in.
package catalog

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/sheetkit/internal/platform/errors"
)

// Table names used by the sheet script.
const (
	TableSkills       = "skills"
	TableDifficulties = "rolldiff"
	TableAttributes   = "attributes"
	TableVisibility   = "diceVisibility"
)

// DefaultRowID names the placeholder row some tables carry.
const DefaultRowID = "default"

// ErrMissingRow is returned when a referenced row id is not in its table.
var ErrMissingRow = apperrors.New(apperrors.CodeMissingCatalogRow, "missing catalog row")

// Row is one catalog record. Every row has an "id" column.
type Row map[string]any

// ID returns the row id.
func (r Row) ID() string {
	return r.String("id")
}

// String returns the column as text. Numbers are formatted.
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int parses the column as an integer. Host tables store numbers as text.
func (r Row) Int(column string) (int, bool) {
	switch v := r[column].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

// Table is a read-only reference table.
type Table interface {
	// Each visits rows in table order.
	Each(fn func(Row))
	Get(id string) (Row, bool)
}

// Catalog resolves tables by name.
type Catalog interface {
	Table(name string) (Table, bool)
}

// MemoryTable is an ordered in-memory Table.
type MemoryTable struct {
	rows []Row
	byID map[string]int
}

// NewMemoryTable indexes rows by id. Later duplicates replace earlier rows in
// place.
func NewMemoryTable(rows []Row) *MemoryTable {
	t := &MemoryTable{byID: make(map[string]int, len(rows))}
	for _, row := range rows {
		id := row.ID()
		if idx, ok := t.byID[id]; ok {
			t.rows[idx] = row
			continue
		}
		t.byID[id] = len(t.rows)
		t.rows = append(t.rows, row)
	}
	return t
}

// Each implements Table.
func (t *MemoryTable) Each(fn func(Row)) {
	for _, row := range t.rows {
		fn(row)
	}
}

// Get implements Table.
func (t *MemoryTable) Get(id string) (Row, bool) {
	idx, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return t.rows[idx], true
}

// Len returns the number of rows.
func (t *MemoryTable) Len() int {
	return len(t.rows)
}

// MemoryCatalog is a Catalog of MemoryTables.
type MemoryCatalog struct {
	tables map[string]*MemoryTable
}

// NewMemoryCatalog builds a catalog from named row lists.
func NewMemoryCatalog(tables map[string][]Row) *MemoryCatalog {
	c := &MemoryCatalog{tables: make(map[string]*MemoryTable, len(tables))}
	for name, rows := range tables {
		c.tables[name] = NewMemoryTable(rows)
	}
	return c
}

// Table implements Catalog.
func (c *MemoryCatalog) Table(name string) (Table, bool) {
	t, ok := c.tables[name]
	if !ok {
		return nil, false
	}
	return t, true
}

// ToArray collects the rows of t in order. With skipDefault the "default"
// placeholder row is left out.
func ToArray(t Table, skipDefault bool) []Row {
	if t == nil {
		return nil
	}
	var out []Row
	t.Each(func(row Row) {
		if skipDefault && row.ID() == DefaultRowID {
			return
		}
		out = append(out, row)
	})
	return out
}

// ToMap indexes rows by the given column. Later rows win on collision.
func ToMap(rows []Row, column string) map[string]Row {
	out := make(map[string]Row, len(rows))
	for _, row := range rows {
		out[row.String(column)] = row
	}
	return out
}

func missingRow(table, id string) error {
	return apperrors.WrapWithMetadata(apperrors.CodeMissingCatalogRow,
		fmt.Sprintf("%s row %q not found", table, id),
		map[string]string{"table": table, "id": id},
		ErrMissingRow)
}
