package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/louisbranch/sheetkit/internal/platform/errors"
	"github.com/louisbranch/sheetkit/internal/sheet/document"
	"github.com/louisbranch/sheetkit/internal/sheet/store"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sheets.db"), opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestCloseNilSafe(t *testing.T) {
	var s *Store
	if err := s.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
}

func TestEnsureSheetKeepsFirstKind(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := openTestStore(t, WithClock(func() time.Time { return fixed }))

	rec, err := s.EnsureSheet(ctx, 42, "main")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if rec.Kind != "main" || !rec.CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected record %+v", rec)
	}
	rec, err = s.EnsureSheet(ctx, 42, "monster")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if rec.Kind != "main" {
		t.Fatalf("kind overwritten: %q", rec.Kind)
	}

	if _, err := s.EnsureSheet(ctx, 7, "monster"); err != nil {
		t.Fatalf("ensure second: %v", err)
	}
	list, err := s.ListSheets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].InstanceID != 7 || list[1].InstanceID != 42 {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestGetSheetNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetSheet(context.Background(), 99)
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSheetStoreRoundTripsTypedValues(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if _, err := s.EnsureSheet(ctx, 1, "main"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	sheet := s.Sheet(1)

	rep := document.NewRepeater()
	rep.Set("z1", document.Entry{"skill": "swim", "percent": 40})
	rep.Set("a1", document.Entry{"skill": "climb"})

	fields := []store.Field{
		{Key: "characterName", Value: "Aria"},
		{Key: "str", Value: 10},
		{Key: "used", Value: false},
		{Key: "empty", Value: ""},
		{Key: "skills", Value: rep},
	}
	if err := sheet.WriteBatch(ctx, fields); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := sheet.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, f := range fields {
		if !document.Equal(data[f.Key], f.Value) {
			t.Fatalf("field %s = %v, want %v", f.Key, data[f.Key], f.Value)
		}
	}
	got, _ := data.Repeater("skills")
	if ids := got.IDs(); ids[0] != "z1" || ids[1] != "a1" {
		t.Fatalf("repeater order lost: %v", ids)
	}
	if _, ok := data["used"].(bool); !ok {
		t.Fatalf("bool type lost: %T", data["used"])
	}
}

func TestSheetStoreOverwriteAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if _, err := s.EnsureSheet(ctx, 1, "main"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	sheet := s.Sheet(1)

	if err := sheet.WriteBatch(ctx, []store.Field{{Key: "a", Value: "x"}, {Key: "b", Value: 1}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sheet.WriteBatch(ctx, []store.Field{{Key: "a", Value: "y"}, {Key: "b", Value: nil}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	v, ok, err := sheet.Get(ctx, "a")
	if err != nil || !ok || v != "y" {
		t.Fatalf("Get(a) = %v, %v, %v", v, ok, err)
	}
	if _, ok, _ := sheet.Get(ctx, "b"); ok {
		t.Fatal("expected b deleted")
	}
}

func TestSheetStoreRejectsOversizedBatch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, WithMaxBatch(3))
	if _, err := s.EnsureSheet(ctx, 1, "main"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	sheet := s.Sheet(1)
	if sheet.MaxBatch() != 3 {
		t.Fatalf("max batch = %d", sheet.MaxBatch())
	}

	fields := make([]store.Field, 4)
	for i := range fields {
		fields[i] = store.Field{Key: fmt.Sprintf("f%d", i), Value: i}
	}
	if err := sheet.WriteBatch(ctx, fields); !errors.Is(err, store.ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}

	u := store.NewUpdates()
	for _, f := range fields {
		u.Set(f.Key, f.Value)
	}
	writes, err := store.ApplyUpdates(ctx, sheet, u)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if writes != 2 {
		t.Fatalf("writes = %d, want 2", writes)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sheets.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.EnsureSheet(ctx, 5, "monster"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := s.Sheet(5).WriteBatch(ctx, []store.Field{{Key: "version", Value: 1}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	data, err := s.Sheet(5).Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if data.Version() != 1 {
		t.Fatalf("version = %d", data.Version())
	}
}
