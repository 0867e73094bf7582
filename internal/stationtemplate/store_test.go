package stationtemplate

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeTemplate(t *testing.T, path, chargePointModel string) {
	t.Helper()
	contents := `{"chargePointModel":"` + chargePointModel + `","numberOfConnectors":1}`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
}

func TestGetCachesByContentHash(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.json")
	pathB := filepath.Join(dir, "b.json")
	writeTemplate(t, pathA, "X")
	writeTemplate(t, pathB, "X") // identical content, different file

	s := New(0, zap.NewNop())
	tplA, err := s.Get(pathA)
	if err != nil {
		t.Fatalf("Get pathA: %v", err)
	}
	tplB, err := s.Get(pathB)
	if err != nil {
		t.Fatalf("Get pathB: %v", err)
	}
	if tplA != tplB {
		t.Fatal("expected two files with identical content to dedup to the same cached template")
	}
}

func TestOnChangeDoesNotFireOnFirstGet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tpl.json")
	writeTemplate(t, path, "X")

	s := New(0, zap.NewNop())
	fired := false
	s.OnChange(path, func(string, *Template) { fired = true })

	if _, err := s.Get(path); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fired {
		t.Fatal("expected OnChange not to fire on the first observation of a path")
	}
}

func TestOnChangeDoesNotFireWhenContentUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tpl.json")
	writeTemplate(t, path, "X")

	s := New(0, zap.NewNop())
	if _, err := s.Get(path); err != nil {
		t.Fatalf("first Get: %v", err)
	}

	fired := false
	s.OnChange(path, func(string, *Template) { fired = true })
	if _, err := s.Get(path); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if fired {
		t.Fatal("expected OnChange not to fire when re-reading unchanged content")
	}
}

func TestOnChangeFiresOnceOnHashChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tpl.json")
	writeTemplate(t, path, "X")

	s := New(0, zap.NewNop())
	if _, err := s.Get(path); err != nil {
		t.Fatalf("first Get: %v", err)
	}

	calls := 0
	var seenModel string
	s.OnChange(path, func(_ string, tpl *Template) {
		calls++
		seenModel = tpl.ChargePointModel
	})

	writeTemplate(t, path, "Y")
	if _, err := s.Get(path); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one OnChange call, got %d", calls)
	}
	if seenModel != "Y" {
		t.Fatalf("expected callback to see the new template, got model %q", seenModel)
	}

	// A third, unchanged read must not fire the callback again.
	if _, err := s.Get(path); err != nil {
		t.Fatalf("third Get: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected callback count to stay at 1 after an unchanged re-read, got %d", calls)
	}
}

func TestInvalidateForcesReparseOnNextGet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tpl.json")
	writeTemplate(t, path, "X")

	s := New(0, zap.NewNop())
	first, err := s.Get(path)
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	s.Invalidate(path)

	second, err := s.Get(path)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if first == second {
		t.Fatal("expected Invalidate to evict the cached entry so Get reparses")
	}
	if second.ChargePointModel != "X" {
		t.Fatalf("expected reparsed content to match, got %q", second.ChargePointModel)
	}
}

func TestContentHashIsStableAndDistinguishesContent(t *testing.T) {
	h1 := ContentHash([]byte(`{"a":1}`))
	h2 := ContentHash([]byte(`{"a":1}`))
	h3 := ContentHash([]byte(`{"a":2}`))
	if h1 != h2 {
		t.Fatal("expected ContentHash to be deterministic")
	}
	if h1 == h3 {
		t.Fatal("expected different content to hash differently")
	}
}
