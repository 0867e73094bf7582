package idtags

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSkipsBlankLinesAndComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tags.txt")
	writeFile(t, path, "TAG-1\n\n# a comment\nTAG-2\n  \nTAG-3\n")

	cache, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cache.Len(); got != 3 {
		t.Fatalf("expected 3 tags, got %d", got)
	}
}

func TestLoadRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	writeFile(t, path, "# only comments\n\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error loading a file with no tags")
	}
}

func TestNextRoundRobinCyclesInOrder(t *testing.T) {
	cache := FromSlice([]string{"A", "B", "C"})
	got := []string{
		cache.Next(RoundRobinDistribution, 0),
		cache.Next(RoundRobinDistribution, 0),
		cache.Next(RoundRobinDistribution, 0),
		cache.Next(RoundRobinDistribution, 0),
	}
	want := []string{"A", "B", "C", "A"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("round-robin sequence mismatch at %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestNextConnectorAffinityIsDeterministic(t *testing.T) {
	cache := FromSlice([]string{"A", "B", "C"})
	if got := cache.Next(ConnectorAffinityDistribution, 1); got != "B" {
		t.Fatalf("expected connector 1 to always map to B, got %s", got)
	}
	if got := cache.Next(ConnectorAffinityDistribution, 1); got != "B" {
		t.Fatalf("expected connector-affinity to be stable across calls, got %s", got)
	}
}

func TestNextOnEmptyCacheReturnsEmptyString(t *testing.T) {
	cache := FromSlice(nil)
	if got := cache.Next(RandomDistribution, 0); got != "" {
		t.Fatalf("expected empty string from an empty cache, got %q", got)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
}
