package locate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindAbsolute(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "a.yaml")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Find(f, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != f {
		t.Errorf("got %q, want %q", got, f)
	}
}

func TestFindAbsoluteMissing(t *testing.T) {
	_, err := Find(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if err == nil {
		t.Fatal("expected FileError")
	}
}

func TestFindRelativeSearchOrder(t *testing.T) {
	d1, d2 := t.TempDir(), t.TempDir()
	f2 := filepath.Join(d2, "a.yaml")
	if err := os.WriteFile(f2, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Find("a.yaml", []string{d1, d2})
	if err != nil {
		t.Fatal(err)
	}
	if got != f2 {
		t.Errorf("got %q, want %q (expected second dir to win since first lacks the file)", got, f2)
	}
}

func TestFindRelativeNotFound(t *testing.T) {
	_, err := Find("nope.yaml", []string{t.TempDir()})
	if err == nil {
		t.Fatal("expected FileError")
	}
}

func TestSearchPathIncludesEnvVar(t *testing.T) {
	t.Setenv("ORCHESTRATE_PATH", "/a"+string(os.PathListSeparator)+"/b")
	got := SearchPath([]string{"/explicit"}, "orchestrate")
	want := []string{".", "/explicit", "/a", "/b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSearchPathIncludesCwdWithNoFlagsOrEnvVar(t *testing.T) {
	t.Setenv("ORCHESTRATE_PATH", "")
	got := SearchPath(nil, "orchestrate")
	want := []string{"."}
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("got %v, want %v", got, want)
	}
}
