package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAtomicWriteFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "state.json")

	if err := AtomicWriteFile(path, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatalf("AtomicWriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("content = %q", data)
	}

	// Overwrite replaces the content completely.
	if err := AtomicWriteFile(path, []byte(`{"b":2}`), 0o644); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != `{"b":2}` {
		t.Errorf("content after overwrite = %q", data)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 file in dir, found %d", len(entries))
	}
}

func TestRepoSlug(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"acme/widgets", "acme__widgets"},
		{"plain", "plain"},
		{"a/b/c", "a__b__c"},
		{"win\\path", "win__path"},
	}
	for _, tt := range tests {
		if got := RepoSlug(tt.input); got != tt.want {
			t.Errorf("RepoSlug(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
