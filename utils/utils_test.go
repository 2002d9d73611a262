package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePath(t *testing.T) {
	if _, err := ResolvePath(""); err == nil {
		t.Error("ResolvePath(\"\") should fail")
	}

	abs := filepath.Join(t.TempDir(), "token.yaml")
	got, err := ResolvePath(abs)
	if err != nil {
		t.Fatalf("ResolvePath() failed: %v", err)
	}
	if got != abs {
		t.Errorf("Expected absolute path unchanged, got %s", got)
	}

	rel, err := ResolvePath(".baselayer/auth_token.yaml")
	if err != nil {
		t.Fatalf("ResolvePath() failed: %v", err)
	}
	if !filepath.IsAbs(rel) {
		t.Errorf("Expected absolute path, got %s", rel)
	}
}

func TestMkdirIfNotExists(t *testing.T) {
	dir := t.TempDir()

	file := filepath.Join(dir, "logs", "app.log")
	if err := MkdirIfNotExists(file); err != nil {
		t.Fatalf("MkdirIfNotExists() failed: %v", err)
	}
	if info, err := os.Stat(filepath.Dir(file)); err != nil || !info.IsDir() {
		t.Errorf("Expected parent directory of %s to exist", file)
	}

	nested := filepath.Join(dir, "a", "b")
	if err := MkdirIfNotExists(nested); err != nil {
		t.Fatalf("MkdirIfNotExists() failed: %v", err)
	}
	if info, err := os.Stat(nested); err != nil || !info.IsDir() {
		t.Errorf("Expected directory %s to exist", nested)
	}
}
