package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	dir := t.TempDir()
	got, err := NormalizePath(filepath.Join(dir, "a", "..", "song.mod"))
	if err != nil {
		t.Fatalf("NormalizePath failed: %v", err)
	}
	want := filepath.ToSlash(filepath.Join(dir, "song.mod"))
	if got != want {
		t.Errorf("NormalizePath = %q, want %q", got, want)
	}
	if strings.Contains(got, `\`) {
		t.Errorf("normalized path should use forward slashes: %q", got)
	}
	if NativePath(got) != filepath.Join(dir, "song.mod") {
		t.Errorf("NativePath did not round-trip: %q", NativePath(got))
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte("module data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("stale and longer content"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "module data" {
		t.Errorf("copied content = %q", got)
	}

	if err := CopyFile(filepath.Join(dir, "missing"), dst); err == nil {
		t.Error("expected error for missing source")
	}
}
