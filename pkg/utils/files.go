package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// NormalizePath makes path absolute and uses forward slashes, the form
// library records are keyed by.
func NormalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return filepath.ToSlash(filepath.Clean(abs)), nil
}

// NativePath converts a stored path back to the separator of the host.
func NativePath(path string) string {
	return filepath.FromSlash(path)
}

// MakeDir creates a directory with all parent directories
func MakeDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// CopyFile copies src over dst, replacing dst if it exists.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
