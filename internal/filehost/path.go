package filehost

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// NormalizePath cleans a user-supplied relative path into the canonical form
// used for directories and record keys: forward slashes, no leading or
// trailing separator, no "." or ".." segments. The root is "".
//
// It fails with ErrInvalidPath when the path climbs above the root. NUL bytes
// and reserved (dot-prefixed) segments are rejected the same way.
func NormalizePath(userPath string) (string, error) {
	if strings.ContainsRune(userPath, 0) {
		return "", fmt.Errorf("%w: contains NUL byte", ErrInvalidPath)
	}

	p := path.Clean(strings.TrimLeft(strings.ReplaceAll(userPath, `\`, "/"), "/"))
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("%w: %q escapes the root", ErrInvalidPath, userPath)
	}
	if p == "." {
		return "", nil
	}

	for _, seg := range strings.Split(p, "/") {
		if IsReservedName(seg) {
			return "", fmt.Errorf("%w: %q is reserved", ErrInvalidPath, seg)
		}
	}
	return p, nil
}

// ResolvePath normalizes userPath and joins it to root. The result is always
// root itself or a descendant of it.
func ResolvePath(root, userPath string) (string, error) {
	rel, err := NormalizePath(userPath)
	if err != nil {
		return "", err
	}

	cleanRoot := filepath.Clean(root)
	abs := filepath.Join(cleanRoot, filepath.FromSlash(rel))

	check, err := filepath.Rel(cleanRoot, abs)
	if err != nil || check == ".." || strings.HasPrefix(check, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the root", ErrInvalidPath, userPath)
	}
	return abs, nil
}

// IsReservedName reports whether a path segment is internal and never content.
func IsReservedName(name string) bool {
	return strings.HasPrefix(name, ".")
}

// ParentDirectory returns the parent of a normalized directory ("" for top-level entries).
func ParentDirectory(dir string) string {
	parent := path.Dir(dir)
	if parent == "." || parent == "/" {
		return ""
	}
	return parent
}
