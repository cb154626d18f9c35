package filehost

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// suffixLength is the length of the random uniqueness suffix in stored names.
const suffixLength = 12

// allowedExtensions lists the extensions accepted on upload and rename.
var allowedExtensions = map[string]bool{
	".jpeg": true, ".jpg": true, ".png": true, ".gif": true,
	".pdf": true, ".doc": true, ".docx": true, ".txt": true,
	".zip": true, ".rar": true,
	".mp3": true, ".mp4": true, ".avi": true,
}

// IsAllowedExtension reports whether ext (lowercased, with leading dot) may be stored.
func IsAllowedExtension(ext string) bool {
	return allowedExtensions[ext]
}

// Extension returns the lowercased extension of name, including the dot.
func Extension(name string) string {
	return strings.ToLower(path.Ext(name))
}

// splitName separates the base of a file name from its extension.
func splitName(name string) (base, ext string) {
	ext = path.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// sanitizeBase turns a display base name into a safe on-disk base:
// whitespace becomes "_" and separators or control characters are dropped.
func sanitizeBase(base string) string {
	var b strings.Builder
	for _, r := range base {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case r == '/' || r == '\\' || unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

// StoredName builds the on-disk name "base-suffix.ext" for a display name.
func StoredName(displayName, suffix string) string {
	base, ext := splitName(path.Base(strings.ReplaceAll(displayName, `\`, "/")))
	return sanitizeBase(base) + "-" + suffix + strings.ToLower(ext)
}

// ExtractSuffix returns the uniqueness suffix embedded in a stored name.
func ExtractSuffix(storedName string) (string, bool) {
	base, _ := splitName(storedName)
	i := strings.LastIndexByte(base, '-')
	if i < 0 {
		return "", false
	}
	suffix := base[i+1:]
	if len(suffix) != suffixLength {
		return "", false
	}
	for _, r := range suffix {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return "", false
		}
	}
	return suffix, true
}

// DecodeOriginalName repairs names whose UTF-8 bytes were transported as one
// character per byte. The reinterpretation is kept only when it is valid UTF-8
// and introduces no replacement characters; otherwise the raw name is returned.
func DecodeOriginalName(raw string) string {
	buf := make([]byte, 0, len(raw))
	multibyte := false
	for _, r := range raw {
		if r > 0xFF {
			return raw
		}
		if r >= 0x80 {
			multibyte = true
		}
		buf = append(buf, byte(r))
	}
	if !multibyte || !utf8.Valid(buf) {
		return raw
	}
	decoded := string(buf)
	if strings.ContainsRune(decoded, utf8.RuneError) {
		return raw
	}
	return decoded
}
