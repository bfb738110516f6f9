package documents

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxFileNameBytes = 255

// CleanFileName strips control characters and surrounding space, then rejects
// names that could address anything other than a single file in the category
// directory.
func CleanFileName(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", ErrInvalidFileName
	}
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	name := strings.TrimSpace(b.String())
	switch {
	case name == "", name == ".", name == "..":
		return "", ErrInvalidFileName
	case strings.ContainsAny(name, `/\`):
		return "", ErrInvalidFileName
	case len(name) > maxFileNameBytes:
		return "", ErrInvalidFileName
	}
	return name, nil
}

// StorageKey is the deterministic location <employee>/<category>/<file>.
func StorageKey(employeeID string, category Category, fileName string) string {
	return path.Join(employeeID, string(category), fileName)
}

// EscapeFileName quotes a name for a Content-Disposition header.
func EscapeFileName(name string) string {
	name = strings.ReplaceAll(name, `\`, `\\`)
	return strings.ReplaceAll(name, `"`, `\"`)
}
