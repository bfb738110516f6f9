package users

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicy   = bluemonday.StrictPolicy()
	angleBracket = strings.NewReplacer("<", "", ">", "")
)

// SanitizeText strips markup from free-text profile input. Entities are
// decoded so "R&D" round-trips, and any angle bracket that decoding brings
// back is dropped so encoded markup cannot come alive.
func SanitizeText(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	plain := html.UnescapeString(textPolicy.Sanitize(value))
	return strings.TrimSpace(angleBracket.Replace(plain))
}
