package documents

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Category string

const (
	CategoryIqama       Category = "iqama"
	CategoryIDCopy      Category = "id_copy"
	CategoryPassport    Category = "passport"
	CategoryCertificate Category = "certificate"
	CategoryResume      Category = "resume"
)

var allCategories = []Category{
	CategoryIqama,
	CategoryIDCopy,
	CategoryPassport,
	CategoryCertificate,
	CategoryResume,
}

var titleCaser = cases.Title(language.English)

// Categories returns the fixed category set in display order.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// ParseCategory matches raw exactly against the fixed set.
func ParseCategory(raw string) (Category, bool) {
	for _, c := range allCategories {
		if string(c) == raw {
			return c, true
		}
	}
	return "", false
}

// DisplayName renders id_copy as "Id Copy".
func (c Category) DisplayName() string {
	return titleCaser.String(strings.ReplaceAll(string(c), "_", " "))
}

type CategoryInfo struct {
	Category    Category `json:"category"`
	DisplayName string   `json:"display_name"`
}

func ListCategories() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(allCategories))
	for _, c := range allCategories {
		out = append(out, CategoryInfo{Category: c, DisplayName: c.DisplayName()})
	}
	return out
}
