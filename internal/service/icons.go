package service

import "strings"

// categoryIcons is the closed set of symbolic icon names the mobile client
// knows how to render. Unknown names are normalized to DefaultCategoryIcon
// rather than rejected, so a renamed icon can never break a category.
var categoryIcons = map[string]struct{}{
	"clipboard":   {},
	"utensils":    {},
	"thermometer": {},
	"spray-can":   {},
	"snowflake":   {},
	"box":         {},
	"trash":       {},
	"users":       {},
	"shield":      {},
	"store":       {},
}

// DefaultCategoryIcon is used for unknown or empty icon names.
const DefaultCategoryIcon = "clipboard"

// NormalizeIcon maps an icon name onto the closed icon set.
func NormalizeIcon(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := categoryIcons[name]; ok {
		return name
	}
	return DefaultCategoryIcon
}
