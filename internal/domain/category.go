package domain

import (
	"strings"

	"github.com/samber/lo"
)

// Category is a canonical skill category for math questions.
type Category string

const (
	CategoryAljabar      Category = "aljabar"
	CategoryGeometri     Category = "geometri"
	CategoryAritmatika   Category = "aritmatika"
	CategoryKalkulus     Category = "kalkulus"
	CategoryTrigonometri Category = "trigonometri"
	CategoryStatistik    Category = "statistik"
	// CategoryUmum ("general") absorbs missing and unknown categories.
	CategoryUmum Category = "umum"

	// CategoryOverall is the pseudo-category selecting score-based grouping.
	CategoryOverall Category = "overall"

	DefaultSubcategory = "general"
)

// CanonicalCategories lists the fixed category set in display order.
var CanonicalCategories = []Category{
	CategoryAljabar,
	CategoryGeometri,
	CategoryAritmatika,
	CategoryKalkulus,
	CategoryTrigonometri,
	CategoryStatistik,
	CategoryUmum,
}

// ResolveCategory normalizes a raw category value onto the canonical set.
func ResolveCategory(raw string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if c.IsCanonical() {
		return c
	}
	return CategoryUmum
}

// ResolveSubcategory trims the value and falls back to DefaultSubcategory.
func ResolveSubcategory(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return DefaultSubcategory
	}
	return s
}

// IsCanonical reports whether c belongs to the canonical set.
func (c Category) IsCanonical() bool {
	return lo.Contains(CanonicalCategories, c)
}
