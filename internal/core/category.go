package core

import (
	"errors"
	"strings"
)

// Category is one of the fixed spending categories.
type Category string

const (
	Groceries   Category = "Groceries"
	Leisure     Category = "Leisure"
	Electronics Category = "Electronics"
	Utilities   Category = "Utilities"
	Clothing    Category = "Clothing"
	Health      Category = "Health"
	Others      Category = "Others"
)

var ErrInvalidCategory = errors.New("invalid category. Valid categories: " + categoryList())

var categories = []Category{Groceries, Leisure, Electronics, Utilities, Clothing, Health, Others}

// Categories returns every category in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// ParseCategory matches s case-insensitively against the known categories.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range categories {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

// Valid reports whether c is exactly one of the known categories.
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

func categoryList() string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = strings.ToUpper(string(c))
	}
	return strings.Join(names, ", ")
}
