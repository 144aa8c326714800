package models

import "fmt"

// Category is the kind of activity a time slot represents
type Category string

const (
	CategoryCommute   Category = "commute"
	CategoryFood      Category = "food"
	CategoryFriends   Category = "friends"
	CategoryWork      Category = "work"
	CategoryLeisure   Category = "leisure"
	CategoryUnknown   Category = "unknown"
	CategoryFamily    Category = "family"
	CategoryFitness   Category = "fitness"
	CategoryHobby     Category = "hobby"
	CategoryHousehold Category = "household"
	CategoryShopping  Category = "shopping"
	CategorySleep     Category = "sleep"
)

// AllCategories lists every category in display order
var AllCategories = []Category{
	CategoryCommute,
	CategoryFood,
	CategoryFriends,
	CategoryWork,
	CategoryLeisure,
	CategoryFamily,
	CategoryFitness,
	CategoryHobby,
	CategoryHousehold,
	CategoryShopping,
	CategorySleep,
	CategoryUnknown,
}

// ParseCategory validates a category name
func ParseCategory(s string) (Category, error) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return CategoryUnknown, fmt.Errorf("invalid category %q", s)
}
