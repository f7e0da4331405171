package feed

import (
	"fmt"
	"log/slog"
	"strings"
)

// Filterer drops items rejected by their source's include/exclude filters. Matching is a
// case-insensitive substring test.
type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run returns the items that pass every filter of src and the number of dropped ones.
func (f *Filterer) Run(items []Item, src *Source) ([]Item, int) {
	if len(src.Filters) == 0 {
		return items, 0
	}

	kept := make([]Item, 0, len(items))
	for _, item := range items {
		if reason, drop := f.applyFilters(item, src.Filters); drop {
			slog.Debug("Item filtered", "source", src.Name, "url", item.URL, "reason", reason)
			continue
		}
		kept = append(kept, item)
	}

	return kept, len(items) - len(kept)
}

func (f *Filterer) applyFilters(item Item, filters []Filter) (string, bool) {
	for _, filter := range filters {
		value := f.getFieldValue(item, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return fmt.Sprintf("excluded by %s filter: contains '%s'", filter.Field, exclude), true
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return fmt.Sprintf("excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes), true
			}
		}
	}

	return "", false
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(item Item, field string) string {
	switch field {
	case "title":
		return item.Title
	case "summary":
		return item.Summary
	case "link":
		return item.URL
	default:
		return ""
	}
}
