// Package projection derives the category distribution of the product collection.
// Every snapshot is recounted from scratch; nothing is stored.
package projection

import (
	"sort"

	"go-firestore-admin/internal/model"
)

// Snapshot maps a category name to the number of products in it.
type Snapshot map[string]int

// Entry is one slice of the distribution chart.
type Entry struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func Compute(products []model.Product) Snapshot {
	categories := make([]string, 0, len(products))
	for _, p := range products {
		categories = append(categories, p.Category)
	}
	return Count(categories)
}

// Count tallies one category per product document.
func Count(categories []string) Snapshot {
	s := make(Snapshot)
	for _, c := range categories {
		s[c]++
	}
	return s
}

// Entries returns the snapshot ordered by category name.
func (s Snapshot) Entries() []Entry {
	entries := make([]Entry, 0, len(s))
	for name, value := range s {
		entries = append(entries, Entry{Name: name, Value: value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

func (s Snapshot) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}
