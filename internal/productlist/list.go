// Package productlist keeps the dashboard's local copy of the product table in step with
// the mutations it performs. It does not follow changes made elsewhere.
package productlist

import (
	"strings"

	"go-firestore-admin/internal/model"
)

type List struct {
	items []model.Product
}

func NewList(items []model.Product) *List {
	l := &List{}
	l.Reset(items)
	return l
}

func (l *List) Reset(items []model.Product) {
	l.items = append(make([]model.Product, 0, len(items)), items...)
}

func (l *List) Append(p model.Product) {
	l.items = append(l.items, p)
}

// Replace swaps the entry with p's id for p. It reports false when no entry has that id.
func (l *List) Replace(p model.Product) bool {
	for i := range l.items {
		if l.items[i].Id == p.Id {
			l.items[i] = p
			return true
		}
	}
	return false
}

// Remove drops every entry with the given id.
func (l *List) Remove(id string) bool {
	kept := l.items[:0]
	removed := false
	for _, p := range l.items {
		if p.Id == id {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	l.items = kept
	return removed
}

func (l *List) Items() []model.Product {
	return append([]model.Product(nil), l.items...)
}

func (l *List) Len() int {
	return len(l.items)
}

// Filter returns the products whose name or category contains term, ignoring case.
// An empty term matches everything. items is never modified.
func Filter(items []model.Product, term string) []model.Product {
	needle := strings.ToLower(term)
	matches := make([]model.Product, 0, len(items))
	for _, p := range items {
		if needle == "" ||
			strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Category), needle) {
			matches = append(matches, p)
		}
	}
	return matches
}
