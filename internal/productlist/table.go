package productlist

import (
	"context"
	"fmt"
	"sync"

	"go-firestore-admin/internal/model"

	"github.com/rs/zerolog/log"
)

// Repository is the subset of the product repository a table drives.
type Repository interface {
	FetchAll(ctx context.Context) ([]model.Product, error)
	Add(ctx context.Context, draft model.ProductDraft) (model.Product, error)
	Update(ctx context.Context, id string, draft model.ProductDraft) (model.Product, error)
	Remove(ctx context.Context, id string) error
}

// Table pairs a repository with the local list. The list is patched only after the
// repository call succeeds; a failed call leaves it as it was.
type Table struct {
	repo Repository
	mu   sync.RWMutex
	list *List
}

func NewTable(repo Repository) *Table {
	return &Table{
		repo: repo,
		list: NewList(nil),
	}
}

// Load replaces the local list with the current collection.
func (t *Table) Load(ctx context.Context) error {
	products, err := t.repo.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("load product table: %w", err)
	}

	t.mu.Lock()
	t.list.Reset(products)
	t.mu.Unlock()
	return nil
}

// Save adds the draft when id is empty and updates the product with that id otherwise.
func (t *Table) Save(ctx context.Context, id string, draft model.ProductDraft) (model.Product, error) {
	if id == "" {
		p, err := t.repo.Add(ctx, draft)
		if err != nil {
			return model.Product{}, err
		}

		t.mu.Lock()
		t.list.Append(p)
		t.mu.Unlock()
		return p, nil
	}

	p, err := t.repo.Update(ctx, id, draft)
	if err != nil {
		return model.Product{}, err
	}

	t.mu.Lock()
	replaced := t.list.Replace(p)
	t.mu.Unlock()
	if !replaced {
		log.Debug().Str("productId", id).Msg("updated product is not in the local table")
	}
	return p, nil
}

func (t *Table) Delete(ctx context.Context, id string) error {
	if err := t.repo.Remove(ctx, id); err != nil {
		return err
	}

	t.mu.Lock()
	t.list.Remove(id)
	t.mu.Unlock()
	return nil
}

func (t *Table) Search(term string) []model.Product {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Filter(t.list.items, term)
}

func (t *Table) Items() []model.Product {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.list.Items()
}
