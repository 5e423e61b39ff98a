package product

import (
	"context"

	"go-firestore-admin/internal/model"
)

// SnapshotEvent is one state of the collection. Products holds the documents that decode;
// Categories holds the category of every document, decodable or not.
type SnapshotEvent struct {
	Products   []model.Product
	Categories []string
	Err        error
}

type IRepository interface {
	FetchAll(ctx context.Context) ([]model.Product, error)
	GetById(ctx context.Context, id string) (*model.Product, error)
	Add(ctx context.Context, draft model.ProductDraft) (model.Product, error)
	Update(ctx context.Context, id string, draft model.ProductDraft) (model.Product, error)
	Remove(ctx context.Context, id string) error
	Watch(ctx context.Context) <-chan SnapshotEvent
}
