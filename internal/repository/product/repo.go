package product

import (
	"context"
	"errors"
	"fmt"

	"go-firestore-admin/internal/blob"
	"go-firestore-admin/internal/database"
	dbutils "go-firestore-admin/internal/database/utils"
	ierr "go-firestore-admin/internal/errors"
	"go-firestore-admin/internal/metrics"
	"go-firestore-admin/internal/model"
	"go-firestore-admin/internal/repository/helper"
	"go-firestore-admin/internal/utils"

	"github.com/rs/zerolog/log"
)

type ProductRepository struct {
	db    database.Client
	blobs blob.Store
}

var _ IRepository = ProductRepository{}

func New(db database.Client, blobs blob.Store) ProductRepository {
	return ProductRepository{
		db:    db,
		blobs: blobs,
	}
}

// FetchAll scans the whole collection. Documents that cannot be decoded are logged and skipped.
func (r ProductRepository) FetchAll(ctx context.Context) (products []model.Product, err error) {
	defer func() { metrics.ObserveProductOp("fetch_all", err) }()

	docs, err := r.db.ListAll(ctx, productNode)
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	return toProducts(docs), nil
}

func (r ProductRepository) GetById(ctx context.Context, id string) (product *model.Product, err error) {
	defer func() { metrics.ObserveProductOp("get", err) }()

	if id == "" {
		return nil, fmt.Errorf("get product: %w", missingId())
	}

	p, err := r.get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w, id: %s", err, id)
	}
	return &p, nil
}

// Add validates the draft, uploads its image when present and creates the document.
// The returned product carries the id assigned by the store.
func (r ProductRepository) Add(ctx context.Context, draft model.ProductDraft) (product model.Product, err error) {
	defer func() { metrics.ObserveProductOp("add", err) }()

	p, err := draft.Parse()
	if err != nil {
		return model.Product{}, fmt.Errorf("add product: %w", err)
	}

	if draft.Image != nil {
		url, err := r.uploadImage(ctx, draft.Image)
		if err != nil {
			return model.Product{}, fmt.Errorf("add product: %w", err)
		}
		p.ImgUrl = utils.StringToPointer(url)
	}

	id, err := r.db.Create(ctx, productNode, p.Fields())
	if err != nil {
		if p.HasImage() {
			r.discardImage(ctx, *p.ImgUrl, "")
		}
		return model.Product{}, fmt.Errorf("add product: %w", err)
	}

	p.Id = id
	return p, nil
}

// Update replaces the editable fields of an existing product. A new image overwrites imgUrl;
// the previous image is left in the blob store.
func (r ProductRepository) Update(ctx context.Context, id string, draft model.ProductDraft) (product model.Product, err error) {
	defer func() { metrics.ObserveProductOp("update", err) }()

	if id == "" {
		return model.Product{}, fmt.Errorf("update product: %w", missingId())
	}

	p, err := draft.Parse()
	if err != nil {
		return model.Product{}, fmt.Errorf("update product: %w, id: %s", err, id)
	}

	// existence is checked before uploading so a missing product never leaves a blob behind.
	// Only imgUrl is read, so a document with undecodable fields can still be repaired.
	current, err := r.db.GetOne(ctx, productNode, id)
	if err != nil {
		return model.Product{}, fmt.Errorf("update product: %w, id: %s", err, id)
	}
	currentImg := imgUrlOf(current)

	fields := p.Fields()
	if currentImg != "" {
		p.ImgUrl = utils.StringToPointer(currentImg)
	}

	if draft.Image != nil {
		url, err := r.uploadImage(ctx, draft.Image)
		if err != nil {
			return model.Product{}, fmt.Errorf("update product: %w, id: %s", err, id)
		}
		if currentImg != "" {
			log.Debug().Str("productId", id).Str("imgUrl", currentImg).Msg("product repo: previous image kept")
		}
		p.ImgUrl = utils.StringToPointer(url)
		fields[ImgUrlFieldPath] = url
	}

	if err := r.db.Update(ctx, productNode, id, fields); err != nil {
		if draft.Image != nil {
			r.discardImage(ctx, *p.ImgUrl, id)
		}
		return model.Product{}, fmt.Errorf("update product: %w, id: %s", err, id)
	}

	p.Id = id
	return p, nil
}

// Remove deletes the product's image, best effort, and then the product document.
func (r ProductRepository) Remove(ctx context.Context, id string) (err error) {
	defer func() { metrics.ObserveProductOp("remove", err) }()

	if id == "" {
		return fmt.Errorf("remove product: %w", missingId())
	}

	// only imgUrl is needed, the rest of the document may not even decode
	doc, err := r.db.GetOne(ctx, productNode, id)
	if err != nil {
		return fmt.Errorf("remove product: %w, id: %s", err, id)
	}

	if url := imgUrlOf(doc); url != "" {
		r.discardImage(ctx, url, id)
	}

	if err := r.db.Delete(ctx, productNode, id); err != nil {
		return fmt.Errorf("remove product: %w, id: %s", err, id)
	}
	return nil
}

// Watch emits the full product list on registration and after every change to the collection.
// The channel is closed when ctx is done or the underlying listener gives up, and in both cases
// only after the store listener has been released.
func (r ProductRepository) Watch(ctx context.Context) <-chan SnapshotEvent {
	ch := make(chan SnapshotEvent)

	go func() {
		defer close(ch)

		events := r.db.Listen(ctx, productNode)
		// ch closes only after the store listener is released
		defer func() {
			for range events {
			}
		}()

		for e := range events {
			if e.Err != nil {
				if !(errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded)) {
					log.Error().Err(e.Err).Msg("product repo: failed to read product snapshots")
				}
				helper.NonblockingWrite[SnapshotEvent](ctx, channelWriteTimeout, ch, SnapshotEvent{Err: e.Err})
				return
			}

			select {
			case ch <- SnapshotEvent{Products: toProducts(e.Docs), Categories: categoriesOf(e.Docs)}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

func (r ProductRepository) get(ctx context.Context, id string) (model.Product, error) {
	doc, err := r.db.GetOne(ctx, productNode, id)
	if err != nil {
		return model.Product{}, err
	}
	return toProduct(doc)
}

func (r ProductRepository) uploadImage(ctx context.Context, img *model.ImageFile) (string, error) {
	upload := blob.StartUpload(ctx, r.blobs, blob.ImageKey(img.Filename), img.Content, img.Size)
	for pct := range upload.Progress() {
		if img.OnProgress != nil {
			img.OnProgress(pct)
		}
	}
	return upload.Wait()
}

// discardImage is best effort: failures are logged and counted, never returned.
func (r ProductRepository) discardImage(ctx context.Context, url string, productId string) {
	if err := r.blobs.Delete(ctx, url); err != nil {
		metrics.BlobCleanupFailuresCounter.Inc()
		log.Error().Err(err).Str("productId", productId).Str("imgUrl", url).Msg("product repo: failed to delete image")
		return
	}
	log.Debug().Str("productId", productId).Str("imgUrl", url).Msg("product repo: image deleted")
}

func toProduct(doc database.Document) (model.Product, error) {
	p := model.Product{}
	if err := dbutils.FieldsToType(doc.Fields, &p); err != nil {
		return model.Product{}, fmt.Errorf("decode product %s: %w", doc.Id, err)
	}
	p.Id = doc.Id
	return p, nil
}

func toProducts(docs []database.Document) []model.Product {
	products := make([]model.Product, 0, len(docs))
	for _, doc := range docs {
		p, err := toProduct(doc)
		if err != nil {
			log.Error().Err(err).Msg("product repo: failed to convert doc to product")
			continue
		}
		products = append(products, p)
	}
	return products
}

// categoriesOf reads the category of every document straight from its fields.
func categoriesOf(docs []database.Document) []string {
	categories := make([]string, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, textField(doc, CategoryFieldPath))
	}
	return categories
}

func imgUrlOf(doc database.Document) string {
	return textField(doc, ImgUrlFieldPath)
}

func textField(doc database.Document, path string) string {
	switch v := doc.Fields[path].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func missingId() error {
	return ierr.NewValidationError(ierr.FieldError{Field: "id", Reason: "is required"})
}
