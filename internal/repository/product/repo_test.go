package product

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go-firestore-admin/internal/blob"
	"go-firestore-admin/internal/database/memory"
	ierr "go-firestore-admin/internal/errors"
	"go-firestore-admin/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo() (ProductRepository, *memory.Store, *blob.MemoryStore) {
	db := memory.New()
	blobs := blob.NewMemoryStore()
	return New(db, blobs), db, blobs
}

func draft(name, category string) model.ProductDraft {
	return model.ProductDraft{Name: name, Category: category, Price: "9.99", Stock: "5", Sales: "2"}
}

func withImage(d model.ProductDraft, filename, content string) model.ProductDraft {
	d.Image = &model.ImageFile{Filename: filename, Size: int64(len(content)), Content: strings.NewReader(content)}
	return d
}

func TestAddThenFetchAll(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newRepo()

	added, err := repo.Add(ctx, draft("Widget", "Tools"))
	require.NoError(t, err)
	require.NotEmpty(t, added.Id)

	products, err := repo.FetchAll(ctx)
	require.NoError(t, err)

	matches := 0
	for _, p := range products {
		if p.Id == added.Id {
			matches++
			assert.Equal(t, "Widget", p.Name)
			assert.Equal(t, "Tools", p.Category)
			assert.True(t, decimal.RequireFromString("9.99").Equal(p.Price))
			assert.Equal(t, 5, p.Stock)
			assert.Equal(t, 2, p.Sales)
			assert.Nil(t, p.ImgUrl)
		}
	}
	assert.Equal(t, 1, matches)
}

func TestAddWithImage(t *testing.T) {
	ctx := context.Background()
	repo, _, blobs := newRepo()

	var progress []float64
	d := withImage(draft("Widget", "Tools"), "widget.png", "pngdata")
	d.Image.OnProgress = func(pct float64) { progress = append(progress, pct) }

	added, err := repo.Add(ctx, d)
	require.NoError(t, err)
	require.NotNil(t, added.ImgUrl)
	assert.Contains(t, *added.ImgUrl, blob.ImagesPrefix)
	assert.True(t, strings.HasSuffix(*added.ImgUrl, "/widget.png"))
	assert.True(t, blobs.Has(*added.ImgUrl))
	assert.Equal(t, []float64{100}, progress)

	stored, err := repo.GetById(ctx, added.Id)
	require.NoError(t, err)
	assert.Equal(t, *added.ImgUrl, *stored.ImgUrl)
}

func TestAddValidationHappensBeforeSideEffects(t *testing.T) {
	ctx := context.Background()
	repo, _, blobs := newRepo()

	d := withImage(model.ProductDraft{Name: "Widget", Category: "Tools", Price: "abc", Stock: "x", Sales: "1"}, "w.png", "data")
	_, err := repo.Add(ctx, d)

	var verr *ierr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"price", "stock"}, verr.FieldNames())
	assert.Equal(t, 0, blobs.Len())

	products, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestAddUploadFailureCreatesNothing(t *testing.T) {
	ctx := context.Background()
	repo, _, blobs := newRepo()
	blobs.FailPuts(errors.New("offline"))

	_, err := repo.Add(ctx, withImage(draft("Widget", "Tools"), "w.png", "data"))
	assert.True(t, ierr.IsStorage(err))

	products, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newRepo()

	added, err := repo.Add(ctx, withImage(draft("Widget", "Tools"), "w.png", "data"))
	require.NoError(t, err)

	updated, err := repo.Update(ctx, added.Id, model.ProductDraft{Name: "Widget Pro", Category: "Tools", Price: "12", Stock: "1", Sales: "3"})
	require.NoError(t, err)
	assert.Equal(t, added.Id, updated.Id)
	assert.Equal(t, "Widget Pro", updated.Name)
	assert.Equal(t, added.ImgUrl, updated.ImgUrl, "image untouched without a new file")

	stored, err := repo.GetById(ctx, added.Id)
	require.NoError(t, err)
	assert.Equal(t, "Widget Pro", stored.Name)
	assert.True(t, decimal.NewFromInt(12).Equal(stored.Price))
	assert.Equal(t, 1, stored.Stock)
	assert.Equal(t, 3, stored.Sales)
	assert.Equal(t, *added.ImgUrl, *stored.ImgUrl)
}

func TestUpdateWithNewImageKeepsPreviousBlob(t *testing.T) {
	ctx := context.Background()
	repo, _, blobs := newRepo()

	added, err := repo.Add(ctx, withImage(draft("Widget", "Tools"), "w.png", "old"))
	require.NoError(t, err)

	updated, err := repo.Update(ctx, added.Id, withImage(draft("Widget", "Tools"), "w.png", "new"))
	require.NoError(t, err)

	require.NotNil(t, updated.ImgUrl)
	assert.NotEqual(t, *added.ImgUrl, *updated.ImgUrl, "same filename must not overwrite")
	assert.True(t, blobs.Has(*added.ImgUrl))
	assert.True(t, blobs.Has(*updated.ImgUrl))

	data, _ := blobs.Get(*updated.ImgUrl)
	assert.Equal(t, "new", string(data))
}

func TestUpdateInvalidDraftLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newRepo()

	added, err := repo.Add(ctx, draft("Widget", "Tools"))
	require.NoError(t, err)
	before, err := repo.FetchAll(ctx)
	require.NoError(t, err)

	d := draft("Widget", "Tools")
	d.Price = "abc"
	_, err = repo.Update(ctx, added.Id, d)
	assert.True(t, ierr.IsValidation(err))

	after, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdateMissingProduct(t *testing.T) {
	ctx := context.Background()
	repo, _, blobs := newRepo()

	_, err := repo.Update(ctx, "missing", withImage(draft("Widget", "Tools"), "w.png", "data"))
	assert.ErrorIs(t, err, ierr.NotFound)
	assert.Equal(t, 0, blobs.Len(), "no upload for a missing product")

	_, err = repo.Update(ctx, "", draft("Widget", "Tools"))
	assert.True(t, ierr.IsValidation(err))
}

func TestRemoveDeletesImageAndDocument(t *testing.T) {
	ctx := context.Background()
	repo, _, blobs := newRepo()

	added, err := repo.Add(ctx, withImage(draft("Widget", "Tools"), "w.png", "data"))
	require.NoError(t, err)
	require.True(t, blobs.Has(*added.ImgUrl))

	require.NoError(t, repo.Remove(ctx, added.Id))
	assert.False(t, blobs.Has(*added.ImgUrl))

	products, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestRemoveSurvivesImageDeletionFailure(t *testing.T) {
	ctx := context.Background()
	repo, _, blobs := newRepo()

	added, err := repo.Add(ctx, withImage(draft("Widget", "Tools"), "w.png", "data"))
	require.NoError(t, err)

	blobs.FailDeletes(errors.New("permission denied"))
	require.NoError(t, repo.Remove(ctx, added.Id))

	_, err = repo.GetById(ctx, added.Id)
	assert.ErrorIs(t, err, ierr.NotFound)
}

func TestRemoveErrors(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newRepo()

	err := repo.Remove(ctx, "missing")
	assert.ErrorIs(t, err, ierr.NotFound)
	assert.False(t, ierr.IsValidation(err))
	assert.False(t, ierr.IsTransport(err))
	assert.False(t, ierr.IsStorage(err))

	assert.True(t, ierr.IsValidation(repo.Remove(ctx, "")))
}

func TestFetchAllSkipsUndecodableDocuments(t *testing.T) {
	ctx := context.Background()
	repo, db, _ := newRepo()

	_, err := db.Create(ctx, productNode, map[string]interface{}{"name": "bad", "price": "not a price"})
	require.NoError(t, err)
	_, err = repo.Add(ctx, draft("Widget", "Tools"))
	require.NoError(t, err)

	products, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Widget", products[0].Name)
}

func TestRemoveUndecodableDocument(t *testing.T) {
	ctx := context.Background()
	repo, db, blobs := newRepo()

	added, err := repo.Add(ctx, withImage(draft("Widget", "Tools"), "w.png", "data"))
	require.NoError(t, err)
	require.NoError(t, db.Update(ctx, productNode, added.Id, map[string]interface{}{PriceFieldPath: "n/a"}))

	require.NoError(t, repo.Remove(ctx, added.Id))
	assert.False(t, blobs.Has(*added.ImgUrl))

	_, err = db.GetOne(ctx, productNode, added.Id)
	assert.ErrorIs(t, err, ierr.NotFound)
}

func TestUpdateRepairsUndecodableDocument(t *testing.T) {
	ctx := context.Background()
	repo, db, _ := newRepo()

	added, err := repo.Add(ctx, withImage(draft("Widget", "Tools"), "w.png", "data"))
	require.NoError(t, err)
	require.NoError(t, db.Update(ctx, productNode, added.Id, map[string]interface{}{PriceFieldPath: "n/a"}))

	updated, err := repo.Update(ctx, added.Id, draft("Widget", "Tools"))
	require.NoError(t, err)
	require.NotNil(t, updated.ImgUrl)
	assert.Equal(t, *added.ImgUrl, *updated.ImgUrl)

	stored, err := repo.GetById(ctx, added.Id)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("9.99").Equal(stored.Price))
	assert.Equal(t, *added.ImgUrl, *stored.ImgUrl)
}

// failingWrites is a store whose creates and updates always fail.
type failingWrites struct {
	*memory.Store
	err error
}

func (f failingWrites) Create(ctx context.Context, coll string, fields map[string]interface{}) (string, error) {
	return "", &ierr.TransportError{Op: "create " + coll, Err: f.err}
}

func (f failingWrites) Update(ctx context.Context, coll string, id string, fields map[string]interface{}) error {
	return &ierr.TransportError{Op: "update " + coll, Err: f.err}
}

func TestAddDiscardsImageWhenCreateFails(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemoryStore()
	repo := New(failingWrites{Store: memory.New(), err: errors.New("unavailable")}, blobs)

	_, err := repo.Add(ctx, withImage(draft("Widget", "Tools"), "w.png", "data"))
	assert.True(t, ierr.IsTransport(err))
	assert.Equal(t, 0, blobs.Len())
}

func TestUpdateDiscardsNewImageWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	blobs := blob.NewMemoryStore()

	added, err := New(db, blobs).Add(ctx, withImage(draft("Widget", "Tools"), "w.png", "old"))
	require.NoError(t, err)
	require.Equal(t, 1, blobs.Len())

	repo := New(failingWrites{Store: db, err: errors.New("unavailable")}, blobs)
	_, err = repo.Update(ctx, added.Id, withImage(draft("Widget", "Tools"), "w.png", "new"))
	assert.True(t, ierr.IsTransport(err))

	assert.Equal(t, 1, blobs.Len(), "only the previous image is left")
	assert.True(t, blobs.Has(*added.ImgUrl))
}

func TestWatchReportsCategoryOfEveryDocument(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo, db, _ := newRepo()

	_, err := repo.Add(ctx, draft("Widget", "Tools"))
	require.NoError(t, err)
	_, err = db.Create(ctx, productNode, map[string]interface{}{"name": "broken", "category": "Tools", "price": "n/a"})
	require.NoError(t, err)

	e := nextSnapshot(t, repo.Watch(ctx))
	assert.Len(t, e.Products, 1)
	assert.Equal(t, []string{"Tools", "Tools"}, e.Categories)
}

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo, db, _ := newRepo()

	_, err := repo.Add(ctx, draft("Widget", "Tools"))
	require.NoError(t, err)

	events := repo.Watch(ctx)
	first := nextSnapshot(t, events)
	assert.Len(t, first.Products, 1)

	_, err = repo.Add(ctx, draft("Gadget", "Home"))
	require.NoError(t, err)
	second := nextSnapshot(t, events)
	assert.Len(t, second.Products, 2)

	cancel()
	for range events {
	}
	assert.Eventually(t, func() bool { return db.Listeners(productNode) == 0 }, time.Second, 10*time.Millisecond)
}

func nextSnapshot(t *testing.T, events <-chan SnapshotEvent) SnapshotEvent {
	t.Helper()
	select {
	case e, ok := <-events:
		require.True(t, ok)
		require.NoError(t, e.Err)
		return e
	case <-time.After(time.Second):
		t.Fatal("no snapshot received")
	}
	return SnapshotEvent{}
}
