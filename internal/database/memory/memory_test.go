package memory

import (
	"context"
	"testing"
	"time"

	"go-firestore-admin/internal/database"
	ierr "go-firestore-admin/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coll = "products"

func TestCrud(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Create(ctx, coll, map[string]interface{}{"name": "Widget", "stock": 1})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := s.GetOne(ctx, coll, id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.Id)
	assert.Equal(t, "Widget", doc.Fields["name"])

	require.NoError(t, s.Update(ctx, coll, id, map[string]interface{}{"stock": 5}))
	doc, err = s.GetOne(ctx, coll, id)
	require.NoError(t, err)
	assert.Equal(t, 5, doc.Fields["stock"])
	assert.Equal(t, "Widget", doc.Fields["name"])

	require.NoError(t, s.Delete(ctx, coll, id))
	_, err = s.GetOne(ctx, coll, id)
	assert.ErrorIs(t, err, ierr.NotFound)
}

func TestMissingDocuments(t *testing.T) {
	ctx := context.Background()
	s := New()

	assert.ErrorIs(t, s.Update(ctx, coll, "nope", map[string]interface{}{"a": 1}), ierr.NotFound)
	assert.ErrorIs(t, s.Delete(ctx, coll, "nope"), ierr.NotFound)
	_, err := s.GetOne(ctx, coll, "nope")
	assert.ErrorIs(t, err, ierr.NotFound)

	docs, err := s.ListAll(ctx, coll)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestListAllKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		id, err := s.Create(ctx, coll, map[string]interface{}{"name": name})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, s.Delete(ctx, coll, ids[1]))

	docs, err := s.ListAll(ctx, coll)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, ids[0], docs[0].Id)
	assert.Equal(t, ids[2], docs[1].Id)
}

func TestStoredFieldsAreCopied(t *testing.T) {
	ctx := context.Background()
	s := New()

	fields := map[string]interface{}{"name": "Widget"}
	id, err := s.Create(ctx, coll, fields)
	require.NoError(t, err)
	fields["name"] = "mutated"

	doc, err := s.GetOne(ctx, coll, id)
	require.NoError(t, err)
	doc.Fields["name"] = "mutated again"

	doc, err = s.GetOne(ctx, coll, id)
	require.NoError(t, err)
	assert.Equal(t, "Widget", doc.Fields["name"])
}

func TestCanceledContextIsTransportError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().ListAll(ctx, coll)
	assert.True(t, ierr.IsTransport(err))
}

func TestListenDeliversInitialAndChangedSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New()

	_, err := s.Create(ctx, coll, map[string]interface{}{"name": "a"})
	require.NoError(t, err)

	events := s.Listen(ctx, coll)
	first := receive(t, events)
	assert.Len(t, first.Docs, 1)

	_, err = s.Create(ctx, coll, map[string]interface{}{"name": "b"})
	require.NoError(t, err)
	second := receive(t, events)
	assert.Len(t, second.Docs, 2)
}

func TestListenReleasesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New()

	events := s.Listen(ctx, coll)
	receive(t, events)
	assert.Equal(t, 1, s.Listeners(coll))

	cancel()
	for range events {
	}
	assert.Equal(t, 0, s.Listeners(coll))
}

func receive(t *testing.T, events <-chan database.SnapshotEvent) database.SnapshotEvent {
	t.Helper()
	select {
	case e, ok := <-events:
		require.True(t, ok, "listener closed")
		require.NoError(t, e.Err)
		return e
	case <-time.After(time.Second):
		t.Fatal("no snapshot received")
	}
	return database.SnapshotEvent{}
}
