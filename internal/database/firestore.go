package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ierr "go-firestore-admin/internal/errors"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultWriteTimeout = time.Second * 30
	errToleranceCap     = 20
)

type snapEvent struct {
	snap *firestore.QuerySnapshot
	err  error
}

type snapCh chan snapEvent

type FirestoreClient struct {
	*firestore.Client
	writeTimeout time.Duration
}

var _ Client = FirestoreClient{}

func New(client *firestore.Client, writeTimeout time.Duration) FirestoreClient {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return FirestoreClient{
		Client:       client,
		writeTimeout: writeTimeout,
	}
}

func (c FirestoreClient) ListAll(ctx context.Context, coll string) ([]Document, error) {
	iter := c.Client.Collection(coll).Documents(ctx)
	defer iter.Stop()

	docs := make([]Document, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return docs, nil
		}
		if err != nil {
			return nil, &ierr.TransportError{Op: "list " + coll, Err: err}
		}
		docs = append(docs, toDocument(snap))
	}
}

func (c FirestoreClient) GetOne(ctx context.Context, coll string, id string) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("get %s: empty id: %w", coll, ierr.NotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	docSnapshot, err := c.Client.Collection(coll).Doc(id).Get(ctx)
	if err != nil {
		return Document{}, classify("get", coll, id, err)
	}

	if !docSnapshot.Exists() {
		return Document{}, fmt.Errorf("get %s/%s: %w", coll, id, ierr.NotFound)
	}

	return toDocument(docSnapshot), nil
}

func (c FirestoreClient) Create(ctx context.Context, coll string, fields map[string]interface{}) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	docRef, _, err := c.Client.Collection(coll).Add(ctx, fields)
	if err != nil {
		return "", &ierr.TransportError{Op: "create " + coll, Err: err}
	}
	return docRef.ID, nil
}

func (c FirestoreClient) Update(ctx context.Context, coll string, id string, fields map[string]interface{}) error {
	if id == "" {
		return fmt.Errorf("update %s: empty id: %w", coll, ierr.NotFound)
	}
	if len(fields) == 0 {
		_, err := c.GetOne(ctx, coll, id)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	paths := make([]string, 0, len(fields))
	for path := range fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	updates := make([]firestore.Update, 0, len(paths))
	for _, path := range paths {
		updates = append(updates, firestore.Update{Path: path, Value: fields[path]})
	}

	// Update fails with codes.NotFound when the document does not exist.
	if _, err := c.Client.Collection(coll).Doc(id).Update(ctx, updates); err != nil {
		return classify("update", coll, id, err)
	}
	return nil
}

func (c FirestoreClient) Delete(ctx context.Context, coll string, id string) error {
	if id == "" {
		return fmt.Errorf("delete %s: empty id: %w", coll, ierr.NotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	docRef := c.Client.Collection(coll).Doc(id)
	colls, err := docRef.Collections(ctx).GetAll()
	if err != nil {
		log.Error().Err(err).Msgf("failed to get all collections of the doc %s", docRef.Path)
		return classify("delete", coll, id, err)
	}

	for _, collRef := range colls {
		// must not be concurrent otherwise subcolls will not be cleaned up due to context cancellation
		c.deleteColl(ctx, collRef)
	}

	if _, err := docRef.Delete(ctx, firestore.Exists); err != nil {
		return classify("delete", coll, id, err)
	}
	return nil
}

func (c FirestoreClient) deleteDoc(ctx context.Context, docRef *firestore.DocumentRef) {
	colls, err := docRef.Collections(ctx).GetAll()
	if err != nil {
		log.Error().Err(err).Msgf("failed to get all collections of the doc %s", docRef.Path)
		return
	}
	for _, collRef := range colls {
		c.deleteColl(ctx, collRef)
	}
	if _, err := docRef.Delete(ctx); err != nil {
		log.Error().Err(err).Msgf("failed to delete the doc %s", docRef.Path)
	}
}

func (c FirestoreClient) deleteColl(ctx context.Context, collRef *firestore.CollectionRef) {
	// Recursively delete all subcollections
	docs := collRef.Documents(ctx)
	defer docs.Stop()
	for {
		doc, err := docs.Next()
		if err != nil {
			return
		}
		c.deleteDoc(ctx, doc.Ref)
	}
}

// Listen registers a snapshot listener on the collection and forwards every snapshot as a full
// document list. The circuit breaker here defines an error rate tolerance cap. If the listener
// raises errors more than the cap in a row, it emits the last error and closes the channel.
func (c FirestoreClient) Listen(ctx context.Context, coll string) <-chan SnapshotEvent {

	ch := make(chan SnapshotEvent)
	errCnt := 0

	go func() {
		defer close(ch)

		lctx, cancel := context.WithCancel(ctx)
		eventCh := registerEventListener(lctx, c.Client.Collection(coll).Snapshots(lctx))
		// stop the iterator and wait for it before ch is closed
		defer func() {
			for range eventCh {
			}
		}()
		defer cancel()

		for event := range eventCh {
			var docs []Document
			err := event.err
			if err == nil {
				docs, err = snapshotDocuments(event.snap)
			}

			if err != nil {
				if isCanceled(err) {
					return
				}

				log.Error().Err(err).Str("collection", coll).Msg("error reading snapshots")
				errCnt++
				if errCnt < errToleranceCap {
					continue
				}
				select {
				case ch <- SnapshotEvent{Err: &ierr.TransportError{Op: "listen " + coll, Err: err}}:
				case <-ctx.Done():
				}
				return
			}

			errCnt = 0
			select {
			case ch <- SnapshotEvent{Docs: docs}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// registerEventListener keeps the listener open until context is cancelled
func registerEventListener(ctx context.Context, it *firestore.QuerySnapshotIterator) <-chan snapEvent {

	c := make(snapCh)
	go func() {
		defer close(c)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err == iterator.Done {
				return
			}

			select {
			case <-ctx.Done():
				return
			case c <- snapEvent{snap, err}:
			}
		}
	}()

	return c
}

func snapshotDocuments(snap *firestore.QuerySnapshot) ([]Document, error) {
	snaps, err := snap.Documents.GetAll()
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(snaps))
	for _, s := range snaps {
		docs = append(docs, toDocument(s))
	}
	return docs, nil
}

func toDocument(snap *firestore.DocumentSnapshot) Document {
	return Document{Id: snap.Ref.ID, Fields: snap.Data()}
}

func classify(op, coll, id string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %s/%s: %w", op, coll, id, ierr.NotFound)
	}
	return &ierr.TransportError{Op: fmt.Sprintf("%s %s/%s", op, coll, id), Err: err}
}

func isCanceled(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if code := status.Code(err); code == codes.Canceled || code == codes.DeadlineExceeded {
		return true
	}
	// The error is not wrapped properly, so errors.Is() does not always work
	return strings.Contains(err.Error(), "context canceled") || strings.Contains(err.Error(), "context deadline exceeded")
}
