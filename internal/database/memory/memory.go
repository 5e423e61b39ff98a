// Package memory provides an in-memory document store used for tests and local runs
// without Firestore credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"go-firestore-admin/internal/database"
	ierr "go-firestore-admin/internal/errors"

	"github.com/google/uuid"
)

var _ database.Client = (*Store)(nil)

type collection struct {
	order []string
	docs  map[string]map[string]interface{}
}

type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	listeners   map[string]map[int]chan struct{}
	nextID      int
}

func New() *Store {
	return &Store{
		collections: make(map[string]*collection),
		listeners:   make(map[string]map[int]chan struct{}),
	}
}

func (s *Store) ListAll(ctx context.Context, coll string) ([]database.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ierr.TransportError{Op: "list " + coll, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(coll), nil
}

func (s *Store) GetOne(ctx context.Context, coll string, id string) (database.Document, error) {
	if err := ctx.Err(); err != nil {
		return database.Document{}, &ierr.TransportError{Op: "get " + coll, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[coll]
	if !ok {
		return database.Document{}, fmt.Errorf("get %s/%s: %w", coll, id, ierr.NotFound)
	}
	fields, ok := c.docs[id]
	if !ok {
		return database.Document{}, fmt.Errorf("get %s/%s: %w", coll, id, ierr.NotFound)
	}
	return database.Document{Id: id, Fields: copyFields(fields)}, nil
}

func (s *Store) Create(ctx context.Context, coll string, fields map[string]interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ierr.TransportError{Op: "create " + coll, Err: err}
	}

	id := uuid.NewString()

	s.mu.Lock()
	c := s.collection(coll)
	c.order = append(c.order, id)
	c.docs[id] = copyFields(fields)
	s.mu.Unlock()

	s.notify(coll)
	return id, nil
}

func (s *Store) Update(ctx context.Context, coll string, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return &ierr.TransportError{Op: "update " + coll, Err: err}
	}

	s.mu.Lock()
	c, ok := s.collections[coll]
	if !ok || c.docs[id] == nil {
		s.mu.Unlock()
		return fmt.Errorf("update %s/%s: %w", coll, id, ierr.NotFound)
	}
	for k, v := range fields {
		c.docs[id][k] = v
	}
	s.mu.Unlock()

	s.notify(coll)
	return nil
}

func (s *Store) Delete(ctx context.Context, coll string, id string) error {
	if err := ctx.Err(); err != nil {
		return &ierr.TransportError{Op: "delete " + coll, Err: err}
	}

	s.mu.Lock()
	c, ok := s.collections[coll]
	if !ok || c.docs[id] == nil {
		s.mu.Unlock()
		return fmt.Errorf("delete %s/%s: %w", coll, id, ierr.NotFound)
	}
	delete(c.docs, id)
	for i, key := range c.order {
		if key == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notify(coll)
	return nil
}

// Listen delivers the current collection immediately and after every mutation.
// Changes that land while the previous snapshot is still undelivered are coalesced.
func (s *Store) Listen(ctx context.Context, coll string) <-chan database.SnapshotEvent {
	ch := make(chan database.SnapshotEvent)
	signal := make(chan struct{}, 1)
	signal <- struct{}{}

	s.mu.Lock()
	s.nextID++
	key := s.nextID
	if s.listeners[coll] == nil {
		s.listeners[coll] = make(map[int]chan struct{})
	}
	s.listeners[coll][key] = signal
	s.mu.Unlock()

	go func() {
		defer close(ch)
		defer s.release(coll, key)

		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
			}

			s.mu.RLock()
			docs := s.snapshot(coll)
			s.mu.RUnlock()

			select {
			case <-ctx.Done():
				return
			case ch <- database.SnapshotEvent{Docs: docs}:
			}
		}
	}()

	return ch
}

// Listeners reports how many snapshot listeners are registered on coll.
func (s *Store) Listeners(coll string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners[coll])
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) release(coll string, key int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners[coll], key)
}

func (s *Store) notify(coll string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, signal := range s.listeners[coll] {
		select {
		case signal <- struct{}{}:
		default:
		}
	}
}

// caller must hold s.mu
func (s *Store) collection(coll string) *collection {
	c, ok := s.collections[coll]
	if !ok {
		c = &collection{docs: make(map[string]map[string]interface{})}
		s.collections[coll] = c
	}
	return c
}

// caller must hold s.mu
func (s *Store) snapshot(coll string) []database.Document {
	docs := make([]database.Document, 0)
	c, ok := s.collections[coll]
	if !ok {
		return docs
	}
	for _, id := range c.order {
		docs = append(docs, database.Document{Id: id, Fields: copyFields(c.docs[id])})
	}
	return docs
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		dst[k] = v
	}
	return dst
}
