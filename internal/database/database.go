package database

import (
	"context"
)

// Document is a stored record: its key plus its field map.
type Document struct {
	Id     string
	Fields map[string]interface{}
}

// SnapshotEvent carries the full content of a collection at one point in time.
type SnapshotEvent struct {
	Docs []Document
	Err  error
}

// Client issues single-attempt operations against named document collections.
// GetOne, Update and Delete return an error wrapping errors.NotFound when the
// document is missing; other failures wrap *errors.TransportError.
type Client interface {
	ListAll(ctx context.Context, coll string) ([]Document, error)
	GetOne(ctx context.Context, coll string, id string) (Document, error)
	Create(ctx context.Context, coll string, fields map[string]interface{}) (string, error)
	Update(ctx context.Context, coll string, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, coll string, id string) error
	// Listen emits the whole collection once on registration and again after every change.
	// The channel is closed, and the listener released, when ctx is done.
	Listen(ctx context.Context, coll string) <-chan SnapshotEvent
	Close() error
}
