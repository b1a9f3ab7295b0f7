package engine

import (
	"context"
	"io"
)

// ObjectStore is the remote store an export reads from and publishes to.
type ObjectStore interface {
	Named

	// List returns every key under prefix, in store order, following
	// pagination until exhausted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Get downloads the object at key into w and returns the number of bytes written.
	Get(ctx context.Context, key string, w io.WriterAt) (int64, error)

	// Put uploads body to key.
	Put(ctx context.Context, key string, body io.Reader) error

	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error
}

// Notification is the completion message sent once an archive is published.
type Notification struct {
	RunID   string
	ZipPath string
}

// Notifier signals an external orchestrator that an export completed.
type Notifier interface {
	Named
	Notify(ctx context.Context, n Notification) error
}
