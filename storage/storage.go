// Package storage provides the object-store capability used to publish image
// variants.
package storage

import "context"

// ObjectStore uploads named blobs for public consumption.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Discard is a no-op ObjectStore. Used for dry runs.
type Discard struct{}

func (Discard) Put(context.Context, string, []byte, string) error { return nil }
