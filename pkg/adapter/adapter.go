// Package adapter defines the storage adapter contract and the error
// taxonomy shared by the archive.
//
// An adapter owns one storage backend (a local directory, an S3 bucket, a
// Google Drive folder) and knows how to write, read, verify, and delete
// object bytes there. Adapters record the copies they hold in the metadata
// catalog; the catalog stays authoritative about what should exist where.
package adapter

import (
	"context"

	"github.com/libreary/libreary/pkg/catalog"
)

// Catalog is the slice of the metadata catalog adapters need. *catalog.Store
// satisfies it; tests substitute fakes.
type Catalog interface {
	GetResource(ctx context.Context, uuid string) (*catalog.Resource, error)
	GetCopy(ctx context.Context, resourceUUID, adapterID string) (*catalog.Copy, error)
	GetCanonicalCopy(ctx context.Context, resourceUUID string) (*catalog.Copy, error)
	AddCopy(ctx context.Context, c *catalog.Copy) error
	DeleteCopy(ctx context.Context, copyID uint) error
	UpdateCopyChecksum(ctx context.Context, copyID uint, checksum, locator string) error
}

// Adapter is one storage backend.
//
// Store and StoreCanonical are idempotent: storing a copy that already exists
// returns the existing locator without rewriting bytes. Delete and
// DeleteCanonical are idempotent the other way: deleting a copy that does not
// exist is a silent success.
type Adapter interface {
	// ID returns the adapter instance identifier, unique within a deployment.
	ID() string

	// Type returns the backend kind ("local", "s3", "drive", "memory").
	Type() string

	// Store replicates the canonical copy of a resource into this backend and
	// records the copy row. The canonical locator must name a readable local
	// path; deployments keep the canonical copy on a filesystem-backed
	// adapter so every other adapter can replicate from it.
	Store(ctx context.Context, resourceUUID string) (string, error)

	// StoreCanonical writes the authoritative copy from a staged file and
	// records it as canonical. Only called during ingest and restoration.
	StoreCanonical(ctx context.Context, path, resourceUUID, checksum, filename string) (string, error)

	// Retrieve materializes this adapter's copy of the resource into the
	// configured output directory and returns the resulting path. The bytes
	// are verified against the copy's recorded checksum on the way out.
	Retrieve(ctx context.Context, resourceUUID string) (string, error)

	// Delete removes this adapter's non-canonical copy, bytes and row both.
	Delete(ctx context.Context, resourceUUID string) error

	// DeleteCanonical removes the canonical copy held by this adapter.
	DeleteCanonical(ctx context.Context, resourceUUID string) error

	// ActualChecksum computes the checksum of the bytes the backend holds
	// right now, as opposed to the checksum the catalog recorded.
	ActualChecksum(ctx context.Context, resourceUUID string) (string, error)
}
