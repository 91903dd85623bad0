// Package ingest brings staged files into the archive: checksum, identity
// assignment, canonical copy, and the catalog row that makes the resource
// visible.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/libreary/libreary/internal/logger"
	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/catalog"
)

// Catalog is the slice of the metadata catalog the ingester needs.
type Catalog interface {
	AddResource(ctx context.Context, r *catalog.Resource) error
	GetResource(ctx context.Context, uuid string) (*catalog.Resource, error)
	DeleteResource(ctx context.Context, uuid string) error
	UpdateResourceContent(ctx context.Context, uuid, checksum, canonicalLocator string) error
	GetLevel(ctx context.Context, name string) (*catalog.Level, error)
	DeleteObjectMetadata(ctx context.Context, objectUUID string) error
}

// Ingester writes canonical copies through one canonical adapter.
type Ingester struct {
	cat       Catalog
	canonical adapter.Adapter
}

// New constructs an ingester bound to the canonical adapter.
func New(cat Catalog, canonical adapter.Adapter) *Ingester {
	return &Ingester{cat: cat, canonical: canonical}
}

// Ingest brings one staged file into the archive and returns the new
// resource UUID.
//
// The sequence is: checksum the staged bytes, assign a UUID, record the
// resource row, write the canonical copy, then stamp the canonical locator
// onto the row. A failure while writing the canonical copy rolls the resource
// row back so a half-ingested object is never visible. Should that rollback
// fail too, the row stays behind with its locator still "pending"; deleting
// the resource clears it. When deleteAfterStore is set the staged file is
// removed after the canonical copy is safe.
func (i *Ingester) Ingest(ctx context.Context, path string, levels []string, description string, deleteAfterStore bool) (string, error) {
	if len(levels) == 0 {
		return "", adapter.NewConfigurationError("ingest requires at least one level")
	}
	for _, name := range levels {
		if _, err := i.cat.GetLevel(ctx, name); err != nil {
			if errors.Is(err, catalog.ErrLevelNotFound) {
				return "", adapter.NewConfigurationError(fmt.Sprintf("unknown level %q", name))
			}
			return "", err
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("staged file is not readable: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("staged path %s is a directory", path)
	}

	checksum, err := adapter.FileSHA1(path)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	filename := filepath.Base(path)

	log := logger.With(
		logger.Resource(id),
		logger.Filename(filename),
		logger.Checksum(checksum),
	)
	log.Debug("Ingesting staged file", logger.Levels(levels))

	r := &catalog.Resource{
		UUID:             id,
		CanonicalLocator: "pending",
		Filename:         filename,
		Checksum:         checksum,
		Description:      description,
	}
	r.SetLevelNames(levels)
	if err := i.cat.AddResource(ctx, r); err != nil {
		return "", err
	}

	locator, err := i.canonical.StoreCanonical(ctx, path, id, checksum, filename)
	if err != nil {
		if delErr := i.cat.DeleteResource(ctx, id); delErr != nil {
			log.Error("Failed to roll back resource row", logger.Err(delErr))
		}
		return "", err
	}

	if err := i.cat.UpdateResourceContent(ctx, id, checksum, locator); err != nil {
		return "", err
	}

	if deleteAfterStore {
		if err := os.Remove(path); err != nil {
			log.Warn("Failed to remove staged file after ingest", logger.Path(path), logger.Err(err))
		}
	}

	log.Info("Resource ingested", logger.Locator(locator))
	return id, nil
}

// DeleteResource removes the canonical copy, the user metadata, and the
// resource row. Replica cleanup across the other adapters happens before this
// is called.
//
// The canonical bytes are re-hashed first: a drifted canonical copy fails the
// delete with ChecksumMismatch rather than being destroyed, forcing an
// explicit repair (or re-ingest) before the resource can go away. A canonical
// copy that is already gone does not block the cleanup.
func (i *Ingester) DeleteResource(ctx context.Context, resourceUUID string) error {
	r, err := i.cat.GetResource(ctx, resourceUUID)
	if err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return adapter.NewNotIngestedError(resourceUUID)
		}
		return err
	}

	if err := i.verifyCanonical(ctx, r); err != nil {
		return err
	}

	if err := i.canonical.DeleteCanonical(ctx, resourceUUID); err != nil {
		return err
	}
	if err := i.cat.DeleteObjectMetadata(ctx, resourceUUID); err != nil {
		return err
	}
	if err := i.cat.DeleteResource(ctx, resourceUUID); err != nil {
		return err
	}

	logger.Info("Resource deleted", logger.Resource(resourceUUID))
	return nil
}

// VerifyCanonical re-hashes the canonical bytes against the catalog checksum
// and reports drift as ChecksumMismatch. A canonical copy that is already
// gone passes; it blocks nothing and Delete can still clean up.
func (i *Ingester) VerifyCanonical(ctx context.Context, resourceUUID string) error {
	r, err := i.cat.GetResource(ctx, resourceUUID)
	if err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return adapter.NewNotIngestedError(resourceUUID)
		}
		return err
	}
	return i.verifyCanonical(ctx, r)
}

func (i *Ingester) verifyCanonical(ctx context.Context, r *catalog.Resource) error {
	actual, err := i.canonical.ActualChecksum(ctx, r.UUID)
	switch {
	case err == nil:
		if actual != r.Checksum {
			return adapter.NewChecksumMismatchError(r.UUID, i.canonical.ID(), r.Checksum, actual)
		}
		return nil
	case adapter.IsNoCopy(err):
		return nil
	default:
		return err
	}
}
