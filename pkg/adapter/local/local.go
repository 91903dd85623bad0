// Package local provides a filesystem-backed storage adapter.
//
// Objects are stored as files under a single storage directory, named
// "<uuid>_<filename>" for replicas and "canonical_<uuid>_<filename>" for
// canonical copies. Writes go through a temporary file and rename so a crash
// never leaves a half-written object behind.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/catalog"
)

// AdapterType is the registry name of this backend.
const AdapterType = "local"

func init() {
	adapter.Register(AdapterType, New)
}

// Adapter stores objects in a local directory.
type Adapter struct {
	id         string
	storageDir string
	outputDir  string
	cat        adapter.Catalog
}

// New constructs a local adapter and creates its directories.
func New(_ context.Context, cfg adapter.Config, cat adapter.Catalog) (adapter.Adapter, error) {
	if cfg.ID == "" {
		return nil, adapter.NewConfigurationError("local adapter requires an id")
	}
	if cfg.StorageDir == "" {
		return nil, adapter.NewConfigurationError(fmt.Sprintf("local adapter %q requires storage_dir", cfg.ID))
	}
	if cfg.OutputDir == "" {
		return nil, adapter.NewConfigurationError(fmt.Sprintf("local adapter %q requires output_dir", cfg.ID))
	}
	for _, dir := range []string{cfg.StorageDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, adapter.NewAdapterCreationError(AdapterType, err)
		}
	}
	return &Adapter{
		id:         cfg.ID,
		storageDir: cfg.StorageDir,
		outputDir:  cfg.OutputDir,
		cat:        cat,
	}, nil
}

// ID returns the adapter instance identifier.
func (a *Adapter) ID() string { return a.id }

// Type returns "local".
func (a *Adapter) Type() string { return AdapterType }

// Store replicates the canonical copy into the storage directory.
func (a *Adapter) Store(ctx context.Context, resourceUUID string) (string, error) {
	r, err := a.cat.GetResource(ctx, resourceUUID)
	if err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return "", adapter.NewNotIngestedError(resourceUUID)
		}
		return "", err
	}

	if existing, err := a.cat.GetCopy(ctx, resourceUUID, a.id); err == nil {
		return existing.Locator, nil
	} else if !errors.Is(err, catalog.ErrCopyNotFound) {
		return "", err
	}

	canonical, err := a.cat.GetCanonicalCopy(ctx, resourceUUID)
	if err != nil {
		if errors.Is(err, catalog.ErrCopyNotFound) {
			return "", adapter.NewNoCopyError(resourceUUID, a.id)
		}
		return "", err
	}

	dst := filepath.Join(a.storageDir, adapter.ObjectName(resourceUUID, r.Filename))
	if err := copyFile(canonical.Locator, dst); err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "store", err)
	}

	sum, err := adapter.FileSHA1(dst)
	if err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "store", err)
	}
	if sum != r.Checksum {
		_ = os.Remove(dst)
		return "", adapter.NewChecksumMismatchError(resourceUUID, a.id, r.Checksum, sum)
	}

	err = a.cat.AddCopy(ctx, &catalog.Copy{
		ResourceUUID: resourceUUID,
		AdapterID:    a.id,
		AdapterType:  AdapterType,
		Locator:      dst,
		Checksum:     sum,
	})
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	return dst, nil
}

// StoreCanonical writes the authoritative copy from a staged file.
func (a *Adapter) StoreCanonical(ctx context.Context, path, resourceUUID, checksum, filename string) (string, error) {
	if existing, err := a.cat.GetCanonicalCopy(ctx, resourceUUID); err == nil {
		if existing.AdapterID == a.id {
			return existing.Locator, nil
		}
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "store canonical", catalog.ErrDuplicateCanonical)
	} else if !errors.Is(err, catalog.ErrCopyNotFound) {
		return "", err
	}

	dst := filepath.Join(a.storageDir, adapter.CanonicalObjectName(resourceUUID, filename))
	if err := copyFile(path, dst); err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "store canonical", err)
	}

	sum, err := adapter.FileSHA1(dst)
	if err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "store canonical", err)
	}
	if sum != checksum {
		_ = os.Remove(dst)
		return "", adapter.NewChecksumMismatchError(resourceUUID, a.id, checksum, sum)
	}

	err = a.cat.AddCopy(ctx, &catalog.Copy{
		ResourceUUID: resourceUUID,
		AdapterID:    a.id,
		AdapterType:  AdapterType,
		Locator:      dst,
		Checksum:     sum,
		Canonical:    true,
	})
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	return dst, nil
}

// Retrieve copies this adapter's object into the output directory, verifying
// the bytes against the recorded checksum on the way out.
func (a *Adapter) Retrieve(ctx context.Context, resourceUUID string) (string, error) {
	r, err := a.cat.GetResource(ctx, resourceUUID)
	if err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return "", adapter.NewNotIngestedError(resourceUUID)
		}
		return "", err
	}

	c, err := a.ownCopy(ctx, resourceUUID)
	if err != nil {
		return "", err
	}

	sum, err := adapter.FileSHA1(c.Locator)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", adapter.NewNoCopyError(resourceUUID, a.id)
		}
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "retrieve", err)
	}
	if sum != c.Checksum {
		return "", adapter.NewChecksumMismatchError(resourceUUID, a.id, c.Checksum, sum)
	}

	out := filepath.Join(a.outputDir, r.Filename)
	if err := copyFile(c.Locator, out); err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "retrieve", err)
	}
	return out, nil
}

// Delete removes the non-canonical copy, bytes and row both.
func (a *Adapter) Delete(ctx context.Context, resourceUUID string) error {
	c, err := a.cat.GetCopy(ctx, resourceUUID, a.id)
	if err != nil {
		if errors.Is(err, catalog.ErrCopyNotFound) {
			return nil
		}
		return err
	}
	if err := os.Remove(c.Locator); err != nil && !os.IsNotExist(err) {
		return adapter.NewStorageFailedError(resourceUUID, a.id, "delete", err)
	}
	return a.cat.DeleteCopy(ctx, c.CopyID)
}

// DeleteCanonical removes the canonical copy if this adapter holds it.
func (a *Adapter) DeleteCanonical(ctx context.Context, resourceUUID string) error {
	c, err := a.cat.GetCanonicalCopy(ctx, resourceUUID)
	if err != nil {
		if errors.Is(err, catalog.ErrCopyNotFound) {
			return nil
		}
		return err
	}
	if c.AdapterID != a.id {
		return nil
	}
	if err := os.Remove(c.Locator); err != nil && !os.IsNotExist(err) {
		return adapter.NewStorageFailedError(resourceUUID, a.id, "delete canonical", err)
	}
	return a.cat.DeleteCopy(ctx, c.CopyID)
}

// ActualChecksum hashes the bytes currently on disk.
func (a *Adapter) ActualChecksum(ctx context.Context, resourceUUID string) (string, error) {
	c, err := a.ownCopy(ctx, resourceUUID)
	if err != nil {
		return "", err
	}
	sum, err := adapter.FileSHA1(c.Locator)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", adapter.NewNoCopyError(resourceUUID, a.id)
		}
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "checksum", err)
	}
	return sum, nil
}

// ownCopy resolves the copy row this adapter is responsible for, preferring
// the replica and falling back to a canonical copy this adapter holds.
func (a *Adapter) ownCopy(ctx context.Context, resourceUUID string) (*catalog.Copy, error) {
	c, err := a.cat.GetCopy(ctx, resourceUUID, a.id)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, catalog.ErrCopyNotFound) {
		return nil, err
	}
	canonical, err := a.cat.GetCanonicalCopy(ctx, resourceUUID)
	if err == nil && canonical.AdapterID == a.id {
		return canonical, nil
	}
	return nil, adapter.NewNoCopyError(resourceUUID, a.id)
}

// copyFile streams src into dst through a temporary file and renames it into
// place.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmpPath := dst + ".tmp"
	out, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
