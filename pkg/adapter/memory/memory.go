// Package memory provides an in-memory storage adapter used by tests and by
// deployments that want a scratch tier with no persistence.
package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/catalog"
)

// AdapterType is the registry name of this backend.
const AdapterType = "memory"

func init() {
	adapter.Register(AdapterType, New)
}

// Adapter keeps objects in a map keyed by locator.
type Adapter struct {
	id        string
	outputDir string
	cat       adapter.Catalog

	mu      sync.RWMutex
	objects map[string][]byte
}

// New constructs a memory adapter.
func New(_ context.Context, cfg adapter.Config, cat adapter.Catalog) (adapter.Adapter, error) {
	if cfg.ID == "" {
		return nil, adapter.NewConfigurationError("memory adapter requires an id")
	}
	if cfg.OutputDir == "" {
		return nil, adapter.NewConfigurationError(fmt.Sprintf("memory adapter %q requires output_dir", cfg.ID))
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, adapter.NewAdapterCreationError(AdapterType, err)
	}
	return &Adapter{
		id:        cfg.ID,
		outputDir: cfg.OutputDir,
		cat:       cat,
		objects:   make(map[string][]byte),
	}, nil
}

// ID returns the adapter instance identifier.
func (a *Adapter) ID() string { return a.id }

// Type returns "memory".
func (a *Adapter) Type() string { return AdapterType }

func (a *Adapter) locator(name string) string {
	return fmt.Sprintf("mem://%s/%s", a.id, name)
}

// Store replicates the canonical copy into memory.
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

	data, err := os.ReadFile(canonical.Locator)
	if err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "store", err)
	}
	sum, err := adapter.ReaderSHA1(bytes.NewReader(data))
	if err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "store", err)
	}
	if sum != r.Checksum {
		return "", adapter.NewChecksumMismatchError(resourceUUID, a.id, r.Checksum, sum)
	}

	loc := a.locator(adapter.ObjectName(resourceUUID, r.Filename))
	a.mu.Lock()
	a.objects[loc] = data
	a.mu.Unlock()

	err = a.cat.AddCopy(ctx, &catalog.Copy{
		ResourceUUID: resourceUUID,
		AdapterID:    a.id,
		AdapterType:  AdapterType,
		Locator:      loc,
		Checksum:     sum,
	})
	if err != nil {
		a.drop(loc)
		return "", err
	}
	return loc, nil
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

	data, err := os.ReadFile(path)
	if err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "store canonical", err)
	}
	sum, err := adapter.ReaderSHA1(bytes.NewReader(data))
	if err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "store canonical", err)
	}
	if sum != checksum {
		return "", adapter.NewChecksumMismatchError(resourceUUID, a.id, checksum, sum)
	}

	loc := a.locator(adapter.CanonicalObjectName(resourceUUID, filename))
	a.mu.Lock()
	a.objects[loc] = data
	a.mu.Unlock()

	err = a.cat.AddCopy(ctx, &catalog.Copy{
		ResourceUUID: resourceUUID,
		AdapterID:    a.id,
		AdapterType:  AdapterType,
		Locator:      loc,
		Checksum:     sum,
		Canonical:    true,
	})
	if err != nil {
		a.drop(loc)
		return "", err
	}
	return loc, nil
}

// Retrieve writes this adapter's object into the output directory.
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

	a.mu.RLock()
	data, ok := a.objects[c.Locator]
	a.mu.RUnlock()
	if !ok {
		return "", adapter.NewNoCopyError(resourceUUID, a.id)
	}

	sum, err := adapter.ReaderSHA1(bytes.NewReader(data))
	if err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "retrieve", err)
	}
	if sum != c.Checksum {
		return "", adapter.NewChecksumMismatchError(resourceUUID, a.id, c.Checksum, sum)
	}

	out := filepath.Join(a.outputDir, r.Filename)
	if err := os.WriteFile(out, data, 0644); err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "retrieve", err)
	}
	return out, nil
}

// Delete removes the non-canonical copy.
func (a *Adapter) Delete(ctx context.Context, resourceUUID string) error {
	c, err := a.cat.GetCopy(ctx, resourceUUID, a.id)
	if err != nil {
		if errors.Is(err, catalog.ErrCopyNotFound) {
			return nil
		}
		return err
	}
	a.drop(c.Locator)
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
	a.drop(c.Locator)
	return a.cat.DeleteCopy(ctx, c.CopyID)
}

// ActualChecksum hashes the bytes currently held in memory.
func (a *Adapter) ActualChecksum(ctx context.Context, resourceUUID string) (string, error) {
	c, err := a.ownCopy(ctx, resourceUUID)
	if err != nil {
		return "", err
	}
	a.mu.RLock()
	data, ok := a.objects[c.Locator]
	a.mu.RUnlock()
	if !ok {
		return "", adapter.NewNoCopyError(resourceUUID, a.id)
	}
	return adapter.ReaderSHA1(bytes.NewReader(data))
}

// OutputDir returns the directory retrieved files are written to.
func (a *Adapter) OutputDir() string { return a.outputDir }

// Corrupt flips the stored bytes of a locator. Tests use it to simulate
// backend bit rot.
func (a *Adapter) Corrupt(locator string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.objects[locator]
	if !ok || len(data) == 0 {
		return false
	}
	mutated := append([]byte(nil), data...)
	mutated[0] ^= 0xFF
	a.objects[locator] = mutated
	return true
}

// Drop discards the stored bytes of a locator without touching the catalog.
// Tests use it to simulate silent backend data loss.
func (a *Adapter) Drop(locator string) {
	a.drop(locator)
}

func (a *Adapter) drop(locator string) {
	a.mu.Lock()
	delete(a.objects, locator)
	a.mu.Unlock()
}

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
