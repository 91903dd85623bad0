// Package drive provides a Google Drive storage adapter backed by a service
// account. Objects live as files inside one Drive folder; the catalog records
// the Drive file ID as the copy locator.
package drive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/catalog"
)

// AdapterType is the registry name of this backend.
const AdapterType = "drive"

func init() {
	adapter.Register(AdapterType, New)
}

// Adapter stores objects in a Google Drive folder.
type Adapter struct {
	id        string
	folderID  string
	outputDir string
	files     *drive.FilesService
	cat       adapter.Catalog
}

// New constructs a Drive adapter from service account credentials.
func New(ctx context.Context, cfg adapter.Config, cat adapter.Catalog) (adapter.Adapter, error) {
	if cfg.ID == "" {
		return nil, adapter.NewConfigurationError("drive adapter requires an id")
	}
	if cfg.FolderID == "" {
		return nil, adapter.NewConfigurationError(fmt.Sprintf("drive adapter %q requires folder_id", cfg.ID))
	}
	if cfg.CredentialsFile == "" {
		return nil, adapter.NewConfigurationError(fmt.Sprintf("drive adapter %q requires credentials_file", cfg.ID))
	}
	if cfg.OutputDir == "" {
		return nil, adapter.NewConfigurationError(fmt.Sprintf("drive adapter %q requires output_dir", cfg.ID))
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, adapter.NewAdapterCreationError(AdapterType, err)
	}

	creds, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, adapter.NewAdapterCreationError(AdapterType, err)
	}
	jwtCfg, err := google.JWTConfigFromJSON(creds, drive.DriveScope)
	if err != nil {
		return nil, adapter.NewAdapterCreationError(AdapterType, fmt.Errorf("parse service account key: %w", err))
	}

	svc, err := drive.NewService(ctx, option.WithTokenSource(jwtCfg.TokenSource(ctx)))
	if err != nil {
		return nil, adapter.NewAdapterCreationError(AdapterType, err)
	}

	return &Adapter{
		id:        cfg.ID,
		folderID:  cfg.FolderID,
		outputDir: cfg.OutputDir,
		files:     svc.Files,
		cat:       cat,
	}, nil
}

// ID returns the adapter instance identifier.
func (a *Adapter) ID() string { return a.id }

// Type returns "drive".
func (a *Adapter) Type() string { return AdapterType }

// Store uploads the canonical copy into the Drive folder.
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

	sum, err := adapter.FileSHA1(canonical.Locator)
	if err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "store", err)
	}
	if sum != r.Checksum {
		return "", adapter.NewChecksumMismatchError(resourceUUID, a.id, r.Checksum, sum)
	}

	fileID, err := a.upload(ctx, canonical.Locator, adapter.ObjectName(resourceUUID, r.Filename))
	if err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "store", err)
	}

	err = a.cat.AddCopy(ctx, &catalog.Copy{
		ResourceUUID: resourceUUID,
		AdapterID:    a.id,
		AdapterType:  AdapterType,
		Locator:      fileID,
		Checksum:     sum,
	})
	if err != nil {
		return "", err
	}
	return fileID, nil
}

// StoreCanonical uploads the authoritative copy from a staged file.
func (a *Adapter) StoreCanonical(ctx context.Context, path, resourceUUID, checksum, filename string) (string, error) {
	if existing, err := a.cat.GetCanonicalCopy(ctx, resourceUUID); err == nil {
		if existing.AdapterID == a.id {
			return existing.Locator, nil
		}
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "store canonical", catalog.ErrDuplicateCanonical)
	} else if !errors.Is(err, catalog.ErrCopyNotFound) {
		return "", err
	}

	sum, err := adapter.FileSHA1(path)
	if err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "store canonical", err)
	}
	if sum != checksum {
		return "", adapter.NewChecksumMismatchError(resourceUUID, a.id, checksum, sum)
	}

	fileID, err := a.upload(ctx, path, adapter.CanonicalObjectName(resourceUUID, filename))
	if err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "store canonical", err)
	}

	err = a.cat.AddCopy(ctx, &catalog.Copy{
		ResourceUUID: resourceUUID,
		AdapterID:    a.id,
		AdapterType:  AdapterType,
		Locator:      fileID,
		Checksum:     sum,
		Canonical:    true,
	})
	if err != nil {
		return "", err
	}
	return fileID, nil
}

// Retrieve downloads this adapter's object into the output directory.
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

	resp, err := a.files.Get(c.Locator).Context(ctx).Download()
	if err != nil {
		if isNotFound(err) {
			return "", adapter.NewNoCopyError(resourceUUID, a.id)
		}
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "retrieve", err)
	}
	defer resp.Body.Close()

	out := filepath.Join(a.outputDir, r.Filename)
	tmpPath := out + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "retrieve", err)
	}
	if _, err := f.ReadFrom(resp.Body); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "retrieve", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "retrieve", err)
	}
	if err := os.Rename(tmpPath, out); err != nil {
		os.Remove(tmpPath)
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "retrieve", err)
	}

	sum, err := adapter.FileSHA1(out)
	if err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "retrieve", err)
	}
	if sum != c.Checksum {
		_ = os.Remove(out)
		return "", adapter.NewChecksumMismatchError(resourceUUID, a.id, c.Checksum, sum)
	}
	return out, nil
}

// Delete removes the non-canonical copy from Drive and the catalog.
func (a *Adapter) Delete(ctx context.Context, resourceUUID string) error {
	c, err := a.cat.GetCopy(ctx, resourceUUID, a.id)
	if err != nil {
		if errors.Is(err, catalog.ErrCopyNotFound) {
			return nil
		}
		return err
	}
	if err := a.files.Delete(c.Locator).Context(ctx).Do(); err != nil && !isNotFound(err) {
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
	if err := a.files.Delete(c.Locator).Context(ctx).Do(); err != nil && !isNotFound(err) {
		return adapter.NewStorageFailedError(resourceUUID, a.id, "delete canonical", err)
	}
	return a.cat.DeleteCopy(ctx, c.CopyID)
}

// ActualChecksum streams the object out of Drive and hashes it.
func (a *Adapter) ActualChecksum(ctx context.Context, resourceUUID string) (string, error) {
	c, err := a.ownCopy(ctx, resourceUUID)
	if err != nil {
		return "", err
	}
	resp, err := a.files.Get(c.Locator).Context(ctx).Download()
	if err != nil {
		if isNotFound(err) {
			return "", adapter.NewNoCopyError(resourceUUID, a.id)
		}
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "checksum", err)
	}
	defer resp.Body.Close()
	return adapter.ReaderSHA1(resp.Body)
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

func (a *Adapter) upload(ctx context.Context, path, name string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	created, err := a.files.Create(&drive.File{
		Name:    name,
		Parents: []string{a.folderID},
	}).Media(f).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive create: %w", err)
	}
	return created.Id, nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 404
}
