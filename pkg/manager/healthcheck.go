package manager

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/libreary/libreary/internal/logger"
	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/catalog"
)

// VerifyAdapter exercises one adapter end to end with a synthetic object:
// store, checksum, retrieve, delete. Everything the probe creates is removed
// again, catalog rows included, so a passing run leaves no trace.
func (m *Manager) VerifyAdapter(ctx context.Context, adapterID string) error {
	a, err := m.AdapterByID(ctx, adapterID, "")
	if err != nil {
		return err
	}

	payload := make([]byte, 500)
	if _, err := rand.Read(payload); err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "libreary-verify-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	probeID := uuid.New().String()
	filename := "probe_" + hex.EncodeToString(payload[:4]) + ".bin"
	staged := filepath.Join(dir, filename)
	if err := os.WriteFile(staged, payload, 0644); err != nil {
		return err
	}
	checksum, err := adapter.FileSHA1(staged)
	if err != nil {
		return err
	}

	// A minimal resource plus a canonical row pointing at the staged file
	// gives the adapter everything Store needs.
	r := &catalog.Resource{
		UUID:             probeID,
		CanonicalLocator: staged,
		Filename:         filename,
		Checksum:         checksum,
		Description:      "adapter health probe",
	}
	if err := m.cat.AddResource(ctx, r); err != nil {
		return err
	}
	defer func() {
		if err := m.cat.DeleteResource(ctx, probeID); err != nil {
			logger.Warn("Failed to clean up probe resource",
				logger.Resource(probeID), logger.Err(err))
		}
	}()

	canonicalRow := &catalog.Copy{
		ResourceUUID: probeID,
		AdapterID:    "healthcheck",
		AdapterType:  "probe",
		Locator:      staged,
		Checksum:     checksum,
		Canonical:    true,
	}
	if err := m.cat.AddCopy(ctx, canonicalRow); err != nil {
		return err
	}
	defer func() {
		if err := m.cat.DeleteCopy(ctx, canonicalRow.CopyID); err != nil {
			logger.Warn("Failed to clean up probe canonical row",
				logger.Resource(probeID), logger.Err(err))
		}
	}()

	if _, err := a.Store(ctx, probeID); err != nil {
		return fmt.Errorf("adapter %s failed to store probe: %w", adapterID, err)
	}
	defer func() {
		if err := a.Delete(ctx, probeID); err != nil {
			logger.Warn("Failed to clean up probe copy",
				logger.Resource(probeID), logger.Adapter(adapterID), logger.Err(err))
		}
	}()

	actual, err := a.ActualChecksum(ctx, probeID)
	if err != nil {
		return fmt.Errorf("adapter %s failed to checksum probe: %w", adapterID, err)
	}
	if actual != checksum {
		return adapter.NewChecksumMismatchError(probeID, adapterID, checksum, actual)
	}

	retrieved, err := a.Retrieve(ctx, probeID)
	if err != nil {
		return fmt.Errorf("adapter %s failed to retrieve probe: %w", adapterID, err)
	}
	if err := os.Remove(retrieved); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove retrieved probe file",
			logger.Path(retrieved), logger.Err(err))
	}

	logger.Info("Adapter verified", logger.Adapter(adapterID), logger.AdapterType(a.Type()))
	return nil
}
