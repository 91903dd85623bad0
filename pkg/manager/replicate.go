package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/libreary/libreary/internal/logger"
	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/catalog"
)

// SendResourceToAdapters replicates a resource to every adapter its levels
// list. Adapters that already hold a copy are skipped by the adapters'
// idempotent Store. Individual adapter failures do not stop the fan-out; the
// joined error reports all of them.
func (m *Manager) SendResourceToAdapters(ctx context.Context, resourceUUID string) error {
	r, err := m.cat.GetResource(ctx, resourceUUID)
	if err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return adapter.NewNotIngestedError(resourceUUID)
		}
		return err
	}

	targets, err := m.adaptersForResource(ctx, r)
	if err != nil {
		return err
	}

	var errs []error
	for _, a := range targets {
		start := time.Now()
		locator, err := a.Store(ctx, resourceUUID)
		if err != nil {
			logger.Error("Replication to adapter failed",
				logger.Resource(resourceUUID), logger.Adapter(a.ID()), logger.Err(err))
			errs = append(errs, err)
			continue
		}
		logger.Debug("Copy stored",
			logger.Resource(resourceUUID), logger.Adapter(a.ID()),
			logger.Locator(locator), logger.DurationMs(logger.Duration(start)))
	}
	return errors.Join(errs...)
}

// DeleteResourceFromAdapters removes every non-canonical copy of a resource.
// The canonical copy and the resource row stay; the ingester owns those.
func (m *Manager) DeleteResourceFromAdapters(ctx context.Context, resourceUUID string) error {
	copies, err := m.cat.ListCopies(ctx, resourceUUID)
	if err != nil {
		return err
	}

	var errs []error
	for _, c := range copies {
		if c.Canonical {
			continue
		}
		a, err := m.AdapterByID(ctx, c.AdapterID, c.AdapterType)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := a.Delete(ctx, resourceUUID); err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Debug("Copy deleted",
			logger.Resource(resourceUUID), logger.Adapter(c.AdapterID))
	}
	return errors.Join(errs...)
}

// ChangeResourceLevel moves a resource to a new level assignment: replicate
// to adapters the new levels add, withdraw from adapters no longer listed,
// and record the assignment.
func (m *Manager) ChangeResourceLevel(ctx context.Context, resourceUUID string, levels []string) error {
	if len(levels) == 0 {
		return adapter.NewConfigurationError("a resource needs at least one level")
	}

	r, err := m.cat.GetResource(ctx, resourceUUID)
	if err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return adapter.NewNotIngestedError(resourceUUID)
		}
		return err
	}

	for _, name := range levels {
		if _, err := m.LevelByName(ctx, name); err != nil {
			if errors.Is(err, catalog.ErrLevelNotFound) {
				return adapter.NewConfigurationError(fmt.Sprintf("unknown level %q", name))
			}
			return err
		}
	}

	oldAdapters, err := m.adaptersForResource(ctx, r)
	if err != nil {
		return err
	}

	// Record first so the new adapter set drives the fan-out.
	if err := m.cat.UpdateResourceLevels(ctx, resourceUUID, levels); err != nil {
		return err
	}
	r.SetLevelNames(levels)

	newAdapters, err := m.adaptersForResource(ctx, r)
	if err != nil {
		return err
	}
	keep := make(map[string]bool, len(newAdapters))
	for _, a := range newAdapters {
		keep[a.ID()] = true
	}

	if err := m.SendResourceToAdapters(ctx, resourceUUID); err != nil {
		return err
	}

	var errs []error
	for _, a := range oldAdapters {
		if keep[a.ID()] {
			continue
		}
		if err := a.Delete(ctx, resourceUUID); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	logger.Info("Resource level changed",
		logger.Resource(resourceUUID), logger.Levels(levels))
	return nil
}

// RetrieveByPreference materializes the resource into the output directory,
// trying the canonical adapter first and then each level adapter in order.
// A copy that turns out corrupt or missing is repaired on the spot (the
// canonical copy via RestoreCanonicalCopy, replicas from the canonical copy)
// and retried once before the next candidate is tried.
func (m *Manager) RetrieveByPreference(ctx context.Context, resourceUUID string) (string, error) {
	r, err := m.cat.GetResource(ctx, resourceUUID)
	if err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return "", adapter.NewNotIngestedError(resourceUUID)
		}
		return "", err
	}

	candidates := make([]adapter.Adapter, 0, 4)
	if canonical, err := m.Canonical(ctx); err == nil {
		candidates = append(candidates, canonical)
	}
	levelAdapters, err := m.adaptersForResource(ctx, r)
	if err != nil {
		return "", err
	}
	for _, a := range levelAdapters {
		if a.ID() != m.canonicalID {
			candidates = append(candidates, a)
		}
	}

	var lastErr error
	for _, a := range candidates {
		path, err := a.Retrieve(ctx, resourceUUID)
		if err == nil {
			m.metrics.RecordRetrieval(a.ID())
			logger.Debug("Resource retrieved",
				logger.Resource(resourceUUID), logger.Adapter(a.ID()), logger.Path(path))
			return path, nil
		}

		if adapter.IsChecksumMismatch(err) || adapter.IsNoCopy(err) {
			logger.Warn("Copy failed verification during retrieval, repairing",
				logger.Resource(resourceUUID), logger.Adapter(a.ID()), logger.Err(err))
			if rerr := m.repairForRetrieval(ctx, resourceUUID, a.ID()); rerr != nil {
				logger.Warn("Repair during retrieval failed",
					logger.Resource(resourceUUID), logger.Adapter(a.ID()), logger.Err(rerr))
				lastErr = err
				continue
			}
			if path, err = a.Retrieve(ctx, resourceUUID); err == nil {
				m.metrics.RecordRetrieval(a.ID())
				logger.Info("Resource retrieved after repair",
					logger.Resource(resourceUUID), logger.Adapter(a.ID()), logger.Path(path))
				return path, nil
			}
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = adapter.NewNoCopyError(resourceUUID, "")
	}
	if adapter.IsNoCopy(lastErr) || adapter.IsChecksumMismatch(lastErr) {
		return "", &adapter.ArchiveError{
			Code:     adapter.ErrNoCopy,
			Message:  "no verifiable copy could be retrieved",
			Resource: resourceUUID,
			Err:      lastErr,
		}
	}
	return "", lastErr
}

// repairForRetrieval fixes the copy a failed retrieval touched: the canonical
// copy is rebuilt from an intact replica, a replica is replaced from the
// canonical copy.
func (m *Manager) repairForRetrieval(ctx context.Context, resourceUUID, adapterID string) error {
	if adapterID == m.canonicalID {
		_, err := m.RestoreCanonicalCopy(ctx, resourceUUID)
		return err
	}
	return m.RestoreFromCanonicalCopy(ctx, resourceUUID, adapterID)
}
