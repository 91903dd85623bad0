package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/libreary/libreary/internal/logger"
	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/catalog"
	"github.com/libreary/libreary/pkg/metrics"
)

// CopyState is the verdict of a single-copy integrity check.
type CopyState int

const (
	// StateAbsent means the adapter holds no copy where one is expected.
	StateAbsent CopyState = iota

	// StateGood means the copy matches the canonical checksum.
	StateGood

	// StateMismatch means a copy exists but its bytes diverge.
	StateMismatch
)

// String returns a human-readable name for the copy state.
func (s CopyState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateGood:
		return "good"
	case StateMismatch:
		return "mismatch"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// VerifyCopy checks one adapter's copy of a resource against the canonical
// checksum. A shallow check trusts the checksum recorded for the copy; a deep
// check re-hashes the bytes the backend actually holds.
func (m *Manager) VerifyCopy(ctx context.Context, resourceUUID, adapterID string, deep bool) (CopyState, error) {
	r, err := m.cat.GetResource(ctx, resourceUUID)
	if err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return StateAbsent, adapter.NewNotIngestedError(resourceUUID)
		}
		return StateAbsent, err
	}

	c, err := m.cat.GetCopy(ctx, resourceUUID, adapterID)
	if err != nil {
		if errors.Is(err, catalog.ErrCopyNotFound) {
			return StateAbsent, nil
		}
		return StateAbsent, err
	}

	if !deep {
		if c.Checksum != r.Checksum {
			return StateMismatch, nil
		}
		return StateGood, nil
	}

	a, err := m.AdapterByID(ctx, adapterID, c.AdapterType)
	if err != nil {
		return StateAbsent, err
	}
	actual, err := a.ActualChecksum(ctx, resourceUUID)
	if err != nil {
		if adapter.IsNoCopy(err) {
			return StateAbsent, nil
		}
		return StateAbsent, err
	}
	if actual != r.Checksum {
		return StateMismatch, nil
	}
	return StateGood, nil
}

// CheckResult reports one copy check, and whether a repair happened.
type CheckResult struct {
	Resource string
	Adapter  string
	State    CopyState
	Repaired bool
}

// CheckSingleResourceSingleAdapter verifies one copy and, when repair is set,
// brings it back in line with the canonical copy: absent copies are
// replicated, mismatched copies are replaced.
func (m *Manager) CheckSingleResourceSingleAdapter(ctx context.Context, resourceUUID, adapterID string, deep, repair bool) (CheckResult, error) {
	start := time.Now()
	result := CheckResult{Resource: resourceUUID, Adapter: adapterID}

	state, err := m.VerifyCopy(ctx, resourceUUID, adapterID, deep)
	if err != nil {
		m.metrics.RecordCheck(adapterID, metrics.ResultError, time.Since(start))
		return result, err
	}
	result.State = state

	switch state {
	case StateGood:
		m.metrics.RecordCheck(adapterID, metrics.ResultGood, time.Since(start))
		return result, nil

	case StateAbsent:
		m.metrics.RecordCheck(adapterID, metrics.ResultMissing, time.Since(start))
		if !repair {
			return result, nil
		}
		// Delete first: the catalog may still carry a copy row even though
		// the backend lost the bytes, and Store would trust that row.
		if err := m.RestoreFromCanonicalCopy(ctx, resourceUUID, adapterID); err != nil {
			m.metrics.RecordRepair(adapterID, metrics.OutcomeFailed)
			return result, err
		}
		result.Repaired = true

	case StateMismatch:
		m.metrics.RecordCheck(adapterID, metrics.ResultMismatch, time.Since(start))
		logger.Warn("Copy diverged from canonical checksum",
			logger.Resource(resourceUUID), logger.Adapter(adapterID), logger.Deep(deep))
		if !repair {
			return result, nil
		}
		if err := m.RestoreFromCanonicalCopy(ctx, resourceUUID, adapterID); err != nil {
			m.metrics.RecordRepair(adapterID, metrics.OutcomeFailed)
			return result, err
		}
		result.Repaired = true
	}

	m.metrics.RecordRepair(adapterID, metrics.OutcomeRepaired)
	logger.Info("Copy repaired",
		logger.Resource(resourceUUID), logger.Adapter(adapterID),
		"was", result.State.String())
	return result, nil
}

// VerifyAdapterMetadata is the most expensive integrity pass for one copy:
// the adapter's bytes are retrieved to the output directory and re-hashed
// against the resource checksum, and a missing or diverged copy is repaired
// from the canonical copy on the spot. Returns true when the bytes matched.
// The retrieved file is removed unless keepRetrieved is set.
func (m *Manager) VerifyAdapterMetadata(ctx context.Context, adapterID, resourceUUID string, keepRetrieved bool) (bool, error) {
	r, err := m.cat.GetResource(ctx, resourceUUID)
	if err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return false, adapter.NewNotIngestedError(resourceUUID)
		}
		return false, err
	}

	a, err := m.AdapterByID(ctx, adapterID, "")
	if err != nil {
		return false, err
	}

	path, err := a.Retrieve(ctx, resourceUUID)
	if err != nil {
		if !adapter.IsChecksumMismatch(err) && !adapter.IsNoCopy(err) {
			return false, err
		}
	} else {
		sum, herr := adapter.FileSHA1(path)
		if !keepRetrieved {
			_ = os.Remove(path)
		}
		if herr != nil {
			return false, herr
		}
		if sum == r.Checksum {
			return true, nil
		}
	}

	logger.Warn("Retrieved bytes diverge from resource checksum",
		logger.Resource(resourceUUID), logger.Adapter(adapterID))
	if err := m.RestoreFromCanonicalCopy(ctx, resourceUUID, adapterID); err != nil {
		m.metrics.RecordRepair(adapterID, metrics.OutcomeFailed)
		return false, err
	}
	m.metrics.RecordRepair(adapterID, metrics.OutcomeRepaired)
	return false, nil
}

// RestoreFromCanonicalCopy replaces one adapter's copy with a fresh
// replication of the canonical copy. The canonical copy is trusted; callers
// verify it first when in doubt.
func (m *Manager) RestoreFromCanonicalCopy(ctx context.Context, resourceUUID, adapterID string) error {
	a, err := m.AdapterByID(ctx, adapterID, "")
	if err != nil {
		return err
	}
	if err := a.Delete(ctx, resourceUUID); err != nil {
		return adapter.NewRestorationFailedError(resourceUUID, adapterID, err)
	}
	if _, err := a.Store(ctx, resourceUUID); err != nil {
		return adapter.NewRestorationFailedError(resourceUUID, adapterID, err)
	}
	return nil
}

// RestoreCanonicalCopy verifies the canonical copy's actual bytes and, when
// they are missing or diverged, rebuilds the canonical copy from the first
// replica whose bytes still match the recorded checksum. Returns true if a
// restoration happened.
func (m *Manager) RestoreCanonicalCopy(ctx context.Context, resourceUUID string) (bool, error) {
	r, err := m.cat.GetResource(ctx, resourceUUID)
	if err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return false, adapter.NewNotIngestedError(resourceUUID)
		}
		return false, err
	}

	canonical, err := m.Canonical(ctx)
	if err != nil {
		return false, err
	}

	actual, err := canonical.ActualChecksum(ctx, resourceUUID)
	if err == nil && actual == r.Checksum {
		return false, nil
	}
	if err != nil && !adapter.IsNoCopy(err) {
		return false, err
	}

	logger.Warn("Canonical copy is damaged, searching replicas",
		logger.Resource(resourceUUID), logger.Checksum(r.Checksum))

	copies, err := m.cat.ListCopies(ctx, resourceUUID)
	if err != nil {
		return false, err
	}

	for _, c := range copies {
		if c.Canonical {
			continue
		}
		a, err := m.AdapterByID(ctx, c.AdapterID, c.AdapterType)
		if err != nil {
			continue
		}
		sum, err := a.ActualChecksum(ctx, resourceUUID)
		if err != nil || sum != r.Checksum {
			continue
		}

		path, err := a.Retrieve(ctx, resourceUUID)
		if err != nil {
			continue
		}
		if err := canonical.DeleteCanonical(ctx, resourceUUID); err != nil {
			return false, adapter.NewRestorationFailedError(resourceUUID, canonical.ID(), err)
		}
		locator, err := canonical.StoreCanonical(ctx, path, resourceUUID, r.Checksum, r.Filename)
		if err != nil {
			return false, adapter.NewRestorationFailedError(resourceUUID, canonical.ID(), err)
		}
		if err := m.cat.UpdateResourceContent(ctx, resourceUUID, r.Checksum, locator); err != nil {
			return false, err
		}

		m.metrics.RecordRepair(canonical.ID(), metrics.OutcomeRepaired)
		logger.Info("Canonical copy restored",
			logger.Resource(resourceUUID), logger.Adapter(c.AdapterID), logger.Locator(locator))
		return true, nil
	}

	m.metrics.RecordRepair(canonical.ID(), metrics.OutcomeFailed)
	return false, adapter.NewRestorationFailedError(resourceUUID, canonical.ID(),
		fmt.Errorf("no intact replica found"))
}

// CopyStatus is one row of a copy comparison.
type CopyStatus struct {
	Adapter   string
	Type      string
	Canonical bool
	Checksum  string
	Matches   bool
}

// SummarizeCopies lists every recorded copy of a resource and whether its
// recorded checksum matches the resource checksum.
func (m *Manager) SummarizeCopies(ctx context.Context, resourceUUID string) ([]CopyStatus, error) {
	r, err := m.cat.GetResource(ctx, resourceUUID)
	if err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return nil, adapter.NewNotIngestedError(resourceUUID)
		}
		return nil, err
	}

	copies, err := m.cat.ListCopies(ctx, resourceUUID)
	if err != nil {
		return nil, err
	}

	out := make([]CopyStatus, 0, len(copies))
	for _, c := range copies {
		out = append(out, CopyStatus{
			Adapter:   c.AdapterID,
			Type:      c.AdapterType,
			Canonical: c.Canonical,
			Checksum:  c.Checksum,
			Matches:   c.Checksum == r.Checksum,
		})
	}
	return out, nil
}

// CompareCopies reports whether two adapters hold the same bytes of a
// resource. Shallow compares the recorded copy-row checksums; deep re-hashes
// what each backend actually holds.
func (m *Manager) CompareCopies(ctx context.Context, resourceUUID, adapterA, adapterB string, deep bool) (bool, error) {
	if _, err := m.cat.GetResource(ctx, resourceUUID); err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return false, adapter.NewNotIngestedError(resourceUUID)
		}
		return false, err
	}

	sumA, err := m.copyChecksum(ctx, resourceUUID, adapterA, deep)
	if err != nil {
		return false, err
	}
	sumB, err := m.copyChecksum(ctx, resourceUUID, adapterB, deep)
	if err != nil {
		return false, err
	}
	return sumA == sumB, nil
}

// copyChecksum resolves one adapter's checksum of a resource: the recorded
// copy-row checksum for shallow, the backend's re-hashed bytes for deep. The
// canonical row stands in when the adapter holds no replica row.
func (m *Manager) copyChecksum(ctx context.Context, resourceUUID, adapterID string, deep bool) (string, error) {
	if deep {
		a, err := m.AdapterByID(ctx, adapterID, "")
		if err != nil {
			return "", err
		}
		return a.ActualChecksum(ctx, resourceUUID)
	}

	c, err := m.cat.GetCopy(ctx, resourceUUID, adapterID)
	if err == nil {
		return c.Checksum, nil
	}
	if !errors.Is(err, catalog.ErrCopyNotFound) {
		return "", err
	}
	canonical, err := m.cat.GetCanonicalCopy(ctx, resourceUUID)
	if err == nil && canonical.AdapterID == adapterID {
		return canonical.Checksum, nil
	}
	return "", adapter.NewNoCopyError(resourceUUID, adapterID)
}
