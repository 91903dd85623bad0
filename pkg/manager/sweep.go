package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/libreary/libreary/internal/logger"
	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/catalog"
)

// Report summarizes one integrity sweep.
type Report struct {
	ResourcesChecked int
	Skipped          int
	CopiesChecked    int
	Good             int
	Missing          int
	Mismatched       int
	Repaired         int
	Errors           []error
}

// CheckAll sweeps every resource in the catalog, verifying the canonical copy
// and each expected replica. deep re-hashes backend bytes instead of trusting
// recorded checksums; repair fixes what it finds. Resources are checked
// concurrently, bounded by the manager's worker count.
func (m *Manager) CheckAll(ctx context.Context, deep, repair bool) (*Report, error) {
	return m.sweep(ctx, deep, repair, false)
}

// CheckDue sweeps only the resources whose advisory check frequency has
// elapsed since their last check. The scheduler runs this; operators wanting
// everything checked use CheckAll.
func (m *Manager) CheckDue(ctx context.Context, deep, repair bool) (*Report, error) {
	return m.sweep(ctx, deep, repair, true)
}

func (m *Manager) sweep(ctx context.Context, deep, repair, dueOnly bool) (*Report, error) {
	start := time.Now()

	resources, err := m.cat.ListResources(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		report Report
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for _, r := range resources {
		if dueOnly {
			due, err := m.resourceDue(ctx, r, start)
			if err != nil {
				report.Errors = append(report.Errors, err)
				continue
			}
			if !due {
				report.Skipped++
				continue
			}
		}
		report.ResourcesChecked++

		g.Go(func() error {
			results, errs := m.checkResource(gctx, r.UUID, deep, repair)
			if err := m.cat.TouchResourceChecked(gctx, r.UUID, start); err != nil {
				errs = append(errs, err)
			}

			mu.Lock()
			defer mu.Unlock()
			for _, res := range results {
				report.CopiesChecked++
				switch res.State {
				case StateGood:
					report.Good++
				case StateAbsent:
					report.Missing++
				case StateMismatch:
					report.Mismatched++
				}
				if res.Repaired {
					report.Repaired++
				}
			}
			report.Errors = append(report.Errors, errs...)
			return nil
		})
	}

	// Workers report through the shared Report rather than failing the group,
	// so a single broken resource cannot abort the sweep.
	_ = g.Wait()

	m.metrics.RecordSweep(time.Since(start))
	m.metrics.SetResourceCount(len(resources))

	logger.Info("Integrity sweep finished",
		"resources", report.ResourcesChecked,
		"skipped", report.Skipped,
		"copies", report.CopiesChecked,
		"good", report.Good,
		"missing", report.Missing,
		"mismatched", report.Mismatched,
		"repaired", report.Repaired,
		"errors", len(report.Errors),
		logger.Deep(deep),
		logger.DurationMs(logger.Duration(start)))
	return &report, nil
}

// resourceDue reports whether the resource's shortest level check frequency
// has elapsed since its last check. Never-checked resources and resources
// whose levels carry no positive frequency are always due.
func (m *Manager) resourceDue(ctx context.Context, r *catalog.Resource, now time.Time) (bool, error) {
	if r.LastCheckedAt.IsZero() {
		return true, nil
	}

	shortest := 0
	for _, name := range r.LevelNames() {
		l, err := m.LevelByName(ctx, name)
		if err != nil {
			return false, err
		}
		if l.Frequency <= 0 {
			return true, nil
		}
		if shortest == 0 || l.Frequency < shortest {
			shortest = l.Frequency
		}
	}
	if shortest == 0 {
		return true, nil
	}
	return now.Sub(r.LastCheckedAt) >= time.Duration(shortest)*time.Second, nil
}

// checkResource verifies one resource across the canonical adapter and every
// adapter its levels list.
func (m *Manager) checkResource(ctx context.Context, resourceUUID string, deep, repair bool) ([]CheckResult, []error) {
	var (
		results []CheckResult
		errs    []error
	)

	// The canonical copy first. Replicas are only trustworthy repair sources
	// once the canonical copy itself is known good.
	canonicalResult := CheckResult{Resource: resourceUUID, Adapter: m.canonicalID}
	if deep && repair {
		restored, err := m.RestoreCanonicalCopy(ctx, resourceUUID)
		switch {
		case err != nil:
			canonicalResult.State = StateMismatch
			errs = append(errs, err)
		case restored:
			canonicalResult.State = StateMismatch
			canonicalResult.Repaired = true
		default:
			canonicalResult.State = StateGood
		}
	} else {
		state, err := m.verifyCanonical(ctx, resourceUUID, deep)
		canonicalResult.State = state
		if err != nil {
			errs = append(errs, err)
		}
	}
	results = append(results, canonicalResult)

	r, err := m.cat.GetResource(ctx, resourceUUID)
	if err != nil {
		return results, append(errs, err)
	}
	targets, err := m.adaptersForResource(ctx, r)
	if err != nil {
		return results, append(errs, err)
	}

	for _, a := range targets {
		if a.ID() == m.canonicalID {
			continue
		}
		res, err := m.CheckSingleResourceSingleAdapter(ctx, resourceUUID, a.ID(), deep, repair)
		if err != nil {
			errs = append(errs, err)
		}
		results = append(results, res)
	}
	return results, errs
}

// verifyCanonical checks the canonical copy without repairing it. Shallow
// compares the canonical copy row against the resource checksum; deep
// re-hashes the canonical adapter's bytes.
func (m *Manager) verifyCanonical(ctx context.Context, resourceUUID string, deep bool) (CopyState, error) {
	r, err := m.cat.GetResource(ctx, resourceUUID)
	if err != nil {
		return StateAbsent, err
	}

	if !deep {
		c, err := m.cat.GetCanonicalCopy(ctx, resourceUUID)
		if err != nil {
			if errors.Is(err, catalog.ErrCopyNotFound) {
				return StateAbsent, nil
			}
			return StateAbsent, err
		}
		if c.Checksum != r.Checksum {
			return StateMismatch, nil
		}
		return StateGood, nil
	}

	canonical, err := m.Canonical(ctx)
	if err != nil {
		return StateAbsent, err
	}
	actual, err := canonical.ActualChecksum(ctx, resourceUUID)
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
