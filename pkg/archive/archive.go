// Package archive is the front door of the system. It composes the catalog,
// the adapter manager, and the ingester into one handle that the CLI, the
// HTTP API, and the scheduler all share.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/libreary/libreary/internal/logger"
	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/catalog"
	"github.com/libreary/libreary/pkg/config"
	"github.com/libreary/libreary/pkg/ingest"
	"github.com/libreary/libreary/pkg/manager"
	"github.com/libreary/libreary/pkg/metrics"
)

// Archive owns the catalog connection and the adapter fleet.
type Archive struct {
	cfg *config.Config
	cat *catalog.Store
	mgr *manager.Manager
	ing *ingest.Ingester
	am  *metrics.ArchiveMetrics
}

// Open builds a ready archive from configuration: catalog connection, level
// seeding, adapter instantiation, ingester.
func Open(ctx context.Context, cfg *config.Config) (*Archive, error) {
	cat, err := catalog.Open(&cfg.Catalog)
	if err != nil {
		return nil, err
	}

	var am *metrics.ArchiveMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		am = metrics.NewArchiveMetrics()
	}

	mgr := manager.New(cat, cfg, cfg.CanonicalAdapter,
		manager.WithWorkers(cfg.Scheduler.Workers),
		manager.WithMetrics(am),
	)

	a := &Archive{cfg: cfg, cat: cat, mgr: mgr, am: am}
	if err := a.seedLevels(ctx); err != nil {
		_ = cat.Close()
		return nil, err
	}
	if err := mgr.ReloadLevelsAdapters(ctx); err != nil {
		_ = cat.Close()
		return nil, err
	}

	canonical, err := mgr.Canonical(ctx)
	if err != nil {
		_ = cat.Close()
		return nil, err
	}
	a.ing = ingest.New(cat, canonical)
	return a, nil
}

// Close releases the catalog connection.
func (a *Archive) Close() error {
	return a.cat.Close()
}

// Catalog exposes the metadata catalog.
func (a *Archive) Catalog() *catalog.Store { return a.cat }

// Manager exposes the replication and integrity engine.
func (a *Archive) Manager() *manager.Manager { return a.mgr }

// Config exposes the loaded configuration.
func (a *Archive) Config() *config.Config { return a.cfg }

// seedLevels records configured levels that the catalog does not know yet.
// Levels already in the catalog win; operators change them with the level
// commands, not by editing configuration.
func (a *Archive) seedLevels(ctx context.Context) error {
	for _, lc := range a.cfg.Levels {
		if _, err := a.cat.GetLevel(ctx, lc.Name); err == nil {
			continue
		} else if !errors.Is(err, catalog.ErrLevelNotFound) {
			return err
		}

		l := &catalog.Level{
			Name:      lc.Name,
			Frequency: int(lc.Frequency.Seconds()),
			Copies:    lc.Copies,
		}
		refs := make([]catalog.AdapterRef, 0, len(lc.Adapters))
		for _, ref := range lc.Adapters {
			refs = append(refs, catalog.AdapterRef{ID: ref.ID, Type: ref.Type})
		}
		if err := l.SetAdapterRefs(refs); err != nil {
			return err
		}
		if err := a.cat.AddLevel(ctx, l); err != nil {
			return err
		}
		logger.Info("Level seeded from configuration", logger.LevelName(lc.Name))
	}
	return nil
}

// opContext tags the context for the *Ctx logging helpers. A request-scoped
// LogContext installed by the API middleware is preserved and enriched.
func opContext(ctx context.Context, operation, resourceUUID string) context.Context {
	lc := logger.FromContext(ctx)
	if lc == nil {
		lc = logger.NewLogContext(operation)
	} else {
		lc = lc.Clone()
		lc.Operation = operation
	}
	lc.Resource = resourceUUID
	return logger.WithContext(ctx, lc)
}

// IngestRequest describes one staged file to bring into the archive. Path may
// be a bare filename; when it does not exist as given it is resolved against
// the configured dropbox directory. MetadataSchema is a JSON document
// describing the Metadata pairs; both are recorded on the new resource before
// replication fans out.
type IngestRequest struct {
	Path             string
	Levels           []string
	Description      string
	DeleteAfterStore bool
	MetadataSchema   string
	Metadata         map[string]string
}

// Ingest brings a staged file into the archive and replicates it to every
// adapter its levels list. Returns the new resource UUID.
func (a *Archive) Ingest(ctx context.Context, req IngestRequest) (string, error) {
	ctx = opContext(ctx, "ingest", "")
	path := a.resolveStagedPath(req.Path)
	id, err := a.ing.Ingest(ctx, path, req.Levels, req.Description, req.DeleteAfterStore)
	if err != nil {
		return "", err
	}
	a.am.RecordIngest()

	ctx = opContext(ctx, "ingest", id)
	if req.MetadataSchema != "" {
		if err := a.cat.SetObjectSchema(ctx, id, req.MetadataSchema); err != nil {
			return id, err
		}
	}
	for key, value := range req.Metadata {
		if err := a.cat.SetObjectMetadata(ctx, id, key, value); err != nil {
			return id, err
		}
	}

	if err := a.mgr.SendResourceToAdapters(ctx, id); err != nil {
		// The resource is safe in the canonical copy; replication retries on
		// the next sweep.
		logger.WarnCtx(ctx, "Initial replication incomplete", logger.Err(err))
	}
	return id, nil
}

// resolveStagedPath maps a bare staged filename to the dropbox directory.
// Paths that exist as given, and absolute paths, pass through untouched.
func (a *Archive) resolveStagedPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	candidate := filepath.Join(a.cfg.DropboxDir, path)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}

// Retrieve materializes the resource into the output directory and returns
// the path, preferring the canonical copy.
func (a *Archive) Retrieve(ctx context.Context, resourceUUID string) (string, error) {
	return a.mgr.RetrieveByPreference(opContext(ctx, "retrieve", resourceUUID), resourceUUID)
}

// Delete removes a resource everywhere: replicas, canonical copy, user
// metadata, catalog row. A drifted canonical copy fails the delete with
// ChecksumMismatch before any replica is withdrawn, since the replicas are
// the repair sources a restoration would need.
func (a *Archive) Delete(ctx context.Context, resourceUUID string) error {
	ctx = opContext(ctx, "delete", resourceUUID)
	if err := a.ing.VerifyCanonical(ctx, resourceUUID); err != nil {
		return err
	}
	if err := a.mgr.DeleteResourceFromAdapters(ctx, resourceUUID); err != nil {
		return err
	}
	return a.ing.DeleteResource(ctx, resourceUUID)
}

// Update replaces a resource's content with the staged file at path, keeping
// its UUID, levels, and description. Old copies are withdrawn, the canonical
// copy is rewritten, and replication fans the new bytes back out.
func (a *Archive) Update(ctx context.Context, resourceUUID, path string) error {
	ctx = opContext(ctx, "update", resourceUUID)
	r, err := a.cat.GetResource(ctx, resourceUUID)
	if err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return adapter.NewNotIngestedError(resourceUUID)
		}
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("staged file is not readable: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("staged path %s is a directory", path)
	}
	checksum, err := adapter.FileSHA1(path)
	if err != nil {
		return err
	}

	canonical, err := a.mgr.Canonical(ctx)
	if err != nil {
		return err
	}

	if err := a.mgr.DeleteResourceFromAdapters(ctx, resourceUUID); err != nil {
		return err
	}
	if err := canonical.DeleteCanonical(ctx, resourceUUID); err != nil {
		return err
	}

	filename := filepath.Base(path)
	locator, err := canonical.StoreCanonical(ctx, path, resourceUUID, checksum, filename)
	if err != nil {
		return err
	}
	if err := a.cat.UpdateResourceContent(ctx, resourceUUID, checksum, locator); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "Resource content updated",
		logger.Checksum(checksum),
		logger.Filename(r.Filename))

	if err := a.mgr.SendResourceToAdapters(ctx, resourceUUID); err != nil {
		logger.WarnCtx(ctx, "Replication after update incomplete", logger.Err(err))
	}
	return nil
}

// ChangeLevel moves a resource to a new level assignment.
func (a *Archive) ChangeLevel(ctx context.Context, resourceUUID string, levels []string) error {
	return a.mgr.ChangeResourceLevel(ctx, resourceUUID, levels)
}

// ListResources returns every resource in the catalog.
func (a *Archive) ListResources(ctx context.Context) ([]*catalog.Resource, error) {
	return a.cat.ListResources(ctx)
}

// Search finds resources whose filename, locator, UUID, or description
// matches the term.
func (a *Archive) Search(ctx context.Context, term string) ([]*catalog.Resource, error) {
	return a.cat.Search(ctx, term)
}

// GetResourceInfo returns the catalog row for one resource.
func (a *Archive) GetResourceInfo(ctx context.Context, resourceUUID string) (*catalog.Resource, error) {
	r, err := a.cat.GetResource(ctx, resourceUUID)
	if err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return nil, adapter.NewNotIngestedError(resourceUUID)
		}
		return nil, err
	}
	return r, nil
}

// SummarizeCopies lists every recorded copy of a resource with its checksum
// agreement.
func (a *Archive) SummarizeCopies(ctx context.Context, resourceUUID string) ([]manager.CopyStatus, error) {
	return a.mgr.SummarizeCopies(ctx, resourceUUID)
}

// CompareCopies reports whether two adapters hold the same bytes of a
// resource. Deep re-hashes each backend's bytes instead of trusting the
// recorded copy rows.
func (a *Archive) CompareCopies(ctx context.Context, resourceUUID, adapterA, adapterB string, deep bool) (bool, error) {
	return a.mgr.CompareCopies(ctx, resourceUUID, adapterA, adapterB, deep)
}

// RunCheck sweeps the whole catalog.
func (a *Archive) RunCheck(ctx context.Context, deep, repair bool) (*manager.Report, error) {
	return a.mgr.CheckAll(ctx, deep, repair)
}

// CheckDue sweeps only the resources whose level check frequency has elapsed.
// The scheduler drives this.
func (a *Archive) CheckDue(ctx context.Context, deep, repair bool) (*manager.Report, error) {
	return a.mgr.CheckDue(ctx, deep, repair)
}

// CheckSingleResource verifies one resource across the canonical adapter and
// every adapter its levels list.
func (a *Archive) CheckSingleResource(ctx context.Context, resourceUUID string, deep, repair bool) ([]manager.CheckResult, error) {
	r, err := a.cat.GetResource(ctx, resourceUUID)
	if err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return nil, adapter.NewNotIngestedError(resourceUUID)
		}
		return nil, err
	}

	var results []manager.CheckResult
	if deep && repair {
		restored, err := a.mgr.RestoreCanonicalCopy(ctx, resourceUUID)
		if err != nil {
			return results, err
		}
		cr := manager.CheckResult{Resource: resourceUUID, Adapter: a.cfg.CanonicalAdapter, State: manager.StateGood}
		if restored {
			cr.State = manager.StateMismatch
			cr.Repaired = true
		}
		results = append(results, cr)
	}

	seen := map[string]bool{a.cfg.CanonicalAdapter: true}
	for _, name := range r.LevelNames() {
		l, err := a.mgr.LevelByName(ctx, name)
		if err != nil {
			return results, err
		}
		refs, err := l.AdapterRefs()
		if err != nil {
			return results, err
		}
		for _, ref := range refs {
			if seen[ref.ID] {
				continue
			}
			seen[ref.ID] = true
			res, err := a.mgr.CheckSingleResourceSingleAdapter(ctx, resourceUUID, ref.ID, deep, repair)
			if err != nil {
				return results, err
			}
			results = append(results, res)
		}
	}
	return results, nil
}

// VerifyAdapter runs a synthetic store/retrieve/delete probe through one
// adapter.
func (a *Archive) VerifyAdapter(ctx context.Context, adapterID string) error {
	return a.mgr.VerifyAdapter(ctx, adapterID)
}

// AddLevel records a new durability level and instantiates its adapters.
func (a *Archive) AddLevel(ctx context.Context, name string, frequency, copies int, adapters []catalog.AdapterRef) error {
	if name == "" {
		return adapter.NewConfigurationError("a level needs a name")
	}
	if len(adapters) == 0 {
		return adapter.NewConfigurationError("a level needs at least one adapter")
	}
	l := &catalog.Level{Name: name, Frequency: frequency, Copies: copies}
	if l.Copies < 1 {
		l.Copies = 1
	}
	if err := l.SetAdapterRefs(adapters); err != nil {
		return err
	}
	if err := a.cat.AddLevel(ctx, l); err != nil {
		return err
	}
	return a.mgr.ReloadLevelsAdapters(ctx)
}

// ListLevels returns every durability level.
func (a *Archive) ListLevels(ctx context.Context) ([]*catalog.Level, error) {
	return a.cat.ListLevels(ctx)
}

// DeleteLevel removes a level definition and strips it from every resource
// that carries it. Copies already stored stay where they are.
func (a *Archive) DeleteLevel(ctx context.Context, name string) error {
	if err := a.cat.DeleteLevel(ctx, name); err != nil {
		return err
	}
	return a.mgr.ReloadLevelsAdapters(ctx)
}

// SetObjectMetadata stores one key/value pair of user metadata on a resource.
func (a *Archive) SetObjectMetadata(ctx context.Context, resourceUUID, key, value string) error {
	if _, err := a.GetResourceInfo(ctx, resourceUUID); err != nil {
		return err
	}
	return a.cat.SetObjectMetadata(ctx, resourceUUID, key, value)
}

// GetObjectMetadata returns the user metadata recorded for a resource.
func (a *Archive) GetObjectMetadata(ctx context.Context, resourceUUID string) ([]*catalog.ObjectMetadata, error) {
	return a.cat.GetObjectMetadata(ctx, resourceUUID)
}

// SetObjectSchema stores or replaces the metadata schema of a resource.
func (a *Archive) SetObjectSchema(ctx context.Context, resourceUUID, schemaJSON string) error {
	if _, err := a.GetResourceInfo(ctx, resourceUUID); err != nil {
		return err
	}
	return a.cat.SetObjectSchema(ctx, resourceUUID, schemaJSON)
}

// GetObjectSchema returns the metadata schema recorded for a resource.
func (a *Archive) GetObjectSchema(ctx context.Context, resourceUUID string) (*catalog.ObjectSchema, error) {
	return a.cat.GetObjectSchema(ctx, resourceUUID)
}
