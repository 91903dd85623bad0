package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/adapter/local"
	"github.com/libreary/libreary/pkg/adapter/memory"
	"github.com/libreary/libreary/pkg/catalog"
	"github.com/libreary/libreary/pkg/config"
	"github.com/libreary/libreary/pkg/manager"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()

	cfg := &config.Config{
		Catalog: catalog.Config{
			Type:   catalog.DatabaseTypeSQLite,
			SQLite: catalog.SQLiteConfig{Path: ":memory:"},
		},
		CanonicalAdapter: "local1",
		DropboxDir:       t.TempDir(),
		OutputDir:        t.TempDir(),
		Adapters: []adapter.Config{
			{
				ID: "local1", Type: local.AdapterType,
				StorageDir: filepath.Join(t.TempDir(), "canonical"),
				OutputDir:  filepath.Join(t.TempDir(), "out1"),
			},
			{
				ID: "mem1", Type: memory.AdapterType,
				OutputDir: filepath.Join(t.TempDir(), "out2"),
			},
		},
		Levels: []config.LevelConfig{
			{
				Name:      "LOW",
				Frequency: time.Hour,
				Copies:    1,
				Adapters:  []config.LevelAdapterRef{{ID: "mem1", Type: memory.AdapterType}},
			},
		},
		Scheduler: config.SchedulerConfig{Workers: 2},
	}

	a, err := Open(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func stageFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "object.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (a *Archive) memAdapter(t *testing.T) *memory.Adapter {
	t.Helper()
	ad, err := a.mgr.AdapterByID(t.Context(), "mem1", "")
	require.NoError(t, err)
	return ad.(*memory.Adapter)
}

func TestIngestRetrieveDelete(t *testing.T) {
	ctx := t.Context()
	a := newTestArchive(t)

	staged := stageFile(t, "archive me")
	id, err := a.Ingest(ctx, IngestRequest{Path: staged, Levels: []string{"LOW"}, Description: "a test object"})
	require.NoError(t, err)
	require.NoError(t, uuid.Validate(id))

	t.Run("copies recorded", func(t *testing.T) {
		copies, err := a.cat.ListCopies(ctx, id)
		require.NoError(t, err)
		assert.Len(t, copies, 2) // canonical + mem1
	})

	t.Run("retrieve", func(t *testing.T) {
		out, err := a.Retrieve(ctx, id)
		require.NoError(t, err)
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "archive me", string(data))
	})

	t.Run("resource info", func(t *testing.T) {
		r, err := a.GetResourceInfo(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "object.txt", r.Filename)
		assert.Equal(t, "a test object", r.Description)
		assert.Equal(t, []string{"LOW"}, r.LevelNames())
	})

	t.Run("unknown level rejected", func(t *testing.T) {
		_, err := a.Ingest(ctx, IngestRequest{Path: staged, Levels: []string{"NO_SUCH"}})
		assert.True(t, adapter.IsConfigurationError(err))
	})

	t.Run("delete removes everything", func(t *testing.T) {
		require.NoError(t, a.Delete(ctx, id))

		_, err := a.GetResourceInfo(ctx, id)
		assert.True(t, adapter.IsNotIngested(err))

		copies, err := a.cat.ListCopies(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, copies)
	})

	t.Run("delete unknown resource", func(t *testing.T) {
		err := a.Delete(ctx, "no-such-uuid")
		assert.True(t, adapter.IsNotIngested(err))
	})
}

func TestDeleteRefusesDriftedCanonical(t *testing.T) {
	ctx := t.Context()
	a := newTestArchive(t)

	id, err := a.Ingest(ctx, IngestRequest{Path: stageFile(t, "keep me honest"), Levels: []string{"LOW"}})
	require.NoError(t, err)
	r, err := a.GetResourceInfo(ctx, id)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(r.CanonicalLocator, []byte("rotten"), 0644))

	err = a.Delete(ctx, id)
	assert.True(t, adapter.IsChecksumMismatch(err))

	// Nothing was withdrawn: the replica is the repair source.
	copies, err := a.cat.ListCopies(ctx, id)
	require.NoError(t, err)
	assert.Len(t, copies, 2)
	_, err = a.GetResourceInfo(ctx, id)
	require.NoError(t, err)

	t.Run("delete succeeds after repair", func(t *testing.T) {
		restored, err := a.mgr.RestoreCanonicalCopy(ctx, id)
		require.NoError(t, err)
		assert.True(t, restored)
		require.NoError(t, a.Delete(ctx, id))
		_, err = a.GetResourceInfo(ctx, id)
		assert.True(t, adapter.IsNotIngested(err))
	})
}

func TestIngestFromDropbox(t *testing.T) {
	ctx := t.Context()
	a := newTestArchive(t)

	require.NoError(t, os.WriteFile(filepath.Join(a.cfg.DropboxDir, "dropped.txt"), []byte("from the dropbox"), 0644))

	id, err := a.Ingest(ctx, IngestRequest{Path: "dropped.txt", Levels: []string{"LOW"}})
	require.NoError(t, err)

	out, err := a.Retrieve(ctx, id)
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "from the dropbox", string(data))

	t.Run("missing everywhere still fails", func(t *testing.T) {
		_, err := a.Ingest(ctx, IngestRequest{Path: "nowhere.txt", Levels: []string{"LOW"}})
		assert.Error(t, err)
	})
}

func TestCompareCopies(t *testing.T) {
	ctx := t.Context()
	a := newTestArchive(t)

	id, err := a.Ingest(ctx, IngestRequest{Path: stageFile(t, "compare me"), Levels: []string{"LOW"}})
	require.NoError(t, err)

	t.Run("agree after ingest", func(t *testing.T) {
		for _, deep := range []bool{false, true} {
			same, err := a.CompareCopies(ctx, id, "local1", "mem1", deep)
			require.NoError(t, err)
			assert.True(t, same)
		}
	})

	t.Run("deep sees backend rot", func(t *testing.T) {
		c, err := a.cat.GetCopy(ctx, id, "mem1")
		require.NoError(t, err)
		require.True(t, a.memAdapter(t).Corrupt(c.Locator))

		same, err := a.CompareCopies(ctx, id, "local1", "mem1", true)
		require.NoError(t, err)
		assert.False(t, same)

		// The copy rows never changed, so the shallow view still agrees.
		same, err = a.CompareCopies(ctx, id, "local1", "mem1", false)
		require.NoError(t, err)
		assert.True(t, same)
	})

	t.Run("unknown resource", func(t *testing.T) {
		_, err := a.CompareCopies(ctx, "no-such-uuid", "local1", "mem1", false)
		assert.True(t, adapter.IsNotIngested(err))
	})
}

func TestUpdate(t *testing.T) {
	ctx := t.Context()
	a := newTestArchive(t)

	id, err := a.Ingest(ctx, IngestRequest{Path: stageFile(t, "version one"), Levels: []string{"LOW"}})
	require.NoError(t, err)
	before, err := a.GetResourceInfo(ctx, id)
	require.NoError(t, err)

	require.NoError(t, a.Update(ctx, id, stageFile(t, "version two")))

	after, err := a.GetResourceInfo(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, before.Checksum, after.Checksum)

	out, err := a.Retrieve(ctx, id)
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "version two", string(data))

	copies, err := a.cat.ListCopies(ctx, id)
	require.NoError(t, err)
	assert.Len(t, copies, 2)
	for _, c := range copies {
		assert.Equal(t, after.Checksum, c.Checksum)
	}

	t.Run("unknown resource", func(t *testing.T) {
		err := a.Update(ctx, "no-such-uuid", stageFile(t, "x"))
		assert.True(t, adapter.IsNotIngested(err))
	})
}

func TestSearch(t *testing.T) {
	ctx := t.Context()
	a := newTestArchive(t)

	first, err := a.Ingest(ctx, IngestRequest{Path: stageFile(t, "alpha"), Levels: []string{"LOW"}, Description: "annual report"})
	require.NoError(t, err)
	_, err = a.Ingest(ctx, IngestRequest{Path: stageFile(t, "beta"), Levels: []string{"LOW"}, Description: "holiday photos"})
	require.NoError(t, err)

	results, err := a.Search(ctx, "report")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, first, results[0].UUID)

	all, err := a.ListResources(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLevelManagement(t *testing.T) {
	ctx := t.Context()
	a := newTestArchive(t)

	require.NoError(t, a.AddLevel(ctx, "HIGH", 3600, 1, []catalog.AdapterRef{
		{ID: "mem1", Type: memory.AdapterType},
		{ID: "local1", Type: local.AdapterType},
	}))

	levels, err := a.ListLevels(ctx)
	require.NoError(t, err)
	assert.Len(t, levels, 2) // LOW seeded from config, plus HIGH

	id, err := a.Ingest(ctx, IngestRequest{Path: stageFile(t, "leveled"), Levels: []string{"LOW"}})
	require.NoError(t, err)

	require.NoError(t, a.ChangeLevel(ctx, id, []string{"HIGH"}))
	r, err := a.GetResourceInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"HIGH"}, r.LevelNames())

	t.Run("delete level strips assignments", func(t *testing.T) {
		require.NoError(t, a.DeleteLevel(ctx, "HIGH"))
		r, err := a.GetResourceInfo(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, r.LevelNames())
	})

	t.Run("level without adapters rejected", func(t *testing.T) {
		err := a.AddLevel(ctx, "EMPTY", 60, 1, nil)
		assert.True(t, adapter.IsConfigurationError(err))
	})
}

func TestCheckAndRepairThroughFacade(t *testing.T) {
	ctx := t.Context()
	a := newTestArchive(t)

	id, err := a.Ingest(ctx, IngestRequest{Path: stageFile(t, "verify me"), Levels: []string{"LOW"}})
	require.NoError(t, err)

	mem := a.memAdapter(t)
	c, err := a.cat.GetCopy(ctx, id, "mem1")
	require.NoError(t, err)
	require.True(t, mem.Corrupt(c.Locator))

	t.Run("single resource check repairs", func(t *testing.T) {
		results, err := a.CheckSingleResource(ctx, id, true, true)
		require.NoError(t, err)
		require.Len(t, results, 2) // canonical + mem1

		var repaired bool
		for _, res := range results {
			if res.Adapter == "mem1" {
				assert.Equal(t, manager.StateMismatch, res.State)
				repaired = res.Repaired
			}
		}
		assert.True(t, repaired)
	})

	t.Run("full sweep is clean afterwards", func(t *testing.T) {
		report, err := a.RunCheck(ctx, true, false)
		require.NoError(t, err)
		assert.Equal(t, 1, report.ResourcesChecked)
		assert.Zero(t, report.Mismatched)
		assert.Zero(t, report.Missing)
		assert.Empty(t, report.Errors)
	})

	t.Run("adapter probe", func(t *testing.T) {
		require.NoError(t, a.VerifyAdapter(ctx, "mem1"))
	})
}

func TestObjectMetadata(t *testing.T) {
	ctx := t.Context()
	a := newTestArchive(t)

	id, err := a.Ingest(ctx, IngestRequest{Path: stageFile(t, "tagged"), Levels: []string{"LOW"}})
	require.NoError(t, err)

	require.NoError(t, a.SetObjectMetadata(ctx, id, "author", "m. lastname"))
	require.NoError(t, a.SetObjectMetadata(ctx, id, "year", "2026"))

	entries, err := a.GetObjectMetadata(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "author", entries[0].Key)

	t.Run("metadata on unknown resource", func(t *testing.T) {
		err := a.SetObjectMetadata(ctx, "no-such-uuid", "k", "v")
		assert.True(t, adapter.IsNotIngested(err))
	})

	t.Run("deleted with the resource", func(t *testing.T) {
		require.NoError(t, a.Delete(ctx, id))
		entries, err := a.GetObjectMetadata(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestIngestWithMetadata(t *testing.T) {
	ctx := t.Context()
	a := newTestArchive(t)

	schema := `{"type":"object","properties":{"author":{"type":"string"}}}`
	id, err := a.Ingest(ctx, IngestRequest{
		Path:           stageFile(t, "described"),
		Levels:         []string{"LOW"},
		MetadataSchema: schema,
		Metadata:       map[string]string{"author": "m. lastname", "year": "2026"},
	})
	require.NoError(t, err)

	entries, err := a.GetObjectMetadata(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "author", entries[0].Key)
	assert.Equal(t, "m. lastname", entries[0].Value)

	got, err := a.GetObjectSchema(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, schema, got.SchemaJSON)

	t.Run("schema can be replaced later", func(t *testing.T) {
		require.NoError(t, a.SetObjectSchema(ctx, id, `{"type":"object"}`))
		got, err := a.GetObjectSchema(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, `{"type":"object"}`, got.SchemaJSON)
	})

	t.Run("schema on unknown resource", func(t *testing.T) {
		err := a.SetObjectSchema(ctx, "no-such-uuid", `{}`)
		assert.True(t, adapter.IsNotIngested(err))
	})

	t.Run("no schema recorded", func(t *testing.T) {
		plain, err := a.Ingest(ctx, IngestRequest{Path: stageFile(t, "bare"), Levels: []string{"LOW"}})
		require.NoError(t, err)
		_, err = a.GetObjectSchema(ctx, plain)
		assert.ErrorIs(t, err, catalog.ErrSchemaNotFound)
	})
}
