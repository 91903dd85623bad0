package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/adapter/local"
	"github.com/libreary/libreary/pkg/catalog"
)

type fixture struct {
	cat       *catalog.Store
	canonical adapter.Adapter
	ingester  *Ingester
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.Open(&catalog.Config{
		Type:   catalog.DatabaseTypeSQLite,
		SQLite: catalog.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	canonical, err := local.New(t.Context(), adapter.Config{
		ID:         "local1",
		Type:       "local",
		StorageDir: filepath.Join(t.TempDir(), "storage"),
		OutputDir:  filepath.Join(t.TempDir(), "output"),
	}, cat)
	require.NoError(t, err)

	level := &catalog.Level{Name: "low", Frequency: 3600, Copies: 1}
	require.NoError(t, level.SetAdapterRefs([]catalog.AdapterRef{{ID: "local1", Type: "local"}}))
	require.NoError(t, cat.AddLevel(t.Context(), level))

	return &fixture{cat: cat, canonical: canonical, ingester: New(cat, canonical)}
}

func stageFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestIngest(t *testing.T) {
	ctx := t.Context()
	fx := newFixture(t)

	t.Run("happy path", func(t *testing.T) {
		staged := stageFile(t, "thesis.pdf", "thesis bytes")

		id, err := fx.ingester.Ingest(ctx, staged, []string{"low"}, "doctoral thesis", false)
		require.NoError(t, err)
		require.NoError(t, uuid.Validate(id))

		r, err := fx.cat.GetResource(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "thesis.pdf", r.Filename)
		assert.Equal(t, "doctoral thesis", r.Description)
		assert.Equal(t, []string{"low"}, r.LevelNames())
		assert.NotEqual(t, "pending", r.CanonicalLocator)
		assert.FileExists(t, r.CanonicalLocator)

		canonical, err := fx.cat.GetCanonicalCopy(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, r.Checksum, canonical.Checksum)
		assert.Equal(t, r.CanonicalLocator, canonical.Locator)

		// staged file kept
		assert.FileExists(t, staged)
	})

	t.Run("delete after store", func(t *testing.T) {
		staged := stageFile(t, "scan.tiff", "scan bytes")

		id, err := fx.ingester.Ingest(ctx, staged, []string{"low"}, "", true)
		require.NoError(t, err)
		assert.NoFileExists(t, staged)

		r, err := fx.cat.GetResource(ctx, id)
		require.NoError(t, err)
		assert.FileExists(t, r.CanonicalLocator)
	})

	t.Run("unknown level", func(t *testing.T) {
		staged := stageFile(t, "x.bin", "x")
		_, err := fx.ingester.Ingest(ctx, staged, []string{"platinum"}, "", false)
		assert.True(t, adapter.IsConfigurationError(err))
	})

	t.Run("no levels", func(t *testing.T) {
		staged := stageFile(t, "y.bin", "y")
		_, err := fx.ingester.Ingest(ctx, staged, nil, "", false)
		assert.True(t, adapter.IsConfigurationError(err))
	})

	t.Run("missing staged file", func(t *testing.T) {
		_, err := fx.ingester.Ingest(ctx, filepath.Join(t.TempDir(), "ghost"), []string{"low"}, "", false)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("same content twice gets distinct identities", func(t *testing.T) {
		a := stageFile(t, "dup.bin", "same bytes")
		b := stageFile(t, "dup.bin", "same bytes")

		id1, err := fx.ingester.Ingest(ctx, a, []string{"low"}, "", false)
		require.NoError(t, err)
		id2, err := fx.ingester.Ingest(ctx, b, []string{"low"}, "", false)
		require.NoError(t, err)
		assert.NotEqual(t, id1, id2)
	})
}

func TestDeleteResource(t *testing.T) {
	ctx := t.Context()
	fx := newFixture(t)

	staged := stageFile(t, "victim.dat", "soon gone")
	id, err := fx.ingester.Ingest(ctx, staged, []string{"low"}, "", false)
	require.NoError(t, err)
	require.NoError(t, fx.cat.SetObjectMetadata(ctx, id, "author", "Ada"))

	r, err := fx.cat.GetResource(ctx, id)
	require.NoError(t, err)

	require.NoError(t, fx.ingester.DeleteResource(ctx, id))

	assert.NoFileExists(t, r.CanonicalLocator)

	_, err = fx.cat.GetResource(ctx, id)
	assert.ErrorIs(t, err, catalog.ErrResourceNotFound)

	entries, err := fx.cat.GetObjectMetadata(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, entries)

	t.Run("unknown resource", func(t *testing.T) {
		err := fx.ingester.DeleteResource(ctx, "no-such-uuid")
		assert.True(t, adapter.IsNotIngested(err))
	})

	t.Run("drifted canonical copy blocks delete", func(t *testing.T) {
		staged := stageFile(t, "keeper.dat", "precious bytes")
		id, err := fx.ingester.Ingest(ctx, staged, []string{"low"}, "", false)
		require.NoError(t, err)

		r, err := fx.cat.GetResource(ctx, id)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(r.CanonicalLocator, []byte("rotten"), 0644))

		err = fx.ingester.DeleteResource(ctx, id)
		assert.True(t, adapter.IsChecksumMismatch(err))

		// Nothing was destroyed: the row, the metadata table, and the
		// (damaged) canonical file are all still there.
		_, err = fx.cat.GetResource(ctx, id)
		require.NoError(t, err)
		assert.FileExists(t, r.CanonicalLocator)
	})

	t.Run("missing canonical copy does not block delete", func(t *testing.T) {
		staged := stageFile(t, "gone.dat", "already lost")
		id, err := fx.ingester.Ingest(ctx, staged, []string{"low"}, "", false)
		require.NoError(t, err)

		r, err := fx.cat.GetResource(ctx, id)
		require.NoError(t, err)
		require.NoError(t, os.Remove(r.CanonicalLocator))

		require.NoError(t, fx.ingester.DeleteResource(ctx, id))
		_, err = fx.cat.GetResource(ctx, id)
		assert.ErrorIs(t, err, catalog.ErrResourceNotFound)
	})
}
