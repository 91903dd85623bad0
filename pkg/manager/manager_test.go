package manager

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/adapter/local"
	"github.com/libreary/libreary/pkg/adapter/memory"
	"github.com/libreary/libreary/pkg/catalog"
)

// mapProvider resolves adapter configs from a fixed map.
type mapProvider struct {
	configs map[string]adapter.Config
}

func (p *mapProvider) ConfigForAdapter(id, adapterType string) (adapter.Config, error) {
	cfg, ok := p.configs[id]
	if !ok {
		return adapter.Config{}, adapter.NewConfigurationError(fmt.Sprintf("unknown adapter %q", id))
	}
	return cfg, nil
}

type testEnv struct {
	cat *catalog.Store
	mgr *Manager
}

// newTestEnv wires a catalog, three adapters (local1 canonical, local2 and
// mem1 as replicas) and a DEFAULT level covering the replicas.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := t.Context()

	cat, err := catalog.Open(&catalog.Config{
		Type:   catalog.DatabaseTypeSQLite,
		SQLite: catalog.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	provider := &mapProvider{configs: map[string]adapter.Config{
		"local1": {
			ID: "local1", Type: local.AdapterType,
			StorageDir: filepath.Join(t.TempDir(), "local1"),
			OutputDir:  filepath.Join(t.TempDir(), "out1"),
		},
		"local2": {
			ID: "local2", Type: local.AdapterType,
			StorageDir: filepath.Join(t.TempDir(), "local2"),
			OutputDir:  filepath.Join(t.TempDir(), "out2"),
		},
		"mem1": {
			ID: "mem1", Type: memory.AdapterType,
			OutputDir: filepath.Join(t.TempDir(), "out3"),
		},
	}}

	level := &catalog.Level{Name: "DEFAULT", Frequency: 60, Copies: 1}
	require.NoError(t, level.SetAdapterRefs([]catalog.AdapterRef{
		{ID: "local2", Type: local.AdapterType},
		{ID: "mem1", Type: memory.AdapterType},
	}))
	require.NoError(t, cat.AddLevel(ctx, level))

	mgr := New(cat, provider, "local1", WithWorkers(2))
	require.NoError(t, mgr.ReloadLevelsAdapters(ctx))
	return &testEnv{cat: cat, mgr: mgr}
}

// stage ingests a resource the minimal way: resource row, canonical copy,
// content stamp.
func (e *testEnv) stage(t *testing.T, uuid, content string) *catalog.Resource {
	t.Helper()
	ctx := t.Context()

	staged := filepath.Join(t.TempDir(), "staged.txt")
	require.NoError(t, os.WriteFile(staged, []byte(content), 0644))
	sum, err := adapter.FileSHA1(staged)
	require.NoError(t, err)

	r := &catalog.Resource{UUID: uuid, Filename: "staged.txt", Checksum: sum}
	r.SetLevelNames([]string{"DEFAULT"})
	require.NoError(t, e.cat.AddResource(ctx, r))

	canonical, err := e.mgr.Canonical(ctx)
	require.NoError(t, err)
	locator, err := canonical.StoreCanonical(ctx, staged, uuid, sum, r.Filename)
	require.NoError(t, err)
	require.NoError(t, e.cat.UpdateResourceContent(ctx, uuid, sum, locator))
	r.CanonicalLocator = locator
	return r
}

func (e *testEnv) memAdapter(t *testing.T) *memory.Adapter {
	t.Helper()
	a, err := e.mgr.AdapterByID(t.Context(), "mem1", "")
	require.NoError(t, err)
	return a.(*memory.Adapter)
}

func TestSendResourceToAdapters(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	uuid := "11111111-1111-1111-1111-111111111111"
	env.stage(t, uuid, "replicate me")

	require.NoError(t, env.mgr.SendResourceToAdapters(ctx, uuid))

	copies, err := env.cat.ListCopies(ctx, uuid)
	require.NoError(t, err)
	assert.Len(t, copies, 3) // canonical + local2 + mem1

	t.Run("idempotent", func(t *testing.T) {
		require.NoError(t, env.mgr.SendResourceToAdapters(ctx, uuid))
		copies, err := env.cat.ListCopies(ctx, uuid)
		require.NoError(t, err)
		assert.Len(t, copies, 3)
	})

	t.Run("unknown resource", func(t *testing.T) {
		err := env.mgr.SendResourceToAdapters(ctx, "no-such-uuid")
		assert.True(t, adapter.IsNotIngested(err))
	})
}

func TestRetrieveByPreference(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	uuid := "22222222-2222-2222-2222-222222222222"
	r := env.stage(t, uuid, "retrieve me")
	require.NoError(t, env.mgr.SendResourceToAdapters(ctx, uuid))

	t.Run("canonical preferred", func(t *testing.T) {
		out, err := env.mgr.RetrieveByPreference(ctx, uuid)
		require.NoError(t, err)
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "retrieve me", string(data))
	})

	t.Run("corrupt canonical copy is restored during retrieval", func(t *testing.T) {
		require.NoError(t, os.WriteFile(r.CanonicalLocator, []byte("rotten"), 0644))

		out, err := env.mgr.RetrieveByPreference(ctx, uuid)
		require.NoError(t, err)
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "retrieve me", string(data))

		// The read repaired the canonical copy, not just dodged it.
		canonical, err := os.ReadFile(r.CanonicalLocator)
		require.NoError(t, err)
		assert.Equal(t, "retrieve me", string(canonical))
	})

	t.Run("fails when every copy is damaged", func(t *testing.T) {
		damaged := "99999999-9999-9999-9999-999999999999"
		dr := env.stage(t, damaged, "doomed")
		require.NoError(t, env.mgr.SendResourceToAdapters(ctx, damaged))

		require.NoError(t, os.WriteFile(dr.CanonicalLocator, []byte("bad"), 0644))
		mem := env.memAdapter(t)
		c, err := env.cat.GetCopy(ctx, damaged, "mem1")
		require.NoError(t, err)
		require.True(t, mem.Corrupt(c.Locator))
		c2, err := env.cat.GetCopy(ctx, damaged, "local2")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(c2.Locator, []byte("bad"), 0644))

		_, err = env.mgr.RetrieveByPreference(ctx, damaged)
		assert.True(t, adapter.IsNoCopy(err))
	})

	t.Run("unknown resource", func(t *testing.T) {
		_, err := env.mgr.RetrieveByPreference(ctx, "no-such-uuid")
		assert.True(t, adapter.IsNotIngested(err))
	})
}

func TestCheckAndRepair(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	uuid := "33333333-3333-3333-3333-333333333333"
	env.stage(t, uuid, "check me")
	require.NoError(t, env.mgr.SendResourceToAdapters(ctx, uuid))

	mem := env.memAdapter(t)

	t.Run("good copy", func(t *testing.T) {
		state, err := env.mgr.VerifyCopy(ctx, uuid, "mem1", true)
		require.NoError(t, err)
		assert.Equal(t, StateGood, state)
	})

	t.Run("corrupt copy detected and repaired", func(t *testing.T) {
		c, err := env.cat.GetCopy(ctx, uuid, "mem1")
		require.NoError(t, err)
		require.True(t, mem.Corrupt(c.Locator))

		state, err := env.mgr.VerifyCopy(ctx, uuid, "mem1", true)
		require.NoError(t, err)
		assert.Equal(t, StateMismatch, state)

		// Shallow check trusts the recorded checksum and misses the rot.
		state, err = env.mgr.VerifyCopy(ctx, uuid, "mem1", false)
		require.NoError(t, err)
		assert.Equal(t, StateGood, state)

		res, err := env.mgr.CheckSingleResourceSingleAdapter(ctx, uuid, "mem1", true, true)
		require.NoError(t, err)
		assert.Equal(t, StateMismatch, res.State)
		assert.True(t, res.Repaired)

		state, err = env.mgr.VerifyCopy(ctx, uuid, "mem1", true)
		require.NoError(t, err)
		assert.Equal(t, StateGood, state)
	})

	t.Run("lost copy detected and repaired", func(t *testing.T) {
		c, err := env.cat.GetCopy(ctx, uuid, "mem1")
		require.NoError(t, err)
		mem.Drop(c.Locator)

		state, err := env.mgr.VerifyCopy(ctx, uuid, "mem1", true)
		require.NoError(t, err)
		assert.Equal(t, StateAbsent, state)

		res, err := env.mgr.CheckSingleResourceSingleAdapter(ctx, uuid, "mem1", true, true)
		require.NoError(t, err)
		assert.True(t, res.Repaired)

		state, err = env.mgr.VerifyCopy(ctx, uuid, "mem1", true)
		require.NoError(t, err)
		assert.Equal(t, StateGood, state)
	})

	t.Run("check without repair leaves damage alone", func(t *testing.T) {
		c, err := env.cat.GetCopy(ctx, uuid, "mem1")
		require.NoError(t, err)
		require.True(t, mem.Corrupt(c.Locator))

		res, err := env.mgr.CheckSingleResourceSingleAdapter(ctx, uuid, "mem1", true, false)
		require.NoError(t, err)
		assert.Equal(t, StateMismatch, res.State)
		assert.False(t, res.Repaired)
	})
}

func TestCompareCopies(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	uuid := "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	env.stage(t, uuid, "fan out and compare")
	require.NoError(t, env.mgr.SendResourceToAdapters(ctx, uuid))

	t.Run("replicas agree after fan-out", func(t *testing.T) {
		same, err := env.mgr.CompareCopies(ctx, uuid, "local2", "mem1", true)
		require.NoError(t, err)
		assert.True(t, same)
	})

	t.Run("canonical pairs with a replica", func(t *testing.T) {
		for _, deep := range []bool{false, true} {
			same, err := env.mgr.CompareCopies(ctx, uuid, "local1", "local2", deep)
			require.NoError(t, err)
			assert.True(t, same)
		}
	})

	t.Run("deep sees backend rot, shallow trusts the rows", func(t *testing.T) {
		mem := env.memAdapter(t)
		c, err := env.cat.GetCopy(ctx, uuid, "mem1")
		require.NoError(t, err)
		require.True(t, mem.Corrupt(c.Locator))

		same, err := env.mgr.CompareCopies(ctx, uuid, "local2", "mem1", true)
		require.NoError(t, err)
		assert.False(t, same)

		same, err = env.mgr.CompareCopies(ctx, uuid, "local2", "mem1", false)
		require.NoError(t, err)
		assert.True(t, same)
	})

	t.Run("adapter without a copy", func(t *testing.T) {
		other := "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
		env.stage(t, other, "never fanned out")
		_, err := env.mgr.CompareCopies(ctx, other, "local2", "mem1", false)
		assert.True(t, adapter.IsNoCopy(err))
	})

	t.Run("unknown resource", func(t *testing.T) {
		_, err := env.mgr.CompareCopies(ctx, "no-such-uuid", "local2", "mem1", false)
		assert.True(t, adapter.IsNotIngested(err))
	})
}

func TestVerifyAdapterMetadata(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	uuid := "77777777-7777-7777-7777-777777777777"
	env.stage(t, uuid, "verify me deeply")
	require.NoError(t, env.mgr.SendResourceToAdapters(ctx, uuid))

	mem := env.memAdapter(t)

	t.Run("intact copy passes", func(t *testing.T) {
		ok, err := env.mgr.VerifyAdapterMetadata(ctx, "mem1", uuid, false)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("corrupt copy fails once then heals", func(t *testing.T) {
		c, err := env.cat.GetCopy(ctx, uuid, "mem1")
		require.NoError(t, err)
		require.True(t, mem.Corrupt(c.Locator))

		ok, err := env.mgr.VerifyAdapterMetadata(ctx, "mem1", uuid, false)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = env.mgr.VerifyAdapterMetadata(ctx, "mem1", uuid, false)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("retrieved file kept on request", func(t *testing.T) {
		ok, err := env.mgr.VerifyAdapterMetadata(ctx, "mem1", uuid, true)
		require.NoError(t, err)
		assert.True(t, ok)

		r, err := env.cat.GetResource(ctx, uuid)
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(mem.OutputDir(), r.Filename))
	})

	t.Run("unknown resource", func(t *testing.T) {
		_, err := env.mgr.VerifyAdapterMetadata(ctx, "mem1", "no-such-uuid", false)
		assert.True(t, adapter.IsNotIngested(err))
	})
}

func TestRestoreCanonicalCopy(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	uuid := "44444444-4444-4444-4444-444444444444"
	r := env.stage(t, uuid, "canonical content")
	require.NoError(t, env.mgr.SendResourceToAdapters(ctx, uuid))

	t.Run("intact canonical is left alone", func(t *testing.T) {
		restored, err := env.mgr.RestoreCanonicalCopy(ctx, uuid)
		require.NoError(t, err)
		assert.False(t, restored)
	})

	t.Run("damaged canonical rebuilt from replica", func(t *testing.T) {
		require.NoError(t, os.WriteFile(r.CanonicalLocator, []byte("bit rot"), 0644))

		restored, err := env.mgr.RestoreCanonicalCopy(ctx, uuid)
		require.NoError(t, err)
		assert.True(t, restored)

		canonical, err := env.mgr.Canonical(ctx)
		require.NoError(t, err)
		sum, err := canonical.ActualChecksum(ctx, uuid)
		require.NoError(t, err)
		assert.Equal(t, r.Checksum, sum)

		// The resource row tracks the new canonical locator.
		fresh, err := env.cat.GetResource(ctx, uuid)
		require.NoError(t, err)
		assert.FileExists(t, fresh.CanonicalLocator)
	})

	t.Run("fails when no intact replica remains", func(t *testing.T) {
		mem := env.memAdapter(t)
		memCopy, err := env.cat.GetCopy(ctx, uuid, "mem1")
		require.NoError(t, err)
		mem.Drop(memCopy.Locator)

		localCopy, err := env.cat.GetCopy(ctx, uuid, "local2")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(localCopy.Locator, []byte("also rotten"), 0644))

		fresh, err := env.cat.GetResource(ctx, uuid)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(fresh.CanonicalLocator, []byte("rotten"), 0644))

		_, err = env.mgr.RestoreCanonicalCopy(ctx, uuid)
		assert.True(t, adapter.IsRestorationFailed(err))
	})
}

func TestChangeResourceLevel(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	archive := &catalog.Level{Name: "ARCHIVE", Frequency: 3600, Copies: 1}
	require.NoError(t, archive.SetAdapterRefs([]catalog.AdapterRef{
		{ID: "mem1", Type: memory.AdapterType},
	}))
	require.NoError(t, env.cat.AddLevel(ctx, archive))
	require.NoError(t, env.mgr.ReloadLevelsAdapters(ctx))

	uuid := "55555555-5555-5555-5555-555555555555"
	env.stage(t, uuid, "mobile resource")
	require.NoError(t, env.mgr.SendResourceToAdapters(ctx, uuid))

	require.NoError(t, env.mgr.ChangeResourceLevel(ctx, uuid, []string{"ARCHIVE"}))

	r, err := env.cat.GetResource(ctx, uuid)
	require.NoError(t, err)
	assert.Equal(t, []string{"ARCHIVE"}, r.LevelNames())

	// local2 is no longer required and its copy is withdrawn.
	_, err = env.cat.GetCopy(ctx, uuid, "local2")
	assert.ErrorIs(t, err, catalog.ErrCopyNotFound)
	_, err = env.cat.GetCopy(ctx, uuid, "mem1")
	assert.NoError(t, err)

	t.Run("unknown level rejected", func(t *testing.T) {
		err := env.mgr.ChangeResourceLevel(ctx, uuid, []string{"NO_SUCH_LEVEL"})
		assert.True(t, adapter.IsConfigurationError(err))
	})

	t.Run("empty level list rejected", func(t *testing.T) {
		err := env.mgr.ChangeResourceLevel(ctx, uuid, nil)
		assert.True(t, adapter.IsConfigurationError(err))
	})
}

func TestCheckAll(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	first := "66666666-6666-6666-6666-666666666666"
	second := "77777777-7777-7777-7777-777777777777"
	env.stage(t, first, "sweep one")
	env.stage(t, second, "sweep two")
	require.NoError(t, env.mgr.SendResourceToAdapters(ctx, first))
	require.NoError(t, env.mgr.SendResourceToAdapters(ctx, second))

	mem := env.memAdapter(t)
	c, err := env.cat.GetCopy(ctx, second, "mem1")
	require.NoError(t, err)
	require.True(t, mem.Corrupt(c.Locator))

	report, err := env.mgr.CheckAll(ctx, true, true)
	require.NoError(t, err)

	assert.Equal(t, 2, report.ResourcesChecked)
	assert.Equal(t, 6, report.CopiesChecked) // canonical + 2 replicas each
	assert.Equal(t, 1, report.Mismatched)
	assert.Equal(t, 1, report.Repaired)
	assert.Equal(t, 5, report.Good)
	assert.Empty(t, report.Errors)

	state, err := env.mgr.VerifyCopy(ctx, second, "mem1", true)
	require.NoError(t, err)
	assert.Equal(t, StateGood, state)
}

func TestCheckDue(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	uuid := "88888888-8888-8888-8888-888888888888"
	env.stage(t, uuid, "check me on schedule")
	require.NoError(t, env.mgr.SendResourceToAdapters(ctx, uuid))

	// Never checked, so the first due-only sweep covers it.
	report, err := env.mgr.CheckDue(ctx, false, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ResourcesChecked)
	assert.Zero(t, report.Skipped)

	r, err := env.cat.GetResource(ctx, uuid)
	require.NoError(t, err)
	assert.False(t, r.LastCheckedAt.IsZero())

	// The DEFAULT level's frequency has not elapsed yet.
	report, err = env.mgr.CheckDue(ctx, false, false)
	require.NoError(t, err)
	assert.Zero(t, report.ResourcesChecked)
	assert.Equal(t, 1, report.Skipped)

	// A full sweep ignores the stamp.
	report, err = env.mgr.CheckAll(ctx, false, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ResourcesChecked)
	assert.Zero(t, report.Skipped)

	t.Run("stale stamp makes the resource due again", func(t *testing.T) {
		require.NoError(t, env.cat.TouchResourceChecked(ctx, uuid, time.Now().Add(-2*time.Minute)))

		report, err := env.mgr.CheckDue(ctx, false, false)
		require.NoError(t, err)
		assert.Equal(t, 1, report.ResourcesChecked)
		assert.Zero(t, report.Skipped)
	})
}

func TestVerifyAdapter(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)

	require.NoError(t, env.mgr.VerifyAdapter(ctx, "local2"))
	require.NoError(t, env.mgr.VerifyAdapter(ctx, "mem1"))

	// The probe leaves no rows behind.
	resources, err := env.cat.ListResources(ctx)
	require.NoError(t, err)
	assert.Empty(t, resources)

	t.Run("unknown adapter", func(t *testing.T) {
		err := env.mgr.VerifyAdapter(ctx, "nope")
		assert.True(t, adapter.IsConfigurationError(err))
	})
}
