package s3

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/catalog"
)

// fakeClient keeps objects in a map, standing in for a bucket.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string][]byte)}
}

func (f *fakeClient) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[*in.Key] = data
	f.mu.Unlock()
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeClient) GetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	f.mu.Lock()
	data, ok := f.objects[*in.Key]
	f.mu.Unlock()
	if !ok {
		return nil, &notFoundError{}
	}
	return &awss3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, in *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, *in.Key)
	f.mu.Unlock()
	return &awss3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) corrupt(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data := f.objects[key]; len(data) > 0 {
		mutated := append([]byte(nil), data...)
		mutated[0] ^= 0xFF
		f.objects[key] = mutated
	}
}

type notFoundError struct{}

func (notFoundError) Error() string { return "NoSuchKey: the specified key does not exist" }

func newTestCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(&catalog.Config{
		Type:   catalog.DatabaseTypeSQLite,
		SQLite: catalog.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestAdapter(t *testing.T, cat adapter.Catalog) (*Adapter, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	a := NewWithClient(adapter.Config{
		ID:        "s3main",
		Type:      AdapterType,
		Bucket:    "archive",
		OutputDir: filepath.Join(t.TempDir(), "output"),
	}, client, cat)
	require.NoError(t, os.MkdirAll(a.outputDir, 0755))
	return a, client
}

// stageResource records a resource whose canonical bytes live in a local file,
// the way deployments pair an S3 replica tier with a filesystem canonical tier.
func stageResource(t *testing.T, cat *catalog.Store, uuid, content string) *catalog.Resource {
	t.Helper()
	ctx := t.Context()

	canonicalPath := filepath.Join(t.TempDir(), "canonical_obj.txt")
	require.NoError(t, os.WriteFile(canonicalPath, []byte(content), 0644))
	sum, err := adapter.FileSHA1(canonicalPath)
	require.NoError(t, err)

	r := &catalog.Resource{
		UUID:             uuid,
		CanonicalLocator: canonicalPath,
		Filename:         "obj.txt",
		Checksum:         sum,
	}
	r.SetLevelNames([]string{"default"})
	require.NoError(t, cat.AddResource(ctx, r))
	require.NoError(t, cat.AddCopy(ctx, &catalog.Copy{
		ResourceUUID: uuid,
		AdapterID:    "local1",
		AdapterType:  "local",
		Locator:      canonicalPath,
		Checksum:     sum,
		Canonical:    true,
	}))
	return r
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  adapter.Config
	}{
		{"missing id", adapter.Config{Type: AdapterType, Bucket: "b", OutputDir: "/tmp/o"}},
		{"missing bucket", adapter.Config{ID: "s3main", Type: AdapterType, OutputDir: "/tmp/o"}},
		{"missing output dir", adapter.Config{ID: "s3main", Type: AdapterType, Bucket: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(t.Context(), tt.cfg, nil)
			assert.True(t, adapter.IsConfigurationError(err))
		})
	}
}

func TestStoreAndRetrieve(t *testing.T) {
	ctx := t.Context()
	cat := newTestCatalog(t)
	a, client := newTestAdapter(t, cat)

	uuid := "44444444-4444-4444-4444-444444444444"
	r := stageResource(t, cat, uuid, "cloud bytes")

	t.Run("store uploads and records", func(t *testing.T) {
		loc, err := a.Store(ctx, uuid)
		require.NoError(t, err)
		assert.Equal(t, "s3://archive/"+adapter.ObjectName(uuid, r.Filename), loc)

		c, err := cat.GetCopy(ctx, uuid, "s3main")
		require.NoError(t, err)
		assert.Equal(t, r.Checksum, c.Checksum)
	})

	t.Run("store is idempotent", func(t *testing.T) {
		loc, err := a.Store(ctx, uuid)
		require.NoError(t, err)
		assert.Equal(t, "s3://archive/"+adapter.ObjectName(uuid, r.Filename), loc)
	})

	t.Run("retrieve downloads and verifies", func(t *testing.T) {
		out, err := a.Retrieve(ctx, uuid)
		require.NoError(t, err)
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "cloud bytes", string(data))
	})

	t.Run("actual checksum sees corruption", func(t *testing.T) {
		client.corrupt(adapter.ObjectName(uuid, r.Filename))

		sum, err := a.ActualChecksum(ctx, uuid)
		require.NoError(t, err)
		assert.NotEqual(t, r.Checksum, sum)

		_, err = a.Retrieve(ctx, uuid)
		assert.True(t, adapter.IsChecksumMismatch(err))
	})

	t.Run("delete removes object and row", func(t *testing.T) {
		require.NoError(t, a.Delete(ctx, uuid))
		_, err := cat.GetCopy(ctx, uuid, "s3main")
		assert.ErrorIs(t, err, catalog.ErrCopyNotFound)

		assert.NoError(t, a.Delete(ctx, uuid))
	})

	t.Run("retrieve without copy", func(t *testing.T) {
		_, err := a.Retrieve(ctx, uuid)
		assert.True(t, adapter.IsNoCopy(err))
	})
}

func TestStoreCanonicalOnS3(t *testing.T) {
	ctx := t.Context()
	cat := newTestCatalog(t)
	a, _ := newTestAdapter(t, cat)

	uuid := "55555555-5555-5555-5555-555555555555"
	staged := filepath.Join(t.TempDir(), "staged.bin")
	require.NoError(t, os.WriteFile(staged, []byte("canonical in the cloud"), 0644))
	sum, err := adapter.FileSHA1(staged)
	require.NoError(t, err)

	r := &catalog.Resource{UUID: uuid, Filename: "staged.bin", Checksum: sum, CanonicalLocator: "pending"}
	require.NoError(t, cat.AddResource(ctx, r))

	loc, err := a.StoreCanonical(ctx, staged, uuid, sum, r.Filename)
	require.NoError(t, err)
	assert.Equal(t, "s3://archive/"+adapter.CanonicalObjectName(uuid, r.Filename), loc)

	canonical, err := cat.GetCanonicalCopy(ctx, uuid)
	require.NoError(t, err)
	assert.True(t, canonical.Canonical)

	require.NoError(t, a.DeleteCanonical(ctx, uuid))
	_, err = cat.GetCanonicalCopy(ctx, uuid)
	assert.ErrorIs(t, err, catalog.ErrCopyNotFound)
}

func TestChecksumMismatchOnStore(t *testing.T) {
	ctx := t.Context()
	cat := newTestCatalog(t)
	a, _ := newTestAdapter(t, cat)

	uuid := "66666666-6666-6666-6666-666666666666"
	r := stageResource(t, cat, uuid, "original")

	// Canonical bytes rot on disk before replication.
	require.NoError(t, os.WriteFile(r.CanonicalLocator, []byte("rotted"), 0644))

	_, err := a.Store(ctx, uuid)
	assert.True(t, adapter.IsChecksumMismatch(err))

	_, err = cat.GetCopy(ctx, uuid, "s3main")
	assert.ErrorIs(t, err, catalog.ErrCopyNotFound)
}
