// Package s3 provides an S3-backed storage adapter. It works against AWS and
// against S3-compatible stores (MinIO, Localstack) via a custom endpoint.
package s3

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/catalog"
)

// AdapterType is the registry name of this backend.
const AdapterType = "s3"

func init() {
	adapter.Register(AdapterType, New)
}

// Client is the slice of the S3 API the adapter uses. *awss3.Client satisfies
// it; tests substitute fakes.
type Client interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

// Adapter stores objects in one S3 bucket, keyed "<uuid>_<filename>" for
// replicas and "canonical_<uuid>_<filename>" for canonical copies.
type Adapter struct {
	id        string
	bucket    string
	outputDir string
	client    Client
	cat       adapter.Catalog
}

// New constructs an S3 adapter, building the client from the SDK credential
// chain plus any static credentials, profile, or endpoint override in cfg.
func New(ctx context.Context, cfg adapter.Config, cat adapter.Catalog) (adapter.Adapter, error) {
	if cfg.ID == "" {
		return nil, adapter.NewConfigurationError("s3 adapter requires an id")
	}
	if cfg.Bucket == "" {
		return nil, adapter.NewConfigurationError(fmt.Sprintf("s3 adapter %q requires bucket", cfg.ID))
	}
	if cfg.OutputDir == "" {
		return nil, adapter.NewConfigurationError(fmt.Sprintf("s3 adapter %q requires output_dir", cfg.ID))
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, adapter.NewAdapterCreationError(AdapterType, err)
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, adapter.NewAdapterCreationError(AdapterType, fmt.Errorf("failed to load AWS config: %w", err))
	}

	var s3Opts []func(*awss3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return NewWithClient(cfg, awss3.NewFromConfig(awsCfg, s3Opts...), cat), nil
}

// NewWithClient constructs an S3 adapter around an existing client.
func NewWithClient(cfg adapter.Config, client Client, cat adapter.Catalog) *Adapter {
	return &Adapter{
		id:        cfg.ID,
		bucket:    cfg.Bucket,
		outputDir: cfg.OutputDir,
		client:    client,
		cat:       cat,
	}
}

// ID returns the adapter instance identifier.
func (a *Adapter) ID() string { return a.id }

// Type returns "s3".
func (a *Adapter) Type() string { return AdapterType }

func (a *Adapter) locator(key string) string {
	return fmt.Sprintf("s3://%s/%s", a.bucket, key)
}

// keyFromLocator strips the "s3://bucket/" prefix recorded in the catalog.
func (a *Adapter) keyFromLocator(locator string) string {
	return strings.TrimPrefix(locator, fmt.Sprintf("s3://%s/", a.bucket))
}

// Store uploads the canonical copy into the bucket.
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

	key := adapter.ObjectName(resourceUUID, r.Filename)
	if err := a.upload(ctx, canonical.Locator, key); err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "store", err)
	}

	loc := a.locator(key)
	err = a.cat.AddCopy(ctx, &catalog.Copy{
		ResourceUUID: resourceUUID,
		AdapterID:    a.id,
		AdapterType:  AdapterType,
		Locator:      loc,
		Checksum:     sum,
	})
	if err != nil {
		return "", err
	}
	return loc, nil
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

	key := adapter.CanonicalObjectName(resourceUUID, filename)
	if err := a.upload(ctx, path, key); err != nil {
		return "", adapter.NewStorageFailedError(resourceUUID, a.id, "store canonical", err)
	}

	loc := a.locator(key)
	err = a.cat.AddCopy(ctx, &catalog.Copy{
		ResourceUUID: resourceUUID,
		AdapterID:    a.id,
		AdapterType:  AdapterType,
		Locator:      loc,
		Checksum:     sum,
		Canonical:    true,
	})
	if err != nil {
		return "", err
	}
	return loc, nil
}

// Retrieve downloads this adapter's object into the output directory,
// verifying the bytes against the recorded checksum.
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

	out := filepath.Join(a.outputDir, r.Filename)
	if err := a.download(ctx, a.keyFromLocator(c.Locator), out); err != nil {
		if isNotFoundError(err) {
			return "", adapter.NewNoCopyError(resourceUUID, a.id)
		}
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

// Delete removes the non-canonical copy from the bucket and the catalog.
func (a *Adapter) Delete(ctx context.Context, resourceUUID string) error {
	c, err := a.cat.GetCopy(ctx, resourceUUID, a.id)
	if err != nil {
		if errors.Is(err, catalog.ErrCopyNotFound) {
			return nil
		}
		return err
	}
	if err := a.remove(ctx, a.keyFromLocator(c.Locator)); err != nil {
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
	if err := a.remove(ctx, a.keyFromLocator(c.Locator)); err != nil {
		return adapter.NewStorageFailedError(resourceUUID, a.id, "delete canonical", err)
	}
	return a.cat.DeleteCopy(ctx, c.CopyID)
}

// ActualChecksum streams the object out of the bucket and hashes it.
func (a *Adapter) ActualChecksum(ctx context.Context, resourceUUID string) (string, error) {
	c, err := a.ownCopy(ctx, resourceUUID)
	if err != nil {
		return "", err
	}

	resp, err := a.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.keyFromLocator(c.Locator)),
	})
	if err != nil {
		if isNotFoundError(err) {
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

func (a *Adapter) upload(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = a.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func (a *Adapter) download(ctx context.Context, key, dst string) error {
	resp, err := a.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmpPath := dst + ".tmp"
	out, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := out.ReadFrom(resp.Body); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (a *Adapter) remove(ctx context.Context, key string) error {
	_, err := a.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

// isNotFoundError checks if an error is an S3 not found error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "404")
}
