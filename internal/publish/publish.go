// Package publish uploads a committed dataset directory to object storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
)

// ErrPublish marks upload failures so callers can distinguish them from
// harvest failures; the local dataset is intact when this is returned.
var ErrPublish = errors.New("dataset publish failed")

// Dataset uploads every file in datasetDir to the bucket at bucketURL,
// keyed by path relative to the dataset directory. Supported URL schemes
// are file://, gs:// and s3:// (query parameters per gocloud.dev/blob).
func Dataset(ctx context.Context, datasetDir, bucketURL string) error {
	log := slog.With("component", "publish")

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return fmt.Errorf("%w: open bucket %s: %v", ErrPublish, bucketURL, err)
	}
	defer bucket.Close()

	uploaded := 0
	err = filepath.WalkDir(datasetDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(datasetDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if err := uploadFile(ctx, bucket, path, key); err != nil {
			return err
		}
		uploaded++
		log.Debug("uploaded dataset file", "key", key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}

	log.Info("dataset published", "bucket", bucketURL, "files", uploaded)
	return nil
}

// uploadFile streams one local file into the bucket under the given key.
func uploadFile(ctx context.Context, bucket *blob.Bucket, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	w, err := bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}
