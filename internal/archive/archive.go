// Package archive keeps a copy of every imported statement file in cloud
// storage, keyed by upload date and content hash.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dvloznov/finance-client/internal/logger"
)

const (
	objectPrefix = "imports"
	csvMIME      = "text/csv"
)

// Archiver writes imported files to a bucket. It satisfies
// batchimport.Archiver.
type Archiver struct {
	store  ObjectStore
	bucket string
	now    func() time.Time
}

// New creates an Archiver writing to bucket.
func New(store ObjectStore, bucket string) *Archiver {
	return &Archiver{store: store, bucket: bucket, now: time.Now}
}

// ArchiveImport stores data and returns its gs:// URI.
func (a *Archiver) ArchiveImport(ctx context.Context, fileName, hash string, data []byte) (string, error) {
	log := logger.FromContext(ctx)

	object := ObjectName(a.now().UTC(), fileName, hash)
	if err := a.store.WriteObject(ctx, a.bucket, object, csvMIME, data); err != nil {
		return "", fmt.Errorf("ArchiveImport: %w", err)
	}

	uri := URI(a.bucket, object)
	log.Info().Str("file_name", fileName).Str("uri", uri).Int("bytes", len(data)).Msg("Archived import file")
	return uri, nil
}

// Fetch downloads a previously archived file by its gs:// URI.
func (a *Archiver) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	data, err := a.store.ReadObject(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	return data, nil
}

// ObjectName builds imports/YYYY/MM/DD/<hash>-<file>. Only the base name of
// fileName is kept.
func ObjectName(at time.Time, fileName, hash string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	if base == "." || base == "/" {
		base = "upload.csv"
	}
	return fmt.Sprintf("%s/%s/%s-%s", objectPrefix, at.Format("2006/01/02"), hash, base)
}

// URI formats a gs:// URI.
func URI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// ParseURI splits gs://bucket/object.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}

	return parts[0], parts[1], nil
}

// FileName extracts the file name from a storage URI, dropping the hash
// prefix added by ObjectName.
// e.g., "gs://bucket/imports/2025/03/01/ab12-discover.csv" → "discover.csv"
func FileName(uri string) string {
	name := path.Base(strings.TrimPrefix(uri, "gs://"))
	if i := strings.Index(name, "-"); i >= 0 {
		return name[i+1:]
	}
	return name
}
