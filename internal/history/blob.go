package history

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
	"github.com/kimalale/tactical-workflow-manager/pkg/log"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// BlobArchive writes each execution record as a JSON object using
// gocloud.dev/blob, supporting S3, GCS, Azure Blob Storage, local files and
// memory buckets
type BlobArchive struct {
	bucket *blob.Bucket
	prefix string
	limit  int
}

const recordSuffix = ".json"

var ErrRecordNotFound = errors.New("execution record not found")

var _ Sink = (*BlobArchive)(nil)

// NewBlobArchive opens the bucket at bucketURL. List returns at most limit
// records
func NewBlobArchive(
	ctx context.Context, bucketURL, prefix string, limit int,
) (*BlobArchive, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return &BlobArchive{bucket: bucket, prefix: prefix, limit: limit}, nil
}

// Append writes the record under its id
func (a *BlobArchive) Append(
	ctx context.Context, rec *api.ExecutionRecord,
) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := a.bucket.WriteAll(ctx, a.keyFor(rec.ID), data, nil); err != nil {
		slog.Error("Failed to archive execution record",
			log.RunID(rec.RunID),
			log.Error(err))
		return err
	}
	return nil
}

// Get reads one record back by id
func (a *BlobArchive) Get(
	ctx context.Context, id string,
) (*api.ExecutionRecord, error) {
	data, err := a.bucket.ReadAll(ctx, a.keyFor(id))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	var rec api.ExecutionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List reads every archived record under the prefix and returns the most
// recent ones, newest first
func (a *BlobArchive) List(
	ctx context.Context,
) ([]*api.ExecutionRecord, error) {
	var res []*api.ExecutionRecord
	it := a.bucket.List(&blob.ListOptions{Prefix: a.prefix})
	for {
		obj, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if obj.IsDir || !strings.HasSuffix(obj.Key, recordSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(obj.Key, a.prefix),
			recordSuffix,
		)
		rec, err := a.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}

	slices.SortFunc(res, func(l, r *api.ExecutionRecord) int {
		return r.Timestamp.Compare(l.Timestamp)
	})
	if a.limit > 0 && len(res) > a.limit {
		res = res[:a.limit]
	}
	return res, nil
}

// Close releases the bucket
func (a *BlobArchive) Close() error {
	return a.bucket.Close()
}

func (a *BlobArchive) keyFor(id string) string {
	return a.prefix + id + recordSuffix
}
