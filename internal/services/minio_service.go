package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"catalogfacets/internal/models"
)

// SnapshotVersion is bumped whenever the snapshot layout changes.
const SnapshotVersion = 1

// ErrSnapshotNotFound is returned when no snapshot object exists.
var ErrSnapshotNotFound = errors.New("catalog snapshot not found")

// Snapshot is a point-in-time export of the catalogue taxonomy, optionally
// with products, used to boot the service without a database.
type Snapshot struct {
	Version     int                        `json:"version"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Categories  []models.Category          `json:"categories"`
	Attributes  []models.AttributeTaxonomy `json:"attributes"`
	Products    []models.Product           `json:"products,omitempty"`
}

type SnapshotStore interface {
	Save(ctx context.Context, objectName string, snapshot *Snapshot) error
	Load(ctx context.Context, objectName string) (*Snapshot, error)
	GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	EnsureBucketExists(ctx context.Context) error
}

type minioSnapshotStore struct {
	client *minio.Client
	bucket string
}

func NewMinioSnapshotStore(endpoint, accessKey, secretKey string, useSSL bool, bucket string) (SnapshotStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &minioSnapshotStore{client: client, bucket: bucket}, nil
}

func (m *minioSnapshotStore) Save(ctx context.Context, objectName string, snapshot *Snapshot) error {
	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, snapshot); err != nil {
		return err
	}
	_, err := m.client.PutObject(ctx, m.bucket, objectName, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType:     "application/json",
		ContentEncoding: "gzip",
	})
	if err != nil {
		return fmt.Errorf("uploading snapshot %s: %w", objectName, err)
	}
	return nil
}

func (m *minioSnapshotStore) Load(ctx context.Context, objectName string) (*Snapshot, error) {
	object, err := m.client.GetObject(ctx, m.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot %s: %w", objectName, err)
	}
	defer object.Close()

	snapshot, err := DecodeSnapshot(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", objectName, err)
	}
	return snapshot, nil
}

func (m *minioSnapshotStore) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucket, objectName, expiry, nil)
	if err != nil {
		return "", err
	}
	return url.String(), nil
}

func (m *minioSnapshotStore) EnsureBucketExists(ctx context.Context) error {
	found, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !found {
		return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// EncodeSnapshot writes snapshot as gzipped JSON.
func EncodeSnapshot(w io.Writer, snapshot *Snapshot) error {
	if snapshot.Version == 0 {
		snapshot.Version = SnapshotVersion
	}
	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(snapshot); err != nil {
		zw.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return zw.Close()
}

// DecodeSnapshot reads a snapshot written by EncodeSnapshot.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var snapshot Snapshot
	if err := json.NewDecoder(zr).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snapshot.Version)
	}
	return &snapshot, nil
}
