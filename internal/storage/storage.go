package storage

import (
	"context"
	"io"
	"time"
)

// Package storage contains the object-storage collaborator boundary. The
// document pipeline only ever sees storage references (object keys) and
// presigned URLs; bytes are streamed, never buffered to local disk.

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1
// and the implementation will buffer/chunk as supported by the backend.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// FileDetails is the metadata the pipeline needs to turn a storage reference
// into a pending case document.
type FileDetails struct {
	ID           string
	OriginalName string
	StoragePath  string
	FileType     string
	FileSize     int64
}

// Storage is the S3-compatible object storage client interface consumed by the
// document pipeline and the questionnaire submission flow.
type Storage interface {
	// GetFileDetails resolves storage references to file metadata. Unknown
	// references are skipped, not errors: the caller decides how to handle
	// references that resolve to nothing.
	GetFileDetails(ctx context.Context, ids []string) ([]FileDetails, error)

	// Put uploads an object under the given key using streaming I/O.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)

	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error

	// PresignGet returns a time-limited URL granting credential-free read
	// access to the object, suitable for handing to the external analyzer.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
