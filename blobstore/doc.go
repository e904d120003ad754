// Package blobstore provides the storage abstraction for anneal's inputs,
// outputs and distance snapshots.
//
// Store is the interface for reading and writing named blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local directory with atomic temp-file + rename writes
//   - MemoryStore: in-memory map, for tests
//   - s3.Store: Amazon S3 with streaming multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
// Implement the Store interface to support custom storage backends:
//
//	type Store interface {
//	    Open(ctx, name) (io.ReadCloser, error)
//	    Create(ctx, name) (io.WriteCloser, error)
//	    Put(ctx, name, data) error         // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
