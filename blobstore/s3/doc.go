// Package s3 provides an S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	store, err := s3.NewFromConfig(ctx, "my-bucket", "anneal/")
//
//	tbl, err := table.Load(ctx, store, "spellman.tsv", '\t')
//
// # Features
//
//   - Streaming multipart uploads through feature/s3/manager
//   - CRC32C integrity checksums on Put
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
