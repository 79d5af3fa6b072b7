// Package blobstore abstracts where store files live.
//
// A store file is written once through Create or Put and read many times
// through Open. Reads are random access so that materializing a selection
// only fetches the dataset blocks it needs.
//
// Built-in implementations:
//
//   - LocalStore: local filesystem, memory-mapped reads, atomic writes
//   - MemoryStore: in-process, for tests
//   - CachingStore: block cache in front of any other store
//   - s3.Store and minio.Store: object storage with range reads
//
// All implementations are safe for concurrent use.
package blobstore
