// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	bs, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("stores/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	cat := catalog.New(bs)
//
// # Features
//
//   - Ranged GETs, so a store file can be scanned without downloading it
//   - Multipart streaming uploads through the SDK upload manager
//   - CRC32C-checked single-shot puts
//   - Automatic pagination for listing
//   - Optional DynamoDB-backed CURRENT pointer for concurrent writers
package s3
