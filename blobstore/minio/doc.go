// Package minio provides a blobstore.BlobStore on MinIO and other
// S3-compatible servers (Ceph, Garage, SeaweedFS) through the MinIO client.
//
//	bs, err := minio.Dial("localhost:9000", "minioadmin", "minioadmin", false,
//	    "stores", "project-a/")
//
// Unlike package s3 it needs no AWS configuration, which suits air-gapped
// deployments.
package minio
