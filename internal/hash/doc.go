// Package hash holds the CRC32 variants used for integrity checks.
//
// Store files checksum their directory block with CRC32-IEEE. Uploads to
// S3 carry a CRC32-Castagnoli checksum in the base64 big-endian form the
// service expects.
package hash
