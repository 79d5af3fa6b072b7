// Package persistence reads and writes store files.
//
// A store file is a hierarchical container: one group per container, one
// sub-group per matrix and one dataset per array. Every byte is little
// endian.
//
//	+--------------------+  offset 0
//	| FileHeader (64 B)  |  magic, structural version, dataset count
//	+--------------------+
//	| dataset blocks     |  one compressed block per array
//	+--------------------+
//	| directory block    |  CBOR (or JSON) Directory, compressed
//	+--------------------+
//	| Footer (32 B)      |  directory offset/length/CRC32, codec id
//	+--------------------+
//
// The directory carries all metadata (matrix kind, tuple dims, scalar
// kind, class tag, component dims) so a file can be scanned into a proxy
// tree by reading the header, footer and directory only. Bulk data is read
// per dataset on demand, which is what makes selective materialization
// cost nothing for unselected arrays.
//
// Files whose structural version is below MinStructuralVersion are
// rejected before the directory is decoded.
package persistence
