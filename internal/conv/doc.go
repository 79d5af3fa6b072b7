// Package conv converts between integer types with range checks.
//
// Use it where values come from untrusted bytes (file footers, block
// headers) or must fit a fixed-width field on write. Provably bounded
// values (loop indices, small counters) use plain casts.
package conv
