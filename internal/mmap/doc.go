// Package mmap maps store files read-only into memory so the local blob
// store can serve dataset reads without a copy through kernel buffers.
//
// On unix systems the file is mapped with mmap(2). Other platforms fall
// back to reading the whole file into memory.
package mmap
