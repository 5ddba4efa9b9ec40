// Package layout provides storage layout handlers for reading and writing
// dataset data.
//
// Three storage layouts exist:
//
//   - Compact: data stored directly within the object header. Implemented
//     by [Compact].
//   - Contiguous: data stored in a single block. Implemented by
//     [Contiguous]; selections are read row by row so a 1-D range of a
//     catalogue column costs one read.
//   - Chunked: data divided into equally shaped chunks, each optionally
//     deflated, located through a chunk index. Implemented by [Chunked].
//
// The chunk index type comes from the layout message: version 1 B-tree
// (all version 3 layouts), single chunk, implicit and fixed array are
// read. Extensible array and version 2 B-tree indices are reported as
// unsupported.
//
// [ChunkWriter] writes chunked storage. A dataset that fits in one chunk
// gets a single chunk index; anything larger gets a fixed array. Edge
// chunks are zero padded to the full chunk shape.
//
// Selections are copied with copyBlock, which walks the intersection of a
// chunk and the requested hyperslab one innermost row at a time.
package layout
