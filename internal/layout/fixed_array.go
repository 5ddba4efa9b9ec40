package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-velociraptor/internal/binary"
	"github.com/robert-malhotra/go-velociraptor/internal/btree"
)

// Fixed array client IDs.
const (
	fixedArrayUnfiltered = 0
	fixedArrayFiltered   = 1
)

// FixedArrayPageBits is the page size (log2 entries) used when writing.
const FixedArrayPageBits = 10

// fixedArrayHeader is the decoded FAHD block.
type fixedArrayHeader struct {
	clientID      uint8
	entrySize     int
	pageBits      uint8
	numEntries    uint64
	dataBlockAddr uint64
}

func readFixedArrayHeader(r *binary.Reader, addr uint64) (*fixedArrayHeader, error) {
	nr := r.At(int64(addr))

	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading fixed array signature: %w", err)
	}
	if string(sig) != "FAHD" {
		return nil, fmt.Errorf("invalid fixed array signature: got %q, expected \"FAHD\"", string(sig))
	}

	version, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported fixed array version: %d", version)
	}

	h := &fixedArrayHeader{}
	if h.clientID, err = nr.ReadUint8(); err != nil {
		return nil, err
	}
	entrySize, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	h.entrySize = int(entrySize)
	if h.pageBits, err = nr.ReadUint8(); err != nil {
		return nil, err
	}
	if h.numEntries, err = nr.ReadLength(); err != nil {
		return nil, err
	}
	if h.dataBlockAddr, err = nr.ReadOffset(); err != nil {
		return nil, err
	}
	return h, nil
}

// readFixedArray reads chunk entries from a fixed array index. Element i
// of the array is the chunk at linear position i of the chunk grid.
func readFixedArray(r *binary.Reader, addr uint64, dims, chunkDims []uint64, chunkBytes uint32) ([]btree.ChunkEntry, error) {
	h, err := readFixedArrayHeader(r, addr)
	if err != nil {
		return nil, err
	}

	offsetSize := r.OffsetSize()
	sizeBytes := 0
	if h.clientID == fixedArrayFiltered {
		sizeBytes = h.entrySize - offsetSize - 4
		if sizeBytes <= 0 || sizeBytes > 8 {
			return nil, fmt.Errorf("invalid filtered fixed array entry size %d", h.entrySize)
		}
	}

	nr := r.At(int64(h.dataBlockAddr))
	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading fixed array data block signature: %w", err)
	}
	if string(sig) != "FADB" {
		return nil, fmt.Errorf("invalid fixed array data block signature: got %q, expected \"FADB\"", string(sig))
	}
	// version, client ID, header address
	nr.Skip(2 + int64(offsetSize))

	pageSize := uint64(1) << h.pageBits
	if h.numEntries > pageSize {
		// paged: skip the page bitmap and the block checksum; each page
		// is its entries followed by a checksum
		npages := (h.numEntries + pageSize - 1) / pageSize
		nr.Skip(int64((npages+7)/8) + 4)
	}

	grid := chunkGrid(dims, chunkDims)
	entries := make([]btree.ChunkEntry, 0, h.numEntries)
	for i := uint64(0); i < h.numEntries; i++ {
		if h.numEntries > pageSize && i > 0 && i%pageSize == 0 {
			nr.Skip(4)
		}

		chunkAddr, err := nr.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("reading chunk address %d: %w", i, err)
		}
		size, mask := chunkBytes, uint32(0)
		if sizeBytes > 0 {
			s, err := nr.ReadUintN(sizeBytes)
			if err != nil {
				return nil, fmt.Errorf("reading chunk size %d: %w", i, err)
			}
			size = uint32(s)
			if mask, err = nr.ReadUint32(); err != nil {
				return nil, fmt.Errorf("reading filter mask %d: %w", i, err)
			}
		}

		if chunkAddr == 0 || r.IsUndefinedOffset(chunkAddr) {
			continue
		}
		entries = append(entries, btree.ChunkEntry{
			Offset:     chunkOffset(i, grid, chunkDims),
			FilterMask: mask,
			Size:       size,
			Address:    chunkAddr,
		})
	}
	return entries, nil
}

// chunkSizeLength is the byte width used for filtered chunk sizes in a
// fixed array entry, derived from the unfiltered chunk size.
func chunkSizeLength(chunkBytes uint64) int {
	log2 := 0
	for v := chunkBytes; v > 1; v >>= 1 {
		log2++
	}
	return min(1+(log2+8)/8, 8)
}

// writeFixedArray writes a fixed array index for the given chunks and
// returns the header address. sizes and masks are nil for unfiltered data.
func writeFixedArray(
	w *binary.Writer,
	allocate func(size int64) uint64,
	addrs []uint64,
	sizes []uint64,
	masks []uint32,
	chunkBytes uint64,
) (uint64, error) {
	n := len(addrs)
	offsetSize := w.OffsetSize()
	lengthSize := w.LengthSize()

	clientID := uint8(fixedArrayUnfiltered)
	entrySize := offsetSize
	sizeBytes := 0
	if sizes != nil {
		clientID = fixedArrayFiltered
		sizeBytes = chunkSizeLength(chunkBytes)
		entrySize += sizeBytes + 4
	}

	pageSize := 1 << FixedArrayPageBits
	paged := n > pageSize
	npages := (n + pageSize - 1) / pageSize

	headerSize := 4 + 4 + lengthSize + offsetSize + 4
	prefixSize := 4 + 2 + offsetSize
	blockSize := prefixSize + n*entrySize + 4
	if paged {
		prefixSize += (npages + 7) / 8
		blockSize = prefixSize + 4 + n*entrySize + npages*4
	}

	headerAddr := allocate(int64(headerSize))
	blockAddr := allocate(int64(blockSize))

	block := make([]byte, blockSize)
	copy(block, "FADB")
	block[4] = 0
	block[5] = clientID
	putUintLE(block[6:], headerAddr, offsetSize)
	idx := 6 + offsetSize
	if paged {
		for i := 0; i < (npages+7)/8; i++ {
			block[idx+i] = 0xFF
		}
		idx += (npages + 7) / 8
	}

	putEntry := func(i int) {
		putUintLE(block[idx:], addrs[i], offsetSize)
		idx += offsetSize
		if sizes != nil {
			putUintLE(block[idx:], sizes[i], sizeBytes)
			idx += sizeBytes
			putUintLE(block[idx:], uint64(masks[i]), 4)
			idx += 4
		}
	}

	if !paged {
		for i := 0; i < n; i++ {
			putEntry(i)
		}
		putUintLE(block[idx:], uint64(binary.Lookup3Checksum(block[:idx])), 4)
	} else {
		putUintLE(block[idx:], uint64(binary.Lookup3Checksum(block[:idx])), 4)
		idx += 4
		for p := 0; p < npages; p++ {
			pageStart := idx
			for i := p * pageSize; i < min((p+1)*pageSize, n); i++ {
				putEntry(i)
			}
			putUintLE(block[idx:], uint64(binary.Lookup3Checksum(block[pageStart:idx])), 4)
			idx += 4
		}
	}

	if err := w.At(int64(blockAddr)).WriteBytes(block); err != nil {
		return 0, fmt.Errorf("writing fixed array data block: %w", err)
	}

	header := make([]byte, headerSize)
	copy(header, "FAHD")
	header[4] = 0
	header[5] = clientID
	header[6] = uint8(entrySize)
	header[7] = FixedArrayPageBits
	putUintLE(header[8:], uint64(n), lengthSize)
	putUintLE(header[8+lengthSize:], blockAddr, offsetSize)
	end := 8 + lengthSize + offsetSize
	putUintLE(header[end:], uint64(binary.Lookup3Checksum(header[:end])), 4)

	if err := w.At(int64(headerAddr)).WriteBytes(header); err != nil {
		return 0, fmt.Errorf("writing fixed array header: %w", err)
	}
	return headerAddr, nil
}

func putUintLE(b []byte, v uint64, size int) {
	for i := 0; i < size; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
