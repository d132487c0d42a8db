package sfs

// Inode is the fixed-layout file metadata record from spec.md §3.2: a size
// in bytes, N_PTR_DIRECT direct block pointers, and one single-indirect
// pointer. size == -1 marks a freshly-formatted, never-used inode; once a
// file has been created its first data block occupies Direct[0], and
// Direct[0] == 0 is the canonical "free" marker used by the allocator and
// by remove (spec.md §4.2, §9 open question 4).
type Inode struct {
	Size     int32
	Direct   [NumPointersDirect]uint32
	Indirect uint32
}

// freeInode is the canonical zero state written by format and by remove.
func freeInode() Inode {
	return Inode{Size: -1}
}

// IsFree reports whether the inode is available for allocation. Per spec.md
// §4.2/§9, Direct[0] == 0 is the operative predicate; Size == -1 is only the
// as-formatted value and is not re-checked once a file has occupied and
// vacated the inode.
func (n *Inode) IsFree() bool { return n.Direct[0] == 0 }

// EncodeInode serializes n into buf, which must be exactly InodeSize bytes.
func EncodeInode(n *Inode, buf []byte) {
	putU32(buf[0:4], uint32(n.Size))
	off := 4
	for _, p := range n.Direct {
		putU32(buf[off:off+4], p)
		off += 4
	}
	putU32(buf[off:off+4], n.Indirect)
}

// DecodeInode populates n from buf, which must be exactly InodeSize bytes.
func DecodeInode(n *Inode, buf []byte) {
	n.Size = int32(getU32(buf[0:4]))
	off := 4
	for i := range n.Direct {
		n.Direct[i] = getU32(buf[off : off+4])
		off += 4
	}
	n.Indirect = getU32(buf[off : off+4])
}

// IndirectBlock is the single-indirect pointer block from spec.md §3.2: a
// zero-terminated array of block numbers, one per PointerSize-byte slot.
type IndirectBlock struct {
	Pointers []uint32
}

// NewIndirectBlock allocates a zeroed indirect block sized for the geometry.
func NewIndirectBlock(g Geometry) IndirectBlock {
	return IndirectBlock{Pointers: make([]uint32, g.PointersPerBlock())}
}

// EncodeIndirectBlock serializes ib into buf, which must be exactly
// len(ib.Pointers)*PointerSize bytes.
func EncodeIndirectBlock(ib *IndirectBlock, buf []byte) {
	off := 0
	for _, p := range ib.Pointers {
		putU32(buf[off:off+4], p)
		off += 4
	}
}

// DecodeIndirectBlock populates ib.Pointers from buf.
func DecodeIndirectBlock(ib *IndirectBlock, buf []byte) {
	off := 0
	for i := range ib.Pointers {
		ib.Pointers[i] = getU32(buf[off : off+4])
		off += 4
	}
}
