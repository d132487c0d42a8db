package sfs

import "fmt"

// SuperblockMagic identifies a valid SFS image. It is unrelated to, and does
// not need to match, the constant used by the C reference implementation
// this spec was distilled from — see SPEC_FULL.md §3.
const SuperblockMagic uint32 = 0x53465331 // "SFS1"

// Superblock is block 0: magic, geometry, and one j-node per directory slot
// (spec.md §3.1). The j-nodes are carried for on-disk layout fidelity with
// the reference format but are never dereferenced by any operation in this
// implementation (SPEC_FULL.md §3).
type Superblock struct {
	Magic     uint32
	Geometry  Geometry
	JNodes    []Inode
}

// NewSuperblock builds the as-formatted superblock: each j-node's size
// covers the whole inode file and its direct pointers walk the inode file's
// own blocks, mirroring the reference's init_super_block.
func NewSuperblock(g Geometry) Superblock {
	jnodes := make([]Inode, g.NumJNodes())
	for i := range jnodes {
		jnodes[i] = freeInode()
	}
	for slot := uint32(0); slot < g.MaxDirs(); slot++ {
		jnodes[slot].Size = int32(g.NumInodes * InodeSize)
		for j := uint32(0); j < g.BlocksIFile() && j < NumPointersDirect; j++ {
			jnodes[slot].Direct[j] = j + 1
		}
	}
	return Superblock{Magic: SuperblockMagic, Geometry: g, JNodes: jnodes}
}

func (sb *Superblock) encodedSize() uint32 {
	return 4 + 4 + 4 + 4 + sb.Geometry.NumJNodes()*InodeSize
}

// EncodeSuperblock serializes sb into buf, which must be at least
// sb.Geometry.BlockSize bytes (the rest of the block is left untouched, in
// the style of the reference's oversized fixed-size superblock union).
func EncodeSuperblock(sb *Superblock, buf []byte) {
	putU32(buf[0:4], sb.Magic)
	putU32(buf[4:8], sb.Geometry.BlockSize)
	putU32(buf[8:12], sb.Geometry.NumBlocks)
	putU32(buf[12:16], sb.Geometry.NumInodes)
	off := 16
	for i := range sb.JNodes {
		EncodeInode(&sb.JNodes[i], buf[off:off+InodeSize])
		off += InodeSize
	}
}

// DecodeSuperblock populates sb from buf, deriving NumShadow from the
// caller-supplied expected geometry (the shadow count is not itself encoded
// on disk; it is implied by MaxDirs, which callers must already know to
// have opened the image with the right geometry).
func DecodeSuperblock(sb *Superblock, buf []byte, numShadow uint32) error {
	magic := getU32(buf[0:4])
	if magic != SuperblockMagic {
		return fmt.Errorf(
			"decoding superblock: bad magic `%#x`: %w", magic, ErrCorrupt,
		)
	}
	g := Geometry{
		BlockSize: getU32(buf[4:8]),
		NumBlocks: getU32(buf[8:12]),
		NumInodes: getU32(buf[12:16]),
		NumShadow: numShadow,
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("decoding superblock: %w: %w", err, ErrCorrupt)
	}
	jnodes := make([]Inode, g.NumJNodes())
	off := 16
	for i := range jnodes {
		DecodeInode(&jnodes[i], buf[off:off+InodeSize])
		off += InodeSize
	}
	*sb = Superblock{Magic: magic, Geometry: g, JNodes: jnodes}
	return nil
}
