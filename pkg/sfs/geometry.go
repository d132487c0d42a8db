package sfs

import "fmt"

// Geometry fixes the sizes named in spec.md §3.1: block size, block count,
// inode count, and shadow depth. Everything else (region boundaries, inode
// size, blocks-per-inode-file) is derived from these four numbers, in the
// style of the teacher's fs/pkg/fs/superblock.go derived-offset methods.
type Geometry struct {
	BlockSize uint32 // BS
	NumBlocks uint32 // NB
	NumInodes uint32 // N_INODES
	NumShadow uint32 // N_SHADOW
}

const (
	// NumPointersDirect is N_PTR_DIRECT.
	NumPointersDirect = 14
	// PointerSize is PTR_SIZE, the on-disk width of a block pointer.
	PointerSize = 4
	// NameMax is the longest a file name may be.
	NameMax = 20
	// MaxFD is the number of open-file-table slots.
	MaxFD = 32
)

// DefaultGeometry matches spec.md §3.1's stated defaults.
var DefaultGeometry = Geometry{
	BlockSize: 1024,
	NumBlocks: 1024,
	NumInodes: 200,
	NumShadow: 4,
}

// InodeSize is INODE_SIZE = (N_PTR_DIRECT + 2) * PTR_SIZE: one size field,
// N_PTR_DIRECT direct pointers, one indirect pointer.
const InodeSize = (NumPointersDirect + 2) * PointerSize

// MaxDirs is MAX_DIRS = N_SHADOW + 1 (the live slot plus every shadow).
func (g Geometry) MaxDirs() uint32 { return g.NumShadow + 1 }

// BlocksIFile is BLOCKS_IFILE = ceil(N_INODES * INODE_SIZE / BS).
func (g Geometry) BlocksIFile() uint32 {
	total := g.NumInodes * InodeSize
	return (total + g.BlockSize - 1) / g.BlockSize
}

// InodesPerBlock is how many packed inode records fit in one block.
func (g Geometry) InodesPerBlock() uint32 { return g.BlockSize / InodeSize }

// PointersPerBlock is how many 4-byte pointers fit in one indirect block.
func (g Geometry) PointersPerBlock() uint32 { return g.BlockSize / PointerSize }

// FirstDataBlock is FIRST_DATA = 1 + BLOCKS_IFILE.
func (g Geometry) FirstDataBlock() uint32 { return 1 + g.BlocksIFile() }

// LastDataBlock is the last block of the data region (inclusive): NB - 3 -
// MAX_DIRS, the block just below the oldest shadow slot at NB - 2 - MAX_DIRS,
// so no data block ever shares a block with a directory slot.
func (g Geometry) LastDataBlock() uint32 { return g.NumBlocks - 3 - g.MaxDirs() }

// DirSlotBlock returns the block holding directory slot i (0 = live,
// 1..NumShadow = shadows, 1 most recent), per the block-assignment table in
// spec.md §3.1 / §6.2: slots occupy [NB-2-MAX_DIRS, NB-3] with slot 0
// nearest the bitmaps.
func (g Geometry) DirSlotBlock(slot uint32) uint32 {
	return g.NumBlocks - 3 - slot
}

// FreeBitmapBlock is block NB-2.
func (g Geometry) FreeBitmapBlock() uint32 { return g.NumBlocks - 2 }

// WriteMaskBlock is block NB-1.
func (g Geometry) WriteMaskBlock() uint32 { return g.NumBlocks - 1 }

// NumJNodes is the number of j-nodes that fit in the superblock alongside
// its four geometry fields (magic, block size, num blocks, num inodes),
// mirroring the original's NUMBER_OF_J_NODES layout.
func (g Geometry) NumJNodes() uint32 {
	header := uint32(4 * 4) // magic, block_size, num_blocks, num_i_nodes
	return (g.BlockSize - header) / InodeSize
}

// Validate checks that the geometry is internally consistent and large
// enough to hold its own metadata regions.
func (g Geometry) Validate() error {
	if g.BlockSize == 0 || g.NumBlocks == 0 || g.NumInodes == 0 {
		return fmt.Errorf("validating geometry: fields must be nonzero: %w", ErrInvalidArgument)
	}
	if g.MaxDirs() > g.NumJNodes() {
		return fmt.Errorf(
			"validating geometry: superblock cannot hold one j-node per directory slot: %w",
			ErrInvalidArgument,
		)
	}
	if g.FirstDataBlock() > g.LastDataBlock() {
		return fmt.Errorf(
			"validating geometry: inode file and reserved trailer overlap, no data region left: %w",
			ErrInvalidArgument,
		)
	}
	return nil
}
