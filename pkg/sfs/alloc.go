package sfs

import "fmt"

// allocBlock scans the data region for the first free block, marks it
// allocated in both the free bitmap and the write mask (kept in lockstep
// per spec.md §4.1), and returns its block number. Grounded on the
// reference's get_free_block / the teacher's fs/pkg/alloc/bitmap.go Alloc.
func (fs *FileSystem) allocBlock() (uint32, error) {
	b, ok := fs.FreeBitmap.FirstSet(fs.Geometry.FirstDataBlock(), fs.Geometry.LastDataBlock())
	if !ok {
		return 0, fmt.Errorf("allocating block: %w", ErrNoFreeBlock)
	}
	fs.FreeBitmap.Clear(b)
	fs.WriteMask.Clear(b)
	return b, nil
}

// freeBlock marks b free in both bitmaps.
func (fs *FileSystem) freeBlock(b uint32) {
	fs.FreeBitmap.Set(b)
	fs.WriteMask.Set(b)
}

// allocInode scans the inode file for the first free inode (Direct[0] == 0)
// and returns its global inode number. The inode is not yet marked in-use;
// per spec.md §4.2 it becomes in-use as soon as the caller assigns
// Direct[0].
func (fs *FileSystem) allocInode() (uint32, error) {
	for i := range fs.InodeFile {
		if fs.InodeFile[i].IsFree() {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("allocating inode: %w", ErrInodeTableFull)
}
