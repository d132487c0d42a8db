package sfs

import "fmt"

// Remove deletes name from the live directory: every block it owns
// (direct and indirect) is freed, its inode is reinitialized to the
// canonical free state, its directory entry is cleared, and any open-file
// table entries holding that name are dropped (spec.md §4.7). Removal
// touches only slot 0; shadow slots are immutable snapshots and are
// unaffected until the next commit rotates them.
func (fs *FileSystem) Remove(name string) error {
	live := &fs.Dirs[0]
	slot, ok := live.Lookup(name)
	if !ok {
		return fmt.Errorf("removing `%s`: %w", name, ErrNotFound)
	}
	ino := live.Entries[slot].Ino

	if err := fs.freeInodeBlocks(ino); err != nil {
		return fmt.Errorf("removing `%s`: %w", name, err)
	}
	fs.InodeFile[ino] = freeInode()
	live.Entries[slot] = DirEntry{}

	for i := range fs.OpenFiles {
		if fs.OpenFiles[i].InUse && fs.OpenFiles[i].Name == name {
			fs.OpenFiles[i] = OpenFile{}
		}
	}

	if err := fs.flushAll(); err != nil {
		return fmt.Errorf("removing `%s`: %w", name, err)
	}
	return nil
}

// freeInodeBlocks releases every direct and indirect data block owned by
// inode ino, then the indirect block itself if present, invalidating any
// cached copy of it.
func (fs *FileSystem) freeInodeBlocks(ino uint32) error {
	return fs.freeBlocksOf(&fs.InodeFile[ino])
}

// freeBlocksOf releases every block referenced by n, direct and indirect,
// without regard for whether n is currently linked into the inode file. It
// is used both by Remove (n already resident in the inode file) and by the
// shadow engine's rollback path (n a detached Inode value that never made
// it into a directory).
func (fs *FileSystem) freeBlocksOf(n *Inode) error {
	for _, p := range n.Direct {
		if p == 0 {
			break
		}
		fs.freeBlock(p)
	}
	if n.Indirect == 0 {
		return nil
	}
	ib, err := fs.readIndirectBlock(n.Indirect)
	if err != nil {
		return fmt.Errorf("freeing indirect chain: %w", err)
	}
	for _, p := range ib.Pointers {
		if p == 0 {
			break
		}
		fs.freeBlock(p)
	}
	fs.freeBlock(n.Indirect)
	fs.indirectCache.Invalidate(n.Indirect)
	return nil
}
