package sfs

import (
	"context"
	"fmt"
)

// Commit snapshots the live directory into the shadow FIFO (spec.md §4.8):
// slot N_SHADOW is freed and dropped, every shadow slot shifts down by one
// (slot i's contents move to slot i+1, for i counting down from
// N_SHADOW-1 through 0 — the reference's directory[i]=directory[i-1] loop,
// which folds the just-committed live directory into slot 1 along with the
// older shadows), and a fresh slot 0 is built as a deep copy of the new
// slot 1 so that later edits to the live directory never mutate history.
func (fs *FileSystem) Commit(ctx context.Context) error {
	g := fs.Geometry
	last := g.MaxDirs() - 1

	if err := fs.freeDirectory(last); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	fs.Dirs[last].Clear()

	for i := last; i > 0; i-- {
		fs.Dirs[i] = fs.Dirs[i-1]
	}

	fs.Dirs[0] = NewDirectory(g)
	if err := fs.deepCopyDirectory(&fs.Dirs[0], &fs.Dirs[1]); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	if err := fs.flushAll(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	fs.archiveSlot(ctx, 1)
	fs.recordCommit(ctx)
	return nil
}

// Restore replaces the live directory with a deep copy of shadow slot k
// (spec.md §4.8). k == 0 is a documented no-op. If the allocator runs out
// of space partway through the copy, whatever partial entries restore
// managed to create in slot 0 are torn back down and ErrRestoreIncomplete
// is returned (SPEC_FULL.md §7, spec.md §9 open question 1) — this mirrors
// the reference's FAILED: rollback label in restore_shadow_directory,
// generalized to remove every entry created so far rather than just the
// one in flight.
func (fs *FileSystem) Restore(ctx context.Context, k uint32) error {
	if k == 0 {
		return nil
	}
	if k >= fs.Geometry.MaxDirs() {
		return fmt.Errorf(
			"restoring slot %d: must be in 1..%d: %w", k, fs.Geometry.MaxDirs()-1, ErrInvalidArgument,
		)
	}

	if err := fs.freeDirectory(0); err != nil {
		return fmt.Errorf("restoring slot %d: %w", k, err)
	}
	fs.Dirs[0] = NewDirectory(fs.Geometry)

	if err := fs.deepCopyDirectory(&fs.Dirs[0], &fs.Dirs[k]); err != nil {
		if flushErr := fs.flushAll(); flushErr != nil {
			return fmt.Errorf("restoring slot %d: %w", k, flushErr)
		}
		return fmt.Errorf("restoring slot %d: %w", k, err)
	}

	if err := fs.flushAll(); err != nil {
		return fmt.Errorf("restoring slot %d: %w", k, err)
	}

	fs.recordRestore(ctx, k)
	return nil
}

// freeDirectory releases every file in dir slot's blocks and inodes and
// clears its entries, the same per-entry teardown Remove performs on the
// live directory but targeted at any slot (spec.md §4.8 step 1).
func (fs *FileSystem) freeDirectory(slot uint32) error {
	dir := &fs.Dirs[slot]
	for i := range dir.Entries {
		if dir.Entries[i].empty() {
			continue
		}
		ino := dir.Entries[i].Ino
		if err := fs.freeInodeBlocks(ino); err != nil {
			return fmt.Errorf("freeing directory slot %d: %w", slot, err)
		}
		fs.InodeFile[ino] = freeInode()
		dir.Entries[i] = DirEntry{}
	}
	return nil
}

// deepCopyDirectory populates dst (assumed already empty) with a fresh
// inode and freshly allocated, byte-copied blocks for every entry in src.
// On any failure it tears back down whatever it had already created in dst
// and returns an error wrapping ErrRestoreIncomplete.
func (fs *FileSystem) deepCopyDirectory(dst, src *Directory) error {
	for i := range src.Entries {
		if src.Entries[i].empty() {
			continue
		}
		name := src.Entries[i].nameString()
		srcIno := &fs.InodeFile[src.Entries[i].Ino]

		copied, err := fs.deepCopyInode(srcIno)
		if err != nil {
			fs.rollbackPartialCopy(dst)
			return fmt.Errorf("copying `%s`: %w: %w", name, err, ErrRestoreIncomplete)
		}

		newIno, err := fs.allocInode()
		if err != nil {
			fs.freeBlocksOf(&copied)
			fs.rollbackPartialCopy(dst)
			return fmt.Errorf("copying `%s`: %w: %w", name, err, ErrRestoreIncomplete)
		}
		slot, ok := dst.FirstEmpty()
		if !ok {
			fs.freeBlocksOf(&copied)
			fs.rollbackPartialCopy(dst)
			return fmt.Errorf("copying `%s`: %w: %w", name, ErrDirectoryFull, ErrRestoreIncomplete)
		}

		fs.InodeFile[newIno] = copied
		if err := dst.Entries[slot].setName(name); err != nil {
			fs.InodeFile[newIno] = freeInode()
			fs.freeBlocksOf(&copied)
			fs.rollbackPartialCopy(dst)
			return fmt.Errorf("copying `%s`: %w: %w", name, err, ErrRestoreIncomplete)
		}
		dst.Entries[slot].Ino = newIno
	}
	return nil
}

// rollbackPartialCopy tears down every entry deepCopyDirectory had already
// installed into dst before the failure, returning dst to empty.
func (fs *FileSystem) rollbackPartialCopy(dst *Directory) {
	for i := range dst.Entries {
		if dst.Entries[i].empty() {
			continue
		}
		ino := dst.Entries[i].Ino
		fs.freeBlocksOf(&fs.InodeFile[ino])
		fs.InodeFile[ino] = freeInode()
		dst.Entries[i] = DirEntry{}
	}
}

// deepCopyInode builds a detached Inode with the same size as src but
// freshly allocated blocks holding byte-for-byte copies of src's contents.
// The returned Inode is not yet linked into the inode file or any
// directory; on any allocation or I/O failure, blocks it had already
// claimed are released before returning.
func (fs *FileSystem) deepCopyInode(src *Inode) (Inode, error) {
	dst := Inode{Size: src.Size}
	var claimed []uint32
	rollback := func() {
		for _, b := range claimed {
			fs.freeBlock(b)
		}
	}

	for i, p := range src.Direct {
		if p == 0 {
			break
		}
		nb, err := fs.allocBlock()
		if err != nil {
			rollback()
			return Inode{}, err
		}
		claimed = append(claimed, nb)
		if err := fs.copyBlock(p, nb); err != nil {
			rollback()
			return Inode{}, err
		}
		dst.Direct[i] = nb
	}

	if src.Indirect == 0 {
		return dst, nil
	}

	srcIb, err := fs.readIndirectBlock(src.Indirect)
	if err != nil {
		rollback()
		return Inode{}, err
	}
	dstIb := NewIndirectBlock(fs.Geometry)
	for i, p := range srcIb.Pointers {
		if p == 0 {
			break
		}
		nb, err := fs.allocBlock()
		if err != nil {
			rollback()
			return Inode{}, err
		}
		claimed = append(claimed, nb)
		if err := fs.copyBlock(p, nb); err != nil {
			rollback()
			return Inode{}, err
		}
		dstIb.Pointers[i] = nb
	}

	indBlk, err := fs.allocBlock()
	if err != nil {
		rollback()
		return Inode{}, err
	}
	claimed = append(claimed, indBlk)
	if err := fs.writeIndirectBlock(indBlk, dstIb); err != nil {
		rollback()
		return Inode{}, err
	}
	dst.Indirect = indBlk
	return dst, nil
}

// copyBlock byte-copies the contents of src into dst.
func (fs *FileSystem) copyBlock(src, dst uint32) error {
	buf := make([]byte, fs.Geometry.BlockSize)
	if err := fs.Device.ReadBlocks(src, 1, buf); err != nil {
		return fmt.Errorf("copying block `%d`: %w", src, wrapIo(err))
	}
	if err := fs.Device.WriteBlocks(dst, 1, buf); err != nil {
		return fmt.Errorf("copying block `%d` to `%d`: %w", src, dst, wrapIo(err))
	}
	return nil
}

// archiveSlot ships slot's encoded directory block off-device via the
// optional Archiver hook. Best-effort: failures are logged, never returned
// (SPEC_FULL.md §4.12).
func (fs *FileSystem) archiveSlot(ctx context.Context, slot uint32) {
	if fs.Archiver == nil {
		return
	}
	buf := make([]byte, fs.Geometry.BlockSize)
	EncodeDirectory(&fs.Dirs[slot], buf)
	if err := fs.Archiver.ArchiveSnapshot(ctx, fs.DiskID, slot, buf); err != nil {
		fs.logger().Warn("archiving snapshot failed", "disk", fs.DiskID, "slot", slot, "err", err)
	}
}

func (fs *FileSystem) recordCommit(ctx context.Context) {
	if fs.Journal == nil {
		return
	}
	if err := fs.Journal.RecordCommit(ctx, fs.DiskID, 1); err != nil {
		fs.logger().Warn("recording commit failed", "disk", fs.DiskID, "err", err)
	}
}

func (fs *FileSystem) recordRestore(ctx context.Context, fromSlot uint32) {
	if fs.Journal == nil {
		return
	}
	if err := fs.Journal.RecordRestore(ctx, fs.DiskID, fromSlot); err != nil {
		fs.logger().Warn("recording restore failed", "disk", fs.DiskID, "err", err)
	}
}
