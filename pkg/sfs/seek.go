package sfs

import "fmt"

// seekValid implements spec.md §4.6's validity rule: convert the byte
// offset to (block, offset) by indexing the inode's pointer chain. The
// seek is invalid if the containing block doesn't exist, or, when that
// block is the file's last block, if offset exceeds the block's end byte.
// Notably this rejects a seek to a byte offset that lands exactly on an
// unallocated block boundary even when that offset equals the file's
// size (e.g. size == BlockSize with only the first block allocated): the
// "next" block the offset would index was never appended.
func (fs *FileSystem) seekValid(n *Inode, loc uint32) (bool, error) {
	bs := fs.Geometry.BlockSize
	block := loc / bs
	offset := loc % bs

	blk, err := fs.nthBlock(n, block)
	if err != nil {
		return false, fmt.Errorf("locating block for offset %d: %w", loc, err)
	}
	if blk == 0 {
		return false, nil
	}

	last, err := fs.lastBlock(n)
	if err != nil {
		return false, fmt.Errorf("locating last block: %w", err)
	}
	if blk != last {
		return true, nil
	}

	end, err := fs.endByte(n)
	if err != nil {
		return false, fmt.Errorf("locating end byte: %w", err)
	}
	return offset <= end, nil
}

// FRSeek repositions fd's read cursor to loc bytes from the start of the
// file. Seeking never autoextends (spec.md §4.6): the containing block
// must already exist, and if it's the file's last block, loc may not land
// past that block's end byte.
func (fs *FileSystem) FRSeek(fd int, loc uint32) error {
	of, err := fs.checkFd(fd)
	if err != nil {
		return fmt.Errorf("seeking read fd %d: %w", fd, err)
	}
	n := &fs.InodeFile[of.Inode]
	ok, err := fs.seekValid(n, loc)
	if err != nil {
		return fmt.Errorf("seeking read fd %d to %d: %w", fd, loc, err)
	}
	if !ok {
		return fmt.Errorf(
			"seeking read fd %d to %d: no such block in file: %w", fd, loc, ErrInvalidArgument,
		)
	}
	of.ReadPos = loc
	return nil
}

// FWSeek repositions fd's write cursor. Like FRSeek, it never autoextends;
// extension only happens as a side effect of FWrite.
func (fs *FileSystem) FWSeek(fd int, loc uint32) error {
	of, err := fs.checkFd(fd)
	if err != nil {
		return fmt.Errorf("seeking write fd %d: %w", fd, err)
	}
	n := &fs.InodeFile[of.Inode]
	ok, err := fs.seekValid(n, loc)
	if err != nil {
		return fmt.Errorf("seeking write fd %d to %d: %w", fd, loc, err)
	}
	if !ok {
		return fmt.Errorf(
			"seeking write fd %d to %d: no such block in file: %w", fd, loc, ErrInvalidArgument,
		)
	}
	of.WritePos = loc
	return nil
}
