package sfs

import "fmt"

// FRead reads up to len(p) bytes starting at fd's read cursor, advancing it
// by the number of bytes actually read, and returns that count. Reading
// never extends the file: the read stops at the size the file had when the
// call began (spec.md §4.5), so a concurrent write on the same fd cannot
// make a single FRead call see more than it started with.
func (fs *FileSystem) FRead(fd int, p []byte) (int, error) {
	of, err := fs.checkFd(fd)
	if err != nil {
		return 0, fmt.Errorf("reading fd %d: %w", fd, err)
	}
	n := &fs.InodeFile[of.Inode]
	limit := uint32(n.Size)
	bs := fs.Geometry.BlockSize

	read := 0
	pos := of.ReadPos
	for read < len(p) && pos < limit {
		k := pos / bs
		off := pos % bs
		block, err := fs.nthBlock(n, k)
		if err != nil {
			return read, fmt.Errorf("reading fd %d: %w", fd, err)
		}
		if block == 0 {
			break
		}
		buf := make([]byte, bs)
		if err := fs.Device.ReadBlocks(block, 1, buf); err != nil {
			return read, fmt.Errorf("reading fd %d: %w", fd, wrapIo(err))
		}
		n2 := copy(p[read:], buf[off:])
		if remain := limit - pos; uint32(n2) > remain {
			n2 = int(remain)
		}
		read += n2
		pos += uint32(n2)
	}
	of.ReadPos = pos
	return read, nil
}

// FWrite writes len(p) bytes starting at fd's write cursor, extending the
// file and allocating new blocks as needed, and advances the cursor by the
// number of bytes written. Size grows only past the file's length as it
// stood when the call began (spec.md §4.5): overwriting existing bytes
// never changes size, and appended bytes extend it by exactly the amount
// written past that starting length.
func (fs *FileSystem) FWrite(fd int, p []byte) (int, error) {
	of, err := fs.checkFd(fd)
	if err != nil {
		return 0, fmt.Errorf("writing fd %d: %w", fd, err)
	}
	n := &fs.InodeFile[of.Inode]
	bs := fs.Geometry.BlockSize
	startSize := uint32(n.Size)

	written := 0
	pos := of.WritePos
	for written < len(p) {
		k := pos / bs
		off := pos % bs
		block, err := fs.nthBlock(n, k)
		if err != nil {
			return written, fmt.Errorf("writing fd %d: %w", fd, err)
		}
		if block == 0 {
			block, err = fs.appendBlock(n)
			if err != nil {
				return written, fmt.Errorf("writing fd %d: %w", fd, err)
			}
		}
		buf := make([]byte, bs)
		if off != 0 || len(p)-written < int(bs) {
			if err := fs.Device.ReadBlocks(block, 1, buf); err != nil {
				return written, fmt.Errorf("writing fd %d: %w", fd, wrapIo(err))
			}
		}
		nCopied := copy(buf[off:], p[written:])
		if err := fs.Device.WriteBlocks(block, 1, buf); err != nil {
			return written, fmt.Errorf("writing fd %d: %w", fd, wrapIo(err))
		}
		written += nCopied
		pos += uint32(nCopied)
		if pos > startSize && pos > uint32(n.Size) {
			n.Size = int32(pos)
		}
	}
	of.WritePos = pos

	if err := fs.flushMeta(); err != nil {
		return written, fmt.Errorf("writing fd %d: %w", fd, err)
	}
	return written, nil
}

// GetFileSize returns the current byte size of name in the live directory.
func (fs *FileSystem) GetFileSize(name string) (int32, error) {
	slot, ok := fs.Dirs[0].Lookup(name)
	if !ok {
		return 0, fmt.Errorf("getting size of `%s`: %w", name, ErrNotFound)
	}
	return fs.InodeFile[fs.Dirs[0].Entries[slot].Ino].Size, nil
}
