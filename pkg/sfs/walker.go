package sfs

import "fmt"

// readIndirectBlock loads the indirect block at blockNum, consulting the
// cache first (SPEC_FULL.md §4.10).
func (fs *FileSystem) readIndirectBlock(blockNum uint32) (IndirectBlock, error) {
	if ib, ok := fs.indirectCache.Get(blockNum); ok {
		return ib, nil
	}
	ib := NewIndirectBlock(fs.Geometry)
	buf := make([]byte, fs.Geometry.BlockSize)
	if err := fs.Device.ReadBlocks(blockNum, 1, buf); err != nil {
		return ib, fmt.Errorf(
			"reading indirect block `%d`: %w", blockNum, wrapIo(err),
		)
	}
	DecodeIndirectBlock(&ib, buf)
	fs.indirectCache.Put(blockNum, ib)
	return ib, nil
}

// writeIndirectBlock flushes ib to blockNum immediately, per spec.md §4.3's
// rule that indirect-block mutations are never deferred, and refreshes the
// cache entry.
func (fs *FileSystem) writeIndirectBlock(blockNum uint32, ib IndirectBlock) error {
	buf := make([]byte, fs.Geometry.BlockSize)
	EncodeIndirectBlock(&ib, buf)
	if err := fs.Device.WriteBlocks(blockNum, 1, buf); err != nil {
		return fmt.Errorf(
			"writing indirect block `%d`: %w", blockNum, wrapIo(err),
		)
	}
	fs.indirectCache.Put(blockNum, ib)
	return nil
}

// blockCount is block_count(I): the number of nonzero direct pointers plus,
// if an indirect block is present, its nonzero entries (spec.md §4.3).
func (fs *FileSystem) blockCount(n *Inode) (uint32, error) {
	count := uint32(0)
	for _, p := range n.Direct {
		if p == 0 {
			return count, nil
		}
		count++
	}
	if n.Indirect == 0 {
		return count, nil
	}
	ib, err := fs.readIndirectBlock(n.Indirect)
	if err != nil {
		return 0, fmt.Errorf("counting blocks: %w", err)
	}
	for _, p := range ib.Pointers {
		if p == 0 {
			break
		}
		count++
	}
	return count, nil
}

// nthBlock is nth_block(I, k): 0 means absent (spec.md §4.3).
func (fs *FileSystem) nthBlock(n *Inode, k uint32) (uint32, error) {
	if k < NumPointersDirect {
		return n.Direct[k], nil
	}
	if n.Indirect == 0 {
		return 0, nil
	}
	ib, err := fs.readIndirectBlock(n.Indirect)
	if err != nil {
		return 0, fmt.Errorf("locating block `%d`: %w", k, err)
	}
	idx := k - NumPointersDirect
	if idx >= uint32(len(ib.Pointers)) {
		return 0, nil
	}
	return ib.Pointers[idx], nil
}

// lastBlock is last_block(I): the last nonzero pointer in the chain, or 0
// if the file has no blocks at all (which cannot happen for an open file,
// since fopen always allocates one initial block).
func (fs *FileSystem) lastBlock(n *Inode) (uint32, error) {
	last := uint32(0)
	for _, p := range n.Direct {
		if p == 0 {
			return last, nil
		}
		last = p
	}
	if n.Indirect == 0 {
		return last, nil
	}
	ib, err := fs.readIndirectBlock(n.Indirect)
	if err != nil {
		return 0, fmt.Errorf("locating last block: %w", err)
	}
	for _, p := range ib.Pointers {
		if p == 0 {
			return last, nil
		}
		last = p
	}
	return last, nil
}

// nextBlockAfter is next_block_after(I, b): the pointer following the one
// equal to b, or (0, false) if b is the last block in the chain.
func (fs *FileSystem) nextBlockAfter(n *Inode, b uint32) (uint32, bool, error) {
	for i, p := range n.Direct {
		if p != b {
			continue
		}
		if i+1 < NumPointersDirect {
			if n.Direct[i+1] != 0 {
				return n.Direct[i+1], true, nil
			}
			return 0, false, nil
		}
		return fs.firstIndirectPointer(n)
	}
	if n.Indirect == 0 {
		return 0, false, nil
	}
	ib, err := fs.readIndirectBlock(n.Indirect)
	if err != nil {
		return 0, false, fmt.Errorf("locating block after `%d`: %w", b, err)
	}
	for i, p := range ib.Pointers {
		if p != b {
			continue
		}
		if i+1 < len(ib.Pointers) && ib.Pointers[i+1] != 0 {
			return ib.Pointers[i+1], true, nil
		}
		return 0, false, nil
	}
	return 0, false, fmt.Errorf(
		"locating block after `%d`: block not present in inode chain: %w",
		b, ErrInvalidArgument,
	)
}

func (fs *FileSystem) firstIndirectPointer(n *Inode) (uint32, bool, error) {
	if n.Indirect == 0 {
		return 0, false, nil
	}
	ib, err := fs.readIndirectBlock(n.Indirect)
	if err != nil {
		return 0, false, fmt.Errorf("locating first indirect pointer: %w", err)
	}
	if len(ib.Pointers) == 0 || ib.Pointers[0] == 0 {
		return 0, false, nil
	}
	return ib.Pointers[0], true, nil
}

// endByte is end_byte(I) = size mod BS, with the special rule from
// spec.md §4.3: when size equals block count * BS, the file's end sits at
// the very end of the last block (BS), not at 0.
func (fs *FileSystem) endByte(n *Inode) (uint32, error) {
	bs := fs.Geometry.BlockSize
	size := uint32(n.Size)
	end := size % bs
	if end == 0 {
		count, err := fs.blockCount(n)
		if err != nil {
			return 0, err
		}
		if size == count*bs {
			end = bs
		}
	}
	return end, nil
}

// appendBlock is append_block(I): allocate a new data block and place it in
// the first free slot of the pointer chain, allocating an indirect block if
// direct capacity is exhausted (spec.md §4.3). On any failure partway
// through, already-allocated blocks are released before returning.
func (fs *FileSystem) appendBlock(n *Inode) (uint32, error) {
	b, err := fs.allocBlock()
	if err != nil {
		return 0, fmt.Errorf("appending block: %w", err)
	}

	for i := range n.Direct {
		if n.Direct[i] == 0 {
			n.Direct[i] = b
			return b, nil
		}
	}

	if n.Indirect == 0 {
		ib, err := fs.allocBlock()
		if err != nil {
			fs.freeBlock(b)
			return 0, fmt.Errorf("appending block: allocating indirect block: %w", err)
		}
		block := NewIndirectBlock(fs.Geometry)
		block.Pointers[0] = b
		if err := fs.writeIndirectBlock(ib, block); err != nil {
			fs.freeBlock(b)
			fs.freeBlock(ib)
			return 0, fmt.Errorf("appending block: %w", err)
		}
		n.Indirect = ib
		return b, nil
	}

	ib, err := fs.readIndirectBlock(n.Indirect)
	if err != nil {
		fs.freeBlock(b)
		return 0, fmt.Errorf("appending block: %w", err)
	}
	for i := range ib.Pointers {
		if ib.Pointers[i] == 0 {
			ib.Pointers[i] = b
			if err := fs.writeIndirectBlock(n.Indirect, ib); err != nil {
				fs.freeBlock(b)
				return 0, fmt.Errorf("appending block: %w", err)
			}
			return b, nil
		}
	}

	fs.freeBlock(b)
	return 0, fmt.Errorf("appending block: %w", ErrPointerListExhausted)
}

func wrapIo(err error) error {
	return fmt.Errorf("%v: %w", err, ErrIoFailure)
}
