package blockdev

// Memory is an in-memory Device backed by a flat byte slice, analogous to
// the reference emulator's init_fresh_disk when no durability is required.
// Grounded on the teacher's fs/pkg/io/buffer.go Buffer.
type Memory struct {
	blockSize uint32
	numBlocks uint32
	data      []byte
	closed    bool
}

// NewMemory allocates a fresh, zero-filled in-memory device.
func NewMemory(blockSize, numBlocks uint32) *Memory {
	return &Memory{
		blockSize: blockSize,
		numBlocks: numBlocks,
		data:      make([]byte, uint64(blockSize)*uint64(numBlocks)),
	}
}

func (m *Memory) BlockSize() uint32 { return m.blockSize }
func (m *Memory) NumBlocks() uint32 { return m.numBlocks }

func (m *Memory) ReadBlocks(start, count uint32, buf []byte) error {
	if m.closed {
		return closedErr("reading blocks")
	}
	if err := checkRange(m, start, count, buf); err != nil {
		return err
	}
	off := uint64(start) * uint64(m.blockSize)
	copy(buf, m.data[off:off+uint64(len(buf))])
	return nil
}

func (m *Memory) WriteBlocks(start, count uint32, buf []byte) error {
	if m.closed {
		return closedErr("writing blocks")
	}
	if err := checkRange(m, start, count, buf); err != nil {
		return err
	}
	off := uint64(start) * uint64(m.blockSize)
	copy(m.data[off:off+uint64(len(buf))], buf)
	return nil
}

func (m *Memory) Close() error {
	m.closed = true
	return nil
}
