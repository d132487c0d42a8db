package sfs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weberc2/shadowfs/pkg/blockdev"
)

// Archiver is the optional post-commit hook that ships a snapshot's raw
// directory block off-device (SPEC_FULL.md §4.12). Implemented by
// pkg/archive against S3; nil disables archiving entirely.
type Archiver interface {
	ArchiveSnapshot(ctx context.Context, diskID string, slot uint32, dir []byte) error
}

// Journal is the optional commit/restore audit hook (SPEC_FULL.md §4.13).
// Implemented by pkg/journal against Postgres; nil disables journaling.
type Journal interface {
	RecordCommit(ctx context.Context, diskID string, slot uint32) error
	RecordRestore(ctx context.Context, diskID string, fromSlot uint32) error
}

// OpenFile is one MaxFD-table entry: the inode it names and its two
// independent byte-offset cursors (spec.md §4.4). Cursor positions are
// tracked as absolute byte offsets rather than the spec pseudocode's
// (block, offset) pairs; the two are interconvertible via nthBlock/endByte
// and the byte-offset form composes more naturally with Go's io idioms
// (SPEC_FULL.md §9 open question resolution).
type OpenFile struct {
	InUse    bool
	Name     string
	Inode    uint32
	ReadPos  uint32
	WritePos uint32
}

// FileSystem is the single in-memory image described by spec.md §2: one
// mounted disk, its superblock, its fully-resident inode file, its live and
// shadow directories, both bitmaps, and the open-file table. There is
// exactly one FileSystem per mounted device; concurrent use is the caller's
// responsibility (spec.md §5).
type FileSystem struct {
	Device     blockdev.Device
	Geometry   Geometry
	Superblock Superblock
	InodeFile  []Inode
	Dirs       []Directory
	FreeBitmap Bitmap
	WriteMask  Bitmap
	OpenFiles  [MaxFD]OpenFile

	indirectCache indirectCache
	enumCursor    int

	DiskID   string
	Archiver Archiver
	Journal  Journal
	Logger   *slog.Logger
}

// indirectCacheCapacity bounds the resident indirect-block cache. It is a
// fixed count that does not scale with the geometry, the inode count or the
// data region (SPEC_FULL.md §4.10).
const indirectCacheCapacity = 32

// Format initializes a fresh image on dev per g and returns a mounted
// FileSystem, mirroring the reference's init_fresh_disk plus
// init_super_block/init_file_system sequence.
func Format(dev blockdev.Device, g Geometry, opts ...Option) (*FileSystem, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("formatting: %w", err)
	}
	if dev.BlockSize() != g.BlockSize || dev.NumBlocks() != g.NumBlocks {
		return nil, fmt.Errorf(
			"formatting: device geometry [%d x %d] does not match requested [%d x %d]: %w",
			dev.BlockSize(), dev.NumBlocks(), g.BlockSize, g.NumBlocks, ErrInvalidArgument,
		)
	}

	fs := newFileSystem(dev, g)
	for _, opt := range opts {
		opt(fs)
	}

	sb := NewSuperblock(g)
	fs.Superblock = sb

	fs.InodeFile = make([]Inode, g.NumInodes)
	for i := range fs.InodeFile {
		fs.InodeFile[i] = freeInode()
	}

	fs.Dirs = make([]Directory, g.MaxDirs())
	for i := range fs.Dirs {
		fs.Dirs[i] = NewDirectory(g)
	}

	fs.FreeBitmap = NewBitmap(g.NumBlocks)
	fs.WriteMask = NewBitmap(g.NumBlocks)
	for b := uint32(0); b < g.FirstDataBlock(); b++ {
		fs.FreeBitmap.Clear(b)
		fs.WriteMask.Clear(b)
	}
	for b := g.LastDataBlock() + 1; b < g.NumBlocks; b++ {
		fs.FreeBitmap.Clear(b)
		fs.WriteMask.Clear(b)
	}

	if err := fs.flushAll(); err != nil {
		return nil, fmt.Errorf("formatting: %w", err)
	}
	fs.logger().Info("formatted", "disk", fs.DiskID, "blocks", g.NumBlocks, "inodes", g.NumInodes)
	return fs, nil
}

// Mount reads an existing image off dev and validates it against expected
// geometry constraints implied by numShadow (the shadow count is not
// itself stored on disk; see DecodeSuperblock).
func Mount(dev blockdev.Device, numShadow uint32, opts ...Option) (*FileSystem, error) {
	blockBuf := make([]byte, dev.BlockSize())
	if err := dev.ReadBlocks(0, 1, blockBuf); err != nil {
		return nil, fmt.Errorf("mounting: reading superblock: %w", wrapIo(err))
	}
	var sb Superblock
	if err := DecodeSuperblock(&sb, blockBuf, numShadow); err != nil {
		return nil, fmt.Errorf("mounting: %w", err)
	}
	g := sb.Geometry

	fs := newFileSystem(dev, g)
	fs.Superblock = sb
	for _, opt := range opts {
		opt(fs)
	}

	fs.InodeFile = make([]Inode, g.NumInodes)
	ibuf := make([]byte, g.BlocksIFile()*g.BlockSize)
	if err := dev.ReadBlocks(1, g.BlocksIFile(), ibuf); err != nil {
		return nil, fmt.Errorf("mounting: reading inode file: %w", wrapIo(err))
	}
	off := 0
	for i := range fs.InodeFile {
		DecodeInode(&fs.InodeFile[i], ibuf[off:off+InodeSize])
		off += InodeSize
	}

	fs.Dirs = make([]Directory, g.MaxDirs())
	dbuf := make([]byte, g.BlockSize)
	for slot := range fs.Dirs {
		fs.Dirs[slot] = NewDirectory(g)
		if err := dev.ReadBlocks(g.DirSlotBlock(uint32(slot)), 1, dbuf); err != nil {
			return nil, fmt.Errorf("mounting: reading directory slot %d: %w", slot, wrapIo(err))
		}
		DecodeDirectory(&fs.Dirs[slot], dbuf)
	}

	fs.FreeBitmap = NewBitmap(g.NumBlocks)
	bbuf := make([]byte, g.BlockSize)
	if err := dev.ReadBlocks(g.FreeBitmapBlock(), 1, bbuf); err != nil {
		return nil, fmt.Errorf("mounting: reading free bitmap: %w", wrapIo(err))
	}
	fs.FreeBitmap.SetBytes(bbuf)

	fs.WriteMask = NewBitmap(g.NumBlocks)
	wbuf := make([]byte, g.BlockSize)
	if err := dev.ReadBlocks(g.WriteMaskBlock(), 1, wbuf); err != nil {
		return nil, fmt.Errorf("mounting: reading write mask: %w", wrapIo(err))
	}
	fs.WriteMask.SetBytes(wbuf)

	fs.logger().Info("mounted", "disk", fs.DiskID, "blocks", g.NumBlocks)
	return fs, nil
}

func newFileSystem(dev blockdev.Device, g Geometry) *FileSystem {
	return &FileSystem{
		Device:        dev,
		Geometry:      g,
		indirectCache: newIndirectCache(indirectCacheCapacity),
	}
}

// Option configures optional FileSystem hooks at Format/Mount time.
type Option func(*FileSystem)

// WithDiskID names the disk for logging, journaling, and archiving.
func WithDiskID(id string) Option { return func(fs *FileSystem) { fs.DiskID = id } }

// WithArchiver installs a post-commit snapshot archiver.
func WithArchiver(a Archiver) Option { return func(fs *FileSystem) { fs.Archiver = a } }

// WithJournal installs a commit/restore audit journal.
func WithJournal(j Journal) Option { return func(fs *FileSystem) { fs.Journal = j } }

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option { return func(fs *FileSystem) { fs.Logger = l } }

func (fs *FileSystem) logger() *slog.Logger {
	if fs.Logger == nil {
		return slog.Default()
	}
	return fs.Logger
}

// Close flushes nothing further (every mutation is already flushed per the
// selective-flush protocol) and releases the underlying device.
func (fs *FileSystem) Close() error {
	if err := fs.Device.Close(); err != nil {
		return fmt.Errorf("closing file system: %w", wrapIo(err))
	}
	return nil
}

// flushSuperblock rewrites block 0.
func (fs *FileSystem) flushSuperblock() error {
	buf := make([]byte, fs.Geometry.BlockSize)
	EncodeSuperblock(&fs.Superblock, buf)
	if err := fs.Device.WriteBlocks(0, 1, buf); err != nil {
		return fmt.Errorf("flushing superblock: %w", wrapIo(err))
	}
	return nil
}

// flushInodeFile rewrites the whole inode file region.
func (fs *FileSystem) flushInodeFile() error {
	g := fs.Geometry
	buf := make([]byte, g.BlocksIFile()*g.BlockSize)
	off := 0
	for i := range fs.InodeFile {
		EncodeInode(&fs.InodeFile[i], buf[off:off+InodeSize])
		off += InodeSize
	}
	if err := fs.Device.WriteBlocks(1, g.BlocksIFile(), buf); err != nil {
		return fmt.Errorf("flushing inode file: %w", wrapIo(err))
	}
	return nil
}

// flushDirectory rewrites one directory slot's block.
func (fs *FileSystem) flushDirectory(slot uint32) error {
	buf := make([]byte, fs.Geometry.BlockSize)
	EncodeDirectory(&fs.Dirs[slot], buf)
	if err := fs.Device.WriteBlocks(fs.Geometry.DirSlotBlock(slot), 1, buf); err != nil {
		return fmt.Errorf("flushing directory slot %d: %w", slot, wrapIo(err))
	}
	return nil
}

// flushBitmaps rewrites the free bitmap and write mask blocks.
func (fs *FileSystem) flushBitmaps() error {
	fbuf := make([]byte, fs.Geometry.BlockSize)
	copy(fbuf, fs.FreeBitmap.Bytes())
	if err := fs.Device.WriteBlocks(fs.Geometry.FreeBitmapBlock(), 1, fbuf); err != nil {
		return fmt.Errorf("flushing free bitmap: %w", wrapIo(err))
	}
	wbuf := make([]byte, fs.Geometry.BlockSize)
	copy(wbuf, fs.WriteMask.Bytes())
	if err := fs.Device.WriteBlocks(fs.Geometry.WriteMaskBlock(), 1, wbuf); err != nil {
		return fmt.Errorf("flushing write mask: %w", wrapIo(err))
	}
	return nil
}

// flushMeta is the selective-flush bundle spec.md §4.8 requires after any
// mutating operation: superblock, inode file, live directory, and bitmaps.
// It never touches shadow slots 1..N_SHADOW, which only change on commit or
// restore.
func (fs *FileSystem) flushMeta() error {
	if err := fs.flushSuperblock(); err != nil {
		return err
	}
	if err := fs.flushInodeFile(); err != nil {
		return err
	}
	if err := fs.flushDirectory(0); err != nil {
		return err
	}
	return fs.flushBitmaps()
}

// flushAll writes every region, used by Format and by Commit/Restore, which
// touch shadow slots that flushMeta does not.
func (fs *FileSystem) flushAll() error {
	if err := fs.flushMeta(); err != nil {
		return err
	}
	for slot := uint32(1); slot < fs.Geometry.MaxDirs(); slot++ {
		if err := fs.flushDirectory(slot); err != nil {
			return err
		}
	}
	return nil
}
