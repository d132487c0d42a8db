package sfs

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/weberc2/shadowfs/pkg/blockdev"
)

// smallGeometry keeps tests fast while leaving enough headroom to exercise
// indirect blocks (S3 needs (N_PTR_DIRECT+1) data blocks plus one indirect
// block plus inode-file/bitmap/dir overhead). BlockSize 512 is the smallest
// power of two whose superblock holds one j-node per directory slot for four
// shadows ((512-16)/64 = 7 >= 5), which Validate requires.
var smallGeometry = Geometry{
	BlockSize: 512,
	NumBlocks: 512,
	NumInodes: 32,
	NumShadow: 4,
}

func mustFormat(t *testing.T, g Geometry) *FileSystem {
	t.Helper()
	dev := blockdev.NewMemory(g.BlockSize, g.NumBlocks)
	fs, err := Format(dev, g, WithDiskID("test"))
	if err != nil {
		t.Fatalf("Format: unexpected err: %v", err)
	}
	return fs
}

func mustWriteAll(t *testing.T, fs *FileSystem, fd int, p []byte) {
	t.Helper()
	n, err := fs.FWrite(fd, p)
	if err != nil {
		t.Fatalf("FWrite: unexpected err: %v", err)
	}
	if n != len(p) {
		t.Fatalf("FWrite: wrote %d bytes; wanted %d", n, len(p))
	}
}

func mustReadAll(t *testing.T, fs *FileSystem, fd int, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	read := 0
	for read < n {
		k, err := fs.FRead(fd, buf[read:])
		if err != nil {
			t.Fatalf("FRead: unexpected err: %v", err)
		}
		if k == 0 {
			t.Fatalf("FRead: got 0 bytes with %d/%d read", read, n)
		}
		read += k
	}
	return buf
}

func countFreeBlocks(fs *FileSystem) int {
	g := fs.Geometry
	count := 0
	for b := g.FirstDataBlock(); b <= g.LastDataBlock(); b++ {
		if fs.FreeBitmap.Test(b) {
			count++
		}
	}
	return count
}

// S1: basic read/write round trip through a seek back to the start.
func TestScenario_S1_BasicRW(t *testing.T) {
	fs := mustFormat(t, smallGeometry)
	fd, err := fs.FOpen("a")
	if err != nil {
		t.Fatalf("FOpen: unexpected err: %v", err)
	}
	mustWriteAll(t, fs, fd, []byte("hello"))
	if err := fs.FRSeek(fd, 0); err != nil {
		t.Fatalf("FRSeek: unexpected err: %v", err)
	}
	got := mustReadAll(t, fs, fd, 5)
	if string(got) != "hello" {
		t.Fatalf("FRead: got %q; wanted %q", got, "hello")
	}
}

// S2: a write spanning more than one block round-trips exactly and reports
// the right size.
func TestScenario_S2_CrossBlock(t *testing.T) {
	fs := mustFormat(t, smallGeometry)
	bs := int(fs.Geometry.BlockSize)
	data := make([]byte, bs+10)
	for i := range data {
		data[i] = byte(i % 251)
	}

	fd, err := fs.FOpen("big")
	if err != nil {
		t.Fatalf("FOpen: unexpected err: %v", err)
	}
	mustWriteAll(t, fs, fd, data)

	size, err := fs.GetFileSize("big")
	if err != nil {
		t.Fatalf("GetFileSize: unexpected err: %v", err)
	}
	if size != int32(len(data)) {
		t.Fatalf("GetFileSize: got %d; wanted %d", size, len(data))
	}

	if err := fs.FRSeek(fd, 0); err != nil {
		t.Fatalf("FRSeek: unexpected err: %v", err)
	}
	got := mustReadAll(t, fs, fd, len(data))
	if !bytes.Equal(got, data) {
		t.Fatal("FRead: cross-block round trip did not match what was written")
	}
}

// S3: a file large enough to require the indirect block round-trips
// exactly and its inode ends up with a nonzero indirect pointer.
func TestScenario_S3_Indirect(t *testing.T) {
	fs := mustFormat(t, smallGeometry)
	bs := int(fs.Geometry.BlockSize)
	size := (NumPointersDirect + 1) * bs
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}

	fd, err := fs.FOpen("huge")
	if err != nil {
		t.Fatalf("FOpen: unexpected err: %v", err)
	}
	mustWriteAll(t, fs, fd, data)

	slot, ok := fs.Dirs[0].Lookup("huge")
	if !ok {
		t.Fatal("Lookup: `huge` missing from live directory after write")
	}
	ino := fs.Dirs[0].Entries[slot].Ino
	if fs.InodeFile[ino].Indirect == 0 {
		t.Fatal("expected a nonzero indirect pointer for a file past N_PTR_DIRECT blocks")
	}

	if err := fs.FRSeek(fd, 0); err != nil {
		t.Fatalf("FRSeek: unexpected err: %v", err)
	}
	got := mustReadAll(t, fs, fd, size)
	if !bytes.Equal(got, data) {
		t.Fatal("FRead: indirect-block round trip did not match what was written")
	}
}

// S4: commit freezes the current contents; a later restore(1) recovers them
// even after the live file has moved on.
func TestScenario_S4_CommitRestore(t *testing.T) {
	fs := mustFormat(t, smallGeometry)
	ctx := context.Background()

	fd, err := fs.FOpen("x")
	if err != nil {
		t.Fatalf("FOpen: unexpected err: %v", err)
	}
	mustWriteAll(t, fs, fd, []byte("v1"))
	if err := fs.FClose(fd); err != nil {
		t.Fatalf("FClose: unexpected err: %v", err)
	}

	if err := fs.Commit(ctx); err != nil {
		t.Fatalf("Commit: unexpected err: %v", err)
	}

	fd, err = fs.FOpen("x")
	if err != nil {
		t.Fatalf("FOpen: unexpected err: %v", err)
	}
	if err := fs.FWSeek(fd, 0); err != nil {
		t.Fatalf("FWSeek: unexpected err: %v", err)
	}
	mustWriteAll(t, fs, fd, []byte("v2"))
	if err := fs.FClose(fd); err != nil {
		t.Fatalf("FClose: unexpected err: %v", err)
	}

	if err := fs.Restore(ctx, 1); err != nil {
		t.Fatalf("Restore: unexpected err: %v", err)
	}

	fd, err = fs.FOpen("x")
	if err != nil {
		t.Fatalf("FOpen after restore: unexpected err: %v", err)
	}
	got := mustReadAll(t, fs, fd, 2)
	if string(got) != "v1" {
		t.Fatalf("post-restore contents: got %q; wanted %q", got, "v1")
	}
}

// S5: only the most recent N_SHADOW commits stay recoverable; restoring the
// oldest retained slot gives the state as of that many commits back.
func TestScenario_S5_FIFOAging(t *testing.T) {
	fs := mustFormat(t, smallGeometry)
	ctx := context.Background()
	n := fs.Geometry.NumShadow

	for i := uint32(0); i < n+1; i++ {
		fd, err := fs.FOpen("f")
		if err != nil {
			t.Fatalf("FOpen at iteration %d: unexpected err: %v", i, err)
		}
		if err := fs.FWSeek(fd, 0); err != nil {
			t.Fatalf("FWSeek: unexpected err: %v", err)
		}
		mustWriteAll(t, fs, fd, []byte{byte('a' + i)})
		if err := fs.FClose(fd); err != nil {
			t.Fatalf("FClose: unexpected err: %v", err)
		}
		if err := fs.Commit(ctx); err != nil {
			t.Fatalf("Commit %d: unexpected err: %v", i, err)
		}
	}

	// slot n is the oldest retained shadow: it holds the content written
	// just before the very first commit that survived the FIFO, i.e. the
	// content from iteration 1 ('b'), since iteration 0's commit ('a') has
	// aged out of the n-deep shadow FIFO.
	if err := fs.Restore(ctx, n); err != nil {
		t.Fatalf("Restore(%d): unexpected err: %v", n, err)
	}
	fd, err := fs.FOpen("f")
	if err != nil {
		t.Fatalf("FOpen after restore: unexpected err: %v", err)
	}
	got := mustReadAll(t, fs, fd, 1)
	want := byte('a' + 1)
	if got[0] != want {
		t.Fatalf("oldest retained content: got %q; wanted %q", got, []byte{want})
	}
}

// S6: removing every file created returns the free-block count to its
// starting value.
func TestScenario_S6_RemoveFreesBlocks(t *testing.T) {
	fs := mustFormat(t, smallGeometry)
	before := countFreeBlocks(fs)

	bs := int(fs.Geometry.BlockSize)
	names := make([]string, 10)
	for i := range names {
		names[i] = string(rune('a' + i))
		fd, err := fs.FOpen(names[i])
		if err != nil {
			t.Fatalf("FOpen(%s): unexpected err: %v", names[i], err)
		}
		mustWriteAll(t, fs, fd, bytes.Repeat([]byte{byte(i)}, bs))
		if err := fs.FClose(fd); err != nil {
			t.Fatalf("FClose(%s): unexpected err: %v", names[i], err)
		}
	}

	for _, name := range names {
		if err := fs.Remove(name); err != nil {
			t.Fatalf("Remove(%s): unexpected err: %v", name, err)
		}
	}

	after := countFreeBlocks(fs)
	if after != before {
		t.Fatalf("free block count after remove-all: got %d; wanted %d", after, before)
	}
}

// Universal property 2: removed files vanish from both size lookup and
// enumeration.
func TestProperty_RemoveVanishesFromLookupAndEnumeration(t *testing.T) {
	fs := mustFormat(t, smallGeometry)
	fd, err := fs.FOpen("gone")
	if err != nil {
		t.Fatalf("FOpen: unexpected err: %v", err)
	}
	if err := fs.FClose(fd); err != nil {
		t.Fatalf("FClose: unexpected err: %v", err)
	}
	if err := fs.Remove("gone"); err != nil {
		t.Fatalf("Remove: unexpected err: %v", err)
	}

	if _, err := fs.GetFileSize("gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetFileSize after remove: got err %v; wanted ErrNotFound", err)
	}
	for {
		name, ok := fs.GetNextFileName()
		if !ok {
			break
		}
		if name == "gone" {
			t.Fatal("GetNextFileName: enumerated a removed file")
		}
	}
}

// Universal property 4: after any operation, the free bitmap marks free
// exactly the data blocks not referenced by any live or shadow inode.
func TestProperty_FreeBitmapMatchesReachableBlocks(t *testing.T) {
	fs := mustFormat(t, smallGeometry)
	ctx := context.Background()

	fd, err := fs.FOpen("p")
	if err != nil {
		t.Fatalf("FOpen: unexpected err: %v", err)
	}
	mustWriteAll(t, fs, fd, bytes.Repeat([]byte{7}, int(fs.Geometry.BlockSize)*3))
	if err := fs.FClose(fd); err != nil {
		t.Fatalf("FClose: unexpected err: %v", err)
	}
	if err := fs.Commit(ctx); err != nil {
		t.Fatalf("Commit: unexpected err: %v", err)
	}

	reachable := map[uint32]bool{}
	for slot := range fs.Dirs {
		for _, e := range fs.Dirs[slot].Entries {
			if e.empty() {
				continue
			}
			n := &fs.InodeFile[e.Ino]
			for _, p := range n.Direct {
				if p == 0 {
					break
				}
				reachable[p] = true
			}
			if n.Indirect != 0 {
				reachable[n.Indirect] = true
				ib, err := fs.readIndirectBlock(n.Indirect)
				if err != nil {
					t.Fatalf("readIndirectBlock: unexpected err: %v", err)
				}
				for _, p := range ib.Pointers {
					if p == 0 {
						break
					}
					reachable[p] = true
				}
			}
		}
	}

	g := fs.Geometry
	for b := g.FirstDataBlock(); b <= g.LastDataBlock(); b++ {
		free := fs.FreeBitmap.Test(b)
		if free && reachable[b] {
			t.Fatalf("block %d marked free but still reachable from a live/shadow inode", b)
		}
		if !free && !reachable[b] {
			t.Fatalf("block %d marked allocated but not reachable from any inode", b)
		}
	}
}

// Universal property 5: seeking repositions the corresponding cursor
// independently for reads and writes.
func TestProperty_SeekRepositionsIndependentCursors(t *testing.T) {
	fs := mustFormat(t, smallGeometry)
	fd, err := fs.FOpen("s")
	if err != nil {
		t.Fatalf("FOpen: unexpected err: %v", err)
	}
	mustWriteAll(t, fs, fd, []byte("0123456789"))

	if err := fs.FRSeek(fd, 3); err != nil {
		t.Fatalf("FRSeek: unexpected err: %v", err)
	}
	got := mustReadAll(t, fs, fd, 4)
	if string(got) != "3456" {
		t.Fatalf("FRead after seek: got %q; wanted %q", got, "3456")
	}

	if err := fs.FWSeek(fd, 5); err != nil {
		t.Fatalf("FWSeek: unexpected err: %v", err)
	}
	mustWriteAll(t, fs, fd, []byte("XY"))
	if err := fs.FRSeek(fd, 5); err != nil {
		t.Fatalf("FRSeek: unexpected err: %v", err)
	}
	got = mustReadAll(t, fs, fd, 2)
	if string(got) != "XY" {
		t.Fatalf("FRead after write-seek: got %q; wanted %q", got, "XY")
	}
}

// Universal property 6: closing and reopening a file resets the read
// cursor to 0 and the write cursor to end-of-file.
func TestProperty_ReopenResetsCursors(t *testing.T) {
	fs := mustFormat(t, smallGeometry)
	fd, err := fs.FOpen("r")
	if err != nil {
		t.Fatalf("FOpen: unexpected err: %v", err)
	}
	mustWriteAll(t, fs, fd, []byte("abcde"))
	if err := fs.FClose(fd); err != nil {
		t.Fatalf("FClose: unexpected err: %v", err)
	}

	fd, err = fs.FOpen("r")
	if err != nil {
		t.Fatalf("FOpen (reopen): unexpected err: %v", err)
	}
	of, err := fs.checkFd(fd)
	if err != nil {
		t.Fatalf("checkFd: unexpected err: %v", err)
	}
	if of.ReadPos != 0 {
		t.Fatalf("reopen read cursor: got %d; wanted 0", of.ReadPos)
	}
	if of.WritePos != 5 {
		t.Fatalf("reopen write cursor: got %d; wanted 5 (end of file)", of.WritePos)
	}

	extra := []byte("fgh")
	mustWriteAll(t, fs, fd, extra)
	size, err := fs.GetFileSize("r")
	if err != nil {
		t.Fatalf("GetFileSize: unexpected err: %v", err)
	}
	if size != 8 {
		t.Fatalf("size after append-on-reopen: got %d; wanted 8", size)
	}
}

// Universal property 7: enumeration visits every live name exactly once
// between wrap signals, regardless of order files were created in.
func TestProperty_EnumerationVisitsEveryLiveNameOnce(t *testing.T) {
	fs := mustFormat(t, smallGeometry)
	want := map[string]bool{"one": true, "two": true, "three": true}
	for name := range want {
		fd, err := fs.FOpen(name)
		if err != nil {
			t.Fatalf("FOpen(%s): unexpected err: %v", name, err)
		}
		if err := fs.FClose(fd); err != nil {
			t.Fatalf("FClose(%s): unexpected err: %v", name, err)
		}
	}

	seen := map[string]bool{}
	for {
		name, ok := fs.GetNextFileName()
		if !ok {
			break
		}
		if seen[name] {
			t.Fatalf("GetNextFileName: saw `%s` twice before wrap", name)
		}
		seen[name] = true
	}
	if len(seen) != len(want) {
		t.Fatalf("enumeration: saw %d names; wanted %d", len(seen), len(want))
	}
	for name := range want {
		if !seen[name] {
			t.Fatalf("enumeration: missing `%s`", name)
		}
	}
}

func TestFOpen_RejectsDuplicateOpen(t *testing.T) {
	fs := mustFormat(t, smallGeometry)
	fd, err := fs.FOpen("dup")
	if err != nil {
		t.Fatalf("FOpen: unexpected err: %v", err)
	}
	defer fs.FClose(fd)

	if _, err := fs.FOpen("dup"); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second FOpen: got err %v; wanted ErrAlreadyOpen", err)
	}
}

func TestFOpen_RejectsBadNameLength(t *testing.T) {
	fs := mustFormat(t, smallGeometry)
	if _, err := fs.FOpen(""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("FOpen(\"\"): got err %v; wanted ErrInvalidArgument", err)
	}
	tooLong := bytes.Repeat([]byte{'x'}, NameMax+1)
	if _, err := fs.FOpen(string(tooLong)); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("FOpen(too long): got err %v; wanted ErrInvalidArgument", err)
	}
}

func TestSeek_RejectsPastEndOfFile(t *testing.T) {
	fs := mustFormat(t, smallGeometry)
	fd, err := fs.FOpen("seeker")
	if err != nil {
		t.Fatalf("FOpen: unexpected err: %v", err)
	}
	mustWriteAll(t, fs, fd, []byte("abc"))
	if err := fs.FRSeek(fd, 4); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("FRSeek past EOF: got err %v; wanted ErrInvalidArgument", err)
	}
	if err := fs.FWSeek(fd, 4); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("FWSeek past EOF: got err %v; wanted ErrInvalidArgument", err)
	}
}

// TestSeek_RejectsUnallocatedBlockBoundary covers spec.md §4.6's
// block-indexing rule specifically: a file whose size exactly equals
// BlockSize has only its first block allocated, so a seek to loc ==
// BlockSize indexes a second block that was never appended. That offset
// equals the file's size, so a naive `loc > size` check would wrongly
// accept it.
func TestSeek_RejectsUnallocatedBlockBoundary(t *testing.T) {
	fs := mustFormat(t, smallGeometry)
	fd, err := fs.FOpen("boundary")
	if err != nil {
		t.Fatalf("FOpen: unexpected err: %v", err)
	}
	full := make([]byte, smallGeometry.BlockSize)
	mustWriteAll(t, fs, fd, full)

	if err := fs.FRSeek(fd, smallGeometry.BlockSize); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("FRSeek to unallocated block boundary: got err %v; wanted ErrInvalidArgument", err)
	}
	if err := fs.FWSeek(fd, smallGeometry.BlockSize); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("FWSeek to unallocated block boundary: got err %v; wanted ErrInvalidArgument", err)
	}

	// The last in-bounds offset of the single allocated block must still
	// succeed.
	if err := fs.FRSeek(fd, smallGeometry.BlockSize-1); err != nil {
		t.Fatalf("FRSeek to last byte of allocated block: unexpected err: %v", err)
	}
	if err := fs.FWSeek(fd, smallGeometry.BlockSize-1); err != nil {
		t.Fatalf("FWSeek to last byte of allocated block: unexpected err: %v", err)
	}
}

func TestMount_RoundTripsFormattedImage(t *testing.T) {
	dev := blockdev.NewMemory(smallGeometry.BlockSize, smallGeometry.NumBlocks)
	fs, err := Format(dev, smallGeometry, WithDiskID("roundtrip"))
	if err != nil {
		t.Fatalf("Format: unexpected err: %v", err)
	}
	fd, err := fs.FOpen("persisted")
	if err != nil {
		t.Fatalf("FOpen: unexpected err: %v", err)
	}
	mustWriteAll(t, fs, fd, []byte("durable"))
	if err := fs.FClose(fd); err != nil {
		t.Fatalf("FClose: unexpected err: %v", err)
	}

	// Every mutating call already flushes its metadata to dev, so a fresh
	// Mount against the same backing device sees exactly what fs wrote,
	// without needing to close fs first.
	remounted, err := Mount(dev, smallGeometry.NumShadow, WithDiskID("roundtrip"))
	if err != nil {
		t.Fatalf("Mount: unexpected err: %v", err)
	}
	fd, err = remounted.FOpen("persisted")
	if err != nil {
		t.Fatalf("FOpen after remount: unexpected err: %v", err)
	}
	got := mustReadAll(t, remounted, fd, len("durable"))
	if string(got) != "durable" {
		t.Fatalf("post-remount contents: got %q; wanted %q", got, "durable")
	}
}
