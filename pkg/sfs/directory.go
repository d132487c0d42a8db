package sfs

import "fmt"

// dirEntrySize is sizeof(struct s_dir_entry): a NameMax+1-byte name field
// (NUL-terminated, NUL-padded) plus a 4-byte inode number.
const dirEntrySize = (NameMax + 1) + 4

// MaxFiles is MAX_FILES = BS / sizeof(entry), the fixed capacity of one
// directory slot (spec.md §3.2).
func (g Geometry) MaxFiles() uint32 { return g.BlockSize / dirEntrySize }

// DirEntry is one flat-table row: a name and the inode it names. An empty
// Name (first byte 0) marks an unused slot.
type DirEntry struct {
	Name [NameMax + 1]byte
	Ino  uint32
}

func (e *DirEntry) empty() bool { return e.Name[0] == 0 }

func (e *DirEntry) nameString() string {
	n := 0
	for n < len(e.Name) && e.Name[n] != 0 {
		n++
	}
	return string(e.Name[:n])
}

func (e *DirEntry) setName(name string) error {
	if len(name) == 0 || len(name) > NameMax {
		return fmt.Errorf(
			"setting directory entry name `%s`: length must be 1..%d: %w",
			name, NameMax, ErrInvalidArgument,
		)
	}
	var buf [NameMax + 1]byte
	copy(buf[:], name)
	e.Name = buf
	return nil
}

// Directory is one flat, fixed-capacity table of (name, inode#) — the live
// slot (index 0) or one shadow snapshot (spec.md §3.2, §4.4).
type Directory struct {
	Entries []DirEntry
}

// NewDirectory allocates an empty directory sized for the geometry.
func NewDirectory(g Geometry) Directory {
	return Directory{Entries: make([]DirEntry, g.MaxFiles())}
}

// Lookup returns the entry index for name, or (-1, false) if absent.
func (d *Directory) Lookup(name string) (int, bool) {
	for i := range d.Entries {
		if !d.Entries[i].empty() && d.Entries[i].nameString() == name {
			return i, true
		}
	}
	return -1, false
}

// FirstEmpty returns the index of the first unused slot, or (-1, false) if
// the directory is full.
func (d *Directory) FirstEmpty() (int, bool) {
	for i := range d.Entries {
		if d.Entries[i].empty() {
			return i, true
		}
	}
	return -1, false
}

// Clear resets every entry to empty.
func (d *Directory) Clear() {
	for i := range d.Entries {
		d.Entries[i] = DirEntry{}
	}
}

// EncodeDirectory serializes d into buf, which must be at least
// len(d.Entries)*dirEntrySize bytes.
func EncodeDirectory(d *Directory, buf []byte) {
	off := 0
	for i := range d.Entries {
		copy(buf[off:off+NameMax+1], d.Entries[i].Name[:])
		putU32(buf[off+NameMax+1:off+dirEntrySize], d.Entries[i].Ino)
		off += dirEntrySize
	}
}

// DecodeDirectory populates d from buf.
func DecodeDirectory(d *Directory, buf []byte) {
	off := 0
	for i := range d.Entries {
		var name [NameMax + 1]byte
		copy(name[:], buf[off:off+NameMax+1])
		d.Entries[i] = DirEntry{
			Name: name,
			Ino:  getU32(buf[off+NameMax+1 : off+dirEntrySize]),
		}
		off += dirEntrySize
	}
}
