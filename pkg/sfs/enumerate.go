package sfs

// GetNextFileName advances this FileSystem's enumeration cursor over the
// live directory and reports the next non-empty entry's name (spec.md
// §4.9). When the cursor passes the last slot it wraps to the beginning
// and returns ("", false) as a restart signal, exactly like the reference
// wrapping gnfni back to 0 without producing a name.
func (fs *FileSystem) GetNextFileName() (string, bool) {
	entries := fs.Dirs[0].Entries
	for fs.enumCursor < len(entries) {
		i := fs.enumCursor
		fs.enumCursor++
		if !entries[i].empty() {
			return entries[i].nameString(), true
		}
	}
	fs.enumCursor = 0
	return "", false
}
