package sfs

// constErr is a sentinel error kind expressed as a named string type, in the
// style of the teacher's recurring constErr pattern (fs/pkg/fs/{alloc,
// decode,dir,file,inode,inodeblock}.go). Every operation wraps one of these
// with fmt.Errorf("...: %w", err) so callers can branch with errors.Is
// instead of string matching, per spec.md §7's error-kind table and §9's
// note on normalizing failure propagation.
type constErr string

func (e constErr) Error() string { return string(e) }

const (
	// ErrNotFound: name absent in directory on remove/size lookup.
	ErrNotFound constErr = "not found"
	// ErrAlreadyOpen: fopen of a name already in the open-file table.
	ErrAlreadyOpen constErr = "file already open"
	// ErrFdTableFull: no free open-file-table slot.
	ErrFdTableFull constErr = "open file table full"
	// ErrInodeTableFull: no free inode.
	ErrInodeTableFull constErr = "inode table full"
	// ErrDirectoryFull: no free directory entry.
	ErrDirectoryFull constErr = "directory full"
	// ErrNoFreeBlock: no free data block.
	ErrNoFreeBlock constErr = "no free block"
	// ErrPointerListExhausted: direct+indirect pointer capacity reached.
	ErrPointerListExhausted constErr = "pointer list exhausted"
	// ErrInvalidArgument: null/empty name, out-of-range fd or snapshot
	// index, seek past file.
	ErrInvalidArgument constErr = "invalid argument"
	// ErrIoFailure: propagated from the block device backend.
	ErrIoFailure constErr = "I/O failure"
	// ErrCorrupt: fatal on-disk inconsistency detected at mount (bad magic,
	// bad geometry). Mount refuses to proceed.
	ErrCorrupt constErr = "corrupt file system image"
	// ErrRestoreIncomplete: restore ran out of space mid-copy; the caller
	// gets a best-effort-rolled-back slot 0. See spec.md §9 open question 1.
	ErrRestoreIncomplete constErr = "restore did not complete; rolled back partial entries"
)
