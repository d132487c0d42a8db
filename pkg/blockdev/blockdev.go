// Package blockdev implements the block device contract that the shadowing
// file system consumes: a byte-addressable array of fixed-size blocks with
// all-or-nothing per-block reads and writes.
package blockdev

import "fmt"

// IoFailureErr is the sentinel wrapped by every backend I/O error.
const IoFailureErr constErr = "block device I/O failure"

type constErr string

func (e constErr) Error() string { return string(e) }

// Device is the interface every SFS backend implements. It mirrors the
// external block device emulator contract: init_fresh_disk/init_disk are
// captured by the constructor of each concrete backend, and close_disk maps
// to Close.
type Device interface {
	// BlockSize returns the fixed size of a block in bytes.
	BlockSize() uint32
	// NumBlocks returns the total number of blocks on the device.
	NumBlocks() uint32
	// ReadBlocks reads count consecutive blocks starting at start into buf.
	// buf must be exactly count*BlockSize() bytes.
	ReadBlocks(start, count uint32, buf []byte) error
	// WriteBlocks writes count consecutive blocks starting at start from buf.
	// buf must be exactly count*BlockSize() bytes.
	WriteBlocks(start, count uint32, buf []byte) error
	// Close releases any resources held by the device.
	Close() error
}

func checkRange(d Device, start, count uint32, buf []byte) error {
	if start+count > d.NumBlocks() {
		return fmt.Errorf(
			"block range [%d,%d) exceeds device size %d: %w",
			start, start+count, d.NumBlocks(), IoFailureErr,
		)
	}
	want := int(count) * int(d.BlockSize())
	if len(buf) != want {
		return fmt.Errorf(
			"buffer length %d does not match %d blocks of size %d: %w",
			len(buf), count, d.BlockSize(), IoFailureErr,
		)
	}
	return nil
}
