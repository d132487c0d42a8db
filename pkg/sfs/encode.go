package sfs

import "encoding/binary"

// All on-disk multi-byte fields are big-endian, matching the teacher's
// fs/pkg/fs/encode.go convention.

func putU32(p []byte, v uint32) { binary.BigEndian.PutUint32(p, v) }
func getU32(p []byte) uint32    { return binary.BigEndian.Uint32(p) }
