//go:build linux

package blockio

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DeviceSize returns the size in bytes of the block device backing f, via
// the BLKGETSIZE64 ioctl — the same call internal/packer/parttable_linux.go
// uses in the teacher repo to size the gokrazy target device before
// partitioning it.
func DeviceSize(f *os.File) (int64, error) {
	var devsize uint64
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&devsize))); errno != 0 {
		return 0, errno
	}
	return int64(devsize), nil
}
