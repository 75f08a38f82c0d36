//go:build !linux

package blockio

import (
	"fmt"
	"os"
	"runtime"
)

// DeviceSize is currently only implemented for Linux, mirroring
// internal/packer/parttable_stub.go in the teacher repo.
func DeviceSize(f *os.File) (int64, error) {
	return 0, fmt.Errorf("blockio: DeviceSize is not implemented on %s", runtime.GOOS)
}
