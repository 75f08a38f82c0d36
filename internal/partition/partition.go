// Package partition resolves a logical partition name to either a byte
// range inside one of the two boot devices, or an external block-device
// path (spec.md §4.2).
package partition

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tegraboot/bup-updater/internal/collaborators"
)

// Target is the resolved location of a partition: exactly one of
// (Handle set) or (External true) holds, matching spec.md §3's invariant
// that an update entry has either a bound partition_descriptor or a
// device_path.
type Target struct {
	// Bound-to-device case.
	Handle     *os.File
	ByteOffset int64
	ByteLength int64

	// External block-device case.
	External   bool
	DevicePath string
}

// ByLabelDir is the OS-provided by-partition-label directory consulted in
// step 2 of spec.md §4.2 (e.g. /dev/disk/by-partlabel on Linux).
const ByLabelDir = "/dev/disk/by-partlabel"

// Resolve implements spec.md §4.2's three-step resolution.
func Resolve(gpt collaborators.GPT, bootFD, gptFD *os.File, bootDeviceSize int64, platform collaborators.Platform, name string) (*Target, error) {
	if desc, ok := gpt.FindByName(name); ok {
		offset := desc.ByteOffset()
		length := desc.ByteLength()
		handle := bootFD
		if offset >= bootDeviceSize {
			if gptFD == nil {
				return nil, fmt.Errorf("partition: %q lies past the primary boot device (offset %d >= size %d) but no GPT device is present", name, offset, bootDeviceSize)
			}
			handle = gptFD
			offset -= bootDeviceSize
		}
		return &Target{
			Handle:     handle,
			ByteOffset: offset,
			ByteLength: length,
		}, nil
	}

	if path, size, ok := resolveByLabel(name); ok {
		return &Target{
			External:   true,
			DevicePath: path,
			ByteLength: size,
		}, nil
	}

	if platform.PartitionShouldBePresent(name) {
		return nil, fmt.Errorf("partition: required partition %q not found in GPT or by-label", name)
	}
	return nil, nil // optional and absent: caller must skip
}

// resolveByLabel looks up name under ByLabelDir and, if the resulting
// device node is writable, returns its path and size (discovered by
// seeking to its end, per spec.md §4.2 step 2).
func resolveByLabel(name string) (path string, size int64, ok bool) {
	candidate := filepath.Join(ByLabelDir, name)
	f, err := os.OpenFile(candidate, os.O_RDWR, 0)
	if err != nil {
		return "", 0, false
	}
	defer f.Close()

	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return "", 0, false
	}
	return candidate, end, true
}
