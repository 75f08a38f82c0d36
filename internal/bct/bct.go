// Package bct implements the two BCT (Boot Configuration Table) write
// variants (spec.md §4.4): the G2/G3 three-slot scheme across two blocks,
// and the G1 up-to-64-copy scheme with its persistent three-pass schedule.
//
// Both variants validate the candidate bytes against the current on-device
// BCT before writing anything, and both skip any individual write whose
// destination already matches the candidate at that offset — the same
// compare-before-write discipline the executor (spec.md §4.7) applies to
// every other partition.
package bct

import (
	"fmt"

	"github.com/tegraboot/bup-updater/internal/blockio"
)

// Target is the minimal write destination a BCT writer needs: a device
// handle and the byte offset its BCT partition starts at.
type Target struct {
	Device blockio.Device
	Offset int64
}

func compareAt(current []byte, candidateOffset int, candidate []byte, length int) bool {
	if current == nil {
		return false
	}
	if candidateOffset+length > len(current) {
		return false
	}
	return string(current[candidateOffset:candidateOffset+length]) == string(candidate[:length])
}

func writePass(tgt Target, offset int64, buf []byte, length int, zero []byte) error {
	if err := blockio.WriteExactAt(tgt.Device, buf, length, tgt.Offset+offset, length, zero); err != nil {
		return fmt.Errorf("bct: write at partition offset %d: %w", offset, err)
	}
	return nil
}
