package bct

import (
	"fmt"

	"github.com/tegraboot/bup-updater/internal/collaborators"
	"github.com/tegraboot/bup-updater/internal/soc"
)

// G2G3Writer implements the three-slot BCT write order for G2/G3 SoCs
// (spec.md §4.4, "G2/G3 variant").
type G2G3Writer struct {
	BlockSize int
	PageSize  int
	Validate  collaborators.BCTValidatorT18xT19x
}

// NewG2G3Writer builds a writer sized for the given boot medium.
func NewG2G3Writer(m soc.Medium, validate collaborators.BCTValidatorT18xT19x) *G2G3Writer {
	return &G2G3Writer{
		BlockSize: m.BlockSize(),
		PageSize:  m.PageSize(),
		Validate:  validate,
	}
}

func ceilToPage(n, pageSize int) int {
	if n%pageSize == 0 {
		return n
	}
	return (n/pageSize + 1) * pageSize
}

// Write performs the three-pass write described in spec.md §4.4. current
// may be nil when initializing (no prior BCT to validate against or
// compare with). It reports whether any pass actually wrote bytes.
func (w *G2G3Writer) Write(tgt Target, current, candidate []byte, length int, zero []byte) (updated bool, err error) {
	if !w.Validate(current, candidate) {
		return false, fmt.Errorf("bct: candidate BCT rejected by SoC validator")
	}

	slotSize := ceilToPage(length, w.PageSize)

	// Pass order matters: block 0 slot 1, then block 1 slot 0, then block 0
	// slot 0. This keeps at least one byte-valid copy of either the old or
	// the new BCT reachable at every intermediate state (spec.md §4.4
	// rationale, Testable Property 1).
	offsets := [3]int64{int64(slotSize), int64(w.BlockSize), 0}

	for _, offset := range offsets {
		if compareAt(current, int(offset), candidate, length) {
			continue
		}
		if err := writePass(tgt, offset, candidate, length, zero); err != nil {
			return updated, err
		}
		updated = true
	}

	if err := tgt.Device.Sync(); err != nil {
		return updated, fmt.Errorf("bct: flush after G2/G3 passes: %w", err)
	}
	return updated, nil
}
