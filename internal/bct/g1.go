package bct

import (
	"fmt"

	"github.com/tegraboot/bup-updater/internal/collaborators"
	"github.com/tegraboot/bup-updater/internal/soc"
)

const maxBCTCopies = 64

// G1Context is the small persistent state the G1 BCT schedule depends on
// across calls (spec.md §4.4, §9 "Back-patched BCT context"): -1 means
// pending-last, +1 pending-middle, 0 pending-first. Callers own one
// instance per program run — it is an explicit field on the executor, not
// hidden static state.
type G1Context struct {
	Which int
}

// NewG1Context returns a context initialized before the first BCT call,
// per spec.md §4.4.
func NewG1Context() *G1Context {
	return &G1Context{Which: -1}
}

// G1Writer implements the up-to-64-copy BCT write schedule for G1 SoCs
// (spec.md §4.4, "G1 variant").
type G1Writer struct {
	BlockSize int
	PageSize  int
	BCTCopies int
	Validate  collaborators.BCTValidatorT21x
}

// NewG1Writer builds a writer sized for the given boot medium.
func NewG1Writer(m soc.Medium, validate collaborators.BCTValidatorT21x) *G1Writer {
	return &G1Writer{
		BlockSize: m.BlockSize(),
		PageSize:  m.PageSize(),
		BCTCopies: m.BCTCopiesG1(),
		Validate:  validate,
	}
}

// Write performs one pass of the three-pass G1 BCT schedule, advancing
// ctx.Which, per spec.md §4.4.
func (w *G1Writer) Write(ctx *G1Context, tgt Target, partByteSize int64, current, candidate []byte, length int, zero []byte) (updated bool, err error) {
	ok, blockSize, pageSize := w.Validate(current, candidate)
	if !ok {
		return false, fmt.Errorf("bct: candidate BCT rejected by t21x validator")
	}
	if blockSize != w.BlockSize || pageSize != w.PageSize {
		return false, fmt.Errorf("bct: internal invariant violation: validator reports block/page size %d/%d, platform expects %d/%d", blockSize, pageSize, w.BlockSize, w.PageSize)
	}
	if length%w.PageSize != 0 {
		return false, fmt.Errorf("bct: candidate length %d is not a multiple of page size %d", length, w.PageSize)
	}
	if length*w.BCTCopies > w.BlockSize {
		return false, fmt.Errorf("bct: candidate length %d * %d copies exceeds block size %d", length, w.BCTCopies, w.BlockSize)
	}

	bctCount := int(partByteSize / int64(w.BlockSize))
	if bctCount > maxBCTCopies {
		bctCount = maxBCTCopies
	}
	if bctCount < 1 {
		return false, fmt.Errorf("bct: BCT partition too small for even one copy (block size %d)", w.BlockSize)
	}

	writeIndex := func(k int) error {
		offset := int64(k) * int64(w.BlockSize)
		if compareAt(current, int(offset), candidate, length) {
			return nil
		}
		if err := writePass(tgt, offset, candidate, length, zero); err != nil {
			return err
		}
		updated = true
		return nil
	}

	writeSecondCopyInBlockZero := func() error {
		offset := int64(length)
		if compareAt(current, int(offset), candidate, length) {
			return nil
		}
		if err := writePass(tgt, offset, candidate, length, zero); err != nil {
			return err
		}
		updated = true
		return nil
	}

	switch ctx.Which {
	case -1: // pending-last
		if err := writeIndex(bctCount - 1); err != nil {
			return updated, err
		}
		ctx.Which = 1

	case 1: // pending-middle
		for k := bctCount - 2; k >= 1; k-- {
			if err := writeIndex(k); err != nil {
				return updated, err
			}
		}
		ctx.Which = 0

	case 0: // pending-first
		if err := writeIndex(0); err != nil {
			return updated, err
		}
		if w.BCTCopies == 2 {
			if err := writeSecondCopyInBlockZero(); err != nil {
				return updated, err
			}
		}
		ctx.Which = -1

	default:
		return false, fmt.Errorf("bct: internal invariant violation: G1 context Which=%d out of range", ctx.Which)
	}

	if err := tgt.Device.Sync(); err != nil {
		return updated, fmt.Errorf("bct: flush after G1 pass: %w", err)
	}
	return updated, nil
}
