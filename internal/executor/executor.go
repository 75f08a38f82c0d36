// Package executor walks a planner worklist and performs (or, in dry-run
// mode, narrates) each entry's write, per spec.md §4.7.
package executor

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/tegraboot/bup-updater/internal/bct"
	"github.com/tegraboot/bup-updater/internal/blockio"
	"github.com/tegraboot/bup-updater/internal/collaborators"
	"github.com/tegraboot/bup-updater/internal/measure"
	"github.com/tegraboot/bup-updater/internal/partition"
	"github.com/tegraboot/bup-updater/internal/planner"
)

// Executor carries the per-run state spec.md §5 calls out as executor-owned
// (content/slot/zero buffers, the BCT writer for this SoC, the persistent
// G1 BCT schedule context).
type Executor struct {
	BUP          collaborators.BUP
	DryRun       bool
	Initializing bool

	// Exactly one of G2G3 or G1 is set, matching the SoC this run targets.
	G2G3  *bct.G2G3Writer
	G1    *bct.G1Writer
	G1Ctx *bct.G1Context

	// Zero is the executor-owned erase buffer (spec.md §5); it must be at
	// least as large as the biggest partition this worklist writes to.
	Zero []byte

	// Progress reports per-entry status the way the teacher's
	// measure.Interactively does; defaults to measure.Interactively when
	// left nil. Tests substitute a silent stub.
	Progress func(status string) (done func(fragment string))
}

// New builds an Executor with the teacher's interactive-progress default.
func New(bup collaborators.BUP, dryRun, initializing bool, zero []byte) *Executor {
	return &Executor{
		BUP:          bup,
		DryRun:       dryRun,
		Initializing: initializing,
		Zero:         zero,
		Progress:     measure.Interactively,
	}
}

func isMB1Family(name string) bool { return name == "mb1" || name == "mb1_b" }

// Run executes worklist in order (spec.md §4.7) and, in update mode, when
// the BCT entry actually changed bytes, rewrites mb1Other's copy with the
// same mb1 payload (spec.md §4.6, Testable Property 8). When initializing,
// both mb1 copies are already worklist entries and mb1Other is not used.
// It reports whether any BCT pass wrote bytes.
func (e *Executor) Run(worklist []planner.Entry, mb1Other *partition.Target) (bctUpdated bool, err error) {
	var maxLen int64
	for _, ent := range worklist {
		if ent.ByteLength > maxLen {
			maxLen = ent.ByteLength
		}
	}
	content := make([]byte, maxLen)
	slot := make([]byte, maxLen)

	var mb1Content []byte

	for _, ent := range worklist {
		done := e.Progress(ent.PartitionName)
		updated, err := e.runEntry(ent, content[:ent.ByteLength], slot[:ent.ByteLength], &bctUpdated)
		if err != nil {
			done(" (failed)")
			return bctUpdated, fmt.Errorf("executor: entry %q: %w", ent.PartitionName, err)
		}
		if isMB1Family(ent.PartitionName) {
			mb1Content = append(mb1Content[:0], content[:ent.ByteLength]...)
		}
		if updated {
			done(" (written)")
		} else {
			done(" (skipped)")
		}
	}

	if bctUpdated && !e.Initializing {
		// bctUpdated can only be true when a BCT pass actually wrote
		// bytes, which never happens while e.DryRun short-circuits
		// runEntry before reaching the BCT dispatch.
		if mb1Other == nil {
			// spec.md §9 open question: the "other mb1" descriptor's
			// absence is fatal only when the BCT was actually updated
			// in update mode.
			return bctUpdated, fmt.Errorf("executor: BCT was updated but the redundant mb1 copy is missing; both mb1 copies must be rewritten together")
		}
		if _, err := e.writeBound(*mb1Other, mb1Content); err != nil {
			return bctUpdated, fmt.Errorf("executor: rewriting redundant mb1 copy after BCT update: %w", err)
		}
	}
	return bctUpdated, nil
}

// runEntry implements the four steps of spec.md §4.7 for a single entry.
func (e *Executor) runEntry(ent planner.Entry, content, slot []byte, bctUpdated *bool) (updated bool, err error) {
	if err := e.BUP.SetPos(ent.BUPOffset); err != nil {
		return false, fmt.Errorf("seek BUP to offset %d: %w", ent.BUPOffset, err)
	}
	if err := readBUPExact(e.BUP, content, int(ent.ByteLength)); err != nil {
		return false, err
	}

	if e.DryRun {
		fmt.Println("[OK] (dry run)")
		return false, nil
	}

	if ent.Target == nil {
		return false, fmt.Errorf("internal invariant violation: entry has no resolved target")
	}

	if ent.Target.External {
		return e.writeExternal(*ent.Target, content)
	}

	if ent.PartitionName == "BCT" {
		return e.writeBCT(*ent.Target, content, slot, bctUpdated)
	}

	return e.writeBound(*ent.Target, content)
}

// writeBCT dispatches to the SoC-specific BCT writer (spec.md §4.4); the
// whole BCT partition is read and passed as "current" only when this run is
// not initializing, so every copy offset can be compared.
func (e *Executor) writeBCT(tgt partition.Target, content, slot []byte, bctUpdated *bool) (bool, error) {
	if int64(len(slot)) < tgt.ByteLength {
		slot = make([]byte, tgt.ByteLength)
	}
	slot = slot[:tgt.ByteLength]
	if err := blockio.ReadExactAt(tgt.Handle, slot, len(slot), tgt.ByteOffset); err != nil {
		return false, fmt.Errorf("read current BCT bytes: %w", err)
	}
	var current []byte
	if !e.Initializing {
		current = slot
	}

	btgt := bct.Target{Device: tgt.Handle, Offset: tgt.ByteOffset}
	var updated bool
	var err error
	switch {
	case e.G1 != nil:
		updated, err = e.G1.Write(e.G1Ctx, btgt, tgt.ByteLength, current, content, len(content), e.Zero)
	case e.G2G3 != nil:
		updated, err = e.G2G3.Write(btgt, current, content, len(content), e.Zero)
	default:
		return false, fmt.Errorf("internal invariant violation: no BCT writer configured")
	}
	if err != nil {
		return false, err
	}
	*bctUpdated = *bctUpdated || updated
	return updated, nil
}

// writeBound implements the non-BCT bound-partition path: read current
// bytes, compare-skip-else-write with a full-partition erase window, then
// flush (spec.md §4.7 step 3).
func (e *Executor) writeBound(tgt partition.Target, content []byte) (bool, error) {
	slot := make([]byte, len(content))
	if err := blockio.ReadExactAt(tgt.Handle, slot, len(content), tgt.ByteOffset); err != nil {
		return false, fmt.Errorf("read current partition bytes: %w", err)
	}
	if bytes.Equal(slot, content) {
		return false, nil
	}
	if err := blockio.WriteExactAt(tgt.Handle, content, len(content), tgt.ByteOffset, int(tgt.ByteLength), e.Zero); err != nil {
		return false, fmt.Errorf("write: %w", err)
	}
	if err := tgt.Handle.Sync(); err != nil {
		return false, fmt.Errorf("flush: %w", err)
	}
	return true, nil
}

// writeExternal implements spec.md §4.7 step 4: open, size by seeking to
// end, write with a full-device erase window, flush, close.
func (e *Executor) writeExternal(tgt partition.Target, content []byte) (bool, error) {
	f, err := os.OpenFile(tgt.DevicePath, os.O_RDWR, 0)
	if err != nil {
		return false, fmt.Errorf("open external device %q: %w", tgt.DevicePath, err)
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return false, fmt.Errorf("size external device %q: %w", tgt.DevicePath, err)
	}
	if err := blockio.WriteExactAt(f, content, len(content), 0, int(size), e.Zero); err != nil {
		return false, fmt.Errorf("write external device %q: %w", tgt.DevicePath, err)
	}
	if err := f.Sync(); err != nil {
		return false, fmt.Errorf("flush external device %q: %w", tgt.DevicePath, err)
	}
	return true, nil
}

func readBUPExact(b collaborators.BUP, buf []byte, length int) error {
	for read := 0; read < length; {
		n, err := b.Read(buf[read:length])
		if n <= 0 {
			if err != nil {
				return fmt.Errorf("read BUP entry bytes: %w", err)
			}
			return fmt.Errorf("read BUP entry bytes: read returned 0 bytes")
		}
		read += n
		if err != nil {
			if err == io.EOF && read == length {
				break
			}
			return fmt.Errorf("read BUP entry bytes: %w", err)
		}
	}
	return nil
}
