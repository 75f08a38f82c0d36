// Package slotactivator implements the G2/G3-only slot activation step
// (spec.md §4.8): after every worklist entry succeeds, it marks the
// alternate slot active in SMD. Persisting the change is left to the
// caller (the orchestrator calls SMD.Update afterwards).
package slotactivator

import (
	"fmt"

	"github.com/tegraboot/bup-updater/internal/collaborators"
)

// Decision records what Activate computed and (if it ran) did, so callers
// can log it regardless of dry-run.
type Decision struct {
	NewSlot int
	Skipped bool // true when dry-run or an explicit slot was selected on the command line.
}

// Activate implements spec.md §4.8. It must only be called when the run
// succeeded end-to-end; when an explicit -s/--slot-suffix was given
// (explicitSlotSelected) it leaves SMD untouched and reports Skipped. It
// does not persist SMD: that is the SMD collaborator's Update, whose atomic
// rewrite (renameio in refplatform.FileSMD) is not this package's concern.
func Activate(smd collaborators.SMD, initializing, explicitSlotSelected, dryRun bool) (Decision, error) {
	if explicitSlotSelected {
		return Decision{Skipped: true}, nil
	}

	newSlot := 0
	if !initializing {
		newSlot = 1 - smd.CurrentSlot()
	}

	if dryRun {
		return Decision{NewSlot: newSlot, Skipped: true}, nil
	}

	if smd.RedundancyLevel() != collaborators.RedundancyFull {
		if err := smd.SetRedundancyLevel(collaborators.RedundancyFull); err != nil {
			return Decision{}, fmt.Errorf("slotactivator: set redundancy level to FULL: %w", err)
		}
	}
	if err := smd.MarkSlotActive(newSlot); err != nil {
		return Decision{}, fmt.Errorf("slotactivator: mark slot %d active: %w", newSlot, err)
	}
	return Decision{NewSlot: newSlot}, nil
}
