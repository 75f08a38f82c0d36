// Package repartition implements the read-only repartition-check mode
// (spec.md §4.9): compare the on-device GPT against the configured layout
// without writing anything.
package repartition

import (
	"fmt"

	"github.com/tegraboot/bup-updater/internal/collaborators"
	"github.com/tegraboot/bup-updater/internal/soc"
)

// Exit codes mirror spec.md §4.9 and §6.1 exactly: 0 means success / no
// repartition needed, 1 means generic failure / repartition needed, 2
// means the comparison itself failed.
const (
	ExitNoRepartitionNeeded = 0
	ExitRepartitionNeeded   = 1
	ExitCompareFailed       = 2
)

// Check loads the GPT backup copy only and compares it against the
// configured layout. G1 has no A/B layout to compare and unconditionally
// reports "no repartition needed" (spec.md §4.9).
func Check(gpt collaborators.GPT, t soc.Type) (exitCode int, err error) {
	if t == soc.G1 {
		return ExitNoRepartitionNeeded, nil
	}

	if err := gpt.Load(true /* backupOnly */); err != nil {
		return ExitCompareFailed, fmt.Errorf("repartition: load backup GPT: %w", err)
	}
	defer gpt.Finish()

	switch gpt.LayoutConfigMatch() {
	case collaborators.LayoutOK:
		return ExitNoRepartitionNeeded, nil
	case collaborators.LayoutMismatch:
		return ExitRepartitionNeeded, nil
	default:
		return ExitCompareFailed, fmt.Errorf("repartition: layout comparison failed")
	}
}
