// Package planner walks BUP entries and produces an ordered worklist for
// the executor (spec.md §4.6): each entry is classified as redundant or
// non-redundant, matched against the partition table, and ordered per
// SoC-specific rules.
//
// Per spec.md §9 ("Two-list planning"), entries carry a single IsRedundant
// flag rather than living in two separate lists — ordering code does not
// need to know which list an entry came from.
package planner

import (
	"fmt"

	"github.com/tegraboot/bup-updater/internal/collaborators"
	"github.com/tegraboot/bup-updater/internal/partition"
	"github.com/tegraboot/bup-updater/internal/redundancy"
	"github.com/tegraboot/bup-updater/internal/soc"
)

// Mode is the update mode the planner classifies entries for.
type Mode int

const (
	ModeInitialize Mode = iota
	ModeUpdate
)

// maxEntries mirrors the practical ceiling on BUP entries a Tegra boot
// chain update ever enumerates (mb1/mb1_b, mb2/mb2_b, up to 3 BCT copies,
// bootloader images and their _b pairs, BCT, VER); comfortably above any
// real package, it exists only to catch a malformed BUP early.
const maxEntries = 64

// ResolveFunc resolves a logical partition name to its target, mirroring
// partition.Resolve's contract: nil, nil means "optional and absent,
// skip".
type ResolveFunc func(name string) (*partition.Target, error)

// BUPInput is one enumerated BUP entry (spec.md §3).
type BUPInput struct {
	Name       string
	BUPOffset  int64
	ByteLength int64
	Version    collaborators.VersionInfo
}

// Entry is one unit of planned work (spec.md §3).
type Entry struct {
	PartitionName string
	Target        *partition.Target
	BUPOffset     int64
	ByteLength    int64
	IsRedundant   bool
}

// Result is the planner's output.
type Result struct {
	Worklist []Entry
	// MB1Other is the mb1-family descriptor not chosen by the target slot
	// suffix, so the executor can rewrite both copies after a BCT change
	// (spec.md §4.6, Testable Property 8). Nil when no mb1/mb1_b pair was
	// seen, or during G1/initialize planning.
	MB1Other *partition.Target
	// Warnings holds the non-fatal diagnostics spec.md §9 calls out
	// (input/output entry-count mismatch); reproduced, not treated as
	// fatal (spec.md §9 open question).
	Warnings []string
}

// Plan implements spec.md §4.6. targetSuffix is "" or "_b" and is only
// consulted in G2/G3 update mode (spec.md §6.1 -s/--slot-suffix, or the
// current-slot-derived target when neither -i nor -s was given).
func Plan(inputs []BUPInput, gpt collaborators.GPT, resolve ResolveFunc, t soc.Type, m soc.Medium, mode Mode, targetSuffix string) (Result, error) {
	if len(inputs) > maxEntries {
		return Result{}, fmt.Errorf("planner: %d BUP entries exceeds the %d-entry cap", len(inputs), maxEntries)
	}
	if mode == ModeUpdate && t == soc.G1 {
		return Result{}, fmt.Errorf("planner: internal invariant violation: update mode is not valid for G1")
	}

	var redundantList, nonRedundantList []Entry
	var mb1Other *partition.Target
	var warnings []string
	producedCount := 0

	for _, in := range inputs {
		produced, other, err := classify(in, gpt, resolve, t, m, mode, targetSuffix)
		if err != nil {
			return Result{}, err
		}
		producedCount += len(produced)
		if other != nil {
			mb1Other = other
		}
		for _, e := range produced {
			if e.IsRedundant {
				redundantList = append(redundantList, e)
			} else {
				nonRedundantList = append(nonRedundantList, e)
			}
		}
	}

	var worklist []Entry
	if t == soc.G1 {
		// G1 is never A/B: the fixed sequence below orders both lists
		// concatenated (spec.md §4.6). Both G1 tables name BCT once per
		// pass of the G1 BCT schedule, so the BCT entry is repeated to
		// fill each of those slots.
		const g1BCTPasses = 3
		var all []Entry
		for _, e := range append(redundantList, nonRedundantList...) {
			all = append(all, e)
			if e.PartitionName == "BCT" {
				for i := 1; i < g1BCTPasses; i++ {
					all = append(all, e)
				}
				producedCount += g1BCTPasses - 1
			}
		}
		worklist = orderG1(all, m)
	} else {
		worklist = orderG2G3(append(redundantList, nonRedundantList...))
	}

	if len(worklist) != producedCount {
		// spec.md §9: reproduce the warning, do not treat it as fatal.
		warnings = append(warnings, fmt.Sprintf(
			"planner: ordered worklist has %d entries, classification produced %d", len(worklist), producedCount))
	}

	return Result{Worklist: worklist, MB1Other: mb1Other, Warnings: warnings}, nil
}

func classify(in BUPInput, gpt collaborators.GPT, resolve ResolveFunc, t soc.Type, m soc.Medium, mode Mode, targetSuffix string) (produced []Entry, mb1Other *partition.Target, err error) {
	redundantName := redundancy.Name(t, m, in.Name)
	_, partOK := gpt.FindByName(in.Name)
	_, partBOK := gpt.FindByName(redundantName)

	tgtB, err := resolve(redundantName)
	if err != nil {
		return nil, nil, err
	}

	isRedundant := partBOK || in.Name == "BCT" || (!partOK && tgtB != nil)

	if !isRedundant {
		if mode == ModeUpdate {
			return nil, nil, nil // non-redundant entries are not written in update mode.
		}
		tgt, err := resolve(in.Name)
		if err != nil {
			return nil, nil, err
		}
		if tgt == nil {
			return nil, nil, nil // optional and absent.
		}
		return []Entry{{PartitionName: in.Name, Target: tgt, BUPOffset: in.BUPOffset, ByteLength: in.ByteLength, IsRedundant: false}}, nil, nil
	}

	switch mode {
	case ModeInitialize:
		tgt, err := resolve(in.Name)
		if err != nil {
			return nil, nil, err
		}
		if tgt == nil {
			return nil, nil, nil
		}
		produced = append(produced, Entry{PartitionName: in.Name, Target: tgt, BUPOffset: in.BUPOffset, ByteLength: in.ByteLength, IsRedundant: true})
		if tgtB != nil {
			produced = append(produced, Entry{PartitionName: redundantName, Target: tgtB, BUPOffset: in.BUPOffset, ByteLength: in.ByteLength, IsRedundant: true})
		}
		return produced, nil, nil

	case ModeUpdate:
		var name string
		var tgt *partition.Target
		switch {
		case in.Name == "BCT":
			// BCT is not A/B partitioned by name; the BCT writer's
			// own multi-copy schedule handles redundancy.
			name = in.Name
			tgt, err = resolve(in.Name)
		case targetSuffix == "":
			name = in.Name
			tgt, err = resolve(in.Name)
		default:
			if tgtB == nil {
				return nil, nil, fmt.Errorf("planner: targeted slot suffix %q requires partition %q, which is missing", targetSuffix, redundantName)
			}
			name, tgt = redundantName, tgtB
		}
		if err != nil {
			return nil, nil, err
		}
		if tgt == nil {
			return nil, nil, nil
		}
		produced = append(produced, Entry{PartitionName: name, Target: tgt, BUPOffset: in.BUPOffset, ByteLength: in.ByteLength, IsRedundant: true})

		if isMB1Family(in.Name) && tgtB != nil {
			other := tgtB
			if name == redundantName {
				if other, err = resolve(in.Name); err != nil {
					return nil, nil, err
				}
			}
			mb1Other = other
		}
		return produced, mb1Other, nil
	}

	return nil, nil, nil
}

func isMB1Family(name string) bool {
	return name == "mb1" || name == "mb1_b"
}
