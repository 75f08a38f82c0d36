// Package orchestrator sequences one end-to-end update run: SoC detection,
// device writeable toggling, version gating, planning, execution, and slot
// activation, releasing every acquired resource in reverse order on every
// exit path (spec.md §4.10, §5, §9 "Global mutable state"). It mirrors the
// teacher's internal/packer.Pack/Main() shape: one function per concern,
// scoped defers, fmt.Errorf-wrapped failures propagated to a single exit
// point.
package orchestrator

import (
	"fmt"
	"log"
	"os"

	"github.com/tegraboot/bup-updater/internal/bct"
	"github.com/tegraboot/bup-updater/internal/blockio"
	"github.com/tegraboot/bup-updater/internal/collaborators"
	"github.com/tegraboot/bup-updater/internal/executor"
	"github.com/tegraboot/bup-updater/internal/partition"
	"github.com/tegraboot/bup-updater/internal/planner"
	"github.com/tegraboot/bup-updater/internal/redundancy"
	"github.com/tegraboot/bup-updater/internal/repartition"
	"github.com/tegraboot/bup-updater/internal/slotactivator"
	"github.com/tegraboot/bup-updater/internal/soc"
	"github.com/tegraboot/bup-updater/internal/vergate"
)

// Config bundles every collaborator and device handle one run needs. The
// collaborator fields are out-of-scope implementations (spec.md §1, §6.2)
// supplied by the caller; SMD, BCTValidatorG1 and BCTValidatorG2G3 need
// only be set for the SoC generations that use them.
type Config struct {
	Platform         collaborators.Platform
	GPT              collaborators.GPT
	BUP              collaborators.BUP
	SMD              collaborators.SMD // unused on G1.
	VER              collaborators.VER
	Checksum         collaborators.Checksum
	BCTValidatorG2G3 collaborators.BCTValidatorT18xT19x
	BCTValidatorG1   collaborators.BCTValidatorT21x

	BootFD         *os.File
	GPTFD          *os.File // nil when only one boot device is present.
	BootDevicePath string
	BootDeviceSize int64
	Medium         soc.Medium

	// Initialize is -i/--initialize. ExplicitSlot/SlotSuffix is -s with
	// its argument already normalized ("_a" -> "").
	Initialize   bool
	ExplicitSlot bool
	SlotSuffix   string
	DryRun       bool
}

// Orchestrator runs one update per instance; it is not reused across runs
// (spec.md §9: the SoC type and dry-run state it discovers are this run's
// global mutable state, not persisted).
type Orchestrator struct {
	cfg Config
	soc soc.Type
}

func New(cfg Config) *Orchestrator {
	return &Orchestrator{cfg: cfg}
}

// Run executes the full update pipeline (spec.md §4.6–§4.8) and returns the
// process exit code spec.md §6.1/§7 specify: 0 on success, 1 on any
// failure.
func (o *Orchestrator) Run() (exitCode int, err error) {
	t, err := o.cfg.Platform.SoCType()
	if err != nil {
		return 1, fmt.Errorf("orchestrator: detect SoC type: %w", err)
	}
	o.soc = t

	mode := planner.ModeInitialize
	explicitSlot := o.cfg.ExplicitSlot
	targetSuffix := o.cfg.SlotSuffix
	if t.HasSlots() && !o.cfg.Initialize {
		mode = planner.ModeUpdate
		if !explicitSlot {
			// Neither -i nor -s: read the current slot from SMD and
			// target the other one (spec.md §6.1).
			targetSuffix = ""
			if o.cfg.SMD.CurrentSlot() == 0 {
				targetSuffix = "_b"
			}
		}
	}
	// G1 is always treated as initialize, regardless of flags (spec.md §6.1).
	if t == soc.G1 {
		mode = planner.ModeInitialize
		targetSuffix = ""
	}

	priorWriteable, err := o.cfg.Platform.SetBootdevWriteableStatus(o.cfg.BootDevicePath, true)
	if err != nil {
		return 1, fmt.Errorf("orchestrator: set boot device writeable: %w", err)
	}
	defer func() {
		if _, restoreErr := o.cfg.Platform.SetBootdevWriteableStatus(o.cfg.BootDevicePath, priorWriteable); restoreErr != nil {
			log.Printf("orchestrator: restore boot device writeable status: %v", restoreErr)
		}
	}()

	if err := o.cfg.GPT.Load(false); err != nil {
		return 1, fmt.Errorf("orchestrator: load GPT: %w", err)
	}
	defer func() {
		if finErr := o.cfg.GPT.Finish(); finErr != nil {
			log.Printf("orchestrator: finish GPT: %v", finErr)
		}
	}()

	// G1 never touches SMD at all (Testable Property 7).
	if t.HasSlots() {
		defer func() {
			if finErr := o.cfg.SMD.Finish(); finErr != nil {
				log.Printf("orchestrator: finish SMD: %v", finErr)
			}
		}()
	}

	entries, err := o.cfg.BUP.Entries()
	if err != nil {
		return 1, fmt.Errorf("orchestrator: enumerate BUP entries: %w", err)
	}

	if err := o.checkVersionGate(entries, t, targetSuffix); err != nil {
		return 1, err
	}

	resolve := func(name string) (*partition.Target, error) {
		return partition.Resolve(o.cfg.GPT, o.cfg.BootFD, o.cfg.GPTFD, o.cfg.BootDeviceSize, o.cfg.Platform, name)
	}

	inputs := make([]planner.BUPInput, len(entries))
	for i, e := range entries {
		inputs[i] = planner.BUPInput{Name: e.Name, BUPOffset: e.Offset, ByteLength: e.Length, Version: e.Version}
	}

	plan, err := planner.Plan(inputs, o.cfg.GPT, resolve, t, o.cfg.Medium, mode, targetSuffix)
	if err != nil {
		return 1, fmt.Errorf("orchestrator: plan update: %w", err)
	}
	for _, w := range plan.Warnings {
		log.Print(w)
	}

	zero := make([]byte, largestPartitionLength(plan.Worklist))
	ex := executor.New(o.cfg.BUP, o.cfg.DryRun, mode == planner.ModeInitialize, zero)
	if t == soc.G1 {
		ex.G1 = bct.NewG1Writer(o.cfg.Medium, o.cfg.BCTValidatorG1)
		ex.G1Ctx = bct.NewG1Context()
	} else {
		ex.G2G3 = bct.NewG2G3Writer(o.cfg.Medium, o.cfg.BCTValidatorG2G3)
	}

	if _, err := ex.Run(plan.Worklist, plan.MB1Other); err != nil {
		return 1, fmt.Errorf("orchestrator: execute worklist: %w", err)
	}

	if t.HasSlots() {
		d, err := slotactivator.Activate(o.cfg.SMD, mode == planner.ModeInitialize, explicitSlot, o.cfg.DryRun)
		if err != nil {
			return 1, fmt.Errorf("orchestrator: activate slot: %w", err)
		}
		if d.Skipped {
			log.Print("slot activation skipped")
		} else {
			log.Printf("activated slot %d", d.NewSlot)
			if err := o.cfg.SMD.Update(mode == planner.ModeInitialize); err != nil {
				return 1, fmt.Errorf("orchestrator: persist SMD: %w", err)
			}
		}
	}

	return 0, nil
}

// CheckRepartition runs the read-only repartition-check mode (spec.md
// §4.9), implied by -N/--needs-repartition.
func (o *Orchestrator) CheckRepartition() (exitCode int, err error) {
	t, err := o.cfg.Platform.SoCType()
	if err != nil {
		return repartition.ExitCompareFailed, fmt.Errorf("orchestrator: detect SoC type: %w", err)
	}
	return repartition.Check(o.cfg.GPT, t)
}

// largestPartitionLength sizes the executor's shared erase buffer: it must
// cover the biggest partition any worklist entry erases (spec.md §5, the
// executor owns this buffer exclusively).
func largestPartitionLength(worklist []planner.Entry) int64 {
	var max int64
	for _, e := range worklist {
		if e.Target == nil {
			continue
		}
		if e.Target.ByteLength > max {
			max = e.Target.ByteLength
		}
	}
	if max == 0 {
		max = 1
	}
	return max
}

// checkVersionGate implements spec.md §4.5 by reading the payload's VER
// entry (if any) and the on-device primary/redundant VER partitions, then
// delegating the decision to vergate.Check.
func (o *Orchestrator) checkVersionGate(entries []collaborators.BUPEntry, t soc.Type, targetSuffix string) error {
	var payload collaborators.VersionInfo
	present := false
	for _, e := range entries {
		if e.Name == "VER" {
			payload = e.Version
			present = true
			break
		}
	}

	in := vergate.Inputs{PayloadPresent: present, Payload: payload, Force: o.cfg.Initialize}
	if present {
		var err error
		in.Primary, in.PrimaryValid, err = o.readVersion(t, "VER")
		if err != nil {
			return fmt.Errorf("orchestrator: read primary VER partition: %w", err)
		}
		redundantName := redundancy.Name(t, o.cfg.Medium, "VER")
		in.Redundant, in.RedundantValid, err = o.readVersion(t, redundantName)
		if err != nil {
			return fmt.Errorf("orchestrator: read redundant VER partition: %w", err)
		}
		in.NVCPrimaryBytes, err = o.readPartitionBytes("NVC")
		if err != nil {
			return fmt.Errorf("orchestrator: read primary NVC partition: %w", err)
		}
		in.NVCRedundantBytes, err = o.readPartitionBytes(redundancy.Name(t, o.cfg.Medium, "NVC"))
		if err != nil {
			return fmt.Errorf("orchestrator: read redundant NVC partition: %w", err)
		}
	}

	d, err := vergate.Check(in, o.cfg.Checksum)
	if err != nil {
		return fmt.Errorf("orchestrator: version gate: %w", err)
	}
	if !d.Accept {
		return fmt.Errorf("orchestrator: version gate rejected update: %s", d.Reason)
	}
	if d.Warning != "" {
		log.Print(d.Warning)
	}
	return nil
}

func (o *Orchestrator) readVersion(t soc.Type, name string) (collaborators.VersionInfo, bool, error) {
	raw, err := o.readPartitionBytes(name)
	if err != nil {
		return collaborators.VersionInfo{}, false, err
	}
	if raw == nil {
		return collaborators.VersionInfo{}, false, nil
	}
	v, err := o.cfg.VER.ExtractInfo(raw)
	if err != nil {
		return collaborators.VersionInfo{}, false, nil // corrupted: invalid, not fatal here.
	}
	return v, true, nil
}

func (o *Orchestrator) readPartitionBytes(name string) ([]byte, error) {
	tgt, err := partition.Resolve(o.cfg.GPT, o.cfg.BootFD, o.cfg.GPTFD, o.cfg.BootDeviceSize, o.cfg.Platform, name)
	if err != nil {
		return nil, err
	}
	if tgt == nil || tgt.External {
		return nil, nil
	}
	buf := make([]byte, tgt.ByteLength)
	if err := blockio.ReadExactAt(tgt.Handle, buf, len(buf), tgt.ByteOffset); err != nil {
		return nil, err
	}
	return buf, nil
}
