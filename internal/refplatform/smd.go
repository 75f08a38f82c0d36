package refplatform

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio/v2"

	"github.com/tegraboot/bup-updater/internal/collaborators"
)

// smdState is the on-disk shape FileSMD persists. Unlike the GPT/BUP/VER
// formats, slot metadata is just a couple of small integers; recording it
// as JSON rather than parsing a vendor binary layout is a reasonable
// concrete default when no vendor SMD partition driver is linked in.
type smdState struct {
	CurrentSlot     int
	RedundancyLevel int
}

// FileSMD implements collaborators.SMD by persisting slot metadata to a
// plain JSON file with an atomic rewrite (write-to-temp, fsync, rename),
// the same guarantee the teacher's cmd/gok/cmd/add.go gets from
// renameio.WriteFile when rewriting config.json. This matters here for
// the identical reason it matters there: a crash mid-write must never
// leave slot metadata half-written (spec.md §4.8, §5).
type FileSMD struct {
	path  string
	state smdState
}

// NewFileSMD loads path, or starts from slot 0 / RedundancyPartial if it
// does not exist yet (spec.md §4.8's implicit first-boot state).
func NewFileSMD(path string) (*FileSMD, error) {
	f := &FileSMD{path: path}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("refplatform: read SMD state %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &f.state); err != nil {
		return nil, fmt.Errorf("refplatform: parse SMD state %s: %w", path, err)
	}
	return f, nil
}

func (f *FileSMD) CurrentSlot() int { return f.state.CurrentSlot }

func (f *FileSMD) RedundancyLevel() collaborators.RedundancyLevel {
	return collaborators.RedundancyLevel(f.state.RedundancyLevel)
}

func (f *FileSMD) SetRedundancyLevel(level collaborators.RedundancyLevel) error {
	f.state.RedundancyLevel = int(level)
	return nil
}

func (f *FileSMD) MarkSlotActive(slot int) error {
	f.state.CurrentSlot = slot
	return nil
}

// Update persists the current in-memory state; initialize is accepted to
// satisfy collaborators.SMD but does not change what gets written, since
// FileSMD has no separate "committed" vs "pending" representation to
// reconcile.
func (f *FileSMD) Update(initialize bool) error {
	b, err := json.Marshal(f.state)
	if err != nil {
		return fmt.Errorf("refplatform: marshal SMD state: %w", err)
	}
	if err := renameio.WriteFile(f.path, b, 0o600); err != nil {
		return fmt.Errorf("refplatform: persist SMD state %s: %w", f.path, err)
	}
	return nil
}

func (f *FileSMD) Finish() error { return nil }
