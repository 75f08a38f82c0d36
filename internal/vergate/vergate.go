// Package vergate implements the version/rollback gate (spec.md §4.5):
// it decides whether a BUP payload is permitted to write the boot chain by
// comparing its declared version against the on-device VER partitions.
package vergate

import (
	"fmt"

	"github.com/tegraboot/bup-updater/internal/collaborators"
)

// Decision is the gate's verdict.
type Decision struct {
	Accept  bool
	Warning string // non-empty when Accept is true only because Force was set
	Reason  string // non-empty when Accept is false
}

// Inputs bundles the four byte sources the gate compares, per spec.md §4.5
// and §6.2.
type Inputs struct {
	// Payload is the VER entry from the BUP. Absent (PayloadPresent=false) means
	// the BUP does not touch the boot chain, and the gate always passes.
	Payload        collaborators.VersionInfo
	PayloadPresent bool

	Primary           collaborators.VersionInfo
	PrimaryValid      bool
	Redundant         collaborators.VersionInfo
	RedundantValid    bool
	NVCPrimaryBytes   []byte
	NVCRedundantBytes []byte

	Force bool
}

// Check implements the four outcomes of spec.md §4.5.
func Check(in Inputs, checksum collaborators.Checksum) (Decision, error) {
	if !in.PayloadPresent {
		return Decision{Accept: true}, nil
	}

	switch {
	case in.PrimaryValid && in.RedundantValid && in.Primary.Equal(in.Redundant) && !in.Primary.IsZero():
		// Outcome 1: both on-device VER parse with equal nonzero bsp_version.
		if in.Primary.Greater(in.Payload) {
			return Decision{Accept: false, Reason: fmt.Sprintf("rollback: on-device version %d.%d.%d is newer than payload version %d.%d.%d",
				in.Primary.Major, in.Primary.Minor, in.Primary.Maint, in.Payload.Major, in.Payload.Minor, in.Payload.Maint)}, nil
		}
		if in.Primary.CRC == in.Redundant.CRC {
			if checksum.CRC32(in.NVCPrimaryBytes) != checksum.CRC32(in.NVCRedundantBytes) {
				return Decision{Accept: false, Reason: "NVC partition mismatch — reflash required"}, nil
			}
		}
		return Decision{Accept: true}, nil

	case !in.RedundantValid && in.PrimaryValid && in.Primary.Greater(in.Payload):
		// Outcome 2: redundant VER invalid, primary valid and newer than
		// payload.
		if in.Force {
			return Decision{Accept: true, Warning: "forcing initialization over a primary VER newer than the payload"}, nil
		}
		return Decision{Accept: false, Reason: "rollback: primary VER is newer than payload and redundant VER is invalid"}, nil

	case in.RedundantValid && !in.Redundant.Equal(in.Payload):
		// Outcome 3: redundant VER valid but doesn't match payload.
		return Decision{Accept: false, Reason: fmt.Sprintf(
			"previous update incomplete; please update with version %d.%d.%d",
			in.Redundant.Major, in.Redundant.Minor, in.Redundant.Maint)}, nil

	default:
		// Outcome 4: both corrupted (or none of the above matched).
		if in.Force {
			return Decision{Accept: true, Warning: "forcing initialization over corrupted VER partitions"}, nil
		}
		return Decision{Accept: false, Reason: "VER partitions are corrupted or inconsistent and -i/--initialize was not forced"}, nil
	}
}
