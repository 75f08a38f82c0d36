package vergate_test

import (
	"hash/crc32"
	"testing"

	"github.com/tegraboot/bup-updater/internal/collaborators"
	"github.com/tegraboot/bup-updater/internal/vergate"
)

type stdChecksum struct{}

func (stdChecksum) CRC32(data []byte) uint32 { return crc32.ChecksumIEEE(data) }

func v(major, minor, maint int, crc uint32) collaborators.VersionInfo {
	return collaborators.VersionInfo{Major: major, Minor: minor, Maint: maint, CRC: crc, Valid: true}
}

func TestCheckNoPayloadAlwaysPasses(t *testing.T) {
	d, err := vergate.Check(vergate.Inputs{PayloadPresent: false}, stdChecksum{})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Accept {
		t.Fatal("absence of a payload VER entry must always pass the gate")
	}
}

func TestCheckRollbackRejected(t *testing.T) {
	in := vergate.Inputs{
		PayloadPresent: true,
		Payload:        v(35, 2, 0, 1),
		Primary:        v(35, 3, 0, 1),
		PrimaryValid:   true,
		Redundant:      v(35, 3, 0, 1),
		RedundantValid: true,
	}
	d, err := vergate.Check(in, stdChecksum{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Accept {
		t.Fatal("expected rollback rejection")
	}
}

func TestCheckAcceptsForwardUpdate(t *testing.T) {
	in := vergate.Inputs{
		PayloadPresent: true,
		Payload:        v(35, 4, 1, 2),
		Primary:        v(35, 3, 0, 1),
		PrimaryValid:   true,
		Redundant:      v(35, 3, 0, 1),
		RedundantValid: true,
	}
	d, err := vergate.Check(in, stdChecksum{})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Accept {
		t.Fatalf("expected accept, got reason %q", d.Reason)
	}
}

func TestCheckNVCMismatchRejected(t *testing.T) {
	in := vergate.Inputs{
		PayloadPresent:    true,
		Payload:           v(35, 4, 1, 7),
		Primary:           v(35, 3, 0, 7),
		PrimaryValid:      true,
		Redundant:         v(35, 3, 0, 7), // equal CRC field triggers NVC comparison
		RedundantValid:    true,
		NVCPrimaryBytes:   []byte("primary-nvc-bytes"),
		NVCRedundantBytes: []byte("different-redundant-nvc-bytes"),
	}
	d, err := vergate.Check(in, stdChecksum{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Accept {
		t.Fatal("expected NVC mismatch rejection")
	}
	if d.Reason == "" {
		t.Error("expected a reflash-required reason")
	}
}

func TestCheckIncompletePriorUpdateRejected(t *testing.T) {
	in := vergate.Inputs{
		PayloadPresent: true,
		Payload:        v(35, 4, 1, 0),
		PrimaryValid:   false,
		Redundant:      v(35, 2, 0, 0),
		RedundantValid: true,
	}
	d, err := vergate.Check(in, stdChecksum{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Accept {
		t.Fatal("expected incomplete-prior-update rejection")
	}
}

func TestCheckBothCorruptedForced(t *testing.T) {
	in := vergate.Inputs{
		PayloadPresent: true,
		Payload:        v(35, 4, 1, 0),
		Force:          true,
	}
	d, err := vergate.Check(in, stdChecksum{})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Accept || d.Warning == "" {
		t.Fatal("expected forced accept with warning")
	}
}

func TestCheckBothCorruptedNotForcedRejected(t *testing.T) {
	in := vergate.Inputs{
		PayloadPresent: true,
		Payload:        v(35, 4, 1, 0),
		Force:          false,
	}
	d, err := vergate.Check(in, stdChecksum{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Accept {
		t.Fatal("expected rejection without force")
	}
}
