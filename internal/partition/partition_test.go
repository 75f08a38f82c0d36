package partition_test

import (
	"testing"

	"github.com/tegraboot/bup-updater/internal/collaborators"
	"github.com/tegraboot/bup-updater/internal/partition"
	"github.com/tegraboot/bup-updater/internal/soc"
)

type fakeGPT struct {
	byName map[string]collaborators.Descriptor
}

func (f *fakeGPT) Load(bool) error { return nil }
func (f *fakeGPT) Save() error     { return nil }
func (f *fakeGPT) FindByName(name string) (collaborators.Descriptor, bool) {
	d, ok := f.byName[name]
	return d, ok
}
func (f *fakeGPT) LayoutConfigMatch() collaborators.LayoutMatch { return collaborators.LayoutOK }
func (f *fakeGPT) Finish() error                                { return nil }

type fakePlatform struct {
	optional map[string]bool
}

func (f *fakePlatform) SoCType() (soc.Type, error) { return soc.G2, nil }
func (f *fakePlatform) SetBootdevWriteableStatus(string, bool) (bool, error) {
	return false, nil
}
func (f *fakePlatform) PartitionShouldBePresent(name string) bool {
	return !f.optional[name]
}

func TestResolvePrimaryDevice(t *testing.T) {
	gpt := &fakeGPT{byName: map[string]collaborators.Descriptor{
		"BCT": {Name: "BCT", FirstSector: 0, LastSector: 63},
	}}
	plat := &fakePlatform{}

	tgt, err := partition.Resolve(gpt, nil, nil, 1<<30, plat, "BCT")
	if err != nil {
		t.Fatal(err)
	}
	if tgt.External {
		t.Fatal("expected a device-bound target")
	}
	if tgt.ByteOffset != 0 {
		t.Errorf("ByteOffset = %d, want 0", tgt.ByteOffset)
	}
	if tgt.ByteLength != 64*512 {
		t.Errorf("ByteLength = %d, want %d", tgt.ByteLength, 64*512)
	}
}

func TestResolvePastPrimaryWithoutGPTDeviceFails(t *testing.T) {
	const bootDeviceSize = 1024 * 512 // 1024 sectors
	gpt := &fakeGPT{byName: map[string]collaborators.Descriptor{
		// First sector past bootDeviceSize.
		"mb1": {Name: "mb1", FirstSector: 2000, LastSector: 2063},
	}}
	plat := &fakePlatform{}

	tgt, err := partition.Resolve(gpt, nil, nil, bootDeviceSize, plat, "mb1")
	if err == nil || tgt != nil {
		t.Fatalf("expected fatal error without a GPT device, got tgt=%v err=%v", tgt, err)
	}
}

func TestResolveOptionalMissingIsSkipped(t *testing.T) {
	gpt := &fakeGPT{byName: map[string]collaborators.Descriptor{}}
	plat := &fakePlatform{optional: map[string]bool{"EKS": true}}

	tgt, err := partition.Resolve(gpt, nil, nil, 1<<30, plat, "EKS")
	if err != nil {
		t.Fatalf("optional partition should not error, got %v", err)
	}
	if tgt != nil {
		t.Fatalf("expected nil target for skipped optional partition, got %v", tgt)
	}
}

func TestResolveRequiredMissingFails(t *testing.T) {
	gpt := &fakeGPT{byName: map[string]collaborators.Descriptor{}}
	plat := &fakePlatform{}

	_, err := partition.Resolve(gpt, nil, nil, 1<<30, plat, "bootloader")
	if err == nil {
		t.Fatal("expected error for required-but-missing partition")
	}
}
