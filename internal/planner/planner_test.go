package planner_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/tegraboot/bup-updater/internal/collaborators"
	"github.com/tegraboot/bup-updater/internal/partition"
	"github.com/tegraboot/bup-updater/internal/planner"
	"github.com/tegraboot/bup-updater/internal/soc"
)

// fakeGPT implements collaborators.GPT backed by a fixed descriptor set.
type fakeGPT struct {
	descs map[string]collaborators.Descriptor
}

func newFakeGPT(names ...string) *fakeGPT {
	g := &fakeGPT{descs: map[string]collaborators.Descriptor{}}
	for _, n := range names {
		g.descs[n] = collaborators.Descriptor{Name: n}
	}
	return g
}

func (g *fakeGPT) Load(bool) error                              { return nil }
func (g *fakeGPT) Save() error                                  { return nil }
func (g *fakeGPT) Finish() error                                 { return nil }
func (g *fakeGPT) LayoutConfigMatch() collaborators.LayoutMatch { return collaborators.LayoutOK }
func (g *fakeGPT) FindByName(name string) (collaborators.Descriptor, bool) {
	d, ok := g.descs[name]
	return d, ok
}

// resolverFor returns a planner.ResolveFunc that yields a distinct Target
// for each name present in the GPT, and nil (optional-absent) otherwise.
func resolverFor(gpt *fakeGPT) planner.ResolveFunc {
	return func(name string) (*partition.Target, error) {
		if _, ok := gpt.descs[name]; !ok {
			return nil, nil
		}
		return &partition.Target{ByteOffset: 0}, nil
	}
}

func in(name string) planner.BUPInput { return planner.BUPInput{Name: name} }

func names(entries []planner.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.PartitionName
	}
	return out
}

func TestPlanG2G3InitializeOrdersFixedPrecedence(t *testing.T) {
	// BUP entries carry only base names; redundant _b partners are
	// synthesized by classification, never supplied as separate BUP
	// entries (spec.md §4.6) — feeding both would double-write the _b
	// partition.
	gpt := newFakeGPT("VER", "bootloader", "bootloader_b", "mb2", "mb2_b", "BCT", "mb1", "mb1_b")
	inputs := []planner.BUPInput{in("mb1"), in("bootloader"), in("BCT"), in("mb2"), in("VER")}

	res, err := planner.Plan(inputs, gpt, resolverFor(gpt), soc.G2, soc.EMMC, planner.ModeInitialize, "")
	if err != nil {
		t.Fatal(err)
	}

	got := names(res.Worklist)
	// Non-special names (bootloader, bootloader_b, VER) retain discovery
	// order; mb2/mb2_b, BCT, mb1/mb1_b are pulled to the end in that
	// fixed precedence (spec.md §4.6).
	want := []string{"bootloader", "bootloader_b", "VER", "mb2", "mb2_b", "BCT", "mb1", "mb1_b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("worklist order mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanUpdateSelectsTargetSlotAndRecordsMB1Other(t *testing.T) {
	gpt := newFakeGPT("mb1", "mb1_b", "mb2", "mb2_b", "BCT")
	inputs := []planner.BUPInput{in("mb1"), in("mb2"), in("BCT")}

	res, err := planner.Plan(inputs, gpt, resolverFor(gpt), soc.G2, soc.EMMC, planner.ModeUpdate, "_b")
	if err != nil {
		t.Fatal(err)
	}

	got := names(res.Worklist)
	want := []string{"mb2_b", "BCT", "mb1_b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("worklist mismatch (-want +got):\n%s", diff)
	}
	if res.MB1Other == nil {
		t.Fatal("expected MB1Other to be recorded when the mb1 family is targeted")
	}
}

func TestPlanUpdatePropagatesResolveError(t *testing.T) {
	gpt := newFakeGPT("mb1", "mb1_b", "mb2")
	inputs := []planner.BUPInput{in("mb1")}

	resolve := func(name string) (*partition.Target, error) {
		if name == "mb1_b" {
			return nil, fmt.Errorf("device open failed")
		}
		return resolverFor(gpt)(name)
	}

	_, err := planner.Plan(inputs, gpt, resolve, soc.G2, soc.EMMC, planner.ModeUpdate, "_b")
	if err == nil {
		t.Fatal("expected a resolution error to propagate out of Plan")
	}
}

func TestPlanUpdateSkipsNonRedundantEntries(t *testing.T) {
	gpt := newFakeGPT("mb1", "mb1_b", "extra")
	inputs := []planner.BUPInput{in("mb1"), in("extra")}

	res, err := planner.Plan(inputs, gpt, resolverFor(gpt), soc.G2, soc.EMMC, planner.ModeUpdate, "")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"mb1"}, names(res.Worklist)); diff != "" {
		t.Errorf("expected non-redundant entries dropped in update mode (-want +got):\n%s", diff)
	}
}

func TestPlanG1OrderSkipsMissingOptionalEntries(t *testing.T) {
	gpt := newFakeGPT("mb1", "BCT", "mb2", "bootloader")
	inputs := []planner.BUPInput{in("bootloader"), in("mb2"), in("mb1"), in("BCT")}

	res, err := planner.Plan(inputs, gpt, resolverFor(gpt), soc.G1, soc.EMMC, planner.ModeInitialize, "")
	if err != nil {
		t.Fatal(err)
	}
	got := names(res.Worklist)
	want := []string{"mb1", "BCT", "mb2", "BCT", "bootloader", "BCT"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("G1 order with a missing optional EKS entry (-want +got):\n%s", diff)
	}
}

func TestPlanRejectsUpdateModeOnG1(t *testing.T) {
	gpt := newFakeGPT("mb1")
	_, err := planner.Plan([]planner.BUPInput{in("mb1")}, gpt, resolverFor(gpt), soc.G1, soc.EMMC, planner.ModeUpdate, "")
	if err == nil {
		t.Fatal("expected update mode to be rejected for G1")
	}
}

// TestPlanIsDeterministic exercises Testable Property 9: planning the same
// inputs twice must yield byte-for-byte identical worklists.
func TestPlanIsDeterministic(t *testing.T) {
	gpt := newFakeGPT("VER", "mb2", "mb2_b", "BCT", "mb1", "mb1_b", "bootloader", "bootloader_b")
	inputs := []planner.BUPInput{
		in("VER"), in("bootloader"), in("mb1"), in("mb2"), in("BCT"),
	}

	first, err := planner.Plan(inputs, gpt, resolverFor(gpt), soc.G3, soc.EMMC, planner.ModeInitialize, "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := planner.Plan(inputs, gpt, resolverFor(gpt), soc.G3, soc.EMMC, planner.ModeInitialize, "")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(first, second, cmpopts.IgnoreFields(partition.Target{}, "Handle")); diff != "" {
		t.Errorf("planning the same inputs twice produced different results (-first +second):\n%s", diff)
	}
}
