package planner

import "github.com/tegraboot/bup-updater/internal/soc"

// orderByTable arranges entries into the slots named by table, consuming
// at most one matching entry (in discovered order) per slot; any entry
// left unconsumed — either because its name never appears in table, or
// because table names it fewer times than it occurs — is appended at the
// end in its original discovered order, so ordering never drops work.
func orderByTable(entries []Entry, table []string) []Entry {
	byName := make(map[string][]int, len(entries))
	for i, e := range entries {
		byName[e.PartitionName] = append(byName[e.PartitionName], i)
	}
	used := make([]bool, len(entries))
	result := make([]Entry, 0, len(entries))

	for _, name := range table {
		for _, idx := range byName[name] {
			if !used[idx] {
				result = append(result, entries[idx])
				used[idx] = true
				break
			}
		}
	}
	for i, e := range entries {
		if !used[i] {
			result = append(result, e)
		}
	}
	return result
}

// g2g3Order is the fixed precedence spec.md §4.6 describes for G2/G3:
// everything else first (in discovered order, handled by the caller),
// then mb2/mb2_b, then up to three BCT entries (in the order discovered),
// then mb1/mb1_b.
var g2g3SpecialNames = map[string]bool{
	"mb1": true, "mb1_b": true,
	"mb2": true, "mb2_b": true,
	"BCT": true,
}

var g2g3Order = []string{"mb2", "mb2_b", "BCT", "BCT", "BCT", "mb1", "mb1_b"}

func orderG2G3(entries []Entry) []Entry {
	var head, special []Entry
	for _, e := range entries {
		if g2g3SpecialNames[e.PartitionName] {
			special = append(special, e)
		} else {
			head = append(head, e)
		}
	}
	return append(head, orderByTable(special, g2g3Order)...)
}

// g1OrderEMMC and g1OrderSPI are the fixed BCT-write-interleaved sequences
// for G1 devices (spec.md §4.6, §4.4's three-state schedule): BCT is
// named three times because the G1 writer is re-entered across the
// worklist as other images are written in between (spec.md §9,
// "back-patched BCT context"). Entries whose name never appears in the
// table (or that exceed the count named) are written afterward in
// discovered order (spec.md §4.6, "optional entries are skipped in
// sequence, not replaced").
var g1OrderEMMC = []string{
	"mb1", "BCT",
	"mb2", "BCT",
	"bootloader", "EKS", "warmboot", "BCT",
}

var g1OrderSPI = []string{
	"mb1", "BCT",
	"bootloader", "BCT",
	"mb2", "EKS", "BCT",
}

func orderG1(entries []Entry, m soc.Medium) []Entry {
	table := g1OrderEMMC
	if m == soc.SPI {
		table = g1OrderSPI
	}
	return orderByTable(entries, table)
}
