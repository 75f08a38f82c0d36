// Package refplatform is the CLI's composition root: concrete adapters for
// the collaborator interfaces declared in internal/collaborators
// (spec.md §6.2). Two of them — Platform and Checksum — are genuinely
// implementable against stock Linux (device-tree compatible string,
// sysfs force_ro, hash/crc32) and are wired for real, and SMD has a small
// JSON-file implementation (FileSMD, smd.go). The rest (GPT, BUP, VER, and
// the BCT validators) require parsing NVIDIA's proprietary on-device
// formats, which spec.md §1 explicitly scopes out of this tool ("used only
// through the interfaces named in §6"); their stubs in unimplemented.go
// fail loudly rather than pretend to work, the same way the teacher's
// internal/packer/parttable_stub.go fails loudly on unsupported platforms
// instead of silently no-opping.
package refplatform

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"

	"github.com/tegraboot/bup-updater/internal/config"
	"github.com/tegraboot/bup-updater/internal/soc"
)

// compatibleFile is the standard Linux device-tree export of the board's
// compatible strings, most-specific first.
const compatibleFile = "/proc/device-tree/compatible"

// Platform implements collaborators.Platform against a stock Linux kernel:
// SoC detection reads the device-tree compatible string (or an explicit
// override from config.Struct, for integration testing without hardware);
// the writeable toggle flips the sysfs force_ro attribute Linux exposes
// for eMMC boot-partition block devices.
type Platform struct {
	Config *config.Struct
}

// SoCType implements spec.md §4's platform detection. It is intentionally
// minimal: it classifies by SoC family prefix and does not attempt to
// resolve every Tegra part number, since the three buckets this tool cares
// about (spec.md §3) are family-wide.
func (p *Platform) SoCType() (soc.Type, error) {
	if p.Config != nil && p.Config.PlatformOverride != "" {
		return parsePlatformOverride(p.Config.PlatformOverride)
	}

	raw, err := os.ReadFile(compatibleFile)
	if err != nil {
		return 0, fmt.Errorf("refplatform: read %s: %w", compatibleFile, err)
	}
	t, ok := classifyCompatible(raw)
	if !ok {
		return 0, fmt.Errorf("refplatform: no recognized Tegra family in %s", compatibleFile)
	}
	return t, nil
}

func parsePlatformOverride(v string) (soc.Type, error) {
	switch v {
	case "G1":
		return soc.G1, nil
	case "G2":
		return soc.G2, nil
	case "G3":
		return soc.G3, nil
	default:
		return 0, fmt.Errorf("refplatform: unrecognized PlatformOverride %q (want G1, G2, or G3)", v)
	}
}

// classifyCompatible maps a NUL-separated device-tree compatible string to
// a SoC family. Part numbers are grouped the way spec.md §3 groups them:
// G1 is the earliest single-boot-copy generation, G2/G3 are the two
// A/B-redundant generations.
func classifyCompatible(raw []byte) (soc.Type, bool) {
	for _, field := range strings.Split(string(bytes.Trim(raw, "\x00")), "\x00") {
		switch {
		case strings.Contains(field, "tegra234"), strings.Contains(field, "tegra239"):
			return soc.G3, true
		case strings.Contains(field, "tegra194"), strings.Contains(field, "tegra186"):
			return soc.G2, true
		case strings.Contains(field, "tegra210"), strings.Contains(field, "tegra124"):
			return soc.G1, true
		}
	}
	return 0, false
}

// SetBootdevWriteableStatus toggles /sys/block/<dev>/force_ro, the kernel
// attribute that write-protects eMMC boot-partition block devices by
// default, and returns the state it observed before toggling so the
// orchestrator can restore it (spec.md §5).
func (p *Platform) SetBootdevWriteableStatus(path string, writeable bool) (prior bool, err error) {
	roPath := filepath.Join("/sys/block", filepath.Base(path), "force_ro")
	cur, err := os.ReadFile(roPath)
	if err != nil {
		return false, fmt.Errorf("refplatform: read %s: %w", roPath, err)
	}
	prior = strings.TrimSpace(string(cur)) != "1"

	want := "1"
	if writeable {
		want = "0"
	}
	if err := os.WriteFile(roPath, []byte(want), 0); err != nil {
		return false, fmt.Errorf("refplatform: write %s: %w", roPath, err)
	}
	return prior, nil
}

// PartitionShouldBePresent delegates to the optional-partition allow-list
// (spec.md §4.2 step 3); everything is required when no config was loaded.
func (p *Platform) PartitionShouldBePresent(name string) bool {
	if p.Config == nil {
		return true
	}
	return p.Config.PartitionShouldBePresent(name)
}

// Checksum implements collaborators.Checksum with the standard library's
// CRC-32 (IEEE polynomial) — spec.md §4.5's NVC comparison does not
// specify a polynomial, and hash/crc32 is the ambient-stack exception
// this repo's DESIGN.md documents (no pack dependency covers CRC-32).
type Checksum struct{}

func (Checksum) CRC32(data []byte) uint32 { return crc32.ChecksumIEEE(data) }

// unimplementedFormat is returned by the stubs in unimplemented.go: the
// on-device binary layouts they would parse (BUP container, GPT, VER) are
// NVIDIA-proprietary and out of scope for this tool (spec.md §1). A real
// deployment links vendor-supplied adapters satisfying the same
// interfaces; these stubs exist so cmd/update-tool composes and fails
// clearly instead of needing build tags to omit collaborators entirely.
func unimplementedFormat(what string) error {
	return fmt.Errorf("refplatform: %s parsing is vendor-proprietary and not implemented by this tool (spec.md §1); supply a real adapter", what)
}
