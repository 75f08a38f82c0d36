// Package collaborators declares the external interfaces this tool
// consumes but does not implement (spec.md §6.2): BUP container parsing,
// GPT partition table access, slot-metadata (SMD) and version-info (VER)
// partition I/O, SoC-type detection, and the vendor BCT validators.
//
// spec.md §1 explicitly scopes parsing of these formats out of THE CORE —
// "used only through the interfaces named in §6". Everything in this
// package is therefore a contract, not an implementation; concrete
// adapters live with their callers (tests) or in internal/refplatform for
// the CLI's composition root.
package collaborators

import "github.com/tegraboot/bup-updater/internal/soc"

// Descriptor is a GPT partition table entry (spec.md §3): sector size is
// fixed at 512 bytes, byte length is (last-first+1)*512.
type Descriptor struct {
	Name        string
	FirstSector uint64
	LastSector  uint64
}

func (d Descriptor) ByteOffset() int64 {
	return int64(d.FirstSector) * 512
}

func (d Descriptor) ByteLength() int64 {
	return (int64(d.LastSector-d.FirstSector) + 1) * 512
}

// LayoutMatch is the three-way result of GPT.LayoutConfigMatch
// (spec.md §4.9, §6.2).
type LayoutMatch int

const (
	LayoutError LayoutMatch = iota - 1
	LayoutMismatch
	LayoutOK
)

// GPT is the partition table reader/writer collaborator (spec.md §6.2).
type GPT interface {
	// Load reads the GPT from the device it was initialized against.
	Load(backupOnly bool) error
	// Save persists the GPT.
	Save() error
	// FindByName returns the partition descriptor for name, if present.
	FindByName(name string) (Descriptor, bool)
	// LayoutConfigMatch compares the loaded GPT against the configured
	// layout (spec.md §4.9).
	LayoutConfigMatch() LayoutMatch
	Finish() error
}

// BUPEntry is one entry enumerated from a BUP container (spec.md §3, §6.2).
type BUPEntry struct {
	Name    string
	Offset  int64
	Length  int64
	Version VersionInfo
}

// BUP is the BUP-container-reader collaborator (spec.md §6.2). Entries are
// enumerated once; SetPos+Read stream payload bytes for a given entry.
type BUP interface {
	BootDevice() string
	GPTDevice() string
	TNSPEC() string
	CompatSpec() (string, bool)
	FindMissingEntries(tnspec string) ([]string, error)
	Entries() ([]BUPEntry, error)
	SetPos(offset int64) error
	Read(buf []byte) (int, error)
	Finish() error
}

// VersionInfo is the packed BSP version + CRC extracted from a VER
// partition or BUP VER entry (spec.md §3).
type VersionInfo struct {
	Major, Minor, Maint int
	CRC                 uint32
	Valid               bool
}

// Greater reports whether v represents a strictly newer version than o.
func (v VersionInfo) Greater(o VersionInfo) bool {
	if v.Major != o.Major {
		return v.Major > o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor > o.Minor
	}
	return v.Maint > o.Maint
}

// Equal reports version-field equality (ignoring CRC).
func (v VersionInfo) Equal(o VersionInfo) bool {
	return v.Major == o.Major && v.Minor == o.Minor && v.Maint == o.Maint
}

func (v VersionInfo) IsZero() bool {
	return v.Major == 0 && v.Minor == 0 && v.Maint == 0
}

// VER extracts version info from raw partition or BUP-entry bytes
// (spec.md §6.2).
type VER interface {
	ExtractInfo(data []byte) (VersionInfo, error)
}

// RedundancyLevel mirrors the SMD collaborator's redundancy_level concept
// (spec.md §6.2).
type RedundancyLevel int

const (
	RedundancyPartial RedundancyLevel = iota
	RedundancyFull
)

// SMD is the slot-metadata collaborator (spec.md §6.2). Its contents are
// opaque to the core; only these operations are exposed.
type SMD interface {
	CurrentSlot() int
	RedundancyLevel() RedundancyLevel
	SetRedundancyLevel(level RedundancyLevel) error
	MarkSlotActive(slot int) error
	Update(initialize bool) error
	Finish() error
}

// BCTValidatorT18xT19x validates a candidate BCT against the current one
// for G2/G3 SoCs (spec.md §4.4, §6.2).
type BCTValidatorT18xT19x func(current, candidate []byte) bool

// BCTValidatorT21x validates a candidate BCT for G1 SoCs and reports the
// block/page size the candidate implies (spec.md §4.4, §6.2).
type BCTValidatorT21x func(current, candidate []byte) (ok bool, blockSize, pageSize int)

// Platform exposes the SoC-detection and OS-level hooks (spec.md §6.2).
type Platform interface {
	SoCType() (soc.Type, error)
	// SetBootdevWriteableStatus toggles the OS-level writeable bit on path
	// and returns the prior state, so callers can restore it on exit.
	SetBootdevWriteableStatus(path string, writeable bool) (prior bool, err error)
	// PartitionShouldBePresent is the optional-partition policy hook
	// consulted by the partition resolver (spec.md §4.2 step 3).
	PartitionShouldBePresent(name string) bool
}

// Checksum computes a CRC-32 over a byte range (spec.md §6.2), used to
// compare NVC primary/redundant copies (spec.md §4.5).
type Checksum interface {
	CRC32(data []byte) uint32
}
