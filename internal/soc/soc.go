// Package soc describes the SoC generation and boot medium a BUP targets,
// and the sizing constants that depend on them.
package soc

import "fmt"

// Type is one of the three SoC generations this tool updates.
type Type int

const (
	G1 Type = iota
	G2
	G3
)

func (t Type) String() string {
	switch t {
	case G1:
		return "G1"
	case G2:
		return "G2"
	case G3:
		return "G3"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// HasSlots reports whether this SoC generation uses A/B slot metadata.
// G1 has no SMD and is never a redundant A/B scheme (spec.md §4.6, §4.8).
func (t Type) HasSlots() bool {
	return t == G2 || t == G3
}

// Medium is the platform boot device: raw SPI-NOR flash or an eMMC/SD card.
type Medium int

const (
	SPI Medium = iota
	EMMC
)

func (m Medium) String() string {
	if m == SPI {
		return "SPI"
	}
	return "eMMC/SD"
}

const sectorSize = 512

// SectorSize is the fixed sector size partition tables address (spec.md §3).
func SectorSize() int64 { return sectorSize }

// PageSize returns the flash/eMMC page size used to round BCT slot sizes
// (spec.md §4.4): 2048 bytes on SPI, 512 bytes on eMMC/SD.
func (m Medium) PageSize() int {
	if m == SPI {
		return 2048
	}
	return 512
}

// BlockSize returns the BCT block size (spec.md §4.4): 32768 bytes on SPI,
// 16384 bytes on eMMC/SD.
func (m Medium) BlockSize() int {
	if m == SPI {
		return 32768
	}
	return 16384
}

// BCTCopiesG1 returns the number of BCT copies written per first-pass index
// on G1 (spec.md §4.4 G1 variant): 2 on SPI, 1 on eMMC/SD.
func (m Medium) BCTCopiesG1() int {
	if m == SPI {
		return 2
	}
	return 1
}
