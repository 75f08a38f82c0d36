// Package redundancy maps a base partition name to its redundant-copy name,
// per the SoC- and platform-specific rules in spec.md §4.3.
package redundancy

import "github.com/tegraboot/bup-updater/internal/soc"

// Name returns the redundant-copy name for base, given the SoC generation
// and boot medium.
func Name(t soc.Type, m soc.Medium, base string) string {
	if t == soc.G2 || t == soc.G3 {
		return base + "_b"
	}

	// G1.
	if m == soc.SPI {
		switch base {
		case "NVC":
			return "NVC_R"
		case "VER":
			return "VER_b"
		default:
			return base + "-1"
		}
	}

	// G1, eMMC/SD.
	switch base {
	case "NVC":
		return "NVC-1"
	case "VER":
		return "VER_b"
	default:
		return base + "-1"
	}
}
