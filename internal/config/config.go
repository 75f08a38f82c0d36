// Package config loads the optional JSON defaults file this tool reads
// once at startup (SPEC_FULL.md "Configuration"): the optional-partition
// allow-list consulted by partition_should_be_present (spec.md §4.2 step 3)
// and a platform selector override for the G1 fixed-sequence tables, used
// in integration testing to force a medium without real hardware.
package config

import (
	"encoding/json"
	"io"
	"log"
	"os"
)

// Struct is the on-disk shape, read with the same json:",omitempty"
// struct-tag style the teacher's config.Struct uses.
type Struct struct {
	// OptionalPartitions lists BUP entry names that are allowed to be
	// absent from the GPT without failing the update (spec.md §4.2 step
	// 3's policy hook). Entries not listed here are treated as required.
	OptionalPartitions []string `json:",omitempty"`

	// PlatformOverride forces the SoC type Platform.SoCType would
	// otherwise detect from hardware, e.g. "G1", "G2", "G3". Empty means
	// detect normally.
	PlatformOverride string `json:",omitempty"`

	// MediumOverride forces the boot medium ("SPI" or "EMMC") the same
	// way, for the same reason.
	MediumOverride string `json:",omitempty"`
}

// ReadFromFile loads path, returning a zero-value Struct (not an error) if
// path does not exist, since this file is entirely optional.
func ReadFromFile(path string) (*Struct, error) {
	log.Printf("reading config defaults from %s", path)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Struct{}, nil
		}
		return nil, err
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	var cfg Struct
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PartitionShouldBePresent implements the collaborators.Platform hook of
// the same name (spec.md §4.2 step 3): it reports false only for names on
// the optional-partition allow-list, so partition.Resolve treats their
// absence as permitted rather than fatal. Everything not listed is
// required.
func (s *Struct) PartitionShouldBePresent(name string) bool {
	for _, n := range s.OptionalPartitions {
		if n == name {
			return false
		}
	}
	return true
}
