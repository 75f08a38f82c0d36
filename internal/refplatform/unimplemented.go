package refplatform

import "github.com/tegraboot/bup-updater/internal/collaborators"

// StubGPT satisfies collaborators.GPT without parsing a real GPT; every
// operation fails via unimplementedFormat. It exists so cmd/update-tool
// has a concrete value to construct when no vendor GPT adapter is linked
// in (e.g. -N/--needs-repartition against a config file instead of
// hardware, in a CI environment).
type StubGPT struct{}

func (StubGPT) Load(backupOnly bool) error                        { return unimplementedFormat("GPT") }
func (StubGPT) Save() error                                        { return unimplementedFormat("GPT") }
func (StubGPT) FindByName(string) (collaborators.Descriptor, bool) { return collaborators.Descriptor{}, false }
func (StubGPT) LayoutConfigMatch() collaborators.LayoutMatch       { return collaborators.LayoutError }
func (StubGPT) Finish() error                                      { return nil }

// StubBUP satisfies collaborators.BUP the same way.
type StubBUP struct{}

func (StubBUP) BootDevice() string                          { return "" }
func (StubBUP) GPTDevice() string                            { return "" }
func (StubBUP) TNSPEC() string                               { return "" }
func (StubBUP) CompatSpec() (string, bool)                   { return "", false }
func (StubBUP) FindMissingEntries(string) ([]string, error)  { return nil, unimplementedFormat("BUP") }
func (StubBUP) Entries() ([]collaborators.BUPEntry, error)   { return nil, unimplementedFormat("BUP") }
func (StubBUP) SetPos(int64) error                           { return unimplementedFormat("BUP") }
func (StubBUP) Read([]byte) (int, error)                     { return 0, unimplementedFormat("BUP") }
func (StubBUP) Finish() error                                { return nil }

// StubVER satisfies collaborators.VER the same way. SMD has a real,
// concrete implementation (FileSMD, in smd.go) instead of a stub: slot
// metadata is just a couple of integers, not a vendor binary format.
type StubVER struct{}

func (StubVER) ExtractInfo([]byte) (collaborators.VersionInfo, error) {
	return collaborators.VersionInfo{}, unimplementedFormat("VER")
}

// StubBCTValidatorG2G3 and StubBCTValidatorG1 satisfy the BCT validator
// function types by always rejecting, since a candidate BCT cannot be
// safely accepted without the vendor's real validation rules.
func StubBCTValidatorG2G3(current, candidate []byte) bool { return false }

func StubBCTValidatorG1(current, candidate []byte) (ok bool, blockSize, pageSize int) {
	return false, 0, 0
}
