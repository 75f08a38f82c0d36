package bct_test

import (
	"testing"

	"github.com/tegraboot/bup-updater/internal/bct"
	"github.com/tegraboot/bup-updater/internal/collaborators"
	"github.com/tegraboot/bup-updater/internal/soc"
)

type fakeDevice struct {
	data   []byte
	writes []int64 // offsets written, in order
	synced int
}

func newFakeDevice(size int) *fakeDevice { return &fakeDevice{data: make([]byte, size)} }

func (f *fakeDevice) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, f.data[off:]), nil
}
func (f *fakeDevice) WriteAt(p []byte, off int64) (int, error) {
	f.writes = append(f.writes, off)
	return copy(f.data[off:], p), nil
}
func (f *fakeDevice) Sync() error { f.synced++; return nil }

func TestG2G3WriteOrderAndOffsets(t *testing.T) {
	dev := newFakeDevice(3 * 32768)
	tgt := bct.Target{Device: dev, Offset: 0}
	w := bct.NewG2G3Writer(soc.SPI, func(current, candidate []byte) bool { return true })

	candidate := make([]byte, 100)
	for i := range candidate {
		candidate[i] = byte(i)
	}
	zero := make([]byte, 65536)

	updated, err := w.Write(tgt, nil, candidate, len(candidate), zero)
	if err != nil {
		t.Fatal(err)
	}
	if !updated {
		t.Fatal("expected an update when initializing (current == nil)")
	}

	slotSize := 2048 // ceil(100/2048)*2048
	// Each pass is an erase write followed by the payload write at the
	// same offset.
	wantOffsets := []int64{int64(slotSize), int64(slotSize), 32768, 32768, 0, 0}
	if len(dev.writes) != len(wantOffsets) {
		t.Fatalf("got %d writes, want %d: %v", len(dev.writes), len(wantOffsets), dev.writes)
	}
	for i, off := range wantOffsets {
		if dev.writes[i] != off {
			t.Errorf("write %d: offset = %d, want %d", i, dev.writes[i], off)
		}
	}
	if dev.synced != 4 {
		t.Errorf("expected one flush after each of the three erases plus one after all passes, got %d", dev.synced)
	}
}

func TestG2G3SkipsMatchingPass(t *testing.T) {
	dev := newFakeDevice(3 * 32768)
	candidate := make([]byte, 100)
	for i := range candidate {
		candidate[i] = byte(i + 1)
	}
	// Pre-seed block 1 slot 0 (offset 32768) to already match the candidate.
	copy(dev.data[32768:32768+100], candidate)
	current := make([]byte, len(dev.data))
	copy(current, dev.data)

	tgt := bct.Target{Device: dev, Offset: 0}
	w := bct.NewG2G3Writer(soc.SPI, func(current, candidate []byte) bool { return true })
	zero := make([]byte, 65536)

	if _, err := w.Write(tgt, current, candidate, len(candidate), zero); err != nil {
		t.Fatal(err)
	}
	for _, off := range dev.writes {
		if off == 32768 {
			t.Errorf("expected offset 32768 to be skipped as already matching, but it was written")
		}
	}
}

func TestG2G3ValidatorRejectionWritesNothing(t *testing.T) {
	dev := newFakeDevice(3 * 32768)
	tgt := bct.Target{Device: dev, Offset: 0}
	w := bct.NewG2G3Writer(soc.SPI, func(current, candidate []byte) bool { return false })
	zero := make([]byte, 65536)

	_, err := w.Write(tgt, nil, make([]byte, 100), 100, zero)
	if err == nil {
		t.Fatal("expected validator rejection to produce an error")
	}
	if len(dev.writes) != 0 {
		t.Errorf("validator rejection must write nothing, got %d writes", len(dev.writes))
	}
}

func g1Validator(ok bool, blockSize, pageSize int) collaborators.BCTValidatorT21x {
	return func(current, candidate []byte) (bool, int, int) {
		return ok, blockSize, pageSize
	}
}

func TestG1ThreePassSchedule(t *testing.T) {
	const blockSize = 16384
	dev := newFakeDevice(64 * blockSize)
	tgt := bct.Target{Device: dev, Offset: 0}
	w := bct.NewG1Writer(soc.EMMC, g1Validator(true, blockSize, 512))
	ctx := bct.NewG1Context()
	zero := make([]byte, blockSize)
	candidate := make([]byte, 512)

	partByteSize := int64(4 * blockSize) // bctCount = 4

	// Pass 1: which == -1, writes index bctCount-1 == 3.
	if _, err := w.Write(ctx, tgt, partByteSize, nil, candidate, len(candidate), zero); err != nil {
		t.Fatal(err)
	}
	if got, want := dev.writes[0], int64(3*blockSize); got != want {
		t.Errorf("pass 1 offset = %d, want %d", got, want)
	}
	if ctx.Which != 1 {
		t.Fatalf("after pass 1, Which = %d, want 1", ctx.Which)
	}

	dev.writes = nil
	// Pass 2: which == +1, writes indices [bctCount-2 .. 1] descending = [2, 1],
	// each as an erase write followed by the payload write.
	if _, err := w.Write(ctx, tgt, partByteSize, nil, candidate, len(candidate), zero); err != nil {
		t.Fatal(err)
	}
	wantPass2 := []int64{2 * blockSize, 2 * blockSize, 1 * blockSize, 1 * blockSize}
	if len(dev.writes) != len(wantPass2) {
		t.Fatalf("pass 2: got %d writes, want %d: %v", len(dev.writes), len(wantPass2), dev.writes)
	}
	for i, off := range wantPass2 {
		if dev.writes[i] != off {
			t.Errorf("pass 2 write %d: offset = %d, want %d", i, dev.writes[i], off)
		}
	}
	if ctx.Which != 0 {
		t.Fatalf("after pass 2, Which = %d, want 0", ctx.Which)
	}

	dev.writes = nil
	// Pass 3: which == 0, writes index 0 (erase, then payload); BCTCopies==1
	// on eMMC so no second copy.
	if _, err := w.Write(ctx, tgt, partByteSize, nil, candidate, len(candidate), zero); err != nil {
		t.Fatal(err)
	}
	if len(dev.writes) != 2 || dev.writes[0] != 0 || dev.writes[1] != 0 {
		t.Fatalf("pass 3: got writes %v, want [0 0]", dev.writes)
	}
	if ctx.Which != -1 {
		t.Fatalf("after pass 3, Which = %d, want -1 (schedule repeats)", ctx.Which)
	}
}

func TestG1SPISecondCopyInBlockZero(t *testing.T) {
	const blockSize = 32768
	dev := newFakeDevice(64 * blockSize)
	tgt := bct.Target{Device: dev, Offset: 0}
	w := bct.NewG1Writer(soc.SPI, g1Validator(true, blockSize, 2048))
	ctx := &bct.G1Context{Which: 0} // jump straight to the first-copy pass
	zero := make([]byte, blockSize)
	candidate := make([]byte, 2048)

	if _, err := w.Write(ctx, tgt, int64(4*blockSize), nil, candidate, len(candidate), zero); err != nil {
		t.Fatal(err)
	}
	// Erase write then payload write for each of the two copies.
	wantOffsets := []int64{0, 0, int64(len(candidate)), int64(len(candidate))}
	if len(dev.writes) != len(wantOffsets) {
		t.Fatalf("got %d writes, want %d: %v", len(dev.writes), len(wantOffsets), dev.writes)
	}
	for i, off := range wantOffsets {
		if dev.writes[i] != off {
			t.Errorf("write %d: offset = %d, want %d", i, dev.writes[i], off)
		}
	}
}

func TestG1NoCopyWrittenTwiceAcrossFullCycle(t *testing.T) {
	const blockSize = 16384
	dev := newFakeDevice(64 * blockSize)
	tgt := bct.Target{Device: dev, Offset: 0}
	w := bct.NewG1Writer(soc.EMMC, g1Validator(true, blockSize, 512))
	ctx := bct.NewG1Context()
	zero := make([]byte, blockSize)
	candidate := make([]byte, 512)
	partByteSize := int64(6 * blockSize)

	seen := map[int64]int{}
	for pass := 0; pass < 3; pass++ {
		dev.writes = nil
		if _, err := w.Write(ctx, tgt, partByteSize, nil, candidate, len(candidate), zero); err != nil {
			t.Fatal(err)
		}
		for _, off := range dev.writes {
			seen[off]++
		}
	}
	// Every copy gets exactly one erase write and one payload write.
	for off, n := range seen {
		if n != 2 {
			t.Errorf("offset %d written %d times across one full cycle, want 2 (erase + payload)", off, n)
		}
	}
}
