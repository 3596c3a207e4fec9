package gs

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// qw appends one little-endian quadword to a packet under construction.
func qw(pkt []byte, lo, hi uint64) []byte {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:], lo)
	binary.LittleEndian.PutUint64(b[8:], hi)
	return append(pkt, b[:]...)
}

// packedTag builds a PACKED GIF tag quadword.
func packedTag(pkt []byte, nloop uint32, eop bool, pre bool, prim uint64, regs ...uint8) []byte {
	lo := uint64(nloop & 0x7fff)
	if eop {
		lo |= 1 << 15
	}
	if pre {
		lo |= 1 << 46
	}
	lo |= (prim & 0x7ff) << 47
	lo |= uint64(gifPacked) << 58
	lo |= uint64(len(regs)&0xf) << 60
	var hi uint64
	for i, r := range regs {
		hi |= uint64(r&0xf) << (uint(i) * 4)
	}
	return qw(pkt, lo, hi)
}

// ad appends one A+D quadword (register id in the upper half).
func ad(pkt []byte, addr uint8, val uint64) []byte {
	return qw(pkt, val, uint64(addr))
}

// adTag opens a PACKED tag of nloop A+D slots.
func adTag(pkt []byte, nloop uint32, eop bool) []byte {
	return packedTag(pkt, nloop, eop, false, 0, addrAD)
}

// xyzReg packs an XYZ2/XYZ3 register value from 12.4 coordinates.
func xyzReg(x, y int, z uint32) uint64 {
	return uint64(uint16(x)) | uint64(uint16(y))<<16 | uint64(z)<<32
}

func f32raw(f float32) uint32 { return math.Float32bits(f) }

func TestPackedADWrites(t *testing.T) {
	s := NewState(NewVRAM())

	var pkt []byte
	pkt = adTag(pkt, 3, true)
	pkt = ad(pkt, addrFRAME_1, 0x00044<<16|0x05)
	pkt = ad(pkt, addrSCISSOR_1, 0x0ef<<16|0x13f<<48)
	pkt = ad(pkt, addrTEXA, 0x80<<32|0x40)
	s.Transfer(Path3, pkt)

	if got := FRAME(s.Reg(addrFRAME_1)); got.FBW() != 4 {
		t.Errorf("FRAME.FBW = %d, want 4", got.FBW())
	}
	sc := s.ctx[0].SCISSOR
	if sc.X1() != 0x0ef || sc.Y1() != 0x13f {
		t.Errorf("SCISSOR = (%d, %d), want (239, 319)", sc.X1(), sc.Y1())
	}
	if s.texa.TA0() != 0x40 || s.texa.TA1() != 0x80 {
		t.Errorf("TEXA = (%#x, %#x), want (0x40, 0x80)", s.texa.TA0(), s.texa.TA1())
	}
}

func TestTriangleKickFlattens(t *testing.T) {
	s := NewState(NewVRAM())

	var batches []Batch
	s.SetFlushHandler(func() {
		b := *s.CurrentBatch()
		b.Verts = append([]Vertex(nil), b.Verts...)
		batches = append(batches, b)
	})

	var pkt []byte
	pkt = adTag(pkt, 6, true)
	pkt = ad(pkt, addrXYOFFSET_1, uint64(8<<4)|uint64(16<<4)<<32)
	pkt = ad(pkt, addrPRIM, uint64(PrimTriangle))
	pkt = ad(pkt, addrRGBAQ, 0xff204080)
	for _, p := range [][2]int{{8 << 4, 16 << 4}, {40 << 4, 16 << 4}, {8 << 4, 48 << 4}} {
		pkt = ad(pkt, addrXYZ2, xyzReg(p[0], p[1], 5))
	}
	s.Transfer(Path3, pkt)
	s.Flush()

	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	b := batches[0]
	if got := b.Snapshot.Prim.Type(); got != PrimTriangle {
		t.Fatalf("prim type = %v, want %v", got, PrimTriangle)
	}
	// Q is zero: RGBAQ was written whole with zeroed float bits.
	want := []Vertex{
		{X: 0, Y: 0, Z: 5, R: 0x80, G: 0x40, B: 0x20, A: 0xff},
		{X: 32 << 4, Y: 0, Z: 5, R: 0x80, G: 0x40, B: 0x20, A: 0xff},
		{X: 0, Y: 32 << 4, Z: 5, R: 0x80, G: 0x40, B: 0x20, A: 0xff},
	}
	if diff := cmp.Diff(want, b.Verts); diff != "" {
		t.Errorf("vertices mismatch:\n%s", diff)
	}
}

func TestTriStripEmitsSlidingWindow(t *testing.T) {
	s := NewState(NewVRAM())

	var verts int
	s.SetFlushHandler(func() { verts += len(s.CurrentBatch().Verts) })

	var pkt []byte
	pkt = adTag(pkt, 6, true)
	pkt = ad(pkt, addrPRIM, uint64(PrimTriStrip))
	for i := range 5 {
		pkt = ad(pkt, addrXYZ2, xyzReg(i<<4, (i%2)<<4, 1))
	}
	pkt = ad(pkt, addrTEXFLUSH, 0)
	s.Transfer(Path3, pkt)

	// 5 strip vertices form 3 triangles, flattened to 9 vertices.
	if verts != 9 {
		t.Errorf("flattened %d vertices, want 9", verts)
	}
}

func TestADCVertexSkipsDraw(t *testing.T) {
	s := NewState(NewVRAM())

	var verts int
	s.SetFlushHandler(func() { verts += len(s.CurrentBatch().Verts) })

	var pkt []byte
	pkt = adTag(pkt, 4, true)
	pkt = ad(pkt, addrPRIM, uint64(PrimTriangle))
	for i, addr := range []uint8{addrXYZ2, addrXYZ2, addrXYZ3} {
		pkt = ad(pkt, addr, xyzReg(i<<4, i<<4, 1))
	}
	s.Transfer(Path3, pkt)
	s.Flush()

	if verts != 0 {
		t.Errorf("ADC-terminated triangle drew %d vertices, want 0", verts)
	}
}

func TestSplitTransferResumes(t *testing.T) {
	var pkt []byte
	pkt = adTag(pkt, 4, true)
	pkt = ad(pkt, addrFRAME_1, 0x02<<16)
	pkt = ad(pkt, addrZBUF_1, 0x01)
	pkt = ad(pkt, addrTEST_1, 0x5_0001)
	pkt = ad(pkt, addrALPHA_1, 0x44)

	whole := NewState(NewVRAM())
	whole.Transfer(Path3, pkt)

	// Same packet delivered one quadword at a time must decode identically.
	split := NewState(NewVRAM())
	for off := 0; off < len(pkt); off += 16 {
		split.Transfer(Path3, pkt[off:off+16])
	}

	a, b := make([]uint64, numRegs), make([]uint64, numRegs)
	for i := range numRegs {
		a[i], b[i] = whole.Reg(uint8(i)), split.Reg(uint8(i))
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("register files diverge:\n%s", diff)
	}
}

func TestRegListMode(t *testing.T) {
	s := NewState(NewVRAM())

	// REGLIST tag, NREG=3 (FOGCOL, TEXA, PRMODECONT), one loop. Two
	// registers per quadword, the last quadword's upper half is padding.
	lo := uint64(1) | 1<<15 | uint64(gifRegList)<<58 | 3<<60
	hi := uint64(addrFOGCOL) | uint64(addrTEXA)<<4 | uint64(addrPRMODECONT)<<8
	var pkt []byte
	pkt = qw(pkt, lo, hi)
	pkt = qw(pkt, 0x112233, 0x40)
	pkt = qw(pkt, 0, 0xdeadbeef) // upper half must be discarded
	s.Transfer(Path3, pkt)

	if got := s.Reg(addrFOGCOL); got != 0x112233 {
		t.Errorf("FOGCOL = %#x, want 0x112233", got)
	}
	if got := s.Reg(addrTEXA); got != 0x40 {
		t.Errorf("TEXA = %#x, want 0x40", got)
	}
	if s.prmodecont {
		t.Error("PRMODECONT not cleared by third register")
	}
}

func TestImageUploadAndReadback(t *testing.T) {
	s := NewState(NewVRAM())

	src := make([]byte, 64) // 4x4 PSMCT32 pixels
	for i := range src {
		src[i] = byte(i * 7)
	}

	var pkt []byte
	pkt = adTag(pkt, 3, false)
	pkt = ad(pkt, addrBITBLTBUF, uint64(0x20)<<32|uint64(1)<<48) // DBP=0x20, DBW=1
	pkt = ad(pkt, addrTRXREG, 4|4<<32)
	pkt = ad(pkt, addrTRXDIR, uint64(trxHostToLocal))
	// IMAGE tag: NLOOP = 4 quadwords of pixel data.
	pkt = qw(pkt, 4|1<<15|uint64(gifImage)<<58, 0)
	pkt = append(pkt, src...)
	s.Transfer(Path3, pkt)

	// Read the same rectangle back over the local→host path.
	var rd []byte
	rd = adTag(rd, 2, true)
	rd = ad(rd, addrBITBLTBUF, 0x20|1<<16) // SBP=0x20, SBW=1
	rd = ad(rd, addrTRXDIR, uint64(trxLocalToHost))
	s.Transfer(Path3, rd)

	got := make([]byte, 64)
	if n := s.ReadFIFO(got); n != 64 {
		t.Fatalf("ReadFIFO returned %d bytes, want 64", n)
	}
	if diff := cmp.Diff(src, got); diff != "" {
		t.Errorf("readback mismatch:\n%s", diff)
	}
	if n := s.ReadFIFO(got); n != 0 {
		t.Errorf("exhausted transfer still returned %d bytes", n)
	}
}

func TestLocalToLocalMove(t *testing.T) {
	s := NewState(NewVRAM())
	v := s.vram.View(0, 64, PSMCT32)
	v.SetPixel(0, 0, 0xcafebabe, 0xffffffff)

	var pkt []byte
	pkt = adTag(pkt, 3, true)
	pkt = ad(pkt, addrBITBLTBUF, 1<<16|uint64(0x40)<<32|uint64(1)<<48)
	pkt = ad(pkt, addrTRXREG, 1|1<<32)
	pkt = ad(pkt, addrTRXDIR, uint64(trxLocalToLocal))
	s.Transfer(Path3, pkt)

	dst := s.vram.View(0x40, 64, PSMCT32)
	if got := dst.Pixel(0, 0); got != 0xcafebabe {
		t.Errorf("moved pixel = %#x, want 0xcafebabe", got)
	}
}

func TestSoftResetDropsTagState(t *testing.T) {
	s := NewState(NewVRAM())

	// Open a tag promising more data than delivered.
	var pkt []byte
	pkt = adTag(pkt, 8, false)
	pkt = ad(pkt, addrFOGCOL, 0x11)
	s.Transfer(Path3, pkt)

	s.SoftReset(1 << Path3)

	// After the reset the path must expect a fresh tag, not A+D data.
	var pkt2 []byte
	pkt2 = adTag(pkt2, 1, true)
	pkt2 = ad(pkt2, addrFOGCOL, 0x22)
	s.Transfer(Path3, pkt2)

	if got := s.Reg(addrFOGCOL); got != 0x22 {
		t.Errorf("FOGCOL = %#x, want 0x22", got)
	}
}

func TestContextChangeFlushesPending(t *testing.T) {
	s := NewState(NewVRAM())

	flushes := 0
	s.SetFlushHandler(func() { flushes++ })

	var pkt []byte
	pkt = adTag(pkt, 3, false)
	pkt = ad(pkt, addrPRIM, uint64(PrimPoint))
	pkt = ad(pkt, addrXYZ2, xyzReg(1<<4, 1<<4, 0))
	pkt = ad(pkt, addrFRAME_1, 0x04<<16) // draw-state change with work pending
	s.Transfer(Path3, pkt)

	if flushes != 1 {
		t.Errorf("got %d flushes, want 1", flushes)
	}
}

func TestPackedSTLatchesQ(t *testing.T) {
	s := NewState(NewVRAM())

	var pkt []byte
	pkt = packedTag(pkt, 1, true, true, uint64(PrimPoint), addrST, addrRGBAQ)
	// ST packed quadword carries Q in the third dword.
	lo := uint64(f32raw(0.25)) | uint64(f32raw(0.75))<<32
	pkt = qw(pkt, lo, uint64(f32raw(2.0)))
	pkt = qw(pkt, 0x10|0x20<<32, 0x30|0x40<<32) // R=0x10 G=0x20 B=0x30 A=0x40
	s.Transfer(Path3, pkt)

	if s.st[0] != 0.25 || s.st[1] != 0.75 {
		t.Errorf("ST = (%v, %v), want (0.25, 0.75)", s.st[0], s.st[1])
	}
	if got := s.rgbaq.Q(); got != 2.0 {
		t.Errorf("RGBAQ.Q = %v, want 2.0", got)
	}
	if s.rgbaq.R() != 0x10 || s.rgbaq.A() != 0x40 {
		t.Errorf("RGBAQ = %#x", uint64(s.rgbaq))
	}
}

func TestFinishLatch(t *testing.T) {
	s := NewState(NewVRAM())

	var pkt []byte
	pkt = adTag(pkt, 1, true)
	pkt = ad(pkt, addrFINISH, 0)
	s.Transfer(Path3, pkt)

	if !s.FinishRequested() {
		t.Error("FINISH write not latched")
	}
	if s.FinishRequested() {
		t.Error("FINISH latch not cleared by read")
	}
}
