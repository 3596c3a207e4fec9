package gs

import (
	"encoding/binary"
	"math"

	"gsynth/emu/log"
)

// Transfer paths. Path 1 comes from VU1 memory, path 2 from VIF1 FIFO and
// path 3 from the GIF DMA channel. Each keeps its own resumable tag state so
// a packet may be split across Transfer calls.
const (
	Path1 = iota
	Path2
	Path3
	numPaths
)

// Flush the batch when it grows past this many vertices even if the draw
// state never changes.
const maxBatchVertices = 16384

// pathState is the per-path GIF unpacking state.
type pathState struct {
	tag   gifTag
	nloop uint32 // loops left in current tag
	reg   int    // next descriptor index (PACKED/REGLIST)
	valid bool   // processing a tag
}

// State decodes the incoming register-write stream into structured draw
// state, assembles vertices and accumulates primitive batches. It runs
// exclusively on the caller's thread; rasterization workers never touch it.
type State struct {
	vram *VRAM

	raw [numRegs]uint64 // last-write-wins register file

	ctx        [2]Context
	prim       PRIM
	prmode     uint64
	prmodecont bool // true: attributes come from PRIM, false: from PRMODE
	rgbaq      RGBAQ
	st         [2]float32
	q          float32
	uv         [2]int32
	fog        uint8
	texa       TEXA
	fogcol     FOGCOL

	path [numPaths]pathState
	trx  transferState

	vq    [4]Vertex // vertex kick queue
	vqlen int

	batch   Batch
	pending bool // batch holds vertices not yet drawn

	finishReq bool

	// onFlush is called to rasterize and clear the current batch.
	onFlush func()
	// hazard, when set, is consulted before appending to a non-empty
	// batch; true drains the queue first so the new primitive observes
	// earlier writes through its texture reads.
	hazard func(*DrawState) bool
	// onVRAMWrite is called after any local memory write with the dirtied
	// byte range, so caches can invalidate aliased entries.
	onVRAMWrite func(lo, hi int)
}

// Batch is an ordered run of flattened primitives sharing one draw-state
// snapshot. Verts holds Snapshot.Prim.Type().VertexKickCount() vertices per
// primitive, in submission order.
type Batch struct {
	Snapshot DrawState
	Verts    []Vertex
}

func NewState(vram *VRAM) *State {
	s := &State{vram: vram}
	s.Reset()
	return s
}

// SetFlushHandler installs the renderer callback draining the batch.
func (s *State) SetFlushHandler(fn func()) { s.onFlush = fn }

// SetVRAMWriteHandler installs the cache-invalidation callback.
func (s *State) SetVRAMWriteHandler(fn func(lo, hi int)) { s.onVRAMWrite = fn }

// SetHazardCheck installs the read-after-write flush predicate.
func (s *State) SetHazardCheck(fn func(*DrawState) bool) { s.hazard = fn }

// Reset restores the power-on state. VRAM contents are cleared too.
func (s *State) Reset() {
	s.raw = [numRegs]uint64{}
	s.ctx = [2]Context{}
	s.prim = 0
	s.prmode = 0
	s.prmodecont = true
	s.rgbaq = 0
	s.st = [2]float32{}
	s.q = 1
	s.uv = [2]int32{}
	s.fog = 0
	s.texa = 0
	s.fogcol = 0
	s.path = [numPaths]pathState{}
	s.trx = transferState{dir: trxNone}
	s.vqlen = 0
	s.batch.Verts = s.batch.Verts[:0]
	s.pending = false
	s.finishReq = false
	if s.vram != nil {
		s.vram.Clear()
	}
}

// SoftReset clears the tag state of the paths selected by mask (bit 0 =
// path 1, ...), leaving registers, VRAM and the pending batch alone.
func (s *State) SoftReset(mask uint32) {
	for p := range numPaths {
		if mask>>uint(p)&1 != 0 {
			s.path[p] = pathState{}
		}
	}
	log.ModState.DebugZ("soft reset").Hex32("mask", mask).End()
}

// Context returns the context selected by the effective PRIM attributes.
func (s *State) Context() *Context {
	return &s.ctx[s.effectivePrim().CTXT()]
}

// VRAM exposes local memory to renderers and savestates.
func (s *State) VRAM() *VRAM { return s.vram }

// Reg returns the raw value of a general register slot.
func (s *State) Reg(addr uint8) uint64 {
	if int(addr) < len(s.raw) {
		return s.raw[addr]
	}
	return 0
}

// FinishRequested reports and clears the FINISH register latch.
func (s *State) FinishRequested() (req bool) {
	req, s.finishReq = s.finishReq, false
	return req
}

func (s *State) effectivePrim() PRIM {
	if s.prmodecont {
		return s.prim
	}
	return s.prim.applyPRMODE(s.prmode)
}

// Transfer feeds raw GIF data to one of the three paths. Data is consumed in
// 16-byte quadwords; a trailing partial quadword is ignored, matching the
// permissive hardware FIFO. Write ordering is preserved exactly.
func (s *State) Transfer(path int, data []byte) {
	if path < 0 || path >= numPaths {
		log.ModState.ErrorZ("transfer on invalid path").Int("path", path).End()
		return
	}

	ps := &s.path[path]
	for len(data) >= 16 {
		if !ps.valid {
			lo := binary.LittleEndian.Uint64(data)
			hi := binary.LittleEndian.Uint64(data[8:])
			data = data[16:]

			ps.tag = decodeGIFTag(lo, hi)
			ps.nloop = ps.tag.nloop
			ps.reg = 0
			ps.valid = ps.nloop != 0
			if !ps.valid && ps.tag.eop {
				continue
			}

			if ps.valid && ps.tag.pre && ps.tag.flg == gifPacked {
				s.writeRegister(addrPRIM, ps.tag.prim)
			}
			continue
		}

		switch ps.tag.flg {
		case gifPacked:
			s.writePacked(ps.tag.reg(ps.reg), data)
			data = data[16:]
			if ps.reg++; ps.reg == ps.tag.nreg {
				ps.reg = 0
				if ps.nloop--; ps.nloop == 0 {
					ps.valid = false
				}
			}

		case gifRegList:
			// Two 64-bit registers per quadword; an odd register count
			// discards the upper half of the last quadword.
			for i := 0; i < 2 && ps.valid; i++ {
				val := binary.LittleEndian.Uint64(data[i*8:])
				s.writeRegister(ps.tag.reg(ps.reg), val)
				if ps.reg++; ps.reg == ps.tag.nreg {
					ps.reg = 0
					if ps.nloop--; ps.nloop == 0 {
						ps.valid = false
					}
				}
			}
			data = data[16:]

		default: // gifImage, gifImage2
			s.writeImage(data)
			data = data[16:]
			if ps.nloop--; ps.nloop == 0 {
				ps.valid = false
			}
		}
	}
}

// writePacked decodes one PACKED-mode quadword for the given descriptor.
func (s *State) writePacked(desc uint8, qw []byte) {
	lo := binary.LittleEndian.Uint64(qw)
	hi := binary.LittleEndian.Uint64(qw[8:])

	switch desc {
	case addrRGBAQ:
		r := uint64(qw[0])
		g := uint64(qw[4])
		b := uint64(qw[8])
		a := uint64(qw[12])
		// Q comes from the internal register latched by packed ST.
		s.rgbaq = RGBAQ(r | g<<8 | b<<16 | a<<24 | uint64(math.Float32bits(s.q))<<32)
		s.raw[addrRGBAQ] = uint64(s.rgbaq)

	case addrST:
		s.st[0] = f32bits(uint32(lo))
		s.st[1] = f32bits(uint32(lo >> 32))
		s.q = f32bits(uint32(hi))
		s.raw[addrST] = lo

	case addrUV:
		s.writeRegister(addrUV, lo&0x3fff|lo>>32&0x3fff<<16)

	case addrXYZF2:
		x := lo & 0xffff
		y := lo >> 32 & 0xffff
		z := hi >> 4 & 0xffffff
		f := hi >> 36 & 0xff
		val := x | y<<16 | z<<32 | f<<56
		if hi>>47&1 != 0 { // ADC: no drawing kick
			s.writeRegister(addrXYZF3, val)
		} else {
			s.writeRegister(addrXYZF2, val)
		}

	case addrXYZ2:
		x := lo & 0xffff
		y := lo >> 32 & 0xffff
		z := hi & 0xffffffff
		val := x | y<<16 | z<<32
		if hi>>47&1 != 0 {
			s.writeRegister(addrXYZ3, val)
		} else {
			s.writeRegister(addrXYZ2, val)
		}

	case addrFOG:
		s.writeRegister(addrFOG, hi>>36&0xff<<56)

	case addrAD:
		s.writeRegister(uint8(hi&0xff), lo)

	case addrNOP:

	default:
		s.writeRegister(desc, lo)
	}
}

// writeRegister applies one 64-bit general register write. Unknown addresses
// are ignored, like the hardware does.
func (s *State) writeRegister(addr uint8, val uint64) {
	if int(addr) < len(s.raw) {
		s.raw[addr] = val
	}

	switch addr {
	case addrPRIM:
		s.flushIf(s.pending)
		s.prim = PRIM(val)
		s.vqlen = 0

	case addrRGBAQ:
		s.rgbaq = RGBAQ(val)

	case addrST:
		s.st[0] = f32bits(uint32(val))
		s.st[1] = f32bits(uint32(val >> 32))

	case addrUV:
		s.uv[0] = int32(val & 0x3fff)
		s.uv[1] = int32(val >> 16 & 0x3fff)

	case addrXYZ2:
		s.vertexKick(XYZ(val).X(), XYZ(val).Y(), XYZ(val).Z(), s.fog, true)
	case addrXYZ3:
		s.vertexKick(XYZ(val).X(), XYZ(val).Y(), XYZ(val).Z(), s.fog, false)
	case addrXYZF2:
		r := XYZF(val)
		s.vertexKick(r.X(), r.Y(), r.Z(), r.F(), true)
	case addrXYZF3:
		r := XYZF(val)
		s.vertexKick(r.X(), r.Y(), r.Z(), r.F(), false)

	case addrFOG:
		s.fog = uint8(val >> 56)

	case addrTEX0_1, addrTEX0_2:
		i := int(addr - addrTEX0_1)
		s.flushIf(s.pending && TEX0(val) != s.ctx[i].TEX0)
		s.ctx[i].TEX0 = TEX0(val)
	case addrTEX1_1, addrTEX1_2:
		i := int(addr - addrTEX1_1)
		s.flushIf(s.pending && TEX1(val) != s.ctx[i].TEX1)
		s.ctx[i].TEX1 = TEX1(val)
	case addrCLAMP_1, addrCLAMP_2:
		i := int(addr - addrCLAMP_1)
		s.flushIf(s.pending && CLAMP(val) != s.ctx[i].CLAMP)
		s.ctx[i].CLAMP = CLAMP(val)
	case addrXYOFFSET_1, addrXYOFFSET_2:
		i := int(addr - addrXYOFFSET_1)
		s.flushIf(s.pending && XYOFFSET(val) != s.ctx[i].XYOFFSET)
		s.ctx[i].XYOFFSET = XYOFFSET(val)
	case addrSCISSOR_1, addrSCISSOR_2:
		i := int(addr - addrSCISSOR_1)
		s.flushIf(s.pending && SCISSOR(val) != s.ctx[i].SCISSOR)
		s.ctx[i].SCISSOR = SCISSOR(val)
	case addrALPHA_1, addrALPHA_2:
		i := int(addr - addrALPHA_1)
		s.flushIf(s.pending && ALPHA(val) != s.ctx[i].ALPHA)
		s.ctx[i].ALPHA = ALPHA(val)
	case addrTEST_1, addrTEST_2:
		i := int(addr - addrTEST_1)
		s.flushIf(s.pending && TEST(val) != s.ctx[i].TEST)
		s.ctx[i].TEST = TEST(val)
	case addrFRAME_1, addrFRAME_2:
		i := int(addr - addrFRAME_1)
		s.flushIf(s.pending && FRAME(val) != s.ctx[i].FRAME)
		s.ctx[i].FRAME = FRAME(val)
	case addrZBUF_1, addrZBUF_2:
		i := int(addr - addrZBUF_1)
		s.flushIf(s.pending && ZBUF(val) != s.ctx[i].ZBUF)
		s.ctx[i].ZBUF = ZBUF(val)

	case addrPRMODECONT:
		s.flushIf(s.pending)
		s.prmodecont = val&1 != 0
	case addrPRMODE:
		s.flushIf(s.pending && !s.prmodecont)
		s.prmode = val

	case addrTEXA:
		s.flushIf(s.pending && TEXA(val) != s.texa)
		s.texa = TEXA(val)
	case addrFOGCOL:
		s.flushIf(s.pending && FOGCOL(val) != s.fogcol)
		s.fogcol = FOGCOL(val)

	case addrTEXFLUSH:
		s.Flush()

	case addrBITBLTBUF:
		s.trx.buf = BITBLTBUF(val)
	case addrTRXPOS:
		s.trx.pos = TRXPOS(val)
	case addrTRXREG:
		s.trx.reg = TRXREG(val)
	case addrTRXDIR:
		s.startTransfer(uint8(val & 3))

	case addrHWREG:
		// Register-path image write: one 64-bit datum.
		var qw [16]byte
		binary.LittleEndian.PutUint64(qw[:], val)
		s.writeImageSpan(qw[:8])

	case addrFINISH:
		s.finishReq = true
	case addrSIGNAL, addrLABEL:
		// Host signaling registers; latched raw only.

	default:
		log.ModState.DebugZ("write to unknown register").
			Hex8("addr", addr).
			Hex64("val", val).
			End()
	}
}

// vertexKick appends a vertex to the kick queue and, when the queue holds a
// complete primitive, flattens it into the batch (unless draw is false, the
// XYZ3/ADC case) and advances the queue according to the primitive kind.
func (s *State) vertexKick(x, y uint16, z uint32, fog uint8, draw bool) {
	prim := s.effectivePrim()
	off := s.Context().XYOFFSET

	v := Vertex{
		X: int32(x) - int32(off.OFX()),
		Y: int32(y) - int32(off.OFY()),
		Z: z,
		R: s.rgbaq.R(), G: s.rgbaq.G(), B: s.rgbaq.B(), A: s.rgbaq.A(),
		Q: s.rgbaq.Q(),
		S: s.st[0], T: s.st[1],
		U: s.uv[0], V: s.uv[1],
		F: fog,
	}
	if prim.FST() {
		v.Q = 1
	}

	if s.vqlen < len(s.vq) {
		s.vq[s.vqlen] = v
		s.vqlen++
	}

	kick := prim.Type().VertexKickCount()
	if prim.Type() == PrimInvalid {
		s.vqlen = 0
		return
	}
	if s.vqlen < kick {
		return
	}

	if draw {
		s.emit(prim, s.vq[:kick])
	}

	switch prim.Type() {
	case PrimLineStrip:
		s.vq[0] = s.vq[1]
		s.vqlen = 1
	case PrimTriStrip:
		s.vq[0], s.vq[1] = s.vq[1], s.vq[2]
		s.vqlen = 2
	case PrimTriFan:
		s.vq[1] = s.vq[2]
		s.vqlen = 2
	default:
		s.vqlen = 0
	}
}

// emit appends one flattened primitive to the batch, snapshotting the draw
// state if the batch was empty.
func (s *State) emit(prim PRIM, verts []Vertex) {
	if s.pending && s.hazard != nil && s.hazard(&s.batch.Snapshot) {
		s.Flush()
	}
	if !s.pending {
		s.batch.Snapshot = DrawState{
			Prim:   prim,
			Ctx:    s.ctx[prim.CTXT()],
			TEXA:   s.texa,
			FOGCOL: s.fogcol,
		}
		s.pending = true
	}
	s.batch.Verts = append(s.batch.Verts, verts...)

	if len(s.batch.Verts) >= maxBatchVertices {
		s.Flush()
	}
}

// Flush drains the pending batch through the renderer callback.
func (s *State) Flush() {
	if !s.pending {
		return
	}
	if s.onFlush != nil {
		s.onFlush()
	}
	s.batch.Verts = s.batch.Verts[:0]
	s.pending = false
}

// CurrentBatch exposes the pending batch to the renderer during a flush.
func (s *State) CurrentBatch() *Batch { return &s.batch }

func (s *State) flushIf(cond bool) {
	if cond {
		s.Flush()
	}
}

func f32bits(b uint32) float32 { return math.Float32frombits(b) }
