package gs

// General register addresses, as they appear in GIF packet descriptors.
const (
	addrPRIM       = 0x00
	addrRGBAQ      = 0x01
	addrST         = 0x02
	addrUV         = 0x03
	addrXYZF2      = 0x04
	addrXYZ2       = 0x05
	addrTEX0_1     = 0x06
	addrTEX0_2     = 0x07
	addrCLAMP_1    = 0x08
	addrCLAMP_2    = 0x09
	addrFOG        = 0x0a
	addrXYZF3      = 0x0c
	addrXYZ3       = 0x0d
	addrAD         = 0x0e // packed-mode indirection: register id in bits 64..71
	addrNOP        = 0x0f
	addrTEX1_1     = 0x14
	addrTEX1_2     = 0x15
	addrXYOFFSET_1 = 0x18
	addrXYOFFSET_2 = 0x19
	addrPRMODECONT = 0x1a
	addrPRMODE     = 0x1b
	addrTEXA       = 0x3b
	addrFOGCOL     = 0x3d
	addrTEXFLUSH   = 0x3f
	addrSCISSOR_1  = 0x40
	addrSCISSOR_2  = 0x41
	addrALPHA_1    = 0x42
	addrALPHA_2    = 0x43
	addrTEST_1     = 0x47
	addrTEST_2     = 0x48
	addrFRAME_1    = 0x4c
	addrFRAME_2    = 0x4d
	addrZBUF_1     = 0x4e
	addrZBUF_2     = 0x4f
	addrBITBLTBUF  = 0x50
	addrTRXPOS     = 0x51
	addrTRXREG     = 0x52
	addrTRXDIR     = 0x53
	addrHWREG      = 0x54
	addrSIGNAL     = 0x60
	addrFINISH     = 0x61
	addrLABEL      = 0x62

	numRegs = 0x63
)

// Privileged register byte offsets inside the caller-supplied regs memory.
const (
	regsPMODE   = 0x0000
	regsSMODE2  = 0x0020
	regsDISPFB1 = 0x0070
	regsDISPLAY1 = 0x0080
	regsDISPFB2 = 0x0090
	regsDISPLAY2 = 0x00a0
	regsBGCOLOR = 0x00e0
	regsCSR     = 0x1000
	regsIMR     = 0x1010

	// CSR bits of interest.
	csrFINISH = 1 << 1
	csrVSINT  = 1 << 3
	csrFIELD  = 1 << 13
)

// PrimType enumerates the primitive kinds selectable by PRIM.PRIM.
type PrimType uint8

//go:generate go tool stringer -type=PrimType -trimprefix=Prim
const (
	PrimPoint PrimType = iota
	PrimLine
	PrimLineStrip
	PrimTriangle
	PrimTriStrip
	PrimTriFan
	PrimSprite
	PrimInvalid
)

// VertexKickCount returns how many queued vertices complete one primitive.
func (p PrimType) VertexKickCount() int {
	switch p {
	case PrimPoint:
		return 1
	case PrimLine, PrimLineStrip, PrimSprite:
		return 2
	default:
		return 3
	}
}

// PRIM holds the raw primitive-selection register. Field layout follows the
// hardware manual; accessors decode on demand.
type PRIM uint64

func (r PRIM) Type() PrimType {
	if t := PrimType(r & 7); t < PrimInvalid {
		return t
	}
	return PrimInvalid
}

func (r PRIM) IIP() bool  { return r>>3&1 != 0 }  // gouraud shading
func (r PRIM) TME() bool  { return r>>4&1 != 0 }  // texture mapping
func (r PRIM) FGE() bool  { return r>>5&1 != 0 }  // fog
func (r PRIM) ABE() bool  { return r>>6&1 != 0 }  // alpha blending
func (r PRIM) AA1() bool  { return r>>7&1 != 0 }  // antialiasing
func (r PRIM) FST() bool  { return r>>8&1 != 0 }  // UV instead of STQ
func (r PRIM) CTXT() int  { return int(r >> 9 & 1) }
func (r PRIM) FIX() bool  { return r>>10&1 != 0 } // fixed fog coefficient

// applyPRMODE overlays the PRMODE-controlled attribute bits (everything but
// the primitive type) onto r.
func (r PRIM) applyPRMODE(m uint64) PRIM {
	const attrs = 0x7f8 // bits 3..10
	return PRIM(uint64(r)&^attrs | m&attrs)
}

// RGBAQ carries the vertex color and the Q coordinate.
type RGBAQ uint64

func (r RGBAQ) R() uint8   { return uint8(r) }
func (r RGBAQ) G() uint8   { return uint8(r >> 8) }
func (r RGBAQ) B() uint8   { return uint8(r >> 16) }
func (r RGBAQ) A() uint8   { return uint8(r >> 24) }
func (r RGBAQ) Q() float32 { return f32bits(uint32(r >> 32)) }

// XYZ packs the 12.4 fixed-point window coordinates and the 32-bit Z.
type XYZ uint64

func (r XYZ) X() uint16  { return uint16(r) }
func (r XYZ) Y() uint16  { return uint16(r >> 16) }
func (r XYZ) Z() uint32  { return uint32(r >> 32) }

// XYZF packs 12.4 coordinates with a 24-bit Z and an 8-bit fog coefficient.
type XYZF uint64

func (r XYZF) X() uint16 { return uint16(r) }
func (r XYZF) Y() uint16 { return uint16(r >> 16) }
func (r XYZF) Z() uint32 { return uint32(r >> 32 & 0xffffff) }
func (r XYZF) F() uint8  { return uint8(r >> 56) }

// TEX0 describes the current texture: base pointer, buffer width, format and
// log2 dimensions.
type TEX0 uint64

func (r TEX0) TBP0() uint32 { return uint32(r & 0x3fff) }     // word address / 64
func (r TEX0) TBW() uint32  { return uint32(r >> 14 & 0x3f) } // texels / 64
func (r TEX0) PSM() uint8   { return uint8(r >> 20 & 0x3f) }
func (r TEX0) TW() uint32   { return uint32(r >> 26 & 0xf) } // log2 width
func (r TEX0) TH() uint32   { return uint32(r >> 30 & 0xf) } // log2 height
func (r TEX0) TCC() bool    { return r>>34&1 != 0 }          // use TEXA alpha
func (r TEX0) TFX() uint8   { return uint8(r >> 35 & 3) }    // texture function

// Texture function selectors (TEX0.TFX).
const (
	TFXModulate uint8 = iota
	TFXDecal
	TFXHighlight
	TFXHighlight2
)

// TEX1 holds the sampling controls. Only the magnification filter matters to
// this implementation; mipmapping is not emulated.
type TEX1 uint64

func (r TEX1) MMAG() bool { return r>>5&1 != 0 } // true: bilinear

// CLAMP selects per-axis wrap modes.
type CLAMP uint64

func (r CLAMP) WMS() uint8 { return uint8(r & 3) }
func (r CLAMP) WMT() uint8 { return uint8(r >> 2 & 3) }
func (r CLAMP) MINU() int  { return int(r >> 8 & 0x3ff) }
func (r CLAMP) MAXU() int  { return int(r >> 18 & 0x3ff) }
func (r CLAMP) MINV() int  { return int(r >> 28 & 0x3ff) }
func (r CLAMP) MAXV() int  { return int(r >> 38 & 0x3ff) }

const (
	WrapRepeat uint8 = iota
	WrapClamp
	WrapRegionClamp
	WrapRegionRepeat
)

// XYOFFSET holds the 12.4 fixed-point window offset of a context.
type XYOFFSET uint64

func (r XYOFFSET) OFX() uint16 { return uint16(r & 0xffff) }
func (r XYOFFSET) OFY() uint16 { return uint16(r >> 32 & 0xffff) }

// TEXA supplies alpha expansion values for 24/16-bit texture formats.
type TEXA uint64

func (r TEXA) TA0() uint8 { return uint8(r) }
func (r TEXA) AEM() bool  { return r>>15&1 != 0 }
func (r TEXA) TA1() uint8 { return uint8(r >> 32) }

// FOGCOL is the global fog color.
type FOGCOL uint64

func (r FOGCOL) FCR() uint8 { return uint8(r) }
func (r FOGCOL) FCG() uint8 { return uint8(r >> 8) }
func (r FOGCOL) FCB() uint8 { return uint8(r >> 16) }

// SCISSOR holds the inclusive pixel bounds of a context.
type SCISSOR uint64

func (r SCISSOR) X0() int { return int(r & 0x7ff) }
func (r SCISSOR) X1() int { return int(r >> 16 & 0x7ff) }
func (r SCISSOR) Y0() int { return int(r >> 32 & 0x7ff) }
func (r SCISSOR) Y1() int { return int(r >> 48 & 0x7ff) }

// ALPHA selects the blend equation inputs: Cv = ((A - B) * C >> 7) + D.
type ALPHA uint64

func (r ALPHA) A() uint8   { return uint8(r & 3) }
func (r ALPHA) B() uint8   { return uint8(r >> 2 & 3) }
func (r ALPHA) C() uint8   { return uint8(r >> 4 & 3) }
func (r ALPHA) D() uint8   { return uint8(r >> 6 & 3) }
func (r ALPHA) FIX() uint8 { return uint8(r >> 32) }

// TEST gathers the per-pixel test controls.
type TEST uint64

func (r TEST) ATE() bool   { return r&1 != 0 }
func (r TEST) ATST() uint8 { return uint8(r >> 1 & 7) }
func (r TEST) AREF() uint8 { return uint8(r >> 4) }
func (r TEST) AFAIL() uint8 { return uint8(r >> 12 & 3) }
func (r TEST) DATE() bool  { return r>>14&1 != 0 }
func (r TEST) DATM() bool  { return r>>15&1 != 0 }
func (r TEST) ZTE() bool   { return r>>16&1 != 0 }
func (r TEST) ZTST() uint8 { return uint8(r >> 17 & 3) }

// Z test functions (TEST.ZTST).
const (
	TestNever uint8 = iota
	TestAlways
	TestGEqual
	TestGreater
)

// Alpha test functions (TEST.ATST). A wider set than the Z test.
const (
	ATestNever uint8 = iota
	ATestAlways
	ATestLess
	ATestLEqual
	ATestEqual
	ATestGEqual
	ATestGreater
	ATestNotEqual
)

// AFAIL modes: what to keep writing when the alpha test fails.
const (
	AfailKeep uint8 = iota
	AfailFBOnly
	AfailZBOnly
	AfailRGBOnly
)

// FRAME describes the draw framebuffer of a context.
type FRAME uint64

func (r FRAME) FBP() uint32   { return uint32(r&0x1ff) * 32 } // pages -> words/64
func (r FRAME) FBW() uint32   { return uint32(r >> 16 & 0x3f) }
func (r FRAME) PSM() uint8    { return uint8(r >> 24 & 0x3f) }
func (r FRAME) FBMSK() uint32 { return uint32(r >> 32) }

// ZBUF describes the depth buffer of a context.
type ZBUF uint64

func (r ZBUF) ZBP() uint32 { return uint32(r&0x1ff) * 32 }
func (r ZBUF) PSM() uint8  { return uint8(r>>24&0xf) | 0x30 }
func (r ZBUF) ZMSK() bool  { return r>>32&1 != 0 }

// BITBLTBUF configures the source and destination of block transfers.
type BITBLTBUF uint64

func (r BITBLTBUF) SBP() uint32  { return uint32(r & 0x3fff) }
func (r BITBLTBUF) SBW() uint32  { return uint32(r >> 16 & 0x3f) }
func (r BITBLTBUF) SPSM() uint8  { return uint8(r >> 24 & 0x3f) }
func (r BITBLTBUF) DBP() uint32  { return uint32(r >> 32 & 0x3fff) }
func (r BITBLTBUF) DBW() uint32  { return uint32(r >> 48 & 0x3f) }
func (r BITBLTBUF) DPSM() uint8  { return uint8(r >> 56 & 0x3f) }

// TRXPOS holds the transfer rectangle origins and the pixel ordering.
type TRXPOS uint64

func (r TRXPOS) SSAX() int   { return int(r & 0x7ff) }
func (r TRXPOS) SSAY() int   { return int(r >> 16 & 0x7ff) }
func (r TRXPOS) DSAX() int   { return int(r >> 32 & 0x7ff) }
func (r TRXPOS) DSAY() int   { return int(r >> 48 & 0x7ff) }
func (r TRXPOS) DIR() uint8  { return uint8(r >> 59 & 3) }

// TRXREG holds the transfer rectangle size.
type TRXREG uint64

func (r TRXREG) RRW() int { return int(r & 0xfff) }
func (r TRXREG) RRH() int { return int(r >> 32 & 0xfff) }

// Transfer directions (TRXDIR.XDIR).
const (
	trxHostToLocal uint8 = iota
	trxLocalToHost
	trxLocalToLocal
	trxNone
)

// gifTag is the decoded 128-bit header of a GIF packet.
type gifTag struct {
	nloop uint32
	eop   bool
	pre   bool
	prim  uint64
	flg   uint8
	nreg  int
	regs  uint64 // 4 bits per descriptor
}

// GIF packet data formats (gifTag.flg).
const (
	gifPacked uint8 = iota
	gifRegList
	gifImage
	gifImage2 // disabled on hardware, decoded as IMAGE
)

func decodeGIFTag(lo, hi uint64) gifTag {
	t := gifTag{
		nloop: uint32(lo & 0x7fff),
		eop:   lo>>15&1 != 0,
		pre:   lo>>46&1 != 0,
		prim:  lo >> 47 & 0x7ff,
		flg:   uint8(lo >> 58 & 3),
		nreg:  int(lo >> 60 & 0xf),
		regs:  hi,
	}
	if t.nreg == 0 {
		t.nreg = 16
	}
	return t
}

// reg returns the i-th register descriptor of a PACKED/REGLIST tag.
func (t gifTag) reg(i int) uint8 {
	return uint8(t.regs >> (uint(i) * 4) & 0xf)
}
