package gs

import "encoding/binary"

// PrivSize is the span of the memory-mapped privileged register block.
const PrivSize = 0x2000

// Priv wraps the privileged register memory. The block is normally supplied
// by the host (it owns the mapping); a nil slice gets a private allocation.
type Priv struct {
	mem []byte
}

func NewPriv(mem []byte) Priv {
	if mem == nil {
		mem = make([]byte, PrivSize)
	}
	return Priv{mem: mem}
}

func (p Priv) Mem() []byte { return p.mem }

func (p Priv) Reg(off int) uint64 {
	if off+8 > len(p.mem) {
		return 0
	}
	return binary.LittleEndian.Uint64(p.mem[off:])
}

func (p Priv) SetReg(off int, val uint64) {
	if off+8 <= len(p.mem) {
		binary.LittleEndian.PutUint64(p.mem[off:], val)
	}
}

func (p Priv) PMODE() PMODE     { return PMODE(p.Reg(regsPMODE)) }
func (p Priv) SMODE2() SMODE2   { return SMODE2(p.Reg(regsSMODE2)) }
func (p Priv) BGCOLOR() BGCOLOR { return BGCOLOR(p.Reg(regsBGCOLOR)) }
func (p Priv) CSR() uint64      { return p.Reg(regsCSR) }
func (p Priv) IMR() uint64      { return p.Reg(regsIMR) }

// DISPFB returns the read circuit's framebuffer pointer, circuit 1 or 2.
func (p Priv) DISPFB(circuit int) DISPFB {
	if circuit == 2 {
		return DISPFB(p.Reg(regsDISPFB2))
	}
	return DISPFB(p.Reg(regsDISPFB1))
}

// DISPLAY returns the read circuit's screen placement, circuit 1 or 2.
func (p Priv) DISPLAY(circuit int) DISPLAY {
	if circuit == 2 {
		return DISPLAY(p.Reg(regsDISPLAY2))
	}
	return DISPLAY(p.Reg(regsDISPLAY1))
}

// VSyncCSR toggles the FIELD bit and raises the vertical interrupt flag,
// mirroring what the real chip does at every vertical retrace.
func (p Priv) VSyncCSR() {
	p.SetReg(regsCSR, p.CSR()^csrFIELD|csrVSINT)
}

// SetFinish raises the FINISH event flag in CSR.
func (p Priv) SetFinish() {
	p.SetReg(regsCSR, p.CSR()|csrFINISH)
}

// Field reports the current even/odd field from CSR.
func (p Priv) Field() int {
	return int(p.CSR() >> 13 & 1)
}

// PMODE selects and merges the two read circuits.
type PMODE uint64

func (r PMODE) EN1() bool  { return r&1 != 0 }
func (r PMODE) EN2() bool  { return r>>1&1 != 0 }
func (r PMODE) MMOD() bool { return r>>5&1 != 0 } // true: blend by ALP
func (r PMODE) SLBG() bool { return r>>7&1 != 0 } // true: circuit 2 is BGCOLOR
func (r PMODE) ALP() uint8 { return uint8(r >> 8) }

// SMODE2 selects interlace handling.
type SMODE2 uint64

func (r SMODE2) INT() bool  { return r&1 != 0 }    // interlaced
func (r SMODE2) FFMD() bool { return r>>1&1 != 0 } // frame (not field) mode

// DISPFB locates a read circuit in local memory.
type DISPFB uint64

func (r DISPFB) FBP() uint32 { return uint32(r&0x1ff) * 32 }
func (r DISPFB) FBW() uint32 { return uint32(r >> 9 & 0x3f) }
func (r DISPFB) PSM() uint8  { return uint8(r >> 15 & 0x1f) }
func (r DISPFB) DBX() int    { return int(r >> 32 & 0x7ff) }
func (r DISPFB) DBY() int    { return int(r >> 43 & 0x7ff) }

// DISPLAY sizes a read circuit on screen. Width and height are inclusive
// counts in screen units; MAGH/MAGV are the magnification minus one.
type DISPLAY uint64

func (r DISPLAY) DX() int   { return int(r & 0xfff) }
func (r DISPLAY) DY() int   { return int(r >> 12 & 0x7ff) }
func (r DISPLAY) MAGH() int { return int(r>>23&0xf) + 1 }
func (r DISPLAY) MAGV() int { return int(r>>27&3) + 1 }
func (r DISPLAY) DW() int   { return int(r>>32&0xfff) + 1 }
func (r DISPLAY) DH() int   { return int(r>>44&0x7ff) + 1 }

// BGCOLOR is the background color merged behind the read circuits.
type BGCOLOR uint64

func (r BGCOLOR) R() uint8 { return uint8(r) }
func (r BGCOLOR) G() uint8 { return uint8(r >> 8) }
func (r BGCOLOR) B() uint8 { return uint8(r >> 16) }
