package gs

import "encoding/binary"

// VRAMSize is the fixed amount of local memory, shared by framebuffers,
// depth buffers and textures.
const VRAMSize = 4 << 20

// PixelFormat identifies the storage layout of a VRAM region (the PSM field
// of FRAME/ZBUF/TEX0/BITBLTBUF).
type PixelFormat uint8

const (
	PSMCT32  PixelFormat = 0x00
	PSMCT24  PixelFormat = 0x01
	PSMCT16  PixelFormat = 0x02
	PSMCT16S PixelFormat = 0x0a
	PSMZ32   PixelFormat = 0x30
	PSMZ24   PixelFormat = 0x31
	PSMZ16   PixelFormat = 0x32
)

// BytesPerPixel returns the storage footprint of one pixel. 24-bit formats
// occupy a full 32-bit slot with the top byte unused, like the hardware.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PSMCT16, PSMCT16S, PSMZ16:
		return 2
	default:
		return 4
	}
}

// blockBytes is the footprint of one base-address unit (FBP/TBP step).
const blockBytes = 256

// VRAM is the unified local memory arena. All addressing goes through typed
// Views; raw offsets wrap at the arena size like the real address space.
type VRAM struct {
	data []byte
}

func NewVRAM() *VRAM {
	return &VRAM{data: make([]byte, VRAMSize)}
}

func (v *VRAM) Data() []byte { return v.data }

func (v *VRAM) Clear() {
	clear(v.data)
}

// View returns a typed accessor over the region starting at the given block
// base with a stride of stride pixels.
func (v *VRAM) View(base uint32, stride int, format PixelFormat) View {
	if stride <= 0 {
		stride = 64
	}
	return View{mem: v, base: int(base) * blockBytes, stride: stride, format: format}
}

// View is a (base, stride, format) window into VRAM. Address computation is
// identical in all build modes; out-of-arena offsets wrap.
type View struct {
	mem    *VRAM
	base   int
	stride int
	format PixelFormat
}

func (w View) Format() PixelFormat { return w.format }
func (w View) Stride() int         { return w.stride }

// PixOffset returns the byte offset of pixel (x, y), wrapped into the arena.
func (w View) PixOffset(x, y int) int {
	off := w.base + (y*w.stride+x)*w.format.BytesPerPixel()
	return off & (VRAMSize - 1)
}

// Pixel reads the raw pixel value at (x, y), widened to 32 bits.
func (w View) Pixel(x, y int) uint32 {
	off := w.PixOffset(x, y)
	switch w.format.BytesPerPixel() {
	case 2:
		return uint32(binary.LittleEndian.Uint16(w.mem.data[off:]))
	default:
		return binary.LittleEndian.Uint32(w.mem.data[off:])
	}
}

// SetPixel writes the raw pixel value at (x, y), applying the write mask:
// masked bits keep their previous contents.
func (w View) SetPixel(x, y int, val, mask uint32) {
	off := w.PixOffset(x, y)
	switch w.format.BytesPerPixel() {
	case 2:
		old := uint32(binary.LittleEndian.Uint16(w.mem.data[off:]))
		binary.LittleEndian.PutUint16(w.mem.data[off:], uint16(val&^mask|old&mask))
	default:
		if w.format == PSMCT24 || w.format == PSMZ24 {
			mask |= 0xff000000
		}
		old := binary.LittleEndian.Uint32(w.mem.data[off:])
		binary.LittleEndian.PutUint32(w.mem.data[off:], val&^mask|old&mask)
	}
}

// Rect returns the [lo, hi) byte range covered by a w×h pixel rectangle at
// the view origin. Used for aliasing tests between cache entries and draw
// targets; a rectangle wrapping past the end of the arena is clamped to it.
func (w View) Rect(width, height int) (lo, hi int) {
	if width <= 0 || height <= 0 {
		return w.base, w.base
	}
	lo = w.base & (VRAMSize - 1)
	span := ((height-1)*w.stride + width) * w.format.BytesPerPixel()
	hi = lo + span
	if hi > VRAMSize {
		hi = VRAMSize
	}
	return lo, hi
}

// rangesOverlap reports whether [alo,ahi) and [blo,bhi) intersect.
func rangesOverlap(alo, ahi, blo, bhi int) bool {
	return alo < bhi && blo < ahi
}
