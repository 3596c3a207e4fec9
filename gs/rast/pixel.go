package rast

import (
	"math"

	"gsynth/gs"
)

// shade runs the per-pixel pipeline: texture combine, fog, alpha test,
// destination alpha test, depth test, blend and the masked buffer writes.
// All arithmetic is integer with truncation; the result for a pixel depends
// only on (x, y) and the draw state, never on worker scheduling.
func (dc *drawContext) shade(px, py int, at attrs) {
	snap := dc.snap
	prim := snap.Prim
	test := snap.Ctx.TEST

	cr, cg, cb, ca := at.r, at.g, at.b, at.a

	if prim.TME() {
		tr, tg, tb, ta := dc.sample(at)
		switch snap.Ctx.TEX0.TFX() {
		case gs.TFXModulate:
			cr = clamp255(tr * cr >> 7)
			cg = clamp255(tg * cg >> 7)
			cb = clamp255(tb * cb >> 7)
			if snap.Ctx.TEX0.TCC() {
				ca = clamp255(ta * ca >> 7)
			}
		case gs.TFXDecal:
			cr, cg, cb = tr, tg, tb
			if snap.Ctx.TEX0.TCC() {
				ca = ta
			}
		case gs.TFXHighlight:
			cr = clamp255((tr*at.r >> 7) + at.a)
			cg = clamp255((tg*at.g >> 7) + at.a)
			cb = clamp255((tb*at.b >> 7) + at.a)
			if snap.Ctx.TEX0.TCC() {
				ca = clamp255(ta + at.a)
			}
		case gs.TFXHighlight2:
			cr = clamp255((tr*at.r >> 7) + at.a)
			cg = clamp255((tg*at.g >> 7) + at.a)
			cb = clamp255((tb*at.b >> 7) + at.a)
			if snap.Ctx.TEX0.TCC() {
				ca = ta
			}
		}
	}

	if prim.FGE() {
		f := int32(at.f)
		cr = (cr*f + int32(snap.FOGCOL.FCR())*(255-f)) >> 8
		cg = (cg*f + int32(snap.FOGCOL.FCG())*(255-f)) >> 8
		cb = (cb*f + int32(snap.FOGCOL.FCB())*(255-f)) >> 8
	}

	// Alpha test. A failure does not always kill the pixel: AFAIL selects
	// which buffer writes survive.
	writeRGB, writeA, writeZ := true, true, true
	if test.ATE() && !alphaTest(test.ATST(), uint8(ca), test.AREF()) {
		switch test.AFAIL() {
		case gs.AfailKeep:
			return
		case gs.AfailFBOnly:
			writeZ = false
		case gs.AfailZBOnly:
			writeRGB, writeA = false, false
		case gs.AfailRGBOnly:
			writeA, writeZ = false, false
		}
	}

	// 24-bit destinations have no alpha bit to test against.
	if test.DATE() && dc.fb.Format() != gs.PSMCT24 {
		if dc.destAlphaBit(px, py) != test.DATM() {
			return
		}
	}

	if test.ZTE() {
		zd := dc.zb.Pixel(px, py)
		zs := clampZ(at.z, dc.zb.Format())
		switch test.ZTST() {
		case gs.TestNever:
			return
		case gs.TestGEqual:
			if zs < zd {
				return
			}
		case gs.TestGreater:
			if zs <= zd {
				return
			}
		}
	}

	if prim.ABE() {
		cr, cg, cb = dc.blend(px, py, cr, cg, cb, ca)
	}

	if writeRGB || writeA {
		dc.writeColor(px, py, cr, cg, cb, ca, writeRGB, writeA)
	}
	if writeZ && test.ZTE() && !snap.Ctx.ZBUF.ZMSK() {
		dc.zb.SetPixel(px, py, clampZ(at.z, dc.zb.Format()), 0xffffffff)
	}
}

// alphaTest applies one of the eight ATST comparison functions.
func alphaTest(fn, a, ref uint8) bool {
	switch fn {
	case gs.ATestNever:
		return false
	case gs.ATestLess:
		return a < ref
	case gs.ATestLEqual:
		return a <= ref
	case gs.ATestEqual:
		return a == ref
	case gs.ATestGEqual:
		return a >= ref
	case gs.ATestGreater:
		return a > ref
	case gs.ATestNotEqual:
		return a != ref
	default:
		return true
	}
}

// destAlphaBit reads the destination alpha MSB in the framebuffer's format.
func (dc *drawContext) destAlphaBit(px, py int) bool {
	d := dc.fb.Pixel(px, py)
	if dc.fb.Format().BytesPerPixel() == 2 {
		return d>>15&1 != 0
	}
	return d>>31&1 != 0
}

// blend evaluates Cv = ((A - B) * C >> 7) + D per channel with the GS
// selector encoding: A/B/D pick source, destination or zero; C picks source
// alpha, destination alpha or the FIX constant. Results clamp to [0, 255].
func (dc *drawContext) blend(px, py int, cr, cg, cb, ca int32) (int32, int32, int32) {
	alpha := dc.snap.Ctx.ALPHA
	dr, dg, db, da := dc.destColor(px, py)

	sel := func(s uint8) (int32, int32, int32) {
		switch s {
		case 0:
			return cr, cg, cb
		case 1:
			return dr, dg, db
		default:
			return 0, 0, 0
		}
	}
	ar, ag, ab := sel(alpha.A())
	br, bg, bb := sel(alpha.B())
	drr, dgg, dbb := sel(alpha.D())

	var c int32
	switch alpha.C() {
	case 0:
		c = ca
	case 1:
		c = da
	default:
		c = int32(alpha.FIX())
	}

	return clamp255((ar-br)*c>>7 + drr),
		clamp255((ag-bg)*c>>7 + dgg),
		clamp255((ab-bb)*c>>7 + dbb)
}

// destColor reads and widens the destination pixel to 8-bit channels.
func (dc *drawContext) destColor(px, py int) (r, g, b, a int32) {
	d := dc.fb.Pixel(px, py)
	switch dc.fb.Format() {
	case gs.PSMCT16, gs.PSMCT16S:
		r = int32(d & 0x1f << 3)
		g = int32(d >> 5 & 0x1f << 3)
		b = int32(d >> 10 & 0x1f << 3)
		if d>>15&1 != 0 {
			a = 0x80
		}
		return r, g, b, a
	case gs.PSMCT24:
		return int32(d & 0xff), int32(d >> 8 & 0xff), int32(d >> 16 & 0xff), 0x80
	default:
		return int32(d & 0xff), int32(d >> 8 & 0xff), int32(d >> 16 & 0xff), int32(d >> 24)
	}
}

// writeColor packs the channels into the framebuffer format and stores them
// under the combined FBMSK / AFAIL channel mask.
func (dc *drawContext) writeColor(px, py int, cr, cg, cb, ca int32, writeRGB, writeA bool) {
	var val, mask uint32
	switch dc.fb.Format() {
	case gs.PSMCT16, gs.PSMCT16S:
		val = uint32(cr)>>3 | uint32(cg)>>3<<5 | uint32(cb)>>3<<10
		if ca >= 0x80 {
			val |= 1 << 15
		}
		if writeRGB {
			mask |= 0x7fff
		}
		if writeA {
			mask |= 1 << 15
		}
		mask &^= fbmsk16(dc.snap.Ctx.FRAME.FBMSK())
	default:
		val = uint32(cr) | uint32(cg)<<8 | uint32(cb)<<16 | uint32(ca)<<24
		if writeRGB {
			mask |= 0x00ffffff
		}
		if writeA {
			mask |= 0xff000000
		}
		mask &^= dc.snap.Ctx.FRAME.FBMSK()
	}
	if mask == 0 {
		return
	}
	dc.fb.SetPixel(px, py, val, mask)
}

// fbmsk16 folds the 32-bit FBMSK onto the 16-bit layout: a channel is
// masked when all of its 32-bit mask bits are set.
func fbmsk16(m uint32) uint32 {
	var out uint32
	if m&0x0000f8 == 0x0000f8 {
		out |= 0x001f
	}
	if m&0x00f800 == 0x00f800 {
		out |= 0x03e0
	}
	if m&0xf80000 == 0xf80000 {
		out |= 0x7c00
	}
	if m&0x80000000 != 0 {
		out |= 0x8000
	}
	return out
}

// clampZ limits a depth value to what the buffer format can store.
func clampZ(z uint32, f gs.PixelFormat) uint32 {
	switch f {
	case gs.PSMZ24:
		return min(z, 0xffffff)
	case gs.PSMZ16:
		return min(z, 0xffff)
	default:
		return z
	}
}

// sample fetches one texel (point) or a 2x2 footprint (bilinear), applying
// the per-axis wrap modes. Returns 8-bit channels.
func (dc *drawContext) sample(at attrs) (r, g, b, a int32) {
	if dc.tex == nil {
		return 0, 0, 0, 0
	}

	u, v := at.u, at.v
	if !dc.snap.Prim.FST() {
		q := at.q
		if q == 0 {
			q = 1
		}
		u = at.s / q * float64(dc.tex.Key.W)
		v = at.t / q * float64(dc.tex.Key.H)
	}

	if !dc.snap.Ctx.TEX1.MMAG() {
		px := dc.wrappedTexel(int(math.Floor(u)), int(math.Floor(v)))
		return int32(px & 0xff), int32(px >> 8 & 0xff), int32(px >> 16 & 0xff), int32(px >> 24)
	}

	// Bilinear: footprint centered half a texel back.
	u -= 0.5
	v -= 0.5
	iu, iv := int(math.Floor(u)), int(math.Floor(v))
	fu, fv := u-float64(iu), v-float64(iv)

	c00 := dc.wrappedTexel(iu, iv)
	c10 := dc.wrappedTexel(iu+1, iv)
	c01 := dc.wrappedTexel(iu, iv+1)
	c11 := dc.wrappedTexel(iu+1, iv+1)

	ch := func(px uint32, sh uint) float64 { return float64(px >> sh & 0xff) }
	mix := func(sh uint) int32 {
		top := ch(c00, sh)*(1-fu) + ch(c10, sh)*fu
		bot := ch(c01, sh)*(1-fu) + ch(c11, sh)*fu
		return int32(top*(1-fv) + bot*fv)
	}
	return mix(0), mix(8), mix(16), mix(24)
}

// wrappedTexel applies CLAMP wrap modes and fetches from the decode.
func (dc *drawContext) wrappedTexel(u, v int) uint32 {
	clamp := dc.snap.Ctx.CLAMP
	u = wrapCoord(u, dc.tex.Key.W, clamp.WMS(), clamp.MINU(), clamp.MAXU())
	v = wrapCoord(v, dc.tex.Key.H, clamp.WMT(), clamp.MINV(), clamp.MAXV())
	return dc.tex.Texel(u, v)
}

// wrapCoord maps a texel coordinate into [0, size) per the wrap mode. Sizes
// are powers of two, so REPEAT is a bit mask.
func wrapCoord(c, size int, mode uint8, lo, hi int) int {
	switch mode {
	case gs.WrapClamp:
		return clampInt(c, 0, size-1)
	case gs.WrapRegionClamp:
		return clampInt(c, min(lo, size-1), min(hi, size-1))
	case gs.WrapRegionRepeat:
		return (c&lo | hi) & (size - 1)
	default:
		return c & (size - 1)
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp255(v int32) int32 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
