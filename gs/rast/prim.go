package rast

import "gsynth/gs"

// attrs is the per-pixel interpolant set handed to the pixel pipeline.
type attrs struct {
	z          uint32
	r, g, b, a int32
	s, t, q    float64 // perspective (STQ) texture coordinates
	u, v       float64 // texel-space coordinates (UV mode)
	f          uint8   // fog coefficient, 255 = no fog
}

// sampleCenter is the 12.4 offset of a pixel center.
const sampleCenter = 8

// orient2d is twice the signed area of triangle abc in 12.4 coordinates.
func orient2d(ax, ay, bx, by, cx, cy int64) int64 {
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}

// topLeft reports whether edge a->b is a top or left edge; pixels exactly on
// such edges belong to this primitive, pixels on the others do not, so
// adjacent triangles neither gap nor double-draw.
func topLeft(ax, ay, bx, by int64) bool {
	return (ay == by && bx < ax) || by > ay
}

func (rz *rowRenderer) triangle(v0, v1, v2 gs.Vertex) {
	dc := rz.dc

	x0, y0 := int64(v0.X), int64(v0.Y)
	x1, y1 := int64(v1.X), int64(v1.Y)
	x2, y2 := int64(v2.X), int64(v2.Y)

	area := orient2d(x0, y0, x1, y1, x2, y2)
	if area == 0 {
		return
	}
	flat := v2 // closing vertex carries the flat color
	if area < 0 {
		v1, v2 = v2, v1
		x1, y1, x2, y2 = x2, y2, x1, y1
		area = -area
	}

	bias0 := int64(-1)
	bias1 := int64(-1)
	bias2 := int64(-1)
	if topLeft(x1, y1, x2, y2) {
		bias0 = 0
	}
	if topLeft(x2, y2, x0, y0) {
		bias1 = 0
	}
	if topLeft(x0, y0, x1, y1) {
		bias2 = 0
	}

	// Pixel box covered by the 12.4 triangle box, clipped to the draw box.
	px0 := max(dc.x0, ceilPix(min3(x0, x1, x2)))
	px1 := min(dc.x1, floorPix(max3(x0, x1, x2)))
	py0 := max(dc.y0, ceilPix(min3(y0, y1, y2)))
	py1 := min(dc.y1, floorPix(max3(y0, y1, y2)))

	iarea := 1 / float64(area)
	gouraud := dc.snap.Prim.IIP()

	for py := py0; py <= py1; py++ {
		if !rz.ownsRow(py) {
			continue
		}
		sy := int64(py)<<4 + sampleCenter
		for px := px0; px <= px1; px++ {
			sx := int64(px)<<4 + sampleCenter

			w0 := orient2d(x1, y1, x2, y2, sx, sy)
			w1 := orient2d(x2, y2, x0, y0, sx, sy)
			w2 := orient2d(x0, y0, x1, y1, sx, sy)
			if w0+bias0 < 0 || w1+bias1 < 0 || w2+bias2 < 0 {
				continue
			}

			f0, f1, f2 := float64(w0)*iarea, float64(w1)*iarea, float64(w2)*iarea
			var a attrs
			a.z = uint32(f0*float64(v0.Z) + f1*float64(v1.Z) + f2*float64(v2.Z))
			if gouraud {
				a.r = lerp3(f0, f1, f2, v0.R, v1.R, v2.R)
				a.g = lerp3(f0, f1, f2, v0.G, v1.G, v2.G)
				a.b = lerp3(f0, f1, f2, v0.B, v1.B, v2.B)
				a.a = lerp3(f0, f1, f2, v0.A, v1.A, v2.A)
				a.f = uint8(lerp3(f0, f1, f2, v0.F, v1.F, v2.F))
			} else {
				a.r, a.g, a.b, a.a = int32(flat.R), int32(flat.G), int32(flat.B), int32(flat.A)
				a.f = flat.F
			}
			if dc.snap.Prim.TME() {
				if dc.snap.Prim.FST() {
					a.u = (f0*float64(v0.U) + f1*float64(v1.U) + f2*float64(v2.U)) / 16
					a.v = (f0*float64(v0.V) + f1*float64(v1.V) + f2*float64(v2.V)) / 16
				} else {
					a.s = f0*float64(v0.S) + f1*float64(v1.S) + f2*float64(v2.S)
					a.t = f0*float64(v0.T) + f1*float64(v1.T) + f2*float64(v2.T)
					a.q = f0*float64(v0.Q) + f1*float64(v1.Q) + f2*float64(v2.Q)
				}
			}
			dc.shade(px, py, a)
		}
	}
}

// sprite draws the axis-aligned rectangle spanned by two opposite corners.
// The right and bottom edges are exclusive. Z and flat attributes come from
// the second vertex; texture coordinates interpolate linearly.
func (rz *rowRenderer) sprite(v0, v1 gs.Vertex) {
	dc := rz.dc

	lx, rx := int64(v0.X), int64(v1.X)
	ty, by := int64(v0.Y), int64(v1.Y)
	ls, rs := v0, v1
	if lx > rx {
		lx, rx = rx, lx
		ls.U, rs.U = rs.U, ls.U
		ls.S, rs.S = rs.S, ls.S
	}
	if ty > by {
		ty, by = by, ty
		ls.V, rs.V = rs.V, ls.V
		ls.T, rs.T = rs.T, ls.T
	}
	if lx == rx || ty == by {
		return
	}

	px0 := max(dc.x0, ceilPix(lx))
	px1 := min(dc.x1, ceilPix(rx)-1) // exclusive right
	py0 := max(dc.y0, ceilPix(ty))
	py1 := min(dc.y1, ceilPix(by)-1) // exclusive bottom

	iw := 1 / float64(rx-lx)
	ih := 1 / float64(by-ty)

	for py := py0; py <= py1; py++ {
		if !rz.ownsRow(py) {
			continue
		}
		fy := float64(int64(py)<<4+sampleCenter-ty) * ih
		for px := px0; px <= px1; px++ {
			fx := float64(int64(px)<<4+sampleCenter-lx) * iw

			a := attrs{
				z: v1.Z,
				r: int32(v1.R), g: int32(v1.G), b: int32(v1.B), a: int32(v1.A),
				f: v1.F,
			}
			if dc.snap.Prim.TME() {
				if dc.snap.Prim.FST() {
					a.u = (float64(ls.U) + fx*float64(rs.U-ls.U)) / 16
					a.v = (float64(ls.V) + fy*float64(rs.V-ls.V)) / 16
				} else {
					a.s = float64(ls.S) + fx*float64(rs.S-ls.S)
					a.t = float64(ls.T) + fy*float64(rs.T-ls.T)
					a.q = float64(v1.Q)
				}
			}
			dc.shade(px, py, a)
		}
	}
}

// line steps one pixel per unit along the major axis, interpolating all
// attributes by parametric distance.
func (rz *rowRenderer) line(v0, v1 gs.Vertex) {
	dc := rz.dc

	dx, dy := int64(v1.X-v0.X), int64(v1.Y-v0.Y)
	steps := max(abs64(dx), abs64(dy)) >> 4
	if steps == 0 {
		steps = 1
	}

	for i := int64(0); i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int64(v0.X) + int64(t*float64(dx))
		y := int64(v0.Y) + int64(t*float64(dy))
		px, py := int(x>>4), int(y>>4)
		if px < dc.x0 || px > dc.x1 || py < dc.y0 || py > dc.y1 || !rz.ownsRow(py) {
			continue
		}

		a := attrs{
			z: uint32(float64(v0.Z) + t*(float64(v1.Z)-float64(v0.Z))),
		}
		if dc.snap.Prim.IIP() {
			a.r = lerp2(t, v0.R, v1.R)
			a.g = lerp2(t, v0.G, v1.G)
			a.b = lerp2(t, v0.B, v1.B)
			a.a = lerp2(t, v0.A, v1.A)
			a.f = uint8(lerp2(t, v0.F, v1.F))
		} else {
			a.r, a.g, a.b, a.a = int32(v1.R), int32(v1.G), int32(v1.B), int32(v1.A)
			a.f = v1.F
		}
		if dc.snap.Prim.TME() {
			if dc.snap.Prim.FST() {
				a.u = (float64(v0.U) + t*float64(v1.U-v0.U)) / 16
				a.v = (float64(v0.V) + t*float64(v1.V-v0.V)) / 16
			} else {
				a.s = float64(v0.S) + t*float64(v1.S-v0.S)
				a.t = float64(v0.T) + t*float64(v1.T-v0.T)
				a.q = float64(v0.Q) + t*float64(v1.Q-v0.Q)
			}
		}
		dc.shade(px, py, a)
	}
}

// point writes the single pixel at the vertex's truncated coordinates.
func (rz *rowRenderer) point(v gs.Vertex) {
	dc := rz.dc

	px, py := int(v.X>>4), int(v.Y>>4)
	if px < dc.x0 || px > dc.x1 || py < dc.y0 || py > dc.y1 || !rz.ownsRow(py) {
		return
	}

	a := attrs{
		z: v.Z,
		r: int32(v.R), g: int32(v.G), b: int32(v.B), a: int32(v.A),
		f: v.F,
	}
	if dc.snap.Prim.TME() {
		if dc.snap.Prim.FST() {
			a.u, a.v = float64(v.U)/16, float64(v.V)/16
		} else {
			a.s, a.t, a.q = float64(v.S), float64(v.T), float64(v.Q)
		}
	}
	dc.shade(px, py, a)
}

// ceilPix returns the first pixel whose center lies at or past the 12.4
// coordinate c.
func ceilPix(c int64) int {
	return int(floorDiv(c-sampleCenter+15, 16))
}

// floorPix returns the last pixel whose center lies at or before c.
func floorPix(c int64) int {
	return int(floorDiv(c-sampleCenter, 16))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func lerp3[T ~uint8](f0, f1, f2 float64, a0, a1, a2 T) int32 {
	return int32(f0*float64(a0) + f1*float64(a1) + f2*float64(a2))
}

func lerp2[T ~uint8](t float64, a0, a1 T) int32 {
	return int32(float64(a0) + t*(float64(a1)-float64(a0)))
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func min3(a, b, c int64) int64 { return min(a, min(b, c)) }
func max3(a, b, c int64) int64 { return max(a, max(b, c)) }
