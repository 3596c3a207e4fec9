// Package vector provides the fixed-width 4-lane vector types used by the GS
// core for geometry and pixel batch math. The types are plain value structs
// so the compiler can keep them in registers; wider batch operations go
// through the kernel selected by Init.
package vector

// V4 is a 4-lane float32 vector.
type V4 struct {
	X, Y, Z, W float32
}

// V4i is a 4-lane int32 vector.
type V4i struct {
	X, Y, Z, W int32
}

func NewV4(x, y, z, w float32) V4  { return V4{x, y, z, w} }
func NewV4i(x, y, z, w int32) V4i  { return V4i{x, y, z, w} }

func (a V4) Add(b V4) V4 { return V4{a.X + b.X, a.Y + b.Y, a.Z + b.Z, a.W + b.W} }
func (a V4) Sub(b V4) V4 { return V4{a.X - b.X, a.Y - b.Y, a.Z - b.Z, a.W - b.W} }
func (a V4) Mul(b V4) V4 { return V4{a.X * b.X, a.Y * b.Y, a.Z * b.Z, a.W * b.W} }

func (a V4) Scale(s float32) V4 { return V4{a.X * s, a.Y * s, a.Z * s, a.W * s} }

func (a V4) Dot(b V4) float32 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z + a.W*b.W
}

func (a V4) Min(b V4) V4 {
	return V4{minf(a.X, b.X), minf(a.Y, b.Y), minf(a.Z, b.Z), minf(a.W, b.W)}
}

func (a V4) Max(b V4) V4 {
	return V4{maxf(a.X, b.X), maxf(a.Y, b.Y), maxf(a.Z, b.Z), maxf(a.W, b.W)}
}

// Clamp clamps every lane into [lo, hi].
func (a V4) Clamp(lo, hi float32) V4 {
	return a.Max(V4{lo, lo, lo, lo}).Min(V4{hi, hi, hi, hi})
}

// Lerp returns a + (b-a)*t per lane.
func (a V4) Lerp(b V4, t float32) V4 {
	return a.Add(b.Sub(a).Scale(t))
}

func (a V4i) Add(b V4i) V4i { return V4i{a.X + b.X, a.Y + b.Y, a.Z + b.Z, a.W + b.W} }
func (a V4i) Sub(b V4i) V4i { return V4i{a.X - b.X, a.Y - b.Y, a.Z - b.Z, a.W - b.W} }

func (a V4i) Min(b V4i) V4i {
	return V4i{mini(a.X, b.X), mini(a.Y, b.Y), mini(a.Z, b.Z), mini(a.W, b.W)}
}

func (a V4i) Max(b V4i) V4i {
	return V4i{maxi(a.X, b.X), maxi(a.Y, b.Y), maxi(a.Z, b.Z), maxi(a.W, b.W)}
}

// Sra shifts every lane right arithmetically. Right shifts truncate towards
// negative infinity, matching the hardware blend arithmetic.
func (a V4i) Sra(n uint) V4i {
	return V4i{a.X >> n, a.Y >> n, a.Z >> n, a.W >> n}
}

// Sll shifts every lane left.
func (a V4i) Sll(n uint) V4i {
	return V4i{a.X << n, a.Y << n, a.Z << n, a.W << n}
}

// Clamp8 clamps every lane into [0, 255].
func (a V4i) Clamp8() V4i {
	return a.Max(V4i{}).Min(V4i{255, 255, 255, 255})
}

// ToV4 converts lanes to float32.
func (a V4i) ToV4() V4 {
	return V4{float32(a.X), float32(a.Y), float32(a.Z), float32(a.W)}
}

// ToV4i truncates lanes to int32.
func (a V4) ToV4i() V4i {
	return V4i{int32(a.X), int32(a.Y), int32(a.Z), int32(a.W)}
}

// RGBA32 packs the lanes (r,g,b,a), each already in [0,255], into a pixel.
func (a V4i) RGBA32() uint32 {
	return uint32(a.X)&0xff | uint32(a.Y)&0xff<<8 | uint32(a.Z)&0xff<<16 | uint32(a.W)&0xff<<24
}

// FromRGBA32 unpacks a 32-bit pixel into (r,g,b,a) lanes.
func FromRGBA32(c uint32) V4i {
	return V4i{
		int32(c & 0xff),
		int32(c >> 8 & 0xff),
		int32(c >> 16 & 0xff),
		int32(c >> 24 & 0xff),
	}
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func mini(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func maxi(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
