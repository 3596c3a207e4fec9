package vector

import "sync"

// Kernel is the batch-math capability interface. Wider implementations can be
// plugged in per lane width; the choice is made once, at Init, instead of at
// build time.
type Kernel interface {
	// Name identifies the kernel ("generic", "unrolled4", ...).
	Name() string

	// AddSat8 adds src into dst lane-wise with unsigned 8-bit saturation.
	// len(dst) == len(src); each uint32 holds 4 packed byte lanes.
	AddSat8(dst, src []uint32)

	// Fill stores val into every element of dst.
	Fill(dst []uint32, val uint32)

	// Blend7 computes ((a-b)*c >> 7) + d per byte lane of every element,
	// with truncating shifts. Used by the pixel blend units.
	Blend7(dst, a, b, c, d []uint32)
}

var (
	kernelOnce sync.Once
	kernel     Kernel = genericKernel{}
)

// Init selects the batch kernel. Idempotent; safe to call multiple times.
func Init() {
	kernelOnce.Do(func() {
		// Lane-unrolled variant wins on every tested target, keep the
		// generic one reachable for the equivalence test.
		kernel = unrolled4Kernel{}
	})
}

// Batch returns the kernel selected by Init.
func Batch() Kernel { return kernel }

type genericKernel struct{}

func (genericKernel) Name() string { return "generic" }

func (genericKernel) Fill(dst []uint32, val uint32) {
	for i := range dst {
		dst[i] = val
	}
}

func (genericKernel) AddSat8(dst, src []uint32) {
	for i := range dst {
		dst[i] = addSat8(dst[i], src[i])
	}
}

func (genericKernel) Blend7(dst, a, b, c, d []uint32) {
	for i := range dst {
		dst[i] = blend7(a[i], b[i], c[i], d[i])
	}
}

// unrolled4Kernel processes 4 elements per iteration. Same results as
// genericKernel, element for element.
type unrolled4Kernel struct{}

func (unrolled4Kernel) Name() string { return "unrolled4" }

func (unrolled4Kernel) Fill(dst []uint32, val uint32) {
	n := len(dst) &^ 3
	for i := 0; i < n; i += 4 {
		dst[i+0] = val
		dst[i+1] = val
		dst[i+2] = val
		dst[i+3] = val
	}
	for i := n; i < len(dst); i++ {
		dst[i] = val
	}
}

func (unrolled4Kernel) AddSat8(dst, src []uint32) {
	n := len(dst) &^ 3
	for i := 0; i < n; i += 4 {
		dst[i+0] = addSat8(dst[i+0], src[i+0])
		dst[i+1] = addSat8(dst[i+1], src[i+1])
		dst[i+2] = addSat8(dst[i+2], src[i+2])
		dst[i+3] = addSat8(dst[i+3], src[i+3])
	}
	for i := n; i < len(dst); i++ {
		dst[i] = addSat8(dst[i], src[i])
	}
}

func (unrolled4Kernel) Blend7(dst, a, b, c, d []uint32) {
	n := len(dst) &^ 3
	for i := 0; i < n; i += 4 {
		dst[i+0] = blend7(a[i+0], b[i+0], c[i+0], d[i+0])
		dst[i+1] = blend7(a[i+1], b[i+1], c[i+1], d[i+1])
		dst[i+2] = blend7(a[i+2], b[i+2], c[i+2], d[i+2])
		dst[i+3] = blend7(a[i+3], b[i+3], c[i+3], d[i+3])
	}
	for i := n; i < len(dst); i++ {
		dst[i] = blend7(a[i], b[i], c[i], d[i])
	}
}

func addSat8(x, y uint32) uint32 {
	var out uint32
	for sh := uint(0); sh < 32; sh += 8 {
		s := (x>>sh)&0xff + (y>>sh)&0xff
		if s > 255 {
			s = 255
		}
		out |= s << sh
	}
	return out
}

func blend7(a, b, c, d uint32) uint32 {
	var out uint32
	for sh := uint(0); sh < 32; sh += 8 {
		la := int32(a >> sh & 0xff)
		lb := int32(b >> sh & 0xff)
		lc := int32(c >> sh & 0xff)
		ld := int32(d >> sh & 0xff)
		v := (la-lb)*lc>>7 + ld
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		out |= uint32(v) << sh
	}
	return out
}
