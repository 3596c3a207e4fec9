package vector

import (
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestV4Ops(t *testing.T) {
	a := NewV4(1, 2, 3, 4)
	b := NewV4(4, 3, 2, 1)

	if got, want := a.Add(b), NewV4(5, 5, 5, 5); got != want {
		t.Errorf("Add = %v, want %v", got, want)
	}
	if got, want := a.Sub(b), NewV4(-3, -1, 1, 3); got != want {
		t.Errorf("Sub = %v, want %v", got, want)
	}
	if got, want := a.Dot(b), float32(4+6+6+4); got != want {
		t.Errorf("Dot = %v, want %v", got, want)
	}
	if got, want := a.Min(b), NewV4(1, 2, 2, 1); got != want {
		t.Errorf("Min = %v, want %v", got, want)
	}
	if got, want := a.Max(b), NewV4(4, 3, 3, 4); got != want {
		t.Errorf("Max = %v, want %v", got, want)
	}
	if got, want := NewV4(-1, 0.5, 2, 300).Clamp(0, 1), NewV4(0, 0.5, 1, 1); got != want {
		t.Errorf("Clamp = %v, want %v", got, want)
	}
}

func TestV4iShiftTruncation(t *testing.T) {
	// Arithmetic right shift truncates towards negative infinity.
	v := NewV4i(-1, -255, 255, 127).Sra(7)
	if want := NewV4i(-1, -2, 1, 0); v != want {
		t.Errorf("Sra(7) = %v, want %v", v, want)
	}
}

func TestRGBA32RoundTrip(t *testing.T) {
	c := uint32(0x80FF3C12)
	if got := FromRGBA32(c).RGBA32(); got != c {
		t.Errorf("round trip = %08x, want %08x", got, c)
	}
	px := FromRGBA32(0x01020304)
	if want := NewV4i(0x04, 0x03, 0x02, 0x01); px != want {
		t.Errorf("FromRGBA32 = %v, want %v", px, want)
	}
}

// The unrolled kernel must be element-for-element identical to the generic
// one, otherwise renderer output would depend on the kernel picked at Init.
func TestKernelEquivalence(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	const n = 1027 // deliberately not a multiple of 4
	a := make([]uint32, n)
	b := make([]uint32, n)
	c := make([]uint32, n)
	d := make([]uint32, n)
	for i := range a {
		a[i], b[i], c[i], d[i] = rng.Uint32(), rng.Uint32(), rng.Uint32(), rng.Uint32()
	}

	gen, unr := genericKernel{}, unrolled4Kernel{}

	got := make([]uint32, n)
	want := make([]uint32, n)

	gen.Blend7(want, a, b, c, d)
	unr.Blend7(got, a, b, c, d)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Blend7 mismatch (-generic +unrolled):\n%s", diff)
	}

	copy(got, a)
	copy(want, a)
	gen.AddSat8(want, b)
	unr.AddSat8(got, b)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AddSat8 mismatch (-generic +unrolled):\n%s", diff)
	}

	gen.Fill(want, 0xDEADBEEF)
	unr.Fill(got, 0xDEADBEEF)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Fill mismatch (-generic +unrolled):\n%s", diff)
	}
}

func TestInitSelectsKernel(t *testing.T) {
	Init()
	if Batch() == nil {
		t.Fatal("no kernel selected")
	}
	if name := Batch().Name(); name != "unrolled4" {
		t.Errorf("kernel = %q, want unrolled4", name)
	}
}
