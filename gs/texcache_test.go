package gs

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTexCacheDecode32(t *testing.T) {
	vram := NewVRAM()
	v := vram.View(0, 64, PSMCT32)
	v.SetPixel(0, 0, 0x11223344, 0xffffffff)
	v.SetPixel(1, 0, 0xffeeddcc, 0xffffffff)

	c := NewTexCache(vram, 0)
	tex := c.Lookup(TexKey{Stride: 64, Format: PSMCT32, W: 2, H: 1})

	want := []uint32{0x11223344, 0xffeeddcc}
	if diff := cmp.Diff(want, tex.Pix); diff != "" {
		t.Errorf("decoded texels mismatch:\n%s", diff)
	}
}

func TestTexCacheExpand16(t *testing.T) {
	vram := NewVRAM()
	v := vram.View(0, 64, PSMCT16)
	v.SetPixel(0, 0, 0x001f, 0xffffffff)      // pure red, A bit clear
	v.SetPixel(1, 0, 0x8000|0x3e0, 0xffffffff) // pure green, A bit set
	v.SetPixel(2, 0, 0, 0xffffffff)            // black, for AEM

	texa := TEXA(0x40 | 0x80<<32 | 1<<15) // TA0=0x40, TA1=0x80, AEM
	c := NewTexCache(vram, 0)
	tex := c.Lookup(TexKey{Stride: 64, Format: PSMCT16, W: 3, H: 1, TEXA: texa})

	want := []uint32{
		0x40<<24 | 0xf8,      // TA0 alpha
		0x80<<24 | 0xf8<<8,   // TA1 alpha
		0,                    // AEM: black decodes transparent
	}
	if diff := cmp.Diff(want, tex.Pix); diff != "" {
		t.Errorf("expanded texels mismatch:\n%s", diff)
	}
}

func TestTexCacheHitAndInvalidate(t *testing.T) {
	vram := NewVRAM()
	c := NewTexCache(vram, 0)
	key := TexKey{Stride: 64, Format: PSMCT32, W: 4, H: 4}

	c.Lookup(key)
	c.Lookup(key)
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Fatalf("stats = (%d hits, %d misses), want (1, 1)", hits, misses)
	}

	// A write inside the region must drop the entry...
	v := vram.View(0, 64, PSMCT32)
	v.SetPixel(2, 2, 0xdead, 0xffffffff)
	off := v.PixOffset(2, 2)
	c.Invalidate(off, off+4)

	tex := c.Lookup(key)
	if _, misses := c.Stats(); misses != 2 {
		t.Errorf("lookup after invalidation did not re-decode")
	}
	if got := tex.Texel(2, 2); got != 0xdead {
		t.Errorf("texel = %#x, want 0xdead", got)
	}

	// ...while a write past it leaves the entry cached.
	lo, hi := v.Rect(4, 4)
	c.Invalidate(hi, hi+16)
	c.Lookup(key)
	if hits, _ := c.Stats(); hits != 2 {
		t.Errorf("non-overlapping write evicted entry [%d, %d)", lo, hi)
	}
}

func TestTexCacheLRUEviction(t *testing.T) {
	vram := NewVRAM()
	// Budget fits two 4x4 RGBA32 decodes (64 bytes each), not three.
	c := NewTexCache(vram, 128)

	k1 := TexKey{Base: 0, Stride: 64, Format: PSMCT32, W: 4, H: 4}
	k2 := TexKey{Base: 1, Stride: 64, Format: PSMCT32, W: 4, H: 4}
	k3 := TexKey{Base: 2, Stride: 64, Format: PSMCT32, W: 4, H: 4}

	c.Lookup(k1)
	c.Lookup(k2)
	c.Lookup(k1) // refresh k1 so k2 is the eviction candidate
	c.Lookup(k3)

	c.Lookup(k1)
	c.Lookup(k3)
	hits, misses := c.Stats()
	if hits != 3 || misses != 3 {
		t.Errorf("stats = (%d hits, %d misses), want (3, 3)", hits, misses)
	}

	c.Lookup(k2)
	if _, misses := c.Stats(); misses != 4 {
		t.Errorf("evicted entry was not re-decoded")
	}
}
