package gs

import (
	"container/list"
	"sync"

	"gsynth/emu/log"
)

// TexKey identifies a cached texture decode. Two TEX0 configurations that
// alias the same memory through different geometry are distinct entries.
type TexKey struct {
	Base   uint32
	Stride int
	Format PixelFormat
	W, H   int
	TEXA   TEXA
}

// Texture is a decoded, sampling-ready snapshot of a VRAM region. Pix holds
// W*H texels as packed RGBA32 (R in the low byte), row-major.
type Texture struct {
	Key TexKey
	Pix []uint32

	lo, hi int // dirtied-range overlap check
	elem   *list.Element
}

// Texel returns the texel at (u, v) with no wrapping applied; callers clamp
// or wrap coordinates first.
func (t *Texture) Texel(u, v int) uint32 {
	return t.Pix[v*t.Key.W+u]
}

// TexCache memoizes texture decodes between draws. Entries are invalidated
// when a write dirties any byte of their source region and evicted
// least-recently-used once the decoded bytes exceed the budget. All methods
// are safe for concurrent use, though lookups normally happen only on the
// draw thread.
type TexCache struct {
	mu      sync.Mutex
	vram    *VRAM
	budget  int
	size    int
	entries map[TexKey]*Texture
	lru     list.List // front = most recent

	hits, misses uint64
}

// DefaultTexCacheBudget bounds decoded texel memory. Sized to hold several
// full-VRAM decodes, since a 32-bit decode doubles the source footprint.
const DefaultTexCacheBudget = 64 << 20

func NewTexCache(vram *VRAM, budget int) *TexCache {
	if budget <= 0 {
		budget = DefaultTexCacheBudget
	}
	return &TexCache{
		vram:    vram,
		budget:  budget,
		entries: make(map[TexKey]*Texture),
	}
}

// Lookup returns the decoded texture for key, decoding from VRAM on a miss.
func (c *TexCache) Lookup(key TexKey) *Texture {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.entries[key]; ok {
		c.lru.MoveToFront(t.elem)
		c.hits++
		return t
	}
	c.misses++

	t := c.decode(key)
	t.elem = c.lru.PushFront(t)
	c.entries[key] = t
	c.size += len(t.Pix) * 4

	for c.size > c.budget && c.lru.Len() > 1 {
		c.evict(c.lru.Back().Value.(*Texture))
	}
	return t
}

// Invalidate removes every entry whose source bytes overlap [lo, hi).
// Wrapped ranges are handled by the caller passing the wrapped pieces.
func (c *TexCache) Invalidate(lo, hi int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.lru.Front(); e != nil; {
		t := e.Value.(*Texture)
		e = e.Next()
		if rangesOverlap(t.lo, t.hi, lo, hi) {
			c.evict(t)
		}
	}
}

// Clear drops all entries.
func (c *TexCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.entries {
		c.evict(t)
	}
}

// Stats reports lifetime hit/miss counters.
func (c *TexCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *TexCache) evict(t *Texture) {
	c.lru.Remove(t.elem)
	delete(c.entries, t.Key)
	c.size -= len(t.Pix) * 4
	log.ModGS.DebugZ("texture evicted").
		Hex32("base", t.Key.Base).
		Int("w", t.Key.W).Int("h", t.Key.H).
		End()
}

// decode expands the keyed VRAM region into RGBA32 texels. 16- and 24-bit
// sources take their alpha from TEXA.
func (c *TexCache) decode(key TexKey) *Texture {
	v := c.vram.View(key.Base, key.Stride, key.Format)
	t := &Texture{
		Key: key,
		Pix: make([]uint32, key.W*key.H),
	}
	t.lo, t.hi = v.Rect(key.W, key.H)

	for y := range key.H {
		for x := range key.W {
			t.Pix[y*key.W+x] = expandTexel(v.Pixel(x, y), key.Format, key.TEXA)
		}
	}
	return t
}

// expandTexel converts one stored pixel to RGBA32 per the TEXA expansion
// rules: 16-bit alpha selects TA1/TA0 by the stored A bit, 24-bit always
// uses TA0, and AEM forces black source pixels fully transparent.
func expandTexel(px uint32, f PixelFormat, texa TEXA) uint32 {
	switch f {
	case PSMCT16, PSMCT16S:
		r := px & 0x1f << 3
		g := px >> 5 & 0x1f << 3
		b := px >> 10 & 0x1f << 3
		a := uint32(texa.TA0())
		if px>>15&1 != 0 {
			a = uint32(texa.TA1())
		} else if texa.AEM() && px&0x7fff == 0 {
			a = 0
		}
		return r | g<<8 | b<<16 | a<<24

	case PSMCT24:
		a := uint32(texa.TA0())
		if texa.AEM() && px&0xffffff == 0 {
			a = 0
		}
		return px&0xffffff | a<<24

	default:
		return px
	}
}
