package gs

import (
	"encoding/binary"
	"math"

	"github.com/go-faster/errors"

	"gsynth/emu/log"
)

// Savestate blob layout: a fixed little-endian image with a 12-byte header
// (magic, version, total length), every tracked register, the three path
// states, the transfer engine, the vertex queue, the privileged block and
// all of local memory. The layout is a compatibility contract: blobs from
// older minor revisions of the same version load bit-identically.
const (
	freezeMagic   = 0x4e595347 // "GSYN"
	freezeVersion = 1
)

const (
	freezeHeaderSize = 12
	freezeVertexSize = 44
	freezePathSize   = 28
	freezeTrxSize    = 36
	freezeStateSize  = numRegs*8 + // raw register file
		8*5 + // prim, prmode, rgbaq, texa, fogcol
		1 + 1 + 1 + 1 + // prmodecont, fog, finishReq, vqlen
		4*5 + // st[2], q, uv[2]
		2*9*8 + // both contexts
		numPaths*freezePathSize +
		freezeTrxSize +
		4*freezeVertexSize
)

// FreezeSize is the exact byte length Freeze produces.
func FreezeSize() int {
	return freezeHeaderSize + freezeStateSize + PrivSize + VRAMSize
}

// Freeze serializes the full chip state. The pending batch must have been
// flushed by the caller; queued but unkicked vertices are preserved.
func (s *State) Freeze(priv Priv) []byte {
	c := cursor{buf: make([]byte, FreezeSize())}
	c.u32(freezeMagic)
	c.u32(freezeVersion)
	c.u32(uint32(FreezeSize()))

	for _, r := range s.raw {
		c.u64(r)
	}
	c.u64(uint64(s.prim))
	c.u64(s.prmode)
	c.u64(uint64(s.rgbaq))
	c.u64(uint64(s.texa))
	c.u64(uint64(s.fogcol))
	c.bool8(s.prmodecont)
	c.u8(s.fog)
	c.bool8(s.finishReq)
	c.u8(uint8(s.vqlen))
	c.f32(s.st[0])
	c.f32(s.st[1])
	c.f32(s.q)
	c.u32(uint32(s.uv[0]))
	c.u32(uint32(s.uv[1]))

	for i := range s.ctx {
		ctx := &s.ctx[i]
		c.u64(uint64(ctx.TEX0))
		c.u64(uint64(ctx.TEX1))
		c.u64(uint64(ctx.CLAMP))
		c.u64(uint64(ctx.XYOFFSET))
		c.u64(uint64(ctx.SCISSOR))
		c.u64(uint64(ctx.ALPHA))
		c.u64(uint64(ctx.TEST))
		c.u64(uint64(ctx.FRAME))
		c.u64(uint64(ctx.ZBUF))
	}

	for i := range s.path {
		p := &s.path[i]
		lo, hi := p.tag.encode()
		c.u64(lo)
		c.u64(hi)
		c.u32(p.nloop)
		c.u32(uint32(p.reg))
		c.bool8(p.valid)
		c.pad(3)
	}

	c.u64(uint64(s.trx.buf))
	c.u64(uint64(s.trx.pos))
	c.u64(uint64(s.trx.reg))
	c.u8(s.trx.dir)
	c.pad(3)
	c.u32(uint32(s.trx.x))
	c.u32(uint32(s.trx.y))

	for i := range s.vq {
		v := &s.vq[i]
		c.u32(uint32(v.X))
		c.u32(uint32(v.Y))
		c.u32(v.Z)
		c.u8(v.R)
		c.u8(v.G)
		c.u8(v.B)
		c.u8(v.A)
		c.f32(v.Q)
		c.f32(v.S)
		c.f32(v.T)
		c.u32(uint32(v.U))
		c.u32(uint32(v.V))
		c.u8(v.F)
		c.pad(3)
	}

	c.bytes(priv.Mem()[:PrivSize])
	c.bytes(s.vram.Data())

	log.ModFreeze.DebugZ("state frozen").Int("bytes", c.off).End()
	return c.buf
}

// Defrost restores a Freeze blob. Validation happens up front: a blob with
// the wrong magic, version or length leaves the state untouched.
func (s *State) Defrost(priv Priv, blob []byte) error {
	if len(blob) < freezeHeaderSize {
		return errors.New("savestate: truncated header")
	}
	c := cursor{buf: blob}
	if got := c.ru32(); got != freezeMagic {
		return errors.Errorf("savestate: bad magic %#x", got)
	}
	if got := c.ru32(); got != freezeVersion {
		return errors.Errorf("savestate: unsupported version %d", got)
	}
	if got := int(c.ru32()); got != FreezeSize() || len(blob) != FreezeSize() {
		return errors.Errorf("savestate: length %d, want %d", len(blob), FreezeSize())
	}

	for i := range s.raw {
		s.raw[i] = c.ru64()
	}
	s.prim = PRIM(c.ru64())
	s.prmode = c.ru64()
	s.rgbaq = RGBAQ(c.ru64())
	s.texa = TEXA(c.ru64())
	s.fogcol = FOGCOL(c.ru64())
	s.prmodecont = c.rbool8()
	s.fog = c.ru8()
	s.finishReq = c.rbool8()
	s.vqlen = int(c.ru8())
	s.st[0] = c.rf32()
	s.st[1] = c.rf32()
	s.q = c.rf32()
	s.uv[0] = int32(c.ru32())
	s.uv[1] = int32(c.ru32())

	for i := range s.ctx {
		ctx := &s.ctx[i]
		ctx.TEX0 = TEX0(c.ru64())
		ctx.TEX1 = TEX1(c.ru64())
		ctx.CLAMP = CLAMP(c.ru64())
		ctx.XYOFFSET = XYOFFSET(c.ru64())
		ctx.SCISSOR = SCISSOR(c.ru64())
		ctx.ALPHA = ALPHA(c.ru64())
		ctx.TEST = TEST(c.ru64())
		ctx.FRAME = FRAME(c.ru64())
		ctx.ZBUF = ZBUF(c.ru64())
	}

	for i := range s.path {
		p := &s.path[i]
		lo, hi := c.ru64(), c.ru64()
		p.tag = decodeGIFTag(lo, hi)
		p.nloop = c.ru32()
		p.reg = int(c.ru32())
		p.valid = c.rbool8()
		c.skip(3)
	}

	s.trx.buf = BITBLTBUF(c.ru64())
	s.trx.pos = TRXPOS(c.ru64())
	s.trx.reg = TRXREG(c.ru64())
	s.trx.dir = c.ru8()
	c.skip(3)
	s.trx.x = int(int32(c.ru32()))
	s.trx.y = int(int32(c.ru32()))

	for i := range s.vq {
		v := &s.vq[i]
		v.X = int32(c.ru32())
		v.Y = int32(c.ru32())
		v.Z = c.ru32()
		v.R = c.ru8()
		v.G = c.ru8()
		v.B = c.ru8()
		v.A = c.ru8()
		v.Q = c.rf32()
		v.S = c.rf32()
		v.T = c.rf32()
		v.U = int32(c.ru32())
		v.V = int32(c.ru32())
		v.F = c.ru8()
		c.skip(3)
	}

	copy(priv.Mem()[:PrivSize], c.rbytes(PrivSize))
	copy(s.vram.Data(), c.rbytes(VRAMSize))

	s.batch.Verts = s.batch.Verts[:0]
	s.pending = false

	log.ModFreeze.InfoZ("state restored").Int("bytes", len(blob)).End()
	return nil
}

// encode re-packs a decoded tag into its wire quadword.
func (t gifTag) encode() (lo, hi uint64) {
	lo = uint64(t.nloop)
	if t.eop {
		lo |= 1 << 15
	}
	if t.pre {
		lo |= 1 << 46
	}
	lo |= (t.prim & 0x7ff) << 47
	lo |= uint64(t.flg&3) << 58
	lo |= uint64(t.nreg&0xf) << 60 // 16 encodes as 0
	return lo, t.regs
}

// cursor is a bounds-checked little-endian serializer over a fixed buffer.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) u8(v uint8) {
	c.buf[c.off] = v
	c.off++
}

func (c *cursor) bool8(v bool) {
	var b uint8
	if v {
		b = 1
	}
	c.u8(b)
}

func (c *cursor) u32(v uint32) {
	binary.LittleEndian.PutUint32(c.buf[c.off:], v)
	c.off += 4
}

func (c *cursor) u64(v uint64) {
	binary.LittleEndian.PutUint64(c.buf[c.off:], v)
	c.off += 8
}

func (c *cursor) f32(v float32) { c.u32(math.Float32bits(v)) }

func (c *cursor) pad(n int) { c.off += n }

func (c *cursor) bytes(b []byte) {
	copy(c.buf[c.off:], b)
	c.off += len(b)
}

func (c *cursor) ru8() uint8 {
	v := c.buf[c.off]
	c.off++
	return v
}

func (c *cursor) rbool8() bool { return c.ru8() != 0 }

func (c *cursor) ru32() uint32 {
	v := binary.LittleEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v
}

func (c *cursor) ru64() uint64 {
	v := binary.LittleEndian.Uint64(c.buf[c.off:])
	c.off += 8
	return v
}

func (c *cursor) rf32() float32 { return math.Float32frombits(c.ru32()) }

func (c *cursor) skip(n int) { c.off += n }

func (c *cursor) rbytes(n int) []byte {
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b
}
