// Package rast is the software rasterizer: it turns flattened primitive
// batches into framebuffer and depth writes with the same integer pixel
// math regardless of how many workers share the job.
package rast

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"gsynth/emu/log"
	"gsynth/gs"
)

// bandHeight is the height in pixels of one ownership band. Scanline y
// belongs to band y/bandHeight, and bands are dealt round-robin to workers,
// so no two workers ever touch the same row.
const bandHeight = 32

// Config controls the worker pool.
type Config struct {
	// Workers is the number of rasterization goroutines. 0 rasterizes
	// inline on the calling goroutine.
	Workers int
}

// Bounds is the conservative VRAM byte extent dirtied by a draw, split by
// target buffer. A zero Bounds means nothing was written.
type Bounds struct {
	FBLo, FBHi int
	ZBLo, ZBHi int
}

func (b Bounds) Empty() bool { return b.FBHi == b.FBLo && b.ZBHi == b.ZBLo }

// Rasterizer owns a fixed pool of workers for the lifetime of the renderer.
// Draw blocks until every pixel of the batch has landed, so callers may
// touch VRAM freely between draws.
type Rasterizer struct {
	vram    *gs.VRAM
	tc      *gs.TexCache
	workers int
	jobs    []chan job
	grp     *errgroup.Group

	// rowHook observes (worker, row) pairs during rasterization.
	rowHook func(wid, y int)
}

type job struct {
	dc *drawContext
	wg *sync.WaitGroup
}

func New(vram *gs.VRAM, tc *gs.TexCache, cfg Config) *Rasterizer {
	r := &Rasterizer{
		vram:    vram,
		tc:      tc,
		workers: cfg.Workers,
	}
	if r.workers > 0 {
		r.grp = &errgroup.Group{}
		for i := range r.workers {
			ch := make(chan job, 1)
			r.jobs = append(r.jobs, ch)
			r.grp.Go(func() error {
				for j := range ch {
					j.dc.run(i, r.workers, r.rowHook)
					j.wg.Done()
				}
				return nil
			})
		}
		log.ModRast.InfoZ("worker pool started").Int("workers", r.workers).End()
	}
	return r
}

// Close shuts the pool down. No Draw may be in flight or issued after.
func (r *Rasterizer) Close() error {
	for _, ch := range r.jobs {
		close(ch)
	}
	if r.grp != nil {
		return r.grp.Wait()
	}
	return nil
}

// Draw rasterizes one batch and returns the dirtied VRAM extent. It blocks
// until all workers have drained the batch.
func (r *Rasterizer) Draw(b *gs.Batch) Bounds {
	dc := r.prepare(b)
	if dc == nil {
		return Bounds{}
	}

	if r.workers == 0 {
		dc.run(0, 1, r.rowHook)
	} else {
		var wg sync.WaitGroup
		wg.Add(r.workers)
		for _, ch := range r.jobs {
			ch <- job{dc, &wg}
		}
		wg.Wait()
	}
	return dc.bounds
}

// prepare snapshots everything the workers need: typed buffer views, the
// clipped bounding box and the decoded texture. Returns nil when the batch
// cannot produce any pixel.
func (r *Rasterizer) prepare(b *gs.Batch) *drawContext {
	snap := &b.Snapshot
	kick := snap.Prim.Type().VertexKickCount()
	if kick == 0 || len(b.Verts) < kick {
		return nil
	}

	dc := &drawContext{
		snap:  snap,
		verts: b.Verts,
		kick:  kick,
	}

	fbFmt := gs.PixelFormat(snap.Ctx.FRAME.PSM())
	dc.fb = r.vram.View(snap.Ctx.FRAME.FBP(), int(snap.Ctx.FRAME.FBW())*64, fbFmt)
	dc.zb = r.vram.View(snap.Ctx.ZBUF.ZBP(), int(snap.Ctx.FRAME.FBW())*64, gs.PixelFormat(snap.Ctx.ZBUF.PSM()))

	// Clip the batch bounding box against the scissor. Vertices are 12.4;
	// the box is in whole pixels, inclusive.
	sx0, sy0, sx1, sy1 := snap.ScissorBounds()
	bx0, by0, bx1, by1 := vertexBBox(b.Verts)
	dc.x0, dc.y0 = max(sx0, bx0), max(sy0, by0)
	dc.x1, dc.y1 = min(sx1, bx1), min(sy1, by1)
	if dc.x0 > dc.x1 || dc.y0 > dc.y1 {
		return nil
	}

	if snap.Prim.TME() {
		tex0 := snap.Ctx.TEX0
		dc.tex = r.tc.Lookup(gs.TexKey{
			Base:   tex0.TBP0(),
			Stride: int(tex0.TBW()) * 64,
			Format: gs.PixelFormat(tex0.PSM()),
			W:      1 << tex0.TW(),
			H:      1 << tex0.TH(),
			TEXA:   snap.TEXA,
		})
	}

	dc.bounds.FBLo, dc.bounds.FBHi = dc.fb.Rect(dc.x1+1, dc.y1+1)
	if snap.Ctx.TEST.ZTE() && !snap.Ctx.ZBUF.ZMSK() {
		dc.bounds.ZBLo, dc.bounds.ZBHi = dc.zb.Rect(dc.x1+1, dc.y1+1)
	}
	return dc
}

// vertexBBox returns the inclusive pixel bounding box of 12.4 vertices.
func vertexBBox(verts []gs.Vertex) (x0, y0, x1, y1 int) {
	x0, y0 = int(verts[0].X), int(verts[0].Y)
	x1, y1 = x0, y0
	for _, v := range verts[1:] {
		x0, y0 = min(x0, int(v.X)), min(y0, int(v.Y))
		x1, y1 = max(x1, int(v.X)), max(y1, int(v.Y))
	}
	return x0 >> 4, y0 >> 4, x1 >> 4, y1 >> 4
}

// drawContext is the immutable per-draw state shared by all workers.
type drawContext struct {
	snap  *gs.DrawState
	verts []gs.Vertex
	kick  int

	fb, zb gs.View
	tex    *gs.Texture

	x0, y0, x1, y1 int // inclusive clipped pixel box
	bounds         Bounds
}

// owns reports whether worker wid of n renders scanline y.
func (dc *drawContext) owns(y, wid, n int) bool {
	return n <= 1 || (y/bandHeight)%n == wid
}

// run walks the batch, rasterizing only the scanlines owned by worker wid.
func (dc *drawContext) run(wid, n int, rowHook func(int, int)) {
	rz := rowRenderer{dc: dc, wid: wid, n: n, hook: rowHook}
	for i := 0; i+dc.kick <= len(dc.verts); i += dc.kick {
		v := dc.verts[i : i+dc.kick]
		switch dc.snap.Prim.Type() {
		case gs.PrimPoint:
			rz.point(v[0])
		case gs.PrimLine, gs.PrimLineStrip:
			rz.line(v[0], v[1])
		case gs.PrimSprite:
			rz.sprite(v[0], v[1])
		default:
			rz.triangle(v[0], v[1], v[2])
		}
	}
}

// rowRenderer binds a drawContext to one worker's band ownership.
type rowRenderer struct {
	dc   *drawContext
	wid  int
	n    int
	hook func(wid, y int)
}

func (rz *rowRenderer) ownsRow(y int) bool {
	if !rz.dc.owns(y, rz.wid, rz.n) {
		return false
	}
	if rz.hook != nil {
		rz.hook(rz.wid, y)
	}
	return true
}
