package render

import (
	"gsynth/emu/log"
	"gsynth/gs"
	"gsynth/gs/rast"
)

// Software rasterizes every batch itself and keeps local memory exact, so
// readbacks and savestates always see the true pixel state.
type Software struct {
	base
	rz *rast.Rasterizer
}

func newSoftware(b base) *Software {
	r := &Software{base: b}
	r.rz = rast.New(r.vram, r.tc, rast.Config{Workers: r.opts.Workers})

	r.state.SetFlushHandler(r.flush)
	r.state.SetVRAMWriteHandler(r.tc.Invalidate)
	if r.opts.AutoFlush {
		r.state.SetHazardCheck(r.texReadsTarget)
	}
	return r
}

func (r *Software) CreateDevice(dev gs.Device) error {
	return r.createDevice(dev)
}

func (r *Software) Transfer(path int, data []byte) {
	r.requireDevice("transfer")
	r.state.Transfer(path, data)
}

func (r *Software) VSync(field int) *Frame {
	r.requireDevice("vsync")
	r.state.Flush()

	f := r.endField(field)
	if err := r.dev.Present(f.Pix, f.W, f.H); err != nil {
		log.ModGS.ErrorZ("present failed").Error("err", err).End()
	}
	return f
}

func (r *Software) Reset() {
	r.state.Flush()
	r.reset()
}

func (r *Software) Close() error {
	err := r.rz.Close()
	if r.dev != nil {
		r.dev.Destroy()
	}
	return err
}

// flush hands the pending batch to the rasterizer and invalidates cached
// texture decodes covering the dirtied memory.
func (r *Software) flush() {
	b := r.state.CurrentBatch()
	bounds := r.rz.Draw(b)
	if bounds.Empty() {
		return
	}
	if bounds.FBHi > bounds.FBLo {
		r.tc.Invalidate(bounds.FBLo, bounds.FBHi)
	}
	if bounds.ZBHi > bounds.ZBLo {
		r.tc.Invalidate(bounds.ZBLo, bounds.ZBHi)
	}
}

// texReadsTarget reports whether the snapshot's texture window overlaps its
// own render target, the read-after-write case that needs a flush per
// primitive to stay correct.
func (r *Software) texReadsTarget(snap *gs.DrawState) bool {
	if !snap.Prim.TME() {
		return false
	}
	tex0 := snap.Ctx.TEX0
	tv := r.vram.View(tex0.TBP0(), int(tex0.TBW())*64, gs.PixelFormat(tex0.PSM()))
	texLo, texHi := tv.Rect(1<<tex0.TW(), 1<<tex0.TH())

	_, _, x1, y1 := snap.ScissorBounds()
	fv := r.vram.View(snap.Ctx.FRAME.FBP(), int(snap.Ctx.FRAME.FBW())*64, gs.PixelFormat(snap.Ctx.FRAME.PSM()))
	fbLo, fbHi := fv.Rect(x1+1, y1+1)

	return texLo < fbHi && fbLo < texHi
}
