package render

import (
	"gsynth/emu/log"
	"gsynth/gs"
)

// Hardware tracks register state and local memory exactly like the software
// path but forwards primitive batches to the device instead of rasterizing
// them. Local memory therefore holds uploads and moves, not draw results;
// savestates and readbacks reflect that.
type Hardware struct {
	base
	texIDs map[gs.TexKey]gs.TextureID
}

func newHardware(b base) *Hardware {
	r := &Hardware{base: b, texIDs: make(map[gs.TexKey]gs.TextureID)}
	r.state.SetFlushHandler(r.flush)
	r.state.SetVRAMWriteHandler(r.invalidate)
	return r
}

func (r *Hardware) CreateDevice(dev gs.Device) error {
	return r.createDevice(dev)
}

func (r *Hardware) Transfer(path int, data []byte) {
	r.requireDevice("transfer")
	r.state.Transfer(path, data)
}

func (r *Hardware) VSync(field int) *Frame {
	r.requireDevice("vsync")
	r.state.Flush()

	f := r.endField(field)
	if err := r.dev.Present(f.Pix, f.W, f.H); err != nil {
		log.ModGS.ErrorZ("present failed").Error("err", err).End()
	}
	return f
}

func (r *Hardware) Reset() {
	r.state.Flush()
	r.reset()
	r.texIDs = make(map[gs.TexKey]gs.TextureID)
}

func (r *Hardware) Close() error {
	if r.dev != nil {
		r.dev.Destroy()
	}
	return nil
}

// flush uploads the batch's texture (when any) and hands the primitives to
// the device.
func (r *Hardware) flush() {
	b := r.state.CurrentBatch()
	if len(b.Verts) == 0 {
		return
	}

	var id gs.TextureID
	if b.Snapshot.Prim.TME() {
		tex0 := b.Snapshot.Ctx.TEX0
		key := gs.TexKey{
			Base:   tex0.TBP0(),
			Stride: int(tex0.TBW()) * 64,
			Format: gs.PixelFormat(tex0.PSM()),
			W:      1 << tex0.TW(),
			H:      1 << tex0.TH(),
			TEXA:   b.Snapshot.TEXA,
		}
		tex := r.tc.Lookup(key)

		var ok bool
		if id, ok = r.texIDs[key]; !ok {
			var err error
			if id, err = r.dev.CreateTexture(key.W, key.H); err != nil {
				log.ModGS.ErrorZ("texture create failed").Error("err", err).End()
				return
			}
			r.texIDs[key] = id
		}
		if err := r.dev.UpdateTexture(id, tex.Pix, key.W, key.H); err != nil {
			log.ModGS.ErrorZ("texture upload failed").Error("err", err).End()
			return
		}
	}

	if err := r.dev.DrawBatch(b, id); err != nil {
		log.ModGS.ErrorZ("draw failed").Error("err", err).End()
	}
}

// invalidate drops decoded and device textures covering a dirtied range.
func (r *Hardware) invalidate(lo, hi int) {
	r.tc.Invalidate(lo, hi)
	// Device texture ids stay; the next flush re-uploads from the fresh
	// decode under the same id.
}
