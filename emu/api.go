package emu

import (
	"gsynth/emu/log"
	"gsynth/gs"
	"gsynth/gs/render"
	"gsynth/gs/vector"
)

// Freeze modes, in host call order.
const (
	FreezeLoad = iota
	FreezeSave
	FreezeSize
)

// FreezeData carries a savestate blob across the boundary. On a FreezeSize
// call only Size is filled; the host then allocates Data and calls back.
type FreezeData struct {
	Size int
	Data []byte
}

// GS is the explicit boundary handle the host drives. All calls return 0 on
// success and a negative code on failure; nothing recoverable panics across
// this layer. The handle survives Close/Open cycles so chip state persists
// while the display device is rebuilt.
type GS struct {
	// Opts seeds renderer options at Open. The threads argument of Open
	// overrides Workers.
	Opts render.Options

	rend   render.Renderer
	kind   render.Kind
	inited bool
	open   bool
}

// Init prepares process-wide tables. Idempotent; Open requires it.
func (g *GS) Init() int {
	if g.inited {
		return 0
	}
	vector.Init()
	g.inited = true
	return 0
}

// Shutdown tears the whole handle down, renderer included. Idempotent.
func (g *GS) Shutdown() {
	if g.rend != nil {
		if err := g.rend.Close(); err != nil {
			log.ModEmu.ErrorZ("renderer close failed").Error("err", err).End()
		}
		g.rend = nil
	}
	g.open = false
	g.inited = false
}

// Open binds a display device and starts (or resumes) a renderer of the
// given kind. regsMem is the host's mapping of the privileged register
// block; nil gets a private one. On failure the handle is left clean for a
// retry with different arguments.
func (g *GS) Open(dev gs.Device, kind render.Kind, threads int, regsMem []byte) int {
	if !g.inited || g.open {
		return -1
	}

	if g.rend == nil || g.kind != kind {
		if g.rend != nil {
			g.rend.Close()
		}
		opts := g.Opts
		opts.Workers = threads
		g.rend = render.New(kind, gs.NewPriv(regsMem), opts)
		g.kind = kind
	}

	if err := g.rend.CreateDevice(dev); err != nil {
		log.ModEmu.ErrorZ("device creation failed").Error("err", err).End()
		return -1
	}
	g.open = true
	return 0
}

// Close releases the device but keeps the renderer, so a later Open resumes
// the register stream where it stopped.
func (g *GS) Close() {
	if !g.open {
		return
	}
	g.rend.ReleaseDevice()
	g.open = false
}

// Renderer exposes the underlying renderer to in-process hosts.
func (g *GS) Renderer() render.Renderer { return g.rend }

func (g *GS) Reset() int {
	if !g.open {
		return -1
	}
	g.rend.Reset()
	return 0
}

// SoftReset clears the transfer paths selected by mask (bit 0 = PATH1 ...).
func (g *GS) SoftReset(mask uint32) int {
	if !g.open {
		return -1
	}
	g.rend.SoftReset(mask)
	return 0
}

// Transfer feeds 16-byte qwords to one of the three GIF paths.
func (g *GS) Transfer(path int, data []byte) int {
	if !g.open || path < 0 || path > 2 {
		return -1
	}
	g.rend.Transfer(path, data)
	return 0
}

func (g *GS) Transfer1(data []byte) int { return g.Transfer(0, data) }
func (g *GS) Transfer2(data []byte) int { return g.Transfer(1, data) }
func (g *GS) Transfer3(data []byte) int { return g.Transfer(2, data) }

// InitReadFIFO drains pending draws so the following ReadFIFO calls see
// settled pixels.
func (g *GS) InitReadFIFO() int {
	if !g.open {
		return -1
	}
	g.rend.State().Flush()
	return 0
}

// ReadFIFO copies local→host transfer data into buf, returning the byte
// count (0 once the transfer is exhausted, negative on misuse).
func (g *GS) ReadFIFO(buf []byte) int {
	if !g.open {
		return -1
	}
	return g.rend.ReadFIFO(buf)
}

// VSync ends the current field and returns the merged output frame.
func (g *GS) VSync(field int) *render.Frame {
	if !g.open {
		return nil
	}
	return g.rend.VSync(field)
}

func (g *GS) SetGameCRC(crc uint32) {
	if g.rend != nil {
		g.rend.SetGameCRC(crc)
	}
}

// Freeze implements the three-phase savestate protocol: size query, save
// into a host buffer, load from one.
func (g *GS) Freeze(mode int, fd *FreezeData) int {
	if g.rend == nil || fd == nil {
		return -1
	}
	switch mode {
	case FreezeSize:
		fd.Size = gs.FreezeSize()
		return 0
	case FreezeSave:
		blob := g.rend.Freeze()
		if len(fd.Data) < len(blob) {
			return -1
		}
		fd.Size = copy(fd.Data, blob)
		return 0
	case FreezeLoad:
		if err := g.rend.Defrost(fd.Data); err != nil {
			log.ModFreeze.ErrorZ("defrost failed").Error("err", err).End()
			return -1
		}
		return 0
	}
	return -1
}
