// Package render hosts the renderer implementations sitting between the
// register-stream state tracker and a display device. The software renderer
// produces every pixel itself; the hardware renderer forwards batches to a
// GPU device and keeps only the state tracking local.
package render

import (
	"time"

	"github.com/go-faster/errors"

	"gsynth/emu/log"
	"gsynth/gs"
	"gsynth/gs/vector"
)

// Kind selects a renderer implementation.
type Kind int

const (
	KindSoftware Kind = iota
	KindHardware
)

func (k Kind) String() string {
	if k == KindHardware {
		return "hardware"
	}
	return "software"
}

// Phase is the renderer lifecycle. Transfers and vsyncs are only legal once
// a device exists; issuing them earlier is a programming error and panics.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseDeviceCreated
	PhaseActive
)

// Options tunes a renderer at creation time.
type Options struct {
	// Workers is the software rasterizer pool size; 0 rasterizes inline.
	Workers int
	// AutoFlush drains the primitive queue whenever a primitive's texture
	// reads alias its own render target.
	AutoFlush bool
	// Width, Height size the output frame (and device backbuffer).
	Width, Height int
}

// Frame is one merged output picture in packed RGBA32.
type Frame struct {
	Pix  []uint32
	W, H int
}

// Renderer is the shared contract of both paths.
type Renderer interface {
	// CreateDevice binds the display device. Must be called exactly once,
	// before any Transfer or VSync.
	CreateDevice(dev gs.Device) error
	// ReleaseDevice destroys the bound device and returns the renderer to
	// the uninitialized phase, keeping all chip state. A later CreateDevice
	// resumes where the stream left off.
	ReleaseDevice()
	// Transfer feeds GIF data to one of the three paths.
	Transfer(path int, data []byte)
	// VSync ends the current field: flushes pending work, updates CSR and
	// returns the merged output frame.
	VSync(field int) *Frame
	// Reset restores power-on state, keeping the device.
	Reset()
	// SoftReset clears the transfer paths given by mask.
	SoftReset(mask uint32)
	// ReadFIFO drains local→host transfer data.
	ReadFIFO(buf []byte) int
	// SetGameCRC hints the running title for per-game workarounds.
	SetGameCRC(crc uint32)
	// Freeze snapshots the full chip state after draining pending work.
	Freeze() []byte
	// Defrost restores a Freeze blob, validating it before touching state.
	Defrost(blob []byte) error

	State() *gs.State
	Priv() gs.Priv
	FPS() float64
	Close() error
}

// New builds a renderer of the given kind over the supplied privileged
// register memory.
func New(kind Kind, priv gs.Priv, opts Options) Renderer {
	if opts.Width <= 0 {
		opts.Width = 640
	}
	if opts.Height <= 0 {
		opts.Height = 448
	}
	vector.Init()

	vram := gs.NewVRAM()
	b := base{
		kind:  kind,
		vram:  vram,
		state: gs.NewState(vram),
		priv:  priv,
		tc:    gs.NewTexCache(vram, 0),
		kern:  vector.Batch(),
		opts:  opts,
	}
	b.frame = Frame{Pix: make([]uint32, opts.Width*opts.Height), W: opts.Width, H: opts.Height}

	if kind == KindHardware {
		return newHardware(b)
	}
	return newSoftware(b)
}

// base carries everything both renderer kinds share.
type base struct {
	kind  Kind
	vram  *gs.VRAM
	state *gs.State
	priv  gs.Priv
	tc    *gs.TexCache
	dev   gs.Device
	phase Phase
	opts  Options
	crc   uint32

	kern  vector.Kernel
	frame Frame
	field int

	frames   uint64
	fpsCount uint64
	fpsMark  time.Time
	fps      float64
}

func (b *base) State() *gs.State { return b.state }
func (b *base) Priv() gs.Priv    { return b.priv }
func (b *base) FPS() float64     { return b.fps }

func (b *base) createDevice(dev gs.Device) error {
	if b.phase != PhaseUninitialized {
		return errors.New("device already created")
	}
	if err := dev.Create(b.opts.Width, b.opts.Height); err != nil {
		return errors.Wrap(err, "device create")
	}
	b.dev = dev
	b.phase = PhaseDeviceCreated
	b.fpsMark = time.Now()
	log.ModGS.InfoZ("device bound").
		String("renderer", b.kind.String()).
		String("device", dev.Capabilities().Name).
		End()
	return nil
}

func (b *base) ReleaseDevice() {
	if b.dev != nil {
		b.dev.Destroy()
		b.dev = nil
	}
	b.phase = PhaseUninitialized
}

// requireDevice moves the renderer to the active phase, panicking when the
// caller skipped CreateDevice.
func (b *base) requireDevice(op string) {
	switch b.phase {
	case PhaseUninitialized:
		log.ModGS.PanicZ("operation before device creation").String("op", op).End()
	case PhaseDeviceCreated:
		b.phase = PhaseActive
	}
}

func (b *base) SetGameCRC(crc uint32) {
	b.crc = crc
	log.ModGS.InfoZ("game crc set").Hex32("crc", crc).End()
}

func (b *base) ReadFIFO(buf []byte) int {
	b.requireDevice("readfifo")
	b.state.Flush()
	return b.state.ReadFIFO(buf)
}

func (b *base) SoftReset(mask uint32) {
	b.state.SoftReset(mask)
}

func (b *base) reset() {
	b.state.Reset()
	b.tc.Clear()
}

func (b *base) Freeze() []byte {
	b.state.Flush()
	return b.state.Freeze(b.priv)
}

func (b *base) Defrost(blob []byte) error {
	if err := b.state.Defrost(b.priv, blob); err != nil {
		return err
	}
	b.tc.Clear()
	return nil
}

// endField is the common VSync tail: CSR bookkeeping, output merge and the
// frame rate estimate.
func (b *base) endField(field int) *Frame {
	b.field = field & 1
	if b.state.FinishRequested() {
		b.priv.SetFinish()
	}
	b.priv.VSyncCSR()
	b.mergeOutput()

	b.frames++
	b.fpsCount++
	if since := time.Since(b.fpsMark); since >= time.Second {
		b.fps = float64(b.fpsCount) / since.Seconds()
		b.fpsCount = 0
		b.fpsMark = time.Now()
	}
	return &b.frame
}

// mergeOutput composes the two read circuits into the output frame the way
// PMODE prescribes: disabled circuits drop out, SLBG swaps circuit 2 for
// the background color, MMOD blends by the fixed ALP factor.
func (b *base) mergeOutput() {
	pm := b.priv.PMODE()
	bg := b.priv.BGCOLOR()
	bgPix := uint32(bg.R()) | uint32(bg.G())<<8 | uint32(bg.B())<<16 | 0xff<<24

	if !pm.EN1() && !pm.EN2() {
		b.kern.Fill(b.frame.Pix, bgPix)
		return
	}

	c1 := b.readCircuit(1, pm.EN1(), bgPix)
	c2 := b.readCircuit(2, pm.EN2() && !pm.SLBG(), bgPix)

	switch {
	case pm.EN1() && (pm.EN2() || pm.SLBG()) && pm.MMOD():
		// out = (c1 - c2) * ALP >> 7 + c2, per channel.
		alp := make([]uint32, len(b.frame.Pix))
		b.kern.Fill(alp, uint32(pm.ALP())|uint32(pm.ALP())<<8|uint32(pm.ALP())<<16|uint32(pm.ALP())<<24)
		b.kern.Blend7(b.frame.Pix, c1, c2, alp, c2)
	case pm.EN1():
		copy(b.frame.Pix, c1)
	default:
		copy(b.frame.Pix, c2)
	}
}

// readCircuit decodes one DISPFB region into an RGBA frame-sized buffer.
func (b *base) readCircuit(circuit int, enabled bool, bgPix uint32) []uint32 {
	out := make([]uint32, len(b.frame.Pix))
	if !enabled {
		b.kern.Fill(out, bgPix)
		return out
	}

	fb := b.priv.DISPFB(circuit)
	v := b.vram.View(fb.FBP(), int(fb.FBW())*64, gs.PixelFormat(fb.PSM()))

	// In interlaced field mode each vsync shows one field: weave the
	// current field's lines so alternate frames sample alternate lines.
	sm := b.priv.SMODE2()
	weave := sm.INT() && !sm.FFMD()
	for y := range b.frame.H {
		srcY := y
		if weave {
			srcY = y&^1 | b.field
		}
		for x := range b.frame.W {
			out[y*b.frame.W+x] = expandDisplayPixel(v.Pixel(x+fb.DBX(), srcY+fb.DBY()), gs.PixelFormat(fb.PSM()))
		}
	}
	return out
}

// expandDisplayPixel widens a stored pixel to RGBA32 for display; unlike
// texture reads there is no TEXA, alpha becomes opaque.
func expandDisplayPixel(px uint32, f gs.PixelFormat) uint32 {
	switch f {
	case gs.PSMCT16, gs.PSMCT16S:
		return px&0x1f<<3 | px>>5&0x1f<<11 | px>>10&0x1f<<19 | 0xff<<24
	default:
		return px&0xffffff | 0xff<<24
	}
}
