package emu

import (
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"

	"gsynth/emu/log"
	"gsynth/gs"
	"gsynth/gs/render"
	"gsynth/gsdump"
)

// Emulator replays a recorded register stream through a renderer and pushes
// the resulting frames to the display device.
type Emulator struct {
	GS *GS

	dev gs.Device
	hdr gsdump.Header
	evs []gsdump.Event
	pos int

	// These are accessed concurrently by the replay loop and the UI.
	quit   atomic.Bool
	paused atomic.Bool
	reset  atomic.Bool

	loopDump bool
	frameDur time.Duration
	frame    *render.Frame
	tmpdir   string
}

type poller interface {
	Poll() (quit bool)
}

// Launch opens the renderer over the device and primes it with the dump's
// initial state. It doesn't start replaying, call Run() for that.
func Launch(d *gsdump.Reader, dev gs.Device, cfg Config) (*Emulator, error) {
	var evs []gsdump.Event
	for {
		ev, err := d.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "dump read")
		}
		evs = append(evs, ev)
	}

	kind := render.KindSoftware
	if cfg.Render.Renderer == "hw" {
		kind = render.KindHardware
	}

	handle := &GS{Opts: render.Options{AutoFlush: cfg.Render.AutoFlush}}
	handle.Init()
	if handle.Open(dev, kind, cfg.Render.ExtraThreads, nil) != 0 {
		return nil, errors.New("renderer open failed")
	}
	handle.SetGameCRC(d.Header().CRC)

	e := &Emulator{
		GS:       handle,
		dev:      dev,
		hdr:      d.Header(),
		evs:      evs,
		loopDump: true,
	}
	if cfg.Emulation.FrameCap > 0 {
		e.frameDur = time.Second / time.Duration(cfg.Emulation.FrameCap)
	}
	if err := e.rewind(); err != nil {
		handle.Shutdown()
		return nil, err
	}

	log.ModEmu.InfoZ("dump loaded").
		Hex32("crc", d.Header().CRC).
		Int("events", len(evs)).
		String("renderer", kind.String()).
		End()
	return e, nil
}

// rewind restores the dump's initial chip state and rewinds the event
// cursor, so replay starts from the first recorded frame again.
func (e *Emulator) rewind() error {
	fd := &FreezeData{Data: e.hdr.Freeze}
	if e.GS.Freeze(FreezeLoad, fd) != 0 {
		return errors.New("initial state load failed")
	}
	copy(e.GS.Renderer().Priv().Mem(), e.hdr.Priv)
	e.pos = 0
	return nil
}

// RunOneFrame replays events up to and including the next vsync. It returns
// false when the dump is exhausted before a vsync is reached.
func (e *Emulator) RunOneFrame() bool {
	for e.pos < len(e.evs) {
		ev := e.evs[e.pos]
		e.pos++

		switch ev.Kind {
		case gsdump.EvTransfer:
			e.GS.Transfer(ev.Path, ev.Data)
		case gsdump.EvVSync:
			e.frame = e.GS.VSync(ev.Field)
			return true
		case gsdump.EvReadFIFO:
			buf := make([]byte, ev.Size)
			e.GS.InitReadFIFO()
			e.GS.ReadFIFO(buf)
		case gsdump.EvPrivWrite:
			copy(e.GS.Renderer().Priv().Mem(), ev.Data)
		}
	}
	return false
}

func (e *Emulator) loop() {
	next := time.Now()
	for {
		if p, ok := e.dev.(poller); ok && p.Poll() {
			break
		}
		if e.frameDur > 0 {
			if d := time.Until(next); d > 0 {
				time.Sleep(d)
			}
			next = next.Add(e.frameDur)
		}
		if e.isPaused() {
			// Don't burn cpu while paused.
			time.Sleep(100 * time.Millisecond)
		} else if !e.RunOneFrame() {
			if !e.loopDump {
				break
			}
			if err := e.rewind(); err != nil {
				log.ModEmu.ErrorZ("dump rewind failed").Error("err", err).End()
				break
			}
		}
		if e.shouldStop() {
			break
		}
		e.handleReset()
	}
}

func (e *Emulator) Run() {
	e.loop()
	log.ModEmu.InfoZ("replay loop exited").
		String("fps", fmt.Sprintf("%.1f", e.GS.Renderer().FPS())).
		End()

	if e.tmpdir != "" {
		e.save()
	}
	e.GS.Shutdown()
}

func (e *Emulator) save() {
	fd := &FreezeData{}
	e.GS.Freeze(FreezeSize, fd)
	fd.Data = make([]byte, fd.Size)
	if e.GS.Freeze(FreezeSave, fd) != 0 {
		log.ModEmu.WarnZ("Failed to save state").End()
		return
	}
	fmt.Printf("save state: %d bytes\n", fd.Size)

	path := filepath.Join(e.tmpdir, "screenshot.png")
	if err := SaveAsPNG(e.Screenshot(), path); err != nil {
		log.ModEmu.WarnZ("Failed to save screenshot").String("path", path).End()
	}
}

func (e *Emulator) SetTempDir(path string) { e.tmpdir = path }
func (e *Emulator) SetLoopDump(loop bool)  { e.loopDump = loop }
func (e *Emulator) Frame() *render.Frame   { return e.frame }

// SetPause, Stop and Reset control the replay loop in a concurrent-safe way.

func (e *Emulator) SetPause(pause bool) { e.paused.CompareAndSwap(!pause, pause) }
func (e *Emulator) Reset()              { e.reset.Store(true) }
func (e *Emulator) Stop()               { e.quit.Store(true) }

func (e *Emulator) isPaused() bool   { return e.paused.Load() }
func (e *Emulator) shouldStop() bool { return e.quit.Load() }

func (e *Emulator) handleReset() {
	if e.reset.CompareAndSwap(true, false) {
		log.ModEmu.InfoZ("Performing reset and rewind").End()
		e.GS.Reset()
		if err := e.rewind(); err != nil {
			log.ModEmu.ErrorZ("dump rewind failed").Error("err", err).End()
			e.quit.Store(true)
		}
	}
}
