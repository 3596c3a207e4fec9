package render

import (
	"bytes"
	"encoding/binary"
	"testing"

	"gsynth/gs"
)

// Packet-building helpers: A+D quadwords inside a PACKED tag.

func qw(pkt []byte, lo, hi uint64) []byte {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:], lo)
	binary.LittleEndian.PutUint64(b[8:], hi)
	return append(pkt, b[:]...)
}

func adTag(pkt []byte, nloop uint32) []byte {
	lo := uint64(nloop&0x7fff) | 1<<15 | 1<<60 // NREG=1, EOP
	return qw(pkt, lo, 0x0e)                   // descriptor: A+D
}

func ad(pkt []byte, addr uint8, val uint64) []byte {
	return qw(pkt, val, uint64(addr))
}

func xyz(x, y int, z uint32) uint64 {
	return uint64(uint16(x)) | uint64(uint16(y))<<16 | uint64(z)<<32
}

const openScissor = 0x3f<<16 | 0x3f<<48 // pixels [0,63] both axes

func newSW(t *testing.T, opts Options) (Renderer, *gs.NullDevice) {
	t.Helper()
	r := New(KindSoftware, gs.NewPriv(nil), opts)
	dev := &gs.NullDevice{}
	if err := r.CreateDevice(dev); err != nil {
		t.Fatalf("create device: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r, dev
}

func TestTransferBeforeDevicePanics(t *testing.T) {
	r := New(KindSoftware, gs.NewPriv(nil), Options{Width: 8, Height: 8})
	defer r.Close()
	defer func() {
		if recover() == nil {
			t.Error("transfer without a device did not panic")
		}
	}()
	r.Transfer(0, make([]byte, 16))
}

func TestCreateDeviceTwice(t *testing.T) {
	r, _ := newSW(t, Options{Width: 8, Height: 8})
	if err := r.CreateDevice(&gs.NullDevice{}); err == nil {
		t.Error("second CreateDevice accepted")
	}
}

func TestSoftwareDrawAndMerge(t *testing.T) {
	r, dev := newSW(t, Options{Width: 8, Height: 8, Workers: 2})

	priv := r.Priv()
	priv.SetReg(0x0000, 1)    // PMODE: EN1
	priv.SetReg(0x0070, 1<<9) // DISPFB1: base 0, FBW=1 (64px)

	var pkt []byte
	pkt = adTag(pkt, 5)
	pkt = ad(pkt, 0x40, openScissor) // SCISSOR_1
	pkt = ad(pkt, 0x00, uint64(gs.PrimSprite))
	pkt = ad(pkt, 0x01, 0xff112233) // RGBAQ
	pkt = ad(pkt, 0x05, xyz(0, 0, 1))
	pkt = ad(pkt, 0x05, xyz(4<<4, 4<<4, 1))
	r.Transfer(2, pkt)

	f := r.VSync(0)
	if f.W != 8 || f.H != 8 {
		t.Fatalf("frame is %dx%d", f.W, f.H)
	}
	if got := f.Pix[0]; got != 0xff112233 {
		t.Errorf("frame (0,0) = %#x, want 0xff112233", got)
	}
	if got := f.Pix[3*8+3]; got != 0xff112233 {
		t.Errorf("frame (3,3) = %#x, want 0xff112233", got)
	}
	if got := f.Pix[5*8+5]; got != 0xff000000 {
		t.Errorf("frame (5,5) = %#x, want opaque black", got)
	}
	if dev.Presents != 1 {
		t.Errorf("device saw %d presents, want 1", dev.Presents)
	}

	// CSR: the FIELD bit toggles every vsync, VSINT latches.
	if priv.Field() != 1 {
		t.Error("FIELD did not toggle")
	}
	r.VSync(1)
	if priv.Field() != 0 {
		t.Error("FIELD did not toggle back")
	}
}

func TestResetThenDefaultDraw(t *testing.T) {
	r, _ := newSW(t, Options{Width: 8, Height: 8})

	var pkt []byte
	pkt = adTag(pkt, 3)
	pkt = ad(pkt, 0x40, openScissor)
	pkt = ad(pkt, 0x00, uint64(gs.PrimPoint))
	pkt = ad(pkt, 0x05, xyz(2<<4, 2<<4, 0))
	r.Transfer(2, pkt)
	r.VSync(0)

	r.Reset()
	vram := r.State().VRAM()
	if !bytes.Equal(vram.Data(), make([]byte, gs.VRAMSize)) {
		t.Fatal("reset left local memory dirty")
	}

	// Power-on scissor is a single pixel at the origin; a default-state
	// point draw must still land there.
	var pkt2 []byte
	pkt2 = adTag(pkt2, 3)
	pkt2 = ad(pkt2, 0x00, uint64(gs.PrimPoint))
	pkt2 = ad(pkt2, 0x01, 0x0000007f) // red 0x7f
	pkt2 = ad(pkt2, 0x05, xyz(0, 0, 0))
	r.Transfer(2, pkt2)
	r.VSync(0)

	fb := vram.View(0, 64, gs.PSMCT32)
	if got := fb.Pixel(0, 0) & 0xff; got != 0x7f {
		t.Errorf("post-reset draw = %#x, want 0x7f", got)
	}
}

// feedbackPacket draws two decal points where the second samples the pixel
// the first just wrote. TEX0 aliases the framebuffer.
func feedbackPacket() []byte {
	tex0 := uint64(1)<<14 | 1<<26 | 1<<30 | 1<<35 // TBW=1, 2x2, TFX=DECAL
	prim := uint64(gs.PrimPoint) | 1<<4 | 1<<8    // TME, FST

	var pkt []byte
	pkt = adTag(pkt, 7)
	pkt = ad(pkt, 0x40, openScissor)
	pkt = ad(pkt, 0x06, tex0) // TEX0_1
	pkt = ad(pkt, 0x00, prim)
	pkt = ad(pkt, 0x03, 24|24<<16) // UV: texel (1,1)
	pkt = ad(pkt, 0x05, xyz(0, 0, 0))
	pkt = ad(pkt, 0x03, 8|8<<16) // UV: texel (0,0)
	pkt = ad(pkt, 0x05, xyz(1<<4, 0, 0))
	return pkt
}

func TestAutoFlushReadAfterWrite(t *testing.T) {
	for _, tc := range []struct {
		name      string
		autoFlush bool
		want      uint32
	}{
		{"enabled sees fresh write", true, 0xff},
		{"disabled samples stale decode", false, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newSW(t, Options{Width: 8, Height: 8, AutoFlush: tc.autoFlush})

			// Seed the texel the first point copies from.
			vram := r.State().VRAM()
			fb := vram.View(0, 64, gs.PSMCT32)
			fb.SetPixel(1, 1, 0xff, 0xffffffff)

			r.Transfer(2, feedbackPacket())
			r.VSync(0)

			if got := fb.Pixel(1, 0) & 0xff; got != tc.want {
				t.Errorf("feedback pixel = %#x, want %#x", got, tc.want)
			}
		})
	}
}

func TestHardwareForwardsBatches(t *testing.T) {
	r := New(KindHardware, gs.NewPriv(nil), Options{Width: 8, Height: 8})
	dev := &gs.NullDevice{}
	if err := r.CreateDevice(dev); err != nil {
		t.Fatalf("create device: %v", err)
	}
	defer r.Close()

	var pkt []byte
	pkt = adTag(pkt, 5)
	pkt = ad(pkt, 0x40, openScissor)
	pkt = ad(pkt, 0x00, uint64(gs.PrimTriangle))
	pkt = ad(pkt, 0x05, xyz(0, 0, 0))
	pkt = ad(pkt, 0x05, xyz(8<<4, 0, 0))
	pkt = ad(pkt, 0x05, xyz(0, 8<<4, 0))
	r.Transfer(2, pkt)
	r.VSync(0)

	if dev.Draws != 1 {
		t.Errorf("device saw %d batches, want 1", dev.Draws)
	}
	if dev.Presents != 1 {
		t.Errorf("device saw %d presents, want 1", dev.Presents)
	}

	// The hardware path must not rasterize into local memory.
	fb := r.State().VRAM().View(0, 64, gs.PSMCT32)
	if got := fb.Pixel(1, 1); got != 0 {
		t.Errorf("hardware path wrote %#x to local memory", got)
	}
}

func TestRendererFreezeRoundTrip(t *testing.T) {
	r, _ := newSW(t, Options{Width: 8, Height: 8})

	var pkt []byte
	pkt = adTag(pkt, 4)
	pkt = ad(pkt, 0x40, openScissor)
	pkt = ad(pkt, 0x00, uint64(gs.PrimPoint))
	pkt = ad(pkt, 0x01, 0x11)
	pkt = ad(pkt, 0x05, xyz(3<<4, 3<<4, 0))
	r.Transfer(2, pkt)
	r.VSync(0)

	blob := r.Freeze()
	if len(blob) != gs.FreezeSize() {
		t.Fatalf("freeze blob is %d bytes, want %d", len(blob), gs.FreezeSize())
	}

	// Scribble over the state, then restore.
	var junk []byte
	junk = adTag(junk, 2)
	junk = ad(junk, 0x3d, 0x998877) // FOGCOL
	junk = ad(junk, 0x01, 0xffffffff)
	r.Transfer(2, junk)

	if err := r.Defrost(blob); err != nil {
		t.Fatalf("defrost: %v", err)
	}
	if !bytes.Equal(blob, r.Freeze()) {
		t.Error("freeze after defrost is not bit-identical")
	}
	if got := r.State().Reg(0x3d); got != 0 {
		t.Errorf("FOGCOL = %#x after defrost, want 0", got)
	}
}
