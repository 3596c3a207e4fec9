package gs

import "gsynth/emu/log"

// TextureID names a device-resident texture.
type TextureID uint32

// Capabilities describes what a backing device can do; renderers consult it
// before choosing upload strategies.
type Capabilities struct {
	Name           string
	MaxTextureSize int
	NPOT           bool // non-power-of-two textures
}

// Device is the backend a renderer draws through: a GPU context for the
// hardware path, a window-less stub for tests and headless runs. Create is
// called exactly once before any other method; Destroy ends the lifecycle.
type Device interface {
	Create(width, height int) error
	CreateTexture(w, h int) (TextureID, error)
	UpdateTexture(id TextureID, pix []uint32, w, h int) error
	DrawBatch(b *Batch, tex TextureID) error
	Present(frame []uint32, w, h int) error
	Capabilities() Capabilities
	Destroy()
}

// NullDevice accepts every call and renders nothing. It stands in when no
// display is wanted (replay verification, benchmarks) and backs the
// hardware renderer's unit tests.
type NullDevice struct {
	created   bool
	nextTex   TextureID
	Draws     int // DrawBatch calls accepted
	Presents  int // Present calls accepted
}

func (d *NullDevice) Create(width, height int) error {
	d.created = true
	log.ModDev.InfoZ("null device created").Int("w", width).Int("h", height).End()
	return nil
}

func (d *NullDevice) CreateTexture(w, h int) (TextureID, error) {
	d.nextTex++
	return d.nextTex, nil
}

func (d *NullDevice) UpdateTexture(id TextureID, pix []uint32, w, h int) error {
	return nil
}

func (d *NullDevice) DrawBatch(b *Batch, tex TextureID) error {
	d.Draws++
	return nil
}

func (d *NullDevice) Present(frame []uint32, w, h int) error {
	d.Presents++
	return nil
}

func (d *NullDevice) Capabilities() Capabilities {
	return Capabilities{Name: "null", MaxTextureSize: 1 << 14, NPOT: true}
}

func (d *NullDevice) Destroy() {
	d.created = false
}
