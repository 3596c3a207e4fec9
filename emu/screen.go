package emu

import (
	"encoding/binary"
	"image"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"gsynth/gs/render"
)

// Screenshot converts the last merged frame into an image. A nil return
// means no frame has been presented yet.
func (e *Emulator) Screenshot() *image.RGBA {
	return FrameImage(e.frame)
}

// FrameImage copies a packed RGBA frame into an image.RGBA.
func FrameImage(f *render.Frame) *image.RGBA {
	if f == nil {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, f.W, f.H))
	for i, px := range f.Pix {
		binary.LittleEndian.PutUint32(img.Pix[i*4:], px)
	}
	return img
}

// Upscale resizes img by an integer factor with nearest-neighbour sampling,
// keeping the hard pixel edges.
func Upscale(img *image.RGBA, factor int) *image.RGBA {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

func SaveAsPNG(img *image.RGBA, path string) error {
	if img == nil {
		return os.ErrInvalid
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
