// Package texture moves pixel data between image files and the raw RGBA
// layout the SMF texture chunk embeds.
package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/Faultbox/smf-go/pkg/scene"
	"github.com/Faultbox/smf-go/pkg/smf"
)

// Load reads an image file (PNG, JPEG, TGA or BMP) into the flat RGBA
// pixel block the texture chunk stores. The image name is the file's base
// name without extension. Codecs are selected by extension rather than
// image.Decode sniffing: TGA has no magic bytes, and its decoder
// registration claims every input once imported.
func Load(path string) (*scene.Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("texture: read %s: %w", path, err)
	}

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		img, err = png.Decode(bytes.NewReader(raw))
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(bytes.NewReader(raw))
	case ".tga":
		img, err = tga.Decode(bytes.NewReader(raw))
	case ".bmp":
		img, err = bmp.Decode(bytes.NewReader(raw))
	default:
		return nil, fmt.Errorf("texture: unsupported image extension in %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("texture: decode %s: %w", path, err)
	}

	n := toNRGBA(img)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &scene.Image{
		Name:   name,
		Width:  n.Bounds().Dx(),
		Height: n.Bounds().Dy(),
		Pixels: n.Pix,
	}, nil
}

// ToImage lifts an embedded texture back into a decodable image.
func ToImage(t *smf.Texture) (*image.NRGBA, error) {
	w, h := int(t.Width), int(t.Height)
	if len(t.Pixels) != w*h*4 {
		return nil, fmt.Errorf("texture: %q has %d pixel bytes for %dx%d",
			t.Name, len(t.Pixels), w, h)
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, t.Pixels)
	return img, nil
}

// ScaleToPOT resizes an image up to the next power-of-two on each axis.
// Power-of-two images pass through untouched.
func ScaleToPOT(img *image.NRGBA) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	pw, ph := nextPowerOfTwo(w), nextPowerOfTwo(h)
	if pw == w && ph == h {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, pw, ph))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Write saves an image, choosing the codec from the file extension.
func Write(path string, img image.Image) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webp":
		return WriteWebP(path, img)
	case ".png":
		return WritePNG(path, img)
	default:
		return fmt.Errorf("texture: unsupported output extension in %s", path)
	}
}

// WriteWebP saves an image as lossless WebP.
func WriteWebP(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("texture: create %s: %w", path, err)
	}
	defer f.Close()
	if err := nativewebp.Encode(f, img, nil); err != nil {
		return fmt.Errorf("texture: WebP encode %s: %w", path, err)
	}
	return nil
}

// WritePNG saves an image as PNG.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("texture: create %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("texture: PNG encode %s: %w", path, err)
	}
	return nil
}

// toNRGBA converts any decoded image to NRGBA.
func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
