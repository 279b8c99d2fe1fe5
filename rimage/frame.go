package rimage

import (
	"image"

	"github.com/disintegration/imaging"
)

// Frame is one capture from a scene backend. Exactly the planes of the requested modality are set.
type Frame struct {
	RGB       *image.NRGBA
	Disparity *DisparityMap
}

// FlipH mirrors every plane of the frame horizontally.
func (f *Frame) FlipH() *Frame {
	out := &Frame{}
	if f.RGB != nil {
		out.RGB = imaging.FlipH(f.RGB)
	}
	if f.Disparity != nil {
		out.Disparity = f.Disparity.FlipH()
	}
	return out
}

// ResizeRGB scales the RGB plane by factor. The disparity plane is never resized since
// interpolating inverse depth corrupts the metric values.
func (f *Frame) ResizeRGB(factor float64) *Frame {
	if f.RGB == nil || factor == 1 {
		return f
	}
	b := f.RGB.Bounds()
	width := int(float64(b.Dx()) * factor)
	height := int(float64(b.Dy()) * factor)
	return &Frame{
		RGB:       imaging.Resize(f.RGB, width, height, imaging.Linear),
		Disparity: f.Disparity,
	}
}
