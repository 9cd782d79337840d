package output

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// ToRGBA converts one raw preview frame. Supported formats are I420, NV12,
// YUY2 and RGBA.
func ToRGBA(data []byte, format string, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("bad frame size %dx%d", width, height)
	}
	rect := image.Rect(0, 0, width, height)
	cw, ch := (width+1)/2, (height+1)/2

	switch format {
	case "RGBA":
		if len(data) < width*height*4 {
			return nil, fmt.Errorf("short RGBA frame: %d bytes", len(data))
		}
		dst := image.NewRGBA(rect)
		copy(dst.Pix, data)
		return dst, nil

	case "I420":
		ysz, csz := width*height, cw*ch
		if len(data) < ysz+2*csz {
			return nil, fmt.Errorf("short I420 frame: %d bytes", len(data))
		}
		src := &image.YCbCr{
			Y:              data[:ysz],
			Cb:             data[ysz : ysz+csz],
			Cr:             data[ysz+csz : ysz+2*csz],
			YStride:        width,
			CStride:        cw,
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           rect,
		}
		return toRGBA(src), nil

	case "NV12":
		ysz, csz := width*height, cw*ch
		if len(data) < ysz+2*csz {
			return nil, fmt.Errorf("short NV12 frame: %d bytes", len(data))
		}
		cb, cr := make([]byte, csz), make([]byte, csz)
		uv := data[ysz:]
		for i := 0; i < csz; i++ {
			cb[i], cr[i] = uv[2*i], uv[2*i+1]
		}
		src := &image.YCbCr{
			Y:              data[:ysz],
			Cb:             cb,
			Cr:             cr,
			YStride:        width,
			CStride:        cw,
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           rect,
		}
		return toRGBA(src), nil

	case "YUY2":
		if width%2 != 0 || len(data) < width*height*2 {
			return nil, fmt.Errorf("bad YUY2 frame: %dx%d in %d bytes", width, height, len(data))
		}
		src := image.NewYCbCr(rect, image.YCbCrSubsampleRatio422)
		for y := 0; y < height; y++ {
			row := data[y*width*2:]
			for x := 0; x < width; x += 2 {
				i := x * 2
				src.Y[y*src.YStride+x] = row[i]
				src.Y[y*src.YStride+x+1] = row[i+2]
				c := y*src.CStride + x/2
				src.Cb[c] = row[i+1]
				src.Cr[c] = row[i+3]
			}
		}
		return toRGBA(src), nil

	default:
		return nil, fmt.Errorf("unsupported pixel format %q", format)
	}
}

func toRGBA(src image.Image) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

// Fit scales src into a width x height canvas, keeping the aspect ratio and
// centering it on black
func Fit(src *image.RGBA, width, height int) *image.RGBA {
	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return src
	}

	scale := float64(width) / float64(b.Dx())
	if s := float64(height) / float64(b.Dy()); s < scale {
		scale = s
	}
	dw, dh := int(float64(b.Dx())*scale), int(float64(b.Dy())*scale)
	ox, oy := (width-dw)/2, (height-dh)/2

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(dst, image.Rect(ox, oy, ox+dw, oy+dh), src, b, draw.Src, nil)
	return dst
}
