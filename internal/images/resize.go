package images

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// PadTransformer implements Transformer with pure-Go scaling. The
// output is a JPEG letterboxed onto a white canvas of the requested
// dimensions, then zero-padded to exactly maxSize bytes.
type PadTransformer struct{}

var errImageTooLarge = errors.New("image does not fit size budget at any quality")

// ResizeAndPad scales the image to fit width x height preserving
// aspect ratio, centers it on a white canvas, and encodes at the
// given quality, stepping quality down if the budget is exceeded.
func (PadTransformer) ResizeAndPad(data []byte, width, height, maxSize, quality int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	target := fitRect(src.Bounds(), width, height)
	draw.CatmullRom.Scale(canvas, target, src, src.Bounds(), draw.Over, nil)

	// The byte padding reserves a little headroom for itself.
	budget := maxSize - 16
	for q := quality; q >= 10; q -= 10 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: q}); err != nil {
			return nil, err
		}
		if buf.Len() <= budget {
			return padToSize(buf.Bytes(), maxSize), nil
		}
	}
	return nil, errImageTooLarge
}

// fitRect computes the centered rectangle that fits src into a
// width x height box without changing its aspect ratio.
func fitRect(src image.Rectangle, width, height int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw == 0 || sh == 0 {
		return image.Rect(0, 0, width, height)
	}

	w, h := width, sh*width/sw
	if h > height {
		w, h = sw*height/sh, height
	}
	x := (width - w) / 2
	y := (height - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// padToSize appends zero bytes so every cached file has an identical
// length. JPEG decoders stop at the end-of-image marker, so the tail
// is inert.
func padToSize(data []byte, size int) []byte {
	if len(data) >= size {
		return data
	}
	out := make([]byte, size)
	copy(out, data)
	return out
}
