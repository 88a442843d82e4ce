package mediaref

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// PreparePhoto re-encodes an oversized reference photo so the model
// prompt stays small: anything larger than maxDim on its longest edge is
// scaled down and re-encoded as JPEG. References that cannot be parsed
// or decoded are passed through unchanged; the model provider gets to
// reject them.
func PreparePhoto(photoRef string, maxDim int) string {
	ref, err := Parse(photoRef)
	if err != nil {
		return photoRef
	}

	img, _, err := image.Decode(bytes.NewReader(ref.Data))
	if err != nil {
		return photoRef
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxDim && bounds.Dy() <= maxDim {
		return photoRef
	}

	scaled, err := scaleToFit(img, maxDim)
	if err != nil {
		return photoRef
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 90}); err != nil {
		return photoRef
	}

	return Format("image/jpeg", buf.Bytes())
}

func scaleToFit(img image.Image, maxDim int) (image.Image, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var dstW, dstH int
	if w >= h {
		dstW = maxDim
		dstH = h * maxDim / w
	} else {
		dstH = maxDim
		dstW = w * maxDim / h
	}
	if dstW < 1 || dstH < 1 {
		return nil, fmt.Errorf("degenerate image dimensions %dx%d", w, h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst, nil
}
