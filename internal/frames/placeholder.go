package frames

import (
	"bytes"
	"image/png"
	"sync"

	"github.com/fogleman/gg"
)

const (
	placeholderWidth  = 640
	placeholderHeight = 360
)

var (
	placeholderOnce  sync.Once
	placeholderBytes []byte
)

// DefaultPlaceholder renders the stock "frame unavailable" card used
// when no placeholder is injected through the extractor config.
func DefaultPlaceholder() []byte {
	placeholderOnce.Do(func() {
		placeholderBytes = renderPlaceholder()
	})
	return placeholderBytes
}

func renderPlaceholder() []byte {
	dc := gg.NewContext(placeholderWidth, placeholderHeight)

	dc.SetRGB(0.15, 0.15, 0.18)
	dc.Clear()

	dc.SetRGB(0.45, 0.45, 0.5)
	dc.SetLineWidth(2)
	dc.DrawRectangle(8, 8, placeholderWidth-16, placeholderHeight-16)
	dc.Stroke()

	dc.SetRGB(0.7, 0.7, 0.75)
	dc.DrawStringAnchored("frame unavailable", placeholderWidth/2, placeholderHeight/2, 0.5, 0.5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		// Cannot fail for an in-memory RGBA image; keep the signature simple.
		return nil
	}
	return buf.Bytes()
}
