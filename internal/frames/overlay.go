package frames

import (
	"image"

	"github.com/fogleman/gg"

	"github.com/dkoval/facescout/internal/analysis"
)

// DrawBox paints a normalized bounding box onto the frame, scaling the
// fractional coordinates to the frame's pixel dimensions.
func DrawBox(img image.Image, box analysis.NormalizedBox) image.Image {
	bounds := img.Bounds()
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())

	dc := gg.NewContextForImage(img)
	dc.SetRGBA(0.95, 0.25, 0.2, 1)
	dc.SetLineWidth(3)
	dc.DrawRectangle(box.XMin*w, box.YMin*h, (box.XMax-box.XMin)*w, (box.YMax-box.YMin)*h)
	dc.Stroke()

	return dc.Image()
}
