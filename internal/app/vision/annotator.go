package vision

import (
	"context"
	"image"
	"image/color"
	"image/draw"

	"github.com/dkeye/VideoChat/internal/domain"
)

var featureColors = map[domain.Feature]color.RGBA{
	domain.FaceDetection: {R: 0xff, A: 0xff},
	domain.HandTracking:  {G: 0xff, A: 0xff},
	domain.PoseDetection: {B: 0xff, A: 0xff},
}

// Overlay is the built-in annotator. It does not run any detection model;
// it marks each enabled feature with a coloured band along the top edge so
// receivers can see which overlays the sender requested. Real detectors
// plug in behind core.FrameAnnotator.
type Overlay struct {
	// BandHeight in pixels; defaults to 1/16 of the image height.
	BandHeight int
}

func (o Overlay) Annotate(ctx context.Context, img image.Image, features domain.FeatureSet) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	enabled := features.List()
	if len(enabled) == 0 {
		return img, nil
	}

	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)

	h := o.BandHeight
	if h <= 0 {
		h = max(b.Dy()/16, 1)
	}
	w := b.Dx() / len(enabled)
	for i, f := range enabled {
		x0 := b.Min.X + i*w
		x1 := x0 + w
		if i == len(enabled)-1 {
			x1 = b.Max.X
		}
		band := image.Rect(x0, b.Min.Y, x1, min(b.Min.Y+h, b.Max.Y))
		draw.Draw(out, band, image.NewUniform(featureColors[f]), image.Point{}, draw.Src)
	}
	return out, nil
}
