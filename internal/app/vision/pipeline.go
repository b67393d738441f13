package vision

import (
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VideoChat/internal/core"
	"github.com/dkeye/VideoChat/internal/domain"
)

const (
	DefaultJPEGQuality = 80
	// DefaultMaxFramePixels is one 4K UHD frame.
	DefaultMaxFramePixels = 3840 * 2160
)

// Result is the outcome of a successfully processed frame.
type Result struct {
	Frame     string
	Annotated bool
}

// Pipeline decodes, annotates and re-encodes a frame.
type Pipeline struct {
	Annotator core.FrameAnnotator
	Quality   int
	// MaxPixels caps width*height of accepted frames; <= 0 disables the cap.
	MaxPixels int
}

func NewPipeline(a core.FrameAnnotator, quality int) *Pipeline {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Pipeline{Annotator: a, Quality: quality, MaxPixels: DefaultMaxFramePixels}
}

// Process returns a frame ready to relay or an error wrapping
// core.ErrFrameDecode, core.ErrAnnotation or core.ErrFrameEncode.
// Frames of sessions with no feature enabled only have their header
// checked and are then passed through byte for byte.
func (p *Pipeline) Process(ctx context.Context, dataURI string, features domain.FeatureSet) (Result, error) {
	_, raw, err := ParseDataURI(dataURI)
	if err != nil {
		return Result{}, err
	}
	if !features.Any() || p.Annotator == nil {
		if _, _, err := CheckImage(raw, p.MaxPixels); err != nil {
			return Result{}, err
		}
		return Result{Frame: dataURI}, nil
	}
	img, mt, err := DecodeImage(raw, p.MaxPixels)
	if err != nil {
		return Result{}, err
	}

	out, err := p.annotate(ctx, img, features)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", core.ErrAnnotation, err)
	}
	if out == nil {
		return Result{}, fmt.Errorf("%w: annotator returned no image", core.ErrAnnotation)
	}
	enc, err := EncodeDataURI(out, p.Quality)
	if err != nil {
		return Result{}, err
	}
	log.Debug().Str("module", "vision").Str("source", mt).Int("features", len(features.List())).Msg("frame annotated")
	return Result{Frame: enc, Annotated: true}, nil
}

type annotation struct {
	img image.Image
	err error
}

// annotate returns as soon as ctx is done, even when the annotator does not
// watch ctx. A late result is discarded.
func (p *Pipeline) annotate(ctx context.Context, img image.Image, features domain.FeatureSet) (image.Image, error) {
	done := make(chan annotation, 1)
	go func() {
		out, err := p.Annotator.Annotate(ctx, img, features)
		done <- annotation{img: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return r.img, r.err
	}
}
