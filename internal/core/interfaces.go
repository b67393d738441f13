//go:generate go run go.uber.org/mock/mockgen -source=interfaces.go -destination=../mocks/mock_core.go -package=mocks
package core

import (
	"context"
	"image"

	"github.com/dkeye/VideoChat/internal/domain"
)

// Frame is a serialized outbound event ready to be written to the wire.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend must never block.
	TrySend(Frame) error
	Close()
}

// FrameAnnotator draws overlays for the enabled features onto img.
// Implementations hold no per-session state.
type FrameAnnotator interface {
	Annotate(ctx context.Context, img image.Image, features domain.FeatureSet) (image.Image, error)
}

// RoomInfo is a read-only view for APIs.
type RoomInfo struct {
	ID    domain.RoomID `json:"id"`
	Users int           `json:"users"`
}
