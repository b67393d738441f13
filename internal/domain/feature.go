package domain

import (
	"errors"
	"fmt"
)

var ErrUnknownFeature = errors.New("unknown feature")

// Feature is one of the annotation overlays a session can enable
// for its outgoing video.
type Feature uint8

const (
	FaceDetection Feature = iota
	HandTracking
	PoseDetection
	featureCount
)

var featureNames = [featureCount]string{
	FaceDetection: "face_detection",
	HandTracking:  "hand_tracking",
	PoseDetection: "pose_detection",
}

// AllFeatures lists every feature in wire order.
func AllFeatures() []Feature {
	return []Feature{FaceDetection, HandTracking, PoseDetection}
}

func ParseFeature(name string) (Feature, error) {
	for f, n := range featureNames {
		if n == name {
			return Feature(f), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
}

func (f Feature) Valid() bool { return f < featureCount }

func (f Feature) String() string {
	if !f.Valid() {
		return fmt.Sprintf("feature(%d)", uint8(f))
	}
	return featureNames[f]
}

// FeatureSet is a value-typed set of enabled features; the zero value has
// everything disabled.
type FeatureSet uint8

func (s FeatureSet) Enabled(f Feature) bool {
	return f.Valid() && s&(1<<f) != 0
}

// With returns a copy of s with f switched on or off.
func (s FeatureSet) With(f Feature, enabled bool) FeatureSet {
	if !f.Valid() {
		return s
	}
	if enabled {
		return s | 1<<f
	}
	return s &^ (1 << f)
}

func (s FeatureSet) Any() bool { return s != 0 }

// List returns the enabled features in wire order.
func (s FeatureSet) List() []Feature {
	out := make([]Feature, 0, featureCount)
	for _, f := range AllFeatures() {
		if s.Enabled(f) {
			out = append(out, f)
		}
	}
	return out
}
