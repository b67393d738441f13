package core

import "errors"

var (
	ErrUnknownSession   = errors.New("unknown session")
	ErrDuplicateSession = errors.New("duplicate session")
	ErrFrameDecode      = errors.New("frame decode")
	ErrFrameEncode      = errors.New("frame encode")
	ErrAnnotation       = errors.New("annotation failure")
	ErrBackpressure     = errors.New("backpressure")
	ErrConnClosed       = errors.New("connection closed")
)
