//go:build tools
// +build tools

// Package tools declares tool dependencies for this module so that
// `go generate` (mockgen) works on a fresh checkout.
package videochat

import (
	_ "go.uber.org/mock/mockgen"
)
