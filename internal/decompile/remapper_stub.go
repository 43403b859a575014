//go:build !cgo

package decompile

import "context"

// Remapper rewrites decompiled Java source from original to current names.
// This is a stub implementation when CGO is not available.
type Remapper struct{}

// NewRemapper creates a source remapper
func NewRemapper() *Remapper {
	return &Remapper{}
}

// Available reports whether source remapping is supported in this build.
// Returns false when CGO is not available.
func Available() bool {
	return false
}

// Remap returns source unchanged when CGO is not available
func (r *Remapper) Remap(ctx context.Context, source string, names *Names) (string, error) {
	return source, ctx.Err()
}
