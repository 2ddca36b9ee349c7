package j2ktier1

import "errors"

// Sentinel errors for the two public-boundary failure classes from the
// error taxonomy: truncated input is explicitly not an error (§7) and
// is never represented here.
var (
	// ErrInvalidParameter reports W, H, bitDepth, or option values
	// outside their allowed ranges.
	ErrInvalidParameter = errors.New("j2ktier1: invalid parameter")
	// ErrUnsupported reports a requested mode/option combination the
	// build does not implement.
	ErrUnsupported = errors.New("j2ktier1: unsupported option combination")
)
