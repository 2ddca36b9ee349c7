// Package j2ktier1 implements the JPEG 2000 Tier-1 entropy coding core:
// the MQ arithmetic coder, the legacy three-pass bit-plane coder, and
// the HTJ2K fast block coder, behind a single CodeBlock façade.
package j2ktier1

import (
	"fmt"

	"github.com/corecodec/j2ktier1/internal/entropy"
)

// Mode selects the legacy (EBCOT) or HT (FBCOT) coding path.
type Mode int

const (
	ModeLegacy Mode = iota
	ModeHT
)

func (m Mode) String() string {
	if m == ModeHT {
		return "ht"
	}
	return "legacy"
}

// Subband selects the neighbour-context table, per §4.3.
type Subband int

const (
	SubbandLL Subband = iota
	SubbandHL
	SubbandLH
	SubbandHH
)

// TerminationMode controls MQ flush granularity at pass boundaries.
type TerminationMode int

const (
	TermEasy TerminationMode = iota
	TermPredictable
	TermPerPass
)

// Options configures a single encode/decode call. The same Options
// value used at encode must be replayed bit-identically at decode;
// per §4.6 these are never embedded in the coded segment itself.
type Options struct {
	Mode            Mode
	BypassEnabled   bool // legacy only
	BypassThreshold int  // legacy only, in [0, bitDepth]
	TerminationMode TerminationMode
	UseRLC          bool // legacy only; diagnostic disable for §4.4.3
}

// Validate checks Options against the allowed ranges, independent of
// any particular block.
func (o Options) Validate(bitDepth int) error {
	if o.Mode != ModeLegacy && o.Mode != ModeHT {
		return fmt.Errorf("%w: mode %d", ErrInvalidParameter, o.Mode)
	}
	if o.BypassThreshold < 0 || o.BypassThreshold > bitDepth {
		return fmt.Errorf("%w: bypassThreshold %d out of [0, %d]", ErrInvalidParameter, o.BypassThreshold, bitDepth)
	}
	if o.Mode == ModeHT && (o.BypassEnabled || o.UseRLC) {
		return fmt.Errorf("%w: bypassEnabled/useRLC are legacy-only options", ErrUnsupported)
	}
	return nil
}

// CodedBlock is the immutable output of Encode / input of Decode (§6).
type CodedBlock struct {
	Data              []byte
	NumPasses         int
	NumZeroBitPlanes  int
	SegmentBoundaries []int
	Mode              Mode
}

func validDimension(v int) bool {
	switch v {
	case 4, 8, 16, 32, 64:
		return true
	default:
		return false
	}
}

func validateBlock(coefficients []int32, w, h, subband, bitDepth int) error {
	if !validDimension(w) || !validDimension(h) {
		return fmt.Errorf("%w: W=%d H=%d must each be one of {4,8,16,32,64}", ErrInvalidParameter, w, h)
	}
	if w*h > 4096 {
		return fmt.Errorf("%w: W*H=%d exceeds 4096", ErrInvalidParameter, w*h)
	}
	if subband < int(SubbandLL) || subband > int(SubbandHH) {
		return fmt.Errorf("%w: subband %d out of range", ErrInvalidParameter, subband)
	}
	if bitDepth < 1 || bitDepth > 38 {
		return fmt.Errorf("%w: bitDepth %d out of [1,38]", ErrInvalidParameter, bitDepth)
	}
	if len(coefficients) != w*h {
		return fmt.Errorf("%w: len(coefficients)=%d, want W*H=%d", ErrInvalidParameter, len(coefficients), w*h)
	}
	return nil
}

func toEntropyTermination(t TerminationMode) entropy.TerminationMode {
	switch t {
	case TermPredictable:
		return entropy.TermPredictable
	case TermPerPass:
		return entropy.TermPerPass
	default:
		return entropy.TermEasy
	}
}

// Encode drives the configured coder over a w*h block of coefficients
// for the given subband and bit depth, returning the coded segment and
// its pass/boundary metadata (§4.6).
func Encode(coefficients []int32, w, h, subband, bitDepth int, options Options) (CodedBlock, error) {
	if err := validateBlock(coefficients, w, h, subband, bitDepth); err != nil {
		return CodedBlock{}, err
	}
	if err := options.Validate(bitDepth); err != nil {
		return CodedBlock{}, err
	}

	switch options.Mode {
	case ModeHT:
		res := entropy.EncodeHT(coefficients, w, h, subband, bitDepth, entropy.HTOptions{})
		return CodedBlock{
			Data:              res.Data,
			NumPasses:         res.NumPasses,
			NumZeroBitPlanes:  res.NumZeroBitPlanes,
			SegmentBoundaries: []int{res.SplitOffset, res.VLCOffset},
			Mode:              ModeHT,
		}, nil
	default:
		res := entropy.EncodeLegacy(coefficients, w, h, subband, bitDepth, entropy.LegacyOptions{
			BypassEnabled:   options.BypassEnabled,
			BypassThreshold: options.BypassThreshold,
			TerminationMode: toEntropyTermination(options.TerminationMode),
			UseRLC:          options.UseRLC,
		})
		return CodedBlock{
			Data:              res.Data,
			NumPasses:         res.NumPasses,
			NumZeroBitPlanes:  res.NumZeroBitPlanes,
			SegmentBoundaries: res.SegmentBoundaries,
			Mode:              ModeLegacy,
		}, nil
	}
}

// Decode reverses Encode. A truncated cb.Data is not an error (§7):
// missing bits are treated as zero and whatever coefficients were
// already decided are returned.
func Decode(cb CodedBlock, w, h, subband, bitDepth int, options Options) ([]int32, error) {
	if !validDimension(w) || !validDimension(h) || w*h > 4096 {
		return nil, fmt.Errorf("%w: W=%d H=%d invalid", ErrInvalidParameter, w, h)
	}
	if err := options.Validate(bitDepth); err != nil {
		return nil, err
	}
	if cb.Mode != options.Mode {
		return nil, fmt.Errorf("%w: coded block mode %s does not match options mode %s", ErrInvalidParameter, cb.Mode, options.Mode)
	}

	switch options.Mode {
	case ModeHT:
		splitOffset, vlcOffset := 0, 0
		if len(cb.SegmentBoundaries) > 0 {
			splitOffset = cb.SegmentBoundaries[0]
		}
		if len(cb.SegmentBoundaries) > 1 {
			vlcOffset = cb.SegmentBoundaries[1]
		}
		return entropy.DecodeHT(cb.Data, w, h, subband, bitDepth, cb.NumZeroBitPlanes, splitOffset, vlcOffset, entropy.HTOptions{}), nil
	default:
		return entropy.DecodeLegacy(cb.Data, w, h, subband, bitDepth, cb.NumZeroBitPlanes, cb.SegmentBoundaries, entropy.LegacyOptions{
			BypassEnabled:   options.BypassEnabled,
			BypassThreshold: options.BypassThreshold,
			TerminationMode: toEntropyTermination(options.TerminationMode),
			UseRLC:          options.UseRLC,
		}), nil
	}
}
