package entropy

import "math/bits"

// TerminationMode controls how aggressively the MQ coder is flushed at
// pass boundaries (§4.2, §4.6).
type TerminationMode int

const (
	// TermEasy emits the shortest valid termination; only the very end
	// of the block is an independently decodable boundary.
	TermEasy TerminationMode = iota
	// TermPredictable strengthens that single final termination so the
	// coder's state at the boundary does not depend on prior history.
	TermPredictable
	// TermPerPass terminates after every single pass, recording a
	// restart point in segmentBoundaries for each one.
	TermPerPass
)

// LegacyOptions configures the three-pass bit-plane coder.
type LegacyOptions struct {
	BypassEnabled   bool
	BypassThreshold int
	TerminationMode TerminationMode
	UseRLC          bool
}

// LegacyResult is what EncodeLegacy hands back to the CodeBlock
// façade for packaging into a CodedBlock record.
type LegacyResult struct {
	Data              []byte
	NumPasses         int
	NumZeroBitPlanes  int
	SegmentBoundaries []int
}

func scanOrder(w, h int) [][2]int {
	order := make([][2]int, 0, w*h)
	for y0 := 0; y0 < h; y0 += 4 {
		stripeH := 4
		if y0+stripeH > h {
			stripeH = h - y0
		}
		for x := 0; x < w; x++ {
			for r := 0; r < stripeH; r++ {
				order = append(order, [2]int{x, y0 + r})
			}
		}
	}
	return order
}

func signBit(negative bool) int {
	if negative {
		return 1
	}
	return 0
}

// EncodeLegacy drives the three-pass bit-plane coder (§4.4) over a w*h
// block of coefficients, using MQ coding throughout except where
// options.BypassEnabled selects raw MagRef coding for low bit-planes.
func EncodeLegacy(coeffs []int32, w, h, bandType, bitDepth int, opts LegacyOptions) LegacyResult {
	n := w * h
	abs := make([]uint32, n)
	signs := make([]bool, n)
	var maxAbs uint32
	for i, c := range coeffs {
		if c < 0 {
			signs[i] = true
			abs[i] = uint32(-c)
		} else {
			abs[i] = uint32(c)
		}
		if abs[i] > maxAbs {
			maxAbs = abs[i]
		}
	}

	activeBitPlanes := 0
	if maxAbs > 0 {
		activeBitPlanes = bits.Len32(maxAbs)
	}

	idx := func(x, y int) int { return y*w + x }
	order := scanOrder(w, h)
	ctxModel := GetContextModel(w, h, bandType)
	defer PutContextModel(ctxModel)

	var out []byte
	var boundaries []int
	mq := NewMQEncoder()
	numPasses := 0

	flushSeg := func(predictable bool) {
		var seg []byte
		if predictable {
			seg = mq.FlushPredictable()
		} else {
			seg = mq.Flush()
		}
		out = append(out, seg...)
		boundaries = append(boundaries, len(out))
		mq = NewMQEncoder()
	}

	afterPass := func() {
		numPasses++
		if opts.TerminationMode == TermPerPass {
			flushSeg(true)
		}
	}

	sigPropPass := func(bp int) {
		for _, p := range order {
			x, y := p[0], p[1]
			i := idx(x, y)
			if ctxModel.Significant(x, y) {
				continue
			}
			sigCtx := ctxModel.SignificanceContext(x, y)
			if sigCtx == 0 {
				continue
			}
			bit := int((abs[i] >> uint(bp)) & 1)
			mq.Encode(sigCtx, bit)
			if bit == 1 {
				ctxModel.SetSignificant(x, y, signs[i])
				sc, xorBit := ctxModel.SignContext(x, y)
				mq.Encode(sc, signBit(signs[i])^xorBit)
			}
			ctxModel.SetVisited(x, y)
		}
		afterPass()
	}

	magRefPass := func(bp int) {
		isBypass := opts.BypassEnabled && bp < opts.BypassThreshold
		if isBypass {
			flushSeg(true)
			raw := NewRawEncoder()
			for _, p := range order {
				x, y := p[0], p[1]
				if !ctxModel.Significant(x, y) || ctxModel.Visited(x, y) {
					continue
				}
				bit := int((abs[idx(x, y)] >> uint(bp)) & 1)
				raw.EncodeBit(bit)
				ctxModel.ClearFirstRefinement(x, y)
				ctxModel.SetVisited(x, y)
			}
			out = append(out, raw.Flush()...)
			boundaries = append(boundaries, len(out))
			mq = NewMQEncoder()
		} else {
			for _, p := range order {
				x, y := p[0], p[1]
				if !ctxModel.Significant(x, y) || ctxModel.Visited(x, y) {
					continue
				}
				mrCtx := ctxModel.MagnitudeRefinementContext(x, y)
				bit := int((abs[idx(x, y)] >> uint(bp)) & 1)
				mq.Encode(mrCtx, bit)
				ctxModel.ClearFirstRefinement(x, y)
				ctxModel.SetVisited(x, y)
			}
		}
		afterPass()
	}

	codeNormal := func(bp int, x, y int) {
		i := idx(x, y)
		bit := int((abs[i] >> uint(bp)) & 1)
		mq.Encode(ctxModel.SignificanceContext(x, y), bit)
		if bit == 1 {
			ctxModel.SetSignificant(x, y, signs[i])
			sc, xorBit := ctxModel.SignContext(x, y)
			mq.Encode(sc, signBit(signs[i])^xorBit)
		}
		ctxModel.SetCodedThisPass(x, y)
	}

	cleanupPass := func(bp int) {
		ctxModel.NewCleanupPass()
		for y0 := 0; y0 < h; y0 += 4 {
			stripeH := 4
			if y0+stripeH > h {
				stripeH = h - y0
			}
			for x := 0; x < w; x++ {
				eligible := opts.UseRLC && stripeH == 4
				if eligible {
					for r := 0; r < 4; r++ {
						y := y0 + r
						if ctxModel.Significant(x, y) || ctxModel.Visited(x, y) || ctxModel.SignificanceContext(x, y) != 0 {
							eligible = false
							break
						}
					}
				}
				if eligible {
					any := 0
					firstPos := -1
					for r := 0; r < 4; r++ {
						y := y0 + r
						bit := int((abs[idx(x, y)] >> uint(bp)) & 1)
						if bit == 1 {
							any = 1
							if firstPos == -1 {
								firstPos = r
							}
						}
					}
					mq.Encode(ctxModel.RunLengthContext(), any)
					if any == 0 {
						for r := 0; r < 4; r++ {
							ctxModel.SetCodedThisPass(x, y0+r)
						}
						continue
					}
					mq.Encode(ctxModel.UniformContext(), (firstPos>>1)&1)
					mq.Encode(ctxModel.UniformContext(), firstPos&1)
					for r := 0; r < firstPos; r++ {
						ctxModel.SetCodedThisPass(x, y0+r)
					}
					for r := firstPos; r < 4; r++ {
						y := y0 + r
						i := idx(x, y)
						if ctxModel.CodedThisPass(x, y) {
							continue
						}
						if ctxModel.Significant(x, y) || ctxModel.Visited(x, y) {
							ctxModel.SetCodedThisPass(x, y)
							continue
						}
						if r == firstPos {
							ctxModel.SetSignificant(x, y, signs[i])
							sc, xorBit := ctxModel.SignContext(x, y)
							mq.Encode(sc, signBit(signs[i])^xorBit)
							ctxModel.SetCodedThisPass(x, y)
						} else {
							codeNormal(bp, x, y)
						}
					}
				} else {
					for r := 0; r < stripeH; r++ {
						y := y0 + r
						if ctxModel.CodedThisPass(x, y) {
							continue
						}
						if ctxModel.Significant(x, y) || ctxModel.Visited(x, y) {
							ctxModel.SetCodedThisPass(x, y)
							continue
						}
						codeNormal(bp, x, y)
					}
				}
			}
		}
		afterPass()
	}

	for bp := activeBitPlanes - 1; bp >= 0; bp-- {
		ctxModel.NewBitPlane()
		if bp != activeBitPlanes-1 {
			sigPropPass(bp)
			magRefPass(bp)
		}
		cleanupPass(bp)
	}

	// TermPerPass already terminated and recorded a boundary for the
	// final pass via afterPass; flushing again here would append a
	// spurious trailing segment with no data in it.
	if opts.TerminationMode != TermPerPass {
		flushSeg(opts.TerminationMode != TermEasy)
	}

	return LegacyResult{
		Data:              out,
		NumPasses:         numPasses,
		NumZeroBitPlanes:  bitDepth - activeBitPlanes,
		SegmentBoundaries: boundaries,
	}
}

// setMagnitudeBit ORs bit bp into the magnitude of coeffs[i], preserving
// whatever sign has already been recorded (or applying negative if this is
// the bit that carries the coefficient to significance).
func setMagnitudeBit(coeffs []int32, i, bp int, negative bool) {
	mag := coeffs[i]
	if mag < 0 {
		mag = -mag
	}
	mag |= 1 << uint(bp)
	if negative {
		coeffs[i] = -mag
	} else {
		coeffs[i] = mag
	}
}

// DecodeLegacy reverses EncodeLegacy, replaying the identical
// (bitPlane, pass) schedule so that significance_context, sign_context,
// run-length eligibility and the bypass predicate are computed from
// identical per-coefficient state on both sides (§4.4.4). A truncated
// data slice is not an error: missing bits are treated as zero and
// whatever coefficients were already decided are returned (§4.4.5).
func DecodeLegacy(data []byte, w, h, bandType, bitDepth, numZeroBitPlanes int, segmentBoundaries []int, opts LegacyOptions) []int32 {
	n := w * h
	coeffs := make([]int32, n)
	activeBitPlanes := bitDepth - numZeroBitPlanes
	if activeBitPlanes <= 0 {
		return coeffs
	}

	idx := func(x, y int) int { return y*w + x }
	order := scanOrder(w, h)
	ctxModel := GetContextModel(w, h, bandType)
	defer PutContextModel(ctxModel)

	clamp := func(b int) int {
		if b > len(data) {
			return len(data)
		}
		if b < 0 {
			return 0
		}
		return b
	}

	// Independent segments never need their end pre-computed: a coder
	// reads only as many bits as the mirrored encode side wrote for that
	// segment (sync by construction, §4.4.4), and termination padding
	// makes any further bytes it happens to peek at irrelevant. Boundary
	// offsets only need to supply each new segment's start.
	segStart := 0
	bi := 0
	popBoundary := func() int {
		if bi < len(segmentBoundaries) {
			b := segmentBoundaries[bi]
			bi++
			return clamp(b)
		}
		return len(data)
	}

	var mq *MQDecoder
	newMQSegment := func() {
		start := clamp(segStart)
		mq = NewMQDecoder(data[start:])
		segStart = popBoundary()
	}
	newMQSegment()

	afterPass := func() {
		if opts.TerminationMode == TermPerPass {
			newMQSegment()
		}
	}

	sigPropPass := func(bp int) {
		for _, p := range order {
			x, y := p[0], p[1]
			if ctxModel.Significant(x, y) {
				continue
			}
			sigCtx := ctxModel.SignificanceContext(x, y)
			if sigCtx == 0 {
				continue
			}
			bit := mq.Decode(sigCtx)
			if bit == 1 {
				sc, xorBit := ctxModel.SignContext(x, y)
				coded := mq.Decode(sc)
				neg := (coded ^ xorBit) == 1
				ctxModel.SetSignificant(x, y, neg)
				setMagnitudeBit(coeffs, idx(x, y), bp, neg)
			}
			ctxModel.SetVisited(x, y)
		}
		afterPass()
	}

	magRefPass := func(bp int) {
		isBypass := opts.BypassEnabled && bp < opts.BypassThreshold
		if isBypass {
			start := clamp(segStart)
			raw := NewRawDecoder(data[start:])
			segStart = popBoundary()
			for _, p := range order {
				x, y := p[0], p[1]
				if !ctxModel.Significant(x, y) || ctxModel.Visited(x, y) {
					continue
				}
				bit := raw.DecodeBit()
				if bit == 1 {
					setMagnitudeBit(coeffs, idx(x, y), bp, ctxModel.Negative(x, y))
				}
				ctxModel.ClearFirstRefinement(x, y)
				ctxModel.SetVisited(x, y)
			}
			newMQSegment()
		} else {
			for _, p := range order {
				x, y := p[0], p[1]
				if !ctxModel.Significant(x, y) || ctxModel.Visited(x, y) {
					continue
				}
				mrCtx := ctxModel.MagnitudeRefinementContext(x, y)
				bit := mq.Decode(mrCtx)
				if bit == 1 {
					setMagnitudeBit(coeffs, idx(x, y), bp, ctxModel.Negative(x, y))
				}
				ctxModel.ClearFirstRefinement(x, y)
				ctxModel.SetVisited(x, y)
			}
		}
		afterPass()
	}

	decodeNormal := func(bp, x, y int) {
		sigCtx := ctxModel.SignificanceContext(x, y)
		bit := mq.Decode(sigCtx)
		if bit == 1 {
			sc, xorBit := ctxModel.SignContext(x, y)
			coded := mq.Decode(sc)
			neg := (coded ^ xorBit) == 1
			ctxModel.SetSignificant(x, y, neg)
			setMagnitudeBit(coeffs, idx(x, y), bp, neg)
		}
		ctxModel.SetCodedThisPass(x, y)
	}

	cleanupPass := func(bp int) {
		ctxModel.NewCleanupPass()
		for y0 := 0; y0 < h; y0 += 4 {
			stripeH := 4
			if y0+stripeH > h {
				stripeH = h - y0
			}
			for x := 0; x < w; x++ {
				eligible := opts.UseRLC && stripeH == 4
				if eligible {
					for r := 0; r < 4; r++ {
						y := y0 + r
						if ctxModel.Significant(x, y) || ctxModel.Visited(x, y) || ctxModel.SignificanceContext(x, y) != 0 {
							eligible = false
							break
						}
					}
				}
				if eligible {
					any := mq.Decode(ctxModel.RunLengthContext())
					if any == 0 {
						for r := 0; r < 4; r++ {
							ctxModel.SetCodedThisPass(x, y0+r)
						}
						continue
					}
					posHi := mq.Decode(ctxModel.UniformContext())
					posLo := mq.Decode(ctxModel.UniformContext())
					firstPos := (posHi << 1) | posLo
					for r := 0; r < firstPos; r++ {
						ctxModel.SetCodedThisPass(x, y0+r)
					}
					for r := firstPos; r < 4; r++ {
						y := y0 + r
						if ctxModel.CodedThisPass(x, y) {
							continue
						}
						if ctxModel.Significant(x, y) || ctxModel.Visited(x, y) {
							ctxModel.SetCodedThisPass(x, y)
							continue
						}
						if r == firstPos {
							sc, xorBit := ctxModel.SignContext(x, y)
							coded := mq.Decode(sc)
							neg := (coded ^ xorBit) == 1
							ctxModel.SetSignificant(x, y, neg)
							setMagnitudeBit(coeffs, idx(x, y), bp, neg)
							ctxModel.SetCodedThisPass(x, y)
						} else {
							decodeNormal(bp, x, y)
						}
					}
				} else {
					for r := 0; r < stripeH; r++ {
						y := y0 + r
						if ctxModel.CodedThisPass(x, y) {
							continue
						}
						if ctxModel.Significant(x, y) || ctxModel.Visited(x, y) {
							ctxModel.SetCodedThisPass(x, y)
							continue
						}
						decodeNormal(bp, x, y)
					}
				}
			}
		}
		afterPass()
	}

	for bp := activeBitPlanes - 1; bp >= 0; bp-- {
		ctxModel.NewBitPlane()
		if bp != activeBitPlanes-1 {
			sigPropPass(bp)
			magRefPass(bp)
		}
		cleanupPass(bp)
	}

	return coeffs
}
