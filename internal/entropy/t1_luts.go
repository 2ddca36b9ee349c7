// Package entropy - t1_luts.go contains pre-computed lookup tables for T1 coding.
//
// These lookup tables provide O(1) context calculation instead of conditional branches.
// Generated from the JPEG2000 specification context rules.
package entropy

// lutZCCtx is the zero-coding context lookup table.
// Indexed by: bandType*256 + packed neighbor flags
// Packed neighbor flags bit layout:
//   bit 0: W significant    bit 4: NW significant
//   bit 1: E significant    bit 5: NE significant
//   bit 2: N significant    bit 6: SW significant
//   bit 3: S significant    bit 7: SE significant
//
// Returns context 0-8 for ZC coding; the context is nonzero exactly when
// at least one neighbour is significant.
// Band types: 0=LL, 1=HL, 2=LH, 3=HH. LL/LH follow the standard's
// Table D-1 and HL swaps its h/v roles; the HH table ranks the
// horizontal+vertical count ahead of the diagonal count, which is not
// the standard's diagonal-first HH numbering.
var lutZCCtx [4 * 256]uint8

// lutSCCtx is the sign-coding context lookup table.
// Indexed by: (hContrib+2)*5 + (vContrib+2)
// where hContrib and vContrib are in range [-2, 2].
// Returns: (ctx << 1) | prediction
var lutSCCtx [25]uint8

func init() {
	// Generate ZC context LUT for all 4 band types
	// BandLL=0, BandHL=1, BandLH=2, BandHH=3
	for bandType := 0; bandType < 4; bandType++ {
		for packed := 0; packed < 256; packed++ {
			// Unpack neighbor flags
			w := (packed >> 0) & 1
			e := (packed >> 1) & 1
			n := (packed >> 2) & 1
			s := (packed >> 3) & 1
			nw := (packed >> 4) & 1
			ne := (packed >> 5) & 1
			sw := (packed >> 6) & 1
			se := (packed >> 7) & 1

			h := w + e              // horizontal count
			v := n + s              // vertical count
			d := nw + ne + sw + se  // diagonal count

			var ctx int
			switch bandType {
			case BandHL: // HL band - swap h and v
				h, v = v, h
				fallthrough
			case BandLL, BandLH: // LL/LH bands use same rules
				if h == 2 {
					ctx = 8
				} else if h == 1 {
					if v >= 1 {
						ctx = 7
					} else if d >= 1 {
						ctx = 6
					} else {
						ctx = 5
					}
				} else if v == 2 {
					ctx = 4
				} else if v == 1 {
					ctx = 3
				} else if d >= 2 {
					ctx = 2
				} else if d == 1 {
					ctx = 1
				} else {
					ctx = 0
				}
			case BandHH: // HH band
				hv := h + v
				if hv >= 3 {
					ctx = 8
				} else if hv == 2 {
					if d >= 2 {
						ctx = 7
					} else if d >= 1 {
						ctx = 6
					} else {
						ctx = 5
					}
				} else if hv == 1 {
					if d >= 2 {
						ctx = 4
					} else {
						ctx = 3
					}
				} else {
					if d >= 2 {
						ctx = 2
					} else if d >= 1 {
						ctx = 1
					} else {
						ctx = 0
					}
				}
			}
			lutZCCtx[bandType*256+packed] = uint8(ctx)
		}
	}

	// Generate SC context LUT
	// hContrib and vContrib range from -2 to 2
	for hc := -2; hc <= 2; hc++ {
		for vc := -2; vc <= 2; vc++ {
			idx := (hc+2)*5 + (vc + 2)

			h := hc
			v := vc
			pred := 0
			if h < 0 {
				pred = 1
				h = -h
			}
			if h == 0 && v < 0 {
				pred = 1
				v = -v
			}

			var ctx int
			if h == 1 {
				if v == 1 {
					ctx = CtxSC4
				} else if v == 0 {
					ctx = CtxSC2
				} else {
					ctx = CtxSC1
				}
			} else if h == 0 {
				if v >= 1 {
					ctx = CtxSC1
				} else if v == 0 {
					ctx = CtxSC0
				}
			} else if h == 2 {
				ctx = CtxSC3
			}

			lutSCCtx[idx] = uint8((ctx << 1) | pred)
		}
	}
}

// getZCContextFast returns ZC context using packed flags and LUT.
// This is an inline-friendly version for hot paths.
func getZCContextFast(packed uint8, bandType int) int {
	return int(lutZCCtx[bandType*256+int(packed)])
}

// getSCContextFast returns SC context and prediction from contribution values.
func getSCContextFast(hContrib, vContrib int) (ctx int, pred int) {
	// Clamp to valid range
	if hContrib < -2 {
		hContrib = -2
	} else if hContrib > 2 {
		hContrib = 2
	}
	if vContrib < -2 {
		vContrib = -2
	} else if vContrib > 2 {
		vContrib = 2
	}

	idx := (hContrib+2)*5 + (vContrib + 2)
	v := lutSCCtx[idx]
	return int(v >> 1), int(v & 1)
}
