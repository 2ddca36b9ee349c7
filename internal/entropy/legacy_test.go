package entropy

import (
	"math/rand"
	"testing"
)

func coeffsEqual(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func roundTripLegacy(t *testing.T, coeffs []int32, w, h, bandType, bitDepth int, opts LegacyOptions) {
	t.Helper()
	res := EncodeLegacy(coeffs, w, h, bandType, bitDepth, opts)
	got := DecodeLegacy(res.Data, w, h, bandType, bitDepth, res.NumZeroBitPlanes, res.SegmentBoundaries, opts)
	if !coeffsEqual(got, coeffs) {
		t.Fatalf("round trip mismatch\n got: %v\nwant: %v", got, coeffs)
	}
}

func TestLegacyRoundTrip_4x4Bit12Default(t *testing.T) {
	coeffs := []int32{
		1, -2, 3, 0,
		0, 5, -7, 2,
		-1, 0, 0, 9,
		4, -4, 1, -1,
	}
	roundTripLegacy(t, coeffs, 4, 4, BandLL, 12, LegacyOptions{})
}

func TestLegacyRoundTrip_8x8AllZeros(t *testing.T) {
	coeffs := make([]int32, 64)
	roundTripLegacy(t, coeffs, 8, 8, BandLH, 8, LegacyOptions{})
}

func TestLegacyRoundTrip_32x32Formula(t *testing.T) {
	coeffs := make([]int32, 32*32)
	for i := range coeffs {
		v := int32((i*37)%211) - 105
		coeffs[i] = v
	}
	roundTripLegacy(t, coeffs, 32, 32, BandHL, 12, LegacyOptions{})
}

func TestLegacyRoundTrip_32x32FormulaWithBypass(t *testing.T) {
	coeffs := make([]int32, 32*32)
	for i := range coeffs {
		v := int32((i*37)%211) - 105
		coeffs[i] = v
	}
	roundTripLegacy(t, coeffs, 32, 32, BandHL, 12, LegacyOptions{
		BypassEnabled:   true,
		BypassThreshold: 4,
	})
}

func TestLegacyRoundTrip_64x64DenseRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	coeffs := make([]int32, 64*64)
	for i := range coeffs {
		coeffs[i] = int32(rng.Intn(1<<14) - (1 << 13))
	}
	roundTripLegacy(t, coeffs, 64, 64, BandHH, 14, LegacyOptions{})
}

func TestLegacyRoundTrip_16x16UniformPerPass(t *testing.T) {
	coeffs := make([]int32, 256)
	for i := range coeffs {
		coeffs[i] = 100
	}
	opts := LegacyOptions{TerminationMode: TermPerPass}
	res := EncodeLegacy(coeffs, 16, 16, BandLL, 10, opts)
	if len(res.SegmentBoundaries) != res.NumPasses {
		t.Fatalf("perPass termination: got %d segment boundaries for %d passes", len(res.SegmentBoundaries), res.NumPasses)
	}
	got := DecodeLegacy(res.Data, 16, 16, BandLL, 10, res.NumZeroBitPlanes, res.SegmentBoundaries, opts)
	if !coeffsEqual(got, coeffs) {
		t.Fatalf("round trip mismatch\n got: %v\nwant: %v", got, coeffs)
	}
}

func TestLegacyRoundTrip_AllTerminationModes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	coeffs := make([]int32, 16*16)
	for i := range coeffs {
		coeffs[i] = int32(rng.Intn(1 << 9))
	}
	for _, tm := range []TerminationMode{TermEasy, TermPredictable, TermPerPass} {
		roundTripLegacy(t, coeffs, 16, 16, BandLL, 9, LegacyOptions{TerminationMode: tm})
	}
}

func TestLegacyRoundTrip_RLCToggle(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	coeffs := make([]int32, 32*32)
	for i := range coeffs {
		if rng.Intn(20) == 0 {
			coeffs[i] = int32(rng.Intn(1 << 8))
		}
	}
	roundTripLegacy(t, coeffs, 32, 32, BandLH, 8, LegacyOptions{UseRLC: true})
	roundTripLegacy(t, coeffs, 32, 32, BandLH, 8, LegacyOptions{UseRLC: false})
}

func TestLegacyRoundTrip_BitDepth1(t *testing.T) {
	coeffs := []int32{1, 0, -1, 0, 1, -1, 0, 0, 1, 0, 0, -1, 0, 1, -1, 0}
	roundTripLegacy(t, coeffs, 4, 4, BandLL, 1, LegacyOptions{})
}

func TestLegacyRoundTrip_PropertyRandomTuples(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	dims := []int{4, 8, 16, 32, 64}
	bands := []int{BandLL, BandHL, BandLH, BandHH}

	for iter := 0; iter < 300; iter++ {
		w := dims[rng.Intn(len(dims))]
		h := dims[rng.Intn(len(dims))]
		if w*h > 4096 {
			continue
		}
		bitDepth := 1 + rng.Intn(16)
		band := bands[rng.Intn(len(bands))]
		coeffs := make([]int32, w*h)
		maxVal := int32(1) << uint(bitDepth-1)
		density := rng.Intn(5) // 0 = sparse, 4 = dense
		for i := range coeffs {
			if rng.Intn(5) <= density {
				coeffs[i] = int32(rng.Intn(int(2*maxVal))) - maxVal
			}
		}
		opts := LegacyOptions{
			BypassEnabled:   rng.Intn(2) == 0,
			BypassThreshold: rng.Intn(bitDepth + 1),
			TerminationMode: TerminationMode(rng.Intn(3)),
			UseRLC:          rng.Intn(2) == 0,
		}
		roundTripLegacy(t, coeffs, w, h, band, bitDepth, opts)
	}
}

func TestLegacyEncodeDecodeEncodeIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(123))
	coeffs := make([]int32, 16*16)
	for i := range coeffs {
		coeffs[i] = int32(rng.Intn(1<<10) - (1 << 9))
	}
	opts := LegacyOptions{TerminationMode: TermPredictable}

	res1 := EncodeLegacy(coeffs, 16, 16, BandLL, 10, opts)
	decoded := DecodeLegacy(res1.Data, 16, 16, BandLL, 10, res1.NumZeroBitPlanes, res1.SegmentBoundaries, opts)
	res2 := EncodeLegacy(decoded, 16, 16, BandLL, 10, opts)

	if string(res1.Data) != string(res2.Data) {
		t.Fatal("encode . decode . encode did not reproduce the original coded data")
	}
}

func FuzzLegacyRoundTrip(f *testing.F) {
	f.Add(uint8(8), uint8(8), 8, 0, int64(1))
	f.Fuzz(func(t *testing.T, wSeed, hSeed uint8, bitDepth int, bandType int, seed int64) {
		dims := []int{4, 8, 16, 32, 64}
		w := dims[int(wSeed)%len(dims)]
		h := dims[int(hSeed)%len(dims)]
		if w*h > 4096 {
			t.Skip()
		}
		if bitDepth < 1 || bitDepth > 24 {
			t.Skip()
		}
		band := ((bandType % 4) + 4) % 4

		rng := rand.New(rand.NewSource(seed))
		coeffs := make([]int32, w*h)
		maxVal := int32(1) << uint(bitDepth-1)
		for i := range coeffs {
			coeffs[i] = int32(rng.Intn(int(2*maxVal))) - maxVal
		}
		roundTripLegacy(t, coeffs, w, h, band, bitDepth, LegacyOptions{})
	})
}
