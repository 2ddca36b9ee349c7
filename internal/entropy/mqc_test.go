package entropy

import (
	"math/rand"
	"testing"
)

func TestMQRoundTripSingleContext(t *testing.T) {
	cases := []struct {
		name string
		bits []int
	}{
		{"allZero", []int{0, 0, 0, 0, 0, 0, 0, 0}},
		{"allOne", []int{1, 1, 1, 1, 1, 1, 1, 1}},
		{"alternating", []int{0, 1, 0, 1, 0, 1, 0, 1}},
		{"empty", nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			enc := NewMQEncoder()
			for _, b := range c.bits {
				enc.Encode(CtxUni, b)
			}
			data := enc.Flush()

			dec := NewMQDecoder(data)
			for i, want := range c.bits {
				if got := dec.Decode(CtxUni); got != want {
					t.Fatalf("bit %d: got %d, want %d", i, got, want)
				}
			}
		})
	}
}

func TestMQRoundTripManyContextsRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ctxs := []int{CtxZC0, CtxZC1, CtxZC4, CtxZC8, CtxSC0, CtxMag0, CtxMag2, CtxRL, CtxUni}

	var events []struct {
		ctx, bit int
	}
	enc := NewMQEncoder()
	for i := 0; i < 5000; i++ {
		ctx := ctxs[rng.Intn(len(ctxs))]
		bit := rng.Intn(2)
		enc.Encode(ctx, bit)
		events = append(events, struct{ ctx, bit int }{ctx, bit})
	}
	data := enc.Flush()

	dec := NewMQDecoder(data)
	for i, ev := range events {
		if got := dec.Decode(ev.ctx); got != ev.bit {
			t.Fatalf("event %d (ctx %d): got %d, want %d", i, ev.ctx, got, ev.bit)
		}
	}
}

func TestMQPredictableTermination(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	var bits []int
	enc := NewMQEncoder()
	for i := 0; i < 200; i++ {
		b := rng.Intn(2)
		bits = append(bits, b)
		enc.Encode(CtxZC0, b)
	}
	data := enc.FlushPredictable()

	dec := NewMQDecoder(data)
	for i, want := range bits {
		if got := dec.Decode(CtxZC0); got != want {
			t.Fatalf("bit %d: got %d, want %d", i, got, want)
		}
	}
}

// TestMQIndependentSegmentRestart exercises the same restart discipline
// legacy.go relies on: each segment is a fresh MQEncoder/MQDecoder pair,
// predictably terminated, with the decoder starting over at the next
// segment's byte offset within the concatenated data.
func TestMQIndependentSegmentRestart(t *testing.T) {
	var out []byte
	var boundaries []int
	var segments [][]int

	rng := rand.New(rand.NewSource(3))
	for seg := 0; seg < 4; seg++ {
		enc := NewMQEncoder()
		var bits []int
		for i := 0; i < 32; i++ {
			b := rng.Intn(2)
			bits = append(bits, b)
			enc.Encode(CtxZC2, b)
		}
		out = append(out, enc.FlushPredictable()...)
		boundaries = append(boundaries, len(out))
		segments = append(segments, bits)
	}

	start := 0
	for s, end := range boundaries {
		dec := NewMQDecoder(out[start:])
		for i, want := range segments[s] {
			if got := dec.Decode(CtxZC2); got != want {
				t.Fatalf("segment %d bit %d: got %d, want %d", s, i, got, want)
			}
		}
		start = end
	}
}

func TestRawEncoderDecoderRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	var bits []int
	enc := NewRawEncoder()
	for i := 0; i < 1000; i++ {
		b := rng.Intn(2)
		bits = append(bits, b)
		enc.EncodeBit(b)
	}
	data := enc.Flush()

	dec := NewRawDecoder(data)
	for i, want := range bits {
		if got := dec.DecodeBit(); got != want {
			t.Fatalf("bit %d: got %d, want %d", i, got, want)
		}
	}
}

func TestMQDecoderTruncatedInputNotFatal(t *testing.T) {
	enc := NewMQEncoder()
	for i := 0; i < 64; i++ {
		bit := 0
		if i%3 == 0 {
			bit = 1
		}
		enc.Encode(CtxZC0, bit)
	}
	_ = enc.Flush()

	dec := NewMQDecoder([]byte{0x00})
	for i := 0; i < 64; i++ {
		_ = dec.Decode(CtxZC0)
	}
}
