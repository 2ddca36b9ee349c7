// Package entropy: HTJ2K (High-Throughput JPEG 2000) fast block coder.
//
// FBCOT replaces the MQ-coded cleanup pass with three substreams coded
// over 2x2 quads: a MagSgn forward raw stream carrying magnitudes and
// signs, and separate MEL and VLC backward streams carrying quad
// significance. Every bit-plane below the top one gets SigProp/MagRef
// refinement that keeps the legacy pass structure but uses raw bits
// instead of the MQ coder, per §4.5; the HT SigProp pass codes every
// not-yet-significant coefficient, whatever its neighbours.
package entropy

import (
	"container/heap"
	"math/bits"

	"github.com/corecodec/j2ktier1/internal/bio"
)

// melExp is a 13-state run-length exponent table: state k gives a run
// threshold of 2^melExp[k] zero-events before the coder forces a "run
// complete" bit. The state rises after a full-length run and falls
// after a run cut short by a one-event, adapting to local density.
var melExp = [13]int{0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3}

// melEncoder and melDecoder run the adaptive binary run-length coder
// used for quad significance when neither the left nor the row-above
// quad is significant. State persists across the whole code-block.
type melEncoder struct {
	w   *bio.BackwardWriter
	k   int
	run int
}

func newMelEncoder(w *bio.BackwardWriter) *melEncoder { return &melEncoder{w: w} }

// Put codes one significance event. Nothing is written for a zero event
// that doesn't complete a run; the run simply carries forward.
func (m *melEncoder) Put(bit int) {
	threshold := 1 << melExp[m.k]
	if bit == 0 {
		m.run++
		if m.run == threshold {
			m.w.WriteBit(0)
			m.run = 0
			if m.k < len(melExp)-1 {
				m.k++
			}
		}
		return
	}
	m.w.WriteBit(1)
	m.w.WriteBits(uint32(m.run), uint(melExp[m.k]))
	m.run = 0
	if m.k > 0 {
		m.k--
	}
}

type melDecoder struct {
	r            *bio.BackwardReader
	k            int
	pendingZeros int
	pendingOne   bool
}

func newMelDecoder(r *bio.BackwardReader) *melDecoder { return &melDecoder{r: r} }

// Get returns the next significance event, mirroring melEncoder.Put
// exactly: the same sequence of Put calls that produced the backward
// stream is reproduced by the same sequence of Get calls.
func (m *melDecoder) Get() int {
	if m.pendingZeros > 0 {
		m.pendingZeros--
		return 0
	}
	if m.pendingOne {
		m.pendingOne = false
		return 1
	}
	threshold := 1 << melExp[m.k]
	if m.r.ReadBit() == 0 {
		m.pendingZeros = threshold - 1
		if m.k < len(melExp)-1 {
			m.k++
		}
		return 0
	}
	pos := int(m.r.ReadBits(uint(melExp[m.k])))
	if m.k > 0 {
		m.k--
	}
	if pos == 0 {
		return 1
	}
	m.pendingZeros = pos - 1
	m.pendingOne = true
	return 0
}

// vlcNode is a binary Huffman tree node; leaves carry a rho symbol.
type vlcNode struct {
	leaf        bool
	symbol      int
	left, right *vlcNode
}

type vlcTable struct {
	codes [16]uint32 // code bits, MSB first, only low `lens[s]` bits meaningful
	lens  [16]uint8
	root  *vlcNode
	n     int // number of usable symbols (16 if zero allowed, 15 otherwise)
}

// heapItem / nodeHeap implement a tiny priority queue over (weight, node)
// pairs for Huffman tree construction via container/heap.
type heapItem struct {
	weight int
	node   *vlcNode
}
type nodeHeap []heapItem

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].weight < h[j].weight }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// buildVLCTable constructs a canonical-shaped Huffman code over the rho
// symbols 0..n-1, weighting lower-popcount patterns (fewer significant
// samples per quad) more heavily since wavelet subbands are typically
// sparse. Identical on encode and decode since it is built once at
// package init, deterministically from n.
func buildVLCTable(n int, allowZero bool) *vlcTable {
	base := 0
	if !allowZero {
		base = 1
	}
	h := &nodeHeap{}
	heap.Init(h)
	for s := base; s < n+base; s++ {
		w := 16 - bits.OnesCount(uint(s)) + 1
		heap.Push(h, heapItem{weight: w, node: &vlcNode{leaf: true, symbol: s}})
	}
	if h.Len() == 1 {
		only := heap.Pop(h).(heapItem)
		root := &vlcNode{left: only.node, right: &vlcNode{leaf: true, symbol: -1}}
		return finishVLCTable(root, n, allowZero)
	}
	for h.Len() > 1 {
		a := heap.Pop(h).(heapItem)
		b := heap.Pop(h).(heapItem)
		merged := &vlcNode{left: a.node, right: b.node}
		heap.Push(h, heapItem{weight: a.weight + b.weight, node: merged})
	}
	root := heap.Pop(h).(heapItem).node
	return finishVLCTable(root, n, allowZero)
}

func finishVLCTable(root *vlcNode, n int, allowZero bool) *vlcTable {
	t := &vlcTable{root: root, n: n}
	var walk func(node *vlcNode, code uint32, depth uint8)
	walk = func(node *vlcNode, code uint32, depth uint8) {
		if node == nil {
			return
		}
		if node.leaf {
			if node.symbol >= 0 {
				t.codes[node.symbol] = code
				t.lens[node.symbol] = depth
			}
			return
		}
		walk(node.left, code<<1, depth+1)
		walk(node.right, (code<<1)|1, depth+1)
	}
	walk(root, 0, 0)
	return t
}

// encode returns the codeword and its bit length for symbol s.
func (t *vlcTable) encode(s int) (uint32, uint8) { return t.codes[s], t.lens[s] }

// decode walks bit by bit through the tree, consuming exactly as many
// bits as the matching codeword's length.
func (t *vlcTable) decode(next func() int) int {
	node := t.root
	for !node.leaf {
		if next() == 0 {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.symbol
}

var (
	vlcAnyZero *vlcTable // context != 0: rho may be zero, 16 symbols
	vlcNonZero *vlcTable // context == 0 and MEL signalled significant: rho != 0, 15 symbols
)

func init() {
	vlcAnyZero = buildVLCTable(16, true)
	vlcNonZero = buildVLCTable(15, false)
}

// quadScan returns, for a w*h block, the sequence of 2x2 quad top-left
// coordinates in stripe-major order: two quad-rows per 4-row stripe,
// the first quad-row scanned left to right before the second.
func quadScan(w, h int) [][2]int {
	quads := make([][2]int, 0, (w/2+1)*(h/2+1))
	for y0 := 0; y0 < h; y0 += 4 {
		for qr := 0; qr < 2 && y0+2*qr < h; qr++ {
			for x0 := 0; x0 < w; x0 += 2 {
				quads = append(quads, [2]int{x0, y0 + 2*qr})
			}
		}
	}
	return quads
}

// HTOptions configures the fast block coder's lower bit-plane passes.
type HTOptions struct{}

// HTResult is what EncodeHT hands back to the CodeBlock façade.
type HTResult struct {
	Data             []byte
	NumPasses        int
	NumZeroBitPlanes int
	SplitOffset      int // length of the forward MagSgn/SigProp/MagRef region
	VLCOffset        int // offset where the reverse VLC region ends and MEL begins
}

const htBackwardCapacityPerCoeff = 2

// EncodeHT drives the FBCOT cleanup pass (quad/MEL/VLC/MagSgn) at the
// single highest active bit-plane, then the HT SigProp/MagRef passes
// (fixed-context, raw-coded) for every bit-plane below it, mirroring
// the legacy coder's per-bit-plane cadence (§4.5).
func EncodeHT(coeffs []int32, w, h, bandType, bitDepth int, _ HTOptions) HTResult {
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

	var fw bytesBuilder
	// MEL and VLC are independent, independently delimited substreams
	// (§4.5.1): MEL's run-length coder defers output across several
	// quads before writing anything, so interleaving its bits with VLC
	// codewords in one shared buffer would let a VLC write land ahead
	// of a still-pending MEL bit and desync the decoder.
	vlcBuf := bio.NewBackwardWriter(n*htBackwardCapacityPerCoeff + 16)
	melBuf := bio.NewBackwardWriter(n*htBackwardCapacityPerCoeff + 16)
	mel := newMelEncoder(melBuf)
	numPasses := 0

	quadSig := func(x0, y0 int) bool {
		return ctxModel.Significant(x0, y0) || ctxModel.Significant(x0+1, y0) ||
			ctxModel.Significant(x0, y0+1) || ctxModel.Significant(x0+1, y0+1)
	}

	cleanupTop := func(bp int) {
		quads := quadScan(w, h)
		for _, q := range quads {
			x0, y0 := q[0], q[1]
			left := quadSig(x0-2, y0)
			above := quadSig(x0, y0-2)
			context := 0
			if left {
				context |= 1
			}
			if above {
				context |= 2
			}

			var rho int
			members := [4][2]int{{x0, y0}, {x0 + 1, y0}, {x0, y0 + 1}, {x0 + 1, y0 + 1}}
			for m, p := range members {
				if p[0] >= w || p[1] >= h {
					continue
				}
				if (abs[idx(p[0], p[1])]>>uint(bp))&1 == 1 {
					rho |= 1 << m
				}
			}

			if context == 0 {
				sig := 0
				if rho != 0 {
					sig = 1
				}
				mel.Put(sig)
				if rho != 0 {
					code, length := vlcNonZero.encode(rho)
					vlcBuf.WriteBits(code, uint(length))
				}
			} else {
				code, length := vlcAnyZero.encode(rho)
				vlcBuf.WriteBits(code, uint(length))
			}

			for m, p := range members {
				if p[0] >= w || p[1] >= h || rho&(1<<m) == 0 {
					continue
				}
				i := idx(p[0], p[1])
				ctxModel.SetSignificant(p[0], p[1], signs[i])
				fw.writeBit(signBit(signs[i]))
			}
		}
		numPasses++
	}

	sigPropPass := func(bp int) {
		for _, p := range order {
			x, y := p[0], p[1]
			i := idx(x, y)
			if ctxModel.Significant(x, y) {
				continue
			}
			bit := int((abs[i] >> uint(bp)) & 1)
			fw.writeBit(bit)
			if bit == 1 {
				ctxModel.SetSignificant(x, y, signs[i])
				fw.writeBit(signBit(signs[i]))
			}
			ctxModel.SetVisited(x, y)
		}
		numPasses++
	}

	magRefPass := func(bp int) {
		for _, p := range order {
			x, y := p[0], p[1]
			if !ctxModel.Significant(x, y) || ctxModel.Visited(x, y) {
				continue
			}
			bit := int((abs[idx(x, y)] >> uint(bp)) & 1)
			fw.writeBit(bit)
		}
		numPasses++
	}

	for bp := activeBitPlanes - 1; bp >= 0; bp-- {
		ctxModel.NewBitPlane()
		if bp == activeBitPlanes-1 {
			cleanupTop(bp)
			continue
		}
		sigPropPass(bp)
		magRefPass(bp)
	}

	fwBytes := fw.bytes()
	vlcBuf.Flush()
	melBuf.Flush()
	vlcBytes := vlcBuf.Bytes()
	melBytes := melBuf.Bytes()

	data := make([]byte, 0, len(fwBytes)+len(vlcBytes)+len(melBytes))
	data = append(data, fwBytes...)
	data = append(data, vlcBytes...)
	data = append(data, melBytes...)

	return HTResult{
		Data:             data,
		NumPasses:        numPasses,
		NumZeroBitPlanes: bitDepth - activeBitPlanes,
		SplitOffset:      len(fwBytes),
		VLCOffset:        len(fwBytes) + len(vlcBytes),
	}
}

// DecodeHT reverses EncodeHT, replaying the identical (bit-plane, pass)
// schedule from splitOffset/vlcOffset so the MEL/VLC context
// classification and the HT SigProp/MagRef visitation are computed
// from identical state on both sides. MEL and VLC are read from their
// own independent regions (see EncodeHT), not a shared buffer.
func DecodeHT(data []byte, w, h, bandType, bitDepth, numZeroBitPlanes, splitOffset, vlcOffset int, _ HTOptions) []int32 {
	n := w * h
	coeffs := make([]int32, n)
	activeBitPlanes := bitDepth - numZeroBitPlanes
	if activeBitPlanes <= 0 {
		return coeffs
	}

	if splitOffset > len(data) {
		splitOffset = len(data)
	}
	if vlcOffset < splitOffset {
		vlcOffset = splitOffset
	}
	if vlcOffset > len(data) {
		vlcOffset = len(data)
	}
	fwData := data[:splitOffset]
	vlcData := data[splitOffset:vlcOffset]
	melData := data[vlcOffset:]

	idx := func(x, y int) int { return y*w + x }
	order := scanOrder(w, h)
	ctxModel := GetContextModel(w, h, bandType)
	defer PutContextModel(ctxModel)

	fw := newBytesReader(fwData)
	vlcR := bio.NewBackwardReader(vlcData)
	melR := bio.NewBackwardReader(melData)
	mel := newMelDecoder(melR)

	quadSig := func(x0, y0 int) bool {
		return ctxModel.Significant(x0, y0) || ctxModel.Significant(x0+1, y0) ||
			ctxModel.Significant(x0, y0+1) || ctxModel.Significant(x0+1, y0+1)
	}

	cleanupTop := func(bp int) {
		quads := quadScan(w, h)
		for _, q := range quads {
			x0, y0 := q[0], q[1]
			left := quadSig(x0-2, y0)
			above := quadSig(x0, y0-2)
			context := 0
			if left {
				context |= 1
			}
			if above {
				context |= 2
			}

			var rho int
			if context == 0 {
				if mel.Get() == 1 {
					rho = vlcNonZero.decode(func() int { return vlcR.ReadBit() })
				}
			} else {
				rho = vlcAnyZero.decode(func() int { return vlcR.ReadBit() })
			}

			members := [4][2]int{{x0, y0}, {x0 + 1, y0}, {x0, y0 + 1}, {x0 + 1, y0 + 1}}
			for m, p := range members {
				if p[0] >= w || p[1] >= h || rho&(1<<m) == 0 {
					continue
				}
				neg := fw.readBit() == 1
				ctxModel.SetSignificant(p[0], p[1], neg)
				setMagnitudeBit(coeffs, idx(p[0], p[1]), bp, neg)
			}
		}
	}

	sigPropPass := func(bp int) {
		for _, p := range order {
			x, y := p[0], p[1]
			if ctxModel.Significant(x, y) {
				continue
			}
			bit := fw.readBit()
			if bit == 1 {
				neg := fw.readBit() == 1
				ctxModel.SetSignificant(x, y, neg)
				setMagnitudeBit(coeffs, idx(x, y), bp, neg)
			}
			ctxModel.SetVisited(x, y)
		}
	}

	magRefPass := func(bp int) {
		for _, p := range order {
			x, y := p[0], p[1]
			if !ctxModel.Significant(x, y) || ctxModel.Visited(x, y) {
				continue
			}
			bit := fw.readBit()
			if bit == 1 {
				setMagnitudeBit(coeffs, idx(x, y), bp, ctxModel.Negative(x, y))
			}
		}
	}

	for bp := activeBitPlanes - 1; bp >= 0; bp-- {
		ctxModel.NewBitPlane()
		if bp == activeBitPlanes-1 {
			cleanupTop(bp)
			continue
		}
		sigPropPass(bp)
		magRefPass(bp)
	}

	return coeffs
}

// bytesBuilder is a minimal forward raw-bit accumulator for the HT
// MagSgn/SigProp/MagRef region, which (unlike the legacy MQ streams)
// needs no byte-stuffing: it never appears on its own as an
// independently delimited segment within a marker-bearing codestream.
type bytesBuilder struct {
	out []byte
	cur byte
	cnt uint8
}

func (b *bytesBuilder) writeBit(bit int) {
	b.cur = (b.cur << 1) | byte(bit&1)
	b.cnt++
	if b.cnt == 8 {
		b.out = append(b.out, b.cur)
		b.cur = 0
		b.cnt = 0
	}
}

func (b *bytesBuilder) bytes() []byte {
	if b.cnt > 0 {
		b.out = append(b.out, b.cur<<(8-b.cnt))
		b.cur = 0
		b.cnt = 0
	}
	return b.out
}

type bytesReader struct {
	data []byte
	pos  int
	cur  byte
	cnt  uint8
}

func newBytesReader(data []byte) *bytesReader { return &bytesReader{data: data} }

func (r *bytesReader) readBit() int {
	if r.cnt == 0 {
		if r.pos < len(r.data) {
			r.cur = r.data[r.pos]
			r.pos++
		} else {
			r.cur = 0
		}
		r.cnt = 8
	}
	r.cnt--
	return int((r.cur >> r.cnt) & 1)
}

