// Package transcode rebuilds codeword length assignments from accumulated
// usage counts and replays Vorbis audio packets under the new assignment.
package transcode

import (
	"container/heap"

	"github.com/optivorbis/optivorbis/internal/errs"
)

// maxCodeLength is the longest codeword this builder will ever emit: the
// setup header stores each length as length-1 in 5 bits, so 32 is the
// largest length it can express.
const maxCodeLength = 32

// kraftScale lets Kraft's inequality be checked with exact integer
// arithmetic: each length-l entry contributes 2^(kraftScale-l).
const kraftScale = 32

type huffNode struct {
	weight   uint64
	minIndex int // smallest original entry index under this node; the tie-break key
	entry    int // valid only when leaf
	leaf     bool
	left     *huffNode
	right    *huffNode
}

type nodeHeap []*huffNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight < h[j].weight
	}
	return h[i].minIndex < h[j].minIndex
}
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(*huffNode)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// OptimalLengths computes new codeword lengths for a codebook given its
// per-entry usage counts. used marks which entries participate in the code
// (sparse codebooks may have gaps); unused entries get length 0 in the
// result, and a used entry with count 0 still receives a length (its zero
// weight sorts it toward the longest codes via the heap's weight ordering).
//
// This builds the classic unbounded-optimal Huffman tree (ties broken by
// ascending original entry index, satisfying the reproducibility
// requirement) and then, only if the natural tree exceeds maxCodeLength,
// applies the standard clamp-and-repair length-limiting correction used by
// Deflate/JPEG Huffman table builders: lengths over the cap are clamped
// down, then entries still under the cap are lengthened one bit at a time,
// lowest entry index first, until Kraft's inequality holds again. That
// repair does not consult the usage counts, so on this path the result is
// valid but not necessarily the optimal length-limited code. Real Vorbis
// codebooks are far too small for this path to trigger in practice; it
// exists so the builder never emits an invalid code instead of failing.
func OptimalLengths(counts []uint64, used []bool) ([]int, error) {
	n := len(counts)
	lengths := make([]int, n)

	var leaves []*huffNode
	for i := 0; i < n; i++ {
		if !used[i] {
			continue
		}
		leaves = append(leaves, &huffNode{weight: counts[i], minIndex: i, entry: i, leaf: true})
	}
	if len(leaves) == 0 {
		return lengths, nil
	}
	if len(leaves) == 1 {
		lengths[leaves[0].entry] = 1
		return lengths, nil
	}

	h := make(nodeHeap, len(leaves))
	copy(h, leaves)
	heap.Init(&h)
	for h.Len() > 1 {
		a := heap.Pop(&h).(*huffNode)
		b := heap.Pop(&h).(*huffNode)
		minIdx := a.minIndex
		if b.minIndex < minIdx {
			minIdx = b.minIndex
		}
		heap.Push(&h, &huffNode{weight: a.weight + b.weight, minIndex: minIdx, left: a, right: b})
	}
	root := h[0]

	assignDepths(root, 0, lengths)

	maxLen := 0
	for _, l := range lengths {
		if l > maxLen {
			maxLen = l
		}
	}
	if maxLen <= maxCodeLength {
		return lengths, nil
	}

	if err := limitLengths(lengths, used); err != nil {
		return nil, err
	}
	return lengths, nil
}

// assignDepths walks the tree built from at least two leaves, so root is
// always internal and every leaf is reached at depth >= 1.
func assignDepths(n *huffNode, depth int, lengths []int) {
	if n.leaf {
		lengths[n.entry] = depth
		return
	}
	assignDepths(n.left, depth+1, lengths)
	assignDepths(n.right, depth+1, lengths)
}

// limitLengths clamps any length above maxCodeLength and repairs Kraft's
// inequality by repeatedly lengthening, by one bit, the lowest-indexed used
// entry that still has headroom under the cap, until the inequality holds.
// It has no access to usage counts, so which codes get longer depends on
// entry index only, not on how often each entry is used.
func limitLengths(lengths []int, used []bool) error {
	for i, l := range lengths {
		if used[i] && l > maxCodeLength {
			lengths[i] = maxCodeLength
		}
	}

	kraftSum := func() uint64 {
		var sum uint64
		for i, l := range lengths {
			if used[i] {
				sum += uint64(1) << uint(kraftScale-l)
			}
		}
		return sum
	}

	limit := uint64(1) << kraftScale
	for attempt := 0; kraftSum() > limit; attempt++ {
		if attempt > 1<<20 {
			return errs.New(errs.OptimizationInfeasible, "length-limited code did not converge")
		}
		progressed := false
		for i, l := range lengths {
			if !used[i] || l >= maxCodeLength {
				continue
			}
			lengths[i] = l + 1
			progressed = true
			break
		}
		if !progressed {
			return errs.New(errs.OptimizationInfeasible, "no codeword has headroom under the length cap")
		}
	}
	return nil
}
