package transcode

import (
	"testing"

	"github.com/optivorbis/optivorbis/internal/errs"
)

// kraftSum returns Sum(2^-l) scaled by 2^32, mirroring vorbis.Codebook.Validate.
func kraftSum(lengths []int, used []bool) uint64 {
	var sum uint64
	for i, l := range lengths {
		if used[i] {
			sum += uint64(1) << uint(32-l)
		}
	}
	return sum
}

func allUsed(n int) []bool {
	u := make([]bool, n)
	for i := range u {
		u[i] = true
	}
	return u
}

func TestOptimalLengthsSatisfiesKraft(t *testing.T) {
	cases := [][]uint64{
		{1, 1, 1, 1},
		{1, 2, 4, 8, 16, 32},
		{100, 1, 1, 1, 1, 1, 1, 1},
		{0, 0, 0, 5},
		{5, 5},
		{7, 3, 9, 1, 1, 1, 2, 2, 4, 6},
	}
	for i, counts := range cases {
		used := allUsed(len(counts))
		lengths, err := OptimalLengths(counts, used)
		if err != nil {
			t.Fatalf("case %d: OptimalLengths failed: %v", i, err)
		}
		if sum := kraftSum(lengths, used); sum > uint64(1)<<32 {
			t.Errorf("case %d: Kraft sum %d exceeds 2^32", i, sum)
		}
		for j, l := range lengths {
			if l < 1 {
				t.Errorf("case %d: entry %d has non-positive length %d", i, j, l)
			}
		}
	}
}

func TestOptimalLengthsSkipsUnusedEntries(t *testing.T) {
	counts := []uint64{5, 0, 3, 0}
	used := []bool{true, false, true, false}
	lengths, err := OptimalLengths(counts, used)
	if err != nil {
		t.Fatalf("OptimalLengths failed: %v", err)
	}
	if lengths[1] != 0 || lengths[3] != 0 {
		t.Errorf("unused entries should have length 0, got %v", lengths)
	}
	if lengths[0] == 0 || lengths[2] == 0 {
		t.Errorf("used entries should have a positive length, got %v", lengths)
	}
}

func TestOptimalLengthsSingleEntry(t *testing.T) {
	lengths, err := OptimalLengths([]uint64{42}, []bool{true})
	if err != nil {
		t.Fatalf("OptimalLengths failed: %v", err)
	}
	if lengths[0] != 1 {
		t.Errorf("single-entry codebook should get length 1, got %d", lengths[0])
	}
}

func TestOptimalLengthsSkewedWeightsPreferShorterForHeavier(t *testing.T) {
	// A dominant symbol should end up no longer than a rare one.
	counts := []uint64{1000, 1, 1, 1, 1, 1, 1, 1}
	used := allUsed(len(counts))
	lengths, err := OptimalLengths(counts, used)
	if err != nil {
		t.Fatalf("OptimalLengths failed: %v", err)
	}
	for i := 1; i < len(lengths); i++ {
		if lengths[0] > lengths[i] {
			t.Errorf("heaviest entry has length %d, longer than lighter entry %d (length %d)", lengths[0], i, lengths[i])
		}
	}
}

func TestLimitLengthsRepairsOverCap(t *testing.T) {
	n := 40
	lengths := make([]int, n)
	used := make([]bool, n)
	for i := range lengths {
		lengths[i] = maxCodeLength + 4
		used[i] = true
	}
	if err := limitLengths(lengths, used); err != nil {
		t.Fatalf("limitLengths failed: %v", err)
	}
	if sum := kraftSum(lengths, used); sum > uint64(1)<<32 {
		t.Errorf("Kraft sum %d still exceeds 2^32 after repair", sum)
	}
	for i, l := range lengths {
		if l > maxCodeLength {
			t.Errorf("entry %d still exceeds maxCodeLength: %d", i, l)
		}
	}
}

func TestLimitLengthsSingleEntryAtCapSucceeds(t *testing.T) {
	// limitLengths returns OptimizationInfeasible only when more used
	// entries exist than 2^maxCodeLength codes allow, which is impossible
	// to construct in a unit test directly. This checks the feasible side
	// of that boundary: an entry already at the cap satisfies Kraft and is
	// accepted without error.
	lengths := []int{maxCodeLength}
	used := []bool{true}
	if err := limitLengths(lengths, used); err != nil {
		t.Fatalf("single entry at cap should already satisfy Kraft: %v", err)
	}
	_ = errs.OptimizationInfeasible // sanity that the kind exists for this path
}
