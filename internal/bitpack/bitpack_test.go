package bitpack

import (
	"math/rand/v2"
	"testing"
)

// TestSpecExample verifies the worked example from the specification:
// writing {(12,4),(-1,3),(17,7),(6969,13)} yields bytes [0xFC, 0x48, 0xCE, 0x06].
func TestSpecExample(t *testing.T) {
	w := NewWriter()
	w.WriteUnsigned(12, 4)
	w.WriteSigned(-1, 3)
	w.WriteUnsigned(17, 7)
	w.WriteUnsigned(6969, 13)

	got := w.Bytes()
	want := []byte{0xFC, 0x48, 0xCE, 0x06}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (% x)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = 0x%02x, want 0x%02x", i, got[i], want[i])
		}
	}
}

func TestRoundTripUnsigned(t *testing.T) {
	type pair struct {
		value uint32
		width uint
	}
	cases := []pair{
		{0, 0}, {0, 1}, {1, 1}, {0xFFFFFFFF, 32}, {0x12345678, 32},
		{5, 3}, {255, 8}, {256, 9}, {1, 32}, {0, 32},
	}

	w := NewWriter()
	for _, c := range cases {
		w.WriteUnsigned(c.value, c.width)
	}

	r := NewReader(w.Bytes())
	for i, c := range cases {
		got, err := r.ReadUnsigned(c.width)
		if err != nil {
			t.Fatalf("case %d: unexpected error: %v", i, err)
		}
		want := c.value
		if c.width < 32 {
			want &= (1 << c.width) - 1
		}
		if got != want {
			t.Errorf("case %d: got %d, want %d", i, got, want)
		}
	}
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	type pair struct {
		value uint32
		width uint
	}
	var cases []pair
	totalBits := 0
	for i := 0; i < 500; i++ {
		width := uint(rng.IntN(33))
		value := rng.Uint32()
		cases = append(cases, pair{value, width})
		totalBits += int(width)
	}

	w := NewWriter()
	for _, c := range cases {
		w.WriteUnsigned(c.value, c.width)
	}
	buf := w.Bytes()
	wantLen := (totalBits + 7) / 8
	if len(buf) != wantLen {
		t.Fatalf("buffer length = %d, want %d (ceil(%d/8))", len(buf), wantLen, totalBits)
	}

	r := NewReader(buf)
	for i, c := range cases {
		got, err := r.ReadUnsigned(c.width)
		if err != nil {
			t.Fatalf("case %d (width=%d): unexpected error: %v", i, c.width, err)
		}
		var want uint32
		if c.width == 0 {
			want = 0
		} else if c.width >= 32 {
			want = c.value
		} else {
			want = c.value & (1<<c.width - 1)
		}
		if got != want {
			t.Errorf("case %d (width=%d): got %d, want %d", i, c.width, got, want)
		}
	}
}

func TestReadPastEndFails(t *testing.T) {
	w := NewWriter()
	w.WriteUnsigned(3, 2)
	r := NewReader(w.Bytes())
	if _, err := r.ReadUnsigned(2); err != nil {
		t.Fatalf("unexpected error on first read: %v", err)
	}
	// The 2-bit write is zero-padded to one byte, so 6 bits remain; a 7-bit
	// read runs past the end of the buffer.
	if _, err := r.ReadUnsigned(7); err != ErrPrematureEnd {
		t.Fatalf("got err=%v, want ErrPrematureEnd", err)
	}
}

func TestFlag(t *testing.T) {
	w := NewWriter()
	w.WriteFlag(true)
	w.WriteFlag(false)
	w.WriteFlag(true)

	r := NewReader(w.Bytes())
	for i, want := range []bool{true, false, true} {
		got, err := r.ReadFlag()
		if err != nil {
			t.Fatalf("flag %d: %v", i, err)
		}
		if got != want {
			t.Errorf("flag %d = %v, want %v", i, got, want)
		}
	}
}

func TestFloat32RoundTrip(t *testing.T) {
	values := []float32{0, 1, -1, 0.5, -0.5, 3.14159, -123456.789, 1e-10, -1e10}
	w := NewWriter()
	for _, v := range values {
		w.WriteFloat32(v)
	}
	r := NewReader(w.Bytes())
	for i, v := range values {
		got, err := r.ReadFloat32()
		if err != nil {
			t.Fatalf("value %d: %v", i, err)
		}
		// Vorbis's packed float32 has 21 bits of mantissa precision; allow
		// for the resulting relative quantization error.
		diff := float64(got) - float64(v)
		if v != 0 {
			rel := diff / float64(v)
			if rel < 0 {
				rel = -rel
			}
			if rel > 1e-5 {
				t.Errorf("value %d: got %v, want %v (rel err %v)", i, got, v, rel)
			}
		} else if got != 0 {
			t.Errorf("value %d: got %v, want 0", i, got)
		}
	}
}

func TestWidthZeroNoOp(t *testing.T) {
	w := NewWriter()
	w.WriteUnsigned(0xFFFFFFFF, 0)
	if w.BitsWritten() != 0 {
		t.Fatalf("width-0 write consumed %d bits, want 0", w.BitsWritten())
	}
}
