package vorbis

import (
	"github.com/optivorbis/optivorbis/internal/bitpack"
	"github.com/optivorbis/optivorbis/internal/errs"
)

// Mapping ties channels to floor/residue pairs via submaps, per the Vorbis
// I spec's (currently sole) mapping type 0.
type Mapping struct {
	ID int

	Submaps int

	// CouplingSteps, Magnitude and Angle describe channel-coupling pairs;
	// preserved verbatim since this repo never alters channel layout.
	CouplingSteps int
	Magnitude     []int
	Angle         []int

	// MuxForChannel[channel] selects which submap that channel uses.
	MuxForChannel []int

	SubmapFloor   []int
	SubmapResidue []int
}

// ReadMapping parses one mapping header entry for the given channel count.
func ReadMapping(r *bitpack.Reader, id int, channels int) (*Mapping, error) {
	mapType, err := r.ReadUnsigned(16)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read mapping type").WithErr(err)
	}
	if mapType != 0 {
		return nil, errs.New(errs.VorbisUnsupported, "unknown mapping type")
	}

	m := &Mapping{ID: id, Submaps: 1}

	hasSubmaps, err := r.ReadFlag()
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read mapping submap flag").WithErr(err)
	}
	if hasSubmaps {
		n, err := r.ReadUnsigned(4)
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read mapping submap count").WithErr(err)
		}
		m.Submaps = int(n) + 1
	}

	hasCoupling, err := r.ReadFlag()
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read mapping coupling flag").WithErr(err)
	}
	if hasCoupling {
		steps, err := r.ReadUnsigned(8)
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read mapping coupling steps").WithErr(err)
		}
		m.CouplingSteps = int(steps) + 1
		m.Magnitude = make([]int, m.CouplingSteps)
		m.Angle = make([]int, m.CouplingSteps)
		width := ilog(uint32(channels - 1))
		for i := 0; i < m.CouplingSteps; i++ {
			mag, err := r.ReadUnsigned(uint(width))
			if err != nil {
				return nil, errs.New(errs.VorbisHeaderMalformed, "read mapping magnitude").WithErr(err)
			}
			ang, err := r.ReadUnsigned(uint(width))
			if err != nil {
				return nil, errs.New(errs.VorbisHeaderMalformed, "read mapping angle").WithErr(err)
			}
			m.Magnitude[i] = int(mag)
			m.Angle[i] = int(ang)
		}
	}

	reserved, err := r.ReadUnsigned(2)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read mapping reserved field").WithErr(err)
	}
	if reserved != 0 {
		return nil, errs.New(errs.VorbisHeaderMalformed, "mapping reserved field nonzero")
	}

	m.MuxForChannel = make([]int, channels)
	if m.Submaps > 1 {
		for ch := range m.MuxForChannel {
			v, err := r.ReadUnsigned(4)
			if err != nil {
				return nil, errs.New(errs.VorbisHeaderMalformed, "read mapping channel mux").WithErr(err)
			}
			m.MuxForChannel[ch] = int(v)
		}
	}

	m.SubmapFloor = make([]int, m.Submaps)
	m.SubmapResidue = make([]int, m.Submaps)
	for i := 0; i < m.Submaps; i++ {
		if _, err := r.ReadUnsigned(8); err != nil { // unused time-domain placeholder
			return nil, errs.New(errs.VorbisHeaderMalformed, "read mapping time placeholder").WithErr(err)
		}
		floorID, err := r.ReadUnsigned(8)
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read mapping floor id").WithErr(err)
		}
		residueID, err := r.ReadUnsigned(8)
		if err != nil {
			return nil, errs.New(errs.VorbisHeaderMalformed, "read mapping residue id").WithErr(err)
		}
		m.SubmapFloor[i] = int(floorID)
		m.SubmapResidue[i] = int(residueID)
	}

	return m, nil
}

// Emit writes the mapping header back verbatim.
func (m *Mapping) Emit(w *bitpack.Writer, channels int) {
	w.WriteUnsigned(0, 16)
	w.WriteFlag(m.Submaps > 1)
	if m.Submaps > 1 {
		w.WriteUnsigned(uint32(m.Submaps-1), 4)
	}
	w.WriteFlag(m.CouplingSteps > 0)
	if m.CouplingSteps > 0 {
		w.WriteUnsigned(uint32(m.CouplingSteps-1), 8)
		width := ilog(uint32(channels - 1))
		for i := 0; i < m.CouplingSteps; i++ {
			w.WriteUnsigned(uint32(m.Magnitude[i]), uint(width))
			w.WriteUnsigned(uint32(m.Angle[i]), uint(width))
		}
	}
	w.WriteUnsigned(0, 2)
	if m.Submaps > 1 {
		for _, v := range m.MuxForChannel {
			w.WriteUnsigned(uint32(v), 4)
		}
	}
	for i := 0; i < m.Submaps; i++ {
		w.WriteUnsigned(0, 8)
		w.WriteUnsigned(uint32(m.SubmapFloor[i]), 8)
		w.WriteUnsigned(uint32(m.SubmapResidue[i]), 8)
	}
}

// Mode ties a block size and window/transform selection to a mapping.
type Mode struct {
	ID int

	BlockFlag     bool // false = short block, true = long block
	WindowType    int
	TransformType int
	Mapping       int
}

// ReadMode parses one mode header entry.
func ReadMode(r *bitpack.Reader, id int) (*Mode, error) {
	blockFlag, err := r.ReadFlag()
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read mode block flag").WithErr(err)
	}
	windowType, err := r.ReadUnsigned(16)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read mode window type").WithErr(err)
	}
	if windowType != 0 {
		return nil, errs.New(errs.VorbisUnsupported, "unknown window type")
	}
	transformType, err := r.ReadUnsigned(16)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read mode transform type").WithErr(err)
	}
	if transformType != 0 {
		return nil, errs.New(errs.VorbisUnsupported, "unknown transform type")
	}
	mapping, err := r.ReadUnsigned(8)
	if err != nil {
		return nil, errs.New(errs.VorbisHeaderMalformed, "read mode mapping").WithErr(err)
	}

	return &Mode{
		ID:            id,
		BlockFlag:     blockFlag,
		WindowType:    int(windowType),
		TransformType: int(transformType),
		Mapping:       int(mapping),
	}, nil
}

// Emit writes the mode header back verbatim.
func (md *Mode) Emit(w *bitpack.Writer) {
	w.WriteFlag(md.BlockFlag)
	w.WriteUnsigned(uint32(md.WindowType), 16)
	w.WriteUnsigned(uint32(md.TransformType), 16)
	w.WriteUnsigned(uint32(md.Mapping), 8)
}
