package main

// sample is the payload stored by the pools slotpoolctl builds. It is
// pointer-free so it can live off-heap.
type sample struct {
	Seq    uint64
	Worker uint32
	Check  uint32
	Data   [48]byte
}

// seal fills s for worker w and sequence seq.
func (s *sample) seal(w uint32, seq uint64) {
	s.Seq, s.Worker = seq, w
	for i := range s.Data {
		s.Data[i] = byte(seq) ^ byte(w)
	}
	s.Check = s.sum()
}

// intact reports whether s still holds what seal wrote for w.
func (s *sample) intact(w uint32) bool {
	return s.Worker == w && s.Check == s.sum()
}

func (s *sample) sum() uint32 {
	h := uint32(2166136261)
	for _, b := range s.Data {
		h = (h ^ uint32(b)) * 16777619
	}
	return h ^ uint32(s.Seq) ^ s.Worker
}
