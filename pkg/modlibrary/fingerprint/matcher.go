package fingerprint

// DefaultMaxOffset is the number of word offsets tried when aligning a query.
const DefaultMaxOffset = 32

// Strategy scores a query fingerprint against one candidate on a 0..100
// scale.
type Strategy interface {
	Score(query, candidate []uint32) int
}

// SlidingOffset shifts the query forward by up to MaxOffset-1 words and keeps
// the alignment with the fewest differing bits. The length difference of the
// two fingerprints is charged in full at every offset, so fingerprints of
// different lengths never score 100. Only the query is shifted, so Score(a, b)
// and Score(b, a) differ when the shared material starts later in a than in b.
type SlidingOffset struct {
	MaxOffset int
	Count     BitCounter
}

func NewSlidingOffset() *SlidingOffset {
	return &SlidingOffset{MaxOffset: DefaultMaxOffset, Count: DefaultBitCounter}
}

func (s *SlidingOffset) Score(query, candidate []uint32) int {
	maxMatches := 32 * max(len(query), len(candidate))
	if maxMatches == 0 {
		return 0
	}
	return 100 * (maxMatches - s.bestDifference(query, candidate)) / maxMatches
}

func (s *SlidingOffset) bestDifference(query, candidate []uint32) int {
	count := s.Count
	if count == nil {
		count = DefaultBitCounter
	}
	// Words missing from the shorter fingerprint count as fully different at
	// every offset.
	penalty := 32 * abs(len(query)-len(candidate))
	best := -1
	for off := 0; off < max(s.MaxOffset, 1); off++ {
		if off > 0 && off >= len(query) {
			break
		}
		shifted := query[off:]
		diff := penalty
		for i := range min(len(shifted), len(candidate)) {
			diff += count(shifted[i] ^ candidate[i])
		}
		if best < 0 || diff < best {
			best = diff
		}
		if best == 0 {
			break
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
