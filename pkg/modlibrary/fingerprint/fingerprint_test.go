package fingerprint

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder/decodertest"
)

func randomWords(seed int64, n int) []uint32 {
	r := rand.New(rand.NewSource(seed))
	out := make([]uint32, n)
	for i := range out {
		out[i] = r.Uint32()
	}
	return out
}

func TestCodecRoundTrip(t *testing.T) {
	cases := map[string][]uint32{
		"empty":     {},
		"zeros":     {0, 0, 0},
		"edges":     {0xFFFFFFFF, 0x80000000, 1, 0x80000001, 0},
		"random":    randomWords(1, 500),
		"repeating": {7, 7, 7, 7},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			enc := Encode(raw)
			require.GreaterOrEqual(t, len(enc), headerSize)
			assert.Equal(t, Algorithm, enc[0])

			got, err := Decode(enc)
			require.NoError(t, err)
			assert.Equal(t, len(raw), len(got))
			for i := range raw {
				assert.Equalf(t, raw[i], got[i], "word %d", i)
			}

			printed, err := Decode([]byte(Printable(enc)))
			require.NoError(t, err)
			assert.Equal(t, got, printed)
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrInvalidFingerprint)

	_, err = Decode([]byte{9, 0, 0, 1, 0})
	assert.ErrorIs(t, err, ErrInvalidFingerprint, "unknown algorithm")

	enc := Encode(randomWords(2, 50))
	_, err = Decode(enc[:len(enc)/2])
	assert.ErrorIs(t, err, ErrInvalidFingerprint, "truncated")

	_, err = Decode([]byte("not*base64"))
	assert.ErrorIs(t, err, ErrInvalidFingerprint)
}

func TestParsePrintableAcceptsStandardBase64(t *testing.T) {
	enc := Encode(randomWords(3, 40))
	std := Printable(enc)
	std = std + "=="
	got, err := ParsePrintable(std)
	require.NoError(t, err)
	assert.Equal(t, enc, got)
}

func TestBitCountersAgree(t *testing.T) {
	values := append(randomWords(4, 2000), 0, 0xFFFFFFFF, 0x80000000, 0x55555555)
	for _, v := range values {
		require.Equalf(t, HardwareBitCount(v), TableBitCount(v), "value %#x", v)
	}
	assert.Equal(t, 32, TableBitCount(0xFFFFFFFF))
	assert.Equal(t, 16, DefaultBitCounter(0xAAAA0000|0x0000AAAA))
}

func TestScoreSelfMatch(t *testing.T) {
	s := NewSlidingOffset()
	for _, n := range []int{1, 2, 31, 32, 100} {
		fp := randomWords(int64(n), n)
		assert.Equalf(t, 100, s.Score(fp, fp), "length %d", n)
	}
	assert.Equal(t, 0, s.Score(nil, nil))
}

func TestScoreIsAsymmetric(t *testing.T) {
	s := NewSlidingOffset()
	tune := randomWords(5, 64)
	delayed := append(randomWords(6, 3), tune...)

	// Shifting the query by 3 aligns the tune; only the 3 extra words count:
	// 100 * (32*67 - 32*3) / (32*67).
	assert.Equal(t, 95, s.Score(delayed, tune))
	// The candidate is never shifted.
	assert.Less(t, s.Score(tune, delayed), 95)
}

func TestScoreOffsetLimit(t *testing.T) {
	s := NewSlidingOffset()
	tune := randomWords(7, 64)

	lastTried := append(randomWords(8, DefaultMaxOffset-1), tune...)
	// 100 * (32*95 - 32*31) / (32*95)
	assert.Equal(t, 67, s.Score(lastTried, tune))

	beyond := append(randomWords(9, DefaultMaxOffset), tune...)
	assert.Less(t, s.Score(beyond, tune), 50, "offsets beyond the window are not tried")
}

func TestScoreLengthPenalty(t *testing.T) {
	s := &SlidingOffset{MaxOffset: 1, Count: TableBitCount}
	a := []uint32{1, 2, 3, 4}
	// Half of the longer fingerprint is missing entirely.
	assert.Equal(t, 50, s.Score(a[:2], a))
	assert.Equal(t, 50, s.Score(a, a[:2]))
}

func TestScoreUsesInjectedCounter(t *testing.T) {
	calls := 0
	s := &SlidingOffset{MaxOffset: 1, Count: func(v uint32) int {
		calls++
		return TableBitCount(v)
	}}
	s.Score([]uint32{1, 2}, []uint32{1, 3})
	assert.Equal(t, 2, calls)
}

func TestRank(t *testing.T) {
	query := randomWords(9, 40)
	other := randomWords(10, 40)
	m := NewMatcher(nil)

	matches, err := m.Rank(context.Background(), query, []Candidate{
		{Key: "same", Fingerprint: Encode(query)},
		{Key: "other", Fingerprint: Encode(other)},
		{Key: "broken", Fingerprint: []byte{1, 2}},
		{Key: "printable", Fingerprint: []byte(Printable(Encode(query)))},
	})
	require.NoError(t, err)
	require.Len(t, matches, 4)

	assert.Equal(t, Match{Key: "same", Score: 100, Valid: true}, matches[0])
	assert.Equal(t, "other", matches[1].Key)
	assert.Less(t, matches[1].Score, 100)
	assert.Equal(t, Match{Key: "broken"}, matches[2])
	assert.Equal(t, 100, matches[3].Score)

	// second pass is served from the decode cache
	again, err := m.Rank(context.Background(), query, []Candidate{{Key: "same", Fingerprint: Encode(query)}})
	require.NoError(t, err)
	assert.Equal(t, 100, again[0].Score)
}

func TestRankCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMatcher(nil).Rank(ctx, []uint32{1}, []Candidate{{Key: "a", Fingerprint: Encode([]uint32{1})}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSpectralLifecycle(t *testing.T) {
	s := NewSpectral()
	assert.False(t, s.Feed(make([]int16, 10)), "feed before start")
	assert.ErrorIs(t, s.Finish(), ErrNotStarted)
	require.Error(t, s.Start(0, 1))

	require.NoError(t, s.Start(DefaultSampleRate, 2))
	assert.True(t, s.Feed(make([]int16, DefaultSampleRate)))
	_, err := s.RawFingerprint()
	assert.ErrorIs(t, err, ErrNotStarted, "not finished yet")
	require.NoError(t, s.Finish())
	assert.False(t, s.Feed(make([]int16, 10)), "feed after finish")

	raw, err := s.RawFingerprint()
	require.NoError(t, err)
	for _, w := range raw {
		assert.Zero(t, w, "silence has no energy changes")
	}
}

func TestFromModule(t *testing.T) {
	data := decodertest.MOD(decodertest.Simple("print", 61, 65, 68, 73, 61, 56))

	fingerprintOf := func() []uint32 {
		mod, err := decoder.NewRegistry().Decode(data)
		require.NoError(t, err)
		raw, err := FromModule(mod, NewSpectral(), DefaultSampleRate)
		require.NoError(t, err)
		return raw
	}

	first := fingerprintOf()
	// 7.68 s rendered at 22050 Hz and analysed at 11025 Hz.
	assert.Len(t, first, (84672-frameSize)/frameHop)
	assert.Equal(t, first, fingerprintOf(), "fingerprints must be reproducible")
	assert.Equal(t, 100, NewSlidingOffset().Score(first, first))
}
