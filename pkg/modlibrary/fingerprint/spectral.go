package fingerprint

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

const (
	analysisRate = 11025
	frameSize    = 4096
	frameHop     = frameSize / 3
	numBands     = 33
	minBandFreq  = 300.0
	maxBandFreq  = 2000.0
)

// Spectral derives one 32-bit word per analysis frame from the sign of the
// energy difference between adjacent frequency bands, compared with the
// previous frame.
type Spectral struct {
	factor   int
	channels int
	edges    []int
	started  bool
	finished bool

	acc  float64
	accN int

	pending []float64
	prev    []float64
	words   []uint32
}

func NewSpectral() *Spectral {
	return &Spectral{}
}

func (s *Spectral) Start(sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid input format: %d Hz, %d channels", sampleRate, channels)
	}
	s.factor = max(1, sampleRate/analysisRate)
	s.channels = channels
	s.edges = bandEdges(float64(sampleRate) / float64(s.factor))
	s.started, s.finished = true, false
	s.acc, s.accN = 0, 0
	s.pending = s.pending[:0]
	s.prev = nil
	s.words = nil
	return nil
}

// bandEdges returns numBands+1 FFT bin boundaries spaced logarithmically
// between minBandFreq and maxBandFreq.
func bandEdges(rate float64) []int {
	edges := make([]int, numBands+1)
	ratio := maxBandFreq / minBandFreq
	limit := frameSize/2 + 1
	for i := range edges {
		f := minBandFreq * math.Pow(ratio, float64(i)/numBands)
		bin := int(math.Round(f * frameSize / rate))
		if i > 0 && bin <= edges[i-1] {
			bin = edges[i-1] + 1
		}
		edges[i] = min(bin, limit)
	}
	return edges
}

func (s *Spectral) Feed(pcm []int16) bool {
	if !s.started || s.finished {
		return false
	}
	for i := 0; i+s.channels <= len(pcm); i += s.channels {
		var v float64
		for c := range s.channels {
			v += float64(pcm[i+c])
		}
		s.acc += v / float64(s.channels) / 32768
		s.accN++
		if s.accN == s.factor {
			s.pending = append(s.pending, s.acc/float64(s.factor))
			s.acc, s.accN = 0, 0
		}
	}

	consumed := 0
	for len(s.pending)-consumed >= frameSize {
		s.analyse(s.pending[consumed : consumed+frameSize])
		consumed += frameHop
	}
	if consumed > 0 {
		s.pending = append(s.pending[:0], s.pending[consumed:]...)
	}
	return true
}

func (s *Spectral) analyse(samples []float64) {
	frame := make([]float64, frameSize)
	copy(frame, samples)
	window.Apply(frame, window.Hann)
	spectrum := fft.FFTReal(frame)

	power := make([]float64, frameSize/2+1)
	for i := range power {
		re, im := real(spectrum[i]), imag(spectrum[i])
		power[i] = re*re + im*im
	}

	energies := make([]float64, numBands)
	for b := range energies {
		lo, hi := s.edges[b], s.edges[b+1]
		if lo < hi {
			energies[b] = floats.Sum(power[lo:hi])
		}
	}

	if s.prev != nil {
		var word uint32
		for m := range numBands - 1 {
			cur := energies[m] - energies[m+1]
			old := s.prev[m] - s.prev[m+1]
			if cur-old > 0 {
				word |= 1 << m
			}
		}
		s.words = append(s.words, word)
	}
	s.prev = energies
}

func (s *Spectral) Finish() error {
	if !s.started {
		return ErrNotStarted
	}
	s.finished = true
	return nil
}

func (s *Spectral) RawFingerprint() ([]uint32, error) {
	if !s.finished {
		return nil, ErrNotStarted
	}
	out := make([]uint32, len(s.words))
	copy(out, s.words)
	return out, nil
}
