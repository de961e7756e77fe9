package decoder

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

const (
	modSampleCount  = 31
	modOrderOffset  = 950
	modSigOffset    = 1080
	modHeaderSize   = 1084
	modPatternRows  = 64
	modInitialSpeed = 6
	modInitialTempo = 125
)

// modPeriods holds the finetune-0 ProTracker periods from C-0 to B-4.
// Index i corresponds to note 37+i so that C-1 lands on 49 and C-2 on 61.
var modPeriods = [60]int{
	1712, 1616, 1525, 1440, 1357, 1281, 1209, 1141, 1077, 1017, 961, 907,
	856, 808, 762, 720, 678, 640, 604, 570, 538, 508, 480, 453,
	428, 404, 381, 360, 340, 320, 302, 285, 269, 254, 240, 226,
	214, 202, 190, 180, 170, 160, 151, 143, 135, 127, 120, 113,
	107, 101, 95, 90, 85, 80, 76, 71, 67, 64, 60, 57,
}

type modFormat struct{}

func (modFormat) Name() string { return "mod" }

func (modFormat) Probe(data []byte) bool {
	if len(data) < modHeaderSize {
		return false
	}
	_, ok := modChannels(string(data[modSigOffset:modHeaderSize]))
	return ok
}

// modChannels maps a 4-byte signature to a channel count.
func modChannels(sig string) (int, bool) {
	switch sig {
	case "M.K.", "M!K!", "M&K!", "FLT4", "4CHN":
		return 4, true
	case "6CHN":
		return 6, true
	case "8CHN", "OCTA", "CD81", "FLT8":
		return 8, true
	}
	if strings.HasSuffix(sig, "CHN") {
		if n, err := strconv.Atoi(sig[:1]); err == nil && n > 0 {
			return n, true
		}
	}
	if strings.HasSuffix(sig, "CH") || strings.HasSuffix(sig, "CN") {
		if n, err := strconv.Atoi(sig[:2]); err == nil && n > 0 && n <= 32 {
			return n, true
		}
	}
	return 0, false
}

func (modFormat) Decode(data []byte) (Module, error) {
	if len(data) < modHeaderSize {
		return nil, fmt.Errorf("%w: header truncated", ErrCorrupt)
	}
	sig := string(data[modSigOffset:modHeaderSize])
	channels, ok := modChannels(sig)
	if !ok {
		return nil, ErrUnsupportedFormat
	}

	s := &song{
		format:       "mod",
		formatLong:   fmt.Sprintf("ProTracker MOD (%s)", strings.TrimSpace(sig)),
		title:        cString(data[0:20]),
		tracker:      modTracker(sig),
		channels:     channels,
		initialSpeed: modInitialSpeed,
		initialTempo: modInitialTempo,
		bcdBreak:     true,
	}

	type header struct {
		length, loopStart, loopLen int
	}
	headers := make([]header, modSampleCount)
	s.samples = make([]sample, modSampleCount)
	for i := range modSampleCount {
		h := data[20+i*30 : 20+(i+1)*30]
		finetune := int(h[24] & 0x0F)
		if finetune > 7 {
			finetune -= 16
		}
		headers[i] = header{
			length:    int(binary.BigEndian.Uint16(h[22:24])) * 2,
			loopStart: int(binary.BigEndian.Uint16(h[26:28])) * 2,
			loopLen:   int(binary.BigEndian.Uint16(h[28:30])) * 2,
		}
		s.samples[i] = sample{
			name:    cString(h[0:22]),
			volume:  min(int(h[25]), 64),
			c5speed: c5Speed(0, finetune*16),
		}
	}

	songLength := int(data[modOrderOffset])
	if songLength == 0 || songLength > 128 {
		return nil, fmt.Errorf("%w: song length %d", ErrCorrupt, songLength)
	}
	table := data[modOrderOffset+2 : modOrderOffset+2+128]
	numPatterns := 0
	for _, p := range table {
		numPatterns = max(numPatterns, int(p)+1)
	}
	s.orders = make([]int, songLength)
	for i := range s.orders {
		s.orders[i] = int(table[i])
	}

	patternSize := channels * 4 * modPatternRows
	offset := modHeaderSize
	if len(data) < offset+numPatterns*patternSize {
		return nil, fmt.Errorf("%w: %d patterns need %d bytes, have %d",
			ErrCorrupt, numPatterns, numPatterns*patternSize, len(data)-offset)
	}
	s.patterns = make([]pattern, numPatterns)
	for p := range s.patterns {
		raw := data[offset : offset+patternSize]
		offset += patternSize
		cells := make([]cell, modPatternRows*channels)
		for i := range cells {
			cells[i] = modCell(raw[i*4 : i*4+4])
		}
		s.patterns[p] = pattern{rows: modPatternRows, cells: cells}
	}

	// Sample data is frequently truncated in the wild; keep what is there.
	for i, h := range headers {
		n := min(h.length, max(len(data)-offset, 0))
		pcm := make([]float32, n)
		for j := range n {
			pcm[j] = float32(int8(data[offset+j])) / 128
		}
		offset += n
		s.samples[i].data = pcm
		if h.loopLen > 2 && h.loopStart < n {
			s.samples[i].loopStart = h.loopStart
			s.samples[i].loopLen = min(h.loopLen, n-h.loopStart)
		}
	}

	return newModule(s), nil
}

func modCell(b []byte) cell {
	period := int(b[0]&0x0F)<<8 | int(b[1])
	return cell{
		note:   periodToNote(period),
		instr:  b[0]&0xF0 | b[2]>>4,
		effect: b[2] & 0x0F,
		param:  b[3],
	}
}

// periodToNote returns the note whose period is closest to p, or NoteNone
// for an empty period.
func periodToNote(p int) uint8 {
	if p == 0 {
		return NoteNone
	}
	best, bestDiff := 0, -1
	for i, ref := range modPeriods {
		d := ref - p
		if d < 0 {
			d = -d
		}
		if bestDiff < 0 || d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return uint8(37 + best)
}

// PeriodForNote is the inverse of the MOD period lookup. It returns 0 for
// notes outside the ProTracker range.
func PeriodForNote(note uint8) int {
	i := int(note) - 37
	if i < 0 || i >= len(modPeriods) {
		return 0
	}
	return modPeriods[i]
}

func modTracker(sig string) string {
	switch sig {
	case "M.K.", "M!K!":
		return "ProTracker"
	case "FLT4", "FLT8":
		return "Startrekker"
	case "CD81", "OCTA":
		return "Oktalyzer"
	}
	return "Generic MOD tracker"
}

// cString trims a fixed-size, NUL-padded text field.
func cString(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimRight(string(b), " ")
}
