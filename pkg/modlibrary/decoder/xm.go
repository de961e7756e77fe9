package decoder

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/quasilyte/xm/xmfile"
)

var xmMagic = []byte("Extended Module: ")

const (
	xmMaxChannels = 64
	xmKeyOff      = 97
)

// xmFormat maps FastTracker II files parsed by xmfile onto the common song
// representation.
type xmFormat struct{}

func (xmFormat) Name() string { return "xm" }

func (xmFormat) Probe(data []byte) bool {
	return len(data) > 80 && bytes.HasPrefix(data, xmMagic)
}

func (xmFormat) Decode(data []byte) (Module, error) {
	parser := xmfile.NewParser(xmfile.ParserConfig{NeedStrings: true})
	raw, err := parser.ParseFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if raw.NumChannels <= 0 || raw.NumChannels > xmMaxChannels {
		return nil, fmt.Errorf("%w: %d channels", ErrCorrupt, raw.NumChannels)
	}

	speed, tempo := int(raw.DefaultTempo), int(raw.DefaultBPM)
	if speed == 0 {
		speed = modInitialSpeed
	}
	if tempo < 32 {
		tempo = modInitialTempo
	}

	s := &song{
		format:       "xm",
		formatLong:   "FastTracker 2",
		title:        xmString(raw.Name),
		tracker:      xmString(raw.TrackerName),
		channels:     raw.NumChannels,
		initialSpeed: speed,
		initialTempo: tempo,
	}
	s.orders = make([]int, len(raw.PatternOrder))
	for i, p := range raw.PatternOrder {
		s.orders[i] = int(p)
	}

	s.patterns = make([]pattern, len(raw.Patterns))
	for i := range raw.Patterns {
		s.patterns[i] = xmPattern(&raw.Patterns[i], s.channels)
	}

	s.instruments = make([]instrument, 0, len(raw.Instruments))
	for i := range raw.Instruments {
		s.instruments = append(s.instruments, xmInstrument(&raw.Instruments[i], s))
	}

	return newModule(s), nil
}

func xmPattern(raw *xmfile.Pattern, channels int) pattern {
	p := pattern{rows: len(raw.Rows), cells: make([]cell, len(raw.Rows)*channels)}
	for r, row := range raw.Rows {
		for ch, n := range row.Notes {
			if ch >= channels {
				break
			}
			p.cells[r*channels+ch] = cell{
				note:   xmNote(uint8(n.Note)),
				instr:  uint8(n.Instrument),
				volume: uint8(n.Volume),
				effect: uint8(n.EffectType),
				param:  uint8(n.EffectParameter),
			}
		}
	}
	return p
}

// xmNote maps FastTracker note numbers (1 = C-0) onto the common numbering.
func xmNote(n uint8) uint8 {
	switch {
	case n == 0:
		return NoteNone
	case n == xmKeyOff:
		return NoteKeyOff
	case n > xmKeyOff:
		return NoteNone
	}
	return n + 12
}

// xmInstrument appends the instrument's samples to s and returns the
// instrument with its keymap pointing at them.
func xmInstrument(raw *xmfile.Instrument, s *song) instrument {
	ins := instrument{name: xmString(raw.Name)}
	for i, k := range raw.KeymapAssignments {
		if i >= len(ins.keymap) {
			break
		}
		ins.keymap[i] = uint8(k)
	}

	for i := range raw.Samples {
		rs := &raw.Samples[i]
		smp := sample{
			name:    xmString(rs.Name),
			volume:  min(int(rs.Volume), 64),
			c5speed: c5Speed(int(int8(rs.RelativeNote)), int(int8(rs.Finetune))),
		}
		sixteen := rs.Is16bits()
		smp.data = deltaDecode(rs.Data, sixteen)

		loopStart, loopLen := int(rs.LoopStart), int(rs.LoopLength)
		if sixteen {
			loopStart, loopLen = loopStart/2, loopLen/2
		}
		if loopLen > 0 && loopStart < len(smp.data) {
			smp.loopStart = loopStart
			smp.loopLen = min(loopLen, len(smp.data)-loopStart)
		}

		ins.samples = append(ins.samples, len(s.samples))
		s.samples = append(s.samples, smp)
	}
	return ins
}

func xmString(v string) string {
	return strings.TrimRight(v, "\x00 ")
}

// deltaDecode expands delta-coded 8 or 16 bit sample data.
func deltaDecode(raw []byte, sixteen bool) []float32 {
	if sixteen {
		out := make([]float32, len(raw)/2)
		var acc int16
		for i := range out {
			acc += int16(uint16(raw[i*2]) | uint16(raw[i*2+1])<<8)
			out[i] = float32(acc) / 32768
		}
		return out
	}
	out := make([]float32, len(raw))
	var acc int8
	for i, b := range raw {
		acc += int8(b)
		out[i] = float32(acc) / 128
	}
	return out
}
