package decoder

import "math"

// Effect numbers shared by MOD and XM.
const (
	effectPositionJump = 0x0B
	effectSetVolume    = 0x0C
	effectPatternBreak = 0x0D
	effectSetSpeed     = 0x0F
)

const lastPlayableNote = 120

// sequencer walks the order list row by row. It applies only the effects
// that change the playing position or the timing.
type sequencer struct {
	s        *song
	order    int
	rowIndex int
	speed    int
	tempo    int

	jumpOrder int
	breakRow  int

	visited    map[int]struct{}
	ordersSeen map[int]bool
}

func newSequencer(s *song, start int) *sequencer {
	return &sequencer{
		s:          s,
		order:      start,
		speed:      s.initialSpeed,
		tempo:      s.initialTempo,
		jumpOrder:  -1,
		breakRow:   -1,
		visited:    make(map[int]struct{}),
		ordersSeen: make(map[int]bool),
	}
}

// row returns the cells of the current row. It reports false once playback
// leaves the order list or reaches a row that was already played.
func (q *sequencer) row() ([]cell, bool) {
	p, ok := q.s.patternAt(q.order)
	if !ok || q.rowIndex >= p.rows {
		return nil, false
	}
	key := q.order<<10 | q.rowIndex
	if _, seen := q.visited[key]; seen {
		return nil, false
	}
	q.visited[key] = struct{}{}
	q.ordersSeen[q.order] = true

	start := q.rowIndex * q.s.channels
	return p.cells[start : start+q.s.channels], true
}

func (q *sequencer) applyGlobal(cells []cell) {
	for _, c := range cells {
		switch c.effect {
		case effectPositionJump:
			q.jumpOrder = int(c.param)
		case effectPatternBreak:
			r := int(c.param)
			if q.s.bcdBreak {
				r = int(c.param>>4)*10 + int(c.param&0x0F)
			}
			q.breakRow = r
		case effectSetSpeed:
			switch {
			case c.param == 0:
			case c.param < 32:
				q.speed = int(c.param)
			default:
				q.tempo = int(c.param)
			}
		}
	}
}

// rowSeconds is the playing time of one row at the current speed and tempo.
func (q *sequencer) rowSeconds() float64 {
	return float64(q.speed) * 2.5 / float64(q.tempo)
}

// advance moves to the next row, honouring pending jumps and breaks.
func (q *sequencer) advance() bool {
	if q.jumpOrder >= 0 || q.breakRow >= 0 {
		next := q.order + 1
		if q.jumpOrder >= 0 {
			next = q.jumpOrder
		}
		q.order, q.rowIndex = next, max(q.breakRow, 0)
		q.jumpOrder, q.breakRow = -1, -1
	} else {
		q.rowIndex++
		if p, ok := q.s.patternAt(q.order); !ok || q.rowIndex >= p.rows {
			q.order++
			q.rowIndex = 0
		}
	}

	for q.order < len(q.s.orders) {
		if p, ok := q.s.patternAt(q.order); ok {
			if q.rowIndex >= p.rows {
				q.rowIndex = 0
			}
			return true
		}
		q.order++
		q.rowIndex = 0
	}
	return false
}

type channel struct {
	smp    *sample
	instr  int
	pos    float64
	freq   float64
	volume int
	active bool
}

// next returns the linearly interpolated sample value and advances the
// playback position.
func (ch *channel) next(rate int) float64 {
	d := ch.smp.data
	i := int(ch.pos)
	if i >= len(d) {
		ch.active = false
		return 0
	}
	a := float64(d[i])
	b := a
	if i+1 < len(d) {
		b = float64(d[i+1])
	}
	v := a + (b-a)*(ch.pos-float64(i))

	ch.pos += ch.freq / float64(rate)
	if ch.smp.loopLen > 0 {
		end := float64(ch.smp.loopStart + ch.smp.loopLen)
		for ch.pos >= end {
			ch.pos -= float64(ch.smp.loopLen)
		}
	}
	return v
}

// player renders a song tick by tick into mono PCM.
type player struct {
	s      *song
	starts []int
	seq    *sequencer
	chans  []channel
	gain   float64
	tick   int
	left   int
	ended  bool
}

func newPlayer(s *song, starts []int) *player {
	return &player{
		s:      s,
		starts: starts[1:],
		seq:    newSequencer(s, starts[0]),
		chans:  make([]channel, s.channels),
		gain:   2 / float64(max(s.channels, 4)),
	}
}

func (p *player) read(rate int, buf []int16) int {
	n := 0
	for n < len(buf) && !p.ended {
		if p.left == 0 && !p.nextTick(rate) {
			break
		}
		k := min(p.left, len(buf)-n)
		p.mix(rate, buf[n:n+k])
		n += k
		p.left -= k
	}
	return n
}

func (p *player) nextTick(rate int) bool {
	if p.tick == 0 {
		cells, ok := p.seq.row()
		for !ok {
			if len(p.starts) == 0 {
				p.ended = true
				return false
			}
			p.seq = newSequencer(p.s, p.starts[0])
			p.starts = p.starts[1:]
			cells, ok = p.seq.row()
		}
		p.seq.applyGlobal(cells)
		p.trigger(cells)
	}

	p.left = max(1, int(math.Round(float64(rate)*2.5/float64(p.seq.tempo))))
	p.tick++
	if p.tick >= p.seq.speed {
		p.tick = 0
		p.seq.advance()
	}
	return true
}

func (p *player) trigger(cells []cell) {
	for i, c := range cells {
		ch := &p.chans[i]
		if c.instr > 0 {
			ch.instr = int(c.instr)
		}

		switch {
		case c.note >= NoteMin && c.note <= lastPlayableNote:
			smp := p.s.sampleFor(ch.instr, c.note)
			if smp == nil {
				ch.active = false
				break
			}
			ch.smp = smp
			ch.pos = 0
			ch.freq = smp.c5speed * math.Pow(2, float64(int(c.note)-int(NoteMiddleC))/12)
			ch.active = len(smp.data) > 0
			if c.instr > 0 {
				ch.volume = smp.volume
			}
		case c.note >= NoteFade:
			ch.active = false
		case c.instr > 0 && ch.smp != nil:
			ch.volume = ch.smp.volume
		}

		if c.volume >= 0x10 && c.volume <= 0x50 {
			ch.volume = int(c.volume - 0x10)
		}
		if c.effect == effectSetVolume {
			ch.volume = min(int(c.param), 64)
		}
	}
}

func (p *player) mix(rate int, out []int16) {
	for j := range out {
		var acc float64
		for i := range p.chans {
			ch := &p.chans[i]
			if !ch.active {
				continue
			}
			v := ch.next(rate)
			acc += v * float64(ch.volume) / 64
		}
		out[j] = clamp16(acc * p.gain * 32767)
	}
}

func clamp16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// sampleFor resolves the sample an instrument plays for a note.
func (s *song) sampleFor(instr int, note uint8) *sample {
	if instr <= 0 {
		return nil
	}
	if len(s.instruments) == 0 {
		if instr > len(s.samples) {
			return nil
		}
		return &s.samples[instr-1]
	}
	if instr > len(s.instruments) {
		return nil
	}
	ins := &s.instruments[instr-1]
	key := int(note) - 13
	key = min(max(key, 0), len(ins.keymap)-1)
	local := int(ins.keymap[key])
	if local >= len(ins.samples) {
		return nil
	}
	return &s.samples[ins.samples[local]]
}
