package decoder

import (
	"fmt"
	"math"
)

// cell is one pattern entry with the note already converted to the common
// numbering.
type cell struct {
	note   uint8
	instr  uint8
	volume uint8
	effect uint8
	param  uint8
}

type pattern struct {
	rows  int
	cells []cell // rows * channels, row-major
}

type sample struct {
	name      string
	data      []float32
	volume    int // 0..64
	loopStart int
	loopLen   int
	c5speed   float64 // playback rate of C-5
}

type instrument struct {
	name    string
	keymap  [96]uint8 // note index -> local sample index
	samples []int     // local sample index -> index into song.samples
}

// song is the format-neutral representation both parsers produce.
type song struct {
	format     string
	formatLong string
	title      string
	artist     string
	date       string
	tracker    string
	message    string

	channels     int
	orders       []int
	patterns     []pattern
	samples      []sample
	instruments  []instrument
	initialSpeed int
	initialTempo int
	bcdBreak     bool
}

func (s *song) patternAt(order int) (*pattern, bool) {
	if order < 0 || order >= len(s.orders) {
		return nil, false
	}
	idx := s.orders[order]
	if idx < 0 || idx >= len(s.patterns) {
		return nil, false
	}
	return &s.patterns[idx], true
}

func (s *song) cellAt(p *pattern, row, channel int) cell {
	if row < 0 || row >= p.rows || channel < 0 || channel >= s.channels {
		return cell{}
	}
	return p.cells[row*s.channels+channel]
}

// subSong is a contiguous playable section of the order list.
type subSong struct {
	start    int
	duration float64
}

// module implements Module on top of a parsed song.
type module struct {
	song     *song
	subSongs []subSong
	selected int
	player   *player
}

func newModule(s *song) *module {
	m := &module{song: s}
	m.subSongs = findSubSongs(s)
	m.player = newPlayer(s, m.startOrders(0))
	return m
}

// findSubSongs walks the order list and starts a new sub-song at every order
// that no earlier walk reached.
func findSubSongs(s *song) []subSong {
	covered := make(map[int]bool, len(s.orders))
	var subs []subSong
	for o := range s.orders {
		if covered[o] {
			continue
		}
		if _, ok := s.patternAt(o); !ok {
			continue
		}
		seq := newSequencer(s, o)
		var seconds float64
		for {
			cells, ok := seq.row()
			if !ok {
				break
			}
			seq.applyGlobal(cells)
			seconds += seq.rowSeconds()
			if !seq.advance() {
				break
			}
		}
		for order := range seq.ordersSeen {
			covered[order] = true
		}
		subs = append(subs, subSong{start: o, duration: seconds})
	}
	if len(subs) == 0 {
		subs = []subSong{{start: 0}}
	}
	return subs
}

func (m *module) startOrders(index int) []int {
	if index >= 0 {
		return []int{m.subSongs[index].start}
	}
	starts := make([]int, len(m.subSongs))
	for i, sub := range m.subSongs {
		starts[i] = sub.start
	}
	return starts
}

func (m *module) Metadata(key string) string {
	switch key {
	case MetaType:
		return m.song.format
	case MetaTypeLong:
		return m.song.formatLong
	case MetaTitle:
		return m.song.title
	case MetaArtist:
		return m.song.artist
	case MetaDate:
		return m.song.date
	case MetaMessage:
		return m.song.message
	case MetaTracker:
		return m.song.tracker
	}
	return ""
}

func (m *module) NumChannels() int    { return m.song.channels }
func (m *module) NumPatterns() int    { return len(m.song.patterns) }
func (m *module) NumOrders() int      { return len(m.song.orders) }
func (m *module) NumSubSongs() int    { return len(m.subSongs) }
func (m *module) NumSamples() int     { return len(m.song.samples) }
func (m *module) NumInstruments() int { return len(m.song.instruments) }

func (m *module) SampleNames() []string {
	names := make([]string, len(m.song.samples))
	for i, smp := range m.song.samples {
		names[i] = smp.name
	}
	return names
}

func (m *module) InstrumentNames() []string {
	names := make([]string, len(m.song.instruments))
	for i, ins := range m.song.instruments {
		names[i] = ins.name
	}
	return names
}

func (m *module) SelectSubSong(index int) error {
	if index < -1 || index >= len(m.subSongs) {
		return fmt.Errorf("sub-song %d out of range [0,%d)", index, len(m.subSongs))
	}
	m.selected = index
	m.player = newPlayer(m.song, m.startOrders(index))
	return nil
}

func (m *module) CurrentOrder() int {
	if m.selected < 0 {
		return m.subSongs[0].start
	}
	return m.subSongs[m.selected].start
}

func (m *module) OrderPattern(order int) int {
	if order < 0 || order >= len(m.song.orders) {
		return 0
	}
	return m.song.orders[order]
}

func (m *module) PatternNumRows(pattern int) int {
	if pattern < 0 || pattern >= len(m.song.patterns) {
		return 0
	}
	return m.song.patterns[pattern].rows
}

func (m *module) PatternRowChannelCommand(pattern, row, channel int, cmd Command) uint8 {
	if pattern < 0 || pattern >= len(m.song.patterns) {
		return 0
	}
	c := m.song.cellAt(&m.song.patterns[pattern], row, channel)
	switch cmd {
	case CommandNote:
		return c.note
	case CommandInstrument:
		return c.instr
	case CommandVolume:
		return c.volume
	case CommandEffect:
		return c.effect
	case CommandParameter:
		return c.param
	}
	return 0
}

func (m *module) DurationSeconds() float64 {
	if m.selected >= 0 {
		return m.subSongs[m.selected].duration
	}
	var total float64
	for _, sub := range m.subSongs {
		total += sub.duration
	}
	return total
}

func (m *module) Read(sampleRate int, buf []int16) (int, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	return m.player.read(sampleRate, buf), nil
}

// c5Speed converts a relative note and a finetune in 1/128 semitones into the
// playback rate of C-5.
func c5Speed(relNote, finetune int) float64 {
	return 8363 * math.Pow(2, float64(relNote*128+finetune)/(12*128))
}
