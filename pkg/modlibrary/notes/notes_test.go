package notes

import (
	"bytes"
	"errors"
	"testing"

	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder/decodertest"
)

// fakeModule serves pattern notes from a map; every other method reports an
// empty song.
type fakeModule struct {
	channels  int
	orders    []int
	rows      int
	notes     map[[3]int]uint8 // pattern, row, channel
	subStarts []int
	selected  int
}

func (f *fakeModule) Metadata(string) string     { return "" }
func (f *fakeModule) NumChannels() int           { return f.channels }
func (f *fakeModule) NumPatterns() int           { return len(f.orders) }
func (f *fakeModule) NumOrders() int             { return len(f.orders) }
func (f *fakeModule) NumSubSongs() int           { return len(f.subStarts) }
func (f *fakeModule) NumSamples() int            { return 0 }
func (f *fakeModule) NumInstruments() int        { return 0 }
func (f *fakeModule) SampleNames() []string      { return nil }
func (f *fakeModule) InstrumentNames() []string  { return nil }
func (f *fakeModule) CurrentOrder() int          { return f.subStarts[f.selected] }
func (f *fakeModule) OrderPattern(o int) int     { return f.orders[o] }
func (f *fakeModule) PatternNumRows(int) int     { return f.rows }
func (f *fakeModule) DurationSeconds() float64   { return 0 }

func (f *fakeModule) Read(int, []int16) (int, error) { return 0, nil }

func (f *fakeModule) SelectSubSong(i int) error {
	f.selected = i
	return nil
}

func (f *fakeModule) PatternRowChannelCommand(p, r, c int, cmd decoder.Command) uint8 {
	if cmd != decoder.CommandNote {
		return 0
	}
	return f.notes[[3]int{p, r, c}]
}

func TestBuildDeltas(t *testing.T) {
	mod := &fakeModule{
		channels:  2,
		orders:    []int{0, 1},
		rows:      4,
		subStarts: []int{0},
		notes: map[[3]int]uint8{
			{0, 0, 0}: 60,
			{0, 2, 0}: 62,
			{1, 1, 0}: 61,
			{0, 3, 1}: 64,
			{1, 0, 1}: decoder.NoteKeyOff,
		},
	}

	got := Build(mod)
	// channel 0: 60, +2, -1; separator -61; channel 1: +3 from 61
	want := []byte{60, 2, 0xFF, 0xC3, 3}
	if !bytes.Equal(got, want) {
		t.Errorf("Build() = %v, want %v", got, want)
	}
}

func TestBuildSkipsHiddenSubSongs(t *testing.T) {
	mod := &fakeModule{
		channels:  1,
		orders:    []int{0},
		rows:      1,
		subStarts: []int{3},
		notes:     map[[3]int]uint8{{0, 0, 0}: 50},
	}
	if got := Build(mod); len(got) != 0 {
		t.Errorf("only hidden sub-songs should give an empty sequence, got %v", got)
	}
}

func TestBuildEmptyModule(t *testing.T) {
	mod := &fakeModule{channels: 0, subStarts: []int{0}}
	if got := Build(mod); len(got) != 0 {
		t.Errorf("expected empty sequence, got %v", got)
	}

	silent := &fakeModule{channels: 4, orders: []int{0}, rows: 64, subStarts: []int{0}}
	if got := Build(silent); len(got) != 0 {
		t.Errorf("module without notes should give an empty sequence, got %v", got)
	}
}

func TestBuildWrapsHighNotes(t *testing.T) {
	mod := &fakeModule{
		channels:  1,
		orders:    []int{0},
		rows:      2,
		subStarts: []int{0},
		notes:     map[[3]int]uint8{{0, 0, 0}: 1, {0, 1, 0}: 128},
	}
	// int8(128) is -128, and -128 - 1 wraps to 127.
	want := []byte{1, 127}
	if got := Build(mod); !bytes.Equal(got, want) {
		t.Errorf("Build() = %v, want %v", got, want)
	}
}

func TestBuildFromDecodedMOD(t *testing.T) {
	mod, err := decoder.NewRegistry().Decode(decodertest.MOD(decodertest.Simple("run", 61, 63, 60)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// channels 1 to 3 are empty and contribute only the -60 separator
	want := []byte{61, 2, 0xFD, 0xC4, 0xC4, 0xC4}
	if got := Build(mod); !bytes.Equal(got, want) {
		t.Errorf("Build() = %v, want %v", got, want)
	}
}

func TestParseMelodies(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want [][]byte
	}{
		{"single", "1 -1", [][]byte{{0x01, 0xFF}}},
		{"two fragments", " 2  3 | -5 ", [][]byte{{2, 3}, {0xFB}}},
		{"empty fragments dropped", "| 4 ||", [][]byte{{4}}},
		{"wraps", "200", [][]byte{{200}}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMelodies(tt.in)
			if err != nil {
				t.Fatalf("ParseMelodies(%q) error: %v", tt.in, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d fragments, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if !bytes.Equal(got[i], tt.want[i]) {
					t.Errorf("fragment %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}

	if _, err := ParseMelodies("1 x 2"); !errors.Is(err, ErrBadMelody) {
		t.Errorf("expected ErrBadMelody, got %v", err)
	}
}

func TestFormat(t *testing.T) {
	if got := Format([]byte{61, 2, 0xFD}); got != "61 2 -3" {
		t.Errorf("Format() = %q", got)
	}
}
