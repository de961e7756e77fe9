package decoder_test

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder/decodertest"
)

func TestDecodeMOD(t *testing.T) {
	data := decodertest.MOD(decodertest.Simple("space debris", 61, 63, 65))

	mod, err := decoder.NewRegistry().Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "mod", mod.Metadata(decoder.MetaType))
	assert.Equal(t, "ProTracker MOD (M.K.)", mod.Metadata(decoder.MetaTypeLong))
	assert.Equal(t, "space debris", mod.Metadata(decoder.MetaTitle))
	assert.Equal(t, 4, mod.NumChannels())
	assert.Equal(t, 1, mod.NumPatterns())
	assert.Equal(t, 1, mod.NumOrders())
	assert.Equal(t, 1, mod.NumSubSongs())
	assert.Equal(t, 31, mod.NumSamples())
	assert.Equal(t, 0, mod.NumInstruments())
	assert.Equal(t, "square", mod.SampleNames()[0])

	assert.Equal(t, uint8(61), mod.PatternRowChannelCommand(0, 0, 0, decoder.CommandNote))
	assert.Equal(t, uint8(1), mod.PatternRowChannelCommand(0, 0, 0, decoder.CommandInstrument))
	assert.Equal(t, uint8(63), mod.PatternRowChannelCommand(0, 4, 0, decoder.CommandNote))
	assert.Equal(t, uint8(0), mod.PatternRowChannelCommand(0, 1, 0, decoder.CommandNote))
	assert.Equal(t, uint8(0), mod.PatternRowChannelCommand(5, 0, 0, decoder.CommandNote), "out of range pattern")
}

func TestDecodeXM(t *testing.T) {
	song := decodertest.Simple("xm tune", 49, 61)
	song.Tracker = "MilkyTracker 1.04"
	song.Patterns[0] = append(song.Patterns[0], decodertest.Cell{Row: 10, Channel: 1, Note: decoder.NoteKeyOff})

	mod, err := decoder.NewRegistry().Decode(decodertest.XM(song))
	require.NoError(t, err)

	assert.Equal(t, "xm", mod.Metadata(decoder.MetaType))
	assert.Equal(t, "xm tune", mod.Metadata(decoder.MetaTitle))
	assert.Equal(t, "MilkyTracker 1.04", mod.Metadata(decoder.MetaTracker))
	assert.Equal(t, 1, mod.NumInstruments())
	assert.Equal(t, []string{"square instrument"}, mod.InstrumentNames())
	assert.Equal(t, []string{"square"}, mod.SampleNames())
	assert.Equal(t, 64, mod.PatternNumRows(0))

	assert.Equal(t, uint8(49), mod.PatternRowChannelCommand(0, 0, 0, decoder.CommandNote))
	assert.Equal(t, uint8(61), mod.PatternRowChannelCommand(0, 4, 0, decoder.CommandNote))
	assert.Equal(t, decoder.NoteKeyOff, mod.PatternRowChannelCommand(0, 10, 1, decoder.CommandNote))
}

func TestDecodeRejectsUnknownData(t *testing.T) {
	_, err := decoder.NewRegistry().Decode([]byte("this is certainly not a tracker module"))
	assert.ErrorIs(t, err, decoder.ErrUnsupportedFormat)

	_, err = decoder.NewRegistry().Decode(nil)
	assert.ErrorIs(t, err, decoder.ErrUnsupportedFormat)
}

func TestDecodeTruncatedMOD(t *testing.T) {
	data := decodertest.MOD(decodertest.Simple("cut", 61))
	_, err := decoder.NewRegistry().Decode(data[:1084+100])
	assert.ErrorIs(t, err, decoder.ErrCorrupt)
}

func TestDecodeTruncatedXM(t *testing.T) {
	data := decodertest.XM(decodertest.Simple("cut", 61))
	_, err := decoder.NewRegistry().Decode(data[:60+276+4])
	assert.ErrorIs(t, err, decoder.ErrCorrupt)
}

func TestDecodeCompressedContainers(t *testing.T) {
	raw := decodertest.MOD(decodertest.Simple("packed", 61))

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	var xzBuf bytes.Buffer
	xw, err := xz.NewWriter(&xzBuf)
	require.NoError(t, err)
	_, err = xw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, xw.Close())

	for name, data := range map[string][]byte{"gzip": gz.Bytes(), "xz": xzBuf.Bytes()} {
		t.Run(name, func(t *testing.T) {
			mod, err := decoder.NewRegistry().Decode(data)
			require.NoError(t, err)
			assert.Equal(t, "packed", mod.Metadata(decoder.MetaTitle))
		})
	}
}

func TestRenderLengthMatchesDuration(t *testing.T) {
	mod, err := decoder.NewRegistry().Decode(decodertest.MOD(decodertest.Simple("render", 61, 65)))
	require.NoError(t, err)

	// 64 rows at speed 6 and tempo 125.
	assert.InDelta(t, 7.68, mod.DurationSeconds(), 1e-9)

	const rate = 8000
	buf := make([]int16, 1000)
	total, loud := 0, false
	for range 1000 {
		n, err := mod.Read(rate, buf)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		for _, v := range buf[:n] {
			if v != 0 {
				loud = true
			}
		}
		total += n
	}
	assert.Equal(t, 64*6*160, total)
	assert.True(t, loud, "expected audible output")

	n, err := mod.Read(rate, buf)
	require.NoError(t, err)
	assert.Zero(t, n, "reading past the end yields nothing")
}

func TestSetSpeedShortensDuration(t *testing.T) {
	song := decodertest.Simple("fast", 61)
	song.Patterns[0] = append(song.Patterns[0], decodertest.Cell{Row: 0, Channel: 3, Effect: 0x0F, Param: 3})

	mod, err := decoder.NewRegistry().Decode(decodertest.MOD(song))
	require.NoError(t, err)
	assert.InDelta(t, 3.84, mod.DurationSeconds(), 1e-9)
}

func TestHiddenSubSong(t *testing.T) {
	song := decodertest.Simple("two parts", 61)
	// Pattern 0 jumps back to itself, so order 1 is only reachable as a
	// separate sub-song.
	song.Patterns[0] = append(song.Patterns[0], decodertest.Cell{Row: 0, Channel: 3, Effect: 0x0B, Param: 0})
	song.Patterns = append(song.Patterns, []decodertest.Cell{{Row: 0, Note: 73, Instr: 1}})
	song.Orders = []int{0, 1}

	mod, err := decoder.NewRegistry().Decode(decodertest.MOD(song))
	require.NoError(t, err)

	require.Equal(t, 2, mod.NumSubSongs())
	assert.Equal(t, 0, mod.CurrentOrder())
	require.NoError(t, mod.SelectSubSong(1))
	assert.Equal(t, 1, mod.CurrentOrder())
	assert.Equal(t, 1, mod.OrderPattern(1))
	require.NoError(t, mod.SelectSubSong(-1))
	assert.Error(t, mod.SelectSubSong(2))
}
