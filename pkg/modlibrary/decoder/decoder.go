// Package decoder turns raw tracker module bytes into a Module that exposes
// metadata, pattern data and a pull-based PCM renderer.
//
// Note values follow the OpenMPT convention: 0 is "no note", 1..120 are
// playable notes with 61 being C-5, and values above 128 are reserved for
// note-off style commands.
package decoder

import (
	"errors"
	"fmt"
)

const (
	NoteNone     uint8 = 0
	NoteMin      uint8 = 1
	NoteMiddleC  uint8 = 61
	NoteMaxValid uint8 = 128
	NoteFade     uint8 = 253
	NoteCut      uint8 = 254
	NoteKeyOff   uint8 = 255
)

// Command selects one field of a pattern cell.
type Command int

const (
	CommandNote Command = iota
	CommandInstrument
	CommandVolume
	CommandEffect
	CommandParameter
)

// Metadata keys understood by Module.Metadata.
const (
	MetaType     = "type"
	MetaTypeLong = "type_long"
	MetaTitle    = "title"
	MetaArtist   = "artist"
	MetaDate     = "date"
	MetaMessage  = "message_raw"
	MetaTracker  = "tracker"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported module format")
	ErrCorrupt           = errors.New("corrupt module data")
)

// Module is a decoded song. Implementations are not safe for concurrent use;
// the render position is part of their state.
type Module interface {
	Metadata(key string) string

	NumChannels() int
	NumPatterns() int
	NumOrders() int
	NumSubSongs() int
	NumSamples() int
	NumInstruments() int
	SampleNames() []string
	InstrumentNames() []string

	// SelectSubSong resets playback to the start of the given sub-song.
	// Index -1 plays all sub-songs one after another.
	SelectSubSong(index int) error
	// CurrentOrder is the order position playback starts from. Sub-songs
	// that do not start at order 0 are not reachable from the song start.
	CurrentOrder() int
	OrderPattern(order int) int
	PatternNumRows(pattern int) int
	PatternRowChannelCommand(pattern, row, channel int, cmd Command) uint8

	// DurationSeconds estimates the playing time of the selected sub-song.
	DurationSeconds() float64
	// Read renders mono 16-bit PCM into buf and returns the number of
	// samples written. Zero means the end of the song was reached.
	Read(sampleRate int, buf []int16) (int, error)
}

// Format recognises and decodes one module format.
type Format interface {
	Name() string
	Probe(data []byte) bool
	Decode(data []byte) (Module, error)
}

// Registry tries each registered format in order.
type Registry struct {
	formats []Format
}

// NewRegistry returns a registry with the built-in formats.
func NewRegistry(extra ...Format) *Registry {
	r := &Registry{formats: []Format{xmFormat{}, modFormat{}}}
	r.formats = append(r.formats, extra...)
	return r
}

// Decode unwraps compressed containers and hands the payload to the first
// format whose probe accepts it.
func (r *Registry) Decode(data []byte) (Module, error) {
	payload, err := Unwrap(data)
	if err != nil {
		return nil, err
	}
	for _, f := range r.formats {
		if !f.Probe(payload) {
			continue
		}
		mod, err := f.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name(), err)
		}
		return mod, nil
	}
	return nil, ErrUnsupportedFormat
}

// Formats lists the names of the registered formats.
func (r *Registry) Formats() []string {
	names := make([]string, len(r.formats))
	for i, f := range r.formats {
		names[i] = f.Name()
	}
	return names
}
