// Package decodertest builds small in-memory MOD and XM files for tests.
package decodertest

import (
	"bytes"
	"encoding/binary"

	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder"
)

// Cell places a note in a pattern. Note uses the decoder numbering
// (61 = C-5); zero leaves the note column empty.
type Cell struct {
	Row     int
	Channel int
	Note    uint8
	Instr   uint8
	Effect  uint8
	Param   uint8
}

type Sample struct {
	Name   string
	Data   []int8
	Volume uint8
	Loop   bool
}

// Song describes a module independent of its on-disk format.
type Song struct {
	Title    string
	Tracker  string
	Channels int
	Samples  []Sample
	Orders   []int
	Patterns [][]Cell
	Rows     int // XM only, defaults to 64
}

// Square returns a looping square wave sample.
func Square(name string) Sample {
	data := make([]int8, 32)
	for i := range data {
		if i < 16 {
			data[i] = 100
		} else {
			data[i] = -100
		}
	}
	return Sample{Name: name, Data: data, Volume: 64, Loop: true}
}

// Simple returns a four channel song with one pattern playing an ascending
// run on channel 0.
func Simple(title string, notes ...uint8) Song {
	cells := make([]Cell, len(notes))
	for i, n := range notes {
		cells[i] = Cell{Row: i * 4, Note: n, Instr: 1}
	}
	return Song{
		Title:    title,
		Channels: 4,
		Samples:  []Sample{Square("square")},
		Orders:   []int{0},
		Patterns: [][]Cell{cells},
	}
}

func putString(b []byte, s string) {
	copy(b, s)
}

// MOD encodes s as a ProTracker M.K. file. Channels other than 4 use the
// "xCHN" signature.
func MOD(s Song) []byte {
	channels := s.Channels
	if channels == 0 {
		channels = 4
	}
	var buf bytes.Buffer
	header := make([]byte, 1084)
	putString(header[0:20], s.Title)
	for i := range 31 {
		h := header[20+i*30 : 20+(i+1)*30]
		if i >= len(s.Samples) {
			continue
		}
		smp := s.Samples[i]
		putString(h[0:22], smp.Name)
		binary.BigEndian.PutUint16(h[22:24], uint16(len(smp.Data)/2))
		h[25] = smp.Volume
		if smp.Loop {
			binary.BigEndian.PutUint16(h[28:30], uint16(len(smp.Data)/2))
		} else {
			binary.BigEndian.PutUint16(h[28:30], 1)
		}
	}
	header[950] = byte(len(s.Orders))
	header[951] = 127
	numPatterns := 0
	for i, o := range s.Orders {
		header[952+i] = byte(o)
		numPatterns = max(numPatterns, o+1)
	}
	numPatterns = max(numPatterns, len(s.Patterns))
	if channels == 4 {
		putString(header[1080:], "M.K.")
	} else {
		putString(header[1080:], string(rune('0'+channels))+"CHN")
	}
	buf.Write(header)

	for p := range numPatterns {
		data := make([]byte, 64*channels*4)
		if p < len(s.Patterns) {
			for _, c := range s.Patterns[p] {
				off := (c.Row*channels + c.Channel) * 4
				period := decoder.PeriodForNote(c.Note)
				data[off] = c.Instr&0xF0 | byte(period>>8)&0x0F
				data[off+1] = byte(period)
				data[off+2] = c.Instr<<4 | c.Effect&0x0F
				data[off+3] = c.Param
			}
		}
		buf.Write(data)
	}
	for _, smp := range s.Samples {
		for _, v := range smp.Data {
			buf.WriteByte(byte(v))
		}
	}
	return buf.Bytes()
}

// XM encodes s as a FastTracker 2 file with one single-sample instrument per
// sample. Note numbers are converted back to the FastTracker numbering.
func XM(s Song) []byte {
	channels := s.Channels
	if channels == 0 {
		channels = 4
	}
	rows := s.Rows
	if rows == 0 {
		rows = 64
	}
	var buf bytes.Buffer
	header := make([]byte, 60+276)
	putString(header, "Extended Module: ")
	putString(header[17:37], s.Title)
	header[37] = 0x1A
	tracker := s.Tracker
	if tracker == "" {
		tracker = "FastTracker v2.00"
	}
	putString(header[38:58], tracker)
	binary.LittleEndian.PutUint16(header[58:], 0x0104)
	binary.LittleEndian.PutUint32(header[60:], 276)
	binary.LittleEndian.PutUint16(header[64:], uint16(len(s.Orders)))
	binary.LittleEndian.PutUint16(header[68:], uint16(channels))
	binary.LittleEndian.PutUint16(header[70:], uint16(len(s.Patterns)))
	binary.LittleEndian.PutUint16(header[72:], uint16(len(s.Samples)))
	binary.LittleEndian.PutUint16(header[74:], 1)
	binary.LittleEndian.PutUint16(header[76:], 6)
	binary.LittleEndian.PutUint16(header[78:], 125)
	for i, o := range s.Orders {
		header[80+i] = byte(o)
	}
	buf.Write(header)

	for _, cells := range s.Patterns {
		grid := make([]Cell, rows*channels)
		used := make([]bool, rows*channels)
		for _, c := range cells {
			grid[c.Row*channels+c.Channel] = c
			used[c.Row*channels+c.Channel] = true
		}
		var packed bytes.Buffer
		for i, c := range grid {
			if !used[i] {
				packed.WriteByte(0x80)
				continue
			}
			note := byte(0)
			switch {
			case c.Note == decoder.NoteKeyOff:
				note = 97
			case c.Note > 12:
				note = c.Note - 12
			}
			packed.Write([]byte{note, c.Instr, 0, c.Effect, c.Param})
		}
		ph := make([]byte, 9)
		binary.LittleEndian.PutUint32(ph[0:], 9)
		binary.LittleEndian.PutUint16(ph[5:], uint16(rows))
		binary.LittleEndian.PutUint16(ph[7:], uint16(packed.Len()))
		buf.Write(ph)
		buf.Write(packed.Bytes())
	}

	for _, smp := range s.Samples {
		ih := make([]byte, 263)
		binary.LittleEndian.PutUint32(ih[0:], 263)
		putString(ih[4:26], smp.Name+" instrument")
		binary.LittleEndian.PutUint16(ih[27:], 1)
		binary.LittleEndian.PutUint32(ih[29:], 40)
		buf.Write(ih)

		sh := make([]byte, 40)
		binary.LittleEndian.PutUint32(sh[0:], uint32(len(smp.Data)))
		if smp.Loop {
			binary.LittleEndian.PutUint32(sh[8:], uint32(len(smp.Data)))
			sh[14] = 1
		}
		sh[12] = smp.Volume
		putString(sh[18:40], smp.Name)
		buf.Write(sh)

		var prev int8
		for _, v := range smp.Data {
			buf.WriteByte(byte(v - prev))
			prev = v
		}
	}
	return buf.Bytes()
}
