// Package render writes decoded modules out as audio.
package render

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder"
)

const frameSize = 1024

// WriteWAV renders every sub-song of mod, one after another, as 16-bit mono
// PCM. It returns the number of samples written.
func WriteWAV(w io.WriteSeeker, mod decoder.Module, sampleRate int) (int, error) {
	return writeWAV(w, mod, sampleRate, func() bool { return false })
}

// writeWAV checks stopped between frames.
func writeWAV(w io.WriteSeeker, mod decoder.Module, sampleRate int, stopped func() bool) (int, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if err := mod.SelectSubSong(-1); err != nil {
		return 0, err
	}

	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	pcm := make([]int16, frameSize)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, 0, frameSize),
		SourceBitDepth: 16,
	}

	// Same guard against endless pattern loops as fingerprinting.
	remaining := mod.DurationSeconds() * float64(sampleRate)
	total := 0
	for remaining >= 0 && !stopped() {
		n, err := mod.Read(sampleRate, pcm)
		if err != nil {
			return total, fmt.Errorf("render: %w", err)
		}
		if n == 0 {
			break
		}
		remaining -= float64(n)

		buf.Data = buf.Data[:0]
		for _, s := range pcm[:n] {
			buf.Data = append(buf.Data, int(s))
		}
		if err := enc.Write(buf); err != nil {
			return total, fmt.Errorf("failed to write WAV data: %w", err)
		}
		total += n
	}

	if err := enc.Close(); err != nil {
		return total, fmt.Errorf("failed to close WAV encoder: %w", err)
	}
	return total, nil
}
