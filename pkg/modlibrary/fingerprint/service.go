// Package fingerprint produces and compares acoustic fingerprints of rendered
// modules.
package fingerprint

import (
	"errors"
	"fmt"

	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder"
)

// DefaultSampleRate is the rate modules are rendered at for fingerprinting.
const DefaultSampleRate = 22050

const feedFrameSize = 512

var (
	ErrInvalidFingerprint = errors.New("invalid fingerprint")
	ErrNotStarted         = errors.New("fingerprint accumulator not started")
)

// Service is a streaming fingerprint accumulator. A Service is reusable:
// Start discards any previous state.
type Service interface {
	Start(sampleRate, channels int) error
	// Feed consumes interleaved PCM and reports whether it was accepted.
	Feed(pcm []int16) bool
	Finish() error
	RawFingerprint() ([]uint32, error)
}

// FromModule renders mod to mono PCM at sampleRate and feeds it through svc.
// Rendering stops at the end of the song, when svc rejects data, or once the
// module's reported duration has been rendered.
func FromModule(mod decoder.Module, svc Service, sampleRate int) ([]uint32, error) {
	if err := svc.Start(sampleRate, 1); err != nil {
		return nil, err
	}

	remaining := mod.DurationSeconds() * float64(sampleRate)
	buf := make([]int16, feedFrameSize)
	for remaining >= 0 {
		n, err := mod.Read(sampleRate, buf)
		if err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		remaining -= float64(n)
		if n == 0 || !svc.Feed(buf[:n]) {
			break
		}
	}

	if err := svc.Finish(); err != nil {
		return nil, err
	}
	return svc.RawFingerprint()
}
