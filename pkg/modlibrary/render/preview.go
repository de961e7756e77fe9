package render

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder"
)

// Preview renders one module on its own goroutine. Stop is cooperative:
// the worker finishes the frame it is rendering and then exits.
type Preview struct {
	stop atomic.Bool
	done chan struct{}

	mu      sync.Mutex
	samples int
	err     error
}

// StartPreview begins rendering mod into w. The caller must not use mod
// until Wait returns.
func StartPreview(w io.WriteSeeker, mod decoder.Module, sampleRate int) *Preview {
	p := &Preview{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		n, err := writeWAV(w, mod, sampleRate, p.stop.Load)
		p.mu.Lock()
		p.samples, p.err = n, err
		p.mu.Unlock()
	}()
	return p
}

func (p *Preview) Stop() {
	p.stop.Store(true)
}

// Done is closed when the worker has exited.
func (p *Preview) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the worker exits and returns the number of samples it
// rendered.
func (p *Preview) Wait() (int, error) {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samples, p.err
}
