package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder/decodertest"
)

func decodeSimple(t *testing.T) decoder.Module {
	t.Helper()
	mod, err := decoder.NewRegistry().Decode(decodertest.MOD(decodertest.Simple("wav", 61, 65, 68)))
	require.NoError(t, err)
	return mod
}

func createFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "out.wav"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func readBack(t *testing.T, f *os.File) (int, int) {
	t.Helper()
	_, err := f.Seek(0, 0)
	require.NoError(t, err)
	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	return int(dec.SampleRate), len(buf.Data)
}

func TestWriteWAV(t *testing.T) {
	f := createFile(t)
	n, err := WriteWAV(f, decodeSimple(t), 8000)
	require.NoError(t, err)
	// One 64 row pattern at speed 6 and tempo 125 lasts 7.68 s.
	assert.Equal(t, 61440, n)

	rate, samples := readBack(t, f)
	assert.Equal(t, 8000, rate)
	assert.Equal(t, n, samples)
}

func TestWriteWAVRejectsBadRate(t *testing.T) {
	_, err := WriteWAV(createFile(t), decodeSimple(t), 0)
	assert.Error(t, err)
}

func TestStoppedBeforeFirstFrame(t *testing.T) {
	n, err := writeWAV(createFile(t), decodeSimple(t), 8000, func() bool { return true })
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPreviewRunsToEnd(t *testing.T) {
	p := StartPreview(createFile(t), decodeSimple(t), 8000)
	<-p.Done()
	n, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, 61440, n)
}

func TestPreviewStop(t *testing.T) {
	p := StartPreview(createFile(t), decodeSimple(t), 8000)
	p.Stop()
	n, err := p.Wait()
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 61440)
	assert.Zero(t, n%frameSize, "stops on a frame boundary")
}
