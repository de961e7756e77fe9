package modlibrary

import (
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/fingerprint"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/notes"
)

// contentHash is the base64 SHA-512 of the raw file bytes.
func contentHash(data []byte) string {
	sum := sha512.Sum512(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// joinNames terminates every name with a newline.
func joinNames(names []string) string {
	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	return b.String()
}

// parseEditDate accepts RFC 3339 timestamps and plain dates. Anything else
// is unknown.
func parseEditDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// extract decodes data and fills every content-derived field of rec.
func (s *modService) extract(data []byte, rec *Record) error {
	mod, err := s.decoder.Decode(data)
	if err != nil {
		return err
	}

	rec.Format = mod.Metadata(decoder.MetaType)
	rec.Title = mod.Metadata(decoder.MetaTitle)
	rec.Artist = mod.Metadata(decoder.MetaArtist)
	rec.Comments = mod.Metadata(decoder.MetaMessage)
	rec.EditDate = parseEditDate(mod.Metadata(decoder.MetaDate))
	rec.Duration = time.Duration(mod.DurationSeconds() * float64(time.Second)).Truncate(time.Millisecond)

	rec.Channels = mod.NumChannels()
	rec.Patterns = mod.NumPatterns()
	rec.Orders = mod.NumOrders()
	rec.SubSongs = mod.NumSubSongs()
	rec.Samples = mod.NumSamples()
	rec.Instruments = mod.NumInstruments()
	rec.SampleText = joinNames(mod.SampleNames())
	rec.InstrumentText = joinNames(mod.InstrumentNames())

	rec.NoteData = notes.Build(mod)

	if err := mod.SelectSubSong(0); err != nil {
		return err
	}
	raw, err := fingerprint.FromModule(mod, s.config.Fingerprinter(), s.config.SampleRate)
	if err != nil {
		return fmt.Errorf("fingerprint: %w", err)
	}
	rec.Fingerprint = fingerprint.Encode(raw)
	return nil
}
