// Package notes builds the melodic fingerprint of a module: a stream of
// signed semitone steps that can be searched for literal melody fragments.
package notes

import "github.com/himanishpuri/ModLibrary/pkg/modlibrary/decoder"

// Build walks every sub-song that starts at order 0, channel by channel, and
// emits the signed 8-bit difference between consecutive notes. Before each
// channel the negated last note is written as a separator so that a
// fragment cannot match across a channel boundary by accident.
//
// Build changes the module's selected sub-song.
func Build(mod decoder.Module) []byte {
	channels := mod.NumChannels()
	var (
		out  []byte
		prev int8
	)
	for s := range mod.NumSubSongs() {
		if err := mod.SelectSubSong(s); err != nil {
			continue
		}
		// Sub-songs starting elsewhere are covered by the full order walk.
		if mod.CurrentOrder() != 0 {
			continue
		}
		orders := mod.NumOrders()
		for c := range channels {
			if prev != 0 {
				out = append(out, byte(-prev))
			}
			for o := range orders {
				p := mod.OrderPattern(o)
				for r := range mod.PatternNumRows(p) {
					note := mod.PatternRowChannelCommand(p, r, c, decoder.CommandNote)
					if note == decoder.NoteNone || note > decoder.NoteMaxValid {
						continue
					}
					out = append(out, byte(int8(note)-prev))
					prev = int8(note)
				}
			}
		}
	}
	return out
}
