package notes

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrBadMelody = errors.New("invalid melody")

// ParseMelodies splits a search string such as "1 -1 2 | 5 5" into its
// fragments. Empty fragments are dropped. Values outside the int8 range wrap
// the same way the stored deltas do.
func ParseMelodies(text string) ([][]byte, error) {
	var out [][]byte
	for _, part := range strings.Split(text, "|") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		frag := make([]byte, 0, len(fields))
		for _, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a number", ErrBadMelody, f)
			}
			frag = append(frag, byte(int8(v)))
		}
		out = append(out, frag)
	}
	return out, nil
}

// Format renders a note sequence as space separated signed steps.
func Format(seq []byte) string {
	var b strings.Builder
	for i, v := range seq {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(int(int8(v))))
	}
	return b.String()
}
