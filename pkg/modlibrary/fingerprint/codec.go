package fingerprint

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Algorithm is written into the header of every encoded fingerprint.
const Algorithm byte = 1

const (
	normalBits      = 3
	exceptionalBits = 5
	maxNormalValue  = 1<<normalBits - 1
	headerSize      = 4
)

type bitWriter struct {
	buf []byte
	acc uint32
	n   uint
}

func (w *bitWriter) write(v uint32, bits uint) {
	w.acc |= v << w.n
	w.n += bits
	for w.n >= 8 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc >>= 8
		w.n -= 8
	}
}

func (w *bitWriter) flush() {
	if w.n > 0 {
		w.buf = append(w.buf, byte(w.acc))
	}
	w.acc, w.n = 0, 0
}

type bitReader struct {
	data []byte
	pos  int
	acc  uint32
	n    uint
}

func (r *bitReader) read(bits uint) (uint32, bool) {
	for r.n < bits {
		if r.pos >= len(r.data) {
			return 0, false
		}
		r.acc |= uint32(r.data[r.pos]) << r.n
		r.pos++
		r.n += 8
	}
	v := r.acc & (1<<bits - 1)
	r.acc >>= bits
	r.n -= bits
	return v, true
}

// align drops the bits left in the current byte.
func (r *bitReader) align() {
	r.acc, r.n = 0, 0
}

// Encode compresses a raw fingerprint. Each word is XORed with its
// predecessor and the positions of the set bits are stored as gaps: gaps
// below 7 take three bits, larger gaps add a five bit overflow code stored
// after all three bit codes.
func Encode(raw []uint32) []byte {
	n := len(raw)
	out := []byte{Algorithm, byte(n >> 16), byte(n >> 8), byte(n)}

	var normal, exceptional bitWriter
	var prev uint32
	for _, w := range raw {
		x := w ^ prev
		prev = w
		last := 0
		for bit := 1; x != 0; bit++ {
			if x&1 != 0 {
				gap := bit - last
				if gap >= maxNormalValue {
					normal.write(maxNormalValue, normalBits)
					exceptional.write(uint32(gap-maxNormalValue), exceptionalBits)
				} else {
					normal.write(uint32(gap), normalBits)
				}
				last = bit
			}
			x >>= 1
		}
		normal.write(0, normalBits)
	}
	normal.flush()
	exceptional.flush()

	out = append(out, normal.buf...)
	return append(out, exceptional.buf...)
}

// Decode restores a raw fingerprint from either its binary or its printable
// form.
func Decode(data []byte) ([]uint32, error) {
	if looksPrintable(data) {
		bin, err := ParsePrintable(string(data))
		if err != nil {
			return nil, err
		}
		data = bin
	}
	return decodeBinary(data)
}

func decodeBinary(data []byte) ([]uint32, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d byte header", ErrInvalidFingerprint, len(data))
	}
	if data[0] != Algorithm {
		return nil, fmt.Errorf("%w: unknown algorithm %d", ErrInvalidFingerprint, data[0])
	}
	n := int(data[1])<<16 | int(data[2])<<8 | int(data[3])

	r := &bitReader{data: data[headerSize:]}
	var codes []uint32
	for words := 0; words < n; {
		v, ok := r.read(normalBits)
		if !ok {
			return nil, fmt.Errorf("%w: truncated after %d of %d words", ErrInvalidFingerprint, words, n)
		}
		codes = append(codes, v)
		if v == 0 {
			words++
		}
	}
	r.align()

	raw := make([]uint32, 0, n)
	var word, prev uint32
	last := 0
	for _, c := range codes {
		if c == 0 {
			prev ^= word
			raw = append(raw, prev)
			word, last = 0, 0
			continue
		}
		gap := int(c)
		if c == maxNormalValue {
			extra, ok := r.read(exceptionalBits)
			if !ok {
				return nil, fmt.Errorf("%w: missing exceptional code", ErrInvalidFingerprint)
			}
			gap += int(extra)
		}
		last += gap
		if last > 32 {
			return nil, fmt.Errorf("%w: bit position %d", ErrInvalidFingerprint, last)
		}
		word |= 1 << (last - 1)
	}
	return raw, nil
}

// Printable is the text form of an encoded fingerprint used for display and
// for pasting a fingerprint back into a search.
func Printable(encoded []byte) string {
	return base64.RawURLEncoding.EncodeToString(encoded)
}

// ParsePrintable accepts URL-safe or standard base64, padded or not.
func ParsePrintable(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFingerprint, err)
	}
	return b, nil
}

func looksPrintable(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, c := range data {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '+' || c == '/' || c == '=':
		case c == ' ' || c == '\n' || c == '\r' || c == '\t':
		default:
			return false
		}
	}
	return true
}
