package fingerprint

import (
	"math/bits"

	"golang.org/x/sys/cpu"
)

// BitCounter counts the set bits of a word.
type BitCounter func(uint32) int

var bitTable = func() (t [256]uint8) {
	for i := range t {
		t[i] = t[i/2] + uint8(i&1)
	}
	return t
}()

// HardwareBitCount lets the compiler emit the native instruction.
func HardwareBitCount(v uint32) int {
	return bits.OnesCount32(v)
}

// TableBitCount sums a 256 entry lookup table over the four bytes of v.
func TableBitCount(v uint32) int {
	return int(bitTable[v&0xFF]) + int(bitTable[v>>8&0xFF]) +
		int(bitTable[v>>16&0xFF]) + int(bitTable[v>>24])
}

// DefaultBitCounter is chosen once from the CPU features of the host.
var DefaultBitCounter = selectBitCounter()

func selectBitCounter() BitCounter {
	if cpu.X86.HasPOPCNT || cpu.ARM64.HasASIMD {
		return HardwareBitCount
	}
	return TableBitCount
}
