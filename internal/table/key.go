package table

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
)

// Key is a primary-key tuple.
type Key []string

// Encode returns an injective string form of the tuple, suitable as a map key.
func (k Key) Encode() string {
	var b strings.Builder
	var buf [binary.MaxVarintLen64]byte
	for _, v := range k {
		n := binary.PutUvarint(buf[:], uint64(len(v)))
		b.Write(buf[:n])
		b.WriteString(v)
	}
	return b.String()
}

func (k Key) String() string {
	if len(k) == 1 {
		return k[0]
	}
	return "(" + strings.Join(k, ", ") + ")"
}

// Compare orders keys element by element. Numeric values compare by value
// and sort before non-numeric ones; equal values fall back to bytewise order.
func (k Key) Compare(other Key) int {
	for i := 0; i < len(k) && i < len(other); i++ {
		if c := compareCell(k[i], other[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(k) < len(other):
		return -1
	case len(k) > len(other):
		return 1
	}
	return 0
}

func compareCell(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	numA, numB := errA == nil && !math.IsNaN(fa), errB == nil && !math.IsNaN(fb)
	switch {
	case numA && numB:
		if fa < fb {
			return -1
		}
		if fa > fb {
			return 1
		}
	case numA:
		return -1
	case numB:
		return 1
	}
	return strings.Compare(a, b)
}
