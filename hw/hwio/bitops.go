package hwio

// Bits is the set of register widths.
type Bits interface {
	~uint8 | ~uint16 | ~uint32
}

// GetBit reports whether bit n of v is set.
func GetBit[T Bits](v T, n uint) bool { return v>>n&1 != 0 }

// SetBit sets bit n of v.
func SetBit[T Bits](v *T, n uint) { *v |= 1 << n }

// ClearBit clears bit n of v.
func ClearBit[T Bits](v *T, n uint) { *v &^= 1 << n }

// PutBit sets or clears bit n of v.
func PutBit[T Bits](v *T, n uint, on bool) {
	if on {
		SetBit(v, n)
	} else {
		ClearBit(v, n)
	}
}

func GetBit8(v uint8, n uint) bool   { return GetBit(v, n) }
func SetBit8(v *uint8, n uint)       { SetBit(v, n) }
func ClearBit8(v *uint8, n uint)     { ClearBit(v, n) }
func GetBit16(v uint16, n uint) bool { return GetBit(v, n) }
