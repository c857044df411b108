package compiler

import (
	"math/big"
	"testing"

	tassert "github.com/stretchr/testify/assert"
)

func TestBinaryStringToSlice(t *testing.T) {
	tests := []struct {
		bits string
		want string
	}{
		{"0000", "0"},
		{"1111", "f"},
		{"00010010", "12"},
		{"1", "c_"},
		{"10", "a_"},
		{"101", "b_"},
		{"00000", "04_"},
	}
	for _, tt := range tests {
		t.Run(tt.bits, func(t *testing.T) {
			tassert.Equal(t, tt.want, binaryStringToSlice(tt.bits))
		})
	}
}

func TestToBitStringRoundTrip(t *testing.T) {
	for _, bits := range []string{"0000", "1111", "00010010", "1", "101"} {
		slice := "x" + binaryStringToSlice(bits)
		tassert.Equal(t, bits, toBitString(slice), "slice %s", slice)
	}
	tassert.Equal(t, "0", toBitString("0"))
	tassert.Equal(t, "1", toBitString("1"))
}

func TestAddBinaryNumber(t *testing.T) {
	tassert.Equal(t, "00000101", addBinaryNumber("", big.NewInt(5), 8))
	tassert.Equal(t, "xx11", addBinaryNumber("xx", big.NewInt(3), 2))
}

func TestTonsToBinaryString(t *testing.T) {
	// zero grams: zero-length payload
	tassert.Equal(t, "0000", tonsToBinaryString(big.NewInt(0)))
	// one byte payload
	tassert.Equal(t, "0001"+"00000001", tonsToBinaryString(big.NewInt(1)))
	// two byte payload
	tassert.Equal(t, "0010"+"0000000100000000", tonsToBinaryString(big.NewInt(256)))
}

func TestUnitBitStringChunks(t *testing.T) {
	long := ""
	for i := 0; i < 2*4*MaxPushSliceBitLength; i++ {
		long += "1"
	}
	chunks := unitBitString(long, "")
	tassert.Len(t, chunks, 2)
	for _, c := range chunks {
		tassert.Equal(t, byte('x'), c[0])
	}
	tassert.Equal(t, []string{"xff"}, unitBitString("1111", "1111"))
}

func TestStringToHex(t *testing.T) {
	tassert.Equal(t, "6869", stringToHex("hi"))
	tassert.Equal(t, "", stringToHex(""))
}

func TestBoolToBinaryString(t *testing.T) {
	tassert.Equal(t, "1", boolToBinaryString(true))
	tassert.Equal(t, "0", boolToBinaryString(false))
}

func TestUnitSlices(t *testing.T) {
	got := unitSlices("x12", "x34")
	tassert.Equal(t, []string{"x1234"}, got)
}
