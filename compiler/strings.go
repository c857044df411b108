package compiler

import (
	"encoding/hex"
	"math/big"
	"strings"
)

// Bit-string plumbing shared by the literal, message and ABI layers.
// Slices are spelled the way the assembler reads them: hex digits,
// with a trailing underscore marking a completion tag.

// stringToHex encodes s as two hex digits per byte.
func stringToHex(s string) string {
	return hex.EncodeToString([]byte(s))
}

// addBinaryNumber appends value as bitlen binary digits, most
// significant first.
func addBinaryNumber(s string, value *big.Int, bitlen int) string {
	assert(value.Sign() >= 0, "negative binary literal")
	var b strings.Builder
	b.WriteString(s)
	for i := bitlen - 1; i >= 0; i-- {
		if value.Bit(i) == 1 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// binaryStringToSlice converts a binary string to its hex slice
// spelling, appending a completion tag when the length is not a
// multiple of four.
func binaryStringToSlice(s string) string {
	haveCompletionTag := false
	if len(s)%4 != 0 {
		haveCompletionTag = true
		s += "1"
		for len(s)%4 != 0 {
			s += "0"
		}
	}
	var ans strings.Builder
	for i := 0; i < len(s); i += 4 {
		x := 0
		for j := 0; j < 4; j++ {
			x = x * 2
			if s[i+j] == '1' {
				x++
			}
		}
		ans.WriteString(strings.ToLower(hex.EncodeToString([]byte{byte(x)}))[1:])
	}
	out := ans.String()
	if haveCompletionTag {
		out += "_"
	}
	return out
}

// toBitString expands a slice spelling back into binary digits.
func toBitString(slice string) string {
	var bits strings.Builder
	if strings.HasPrefix(slice, "x") {
		body := slice[1:]
		for i := 0; i < len(body); i++ {
			if i+2 == len(body) && body[i+1] == '_' {
				// completion tag: strip trailing zeroes and the one
				v := hexDigit(body[i])
				bitLen := 4
				for {
					isOne := v%2 == 1
					bitLen--
					v /= 2
					if isOne {
						break
					}
				}
				bits.WriteString(addBinaryNumber("", big.NewInt(int64(v)), bitLen))
				break
			}
			bits.WriteString(addBinaryNumber("", big.NewInt(int64(hexDigit(body[i]))), 4))
		}
		return bits.String()
	}
	if slice == "0" || slice == "1" {
		return slice
	}
	panic("internal: bad slice spelling " + slice)
}

func hexDigit(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	panic("internal: bad hex digit")
}

// unitSlices concatenates two slice spellings, splitting the result
// into chunks that fit a PUSHSLICE literal.
func unitSlices(sliceA, sliceB string) []string {
	return unitBitString(toBitString(sliceA), toBitString(sliceB))
}

// unitBitString splits bitStringA+bitStringB into PUSHSLICE-sized
// hex chunks.
func unitBitString(bitStringA, bitStringB string) []string {
	bits := bitStringA + bitStringB
	var opcodes []string
	for i := 0; i < len(bits); i += 4 * MaxPushSliceBitLength {
		end := i + 4*MaxPushSliceBitLength
		if end > len(bits) {
			end = len(bits)
		}
		opcodes = append(opcodes, "x"+binaryStringToSlice(bits[i:end]))
	}
	return opcodes
}

// tonsToBinaryString encodes a coin amount as a Grams field: a 4-bit
// byte count followed by the big-endian value.
func tonsToBinaryString(value *big.Int) string {
	assert(value.Sign() >= 0, "negative coin amount")
	length := value.BitLen()
	assert(length < 120, "coin value must fit 120 bits")
	for length%8 != 0 {
		length++
	}
	s := addBinaryNumber("", value, length)
	byteLen := length / 8
	return addBinaryNumber("", big.NewInt(int64(byteLen)), 4) + s
}

// boolToBinaryString spells a single header bit.
func boolToBinaryString(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
