package base62

import (
	"errors"
	"strings"
)

const (
	Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	Base     = 62
)

// alphabet index maps the characters to their index for O(1) lookup
var alphabetIndex = make(map[rune]uint64)

func init() {
	for ind, char := range Alphabet {
		alphabetIndex[char] = uint64(ind)
	}
}

func Encode(num uint64) string {
	if num == 0 {
		return string(Alphabet[0])
	}

	var result strings.Builder
	for num > 0 {
		remainder := num % Base
		result.WriteByte(Alphabet[remainder])
		num /= Base
	}
	return reverse(result.String())
}

// EncodePadded left-pads the encoding with the zero digit up to minLength,
// keeping generated short codes at a fixed minimal width.
func EncodePadded(num uint64, minLength int) string {
	encoded := Encode(num)
	if len(encoded) >= minLength {
		return encoded
	}

	padding := strings.Repeat(string(Alphabet[0]), minLength-len(encoded))
	return padding + encoded
}

func Decode(str string) (uint64, error) {
	if len(str) == 0 {
		return 0, errors.New("empty string")
	}

	var result uint64
	for _, char := range str {
		idx, exists := alphabetIndex[char]
		if !exists {
			return 0, errors.New("invalid character in base62 string")
		}
		result = result*Base + idx
	}

	return result, nil
}

func reverse(str string) string {
	runes := []rune(str)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}

	return string(runes)
}
