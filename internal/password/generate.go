package password

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

const (
	lowercaseChars = "abcdefghijklmnopqrstuvwxyz"
	uppercaseChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars     = "0123456789"
	// Allowed punctuation set for generated passwords.
	punctuationChars = "!@#$%^&*()_-+=[{]};:>|./?"

	minLength = 8
	maxLength = 128
)

var (
	// ErrLengthOutOfRange indicates the requested length is outside [8,128].
	ErrLengthOutOfRange = errors.New("password: length must be between 8 and 128")

	// ErrUnsatisfiable indicates the character requirements cannot fit in
	// the requested length.
	ErrUnsatisfiable = errors.New("password: length is too short to meet all character requirements")
)

// GenerateOptions controls random password generation. PunctuationCount is
// the exact number of punctuation characters the result will contain.
type GenerateOptions struct {
	Length           int
	PunctuationCount int
	Lowercase        bool
	Uppercase        bool
	Digit            bool
}

// Generate produces a random password. Every required character class is
// guaranteed to appear at least once: one character per class (and the full
// punctuation quota) is drawn first, the remaining positions are filled from
// the combined alphanumeric set, and the whole buffer is shuffled under
// secure random sort keys.
//
// Characters are picked by reducing a secure random 32-bit value modulo the
// alphabet size, so alphabets whose size is not a power of two carry a
// slight selection bias.
func Generate(opts GenerateOptions) (string, error) {
	if opts.Length < minLength || opts.Length > maxLength {
		return "", ErrLengthOutOfRange
	}
	if opts.PunctuationCount < 0 || opts.PunctuationCount > opts.Length {
		return "", fmt.Errorf("%w: invalid punctuation count %d", ErrUnsatisfiable, opts.PunctuationCount)
	}

	required := opts.PunctuationCount
	if opts.Lowercase {
		required++
	}
	if opts.Uppercase {
		required++
	}
	if opts.Digit {
		required++
	}
	if opts.Length < required {
		return "", ErrUnsatisfiable
	}

	var filler string
	if opts.Lowercase {
		filler += lowercaseChars
	}
	if opts.Uppercase {
		filler += uppercaseChars
	}
	if opts.Digit {
		filler += digitChars
	}
	if filler == "" {
		// Nothing required: fall back to the full alphanumeric set so the
		// punctuation count stays exact.
		filler = lowercaseChars + uppercaseChars + digitChars
	}

	chars := make([]byte, 0, opts.Length)
	if opts.Lowercase {
		c, err := randomChar(lowercaseChars)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	if opts.Uppercase {
		c, err := randomChar(uppercaseChars)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	if opts.Digit {
		c, err := randomChar(digitChars)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for i := 0; i < opts.PunctuationCount; i++ {
		c, err := randomChar(punctuationChars)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for len(chars) < opts.Length {
		c, err := randomChar(filler)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	if err := secureShuffle(chars); err != nil {
		return "", err
	}
	return string(chars), nil
}

// randomChar picks one character from the alphabet using modulo reduction of
// a secure random uint32.
func randomChar(alphabet string) (byte, error) {
	n, err := randomUint32()
	if err != nil {
		return 0, err
	}
	return alphabet[n%uint32(len(alphabet))], nil
}

// secureShuffle permutes the buffer by sorting it under independently drawn
// secure random keys.
func secureShuffle(chars []byte) error {
	type keyed struct {
		key uint32
		c   byte
	}
	pairs := make([]keyed, len(chars))
	for i, c := range chars {
		n, err := randomUint32()
		if err != nil {
			return err
		}
		pairs[i] = keyed{key: n, c: c}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })
	for i, p := range pairs {
		chars[i] = p.c
	}
	return nil
}

func randomUint32() (uint32, error) {
	var buf [4]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("password: read random: %w", err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
