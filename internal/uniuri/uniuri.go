package uniuri

import (
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	// StdLen gives about 95 bits of entropy with StdChars.
	StdLen = 16

	// SecretLen gives about 256 bits of entropy with StdChars.
	SecretLen = 43
)

// StdChars are the characters New and NewLen draw from.
var StdChars = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789")

// ErrCharset is returned for a charset shorter than 2 or longer than 256 characters.
var ErrCharset = errors.New("uniuri: charset must hold 2 to 256 characters")

// New returns a random string of StdLen standard characters.
func New() (string, error) {
	return NewLenChars(StdLen, StdChars)
}

// NewLen returns a random string of length standard characters.
func NewLen(length int) (string, error) {
	return NewLenChars(length, StdChars)
}

// NewLenChars returns a random string of length characters taken from chars.
// Bytes that would bias the result towards the start of chars are skipped.
func NewLenChars(length int, chars []byte) (string, error) {
	if length <= 0 {
		return "", nil
	}

	clen := len(chars)
	if clen < 2 || clen > 256 {
		return "", ErrCharset
	}

	// largest byte value that maps uniformly onto chars
	maxByte := 255 - (256 % clen)

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/2+1) //nolint:mnd

	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("uniuri: failed to read random bytes: %w", err)
		}

		for _, b := range buf {
			if int(b) > maxByte {
				continue
			}

			out = append(out, chars[int(b)%clen])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}
