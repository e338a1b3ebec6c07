// Package codes defines the disjoint short-code spaces, their alphabets and
// shapes, random code generation, and the inbound classifier/decoder. It is
// pure: no store access, safe to call from any goroutine.
package codes

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

// Space names one of the disjoint namespaces codes are drawn from.
type Space string

const (
	SpaceClassic Space = "classic"
	SpaceUltra   Space = "ultra"
	SpaceDigit   Space = "digit"
	SpaceCustom  Space = "custom"
	SpaceAffix   Space = "affix"
	SpaceQR      Space = "qr"
)

const (
	// Alphabet is the code character set: lowercase letters and digits with
	// o and l removed. On the decode path o reads as 0 and l as i.
	Alphabet = "abcdefghijkmnpqrstuvwxyz0123456789"

	digits = "0123456789"

	ClassicLength  = 6
	UltraMinLength = 1
	UltraMaxLength = 2
	DigitMinLength = 3
	DigitMaxLength = 5

	// MaxAttempts bounds every collision-retry loop.
	MaxAttempts = 10

	// qrIDBytes of entropy, base64url encoded, give a 10-character id with a
	// per-insert collision probability around 7e-9 at a billion rows.
	qrIDBytes = 7
)

// RandomClassic draws a 6-character classic code from the code alphabet using
// a cryptographically strong source.
func RandomClassic() (string, error) {
	return randomFrom(Alphabet, ClassicLength)
}

// RandomDigits draws a numeric code of the given length.
func RandomDigits(length int) (string, error) {
	return randomFrom(digits, length)
}

// NewQRID returns a fresh QR payload identifier.
func NewQRID() (string, error) {
	buf := make([]byte, qrIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func randomFrom(alphabet string, length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(alphabet[int(buf[i])%len(alphabet)])
	}
	return b.String(), nil
}
