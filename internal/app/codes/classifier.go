package codes

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidCode signals that an inbound code does not fit any code space.
var ErrInvalidCode = errors.New("code does not fit any code space")

// Classification is the decoded form of an inbound short code.
type Classification struct {
	Space Space
	Code  string
}

// PathContext carries the explicit markers of a request path. Username-prefixed
// and QR-fetch URLs identify their space structurally and must never be
// classified by code shape alone.
type PathContext struct {
	// Username is set when the request arrived as /:username/:code.
	Username string
	// QRPath is set when the request arrived under the QR fetch prefix.
	QRPath bool
}

var (
	alnumPattern = regexp.MustCompile(`^[a-z0-9]+$`)
	digitPattern = regexp.MustCompile(`^[0-9]+$`)

	// Confusable substitutions, applied after lowercasing and before shape
	// validation. The digit path only maps o, since i is not a digit.
	confusables      = strings.NewReplacer("o", "0", "l", "i")
	digitConfusables = strings.NewReplacer("o", "0")
)

// Classify determines which code space a raw inbound code structurally belongs
// to, normalizes it and validates its shape. Shape tests run in a fixed order
// because the spaces overlap: a 1-2 character string is ultra by length gate,
// exactly 6 characters is classic, 3-5 is digit, and anything else falls back
// to the opaque custom space.
func Classify(raw string, pathCtx PathContext) (Classification, error) {
	if raw == "" {
		return Classification{}, ErrInvalidCode
	}

	if pathCtx.Username != "" {
		return Classification{Space: SpaceAffix, Code: raw}, nil
	}
	if pathCtx.QRPath {
		return Classification{Space: SpaceQR, Code: raw}, nil
	}

	switch n := len(raw); {
	case n >= UltraMinLength && n <= UltraMaxLength:
		code := confusables.Replace(strings.ToLower(raw))
		if !alnumPattern.MatchString(code) {
			return Classification{}, ErrInvalidCode
		}
		return Classification{Space: SpaceUltra, Code: code}, nil

	case n == ClassicLength:
		code := confusables.Replace(strings.ToLower(raw))
		if !alnumPattern.MatchString(code) {
			return Classification{}, ErrInvalidCode
		}
		return Classification{Space: SpaceClassic, Code: code}, nil

	case n >= DigitMinLength && n <= DigitMaxLength:
		code := digitConfusables.Replace(strings.ToLower(raw))
		if !digitPattern.MatchString(code) {
			return Classification{}, ErrInvalidCode
		}
		return Classification{Space: SpaceDigit, Code: code}, nil

	default:
		return Classification{Space: SpaceCustom, Code: raw}, nil
	}
}
