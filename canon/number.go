package canon

import (
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// formatNumber renders a json.Number. Integral literals keep arbitrary
// precision; everything else goes through float64.
func formatNumber(n json.Number) (string, error) {
	s := string(n)
	if s == "" || s != strings.TrimSpace(s) || !json.Valid([]byte(s)) {
		return "", malformed("CERT-CANON-008", "invalid number literal "+strconv.Quote(s))
	}
	if !strings.ContainsAny(s, ".eE") {
		var i big.Int
		if _, ok := i.SetString(s, 10); !ok {
			return "", malformed("CERT-CANON-008", "invalid number literal "+strconv.Quote(s))
		}
		return i.String(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", malformed("CERT-CANON-003", "number out of range "+strconv.Quote(s))
	}
	return formatFloat(f)
}

// formatFloat renders f with the shortest digits that round-trip. Fixed
// notation is used when the decimal point position lies in (-4, 16], scientific
// otherwise; integral fixed values keep a trailing ".0".
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", malformed("CERT-CANON-003", "non-finite number")
	}
	if f == 0 {
		if math.Signbit(f) {
			return "-0.0", nil
		}
		return "0.0", nil
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	var b strings.Builder
	if s[0] == '-' {
		b.WriteByte('-')
		s = s[1:]
	}
	mant, expStr, _ := strings.Cut(s, "e")
	exp, err := strconv.Atoi(expStr)
	if err != nil {
		return "", malformed("CERT-CANON-003", "unexpected float rendering")
	}
	digits := strings.Replace(mant, ".", "", 1)
	decpt := exp + 1

	switch {
	case decpt <= -4 || decpt > 16:
		b.WriteByte(digits[0])
		if len(digits) > 1 {
			b.WriteByte('.')
			b.WriteString(digits[1:])
		}
		b.WriteByte('e')
		e := decpt - 1
		if e < 0 {
			b.WriteByte('-')
			e = -e
		} else {
			b.WriteByte('+')
		}
		if e < 10 {
			b.WriteByte('0')
		}
		b.WriteString(strconv.Itoa(e))
	case decpt <= 0:
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", -decpt))
		b.WriteString(digits)
	case decpt >= len(digits):
		b.WriteString(digits)
		b.WriteString(strings.Repeat("0", decpt-len(digits)))
		b.WriteString(".0")
	default:
		b.WriteString(digits[:decpt])
		b.WriteByte('.')
		b.WriteString(digits[decpt:])
	}
	return b.String(), nil
}
